package retry

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// RetryEvent is emitted before the policy waits and tries again.
type RetryEvent struct {
	ID         uuid.UUID
	Policy     string
	Attempt    int
	Delay      time.Duration
	Err        error
	Codes      []int32
	Throttling *ThrottlingCondition
}

// IgnoreEvent is emitted when a failure is repeated without waiting.
type IgnoreEvent struct {
	ID      uuid.UUID
	Policy  string
	Attempt int
	Err     error
	Codes   []int32
}

// NotificationSink observes retry decisions. It is called synchronously from
// the policy loop and must not be relied on to change that loop's behaviour.
// Panics raised by a sink propagate to the caller of Execute.
type NotificationSink interface {
	Retrying(RetryEvent)
	Ignoring(IgnoreEvent)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Retrying(RetryEvent)   {}
func (NopSink) Ignoring(IgnoreEvent) {}

// SinkFuncs adapts plain functions to NotificationSink. Nil fields are no-ops.
type SinkFuncs struct {
	OnRetry  func(RetryEvent)
	OnIgnore func(IgnoreEvent)
}

func (f SinkFuncs) Retrying(e RetryEvent) {
	if f.OnRetry != nil {
		f.OnRetry(e)
	}
}

func (f SinkFuncs) Ignoring(e IgnoreEvent) {
	if f.OnIgnore != nil {
		f.OnIgnore(e)
	}
}

// MultiSink fans each event out to every sink in order.
type MultiSink []NotificationSink

func (m MultiSink) Retrying(e RetryEvent) {
	for _, s := range m {
		s.Retrying(e)
	}
}

func (m MultiSink) Ignoring(e IgnoreEvent) {
	for _, s := range m {
		s.Ignoring(e)
	}
}

// AmbientNotifier is a replaceable slot the hosting application fills once
// it has decided where events go. Set may race with event delivery; the last
// writer wins and readers always see a whole sink.
type AmbientNotifier struct {
	sink atomic.Pointer[sinkHolder]
}

type sinkHolder struct {
	NotificationSink
}

// NewAmbientNotifier returns an empty slot; events are dropped until Set.
func NewAmbientNotifier() *AmbientNotifier {
	return &AmbientNotifier{}
}

// Set replaces the subscriber. A nil sink empties the slot.
func (a *AmbientNotifier) Set(s NotificationSink) {
	if s == nil {
		a.sink.Store(nil)
		return
	}
	a.sink.Store(&sinkHolder{s})
}

// Current returns the subscriber, or nil when the slot is empty.
func (a *AmbientNotifier) Current() NotificationSink {
	if h := a.sink.Load(); h != nil {
		return h.NotificationSink
	}
	return nil
}

func (a *AmbientNotifier) Retrying(e RetryEvent) {
	if h := a.sink.Load(); h != nil {
		h.Retrying(e)
	}
}

func (a *AmbientNotifier) Ignoring(e IgnoreEvent) {
	if h := a.sink.Load(); h != nil {
		h.Ignoring(e)
	}
}

// Ambient is the process-wide slot that preset policies report to.
var Ambient = NewAmbientNotifier()

var (
	_ NotificationSink = NopSink{}
	_ NotificationSink = SinkFuncs{}
	_ NotificationSink = MultiSink(nil)
	_ NotificationSink = (*AmbientNotifier)(nil)
)
