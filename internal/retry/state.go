package retry

import (
	"time"

	"github.com/google/uuid"
)

// State is the per-invocation record of a retry loop. It is created fresh by
// every Execute call and never shared.
type State struct {
	// ID correlates the events of one invocation.
	ID uuid.UUID

	// Attempt is 1 during the first attempt and grows by one per failure.
	Attempt int

	LastError error

	// Composite is the classified form of LastError, nil when unclassified.
	Composite *CompositeError

	// Delay is the wait computed before the next attempt.
	Delay time.Duration

	// TotalDelay is the time spent waiting so far.
	TotalDelay time.Duration

	// Retries counts backoff waits; ignored failures do not grow it.
	Retries int
}

func newState() *State {
	return &State{ID: uuid.New(), Attempt: 1}
}

// DecisionKind is the outcome of evaluating a failed attempt.
type DecisionKind int

const (
	DecisionAbort DecisionKind = iota
	DecisionRetry
	DecisionIgnore
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionRetry:
		return "retry"
	case DecisionIgnore:
		return "ignore"
	default:
		return "abort"
	}
}

// Decision is the tagged result consumed by the policy loop.
type Decision struct {
	Kind DecisionKind
	// Delay is set for DecisionRetry.
	Delay time.Duration
	// Err is the error to return for DecisionAbort.
	Err error
}
