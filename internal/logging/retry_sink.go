package logging

import (
	"github.com/google/uuid"

	"github.com/vvka-141/mssqlretry/internal/retry"
	"github.com/vvka-141/mssqlretry/pkg/mssqlretry"
)

// RetryLogSink reports retry decisions through a Logger: retries at Info,
// ignored failures at Verbose.
type RetryLogSink struct {
	logger mssqlretry.Logger
}

// NewRetryLogSink wraps logger. A nil logger discards events.
func NewRetryLogSink(logger mssqlretry.Logger) *RetryLogSink {
	if logger == nil {
		logger = NewNullLogger()
	}
	return &RetryLogSink{logger: logger}
}

func (s *RetryLogSink) Retrying(e retry.RetryEvent) {
	if e.Throttling != nil {
		s.logger.Info("[%s] attempt %d failed (codes %v, throttled: %s), retrying in %v: %v [%s]",
			e.Policy, e.Attempt, e.Codes, e.Throttling, e.Delay, e.Err, shortID(e.ID))
		return
	}
	s.logger.Info("[%s] attempt %d failed (codes %v), retrying in %v: %v [%s]",
		e.Policy, e.Attempt, e.Codes, e.Delay, e.Err, shortID(e.ID))
}

func (s *RetryLogSink) Ignoring(e retry.IgnoreEvent) {
	s.logger.Verbose("[%s] attempt %d hit ignorable error (codes %v), repeating: %v [%s]",
		e.Policy, e.Attempt, e.Codes, e.Err, shortID(e.ID))
}

// shortID is the first group of an invocation ID, enough to correlate the
// lines of one invocation.
func shortID(id uuid.UUID) string {
	return id.String()[:8]
}

var _ retry.NotificationSink = (*RetryLogSink)(nil)
