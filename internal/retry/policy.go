package retry

import (
	"context"
	"time"
)

// Error is the terminal failure of a policy. It keeps the original error's
// text and unwraps to it, so callers see the real root cause together with
// the retry metadata.
type Error struct {
	Err        error
	Attempts   int
	TotalDelay time.Duration
	Throttling *ThrottlingCondition

	// Cancelled is set when the caller's context ended the loop.
	Cancelled bool
	ctxErr    error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

// Unwrap exposes the original error and, when cancelled, the context error.
func (e *Error) Unwrap() []error {
	if e.ctxErr != nil {
		return []error{e.Err, e.ctxErr}
	}
	return []error{e.Err}
}

// Policy drives the attempt/evaluate/wait loop for one stage of work.
//
// Thread Safety:
// A Policy holds only immutable configuration and may be shared by any number
// of goroutines. Each Execute call owns a fresh State. WithNotifier returns a
// NEW instance; the receiver is not modified.
type Policy struct {
	name     string
	config   *Config
	strategy ErrorDetectionStrategy
	sink     NotificationSink
}

// NewPolicy creates a policy. Panics if config or strategy is nil; returns an
// error wrapping mssqlretry.ErrInvalidConfig if config is invalid.
func NewPolicy(name string, config *Config, strategy ErrorDetectionStrategy) (*Policy, error) {
	if config == nil {
		panic("config cannot be nil")
	}
	if strategy == nil {
		panic("strategy cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Policy{
		name:     name,
		config:   config,
		strategy: strategy,
		sink:     NopSink{},
	}, nil
}

// WithNotifier returns a new Policy that reports to sink.
//
// Example:
//
//	policy := retry.CommandPolicy()
//	logged := policy.WithNotifier(logging.NewRetryLogSink(logger))
func (p *Policy) WithNotifier(sink NotificationSink) *Policy {
	clone := *p
	if sink == nil {
		sink = NopSink{}
	}
	clone.sink = sink
	return &clone
}

// Name identifies the policy in events.
func (p *Policy) Name() string { return p.name }

// Config returns the policy's configuration.
func (p *Policy) Config() *Config { return p.config }

// Strategy returns the policy's error-detection strategy.
func (p *Policy) Strategy() ErrorDetectionStrategy { return p.strategy }

// Execute runs operation until it succeeds, fails with an error the strategy
// will not retry, exhausts the attempt budget, or ctx is done. Terminal
// failures are returned as *Error.
func (p *Policy) Execute(ctx context.Context, operation func(ctx context.Context) error) error {
	state := newState()

	for {
		err := operation(ctx)
		if err == nil {
			return nil
		}

		state.LastError = err
		state.Composite, _ = AsComposite(err)

		decision := p.evaluate(ctx, state)
		switch decision.Kind {
		case DecisionIgnore:
			p.sink.Ignoring(IgnoreEvent{
				ID:      state.ID,
				Policy:  p.name,
				Attempt: state.Attempt,
				Err:     err,
				Codes:   state.Composite.Codes(),
			})
			state.Attempt++

		case DecisionRetry:
			state.Delay = decision.Delay
			p.sink.Retrying(RetryEvent{
				ID:         state.ID,
				Policy:     p.name,
				Attempt:    state.Attempt,
				Delay:      decision.Delay,
				Err:        err,
				Codes:      state.Composite.Codes(),
				Throttling: state.Composite.Throttling,
			})

			waited, waitErr := wait(ctx, decision.Delay)
			state.TotalDelay += waited
			if waitErr != nil {
				return p.terminal(ctx, state)
			}
			state.Retries++
			state.Attempt++

		default:
			return decision.Err
		}
	}
}

// evaluate turns a failed attempt into a Decision. The strategy always sees
// the error first so throttling details are attached even when the budget is
// already spent.
func (p *Policy) evaluate(ctx context.Context, state *State) Decision {
	ce := state.Composite
	if ce == nil {
		return Decision{Kind: DecisionAbort, Err: p.terminal(ctx, state)}
	}

	ignore := false
	if d, ok := p.strategy.(IgnoreDetector); ok {
		ignore = d.ShouldIgnore(ce)
	}
	retryable := ignore || p.strategy.CanRetry(ce)

	if !retryable || state.Attempt >= p.config.MaxRetryCount() || ctx.Err() != nil {
		return Decision{Kind: DecisionAbort, Err: p.terminal(ctx, state)}
	}

	if ignore {
		return Decision{Kind: DecisionIgnore}
	}
	return Decision{Kind: DecisionRetry, Delay: p.config.NextDelay(state.Retries + 1)}
}

func (p *Policy) terminal(ctx context.Context, state *State) *Error {
	e := &Error{
		Err:        state.LastError,
		Attempts:   state.Attempt,
		TotalDelay: state.TotalDelay,
	}
	if state.Composite != nil {
		e.Throttling = state.Composite.Throttling
	}
	if err := ctx.Err(); err != nil {
		e.Cancelled = true
		e.ctxErr = err
	}
	return e
}

// wait blocks for d or until ctx is done, and reports how long it waited.
func wait(ctx context.Context, d time.Duration) (time.Duration, error) {
	start := time.Now()
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return time.Since(start), ctx.Err()
	case <-timer.C:
		return d, nil
	}
}

// Do runs an operation that produces a value under p.
func Do[T any](ctx context.Context, p *Policy, operation func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := p.Execute(ctx, func(ctx context.Context) error {
		v, err := operation(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
