// Package retry decides, for every database operation, whether a failure is
// transient, how long to wait before trying again, and when to give up.
//
// # Example Usage
//
//	policy := retry.ConnectionPolicy().WithNotifier(sink)
//
//	err := policy.Execute(ctx, func(ctx context.Context) error {
//	    return db.PingContext(ctx)
//	})
//
// # Error Classification
//
// Server and transport errors are reduced to numeric codes and looked up in
// three tables: network connectivity, cloud transient (a superset of the
// network table), and a blocklist of data-transfer errors that are never
// retried. Unknown codes are not retried. A CompositeError is retryable only
// when every sub-error is.
//
// # Strategies
//
// An ErrorDetectionStrategy decides retryability for one stage of work. The
// Policy loop does not know which tables a strategy consults. Strategies that
// also implement IgnoreDetector can ask for an immediate repeat without a wait.
//
// # Backoff
//
// Delay computes clamp(factor^(attempt-1) * min, min, max) and degrades to max
// on overflow.
//
// # Thread Safety
//
// Tables, Config and Policy values are immutable and safe for concurrent use.
// AmbientNotifier is the only mutable shared value and is updated atomically.
package retry
