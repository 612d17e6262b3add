// Package logging provides concrete implementations of the mssqlretry.Logger
// interface and a notification sink that logs retry decisions.
//
// Available implementations:
//   - ConsoleLogger: slog with a tint handler on stderr
//   - NullLogger: Discards all messages (useful for testing)
//   - RetryLogSink: forwards retry and ignore events to any Logger
//
// All logger implementations are safe for concurrent use by multiple goroutines.
package logging
