package mssqlretry

import "time"

// Exit codes for semantic error classification.
// These follow Unix/GNU conventions:
//   - 0: Success
//   - 1: General error
//   - 2: CLI usage error (misuse of command line)
//   - 3+: Application-specific errors
const (
	ExitSuccess         = 0  // Command completed successfully
	ExitGeneralError    = 1  // Unknown or unclassified error
	ExitUsageError      = 2  // CLI usage error (missing args, invalid flags)
	ExitPanic           = 3  // Internal panic (unexpected crash)
	ExitConfigError     = 10 // Invalid configuration or parameters
	ExitConnectionError = 11 // Failed to connect to the server
	ExitExecutionFailed = 13 // SQL execution failed
)

const (
	// DefaultPort is the default SQL Server TCP port.
	DefaultPort = 1433

	// DefaultDatabase is used when no database is configured.
	DefaultDatabase = "master"

	// DefaultAppName is reported to the server as the application name.
	DefaultAppName = "mssqlretry"

	// DefaultConnectTimeout bounds a single connection attempt.
	DefaultConnectTimeout = 15 * time.Second

	// DefaultConnectionMaxRetryCount is the total number of attempts made
	// when opening a connection.
	DefaultConnectionMaxRetryCount = 5

	// DefaultConnectionMinInterval is the wait before the first connection retry.
	DefaultConnectionMinInterval = 1 * time.Second

	// DefaultConnectionMaxInterval caps the wait between connection retries.
	DefaultConnectionMaxInterval = 30 * time.Second

	// DefaultCommandMaxRetryCount is the total number of attempts made
	// when running a command.
	DefaultCommandMaxRetryCount = 3

	// DefaultCommandMinInterval is the wait before the first command retry.
	DefaultCommandMinInterval = 100 * time.Millisecond

	// DefaultCommandMaxInterval caps the wait between command retries.
	DefaultCommandMaxInterval = 10 * time.Second

	// DefaultBackoffFactor is the multiplier applied per retry.
	DefaultBackoffFactor = 2.0

	// DefaultForceApprovalCountdown is how long --force waits before dropping a database.
	DefaultForceApprovalCountdown = 5 * time.Second

	// MaxErrorPreviewLength is the maximum number of characters of a failed
	// command shown in error messages.
	MaxErrorPreviewLength = 200
)
