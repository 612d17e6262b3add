// Package manager provides database lifecycle operations for SQL Server.
//
// The manager package offers high-level operations for managing databases:
//   - Checking database existence
//   - Creating new databases
//   - Dropping existing databases
//   - Closing active sessions
//
// Statements run through a Runner (normally a *db.CommandExecutor), so each
// one is retried under the command policy. Create and Drop are guarded by a
// DB_ID check, which makes a repeated attempt harmless.
//
// Names are bracket-quoted and embedded literals are N'' escaped, so names
// with spaces, quotes or brackets are handled without injection.
//
// # Example Usage
//
//	mgr := manager.New(db.NewCommandExecutor(pool, nil))
//
//	exists, err := mgr.Exists(ctx, "orders")
//	err = mgr.Create(ctx, "orders")
//
//	// Drop a database (close sessions first)
//	err = mgr.CloseSessions(ctx, "orders")
//	err = mgr.Drop(ctx, "orders")
//
// # Thread Safety
//
// Manager holds no state of its own and is safe for concurrent use when its
// Runner is.
package manager
