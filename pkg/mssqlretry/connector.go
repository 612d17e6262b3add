package mssqlretry

import (
	"context"
	"database/sql"
)

// Connector is a unified interface for establishing database connections.
// Different implementations handle the supported authentication methods
// (SQL login, Azure Entra ID tokens, Cloud SQL).
type Connector interface {
	// Connect opens and verifies a connection pool to the server.
	// The returned pool should be closed by the caller when done.
	Connect(ctx context.Context) (*sql.DB, error)
}
