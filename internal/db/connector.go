package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	mssql "github.com/microsoft/go-mssqldb"

	"github.com/vvka-141/mssqlretry/internal/retry"
	"github.com/vvka-141/mssqlretry/pkg/mssqlretry"
)

// Connection pool configuration constants
const (
	// DefaultMaxOpenConns limits concurrent connections to prevent resource
	// exhaustion on small cloud tiers.
	DefaultMaxOpenConns = 5

	// DefaultMaxIdleConns keeps at least one warm connection.
	DefaultMaxIdleConns = 1

	// DefaultConnMaxIdleTime closes idle connections before the cloud
	// gateway does it for us.
	DefaultConnMaxIdleTime = 30 * time.Minute
)

func configurePool(db *sql.DB) {
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxIdleTime(DefaultConnMaxIdleTime)
}

// StandardConnector implements the Connector interface for SQL login
// authentication with automatic retry on transient failures.
type StandardConnector struct {
	config *mssqlretry.ConnectionConfig
	policy *retry.Policy
}

// NewStandardConnector creates a new StandardConnector. A nil policy uses
// retry.ConnectionPolicy.
func NewStandardConnector(config *mssqlretry.ConnectionConfig, policy *retry.Policy) *StandardConnector {
	if policy == nil {
		policy = retry.ConnectionPolicy()
	}
	return &StandardConnector{config: config, policy: policy}
}

// Connect opens a pool and pings it under the connection policy.
func (c *StandardConnector) Connect(ctx context.Context) (*sql.DB, error) {
	connector, err := mssql.NewConnector(BuildConnectionString(c.config))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %w: %w", err, mssqlretry.ErrInvalidConfig)
	}
	return openAndPing(ctx, c.policy, c.config, func() (*sql.DB, error) {
		return sql.OpenDB(connector), nil
	})
}

// openAndPing opens a fresh pool per attempt so a poisoned pool from a failed
// attempt is never reused.
func openAndPing(ctx context.Context, policy *retry.Policy, config *mssqlretry.ConnectionConfig, open func() (*sql.DB, error)) (*sql.DB, error) {
	db, err := retry.Do(ctx, policy, func(ctx context.Context) (*sql.DB, error) {
		db, err := open()
		if err != nil {
			return nil, err
		}
		configurePool(db)

		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, wrapConnectionError(err, config)
		}
		return db, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", mssqlretry.ErrConnectionFailed, err)
	}
	return db, nil
}

// NewConnector is a factory function that creates the appropriate Connector
// based on the ConnectionConfig's AuthMethod.
func NewConnector(config *mssqlretry.ConnectionConfig, policy *retry.Policy, logger mssqlretry.Logger) (mssqlretry.Connector, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.AuthMethod {
	case mssqlretry.AuthMethodStandard:
		return NewStandardConnector(config, policy), nil
	case mssqlretry.AuthMethodAzureEntraID:
		return newAzureConnector(config, policy, logger)
	case mssqlretry.AuthMethodCloudSQL:
		return NewCloudSQLConnector(config, policy), nil
	default:
		return nil, fmt.Errorf("unsupported auth method %v: %w", config.AuthMethod, mssqlretry.ErrUnsupportedAuthMethod)
	}
}

// wrapConnectionError adds actionable guidance to raw driver errors. The
// original error stays in the chain so the retry classifier still sees it.
func wrapConnectionError(err error, config *mssqlretry.ConnectionConfig) error {
	errStr := strings.ToLower(err.Error())
	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)

	switch {
	case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "actively refused"):
		return fmt.Errorf(`connection refused to %s

Possible causes:
  - SQL Server is not running or not listening on TCP
  - Wrong host or port (named instances need the SQL Browser or an explicit port)
  - Firewall blocking the connection

Original error: %w`, addr, err)

	case strings.Contains(errStr, "no such host"):
		return fmt.Errorf(`cannot resolve host "%s"

Possible causes:
  - Hostname is misspelled
  - DNS is not configured or reachable
  - Network connection issue

Original error: %w`, config.Host, err)

	case strings.Contains(errStr, "login failed"):
		return fmt.Errorf(`login failed for database "%s"

Possible causes:
  - Wrong password (check $MSSQL_PASSWORD)
  - Wrong username
  - The login has no user mapped in the database

Original error: %w`, config.Database, err)

	case strings.Contains(errStr, "cannot open database"):
		return fmt.Errorf(`database "%s" cannot be opened

Possible causes:
  - The database does not exist
  - The login is not mapped to a user in it
  - The database is offline or restoring

Original error: %w`, config.Database, err)

	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "timed out"):
		return fmt.Errorf(`connection timed out to %s

Possible causes:
  - Server is overloaded or unresponsive
  - Network latency or packet loss
  - Firewall silently dropping packets
  - Wrong host/port (server not listening)

Original error: %w`, addr, err)

	case strings.Contains(errStr, "tls") || strings.Contains(errStr, "certificate"):
		return fmt.Errorf(`TLS connection error

Possible causes:
  - Server certificate is not trusted (set trust_server_certificate for development)
  - encrypt=strict requires TDS 8.0 support on the server
  - Encryption disabled on the client but required by the server

Original error: %w`, err)

	default:
		return fmt.Errorf("failed to connect to database: %w", err)
	}
}
