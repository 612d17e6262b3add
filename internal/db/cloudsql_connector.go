package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"sync"

	"cloud.google.com/go/cloudsqlconn"
	cloudsqlmssql "cloud.google.com/go/cloudsqlconn/sqlserver/mssql"

	"github.com/vvka-141/mssqlretry/internal/retry"
	"github.com/vvka-141/mssqlretry/pkg/mssqlretry"
)

// CloudSQLDriverName is the database/sql driver registered for Cloud SQL.
const CloudSQLDriverName = "cloudsql-sqlserver"

var (
	cloudSQLOnce    sync.Once
	cloudSQLCleanup func() error
	cloudSQLErr     error
)

// registerCloudSQLDriver registers the Cloud SQL driver once per process.
// database/sql cannot unregister a driver, so the dialer lives until
// CloseCloudSQL is called at shutdown.
func registerCloudSQLDriver() error {
	cloudSQLOnce.Do(func() {
		cloudSQLCleanup, cloudSQLErr = cloudsqlmssql.RegisterDriver(CloudSQLDriverName, cloudsqlconn.WithLazyRefresh())
	})
	return cloudSQLErr
}

// CloseCloudSQL releases the shared Cloud SQL dialer. Safe to call when the
// driver was never registered.
func CloseCloudSQL() error {
	if cloudSQLCleanup == nil {
		return nil
	}
	return cloudSQLCleanup()
}

// CloudSQLConnector implements the Connector interface for Google Cloud SQL
// for SQL Server. The Cloud SQL connector handles TLS and instance discovery;
// authentication is a SQL login.
type CloudSQLConnector struct {
	config *mssqlretry.ConnectionConfig
	policy *retry.Policy
}

// NewCloudSQLConnector creates a connector for config.CloudSQLInstance
// (project:region:instance). A nil policy uses retry.ConnectionPolicy.
func NewCloudSQLConnector(config *mssqlretry.ConnectionConfig, policy *retry.Policy) *CloudSQLConnector {
	if policy == nil {
		policy = retry.ConnectionPolicy()
	}
	return &CloudSQLConnector{config: config, policy: policy}
}

// dsn builds the driver DSN. The host is ignored by the Cloud SQL dialer.
func (c *CloudSQLConnector) dsn() string {
	u := &url.URL{Scheme: "sqlserver", Host: "localhost"}
	if c.config.Username != "" {
		u.User = url.UserPassword(c.config.Username, c.config.Password)
	}
	query := buildQuery(c.config)
	query.Set("cloudsql", c.config.CloudSQLInstance)
	u.RawQuery = query.Encode()
	return u.String()
}

// Connect opens a pool through the Cloud SQL dialer and pings it under the
// connection policy.
func (c *CloudSQLConnector) Connect(ctx context.Context) (*sql.DB, error) {
	if c.config.CloudSQLInstance == "" {
		return nil, fmt.Errorf("Cloud SQL requires cloudsql_instance (project:region:instance): %w", mssqlretry.ErrInvalidConfig)
	}
	if err := registerCloudSQLDriver(); err != nil {
		return nil, fmt.Errorf("failed to register Cloud SQL driver: %w", err)
	}

	dsn := c.dsn()
	return openAndPing(ctx, c.policy, c.config, func() (*sql.DB, error) {
		return sql.Open(CloudSQLDriverName, dsn)
	})
}
