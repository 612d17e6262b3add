package cli

import (
	"context"
	"database/sql"

	"github.com/spf13/cobra"

	"github.com/vvka-141/mssqlretry/internal/config"
	"github.com/vvka-141/mssqlretry/internal/db"
	"github.com/vvka-141/mssqlretry/internal/retry"
	"github.com/vvka-141/mssqlretry/pkg/mssqlretry"
)

// connectionFlags holds the common connection-related flag values.
type connectionFlags struct {
	connection      string
	host            string
	port            int
	username        string
	database        string
	encrypt         string
	trustServerCert bool
	azureTenantID   string
	azureClientID   string
}

// connFlags is shared by every command that talks to a server; only one
// command runs per process.
var connFlags connectionFlags

func resetConnFlags() {
	connFlags = connectionFlags{}
}

// addConnectionFlags registers the connection flags on cmd.
func addConnectionFlags(cmd *cobra.Command, f *connectionFlags) {
	flags := cmd.Flags()
	flags.StringVarP(&f.connection, "connection", "c", "", "Connection string (sqlserver:// URL or ADO.NET key=value)")
	flags.StringVar(&f.host, "host", "", "Server host (overrides $MSSQL_HOST)")
	flags.IntVarP(&f.port, "port", "p", 0, "Server port (overrides $MSSQL_PORT)")
	flags.StringVarP(&f.username, "user", "U", "", "SQL login (overrides $MSSQL_USER)")
	flags.StringVarP(&f.database, "database", "d", "", "Database (overrides $MSSQL_DATABASE)")
	flags.StringVar(&f.encrypt, "encrypt", "", "Encryption mode: true, false, strict, disable")
	flags.BoolVar(&f.trustServerCert, "trust-server-certificate", false, "Skip server certificate validation (development only)")
	flags.StringVar(&f.azureTenantID, "azure-tenant-id", "", "Azure tenant for Entra ID auth (overrides $AZURE_TENANT_ID)")
	flags.StringVar(&f.azureClientID, "azure-client-id", "", "Azure client for Entra ID auth (overrides $AZURE_CLIENT_ID)")

	_ = cmd.RegisterFlagCompletionFunc("encrypt", completeEncryptModes)
}

// resolveConnectionFromFlags resolves connection configuration from flags,
// environment and project config, and validates the result.
func resolveConnectionFromFlags(f connectionFlags, projectCfg *config.ProjectConfig) (*mssqlretry.ConnectionConfig, error) {
	granularFlags := &db.GranularConnFlags{
		Host:     f.host,
		Port:     f.port,
		Username: f.username,
		Database: f.database,
		Encrypt:  f.encrypt,
	}

	azureFlags := &db.AzureFlags{
		TenantID: f.azureTenantID,
		ClientID: f.azureClientID,
	}

	connConfig, err := db.ResolveConnectionParams(f.connection, granularFlags, azureFlags, db.LoadFromEnvironment(), projectCfg)
	if err != nil {
		return nil, err
	}
	if f.trustServerCert {
		connConfig.TrustServerCertificate = true
	}

	if err := connConfig.Validate(); err != nil {
		return nil, err
	}
	return connConfig, nil
}

// connect resolves the connection and opens a pool under the connection policy.
func (e *commandEnv) connect(ctx context.Context, f connectionFlags) (*sql.DB, *mssqlretry.ConnectionConfig, error) {
	connConfig, err := resolveConnectionFromFlags(f, e.project)
	if err != nil {
		return nil, nil, err
	}
	e.logConnection(connConfig)

	policy, err := e.policy(retry.StageConnection)
	if err != nil {
		return nil, nil, err
	}

	connector, err := db.NewConnector(connConfig, policy, e.logger)
	if err != nil {
		return nil, nil, err
	}

	pool, err := connector.Connect(ctx)
	if err != nil {
		return nil, nil, e.reportFailure(err)
	}
	return pool, connConfig, nil
}

// logConnection logs connection details when verbose mode is enabled.
func (e *commandEnv) logConnection(connConfig *mssqlretry.ConnectionConfig) {
	e.logger.Verbose("Connection resolved:")
	e.logger.Verbose("  Server: %s", db.MaskedConnectionString(connConfig))
	e.logger.Verbose("  Database: %s", connConfig.Database)
	e.logger.Verbose("  Auth Method: %s", connConfig.AuthMethod)
	if connConfig.CloudSQLInstance != "" {
		e.logger.Verbose("  Cloud SQL Instance: %s", connConfig.CloudSQLInstance)
	}
}
