package db

import (
	"fmt"
	"os"
	"strconv"

	"github.com/vvka-141/mssqlretry/internal/config"
	"github.com/vvka-141/mssqlretry/pkg/mssqlretry"
)

// GranularConnFlags represents connection parameters from CLI flags.
//
// Note: Password is NOT included as a CLI flag for security reasons.
// Use $MSSQL_PASSWORD or a connection string with an embedded password.
type GranularConnFlags struct {
	Host     string
	Port     int
	Username string
	Database string
	Encrypt  string
}

// AzureFlags represents Azure Entra ID CLI flags.
// These override the corresponding AZURE_* environment variables.
// Note: Client secret is NOT included as a CLI flag for security reasons.
// Use AZURE_CLIENT_SECRET environment variable instead.
type AzureFlags struct {
	TenantID string // Overrides AZURE_TENANT_ID
	ClientID string // Overrides AZURE_CLIENT_ID
}

// IsEmpty returns true if no Azure flags were provided.
func (a *AzureFlags) IsEmpty() bool {
	return a == nil || (a.TenantID == "" && a.ClientID == "")
}

// IsEmpty returns true if no connection-related granular flags were provided by the user.
// The database flag is excluded because it may override the database of a
// connection string.
func (g *GranularConnFlags) IsEmpty() bool {
	return g.Host == "" && g.Port == 0 && g.Username == "" && g.Encrypt == ""
}

// EnvVars represents the environment variables the CLI reads.
type EnvVars struct {
	MSSQL_HOST              string
	MSSQL_PORT              string
	MSSQL_USER              string
	MSSQL_PASSWORD          string
	MSSQL_DATABASE          string
	MSSQL_CONNECTION_STRING string

	// Azure Entra ID environment variables (Azure SDK standard names)
	AZURE_TENANT_ID     string
	AZURE_CLIENT_ID     string
	AZURE_CLIENT_SECRET string
}

// LoadFromEnvironment loads connection and cloud provider environment variables.
func LoadFromEnvironment() *EnvVars {
	return &EnvVars{
		MSSQL_HOST:              os.Getenv("MSSQL_HOST"),
		MSSQL_PORT:              os.Getenv("MSSQL_PORT"),
		MSSQL_USER:              os.Getenv("MSSQL_USER"),
		MSSQL_PASSWORD:          os.Getenv("MSSQL_PASSWORD"),
		MSSQL_DATABASE:          os.Getenv("MSSQL_DATABASE"),
		MSSQL_CONNECTION_STRING: os.Getenv("MSSQL_CONNECTION_STRING"),
		AZURE_TENANT_ID:         os.Getenv("AZURE_TENANT_ID"),
		AZURE_CLIENT_ID:         os.Getenv("AZURE_CLIENT_ID"),
		AZURE_CLIENT_SECRET:     os.Getenv("AZURE_CLIENT_SECRET"),
	}
}

// HasAzureCredentials returns true if Azure Entra ID environment variables are set.
func (e *EnvVars) HasAzureCredentials() bool {
	return e.AZURE_TENANT_ID != "" || e.AZURE_CLIENT_ID != ""
}

// ResolveConnectionParams resolves connection parameters with this precedence:
//
// 1. Connection string flag (--connection) - if provided, parse and use directly
// 2. Granular flags (--host, --port, --user, --database)
// 3. Environment variables (MSSQL_HOST, MSSQL_PORT, ...)
// 4. MSSQL_CONNECTION_STRING - fallback if no granular flags
// 5. mssqlretry.yaml connection block
// 6. Defaults (localhost:1433, master)
//
// Azure Entra ID Authentication:
// If azureFlags are provided OR Azure environment variables are set, the
// AuthMethod is set to AzureEntraID and credentials are attached to the config.
// CLI flags take precedence over environment variables.
//
// Returns an error if BOTH --connection and granular flags are provided.
func ResolveConnectionParams(
	connStringFlag string,
	granularFlags *GranularConnFlags,
	azureFlags *AzureFlags,
	envVars *EnvVars,
	projectConfig *config.ProjectConfig,
) (*mssqlretry.ConnectionConfig, error) {
	if granularFlags == nil {
		granularFlags = &GranularConnFlags{}
	}
	if azureFlags == nil {
		azureFlags = &AzureFlags{}
	}
	if envVars == nil {
		envVars = &EnvVars{}
	}

	if connStringFlag != "" && !granularFlags.IsEmpty() {
		return nil, fmt.Errorf(
			"cannot specify both --connection and granular flags (--host, --port, --user)\n"+
				"Choose one approach:\n"+
				"  1. Connection string: --connection \"sqlserver://user@localhost:1433?database=app\"\n"+
				"  2. Granular flags: --host localhost --port 1433 --user sa --database app\n"+
				"  3. Environment variables: export MSSQL_HOST=localhost MSSQL_USER=sa: %w",
			mssqlretry.ErrInvalidConfig,
		)
	}

	var pc config.ConnectionConfig
	if projectConfig != nil {
		pc = projectConfig.Connection
	}

	var cfg *mssqlretry.ConnectionConfig
	var err error

	switch {
	case connStringFlag != "":
		cfg, err = resolveFromConnectionString(connStringFlag, granularFlags, envVars)
	case granularFlags.IsEmpty() && envVars.MSSQL_CONNECTION_STRING != "":
		cfg, err = resolveFromConnectionString(envVars.MSSQL_CONNECTION_STRING, granularFlags, envVars)
	default:
		cfg, err = resolveFromGranularParams(granularFlags, envVars, pc)
	}
	if err != nil {
		return nil, err
	}

	if err := applyProjectSettings(cfg, pc); err != nil {
		return nil, err
	}
	applyAzureAuth(cfg, azureFlags, envVars)

	return cfg, nil
}

// applyProjectSettings fills fields that only the config file carries.
func applyProjectSettings(cfg *mssqlretry.ConnectionConfig, pc config.ConnectionConfig) error {
	method, err := mssqlretry.ParseAuthMethod(pc.AuthMethod)
	if err != nil {
		return fmt.Errorf("connection.auth_method: %w", err)
	}
	if cfg.AuthMethod == mssqlretry.AuthMethodStandard {
		cfg.AuthMethod = method
	}

	if cfg.Instance == "" {
		cfg.Instance = pc.Instance
	}
	if cfg.Encrypt == "" {
		cfg.Encrypt = pc.Encrypt
	}
	if !cfg.TrustServerCertificate {
		cfg.TrustServerCertificate = pc.TrustServerCertificate
	}
	if cfg.AppName == "" {
		cfg.AppName = pc.AppName
	}
	if cfg.AppName == "" {
		cfg.AppName = mssqlretry.DefaultAppName
	}
	if cfg.AzureTenantID == "" {
		cfg.AzureTenantID = pc.AzureTenantID
	}
	if cfg.AzureClientID == "" {
		cfg.AzureClientID = pc.AzureClientID
	}
	if cfg.CloudSQLInstance == "" {
		cfg.CloudSQLInstance = pc.CloudSQLInstance
	}

	if cfg.ConnectTimeout == 0 {
		timeout, err := pc.ConnectTimeoutDuration()
		if err != nil {
			return err
		}
		cfg.ConnectTimeout = timeout
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = mssqlretry.DefaultConnectTimeout
	}
	return nil
}

// applyAzureAuth sets Azure Entra ID authentication on the config if credentials are available.
// CLI flags take precedence over environment variables.
func applyAzureAuth(cfg *mssqlretry.ConnectionConfig, flags *AzureFlags, env *EnvVars) {
	tenantID := flags.TenantID
	if tenantID == "" {
		tenantID = env.AZURE_TENANT_ID
	}

	clientID := flags.ClientID
	if clientID == "" {
		clientID = env.AZURE_CLIENT_ID
	}

	if tenantID != "" || clientID != "" {
		cfg.AuthMethod = mssqlretry.AuthMethodAzureEntraID
		cfg.AzureTenantID = tenantID
		cfg.AzureClientID = clientID
	}
	if cfg.AuthMethod == mssqlretry.AuthMethodAzureEntraID && cfg.AzureClientSecret == "" {
		cfg.AzureClientSecret = env.AZURE_CLIENT_SECRET
	}
}

// resolveFromConnectionString parses a connection string. The database flag
// and MSSQL_PASSWORD fill in what the string leaves out.
func resolveFromConnectionString(connStr string, flags *GranularConnFlags, envVars *EnvVars) (*mssqlretry.ConnectionConfig, error) {
	cfg, err := ParseConnectionString(connStr)
	if err != nil {
		return nil, fmt.Errorf("invalid connection string: %w: %w", err, mssqlretry.ErrInvalidConfig)
	}

	if flags.Database != "" {
		cfg.Database = flags.Database
	}
	if cfg.Password == "" {
		cfg.Password = envVars.MSSQL_PASSWORD
	}

	return cfg, nil
}

// resolveFromGranularParams builds ConnectionConfig from granular flags,
// environment variables and the config file, in that order.
func resolveFromGranularParams(
	flags *GranularConnFlags,
	envVars *EnvVars,
	pc config.ConnectionConfig,
) (*mssqlretry.ConnectionConfig, error) {
	cfg := &mssqlretry.ConnectionConfig{
		AuthMethod:       mssqlretry.AuthMethodStandard,
		AdditionalParams: make(map[string]string),
	}

	cfg.Host = firstNonEmpty(flags.Host, envVars.MSSQL_HOST, pc.Host)
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}

	switch {
	case flags.Port != 0:
		cfg.Port = flags.Port
	case envVars.MSSQL_PORT != "":
		port, err := strconv.Atoi(envVars.MSSQL_PORT)
		if err != nil {
			return nil, fmt.Errorf("invalid $MSSQL_PORT value '%s': must be an integer: %w", envVars.MSSQL_PORT, mssqlretry.ErrInvalidConfig)
		}
		cfg.Port = port
	case pc.Port != 0:
		cfg.Port = pc.Port
	default:
		cfg.Port = mssqlretry.DefaultPort
	}

	cfg.Username = firstNonEmpty(flags.Username, envVars.MSSQL_USER, pc.Username)
	cfg.Password = envVars.MSSQL_PASSWORD
	cfg.Database = firstNonEmpty(flags.Database, envVars.MSSQL_DATABASE, pc.Database, mssqlretry.DefaultDatabase)
	cfg.Encrypt = firstNonEmpty(flags.Encrypt, pc.Encrypt)

	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
