package mssqlretry

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ConnectionConfig represents resolved connection parameters.
type ConnectionConfig struct {
	Host     string
	Port     int
	Instance string
	Database string
	Username string
	Password string

	// Encrypt is passed through to the driver ("true", "false", "strict", "disable").
	Encrypt                string
	TrustServerCertificate bool

	// AuthMethod indicates the authentication mechanism to use
	AuthMethod AuthMethod

	AppName          string
	ConnectTimeout   time.Duration
	AdditionalParams map[string]string

	// Azure Entra ID authentication parameters (used when AuthMethod is AuthMethodAzureEntraID).
	// If all three are provided, Service Principal authentication is used.
	// Otherwise the DefaultAzureCredential chain is used (env vars, managed identity, CLI, etc.)
	AzureTenantID     string
	AzureClientID     string
	AzureClientSecret string

	// CloudSQLInstance is the Cloud SQL instance connection name
	// (project:region:instance), used when AuthMethod is AuthMethodCloudSQL.
	CloudSQLInstance string
}

// Validate checks that the configuration can be used to open a connection.
// It returns a multi-error if multiple validation failures occur.
func (c *ConnectionConfig) Validate() error {
	var errs []error

	if !c.AuthMethod.IsValid() {
		errs = append(errs, fmt.Errorf("auth method %v: %w", c.AuthMethod, ErrUnsupportedAuthMethod))
	}

	switch c.AuthMethod {
	case AuthMethodCloudSQL:
		if c.CloudSQLInstance == "" {
			errs = append(errs, fmt.Errorf("CloudSQLInstance is required for Cloud SQL: %w", ErrInvalidConfig))
		}
	default:
		if c.Host == "" {
			errs = append(errs, fmt.Errorf("Host is required: %w", ErrInvalidConfig))
		}
	}

	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range: %w", c.Port, ErrInvalidConfig))
	}

	if c.ConnectTimeout < 0 {
		errs = append(errs, fmt.Errorf("connect timeout cannot be negative: %w", ErrInvalidConfig))
	}

	return errors.Join(errs...)
}

// AuthMethod represents the type of authentication to use.
type AuthMethod int

const (
	AuthMethodStandard     AuthMethod = iota // SQL login (username/password)
	AuthMethodAzureEntraID                   // Azure Active Directory (Entra ID) access token
	AuthMethodCloudSQL                       // Google Cloud SQL for SQL Server
)

// String returns a human-readable string representation of the AuthMethod.
func (a AuthMethod) String() string {
	switch a {
	case AuthMethodStandard:
		return "Standard"
	case AuthMethodAzureEntraID:
		return "Azure Entra ID"
	case AuthMethodCloudSQL:
		return "Cloud SQL"
	default:
		return fmt.Sprintf("Unknown(%d)", a)
	}
}

// IsValid returns true if the AuthMethod is a valid, defined value.
func (a AuthMethod) IsValid() bool {
	return a >= AuthMethodStandard && a <= AuthMethodCloudSQL
}

// ParseAuthMethod converts a configuration value into an AuthMethod.
// An empty string selects AuthMethodStandard.
func ParseAuthMethod(s string) (AuthMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard", "sql":
		return AuthMethodStandard, nil
	case "azure", "entra", "azure-entra-id":
		return AuthMethodAzureEntraID, nil
	case "cloudsql", "google":
		return AuthMethodCloudSQL, nil
	default:
		return AuthMethodStandard, fmt.Errorf("%q: %w", s, ErrUnsupportedAuthMethod)
	}
}
