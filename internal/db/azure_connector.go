package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	mssql "github.com/microsoft/go-mssqldb"

	"github.com/vvka-141/mssqlretry/internal/retry"
	"github.com/vvka-141/mssqlretry/pkg/mssqlretry"
)

// AzureEntraIDConnector implements the Connector interface for Azure Entra ID
// authentication. The driver calls back into the TokenProvider for every new
// physical connection, so pooled connections outlive a single token.
type AzureEntraIDConnector struct {
	config        *mssqlretry.ConnectionConfig
	tokenProvider TokenProvider
	policy        *retry.Policy
	logger        mssqlretry.Logger
}

// NewAzureEntraIDConnector creates a connector for Azure Entra ID authentication.
// A nil policy uses retry.ConnectionPolicy.
func NewAzureEntraIDConnector(config *mssqlretry.ConnectionConfig, tokenProvider TokenProvider, policy *retry.Policy, logger mssqlretry.Logger) *AzureEntraIDConnector {
	if policy == nil {
		policy = retry.ConnectionPolicy()
	}
	return &AzureEntraIDConnector{
		config:        config,
		tokenProvider: tokenProvider,
		policy:        policy,
		logger:        logger,
	}
}

// accessToken adapts the TokenProvider to the driver's callback.
func (c *AzureEntraIDConnector) accessToken(ctx context.Context) (string, error) {
	token, expiresOn, err := c.tokenProvider.GetToken(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to acquire token from %s: %w", c.tokenProvider, err)
	}
	if left := time.Until(expiresOn); left < tokenRefreshMargin && c.logger != nil {
		c.logger.Info("Warning: Azure token expires in %v", left.Round(time.Second))
	}
	return token, nil
}

// Connect opens a token-authenticated pool and pings it under the connection policy.
func (c *AzureEntraIDConnector) Connect(ctx context.Context) (*sql.DB, error) {
	// The token replaces SQL login credentials.
	tokenConfig := *c.config
	tokenConfig.Username = ""
	tokenConfig.Password = ""

	connector, err := mssql.NewConnectorWithAccessTokenProvider(BuildConnectionString(&tokenConfig), c.accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %w: %w", err, mssqlretry.ErrInvalidConfig)
	}
	return openAndPing(ctx, c.policy, c.config, func() (*sql.DB, error) {
		return sql.OpenDB(connector), nil
	})
}

// newAzureConnector picks Service Principal auth when a full set of explicit
// credentials is present, and the DefaultAzureCredential chain otherwise.
func newAzureConnector(config *mssqlretry.ConnectionConfig, policy *retry.Policy, logger mssqlretry.Logger) (mssqlretry.Connector, error) {
	var provider TokenProvider
	var err error

	if config.AzureTenantID != "" && config.AzureClientID != "" && config.AzureClientSecret != "" {
		provider, err = NewAzureServicePrincipalProvider(config.AzureTenantID, config.AzureClientID, config.AzureClientSecret)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure Service Principal provider: %w", err)
		}
	} else {
		provider, err = NewAzureDefaultCredentialProvider(config.AzureTenantID, config.AzureClientID)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure Default Credential provider: %w", err)
		}
	}

	if logger != nil {
		logger.Verbose("Using %s for Azure Entra ID authentication", provider)
	}
	return NewAzureEntraIDConnector(config, provider, policy, logger), nil
}
