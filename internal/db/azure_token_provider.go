package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

// tokenRefreshMargin is how long before expiry a cached token is replaced.
const tokenRefreshMargin = 5 * time.Minute

// AzureCredentialProvider acquires Azure SQL tokens from an azcore credential
// and caches them until shortly before they expire. The driver asks for a
// token on every new physical connection.
type AzureCredentialProvider struct {
	credential  azcore.TokenCredential
	description string

	mu        sync.Mutex
	token     string
	expiresOn time.Time
	now       func() time.Time
}

// NewAzureCredentialProvider wraps an existing credential.
func NewAzureCredentialProvider(credential azcore.TokenCredential, description string) *AzureCredentialProvider {
	return &AzureCredentialProvider{
		credential:  credential,
		description: description,
		now:         time.Now,
	}
}

// NewAzureServicePrincipalProvider creates a token provider for Service Principal auth.
// All three parameters (tenantID, clientID, clientSecret) are required.
func NewAzureServicePrincipalProvider(tenantID, clientID, clientSecret string) (*AzureCredentialProvider, error) {
	if tenantID == "" || clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("azure service principal requires tenantID, clientID, and clientSecret")
	}

	cred, err := azidentity.NewClientSecretCredential(tenantID, clientID, clientSecret, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}

	return NewAzureCredentialProvider(cred,
		fmt.Sprintf("AzureServicePrincipal(tenant=%s, client=%s)", tenantID, clientID)), nil
}

// NewAzureDefaultCredentialProvider uses Azure's DefaultAzureCredential chain
// (environment, workload identity, managed identity, Azure CLI, ...).
// A tenant ID narrows the chain. A client ID selects a user-assigned managed
// identity, tried ahead of the default chain.
func NewAzureDefaultCredentialProvider(tenantID, clientID string) (*AzureCredentialProvider, error) {
	defaultCred, err := azidentity.NewDefaultAzureCredential(&azidentity.DefaultAzureCredentialOptions{TenantID: tenantID})
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure default credential: %w", err)
	}
	if clientID == "" {
		return NewAzureCredentialProvider(defaultCred, "AzureDefaultCredential"), nil
	}

	managed, err := azidentity.NewManagedIdentityCredential(&azidentity.ManagedIdentityCredentialOptions{
		ID: azidentity.ClientID(clientID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure managed identity credential: %w", err)
	}
	chain, err := azidentity.NewChainedTokenCredential([]azcore.TokenCredential{managed, defaultCred}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential chain: %w", err)
	}

	return NewAzureCredentialProvider(chain,
		fmt.Sprintf("AzureDefaultCredential(managed identity client=%s)", clientID)), nil
}

func (p *AzureCredentialProvider) GetToken(ctx context.Context) (string, time.Time, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && p.now().Add(tokenRefreshMargin).Before(p.expiresOn) {
		return p.token, p.expiresOn, nil
	}

	tok, err := p.credential.GetToken(ctx, policy.TokenRequestOptions{
		Scopes: []string{AzureSQLScope},
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("azure token acquisition failed: %w", err)
	}

	p.token = tok.Token
	p.expiresOn = tok.ExpiresOn
	return p.token, p.expiresOn, nil
}

func (p *AzureCredentialProvider) String() string {
	return p.description
}

var _ TokenProvider = (*AzureCredentialProvider)(nil)
