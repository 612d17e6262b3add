package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/mssqlretry/pkg/mssqlretry"
)

type mockTokenProvider struct {
	token     string
	expiresOn time.Time
	err       error
}

func (m *mockTokenProvider) GetToken(context.Context) (string, time.Time, error) {
	return m.token, m.expiresOn, m.err
}

func (m *mockTokenProvider) String() string { return "MockTokenProvider" }

type fakeCredential struct {
	calls  int
	scopes []string
	ttl    time.Duration
	err    error
}

func (f *fakeCredential) GetToken(_ context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error) {
	f.calls++
	f.scopes = opts.Scopes
	if f.err != nil {
		return azcore.AccessToken{}, f.err
	}
	return azcore.AccessToken{
		Token:     fmt.Sprintf("token-%d", f.calls),
		ExpiresOn: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC).Add(f.ttl),
	}, nil
}

type recordingLogger struct {
	lines []string
}

func (l *recordingLogger) Verbose(format string, args ...interface{}) {
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Info(format string, args ...interface{}) {
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Error(format string, args ...interface{}) {
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func TestAzureEntraIDConnector_AccessToken(t *testing.T) {
	provider := &mockTokenProvider{token: "abc", expiresOn: time.Now().Add(time.Hour)}
	logger := &recordingLogger{}
	c := NewAzureEntraIDConnector(&mssqlretry.ConnectionConfig{Host: "x.database.windows.net"}, provider, nil, logger)

	token, err := c.accessToken(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "abc", token)
	assert.Empty(t, logger.lines)
}

func TestAzureEntraIDConnector_AccessTokenNearExpiryWarns(t *testing.T) {
	provider := &mockTokenProvider{token: "abc", expiresOn: time.Now().Add(time.Minute)}
	logger := &recordingLogger{}
	c := NewAzureEntraIDConnector(&mssqlretry.ConnectionConfig{}, provider, nil, logger)

	_, err := c.accessToken(context.Background())

	require.NoError(t, err)
	require.Len(t, logger.lines, 1)
	assert.True(t, strings.HasPrefix(logger.lines[0], "Warning: Azure token expires in"))
}

func TestAzureEntraIDConnector_AccessTokenError(t *testing.T) {
	cause := errors.New("credential unavailable")
	c := NewAzureEntraIDConnector(&mssqlretry.ConnectionConfig{}, &mockTokenProvider{err: cause}, nil, nil)

	_, err := c.accessToken(context.Background())

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "MockTokenProvider")
}

func TestAzureCredentialProvider_CachesUntilRefreshMargin(t *testing.T) {
	cred := &fakeCredential{ttl: time.Hour}
	p := NewAzureCredentialProvider(cred, "fake")
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	tok, _, err := p.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-1", tok)
	assert.Equal(t, []string{AzureSQLScope}, cred.scopes)

	now = now.Add(50 * time.Minute)
	tok, _, err = p.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-1", tok)

	now = now.Add(6 * time.Minute)
	tok, _, err = p.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-2", tok)
	assert.Equal(t, 2, cred.calls)
}

func TestAzureCredentialProvider_Error(t *testing.T) {
	p := NewAzureCredentialProvider(&fakeCredential{err: errors.New("no identity")}, "fake")

	_, _, err := p.GetToken(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "azure token acquisition failed")
	assert.Equal(t, "fake", p.String())
}

func TestNewAzureServicePrincipalProvider_RequiresAllFields(t *testing.T) {
	_, err := NewAzureServicePrincipalProvider("tenant", "", "secret")
	assert.Error(t, err)
}

func TestNewConnector_AzureServicePrincipal(t *testing.T) {
	logger := &recordingLogger{}
	c, err := NewConnector(&mssqlretry.ConnectionConfig{
		Host:              "srv.database.windows.net",
		Port:              1433,
		AuthMethod:        mssqlretry.AuthMethodAzureEntraID,
		AzureTenantID:     "00000000-0000-0000-0000-000000000001",
		AzureClientID:     "00000000-0000-0000-0000-000000000002",
		AzureClientSecret: "secret",
	}, nil, logger)

	require.NoError(t, err)
	azure, ok := c.(*AzureEntraIDConnector)
	require.True(t, ok)
	assert.Contains(t, azure.tokenProvider.String(), "AzureServicePrincipal(tenant=00000000-0000-0000-0000-000000000001")
	require.Len(t, logger.lines, 1)
}

func TestNewAzureDefaultCredentialProvider(t *testing.T) {
	tests := []struct {
		name     string
		tenantID string
		clientID string
		wantDesc string
	}{
		{"default chain", "", "", "AzureDefaultCredential"},
		{"tenant only", "00000000-0000-0000-0000-000000000001", "", "AzureDefaultCredential"},
		{
			name:     "user-assigned managed identity",
			tenantID: "00000000-0000-0000-0000-000000000001",
			clientID: "00000000-0000-0000-0000-000000000002",
			wantDesc: "AzureDefaultCredential(managed identity client=00000000-0000-0000-0000-000000000002)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewAzureDefaultCredentialProvider(tt.tenantID, tt.clientID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDesc, p.String())
			assert.NotNil(t, p.credential)
		})
	}
}

func TestNewConnector_AzureManagedIdentityClientID(t *testing.T) {
	c, err := NewConnector(&mssqlretry.ConnectionConfig{
		Host:          "srv.database.windows.net",
		Port:          1433,
		AuthMethod:    mssqlretry.AuthMethodAzureEntraID,
		AzureClientID: "00000000-0000-0000-0000-000000000002",
	}, nil, &recordingLogger{})

	require.NoError(t, err)
	azure, ok := c.(*AzureEntraIDConnector)
	require.True(t, ok)
	assert.Contains(t, azure.tokenProvider.String(), "managed identity client=00000000-0000-0000-0000-000000000002")
}
