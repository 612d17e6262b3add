//go:build azure

package conntest

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/mssqlretry/internal/db"
	"github.com/vvka-141/mssqlretry/internal/logging"
	"github.com/vvka-141/mssqlretry/pkg/mssqlretry"
)

func requireAzureEnv(t *testing.T) (host, database string) {
	t.Helper()
	host = os.Getenv("MSSQLRETRY_AZURE_TEST_HOST")
	database = os.Getenv("MSSQLRETRY_AZURE_TEST_DB")
	if host == "" || database == "" {
		t.Skip("Azure test env vars not set (MSSQLRETRY_AZURE_TEST_HOST, MSSQLRETRY_AZURE_TEST_DB)")
	}
	return
}

func azureVersion(t *testing.T, config *mssqlretry.ConnectionConfig) string {
	t.Helper()
	connector, err := db.NewConnector(config, nil, logging.NewNullLogger())
	require.NoError(t, err)

	pool, err := connector.Connect(context.Background())
	require.NoError(t, err)
	defer pool.Close()

	var version string
	require.NoError(t, db.NewCommandExecutor(pool, nil).Get(context.Background(), &version, "SELECT @@VERSION"))
	return version
}

func TestAzure_ServicePrincipal(t *testing.T) {
	host, database := requireAzureEnv(t)

	if os.Getenv("AZURE_TENANT_ID") == "" || os.Getenv("AZURE_CLIENT_ID") == "" || os.Getenv("AZURE_CLIENT_SECRET") == "" {
		t.Skip("Azure Service Principal env vars not set")
	}

	config := &mssqlretry.ConnectionConfig{
		Host:              host,
		Port:              mssqlretry.DefaultPort,
		Database:          database,
		Encrypt:           "true",
		AuthMethod:        mssqlretry.AuthMethodAzureEntraID,
		AzureTenantID:     os.Getenv("AZURE_TENANT_ID"),
		AzureClientID:     os.Getenv("AZURE_CLIENT_ID"),
		AzureClientSecret: os.Getenv("AZURE_CLIENT_SECRET"),
	}

	assert.Contains(t, azureVersion(t, config), "Microsoft SQL Azure")
}

func TestAzure_DefaultCredential(t *testing.T) {
	host, database := requireAzureEnv(t)

	config := &mssqlretry.ConnectionConfig{
		Host:       host,
		Port:       mssqlretry.DefaultPort,
		Database:   database,
		Encrypt:    "true",
		AuthMethod: mssqlretry.AuthMethodAzureEntraID,
	}

	assert.Contains(t, azureVersion(t, config), "Microsoft SQL Azure")
}
