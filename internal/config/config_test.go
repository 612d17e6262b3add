package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/mssqlretry/internal/retry"
	"github.com/vvka-141/mssqlretry/pkg/mssqlretry"
)

func TestLoad_AllFields(t *testing.T) {
	dir := t.TempDir()
	content := `connection:
  host: myhost
  port: 1434
  instance: SQLEXPRESS
  username: myuser
  database: mydb
  encrypt: strict
  trust_server_certificate: true
  app_name: loader
  auth_method: azure
  azure_tenant_id: tenant
  azure_client_id: client
  connect_timeout: 20s

retry:
  connection:
    max_retry_count: 8
    min_interval: 2s
    max_interval: 1m
    backoff_factor: 3
  command:
    max_retry_count: 4

platform: windows
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "myhost", cfg.Connection.Host)
	assert.Equal(t, 1434, cfg.Connection.Port)
	assert.Equal(t, "SQLEXPRESS", cfg.Connection.Instance)
	assert.Equal(t, "myuser", cfg.Connection.Username)
	assert.Equal(t, "mydb", cfg.Connection.Database)
	assert.Equal(t, "strict", cfg.Connection.Encrypt)
	assert.True(t, cfg.Connection.TrustServerCertificate)
	assert.Equal(t, "loader", cfg.Connection.AppName)
	assert.Equal(t, "azure", cfg.Connection.AuthMethod)
	assert.Equal(t, "tenant", cfg.Connection.AzureTenantID)
	assert.Equal(t, "client", cfg.Connection.AzureClientID)
	assert.Equal(t, 8, cfg.Retry.Connection.MaxRetryCount)
	assert.Equal(t, "2s", cfg.Retry.Connection.MinInterval)
	assert.Equal(t, 3.0, cfg.Retry.Connection.BackoffFactor)
	assert.Equal(t, 4, cfg.Retry.Command.MaxRetryCount)
	assert.Equal(t, "windows", cfg.Platform)

	timeout, err := cfg.Connection.ConnectTimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 20*time.Second, timeout)
}

func TestLoad_MinimalYAML(t *testing.T) {
	dir := t.TempDir()
	content := `connection:
  database: app
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "", cfg.Connection.Host)
	assert.Equal(t, 0, cfg.Connection.Port)
	assert.Equal(t, "app", cfg.Connection.Database)
	assert.Zero(t, cfg.Retry.Connection.MaxRetryCount)
}

func TestLoad_FileNotFound(t *testing.T) {
	cfg, err := Load(t.TempDir())
	assert.True(t, errors.Is(err, ErrConfigNotFound), "expected ErrConfigNotFound, got: %v", err)
	assert.Nil(t, cfg)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("{{invalid"), 0644))

	cfg, err := Load(dir)
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestRetryConfig_Overrides(t *testing.T) {
	rc := RetryConfig{
		Connection: StageConfig{MaxRetryCount: 8, MinInterval: "2s", MaxInterval: "1m", BackoffFactor: 3},
		Schema:     StageConfig{MaxInterval: "500ms"},
	}

	overrides, err := rc.Overrides()
	require.NoError(t, err)

	assert.Equal(t, retry.Settings{MaxRetryCount: 8, MinInterval: 2 * time.Second, MaxInterval: time.Minute, BackoffFactor: 3},
		overrides[retry.StageConnection])
	assert.Equal(t, retry.Settings{MaxInterval: 500 * time.Millisecond}, overrides[retry.StageSchemaMetadata])
	assert.Equal(t, retry.Settings{}, overrides[retry.StageCommand])
}

func TestRetryConfig_OverridesFeedFactory(t *testing.T) {
	overrides, err := RetryConfig{Command: StageConfig{MaxRetryCount: 9}}.Overrides()
	require.NoError(t, err)

	f := retry.NewFactory()
	f.Overrides = overrides
	p, err := f.Policy(retry.StageCommand)
	require.NoError(t, err)

	assert.Equal(t, 9, p.Config().MaxRetryCount())
	assert.Equal(t, mssqlretry.DefaultCommandMinInterval, p.Config().MinInterval())
}

func TestRetryConfig_InvalidDuration(t *testing.T) {
	tests := []struct {
		name string
		rc   RetryConfig
	}{
		{"garbage", RetryConfig{Command: StageConfig{MinInterval: "soon"}}},
		{"missing unit", RetryConfig{Connection: StageConfig{MaxInterval: "10"}}},
		{"negative", RetryConfig{Schema: StageConfig{MinInterval: "-1s"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.rc.Overrides()
			require.Error(t, err)
			assert.True(t, errors.Is(err, mssqlretry.ErrInvalidConfig))
		})
	}
}

func TestStageConfig_RejectsNegativeNumbers(t *testing.T) {
	tests := []struct {
		name  string
		sc    StageConfig
		field string
	}{
		{"max retry count", StageConfig{MaxRetryCount: -1}, "max_retry_count"},
		{"backoff factor", StageConfig{BackoffFactor: -2}, "backoff_factor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.sc.Settings()
			require.Error(t, err)
			assert.ErrorIs(t, err, mssqlretry.ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.field)

			_, err = RetryConfig{DataTransfer: tt.sc}.Overrides()
			assert.ErrorIs(t, err, mssqlretry.ErrInvalidConfig)
		})
	}
}
