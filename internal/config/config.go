package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vvka-141/mssqlretry/internal/retry"
	"github.com/vvka-141/mssqlretry/pkg/mssqlretry"
)

// ErrConfigNotFound is returned when the config file does not exist.
// Callers can check for this with errors.Is(err, config.ErrConfigNotFound).
var ErrConfigNotFound = errors.New("config file not found")

type ConnectionConfig struct {
	Host                   string `yaml:"host"`
	Port                   int    `yaml:"port"`
	Instance               string `yaml:"instance,omitempty"`
	Username               string `yaml:"username"`
	Database               string `yaml:"database"`
	Encrypt                string `yaml:"encrypt,omitempty"`
	TrustServerCertificate bool   `yaml:"trust_server_certificate,omitempty"`
	AppName                string `yaml:"app_name,omitempty"`
	AuthMethod             string `yaml:"auth_method,omitempty"`
	AzureTenantID          string `yaml:"azure_tenant_id,omitempty"`
	AzureClientID          string `yaml:"azure_client_id,omitempty"`
	CloudSQLInstance       string `yaml:"cloudsql_instance,omitempty"`
	ConnectTimeout         string `yaml:"connect_timeout,omitempty"`
}

// StageConfig overrides the preset of one retry stage. Empty fields keep the preset.
type StageConfig struct {
	MaxRetryCount int     `yaml:"max_retry_count,omitempty"`
	MinInterval   string  `yaml:"min_interval,omitempty"`
	MaxInterval   string  `yaml:"max_interval,omitempty"`
	BackoffFactor float64 `yaml:"backoff_factor,omitempty"`
}

type RetryConfig struct {
	Connection   StageConfig `yaml:"connection"`
	Command      StageConfig `yaml:"command"`
	Schema       StageConfig `yaml:"schema"`
	DataTransfer StageConfig `yaml:"data_transfer"`
}

type ProjectConfig struct {
	Connection ConnectionConfig `yaml:"connection"`
	Retry      RetryConfig      `yaml:"retry"`
	// Platform overrides the detected client platform ("windows", "linux", ...).
	Platform string `yaml:"platform,omitempty"`
}

const ConfigFileName = "mssqlretry.yaml"

func Load(sourcePath string) (*ProjectConfig, error) {
	configPath := filepath.Join(sourcePath, ConfigFileName)
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Settings converts the stage block into retry settings.
func (s StageConfig) Settings() (retry.Settings, error) {
	if s.MaxRetryCount < 0 {
		return retry.Settings{}, fmt.Errorf("max_retry_count %d cannot be negative: %w", s.MaxRetryCount, mssqlretry.ErrInvalidConfig)
	}
	if s.BackoffFactor < 0 {
		return retry.Settings{}, fmt.Errorf("backoff_factor %g cannot be negative: %w", s.BackoffFactor, mssqlretry.ErrInvalidConfig)
	}
	minInterval, err := parseDuration("min_interval", s.MinInterval)
	if err != nil {
		return retry.Settings{}, err
	}
	maxInterval, err := parseDuration("max_interval", s.MaxInterval)
	if err != nil {
		return retry.Settings{}, err
	}
	return retry.Settings{
		MaxRetryCount: s.MaxRetryCount,
		MinInterval:   minInterval,
		MaxInterval:   maxInterval,
		BackoffFactor: s.BackoffFactor,
	}, nil
}

// Overrides returns per-stage retry settings for retry.Factory.
func (r RetryConfig) Overrides() (map[retry.Stage]retry.Settings, error) {
	stages := map[retry.Stage]StageConfig{
		retry.StageConnection:     r.Connection,
		retry.StageCommand:        r.Command,
		retry.StageSchemaMetadata: r.Schema,
		retry.StageDataTransfer:   r.DataTransfer,
	}

	out := make(map[retry.Stage]retry.Settings, len(stages))
	for stage, sc := range stages {
		s, err := sc.Settings()
		if err != nil {
			return nil, fmt.Errorf("retry.%s: %w", stage, err)
		}
		out[stage] = s
	}
	return out, nil
}

// ConnectTimeoutDuration parses connect_timeout; zero means unset.
func (c ConnectionConfig) ConnectTimeoutDuration() (time.Duration, error) {
	return parseDuration("connect_timeout", c.ConnectTimeout)
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, value, mssqlretry.ErrInvalidConfig)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s %q cannot be negative: %w", field, value, mssqlretry.ErrInvalidConfig)
	}
	return d, nil
}
