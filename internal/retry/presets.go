package retry

import (
	"fmt"
	"time"

	"github.com/vvka-141/mssqlretry/pkg/mssqlretry"
)

// Stage names the kind of work a policy protects.
type Stage string

const (
	StageConnection     Stage = "connection"
	StageCommand        Stage = "command"
	StageSchemaMetadata Stage = "schema"
	StageDataTransfer   Stage = "data-transfer"
	StageNone           Stage = "none"
)

// Schema-metadata preset.
const (
	SchemaMetadataMaxRetryCount = 6
	SchemaMetadataMinInterval   = 100 * time.Millisecond
	SchemaMetadataMaxInterval   = 5 * time.Second
	SchemaMetadataFactor        = 1.5
)

// Settings overrides a stage preset. Zero fields keep the preset value.
type Settings struct {
	MaxRetryCount int
	MinInterval   time.Duration
	MaxInterval   time.Duration
	BackoffFactor float64
}

func presetSettings(stage Stage) (Settings, bool) {
	switch stage {
	case StageConnection:
		return Settings{
			MaxRetryCount: mssqlretry.DefaultConnectionMaxRetryCount,
			MinInterval:   mssqlretry.DefaultConnectionMinInterval,
			MaxInterval:   mssqlretry.DefaultConnectionMaxInterval,
			BackoffFactor: mssqlretry.DefaultBackoffFactor,
		}, true
	case StageCommand:
		return Settings{
			MaxRetryCount: mssqlretry.DefaultCommandMaxRetryCount,
			MinInterval:   mssqlretry.DefaultCommandMinInterval,
			MaxInterval:   mssqlretry.DefaultCommandMaxInterval,
			BackoffFactor: mssqlretry.DefaultBackoffFactor,
		}, true
	case StageSchemaMetadata:
		return Settings{
			MaxRetryCount: SchemaMetadataMaxRetryCount,
			MinInterval:   SchemaMetadataMinInterval,
			MaxInterval:   SchemaMetadataMaxInterval,
			BackoffFactor: SchemaMetadataFactor,
		}, true
	case StageDataTransfer:
		return Settings{
			MaxRetryCount: 10,
			MinInterval:   500 * time.Millisecond,
			MaxInterval:   time.Minute,
			BackoffFactor: mssqlretry.DefaultBackoffFactor,
		}, true
	case StageNone:
		return Settings{
			MaxRetryCount: 1,
			MinInterval:   time.Millisecond,
			MaxInterval:   time.Millisecond,
			BackoffFactor: 1,
		}, true
	}
	return Settings{}, false
}

func (s Settings) merge(over Settings) Settings {
	if over.MaxRetryCount > 0 {
		s.MaxRetryCount = over.MaxRetryCount
	}
	if over.MinInterval > 0 {
		s.MinInterval = over.MinInterval
	}
	if over.MaxInterval > 0 {
		s.MaxInterval = over.MaxInterval
	}
	if over.BackoffFactor > 0 {
		s.BackoffFactor = over.BackoffFactor
	}
	return s
}

// Config builds the retry configuration described by s.
func (s Settings) Config() *Config {
	return NewConfig(s.MaxRetryCount,
		WithMinInterval(s.MinInterval),
		WithMaxInterval(s.MaxInterval),
		WithBackoffFactor(s.BackoffFactor),
	)
}

// Factory builds stage policies that share a classifier, platform and sink.
type Factory struct {
	Classifier *Classifier
	Platform   Platform
	Sink       NotificationSink
	Overrides  map[Stage]Settings
}

// NewFactory returns a factory for the current platform reporting to Ambient.
func NewFactory() *Factory {
	return &Factory{Classifier: DefaultClassifier, Platform: CurrentPlatform(), Sink: Ambient}
}

// Settings returns the effective settings for stage.
func (f *Factory) Settings(stage Stage) (Settings, error) {
	base, ok := presetSettings(stage)
	if !ok {
		return Settings{}, fmt.Errorf("unknown retry stage %q: %w", stage, mssqlretry.ErrInvalidConfig)
	}
	return base.merge(f.Overrides[stage]), nil
}

// Policy builds the policy for stage.
func (f *Factory) Policy(stage Stage) (*Policy, error) {
	settings, err := f.Settings(stage)
	if err != nil {
		return nil, err
	}

	classifier := classifierOrDefault(f.Classifier)
	platform := f.Platform
	if platform == "" {
		platform = CurrentPlatform()
	}

	var strategy ErrorDetectionStrategy
	switch stage {
	case StageConnection:
		strategy = &NetworkConnectivityStrategy{Classifier: classifier, Platform: platform}
	case StageSchemaMetadata:
		s := NewSchemaMetadataStrategy()
		s.Classifier = classifier
		strategy = s
	case StageNone:
		strategy = neverRetry{}
	default:
		strategy = &CloudTransientStrategy{Classifier: classifier}
	}

	p, err := NewPolicy(string(stage), settings.Config(), strategy)
	if err != nil {
		return nil, fmt.Errorf("%s retry policy: %w", stage, err)
	}
	return p.WithNotifier(f.Sink), nil
}

func presetPolicy(stage Stage) *Policy {
	p, err := NewFactory().Policy(stage)
	if err != nil {
		panic(err)
	}
	return p
}

// ConnectionPolicy retries transport failures while opening a connection.
func ConnectionPolicy() *Policy { return presetPolicy(StageConnection) }

// CommandPolicy retries transient failures while running a command.
func CommandPolicy() *Policy { return presetPolicy(StageCommand) }

// SchemaMetadataPolicy retries catalog reads and repeats benign metadata races.
func SchemaMetadataPolicy() *Policy { return presetPolicy(StageSchemaMetadata) }

// DataTransferPolicy retries bulk data movement with a longer budget.
func DataTransferPolicy() *Policy { return presetPolicy(StageDataTransfer) }

// NoRetryPolicy makes exactly one attempt.
func NoRetryPolicy() *Policy { return presetPolicy(StageNone) }
