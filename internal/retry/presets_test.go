package retry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/mssqlretry/pkg/mssqlretry"
)

func TestPresets(t *testing.T) {
	tests := []struct {
		name         string
		policy       *Policy
		wantAttempts int
		wantMin      time.Duration
		wantMax      time.Duration
		wantFactor   float64
	}{
		{"connection", ConnectionPolicy(), mssqlretry.DefaultConnectionMaxRetryCount, time.Second, 30 * time.Second, 2.0},
		{"command", CommandPolicy(), mssqlretry.DefaultCommandMaxRetryCount, 100 * time.Millisecond, 10 * time.Second, 2.0},
		{"schema", SchemaMetadataPolicy(), SchemaMetadataMaxRetryCount, 100 * time.Millisecond, 5 * time.Second, 1.5},
		{"data-transfer", DataTransferPolicy(), 10, 500 * time.Millisecond, time.Minute, 2.0},
		{"none", NoRetryPolicy(), 1, time.Millisecond, time.Millisecond, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.policy.Config()
			assert.Equal(t, tt.name, tt.policy.Name())
			assert.Equal(t, tt.wantAttempts, cfg.MaxRetryCount())
			assert.Equal(t, tt.wantMin, cfg.MinInterval())
			assert.Equal(t, tt.wantMax, cfg.MaxInterval())
			assert.Equal(t, tt.wantFactor, cfg.BackoffFactor())
		})
	}
}

func TestPresets_Strategies(t *testing.T) {
	deadlock := NewCompositeError(SubError{Number: CodeDeadlockVictim})
	reset := NewCompositeError(SubError{Number: CodeConnectionForciblyClosed})

	assert.False(t, ConnectionPolicy().Strategy().CanRetry(deadlock))
	assert.True(t, ConnectionPolicy().Strategy().CanRetry(reset))
	assert.True(t, CommandPolicy().Strategy().CanRetry(deadlock))
	assert.False(t, NoRetryPolicy().Strategy().CanRetry(reset))

	_, ok := SchemaMetadataPolicy().Strategy().(IgnoreDetector)
	assert.True(t, ok)
}

func TestSchemaMetadataPreset_Delays(t *testing.T) {
	cfg := SchemaMetadataPolicy().Config()

	assert.Equal(t, 100*time.Millisecond, cfg.NextDelay(1))
	assert.Equal(t, 150*time.Millisecond, cfg.NextDelay(2))
	assert.Equal(t, 225*time.Millisecond, cfg.NextDelay(3))
	assert.Equal(t, 5*time.Second, cfg.NextDelay(20))
}

func TestFactory_Overrides(t *testing.T) {
	f := NewFactory()
	f.Overrides = map[Stage]Settings{
		StageCommand: {MaxRetryCount: 7, MaxInterval: 2 * time.Second},
	}

	p, err := f.Policy(StageCommand)
	require.NoError(t, err)

	assert.Equal(t, 7, p.Config().MaxRetryCount())
	assert.Equal(t, mssqlretry.DefaultCommandMinInterval, p.Config().MinInterval())
	assert.Equal(t, 2*time.Second, p.Config().MaxInterval())
}

func TestFactory_InvalidOverride(t *testing.T) {
	f := NewFactory()
	f.Overrides = map[Stage]Settings{
		StageConnection: {MinInterval: time.Minute, MaxInterval: time.Second},
	}

	_, err := f.Policy(StageConnection)
	require.Error(t, err)
	assert.True(t, errors.Is(err, mssqlretry.ErrInvalidConfig))
}

func TestFactory_UnknownStage(t *testing.T) {
	_, err := NewFactory().Policy(Stage("bogus"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, mssqlretry.ErrInvalidConfig))
}

func TestFactory_SharesSink(t *testing.T) {
	sink := &recordingSink{}
	f := NewFactory()
	f.Sink = sink

	for _, stage := range []Stage{StageConnection, StageCommand} {
		p, err := f.Policy(stage)
		require.NoError(t, err)
		p.sink.Retrying(RetryEvent{Policy: p.Name()})
	}

	require.Len(t, sink.retries, 2)
	assert.Equal(t, "connection", sink.retries[0].Policy)
	assert.Equal(t, "command", sink.retries[1].Policy)
}

func TestPresetPolicies_ReportToAmbient(t *testing.T) {
	sink := &recordingSink{}
	Ambient.Set(sink)
	t.Cleanup(func() { Ambient.Set(nil) })

	p := CommandPolicy()
	p.sink.Retrying(RetryEvent{Policy: p.Name()})

	require.Len(t, sink.retries, 1)
	assert.Equal(t, "command", sink.retries[0].Policy)
}
