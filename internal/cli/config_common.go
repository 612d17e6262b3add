package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vvka-141/mssqlretry/internal/config"
	"github.com/vvka-141/mssqlretry/internal/db"
	"github.com/vvka-141/mssqlretry/internal/logging"
	"github.com/vvka-141/mssqlretry/internal/metrics"
	"github.com/vvka-141/mssqlretry/internal/retry"
	"github.com/vvka-141/mssqlretry/internal/tui"
)

const metricsShutdownTimeout = 2 * time.Second

// commandEnv is the wiring shared by every command: logger, project file,
// policy factory and the sinks retry events are reported to.
type commandEnv struct {
	logger   *logging.ConsoleLogger
	project  *config.ProjectConfig
	factory  *retry.Factory
	registry *prometheus.Registry
	server   *metrics.Server
	printer  *tui.Printer
}

// newCommandEnv loads configuration and fills the ambient retry slot with a
// log sink and a metrics sink. Callers must Close the result.
func newCommandEnv(cmd *cobra.Command) (*commandEnv, error) {
	logger := logging.NewConsoleLoggerTo(cmd.ErrOrStderr(), getVerboseFlag(cmd), tui.ColorEnabled(cmd.ErrOrStderr()))

	project, err := loadProjectConfig(getStringFlag(cmd, "config-dir"))
	if err != nil {
		return nil, err
	}

	factory, err := newPolicyFactory(project)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	retry.Ambient.Set(retry.MultiSink{
		logging.NewRetryLogSink(logger),
		metrics.NewSink(registry),
	})

	env := &commandEnv{
		logger:   logger,
		project:  project,
		factory:  factory,
		registry: registry,
		printer:  tui.NewPrinter(cmd.OutOrStdout(), tui.IsInteractive()),
	}

	if addr := getStringFlag(cmd, "metrics-addr"); addr != "" {
		env.server = metrics.NewServer(addr, registry)
		go func() {
			if err := env.server.Start(); err != nil {
				logger.Error("metrics server stopped: %v", err)
			}
		}()
		logger.Verbose("Serving metrics on %s/metrics", addr)
	}

	return env, nil
}

// Close empties the ambient slot and stops the metrics server.
func (e *commandEnv) Close() {
	retry.Ambient.Set(nil)

	if e.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := e.server.Stop(ctx); err != nil {
			e.logger.Verbose("metrics server shutdown: %v", err)
		}
	}

	if err := db.CloseCloudSQL(); err != nil {
		e.logger.Verbose("Cloud SQL dialer shutdown: %v", err)
	}
}

// policy builds the policy for stage from the factory.
func (e *commandEnv) policy(stage retry.Stage) (*retry.Policy, error) {
	p, err := e.factory.Policy(stage)
	if err != nil {
		return nil, err
	}
	e.logger.Verbose("Retry policy %s: %d attempts, %v..%v, factor %g", p.Name(),
		p.Config().MaxRetryCount(), p.Config().MinInterval(), p.Config().MaxInterval(), p.Config().BackoffFactor())
	return p, nil
}

// newPolicyFactory applies the retry and platform sections of the project file.
func newPolicyFactory(project *config.ProjectConfig) (*retry.Factory, error) {
	factory := retry.NewFactory()
	if project == nil {
		return factory, nil
	}

	overrides, err := project.Retry.Overrides()
	if err != nil {
		return nil, fmt.Errorf("invalid retry settings in %s: %w", config.ConfigFileName, err)
	}
	factory.Overrides = overrides

	if project.Platform != "" {
		platform, err := retry.ParsePlatform(project.Platform)
		if err != nil {
			return nil, fmt.Errorf("invalid platform in %s: %w", config.ConfigFileName, err)
		}
		factory.Platform = platform
	}
	return factory, nil
}

// loadProjectConfig loads .env and the project configuration.
// Returns nil config if mssqlretry.yaml does not exist (not an error).
func loadProjectConfig(dir string) (*config.ProjectConfig, error) {
	_ = godotenv.Load()

	if dir == "" {
		dir = "."
	}
	projectCfg, err := config.Load(dir)
	if err != nil {
		if errors.Is(err, config.ErrConfigNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load %s: %w", config.ConfigFileName, err)
	}
	return projectCfg, nil
}

// commandContext returns the command's context, which carries the interrupt
// signal when run through Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// reportFailure logs the retry summary of err and returns it unchanged.
func (e *commandEnv) reportFailure(err error) error {
	var retryErr *retry.Error
	if errors.As(err, &retryErr) {
		e.logger.Verbose("Gave up after %d attempt(s), %v total delay", retryErr.Attempts, retryErr.TotalDelay)
		if retryErr.Throttling != nil {
			e.logger.Error("Server is throttling: %s", retryErr.Throttling)
		}
		if retryErr.Cancelled {
			e.logger.Error("Interrupted before the operation could complete")
		}
	}
	return err
}
