package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/vvka-141/mssqlretry/internal/retry"
)

var backoffCmd = &cobra.Command{
	Use:   "backoff",
	Short: "Print the retry delay schedule of a stage",
	Long: `Backoff prints the settings of a retry stage after applying mssqlretry.yaml
overrides, followed by the delay before each retry and the cumulative wait.

delay(n) = clamp(min * factor^(n-1), min, max)`,
	Example: `  mssqlretry backoff --stage connection
  mssqlretry backoff --stage schema --config-dir ./deploy`,
	Args: cobra.NoArgs,
	RunE: runBackoff,
}

func init() {
	backoffCmd.Flags().StringP("stage", "s", string(retry.StageCommand), "Retry stage (connection, command, schema, data-transfer, none)")
	_ = backoffCmd.RegisterFlagCompletionFunc("stage", completeStages)
	rootCmd.AddCommand(backoffCmd)
}

func runBackoff(cmd *cobra.Command, args []string) error {
	stageName, err := cmd.Flags().GetString("stage")
	if err != nil {
		return err
	}

	env, err := newCommandEnv(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	stage := retry.Stage(stageName)
	settings, err := env.factory.Settings(stage)
	if err != nil {
		return err
	}
	cfg := settings.Config()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%s stage: %w", stage, err)
	}

	env.printer.Title(fmt.Sprintf("%s: %d attempt(s), min %v, max %v, factor %g",
		stage, cfg.MaxRetryCount(), cfg.MinInterval(), cfg.MaxInterval(), cfg.BackoffFactor()))

	var rows [][]string
	var elapsed time.Duration
	for retryN := 1; retryN < cfg.MaxRetryCount(); retryN++ {
		delay := cfg.NextDelay(retryN)
		elapsed += delay
		rows = append(rows, []string{strconv.Itoa(retryN), delay.String(), elapsed.String()})
	}

	if len(rows) == 0 {
		env.printer.Line("single attempt, no retries")
		return nil
	}
	env.printer.Table([]string{"RETRY", "DELAY", "TOTAL"}, rows)
	return nil
}
