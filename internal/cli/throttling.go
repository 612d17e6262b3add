package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vvka-141/mssqlretry/internal/retry"
)

var throttlingCmd = &cobra.Command{
	Use:   "throttling [message]",
	Short: "Decode an Azure SQL throttling (40501) reason",
	Long: `Throttling decodes the reason code carried by error 40501 ("The service is
currently busy ... Code: <n>") into the throttling mode and the throttled
resources. Pass the error message, or the bare reason with --reason.`,
	Example: `  mssqlretry throttling "The service is currently busy. Retry the request after 10 seconds. Code: 524290"
  mssqlretry throttling --reason 524290`,
	RunE: runThrottling,
}

func init() {
	throttlingCmd.Flags().Int("reason", -1, "Raw reason code to decode instead of a message")
	rootCmd.AddCommand(throttlingCmd)
}

func runThrottling(cmd *cobra.Command, args []string) error {
	reason, err := cmd.Flags().GetInt("reason")
	if err != nil {
		return err
	}

	message := strings.Join(args, " ")
	if reason >= 0 {
		if message != "" {
			return fmt.Errorf("invalid argument: pass either a message or --reason, not both")
		}
		message = fmt.Sprintf("Code: %d", reason)
	}
	if message == "" {
		return fmt.Errorf(`missing required argument: <message>

Usage: %s

Example:
  %s --reason 524290`, cmd.UseLine(), cmd.CommandPath())
	}

	env, err := newCommandEnv(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	cond, _ := retry.DecodeThrottling(retry.ThrottlingCode, message)
	if cond.Mode == retry.ThrottlingModeUnknown {
		env.printer.Warning("no reason code found in message")
		env.printer.Line("mode: %s", cond.Mode)
		return nil
	}

	env.printer.Line("mode: %s", cond.Mode)
	env.printer.Line("reason: %d", cond.ReasonCode)
	if len(cond.Resources) == 0 {
		env.printer.Line("resources: none")
		return nil
	}

	rows := make([][]string, 0, len(cond.Resources))
	for _, r := range cond.Resources {
		rows = append(rows, []string{r.Resource.String(), r.Type.String()})
	}
	env.printer.Table([]string{"RESOURCE", "THROTTLING"}, rows)
	return nil
}
