package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vvka-141/mssqlretry/internal/retry"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <code>...",
	Short: "Show how SQL Server error codes are classified",
	Long: `Classify reports, for each error code, its effective category and whether
the connection and command stages would retry it.

Categories, strongest first:
  NonRetryableDataTransfer - permanent; always aborts
  NetworkConnectivity      - transient transport failure
  CloudTransient           - transient service pressure or throttling
  Unclassified             - unknown; never retried

Code 0 is only treated as a network failure on Windows clients. Use
--platform to see the answer for another client platform.`,
	Example: `  mssqlretry classify 1205 40501 2627
  mssqlretry classify 0 --platform windows`,
	Args: requireAtLeastOne("code", "1205 40501"),
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().String("platform", "", "Client platform (windows, linux, darwin); defaults to this machine")
	_ = classifyCmd.RegisterFlagCompletionFunc("platform", completePlatforms)
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	codes, err := parseCodes(args)
	if err != nil {
		return err
	}

	platformName, err := cmd.Flags().GetString("platform")
	if err != nil {
		return err
	}

	env, err := newCommandEnv(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	platform := env.factory.Platform
	if platformName != "" {
		if platform, err = retry.ParsePlatform(platformName); err != nil {
			return fmt.Errorf("invalid argument: %w", err)
		}
	}
	classifier := env.factory.Classifier
	tables := classifier.Tables()

	rows := make([][]string, 0, len(codes))
	for _, code := range codes {
		category := classifier.Classify(code, platform)
		blocked := classifier.IsNonRetryableDataTransfer(code)
		rows = append(rows, []string{
			strconv.Itoa(int(code)),
			env.printer.Category(category),
			yesNo(!blocked && classifier.IsNetworkConnectivityRetryable(code, platform)),
			yesNo(!blocked && classifier.IsCloudTransientRetryable(code)),
			rationale(tables, code),
		})
	}

	env.printer.Table([]string{"CODE", "CATEGORY", "CONNECT", "COMMAND", "REASON"}, rows)
	return nil
}

// parseCodes converts arguments to error codes.
func parseCodes(args []string) ([]int32, error) {
	codes := make([]int32, 0, len(args))
	for _, arg := range args {
		n, err := strconv.ParseInt(arg, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid argument %q: error codes are 32-bit integers", arg)
		}
		codes = append(codes, int32(n))
	}
	return codes, nil
}

// rationale returns the reason recorded for code in the strongest table that
// lists it.
func rationale(tables retry.Tables, code int32) string {
	for _, t := range []retry.CodeTable{tables.NonRetryableDataTransfer, tables.NetworkConnectivity, tables.CloudTransient} {
		if r, ok := t.Rationale(code); ok {
			return r
		}
	}
	return "-"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
