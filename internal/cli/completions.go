package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/vvka-141/mssqlretry/internal/retry"
)

// encryptModes contains the driver's encrypt values for shell completion.
var encryptModes = []string{"true", "false", "strict", "disable"}

// retryStages lists the stages a policy can be built for.
var retryStages = []string{
	string(retry.StageConnection),
	string(retry.StageCommand),
	string(retry.StageSchemaMetadata),
	string(retry.StageDataTransfer),
	string(retry.StageNone),
}

// platforms lists the client platforms the classifier distinguishes.
var platforms = func() []string {
	var names []string
	for _, p := range retry.Platforms() {
		names = append(names, string(p))
	}
	return names
}()

func completeEncryptModes(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return filterPrefix(encryptModes, toComplete), cobra.ShellCompDirectiveNoFileComp
}

func completeStages(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return filterPrefix(retryStages, toComplete), cobra.ShellCompDirectiveNoFileComp
}

func completePlatforms(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return filterPrefix(platforms, toComplete), cobra.ShellCompDirectiveNoFileComp
}

func filterPrefix(values []string, prefix string) []string {
	var matches []string
	for _, v := range values {
		if strings.HasPrefix(v, prefix) {
			matches = append(matches, v)
		}
	}
	return matches
}
