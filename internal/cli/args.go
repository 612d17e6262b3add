package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// requireArgs validates that exactly one named argument is provided and
// prints a usage example when it is missing.
func requireArgs(name, example string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < 1 {
			return fmt.Errorf(`missing required argument: <%s>

Usage: %s

Example:
  %s %s`, name, cmd.UseLine(), cmd.CommandPath(), example)
		}
		if len(args) > 1 {
			return fmt.Errorf("accepts 1 arg(s), received %d", len(args))
		}
		return nil
	}
}

// requireAtLeastOne validates that one or more named arguments are provided.
func requireAtLeastOne(name, example string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < 1 {
			return fmt.Errorf(`missing required argument: <%s>...

Usage: %s

Example:
  %s %s`, name, cmd.UseLine(), cmd.CommandPath(), example)
		}
		return nil
	}
}
