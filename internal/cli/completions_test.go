package cli

import (
	"testing"

	"github.com/spf13/cobra"
)

func TestCompleteEncryptModes(t *testing.T) {
	cmd := &cobra.Command{}

	t.Run("returns all modes for empty input", func(t *testing.T) {
		completions, directive := completeEncryptModes(cmd, nil, "")
		if len(completions) != len(encryptModes) {
			t.Errorf("expected %d completions, got %d", len(encryptModes), len(completions))
		}
		if directive != cobra.ShellCompDirectiveNoFileComp {
			t.Errorf("expected ShellCompDirectiveNoFileComp, got %v", directive)
		}
	})

	t.Run("filters by prefix", func(t *testing.T) {
		completions, _ := completeEncryptModes(cmd, nil, "t")
		if len(completions) != 1 || completions[0] != "true" {
			t.Errorf("expected [true], got %v", completions)
		}
	})

	t.Run("no match", func(t *testing.T) {
		completions, _ := completeEncryptModes(cmd, nil, "verify")
		if len(completions) != 0 {
			t.Errorf("expected no completions, got %v", completions)
		}
	})
}

func TestCompleteStages(t *testing.T) {
	completions, _ := completeStages(&cobra.Command{}, nil, "c")
	if len(completions) != 2 {
		t.Fatalf("expected 2 completions (connection, command), got %v", completions)
	}
	for _, c := range completions {
		if c != "connection" && c != "command" {
			t.Errorf("unexpected completion: %s", c)
		}
	}
}

func TestCompletePlatforms(t *testing.T) {
	completions, _ := completePlatforms(&cobra.Command{}, nil, "")
	if len(completions) != 3 {
		t.Errorf("expected 3 platforms, got %v", completions)
	}
}
