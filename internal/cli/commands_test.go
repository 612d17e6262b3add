package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/mssqlretry/internal/retry"
	"github.com/vvka-141/mssqlretry/pkg/mssqlretry"
)

// resetCommandFlags restores every flag of every command to its default
// between runs of rootCmd.
func resetCommandFlags(t *testing.T) {
	t.Helper()
	resetConnFlags()
	resetFlags(t, rootCmd)
}

func resetFlags(t *testing.T, cmd *cobra.Command) {
	t.Helper()
	reset := func(f *pflag.Flag) {
		require.NoError(t, f.Value.Set(f.DefValue), "flag --%s", f.Name)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(t, sub)
	}
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("MSSQLRETRY_NON_INTERACTIVE", "1")
	clearConnectionEnv(t)
	resetCommandFlags(t)

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func writeProjectFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mssqlretry.yaml"), []byte(content), 0o644))
	return dir
}

func TestClassifyCommand(t *testing.T) {
	out, err := runCommand(t, "classify", "1205", "2627", "99999")
	require.NoError(t, err)

	assert.Contains(t, out, "CODE\tCATEGORY\tCONNECT\tCOMMAND\tREASON")
	assert.Contains(t, out, "1205\tCloudTransient\tno\tyes\ttransaction was chosen as the deadlock victim")
	assert.Contains(t, out, "2627\tNonRetryableDataTransfer\tno\tno\tviolation of PRIMARY KEY or UNIQUE constraint")
	assert.Contains(t, out, "99999\tUnclassified\tno\tno\t-")
}

func TestClassifyCommand_Platform(t *testing.T) {
	out, err := runCommand(t, "classify", "0", "--platform", "windows")
	require.NoError(t, err)
	assert.Contains(t, out, "0\tNetworkConnectivity\tyes\tyes")

	out, err = runCommand(t, "classify", "0", "--platform", "linux")
	require.NoError(t, err)
	assert.Contains(t, out, "0\tCloudTransient\tno\tyes")
}

func TestClassifyCommand_FlagDoesNotLeakIntoNextRun(t *testing.T) {
	dir := writeProjectFile(t, "platform: linux\n")

	out, err := runCommand(t, "classify", "0", "--platform", "windows", "--config-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "0\tNetworkConnectivity\tyes\tyes")

	out, err = runCommand(t, "classify", "0", "--config-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "0\tCloudTransient\tno\tyes")
}

func TestClassifyCommand_UnknownPlatform(t *testing.T) {
	_, err := runCommand(t, "classify", "0", "--platform", "win")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown platform "win"`)
	assert.ErrorIs(t, err, mssqlretry.ErrInvalidConfig)

	dir := writeProjectFile(t, "platform: win\n")
	_, err = runCommand(t, "classify", "0", "--config-dir", dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, mssqlretry.ErrInvalidConfig)
}

func TestClassifyCommand_PlatformFromProjectFile(t *testing.T) {
	dir := writeProjectFile(t, "platform: Windows\n")

	out, err := runCommand(t, "classify", "0", "--config-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "0\tNetworkConnectivity\tyes\tyes")
}

func TestClassifyCommand_UsageErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantMsg string
	}{
		{"no codes", []string{"classify"}, "missing required argument: <code>..."},
		{"not a number", []string{"classify", "deadlock"}, `invalid argument "deadlock"`},
		{"overflows int32", []string{"classify", "4294967296"}, `invalid argument "4294967296"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCommand(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.Equal(t, mssqlretry.ExitUsageError, mssqlretry.ExitCodeForError(err))
		})
	}
}

func TestBackoffCommand_Default(t *testing.T) {
	out, err := runCommand(t, "backoff")
	require.NoError(t, err)

	assert.Contains(t, out, "command: 3 attempt(s), min 100ms, max 10s, factor 2")
	assert.Contains(t, out, "RETRY\tDELAY\tTOTAL")
	assert.Contains(t, out, "1\t100ms\t100ms")
	assert.Contains(t, out, "2\t200ms\t300ms")
	assert.NotContains(t, out, "\n3\t")
}

func TestBackoffCommand_ProjectOverride(t *testing.T) {
	dir := writeProjectFile(t, `retry:
  command:
    max_retry_count: 4
    min_interval: 1s
    max_interval: 5s
    backoff_factor: 3
`)

	out, err := runCommand(t, "backoff", "--config-dir", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "command: 4 attempt(s), min 1s, max 5s, factor 3")
	assert.Contains(t, out, "1\t1s\t1s")
	assert.Contains(t, out, "2\t3s\t4s")
	assert.Contains(t, out, "3\t5s\t9s")
}

func TestBackoffCommand_SingleAttempt(t *testing.T) {
	out, err := runCommand(t, "backoff", "--stage", "none")
	require.NoError(t, err)
	assert.Contains(t, out, "single attempt, no retries")
}

func TestBackoffCommand_StageDoesNotLeakIntoNextRun(t *testing.T) {
	out, err := runCommand(t, "backoff", "--stage", "none")
	require.NoError(t, err)
	assert.Contains(t, out, "single attempt, no retries")

	out, err = runCommand(t, "backoff")
	require.NoError(t, err)
	assert.Contains(t, out, "command: 3 attempt(s)")
}

func TestBackoffCommand_ConfigErrors(t *testing.T) {
	t.Run("unknown stage", func(t *testing.T) {
		_, err := runCommand(t, "backoff", "--stage", "bulk")
		require.Error(t, err)
		assert.ErrorIs(t, err, mssqlretry.ErrInvalidConfig)
	})

	t.Run("unparseable interval", func(t *testing.T) {
		dir := writeProjectFile(t, "retry:\n  schema:\n    min_interval: soon\n")
		_, err := runCommand(t, "backoff", "--stage", "schema", "--config-dir", dir)
		require.Error(t, err)
		assert.ErrorIs(t, err, mssqlretry.ErrInvalidConfig)
		assert.Equal(t, mssqlretry.ExitConfigError, mssqlretry.ExitCodeForError(err))
	})

	t.Run("negative max retry count", func(t *testing.T) {
		dir := writeProjectFile(t, "retry:\n  command:\n    max_retry_count: -1\n")
		_, err := runCommand(t, "backoff", "--config-dir", dir)
		require.Error(t, err)
		assert.ErrorIs(t, err, mssqlretry.ErrInvalidConfig)
		assert.Contains(t, err.Error(), "max_retry_count")
	})

	t.Run("min above max", func(t *testing.T) {
		dir := writeProjectFile(t, "retry:\n  command:\n    min_interval: 20s\n")
		_, err := runCommand(t, "backoff", "--config-dir", dir)
		require.Error(t, err)
	})
}

func TestThrottlingCommand(t *testing.T) {
	t.Run("message", func(t *testing.T) {
		out, err := runCommand(t, "throttling",
			"The service is currently busy. Retry the request after 10 seconds. Code: 524290")
		require.NoError(t, err)
		assert.Contains(t, out, "mode: RejectAllWrites")
		assert.Contains(t, out, "reason: 524290")
		assert.Contains(t, out, "RESOURCE\tTHROTTLING")
		assert.Contains(t, out, "DatabaseSize\tHard")
	})

	t.Run("reason flag", func(t *testing.T) {
		out, err := runCommand(t, "throttling", "--reason", "524290")
		require.NoError(t, err)
		assert.Contains(t, out, "mode: RejectAllWrites")
	})

	t.Run("no throttled resources", func(t *testing.T) {
		out, err := runCommand(t, "throttling", "--reason", "1")
		require.NoError(t, err)
		assert.Contains(t, out, "mode: RejectUpdateInsert")
		assert.Contains(t, out, "resources: none")
	})

	t.Run("message without reason", func(t *testing.T) {
		out, err := runCommand(t, "throttling", "The service is currently busy.")
		require.NoError(t, err)
		assert.Contains(t, out, "no reason code found in message")
		assert.Contains(t, out, "mode: Unknown")
	})
}

func TestThrottlingCommand_UsageErrors(t *testing.T) {
	_, err := runCommand(t, "throttling")
	require.Error(t, err)
	assert.Equal(t, mssqlretry.ExitUsageError, mssqlretry.ExitCodeForError(err))

	_, err = runCommand(t, "throttling", "Code: 1", "--reason", "2")
	require.Error(t, err)
	assert.Equal(t, mssqlretry.ExitUsageError, mssqlretry.ExitCodeForError(err))
}

func TestDatabaseCommands_RequireName(t *testing.T) {
	for _, sub := range []string{"create", "drop", "exists"} {
		t.Run(sub, func(t *testing.T) {
			_, err := runCommand(t, "database", sub)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "missing required argument: <name>")
		})
	}
}

func TestDatabaseDrop_RequiresForceWithoutTerminal(t *testing.T) {
	_, err := runCommand(t, "database", "drop", "app", "--host", "127.0.0.1", "--port", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")
	assert.Equal(t, mssqlretry.ExitUsageError, mssqlretry.ExitCodeForError(err))
}

func TestConnectionCommands_RejectConflictingFlags(t *testing.T) {
	commands := [][]string{
		{"ping"},
		{"exec", "SELECT 1"},
		{"query", "SELECT 1"},
		{"tables"},
		{"database", "exists", "app"},
	}

	for _, args := range commands {
		t.Run(args[0], func(t *testing.T) {
			args := append(args, "-c", "sqlserver://localhost", "--host", "other")
			_, err := runCommand(t, args...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, mssqlretry.ErrInvalidConfig), "got %v", err)
			assert.Equal(t, mssqlretry.ExitConfigError, mssqlretry.ExitCodeForError(err))
		})
	}
}

func TestCommands_ClearAmbientSinkOnExit(t *testing.T) {
	_, err := runCommand(t, "backoff")
	require.NoError(t, err)
	assert.Nil(t, retry.Ambient.Current())
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "NULL"},
		{[]byte{0xde, 0xad}, "0xdead"},
		{"text", "text"},
		{int64(42), "42"},
		{true, "true"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatValue(tt.in))
	}
}

func TestSplitTableName(t *testing.T) {
	schema, table := splitTableName("sales.orders")
	assert.Equal(t, "sales", schema)
	assert.Equal(t, "orders", table)

	schema, table = splitTableName("orders")
	assert.Equal(t, "dbo", schema)
	assert.Equal(t, "orders", table)
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "Microsoft SQL Server 2022", firstLine("Microsoft SQL Server 2022\n\tCopyright"))
	assert.Equal(t, "single", firstLine("single"))
}
