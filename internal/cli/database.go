package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vvka-141/mssqlretry/internal/db"
	"github.com/vvka-141/mssqlretry/internal/db/manager"
	"github.com/vvka-141/mssqlretry/internal/retry"
	"github.com/vvka-141/mssqlretry/internal/tui"
	"github.com/vvka-141/mssqlretry/internal/ui"
)

var databaseCmd = &cobra.Command{
	Use:   "database",
	Short: "Create, drop or check databases with retries",
	Long: `Database manages whole databases through the command retry policy.
Create and drop are guarded by DB_ID so a retried statement that already
took effect does not fail the second time.`,
}

var databaseCreateCmd = &cobra.Command{
	Use:     "create <name>",
	Short:   "Create a database unless it exists",
	Example: `  mssqlretry database create app_test -c "$MSSQL_URL"`,
	Args:    requireArgs("name", "app_test"),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(cmd, func(env *commandEnv, m *manager.Manager) error {
			if err := m.Create(commandContext(cmd), args[0]); err != nil {
				return err
			}
			env.printer.Success("Database %s is present", args[0])
			return nil
		})
	},
}

var databaseDropCmd = &cobra.Command{
	Use:     "drop <name>",
	Short:   "Drop a database, closing its sessions first",
	Long: `Drop asks for the database name to be typed back before dropping it.
With --force it counts down instead; without a terminal --force is required.`,
	Example: `  mssqlretry database drop app_test -c "$MSSQL_URL"
  mssqlretry database drop app_test --force -c "$MSSQL_URL"`,
	Args: requireArgs("name", "app_test"),
	RunE: func(cmd *cobra.Command, args []string) error {
		approver, err := dropApprover(cmd)
		if err != nil {
			return err
		}

		return withManager(cmd, func(env *commandEnv, m *manager.Manager) error {
			ctx := commandContext(cmd)
			exists, err := m.Exists(ctx, args[0])
			if err != nil {
				return err
			}
			if !exists {
				env.printer.Warning("Database %s does not exist", args[0])
				return nil
			}

			approved, err := approver.RequestApproval(ctx, args[0])
			if err != nil {
				return err
			}
			if !approved {
				env.printer.Warning("Drop of %s cancelled", args[0])
				return nil
			}

			if err := m.CloseSessions(ctx, args[0]); err != nil {
				return err
			}
			if err := m.Drop(ctx, args[0]); err != nil {
				return err
			}
			env.printer.Success("Database %s dropped", args[0])
			return nil
		})
	},
}

var databaseExistsCmd = &cobra.Command{
	Use:     "exists <name>",
	Short:   "Report whether a database exists",
	Example: `  mssqlretry database exists app_test -c "$MSSQL_URL"`,
	Args:    requireArgs("name", "app_test"),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(cmd, func(env *commandEnv, m *manager.Manager) error {
			exists, err := m.Exists(commandContext(cmd), args[0])
			if err != nil {
				return err
			}
			env.printer.Line("%t", exists)
			return nil
		})
	},
}

func init() {
	databaseDropCmd.Flags().BoolP("force", "f", false, "Drop after a countdown without asking for confirmation")
	for _, c := range []*cobra.Command{databaseCreateCmd, databaseDropCmd, databaseExistsCmd} {
		addConnectionFlags(c, &connFlags)
		databaseCmd.AddCommand(c)
	}
	rootCmd.AddCommand(databaseCmd)
}

// dropApprover picks how a drop is confirmed.
func dropApprover(cmd *cobra.Command) (ui.Approver, error) {
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return nil, err
	}
	if force {
		return ui.NewForcedApprover(cmd.ErrOrStderr()), nil
	}
	if !tui.IsInteractive() {
		return nil, fmt.Errorf("required flag --force when not running in a terminal")
	}
	return ui.NewInteractiveApprover(os.Stdin, cmd.ErrOrStderr()), nil
}

// withManager connects and runs fn with a database manager backed by the
// command retry policy.
func withManager(cmd *cobra.Command, fn func(env *commandEnv, m *manager.Manager) error) error {
	env, err := newCommandEnv(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	pool, _, err := env.connect(commandContext(cmd), connFlags)
	if err != nil {
		return err
	}
	defer pool.Close()

	policy, err := env.policy(retry.StageCommand)
	if err != nil {
		return err
	}

	if err := fn(env, manager.New(db.NewCommandExecutor(pool, policy))); err != nil {
		return env.reportFailure(err)
	}
	return nil
}
