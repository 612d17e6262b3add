package cli

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vvka-141/mssqlretry/internal/db"
	"github.com/vvka-141/mssqlretry/internal/retry"
)

var execCmd = &cobra.Command{
	Use:   "exec <sql>",
	Short: "Run a statement under the command retry policy",
	Long: `Exec runs a single statement that returns no rows and prints the number of
rows affected. The whole statement is repeated when a transient error
occurs, so only pass statements that are safe to run more than once.`,
	Example: `  mssqlretry exec "UPDATE dbo.jobs SET state = 'queued' WHERE id = 7" -c "$MSSQL_URL"`,
	Args:    requireArgs("sql", `"DELETE FROM dbo.sessions WHERE expired = 1"`),
	RunE:    runExec,
}

var queryCmd = &cobra.Command{
	Use:   "query <sql>",
	Short: "Run a query under the command retry policy and print its rows",
	Long: `Query runs a statement and prints every row it returns. Rows are buffered
before printing, so a failure while reading retries the whole query.`,
	Example: `  mssqlretry query "SELECT name, state_desc FROM sys.databases" -c "$MSSQL_URL"`,
	Args:    requireArgs("sql", `"SELECT TOP 10 * FROM dbo.orders"`),
	RunE:    runQuery,
}

func init() {
	addConnectionFlags(execCmd, &connFlags)
	addConnectionFlags(queryCmd, &connFlags)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(queryCmd)
}

func runExec(cmd *cobra.Command, args []string) error {
	env, err := newCommandEnv(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx := commandContext(cmd)
	pool, _, err := env.connect(ctx, connFlags)
	if err != nil {
		return err
	}
	defer pool.Close()

	policy, err := env.policy(retry.StageCommand)
	if err != nil {
		return err
	}

	res, err := db.NewCommandExecutor(pool, policy).Exec(ctx, args[0])
	if err != nil {
		return env.reportFailure(err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		env.printer.Success("Statement completed")
		return nil
	}
	env.printer.Success("%d row(s) affected", affected)
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	env, err := newCommandEnv(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx := commandContext(cmd)
	pool, _, err := env.connect(ctx, connFlags)
	if err != nil {
		return err
	}
	defer pool.Close()

	policy, err := env.policy(retry.StageCommand)
	if err != nil {
		return err
	}

	rs, err := db.NewCommandExecutor(pool, policy).Query(ctx, args[0])
	if err != nil {
		return env.reportFailure(err)
	}

	rows := make([][]string, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatValue(v)
		}
		rows = append(rows, cells)
	}
	env.printer.Table(rs.Columns, rows)
	env.logger.Verbose("%d row(s)", len(rows))
	return nil
}

// formatValue renders a scanned column value for display.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return "0x" + hex.EncodeToString(val)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}
