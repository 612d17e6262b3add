package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vvka-141/mssqlretry/internal/db"
	"github.com/vvka-141/mssqlretry/internal/retry"
)

const defaultSchema = "dbo"

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List user tables, or the columns of one table",
	Long: `Tables reads catalog metadata under the schema-metadata retry policy.
Errors raised while the catalog is being changed concurrently are skipped
and the read is repeated.`,
	Example: `  mssqlretry tables -c "$MSSQL_URL"
  mssqlretry tables --table sales.orders -c "$MSSQL_URL"`,
	Args: cobra.NoArgs,
	RunE: runTables,
}

func init() {
	addConnectionFlags(tablesCmd, &connFlags)
	tablesCmd.Flags().StringP("table", "t", "", "Show columns of this table ([schema.]table, schema defaults to dbo)")
	rootCmd.AddCommand(tablesCmd)
}

func runTables(cmd *cobra.Command, args []string) error {
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

	policy, err := env.policy(retry.StageSchemaMetadata)
	if err != nil {
		return err
	}
	reader := db.NewSchemaReader(pool, policy)

	if name, _ := cmd.Flags().GetString("table"); name != "" {
		schema, table := splitTableName(name)
		cols, err := reader.Columns(ctx, schema, table)
		if err != nil {
			return env.reportFailure(err)
		}
		if len(cols) == 0 {
			return fmt.Errorf("invalid argument: table %s.%s not found", schema, table)
		}
		rows := make([][]string, 0, len(cols))
		for _, c := range cols {
			rows = append(rows, []string{
				strconv.Itoa(c.Ordinal), c.Name, c.DataType, strconv.Itoa(c.MaxLength), yesNo(c.Nullable),
			})
		}
		env.printer.Table([]string{"#", "COLUMN", "TYPE", "LENGTH", "NULLABLE"}, rows)
		return nil
	}

	tables, err := reader.Tables(ctx)
	if err != nil {
		return env.reportFailure(err)
	}
	rows := make([][]string, 0, len(tables))
	for _, t := range tables {
		rows = append(rows, []string{t.Schema, t.Name, strconv.FormatInt(t.RowCount, 10)})
	}
	env.printer.Table([]string{"SCHEMA", "TABLE", "ROWS"}, rows)
	return nil
}

// splitTableName splits schema.table; a bare name is in dbo.
func splitTableName(name string) (schema, table string) {
	if i := strings.Index(name, "."); i >= 0 {
		return name[:i], name[i+1:]
	}
	return defaultSchema, name
}
