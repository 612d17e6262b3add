package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/vvka-141/mssqlretry/internal/retry"
	"github.com/vvka-141/mssqlretry/pkg/mssqlretry"
)

// DriverName is the sqlx driver name used for bind-variable rules.
const DriverName = "sqlserver"

// ResultSet is a fully buffered query result.
type ResultSet struct {
	Columns []string
	Rows    [][]any
}

// CommandExecutor runs statements under a command-stage retry policy.
// Each attempt is a complete statement; callers must only pass statements
// that are safe to repeat.
type CommandExecutor struct {
	db     *sqlx.DB
	policy *retry.Policy
}

// NewCommandExecutor wraps db. A nil policy uses retry.CommandPolicy.
func NewCommandExecutor(db *sql.DB, policy *retry.Policy) *CommandExecutor {
	if policy == nil {
		policy = retry.CommandPolicy()
	}
	return &CommandExecutor{db: sqlx.NewDb(db, DriverName), policy: policy}
}

// Exec runs a statement that returns no rows.
func (e *CommandExecutor) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := retry.Do(ctx, e.policy, func(ctx context.Context) (sql.Result, error) {
		return e.db.ExecContext(ctx, query, args...)
	})
	if err != nil {
		return nil, executionError(query, err)
	}
	return res, nil
}

// Get scans a single row into dest.
func (e *CommandExecutor) Get(ctx context.Context, dest any, query string, args ...any) error {
	err := e.policy.Execute(ctx, func(ctx context.Context) error {
		return e.db.GetContext(ctx, dest, query, args...)
	})
	if err != nil {
		return executionError(query, err)
	}
	return nil
}

// Query buffers every row of the result so a failure midway through reading
// is retried as a whole.
func (e *CommandExecutor) Query(ctx context.Context, query string, args ...any) (*ResultSet, error) {
	rs, err := retry.Do(ctx, e.policy, func(ctx context.Context) (*ResultSet, error) {
		rows, err := e.db.QueryxContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		cols, err := rows.Columns()
		if err != nil {
			return nil, err
		}
		rs := &ResultSet{Columns: cols}
		for rows.Next() {
			row, err := rows.SliceScan()
			if err != nil {
				return nil, err
			}
			rs.Rows = append(rs.Rows, row)
		}
		return rs, rows.Err()
	})
	if err != nil {
		return nil, executionError(query, err)
	}
	return rs, nil
}

func executionError(query string, err error) error {
	return fmt.Errorf("%w: %s: %w", mssqlretry.ErrExecutionFailed, previewSQL(query), err)
}

// previewSQL shortens a statement for error messages.
func previewSQL(query string) string {
	q := strings.Join(strings.Fields(query), " ")
	if len(q) > mssqlretry.MaxErrorPreviewLength {
		return q[:mssqlretry.MaxErrorPreviewLength] + "..."
	}
	return q
}
