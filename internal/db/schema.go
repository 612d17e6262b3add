package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/vvka-141/mssqlretry/internal/retry"
)

// Catalog scans use NOLOCK so they never block behind DDL; the price is the
// occasional data-movement error, which the schema policy repeats at once.
const (
	queryTables = `
		SELECT s.name AS schema_name,
		       t.name AS table_name,
		       COALESCE(SUM(p.rows), 0) AS row_count
		FROM sys.tables t WITH (NOLOCK)
		JOIN sys.schemas s WITH (NOLOCK) ON s.schema_id = t.schema_id
		LEFT JOIN sys.partitions p WITH (NOLOCK) ON p.object_id = t.object_id AND p.index_id IN (0, 1)
		GROUP BY s.name, t.name
		ORDER BY s.name, t.name`

	queryColumns = `
		SELECT c.column_id AS column_id,
		       c.name AS column_name,
		       ty.name AS data_type,
		       c.max_length AS max_length,
		       c.is_nullable AS is_nullable
		FROM sys.columns c WITH (NOLOCK)
		JOIN sys.types ty WITH (NOLOCK) ON ty.user_type_id = c.user_type_id
		WHERE c.object_id = OBJECT_ID(@p1)
		ORDER BY c.column_id`
)

// TableInfo is one user table.
type TableInfo struct {
	Schema   string `db:"schema_name"`
	Name     string `db:"table_name"`
	RowCount int64  `db:"row_count"`
}

// QualifiedName returns [schema].[table].
func (t TableInfo) QualifiedName() string {
	return quoteName(t.Schema) + "." + quoteName(t.Name)
}

// ColumnInfo is one column of a table.
type ColumnInfo struct {
	Ordinal   int    `db:"column_id"`
	Name      string `db:"column_name"`
	DataType  string `db:"data_type"`
	MaxLength int    `db:"max_length"`
	Nullable  bool   `db:"is_nullable"`
}

// SchemaReader reads catalog metadata under the schema-metadata policy.
type SchemaReader struct {
	db     *sqlx.DB
	policy *retry.Policy
}

// NewSchemaReader wraps db. A nil policy uses retry.SchemaMetadataPolicy.
func NewSchemaReader(db *sql.DB, policy *retry.Policy) *SchemaReader {
	if policy == nil {
		policy = retry.SchemaMetadataPolicy()
	}
	return &SchemaReader{db: sqlx.NewDb(db, DriverName), policy: policy}
}

// Tables lists user tables ordered by schema and name.
func (r *SchemaReader) Tables(ctx context.Context) ([]TableInfo, error) {
	tables, err := retry.Do(ctx, r.policy, func(ctx context.Context) ([]TableInfo, error) {
		var out []TableInfo
		if err := r.db.SelectContext(ctx, &out, queryTables); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return tables, nil
}

// Columns lists the columns of schema.table in ordinal order.
func (r *SchemaReader) Columns(ctx context.Context, schema, table string) ([]ColumnInfo, error) {
	name := quoteName(schema) + "." + quoteName(table)
	cols, err := retry.Do(ctx, r.policy, func(ctx context.Context) ([]ColumnInfo, error) {
		var out []ColumnInfo
		if err := r.db.SelectContext(ctx, &out, queryColumns, name); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list columns of %s: %w", name, err)
	}
	return cols, nil
}

// quoteName brackets an identifier the way QUOTENAME does.
func quoteName(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}
