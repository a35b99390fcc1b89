package mysql

import (
	"context"
	"fmt"
	"strings"

	"github.com/structsync/structsync/internal/connector"
	"github.com/structsync/structsync/internal/model"
)

// systemSchemas are excluded from ListDatabases.
var systemSchemas = []string{"information_schema", "performance_schema", "mysql", "sys"}

// columnRow holds the result of querying information_schema.columns for MySQL.
type columnRow struct {
	TableName  string  `db:"table_name"`
	ColumnName string  `db:"column_name"`
	ColumnType string  `db:"column_type"`
	IsNullable string  `db:"is_nullable"`
	Default    *string `db:"column_default"`
	Extra      string  `db:"extra"`
	Comment    *string `db:"column_comment"`
	Position   uint32  `db:"ordinal_position"`
}

func (r columnRow) toModel() model.Column {
	col := model.Column{
		Name:            r.ColumnName,
		DataType:        r.ColumnType,
		Nullable:        r.IsNullable == "YES",
		DefaultValue:    r.Default,
		AutoIncrement:   strings.Contains(r.Extra, "auto_increment"),
		OrdinalPosition: r.Position,
	}
	if r.Comment != nil && *r.Comment != "" {
		col.Comment = r.Comment
	}
	return col
}

// ListDatabases returns the user schemas on the server, sorted by name.
func (c *MySQLConnector) ListDatabases(ctx context.Context) ([]string, error) {
	const q = `SELECT CAST(SCHEMA_NAME AS CHAR) FROM INFORMATION_SCHEMA.SCHEMATA
		WHERE SCHEMA_NAME NOT IN (?, ?, ?, ?)
		ORDER BY SCHEMA_NAME`

	args := make([]interface{}, len(systemSchemas))
	for i, s := range systemSchemas {
		args[i] = s
	}
	var names []string
	if err := c.db.SelectContext(ctx, &names, q, args...); err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}
	return names, nil
}

// GetTables returns a fully populated snapshot of every base table in the
// connected schema.
func (c *MySQLConnector) GetTables(ctx context.Context) ([]model.TableSchema, error) {
	if c.schemaName == "" {
		return nil, fmt.Errorf("no database selected")
	}

	var cat connector.Catalog
	var err error

	if cat.Tables, err = c.fetchTableNames(ctx); err != nil {
		return nil, fmt.Errorf("introspect tables: %w", err)
	}
	if cat.Columns, err = c.fetchColumns(ctx); err != nil {
		return nil, fmt.Errorf("introspect columns: %w", err)
	}
	if cat.PrimaryKeys, err = c.fetchPrimaryKeys(ctx); err != nil {
		return nil, fmt.Errorf("introspect primary keys: %w", err)
	}
	if cat.Indexes, err = c.fetchIndexes(ctx); err != nil {
		return nil, fmt.Errorf("introspect indexes: %w", err)
	}
	if cat.ForeignKeys, err = c.fetchForeignKeys(ctx); err != nil {
		return nil, fmt.Errorf("introspect foreign keys: %w", err)
	}
	if cat.Uniques, err = c.fetchUniqueConstraints(ctx); err != nil {
		return nil, fmt.Errorf("introspect unique constraints: %w", err)
	}

	return cat.Build(), nil
}

func (c *MySQLConnector) fetchTableNames(ctx context.Context) ([]string, error) {
	const q = `SELECT CAST(TABLE_NAME AS CHAR) FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`

	var names []string
	if err := c.db.SelectContext(ctx, &names, q, c.schemaName); err != nil {
		return nil, err
	}
	return names, nil
}

func (c *MySQLConnector) fetchColumns(ctx context.Context) ([]connector.TableColumn, error) {
	const q = `SELECT
			CAST(TABLE_NAME AS CHAR) AS table_name,
			CAST(COLUMN_NAME AS CHAR) AS column_name,
			CAST(COLUMN_TYPE AS CHAR) AS column_type,
			CAST(IS_NULLABLE AS CHAR) AS is_nullable,
			CAST(COLUMN_DEFAULT AS CHAR) AS column_default,
			CAST(EXTRA AS CHAR) AS extra,
			CAST(COLUMN_COMMENT AS CHAR) AS column_comment,
			ORDINAL_POSITION AS ordinal_position
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = ?
		ORDER BY TABLE_NAME, ORDINAL_POSITION`

	var rows []columnRow
	if err := c.db.SelectContext(ctx, &rows, q, c.schemaName); err != nil {
		return nil, err
	}
	out := make([]connector.TableColumn, len(rows))
	for i, r := range rows {
		out[i] = connector.TableColumn{Table: r.TableName, Column: r.toModel()}
	}
	return out, nil
}

func (c *MySQLConnector) fetchPrimaryKeys(ctx context.Context) ([]connector.KeyColumnRow, error) {
	const q = `SELECT
			CAST(TABLE_NAME AS CHAR) AS table_name,
			CAST(CONSTRAINT_NAME AS CHAR) AS constraint_name,
			CAST(COLUMN_NAME AS CHAR) AS column_name
		FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE
		WHERE TABLE_SCHEMA = ? AND CONSTRAINT_NAME = 'PRIMARY'
		ORDER BY TABLE_NAME, ORDINAL_POSITION`

	var rows []connector.KeyColumnRow
	err := c.db.SelectContext(ctx, &rows, q, c.schemaName)
	return rows, err
}

func (c *MySQLConnector) fetchIndexes(ctx context.Context) ([]connector.IndexRow, error) {
	const q = `SELECT
			CAST(TABLE_NAME AS CHAR) AS table_name,
			CAST(INDEX_NAME AS CHAR) AS index_name,
			CAST(COLUMN_NAME AS CHAR) AS column_name,
			NON_UNIQUE = 0 AS is_unique,
			CAST(INDEX_TYPE AS CHAR) AS index_type
		FROM INFORMATION_SCHEMA.STATISTICS
		WHERE TABLE_SCHEMA = ? AND INDEX_NAME != 'PRIMARY'
		ORDER BY TABLE_NAME, INDEX_NAME, SEQ_IN_INDEX`

	var rows []connector.IndexRow
	err := c.db.SelectContext(ctx, &rows, q, c.schemaName)
	return rows, err
}

func (c *MySQLConnector) fetchForeignKeys(ctx context.Context) ([]connector.ForeignKeyRow, error) {
	const q = `SELECT
			CAST(kcu.TABLE_NAME AS CHAR) AS table_name,
			CAST(kcu.CONSTRAINT_NAME AS CHAR) AS constraint_name,
			CAST(kcu.COLUMN_NAME AS CHAR) AS column_name,
			CAST(kcu.REFERENCED_TABLE_NAME AS CHAR) AS ref_table,
			CAST(kcu.REFERENCED_COLUMN_NAME AS CHAR) AS ref_column,
			CAST(rc.DELETE_RULE AS CHAR) AS delete_rule,
			CAST(rc.UPDATE_RULE AS CHAR) AS update_rule
		FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
		JOIN INFORMATION_SCHEMA.REFERENTIAL_CONSTRAINTS rc
			ON kcu.CONSTRAINT_NAME = rc.CONSTRAINT_NAME
			AND kcu.TABLE_SCHEMA = rc.CONSTRAINT_SCHEMA
		WHERE kcu.TABLE_SCHEMA = ? AND kcu.REFERENCED_TABLE_NAME IS NOT NULL
		ORDER BY kcu.TABLE_NAME, kcu.CONSTRAINT_NAME, kcu.ORDINAL_POSITION`

	var rows []connector.ForeignKeyRow
	err := c.db.SelectContext(ctx, &rows, q, c.schemaName)
	return rows, err
}

func (c *MySQLConnector) fetchUniqueConstraints(ctx context.Context) ([]connector.KeyColumnRow, error) {
	const q = `SELECT
			CAST(tc.TABLE_NAME AS CHAR) AS table_name,
			CAST(tc.CONSTRAINT_NAME AS CHAR) AS constraint_name,
			CAST(kcu.COLUMN_NAME AS CHAR) AS column_name
		FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
		JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
			ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
			AND tc.TABLE_SCHEMA = kcu.TABLE_SCHEMA
			AND tc.TABLE_NAME = kcu.TABLE_NAME
		WHERE tc.TABLE_SCHEMA = ? AND tc.CONSTRAINT_TYPE = 'UNIQUE'
		ORDER BY tc.TABLE_NAME, tc.CONSTRAINT_NAME, kcu.ORDINAL_POSITION`

	var rows []connector.KeyColumnRow
	err := c.db.SelectContext(ctx, &rows, q, c.schemaName)
	return rows, err
}
