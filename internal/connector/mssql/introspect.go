package mssql

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/structsync/structsync/internal/connector"
	"github.com/structsync/structsync/internal/model"
)

// columnRow holds the result of querying INFORMATION_SCHEMA.COLUMNS for SQL
// Server, with the identity flag resolved through COLUMNPROPERTY.
type columnRow struct {
	TableName  string  `db:"table_name"`
	ColumnName string  `db:"column_name"`
	DataType   string  `db:"data_type"`
	IsNullable string  `db:"is_nullable"`
	Default    *string `db:"column_default"`
	MaxLength  *int64  `db:"max_length"`
	Precision  *int64  `db:"numeric_precision"`
	Scale      *int64  `db:"numeric_scale"`
	IsIdentity int     `db:"is_identity"`
	Position   int     `db:"ordinal_position"`
}

func (r columnRow) toModel() model.Column {
	return model.Column{
		Name:            r.ColumnName,
		DataType:        formatType(r.DataType, r.MaxLength, r.Precision, r.Scale),
		Nullable:        r.IsNullable == "YES",
		DefaultValue:    r.Default,
		AutoIncrement:   r.IsIdentity == 1,
		OrdinalPosition: uint32(r.Position),
	}
}

// formatType renders a T-SQL type with its length or precision, e.g.
// nvarchar(max), varchar(255), decimal(10,2).
func formatType(dataType string, maxLength, precision, scale *int64) string {
	switch strings.ToLower(dataType) {
	case "char", "nchar", "varchar", "nvarchar", "binary", "varbinary":
		if maxLength == nil {
			return dataType
		}
		if *maxLength == -1 {
			return dataType + "(max)"
		}
		return dataType + "(" + strconv.FormatInt(*maxLength, 10) + ")"
	case "decimal", "numeric":
		if precision == nil {
			return dataType
		}
		s := int64(0)
		if scale != nil {
			s = *scale
		}
		return dataType + "(" + strconv.FormatInt(*precision, 10) + "," + strconv.FormatInt(s, 10) + ")"
	}
	return dataType
}

// ListDatabases returns the user databases on the server, sorted by name.
func (c *MSSQLConnector) ListDatabases(ctx context.Context) ([]string, error) {
	const q = `SELECT name FROM sys.databases
		WHERE name NOT IN ('master', 'tempdb', 'model', 'msdb')
		ORDER BY name`

	var names []string
	if err := c.db.SelectContext(ctx, &names, q); err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}
	return names, nil
}

// GetTables returns a fully populated snapshot of every base table in the
// configured schema.
func (c *MSSQLConnector) GetTables(ctx context.Context) ([]model.TableSchema, error) {
	var cat connector.Catalog
	var err error

	if cat.Tables, err = c.fetchTableNames(ctx); err != nil {
		return nil, fmt.Errorf("introspect tables: %w", err)
	}
	if cat.Columns, err = c.fetchColumns(ctx); err != nil {
		return nil, fmt.Errorf("introspect columns: %w", err)
	}
	if cat.PrimaryKeys, err = c.fetchConstraintColumns(ctx, "PRIMARY KEY"); err != nil {
		return nil, fmt.Errorf("introspect primary keys: %w", err)
	}
	if cat.Indexes, err = c.fetchIndexes(ctx); err != nil {
		return nil, fmt.Errorf("introspect indexes: %w", err)
	}
	if cat.ForeignKeys, err = c.fetchForeignKeys(ctx); err != nil {
		return nil, fmt.Errorf("introspect foreign keys: %w", err)
	}
	if cat.Uniques, err = c.fetchConstraintColumns(ctx, "UNIQUE"); err != nil {
		return nil, fmt.Errorf("introspect unique constraints: %w", err)
	}

	return cat.Build(), nil
}

func (c *MSSQLConnector) fetchTableNames(ctx context.Context) ([]string, error) {
	const q = `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = @p1 AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`

	var names []string
	if err := c.db.SelectContext(ctx, &names, q, c.schemaName); err != nil {
		return nil, err
	}
	return names, nil
}

func (c *MSSQLConnector) fetchColumns(ctx context.Context) ([]connector.TableColumn, error) {
	const q = `SELECT
			c.TABLE_NAME AS table_name,
			c.COLUMN_NAME AS column_name,
			c.DATA_TYPE AS data_type,
			c.IS_NULLABLE AS is_nullable,
			c.COLUMN_DEFAULT AS column_default,
			CAST(c.CHARACTER_MAXIMUM_LENGTH AS BIGINT) AS max_length,
			CAST(c.NUMERIC_PRECISION AS BIGINT) AS numeric_precision,
			CAST(c.NUMERIC_SCALE AS BIGINT) AS numeric_scale,
			ISNULL(COLUMNPROPERTY(OBJECT_ID(QUOTENAME(c.TABLE_SCHEMA) + '.' + QUOTENAME(c.TABLE_NAME)), c.COLUMN_NAME, 'IsIdentity'), 0) AS is_identity,
			c.ORDINAL_POSITION AS ordinal_position
		FROM INFORMATION_SCHEMA.COLUMNS c
		WHERE c.TABLE_SCHEMA = @p1
		ORDER BY c.TABLE_NAME, c.ORDINAL_POSITION`

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

func (c *MSSQLConnector) fetchConstraintColumns(ctx context.Context, constraintType string) ([]connector.KeyColumnRow, error) {
	const q = `SELECT
			tc.TABLE_NAME AS table_name,
			tc.CONSTRAINT_NAME AS constraint_name,
			kcu.COLUMN_NAME AS column_name
		FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
		JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
			ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
			AND tc.TABLE_SCHEMA = kcu.TABLE_SCHEMA
			AND tc.TABLE_NAME = kcu.TABLE_NAME
		WHERE tc.TABLE_SCHEMA = @p1 AND tc.CONSTRAINT_TYPE = @p2
		ORDER BY tc.TABLE_NAME, tc.CONSTRAINT_NAME, kcu.ORDINAL_POSITION`

	var rows []connector.KeyColumnRow
	err := c.db.SelectContext(ctx, &rows, q, c.schemaName, constraintType)
	return rows, err
}

// fetchIndexes reads key columns of non-primary indexes. Indexes that back a
// UNIQUE constraint are reported as constraints instead.
func (c *MSSQLConnector) fetchIndexes(ctx context.Context) ([]connector.IndexRow, error) {
	const q = `SELECT
			t.name AS table_name,
			i.name AS index_name,
			col.name AS column_name,
			i.is_unique AS is_unique,
			i.type_desc AS index_type
		FROM sys.indexes i
		JOIN sys.tables t ON t.object_id = i.object_id
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		JOIN sys.index_columns ic ON ic.object_id = i.object_id AND ic.index_id = i.index_id
		JOIN sys.columns col ON col.object_id = ic.object_id AND col.column_id = ic.column_id
		WHERE s.name = @p1
			AND i.type > 0
			AND i.is_primary_key = 0
			AND i.is_unique_constraint = 0
			AND i.is_hypothetical = 0
			AND ic.is_included_column = 0
		ORDER BY t.name, i.name, ic.key_ordinal`

	var rows []connector.IndexRow
	err := c.db.SelectContext(ctx, &rows, q, c.schemaName)
	return rows, err
}

func (c *MSSQLConnector) fetchForeignKeys(ctx context.Context) ([]connector.ForeignKeyRow, error) {
	const q = `SELECT
			fk_tab.name AS table_name,
			fk.name AS constraint_name,
			fk_col.name AS column_name,
			pk_tab.name AS ref_table,
			pk_col.name AS ref_column,
			REPLACE(fk.delete_referential_action_desc, '_', ' ') AS delete_rule,
			REPLACE(fk.update_referential_action_desc, '_', ' ') AS update_rule
		FROM sys.foreign_keys fk
		JOIN sys.foreign_key_columns fkc ON fk.object_id = fkc.constraint_object_id
		JOIN sys.tables fk_tab ON fkc.parent_object_id = fk_tab.object_id
		JOIN sys.columns fk_col ON fkc.parent_object_id = fk_col.object_id AND fkc.parent_column_id = fk_col.column_id
		JOIN sys.tables pk_tab ON fkc.referenced_object_id = pk_tab.object_id
		JOIN sys.columns pk_col ON fkc.referenced_object_id = pk_col.object_id AND fkc.referenced_column_id = pk_col.column_id
		JOIN sys.schemas s ON fk_tab.schema_id = s.schema_id
		WHERE s.name = @p1
		ORDER BY fk_tab.name, fk.name, fkc.constraint_column_id`

	var rows []connector.ForeignKeyRow
	err := c.db.SelectContext(ctx, &rows, q, c.schemaName)
	return rows, err
}
