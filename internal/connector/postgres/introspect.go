package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/structsync/structsync/internal/connector"
	"github.com/structsync/structsync/internal/model"
)

// columnRow holds the result of querying information_schema.columns for
// PostgreSQL. DataType already carries length/precision for sized types.
type columnRow struct {
	TableName  string  `db:"table_name"`
	ColumnName string  `db:"column_name"`
	DataType   string  `db:"data_type"`
	IsNullable string  `db:"is_nullable"`
	Default    *string `db:"column_default"`
	IsIdentity string  `db:"is_identity"`
	Position   int     `db:"ordinal_position"`
}

// toModel marks sequence-backed and identity columns as auto increment and
// drops the nextval() default that implements them.
func (r columnRow) toModel() model.Column {
	serial := r.Default != nil && strings.HasPrefix(*r.Default, "nextval(")
	col := model.Column{
		Name:            r.ColumnName,
		DataType:        r.DataType,
		Nullable:        r.IsNullable == "YES",
		DefaultValue:    r.Default,
		AutoIncrement:   serial || r.IsIdentity == "YES",
		OrdinalPosition: uint32(r.Position),
	}
	if serial {
		col.DefaultValue = nil
	}
	return col
}

// ListDatabases returns the non-template databases on the server, excluding
// the maintenance database "postgres".
func (c *PostgresConnector) ListDatabases(ctx context.Context) ([]string, error) {
	const q = `SELECT datname FROM pg_database
		WHERE datistemplate = false AND datname NOT IN ('postgres')
		ORDER BY datname`

	var names []string
	if err := c.db.SelectContext(ctx, &names, q); err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}
	return names, nil
}

// GetTables returns a fully populated snapshot of every base table in the
// configured schema.
func (c *PostgresConnector) GetTables(ctx context.Context) ([]model.TableSchema, error) {
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

func (c *PostgresConnector) fetchTableNames(ctx context.Context) ([]string, error) {
	const q = `SELECT table_name FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name`

	var names []string
	if err := c.db.SelectContext(ctx, &names, q, c.schemaName); err != nil {
		return nil, err
	}
	return names, nil
}

func (c *PostgresConnector) fetchColumns(ctx context.Context) ([]connector.TableColumn, error) {
	const q = `SELECT
			table_name,
			column_name,
			CASE
				WHEN data_type = 'character varying' AND character_maximum_length IS NOT NULL
					THEN 'varchar(' || character_maximum_length || ')'
				WHEN data_type = 'character' AND character_maximum_length IS NOT NULL
					THEN 'char(' || character_maximum_length || ')'
				WHEN data_type = 'numeric' AND numeric_precision IS NOT NULL
					THEN 'numeric(' || numeric_precision || ',' || numeric_scale || ')'
				ELSE data_type
			END AS data_type,
			is_nullable,
			column_default,
			is_identity,
			ordinal_position
		FROM information_schema.columns
		WHERE table_schema = $1
		ORDER BY table_name, ordinal_position`

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

// fetchConstraintColumns reads the columns of PRIMARY KEY or UNIQUE
// constraints in key order.
func (c *PostgresConnector) fetchConstraintColumns(ctx context.Context, constraintType string) ([]connector.KeyColumnRow, error) {
	const q = `SELECT tc.table_name, tc.constraint_name, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
			AND tc.table_name = kcu.table_name
		WHERE tc.table_schema = $1 AND tc.constraint_type = $2
		ORDER BY tc.table_name, tc.constraint_name, kcu.ordinal_position`

	var rows []connector.KeyColumnRow
	err := c.db.SelectContext(ctx, &rows, q, c.schemaName, constraintType)
	return rows, err
}

func (c *PostgresConnector) fetchIndexes(ctx context.Context) ([]connector.IndexRow, error) {
	const q = `SELECT
			t.relname AS table_name,
			i.relname AS index_name,
			a.attname AS column_name,
			ix.indisunique AS is_unique,
			am.amname AS index_type
		FROM pg_index ix
		JOIN pg_class t ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_am am ON am.oid = i.relam
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		WHERE n.nspname = $1 AND NOT ix.indisprimary
		ORDER BY t.relname, i.relname, array_position(ix.indkey::int2[], a.attnum)`

	var rows []connector.IndexRow
	err := c.db.SelectContext(ctx, &rows, q, c.schemaName)
	return rows, err
}

func (c *PostgresConnector) fetchForeignKeys(ctx context.Context) ([]connector.ForeignKeyRow, error) {
	q := `SELECT
			cl.relname AS table_name,
			con.conname AS constraint_name,
			a.attname AS column_name,
			rt.relname AS ref_table,
			ra.attname AS ref_column,
			` + ruleCase("con.confdeltype") + ` AS delete_rule,
			` + ruleCase("con.confupdtype") + ` AS update_rule
		FROM pg_constraint con
		JOIN pg_class cl ON cl.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = cl.relnamespace
		JOIN pg_class rt ON rt.oid = con.confrelid
		CROSS JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS k(attnum, refattnum, ord)
		JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
		JOIN pg_attribute ra ON ra.attrelid = con.confrelid AND ra.attnum = k.refattnum
		WHERE con.contype = 'f' AND n.nspname = $1
		ORDER BY cl.relname, con.conname, k.ord`

	var rows []connector.ForeignKeyRow
	err := c.db.SelectContext(ctx, &rows, q, c.schemaName)
	return rows, err
}

// ruleCase maps a pg_constraint action code to the keyword that
// information_schema.referential_constraints reports.
func ruleCase(col string) string {
	return `CASE ` + col + `
				WHEN 'r' THEN 'RESTRICT'
				WHEN 'c' THEN 'CASCADE'
				WHEN 'n' THEN 'SET NULL'
				WHEN 'd' THEN 'SET DEFAULT'
				ELSE 'NO ACTION'
			END`
}
