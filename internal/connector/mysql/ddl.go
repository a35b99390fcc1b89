package mysql

import (
	"strings"

	"github.com/structsync/structsync/internal/model"
)

// Generator emits MySQL/MariaDB DDL. The zero value is ready to use.
type Generator struct{}

// NewGenerator returns a generator that needs no connection.
func NewGenerator() Generator { return Generator{} }

// QuoteIdentifier wraps a SQL identifier in backticks, escaping any
// embedded backticks to prevent SQL injection.
func (Generator) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (g Generator) quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = g.QuoteIdentifier(n)
	}
	return strings.Join(quoted, ", ")
}

// columnModifiers renders everything after the type: nullability, default,
// AUTO_INCREMENT and COMMENT. Defaults are emitted verbatim.
func columnModifiers(col model.Column) string {
	var b strings.Builder
	if !col.Nullable {
		b.WriteString(" NOT NULL")
	}
	if col.DefaultValue != nil {
		b.WriteString(" DEFAULT ")
		b.WriteString(*col.DefaultValue)
	}
	if col.AutoIncrement {
		b.WriteString(" AUTO_INCREMENT")
	}
	if col.Comment != nil {
		b.WriteString(" COMMENT '")
		b.WriteString(strings.ReplaceAll(*col.Comment, "'", "''"))
		b.WriteString("'")
	}
	return b.String()
}

func (g Generator) columnDef(col model.Column) string {
	return g.QuoteIdentifier(col.Name) + " " + col.DataType + columnModifiers(col)
}

// GenerateCreateTable emits one CREATE TABLE statement with indexes,
// unique constraints and foreign keys declared inline.
func (g Generator) GenerateCreateTable(table model.TableSchema) string {
	var parts []string

	for _, col := range table.Columns {
		parts = append(parts, "  "+g.columnDef(col))
	}
	if pk := table.PrimaryKey; pk != nil {
		parts = append(parts, "  PRIMARY KEY ("+g.quoteList(pk.Columns)+")")
	}
	for _, idx := range table.Indexes {
		kind := "INDEX"
		if idx.Unique {
			kind = "UNIQUE INDEX"
		}
		parts = append(parts, "  "+kind+" "+g.QuoteIdentifier(idx.Name)+" ("+g.quoteList(idx.Columns)+")")
	}
	for _, uc := range table.UniqueConstraints {
		parts = append(parts, "  CONSTRAINT "+g.QuoteIdentifier(uc.Name)+" UNIQUE ("+g.quoteList(uc.Columns)+")")
	}
	for _, fk := range table.ForeignKeys {
		parts = append(parts, "  CONSTRAINT "+g.QuoteIdentifier(fk.Name)+" "+g.foreignKeyClause(fk))
	}

	return "CREATE TABLE " + g.QuoteIdentifier(table.Name) + " (\n" + strings.Join(parts, ",\n") + "\n);"
}

func (g Generator) foreignKeyClause(fk model.ForeignKey) string {
	return "FOREIGN KEY (" + g.quoteList(fk.Columns) + ") REFERENCES " +
		g.QuoteIdentifier(fk.RefTable) + " (" + g.quoteList(fk.RefColumns) + ")" +
		" ON DELETE " + fk.OnDelete + " ON UPDATE " + fk.OnUpdate
}

func (g Generator) GenerateDropTable(table string) string {
	return "DROP TABLE " + g.QuoteIdentifier(table) + ";"
}

func (g Generator) GenerateAddColumn(table string, col model.Column) string {
	return "ALTER TABLE " + g.QuoteIdentifier(table) + " ADD COLUMN " + g.columnDef(col) + ";"
}

func (g Generator) GenerateDropColumn(table, column string) string {
	return "ALTER TABLE " + g.QuoteIdentifier(table) + " DROP COLUMN " + g.QuoteIdentifier(column) + ";"
}

// GenerateModifyColumn restates the full column definition, so any change
// to type, nullability, default, auto increment or comment is applied.
func (g Generator) GenerateModifyColumn(table string, col model.Column) string {
	return "ALTER TABLE " + g.QuoteIdentifier(table) + " MODIFY COLUMN " + g.columnDef(col) + ";"
}

func (g Generator) GenerateAddIndex(table string, idx model.Index) string {
	kind := "INDEX"
	if idx.Unique {
		kind = "UNIQUE INDEX"
	}
	return "CREATE " + kind + " " + g.QuoteIdentifier(idx.Name) + " ON " + g.QuoteIdentifier(table) +
		" (" + g.quoteList(idx.Columns) + ");"
}

func (g Generator) GenerateDropIndex(table, index string) string {
	return "DROP INDEX " + g.QuoteIdentifier(index) + " ON " + g.QuoteIdentifier(table) + ";"
}

func (g Generator) GenerateAddForeignKey(table string, fk model.ForeignKey) string {
	return "ALTER TABLE " + g.QuoteIdentifier(table) + " ADD CONSTRAINT " + g.QuoteIdentifier(fk.Name) + " " +
		g.foreignKeyClause(fk) + ";"
}

func (g Generator) GenerateDropForeignKey(table, fk string) string {
	return "ALTER TABLE " + g.QuoteIdentifier(table) + " DROP FOREIGN KEY " + g.QuoteIdentifier(fk) + ";"
}

func (g Generator) GenerateAddUnique(table string, uc model.UniqueConstraint) string {
	return "ALTER TABLE " + g.QuoteIdentifier(table) + " ADD CONSTRAINT " + g.QuoteIdentifier(uc.Name) +
		" UNIQUE (" + g.quoteList(uc.Columns) + ");"
}

// GenerateDropUnique drops the index backing the constraint. Unique keys
// share their name with that index.
func (g Generator) GenerateDropUnique(table, constraint string) string {
	return "ALTER TABLE " + g.QuoteIdentifier(table) + " DROP INDEX " + g.QuoteIdentifier(constraint) + ";"
}
