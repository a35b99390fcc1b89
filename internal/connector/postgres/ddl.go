package postgres

import (
	"strings"

	"github.com/structsync/structsync/internal/model"
)

// serialType replaces the stored type of auto increment columns.
const serialType = "SERIAL"

// Generator emits PostgreSQL DDL. The zero value is ready to use.
type Generator struct{}

// NewGenerator returns a generator that needs no connection.
func NewGenerator() Generator { return Generator{} }

// QuoteIdentifier wraps a SQL identifier in double quotes, escaping any
// embedded double quotes to prevent SQL injection.
func (Generator) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (g Generator) quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = g.QuoteIdentifier(n)
	}
	return strings.Join(quoted, ", ")
}

func columnType(col model.Column) string {
	if col.AutoIncrement {
		return serialType
	}
	return col.DataType
}

// columnDef renders a column for CREATE TABLE and ADD COLUMN. SERIAL is
// implicitly NOT NULL, so the clause is left out for auto increment columns.
// Comments have no inline syntax and are not emitted.
func (g Generator) columnDef(col model.Column) string {
	def := g.QuoteIdentifier(col.Name) + " " + columnType(col)
	if !col.Nullable && !col.AutoIncrement {
		def += " NOT NULL"
	}
	if col.DefaultValue != nil {
		def += " DEFAULT " + *col.DefaultValue
	}
	return def
}

// GenerateCreateTable emits the CREATE TABLE statement followed by one
// CREATE INDEX statement per non-primary index.
func (g Generator) GenerateCreateTable(table model.TableSchema) string {
	var parts []string

	for _, col := range table.Columns {
		parts = append(parts, "  "+g.columnDef(col))
	}
	if pk := table.PrimaryKey; pk != nil {
		parts = append(parts, "  PRIMARY KEY ("+g.quoteList(pk.Columns)+")")
	}
	for _, uc := range table.UniqueConstraints {
		parts = append(parts, "  CONSTRAINT "+g.QuoteIdentifier(uc.Name)+" UNIQUE ("+g.quoteList(uc.Columns)+")")
	}
	for _, fk := range table.ForeignKeys {
		parts = append(parts, "  CONSTRAINT "+g.QuoteIdentifier(fk.Name)+" "+g.foreignKeyClause(fk))
	}

	var b strings.Builder
	b.WriteString("CREATE TABLE " + g.QuoteIdentifier(table.Name) + " (\n")
	b.WriteString(strings.Join(parts, ",\n"))
	b.WriteString("\n);")
	for _, idx := range table.Indexes {
		b.WriteString("\n")
		b.WriteString(g.GenerateAddIndex(table.Name, idx))
	}
	return b.String()
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

// GenerateModifyColumn changes the column type only. Nullability, default
// and comment changes are not restated.
func (g Generator) GenerateModifyColumn(table string, col model.Column) string {
	return "ALTER TABLE " + g.QuoteIdentifier(table) + " ALTER COLUMN " + g.QuoteIdentifier(col.Name) +
		" TYPE " + columnType(col) + ";"
}

func (g Generator) GenerateAddIndex(table string, idx model.Index) string {
	kind := "INDEX"
	if idx.Unique {
		kind = "UNIQUE INDEX"
	}
	return "CREATE " + kind + " " + g.QuoteIdentifier(idx.Name) + " ON " + g.QuoteIdentifier(table) +
		" (" + g.quoteList(idx.Columns) + ");"
}

// GenerateDropIndex ignores table: index names live in the schema namespace.
func (g Generator) GenerateDropIndex(_, index string) string {
	return "DROP INDEX " + g.QuoteIdentifier(index) + ";"
}

func (g Generator) GenerateAddForeignKey(table string, fk model.ForeignKey) string {
	return "ALTER TABLE " + g.QuoteIdentifier(table) + " ADD CONSTRAINT " + g.QuoteIdentifier(fk.Name) + " " +
		g.foreignKeyClause(fk) + ";"
}

func (g Generator) GenerateDropForeignKey(table, fk string) string {
	return g.dropConstraint(table, fk)
}

func (g Generator) GenerateAddUnique(table string, uc model.UniqueConstraint) string {
	return "ALTER TABLE " + g.QuoteIdentifier(table) + " ADD CONSTRAINT " + g.QuoteIdentifier(uc.Name) +
		" UNIQUE (" + g.quoteList(uc.Columns) + ");"
}

func (g Generator) GenerateDropUnique(table, constraint string) string {
	return g.dropConstraint(table, constraint)
}

func (g Generator) dropConstraint(table, name string) string {
	return "ALTER TABLE " + g.QuoteIdentifier(table) + " DROP CONSTRAINT " + g.QuoteIdentifier(name) + ";"
}
