package mssql

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/structsync/structsync/internal/connector"
	"github.com/structsync/structsync/internal/model"
)

var _ connector.Connector = (*MSSQLConnector)(nil)
var _ connector.SQLGenerator = Generator{}

func TestQuoteIdentifier(t *testing.T) {
	g := NewGenerator()
	assert.Equal(t, "[users]", g.QuoteIdentifier("users"))
	assert.Equal(t, "[a]]b]", g.QuoteIdentifier("a]b"))
	assert.Equal(t, "[a[b]", g.QuoteIdentifier("a[b"))
}

func TestGenerateCreateTable(t *testing.T) {
	table := model.TableSchema{
		Name: "users",
		Columns: []model.Column{
			{Name: "id", DataType: "int", AutoIncrement: true},
			{Name: "email", DataType: "nvarchar(255)", Comment: model.StringPtr("ignored")},
			{Name: "score", DataType: "int", Nullable: true, DefaultValue: model.StringPtr("((0))")},
		},
		PrimaryKey: &model.PrimaryKey{Columns: []string{"id"}},
		Indexes:    []model.Index{{Name: "ix_score", Columns: []string{"score"}}},
	}

	want := "CREATE TABLE [users] (\n" +
		"  [id] int IDENTITY(1,1) NOT NULL,\n" +
		"  [email] nvarchar(255) NOT NULL,\n" +
		"  [score] int DEFAULT ((0)),\n" +
		"  PRIMARY KEY ([id])\n" +
		");\n" +
		"CREATE INDEX [ix_score] ON [users] ([score]);"
	assert.Equal(t, want, NewGenerator().GenerateCreateTable(table))
}

func TestGenerateAlterStatements(t *testing.T) {
	g := NewGenerator()
	col := model.Column{Name: "email", DataType: "nvarchar(200)", Nullable: true}

	assert.Equal(t, "ALTER TABLE [users] ADD [email] nvarchar(200);", g.GenerateAddColumn("users", col))
	assert.Equal(t, "ALTER TABLE [users] ALTER COLUMN [email] nvarchar(200) NULL;", g.GenerateModifyColumn("users", col))

	col.Nullable = false
	col.DefaultValue = model.StringPtr("''")
	assert.Equal(t, "ALTER TABLE [users] ALTER COLUMN [email] nvarchar(200) NOT NULL;", g.GenerateModifyColumn("users", col))

	assert.Equal(t, "ALTER TABLE [users] DROP COLUMN [email];", g.GenerateDropColumn("users", "email"))
	assert.Equal(t, "CREATE UNIQUE INDEX [ux] ON [users] ([email]);", g.GenerateAddIndex("users", model.Index{Name: "ux", Columns: []string{"email"}, Unique: true}))
	assert.Equal(t, "DROP INDEX [ux] ON [users];", g.GenerateDropIndex("users", "ux"))
	assert.Equal(t, "ALTER TABLE [orders] DROP CONSTRAINT [fk_user];", g.GenerateDropForeignKey("orders", "fk_user"))
	assert.Equal(t, "ALTER TABLE [users] DROP CONSTRAINT [uq_email];", g.GenerateDropUnique("users", "uq_email"))
	assert.Equal(t, "ALTER TABLE [users] ADD CONSTRAINT [uq] UNIQUE ([a]);", g.GenerateAddUnique("users", model.UniqueConstraint{Name: "uq", Columns: []string{"a"}}))
}

func TestFormatType(t *testing.T) {
	i := func(v int64) *int64 { return &v }
	tests := []struct {
		dataType            string
		length, prec, scale *int64
		want                string
	}{
		{"int", nil, i(10), i(0), "int"},
		{"nvarchar", i(-1), nil, nil, "nvarchar(max)"},
		{"varchar", i(255), nil, nil, "varchar(255)"},
		{"decimal", nil, i(10), i(2), "decimal(10,2)"},
		{"numeric", nil, i(18), nil, "numeric(18,0)"},
		{"char", nil, nil, nil, "char"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatType(tt.dataType, tt.length, tt.prec, tt.scale))
	}
}

func TestColumnRowToModel(t *testing.T) {
	n := int64(50)
	row := columnRow{ColumnName: "name", DataType: "nvarchar", IsNullable: "NO", MaxLength: &n, IsIdentity: 0, Position: 2}
	col := row.toModel()
	assert.Equal(t, "nvarchar(50)", col.DataType)
	assert.False(t, col.Nullable)
	assert.False(t, col.AutoIncrement)
	assert.Equal(t, uint32(2), col.OrdinalPosition)

	row.IsIdentity = 1
	assert.True(t, row.toModel().AutoIncrement)
}
