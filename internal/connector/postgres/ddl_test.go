package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/structsync/structsync/internal/connector"
	"github.com/structsync/structsync/internal/model"
)

var _ connector.Connector = (*PostgresConnector)(nil)
var _ connector.SQLGenerator = Generator{}

func TestQuoteIdentifier(t *testing.T) {
	g := NewGenerator()
	assert.Equal(t, `"users"`, g.QuoteIdentifier("users"))
	assert.Equal(t, `"a""b"`, g.QuoteIdentifier(`a"b`))
	assert.Equal(t, `"a` + "`" + `b"`, g.QuoteIdentifier("a`b"), "backticks are not special")
}

func TestGenerateCreateTable(t *testing.T) {
	table := model.TableSchema{
		Name: "users",
		Columns: []model.Column{
			{Name: "id", DataType: "integer", AutoIncrement: true},
			{Name: "email", DataType: "varchar(255)", Comment: model.StringPtr("ignored")},
			{Name: "active", DataType: "boolean", Nullable: true, DefaultValue: model.StringPtr("true")},
		},
		PrimaryKey:        &model.PrimaryKey{Name: model.StringPtr("users_pkey"), Columns: []string{"id"}},
		Indexes:           []model.Index{{Name: "idx_active", Columns: []string{"active"}}, {Name: "ux_email", Columns: []string{"email"}, Unique: true}},
		UniqueConstraints: []model.UniqueConstraint{{Name: "uq_email", Columns: []string{"email"}}},
		ForeignKeys: []model.ForeignKey{{
			Name: "fk_org", Columns: []string{"id"}, RefTable: "orgs", RefColumns: []string{"id"},
			OnDelete: "NO ACTION", OnUpdate: "CASCADE",
		}},
	}

	want := `CREATE TABLE "users" (` + "\n" +
		`  "id" SERIAL,` + "\n" +
		`  "email" varchar(255) NOT NULL,` + "\n" +
		`  "active" boolean DEFAULT true,` + "\n" +
		`  PRIMARY KEY ("id"),` + "\n" +
		`  CONSTRAINT "uq_email" UNIQUE ("email"),` + "\n" +
		`  CONSTRAINT "fk_org" FOREIGN KEY ("id") REFERENCES "orgs" ("id") ON DELETE NO ACTION ON UPDATE CASCADE` + "\n" +
		`);` + "\n" +
		`CREATE INDEX "idx_active" ON "users" ("active");` + "\n" +
		`CREATE UNIQUE INDEX "ux_email" ON "users" ("email");`
	assert.Equal(t, want, NewGenerator().GenerateCreateTable(table))
}

func TestGenerateAddColumnSerialSuppressesNotNull(t *testing.T) {
	g := NewGenerator()
	col := model.Column{Name: "id", DataType: "integer", AutoIncrement: true, Nullable: false}
	assert.Equal(t, `ALTER TABLE "t" ADD COLUMN "id" SERIAL;`, g.GenerateAddColumn("t", col))

	plain := model.Column{Name: "n", DataType: "integer", DefaultValue: model.StringPtr("0")}
	assert.Equal(t, `ALTER TABLE "t" ADD COLUMN "n" integer NOT NULL DEFAULT 0;`, g.GenerateAddColumn("t", plain))
}

func TestGenerateModifyColumnTypeOnly(t *testing.T) {
	g := NewGenerator()
	col := model.Column{Name: "email", DataType: "varchar(200)", Nullable: false, DefaultValue: model.StringPtr("''")}
	assert.Equal(t, `ALTER TABLE "users" ALTER COLUMN "email" TYPE varchar(200);`, g.GenerateModifyColumn("users", col))

	col.AutoIncrement = true
	assert.Equal(t, `ALTER TABLE "users" ALTER COLUMN "email" TYPE SERIAL;`, g.GenerateModifyColumn("users", col))
}

func TestGenerateDropStatements(t *testing.T) {
	g := NewGenerator()
	assert.Equal(t, `DROP TABLE "users";`, g.GenerateDropTable("users"))
	assert.Equal(t, `ALTER TABLE "users" DROP COLUMN "email";`, g.GenerateDropColumn("users", "email"))
	assert.Equal(t, `DROP INDEX "idx_email";`, g.GenerateDropIndex("users", "idx_email"))
	assert.Equal(t, `ALTER TABLE "orders" DROP CONSTRAINT "fk_user";`, g.GenerateDropForeignKey("orders", "fk_user"))
	assert.Equal(t, `ALTER TABLE "users" DROP CONSTRAINT "uq_email";`, g.GenerateDropUnique("users", "uq_email"))
}

func TestGenerateAddConstraints(t *testing.T) {
	g := NewGenerator()
	fk := model.ForeignKey{Name: "fk_user", Columns: []string{"user_id"}, RefTable: "users", RefColumns: []string{"id"}, OnDelete: "CASCADE", OnUpdate: "NO ACTION"}
	assert.Equal(t,
		`ALTER TABLE "orders" ADD CONSTRAINT "fk_user" FOREIGN KEY ("user_id") REFERENCES "users" ("id") ON DELETE CASCADE ON UPDATE NO ACTION;`,
		g.GenerateAddForeignKey("orders", fk))
	assert.Equal(t,
		`ALTER TABLE "users" ADD CONSTRAINT "uq" UNIQUE ("a", "b");`,
		g.GenerateAddUnique("users", model.UniqueConstraint{Name: "uq", Columns: []string{"a", "b"}}))
}

func TestColumnRowToModel(t *testing.T) {
	serial := columnRow{
		ColumnName: "id", DataType: "integer", IsNullable: "NO", IsIdentity: "NO",
		Default: model.StringPtr("nextval('users_id_seq'::regclass)"), Position: 1,
	}
	col := serial.toModel()
	assert.True(t, col.AutoIncrement)
	assert.Nil(t, col.DefaultValue)
	assert.False(t, col.Nullable)
	assert.Equal(t, uint32(1), col.OrdinalPosition)

	identity := columnRow{ColumnName: "id", DataType: "bigint", IsNullable: "NO", IsIdentity: "YES"}
	assert.True(t, identity.toModel().AutoIncrement)

	plain := columnRow{ColumnName: "n", DataType: "integer", IsNullable: "YES", IsIdentity: "NO", Default: model.StringPtr("0")}
	col = plain.toModel()
	assert.False(t, col.AutoIncrement)
	assert.Equal(t, "0", *col.DefaultValue)
	assert.Nil(t, col.Comment)
}
