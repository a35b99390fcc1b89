package connector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/structsync/structsync/internal/model"
)

func TestCatalogBuild(t *testing.T) {
	c := Catalog{
		Tables: []string{"users", "orders"},
		Columns: []TableColumn{
			{Table: "orders", Column: model.Column{Name: "id", DataType: "int", OrdinalPosition: 1}},
			{Table: "users", Column: model.Column{Name: "id", DataType: "int", OrdinalPosition: 1}},
			{Table: "orders", Column: model.Column{Name: "user_id", DataType: "int", OrdinalPosition: 2}},
			{Table: "ghost", Column: model.Column{Name: "x", DataType: "int"}},
		},
		PrimaryKeys: []KeyColumnRow{
			{TableName: "orders", Name: "PRIMARY", ColumnName: "id"},
			{TableName: "orders", Name: "PRIMARY", ColumnName: "user_id"},
		},
		Indexes: []IndexRow{
			{TableName: "orders", Name: "idx_a", ColumnName: "user_id", IndexType: "BTREE"},
			{TableName: "orders", Name: "idx_a", ColumnName: "id", IndexType: "BTREE"},
			{TableName: "orders", Name: "idx_b", ColumnName: "id", Unique: true, IndexType: "BTREE"},
		},
		ForeignKeys: []ForeignKeyRow{
			{TableName: "orders", Name: "fk_user", ColumnName: "user_id", RefTable: "users", RefColumn: "id", OnDelete: "CASCADE", OnUpdate: "NO ACTION"},
		},
		Uniques: []KeyColumnRow{
			{TableName: "users", Name: "uq_id", ColumnName: "id"},
		},
	}

	tables := c.Build()
	require.Len(t, tables, 2)

	users, orders := tables[0], tables[1]
	assert.Equal(t, "users", users.Name)
	assert.Nil(t, users.PrimaryKey)
	assert.Len(t, users.Columns, 1)
	assert.Equal(t, []model.UniqueConstraint{{Name: "uq_id", Columns: []string{"id"}}}, users.UniqueConstraints)
	assert.NotNil(t, users.Indexes, "empty collections are non-nil")

	require.NotNil(t, orders.PrimaryKey)
	assert.Equal(t, "PRIMARY", *orders.PrimaryKey.Name)
	assert.Equal(t, []string{"id", "user_id"}, orders.PrimaryKey.Columns)
	assert.Equal(t, []string{"id", "user_id"}, []string{orders.Columns[0].Name, orders.Columns[1].Name})

	require.Len(t, orders.Indexes, 2)
	assert.Equal(t, []string{"user_id", "id"}, orders.Indexes[0].Columns)
	assert.True(t, orders.Indexes[1].Unique)

	require.Len(t, orders.ForeignKeys, 1)
	assert.Equal(t, "users", orders.ForeignKeys[0].RefTable)
	assert.Equal(t, []string{"id"}, orders.ForeignKeys[0].RefColumns)
}

func TestCatalogBuildEmpty(t *testing.T) {
	assert.Empty(t, Catalog{}.Build())
}
