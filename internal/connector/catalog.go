package connector

import "github.com/structsync/structsync/internal/model"

// Catalog holds the flattened rows read from one database's system catalog.
// Dialect introspection fills it with one query per object kind, ordered by
// table, object name and column position, and Build folds the rows into
// TableSchema values.
type Catalog struct {
	Tables      []string
	Columns     []TableColumn
	PrimaryKeys []KeyColumnRow
	Indexes     []IndexRow
	ForeignKeys []ForeignKeyRow
	Uniques     []KeyColumnRow
}

// TableColumn pairs a decoded column with its owning table.
type TableColumn struct {
	Table  string
	Column model.Column
}

// KeyColumnRow is one column of a named primary key or unique constraint.
type KeyColumnRow struct {
	TableName  string `db:"table_name"`
	Name       string `db:"constraint_name"`
	ColumnName string `db:"column_name"`
}

// IndexRow is one column of a named index.
type IndexRow struct {
	TableName  string `db:"table_name"`
	Name       string `db:"index_name"`
	ColumnName string `db:"column_name"`
	Unique     bool   `db:"is_unique"`
	IndexType  string `db:"index_type"`
}

// ForeignKeyRow is one column pair of a named foreign key.
type ForeignKeyRow struct {
	TableName  string `db:"table_name"`
	Name       string `db:"constraint_name"`
	ColumnName string `db:"column_name"`
	RefTable   string `db:"ref_table"`
	RefColumn  string `db:"ref_column"`
	OnDelete   string `db:"delete_rule"`
	OnUpdate   string `db:"update_rule"`
}

// Build assembles the catalog rows into one TableSchema per table, in the
// order of c.Tables. Rows for tables not listed are ignored. Multi-column
// objects keep the column order in which their rows arrived.
func (c Catalog) Build() []model.TableSchema {
	byName := make(map[string]*model.TableSchema, len(c.Tables))
	tables := make([]model.TableSchema, len(c.Tables))
	for i, name := range c.Tables {
		tables[i] = model.TableSchema{
			Name:              name,
			Columns:           []model.Column{},
			Indexes:           []model.Index{},
			ForeignKeys:       []model.ForeignKey{},
			UniqueConstraints: []model.UniqueConstraint{},
		}
		byName[name] = &tables[i]
	}

	for _, tc := range c.Columns {
		if t := byName[tc.Table]; t != nil {
			t.Columns = append(t.Columns, tc.Column)
		}
	}

	for _, r := range c.PrimaryKeys {
		t := byName[r.TableName]
		if t == nil {
			continue
		}
		if t.PrimaryKey == nil {
			t.PrimaryKey = &model.PrimaryKey{Name: model.StringPtr(r.Name)}
		}
		t.PrimaryKey.Columns = append(t.PrimaryKey.Columns, r.ColumnName)
	}

	for _, r := range c.Indexes {
		t := byName[r.TableName]
		if t == nil {
			continue
		}
		if n := len(t.Indexes); n > 0 && t.Indexes[n-1].Name == r.Name {
			t.Indexes[n-1].Columns = append(t.Indexes[n-1].Columns, r.ColumnName)
			continue
		}
		t.Indexes = append(t.Indexes, model.Index{
			Name:      r.Name,
			Columns:   []string{r.ColumnName},
			Unique:    r.Unique,
			IndexType: r.IndexType,
		})
	}

	for _, r := range c.ForeignKeys {
		t := byName[r.TableName]
		if t == nil {
			continue
		}
		if n := len(t.ForeignKeys); n > 0 && t.ForeignKeys[n-1].Name == r.Name {
			fk := &t.ForeignKeys[n-1]
			fk.Columns = append(fk.Columns, r.ColumnName)
			fk.RefColumns = append(fk.RefColumns, r.RefColumn)
			continue
		}
		t.ForeignKeys = append(t.ForeignKeys, model.ForeignKey{
			Name:       r.Name,
			Columns:    []string{r.ColumnName},
			RefTable:   r.RefTable,
			RefColumns: []string{r.RefColumn},
			OnDelete:   r.OnDelete,
			OnUpdate:   r.OnUpdate,
		})
	}

	for _, r := range c.Uniques {
		t := byName[r.TableName]
		if t == nil {
			continue
		}
		if n := len(t.UniqueConstraints); n > 0 && t.UniqueConstraints[n-1].Name == r.Name {
			t.UniqueConstraints[n-1].Columns = append(t.UniqueConstraints[n-1].Columns, r.ColumnName)
			continue
		}
		t.UniqueConstraints = append(t.UniqueConstraints, model.UniqueConstraint{
			Name:    r.Name,
			Columns: []string{r.ColumnName},
		})
	}

	return tables
}
