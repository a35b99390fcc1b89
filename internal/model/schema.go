package model

import "slices"

// Column describes a single column within a table. DataType and Default are
// dialect-native text and are only ever compared verbatim.
type Column struct {
	Name            string  `json:"name" yaml:"name"`
	DataType        string  `json:"data_type" yaml:"data_type"`
	Nullable        bool    `json:"nullable" yaml:"nullable"`
	DefaultValue    *string `json:"default_value,omitempty" yaml:"default_value,omitempty"`
	AutoIncrement   bool    `json:"auto_increment" yaml:"auto_increment"`
	Comment         *string `json:"comment,omitempty" yaml:"comment,omitempty"`
	OrdinalPosition uint32  `json:"ordinal_position" yaml:"ordinal_position"`
}

// Equal reports whether every field of c matches o, including comment and
// ordinal position.
func (c Column) Equal(o Column) bool {
	return c.Name == o.Name &&
		c.DataType == o.DataType &&
		c.Nullable == o.Nullable &&
		equalOptional(c.DefaultValue, o.DefaultValue) &&
		c.AutoIncrement == o.AutoIncrement &&
		equalOptional(c.Comment, o.Comment) &&
		c.OrdinalPosition == o.OrdinalPosition
}

// PrimaryKey is the (at most one) primary key of a table.
type PrimaryKey struct {
	Name    *string  `json:"name,omitempty" yaml:"name,omitempty"`
	Columns []string `json:"columns" yaml:"columns"`
}

// Equal reports whether p and o have the same name and column sequence.
func (p PrimaryKey) Equal(o PrimaryKey) bool {
	return equalOptional(p.Name, o.Name) && slices.Equal(p.Columns, o.Columns)
}

// Index describes a non-primary index on one or more columns.
type Index struct {
	Name      string   `json:"name" yaml:"name"`
	Columns   []string `json:"columns" yaml:"columns"`
	Unique    bool     `json:"unique" yaml:"unique"`
	IndexType string   `json:"index_type" yaml:"index_type"`
}

// Equal reports whether i and o match on every field.
func (i Index) Equal(o Index) bool {
	return i.Name == o.Name &&
		slices.Equal(i.Columns, o.Columns) &&
		i.Unique == o.Unique &&
		i.IndexType == o.IndexType
}

// ForeignKey describes a foreign key constraint. Columns and RefColumns are
// parallel sequences; OnDelete and OnUpdate are dialect-native keywords.
type ForeignKey struct {
	Name       string   `json:"name" yaml:"name"`
	Columns    []string `json:"columns" yaml:"columns"`
	RefTable   string   `json:"ref_table" yaml:"ref_table"`
	RefColumns []string `json:"ref_columns" yaml:"ref_columns"`
	OnDelete   string   `json:"on_delete" yaml:"on_delete"`
	OnUpdate   string   `json:"on_update" yaml:"on_update"`
}

// Equal reports whether f and o match on every field.
func (f ForeignKey) Equal(o ForeignKey) bool {
	return f.Name == o.Name &&
		slices.Equal(f.Columns, o.Columns) &&
		f.RefTable == o.RefTable &&
		slices.Equal(f.RefColumns, o.RefColumns) &&
		f.OnDelete == o.OnDelete &&
		f.OnUpdate == o.OnUpdate
}

// UniqueConstraint describes a named UNIQUE constraint.
type UniqueConstraint struct {
	Name    string   `json:"name" yaml:"name"`
	Columns []string `json:"columns" yaml:"columns"`
}

// Equal reports whether u and o have the same name and column sequence.
func (u UniqueConstraint) Equal(o UniqueConstraint) bool {
	return u.Name == o.Name && slices.Equal(u.Columns, o.Columns)
}

// TableSchema describes the structure of a single table. Index, foreign key
// and unique constraint slices carry no ordering meaning.
type TableSchema struct {
	Name              string             `json:"name" yaml:"name"`
	Columns           []Column           `json:"columns" yaml:"columns"`
	PrimaryKey        *PrimaryKey        `json:"primary_key,omitempty" yaml:"primary_key,omitempty"`
	Indexes           []Index            `json:"indexes" yaml:"indexes"`
	ForeignKeys       []ForeignKey       `json:"foreign_keys" yaml:"foreign_keys"`
	UniqueConstraints []UniqueConstraint `json:"unique_constraints" yaml:"unique_constraints"`
}

// Equal reports whether t and o are structurally identical. Columns are
// compared in order; the other child collections are compared in order too,
// so callers that need order-insensitive comparison should go through the
// comparator instead.
func (t TableSchema) Equal(o TableSchema) bool {
	if t.Name != o.Name {
		return false
	}
	if (t.PrimaryKey == nil) != (o.PrimaryKey == nil) {
		return false
	}
	if t.PrimaryKey != nil && !t.PrimaryKey.Equal(*o.PrimaryKey) {
		return false
	}
	return slices.EqualFunc(t.Columns, o.Columns, Column.Equal) &&
		slices.EqualFunc(t.Indexes, o.Indexes, Index.Equal) &&
		slices.EqualFunc(t.ForeignKeys, o.ForeignKeys, ForeignKey.Equal) &&
		slices.EqualFunc(t.UniqueConstraints, o.UniqueConstraints, UniqueConstraint.Equal)
}

// StringPtr returns a pointer to s. Handy for building optional fields.
func StringPtr(s string) *string {
	return &s
}

func equalOptional(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
