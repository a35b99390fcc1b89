// Package diff compares two schema snapshots and classifies every structural
// difference as a DiffItem carrying the target-dialect SQL that resolves it.
//
// Comparison is pure: it performs no I/O, never mutates its inputs and keeps
// no state between calls, so it is safe for concurrent use.
package diff

import (
	"strconv"
	"strings"

	"github.com/structsync/structsync/internal/connector"
	"github.com/structsync/structsync/internal/model"
)

// Compare diffs source against target and reports the table counts of both
// snapshots alongside the items.
func Compare(source, target []model.TableSchema, gen connector.SQLGenerator) model.DiffResult {
	return model.DiffResult{
		Items:        CompareSchemas(source, target, gen),
		SourceTables: len(source),
		TargetTables: len(target),
	}
}

// CompareSchemas returns the ordered diff items that transform target into
// source. Items are emitted in this order: tables added (source order),
// tables removed (target order), then for each table present in both, in
// source order, the column, index, foreign key and unique constraint diffs.
// Within each kind, added and modified items follow source order and
// removed items follow target order.
//
// Objects are matched by exact name. When a snapshot holds two objects of
// the same kind with the same name, the later one wins. IDs start at "1" and
// increase by one per emitted item; every item starts selected.
func CompareSchemas(source, target []model.TableSchema, gen connector.SQLGenerator) []model.DiffItem {
	c := &comparer{gen: gen, items: []model.DiffItem{}}

	src := index(source, tableName)
	tgt := index(target, tableName)

	src.each(func(t model.TableSchema) {
		if _, ok := tgt.get(t.Name); !ok {
			c.emit(model.DiffItem{
				DiffType:  model.TableAdded,
				TableName: t.Name,
				SourceDef: columnCount(t),
				SQL:       gen.GenerateCreateTable(t),
			})
		}
	})

	tgt.each(func(t model.TableSchema) {
		if _, ok := src.get(t.Name); !ok {
			c.emit(model.DiffItem{
				DiffType:  model.TableRemoved,
				TableName: t.Name,
				TargetDef: columnCount(t),
				SQL:       gen.GenerateDropTable(t.Name),
			})
		}
	})

	src.each(func(s model.TableSchema) {
		if t, ok := tgt.get(s.Name); ok {
			c.compareTable(s, t)
		}
	})

	return c.items
}

type comparer struct {
	gen   connector.SQLGenerator
	next  int
	items []model.DiffItem
}

func (c *comparer) emit(item model.DiffItem) {
	c.next++
	item.ID = strconv.Itoa(c.next)
	item.Selected = true
	c.items = append(c.items, item)
}

func (c *comparer) compareTable(source, target model.TableSchema) {
	c.compareColumns(source, target)
	c.compareIndexes(source, target)
	c.compareForeignKeys(source, target)
	c.compareUniques(source, target)
}

func (c *comparer) compareColumns(source, target model.TableSchema) {
	table := source.Name
	src := index(source.Columns, func(col model.Column) string { return col.Name })
	tgt := index(target.Columns, func(col model.Column) string { return col.Name })

	src.each(func(col model.Column) {
		other, ok := tgt.get(col.Name)
		switch {
		case !ok:
			c.emit(model.DiffItem{
				DiffType:   model.ColumnAdded,
				TableName:  table,
				ObjectName: model.StringPtr(col.Name),
				SourceDef:  model.StringPtr(col.DataType),
				SQL:        c.gen.GenerateAddColumn(table, col),
			})
		case !col.Equal(other):
			c.emit(model.DiffItem{
				DiffType:   model.ColumnModified,
				TableName:  table,
				ObjectName: model.StringPtr(col.Name),
				SourceDef:  model.StringPtr(col.DataType),
				TargetDef:  model.StringPtr(other.DataType),
				SQL:        c.gen.GenerateModifyColumn(table, col),
			})
		}
	})

	tgt.each(func(col model.Column) {
		if _, ok := src.get(col.Name); !ok {
			c.emit(model.DiffItem{
				DiffType:   model.ColumnRemoved,
				TableName:  table,
				ObjectName: model.StringPtr(col.Name),
				TargetDef:  model.StringPtr(col.DataType),
				SQL:        c.gen.GenerateDropColumn(table, col.Name),
			})
		}
	})
}

func (c *comparer) compareIndexes(source, target model.TableSchema) {
	table := source.Name
	src := index(source.Indexes, func(i model.Index) string { return i.Name })
	tgt := index(target.Indexes, func(i model.Index) string { return i.Name })

	src.each(func(idx model.Index) {
		other, ok := tgt.get(idx.Name)
		switch {
		case !ok:
			c.emit(model.DiffItem{
				DiffType:   model.IndexAdded,
				TableName:  table,
				ObjectName: model.StringPtr(idx.Name),
				SourceDef:  joined(idx.Columns),
				SQL:        c.gen.GenerateAddIndex(table, idx),
			})
		case !idx.Equal(other):
			c.emit(model.DiffItem{
				DiffType:   model.IndexModified,
				TableName:  table,
				ObjectName: model.StringPtr(idx.Name),
				SourceDef:  joined(idx.Columns),
				TargetDef:  joined(other.Columns),
				SQL:        c.gen.GenerateDropIndex(table, idx.Name) + "\n" + c.gen.GenerateAddIndex(table, idx),
			})
		}
	})

	tgt.each(func(idx model.Index) {
		if _, ok := src.get(idx.Name); !ok {
			c.emit(model.DiffItem{
				DiffType:   model.IndexRemoved,
				TableName:  table,
				ObjectName: model.StringPtr(idx.Name),
				TargetDef:  joined(idx.Columns),
				SQL:        c.gen.GenerateDropIndex(table, idx.Name),
			})
		}
	})
}

func (c *comparer) compareForeignKeys(source, target model.TableSchema) {
	table := source.Name
	src := index(source.ForeignKeys, func(fk model.ForeignKey) string { return fk.Name })
	tgt := index(target.ForeignKeys, func(fk model.ForeignKey) string { return fk.Name })

	src.each(func(fk model.ForeignKey) {
		other, ok := tgt.get(fk.Name)
		switch {
		case !ok:
			c.emit(model.DiffItem{
				DiffType:   model.ForeignKeyAdded,
				TableName:  table,
				ObjectName: model.StringPtr(fk.Name),
				SourceDef:  model.StringPtr("-> " + fk.RefTable),
				SQL:        c.gen.GenerateAddForeignKey(table, fk),
			})
		case !fk.Equal(other):
			c.emit(model.DiffItem{
				DiffType:   model.ForeignKeyModified,
				TableName:  table,
				ObjectName: model.StringPtr(fk.Name),
				SourceDef:  model.StringPtr("-> " + fk.RefTable + " (" + strings.Join(fk.RefColumns, ", ") + ")"),
				TargetDef:  model.StringPtr("-> " + other.RefTable + " (" + strings.Join(other.RefColumns, ", ") + ")"),
				SQL:        c.gen.GenerateDropForeignKey(table, fk.Name) + "\n" + c.gen.GenerateAddForeignKey(table, fk),
			})
		}
	})

	tgt.each(func(fk model.ForeignKey) {
		if _, ok := src.get(fk.Name); !ok {
			c.emit(model.DiffItem{
				DiffType:   model.ForeignKeyRemoved,
				TableName:  table,
				ObjectName: model.StringPtr(fk.Name),
				TargetDef:  model.StringPtr("-> " + fk.RefTable),
				SQL:        c.gen.GenerateDropForeignKey(table, fk.Name),
			})
		}
	})
}

func (c *comparer) compareUniques(source, target model.TableSchema) {
	table := source.Name
	src := index(source.UniqueConstraints, func(u model.UniqueConstraint) string { return u.Name })
	tgt := index(target.UniqueConstraints, func(u model.UniqueConstraint) string { return u.Name })

	src.each(func(uc model.UniqueConstraint) {
		other, ok := tgt.get(uc.Name)
		switch {
		case !ok:
			c.emit(model.DiffItem{
				DiffType:   model.UniqueConstraintAdded,
				TableName:  table,
				ObjectName: model.StringPtr(uc.Name),
				SourceDef:  joined(uc.Columns),
				SQL:        c.gen.GenerateAddUnique(table, uc),
			})
		case !uc.Equal(other):
			c.emit(model.DiffItem{
				DiffType:   model.UniqueConstraintModified,
				TableName:  table,
				ObjectName: model.StringPtr(uc.Name),
				SourceDef:  joined(uc.Columns),
				TargetDef:  joined(other.Columns),
				SQL:        c.gen.GenerateDropUnique(table, uc.Name) + "\n" + c.gen.GenerateAddUnique(table, uc),
			})
		}
	})

	tgt.each(func(uc model.UniqueConstraint) {
		if _, ok := src.get(uc.Name); !ok {
			c.emit(model.DiffItem{
				DiffType:   model.UniqueConstraintRemoved,
				TableName:  table,
				ObjectName: model.StringPtr(uc.Name),
				TargetDef:  joined(uc.Columns),
				SQL:        c.gen.GenerateDropUnique(table, uc.Name),
			})
		}
	})
}

// named is a name-keyed lookup that remembers the order of its entries. A
// later entry with a repeated name replaces the earlier one.
type named[T any] struct {
	order  []T
	byName map[string]T
	last   map[string]int
	key    func(T) string
}

func index[T any](items []T, key func(T) string) named[T] {
	n := named[T]{
		order:  items,
		byName: make(map[string]T, len(items)),
		last:   make(map[string]int, len(items)),
		key:    key,
	}
	for i, it := range items {
		k := key(it)
		n.byName[k] = it
		n.last[k] = i
	}
	return n
}

func (n named[T]) get(name string) (T, bool) {
	v, ok := n.byName[name]
	return v, ok
}

// each visits the surviving entries in their original order.
func (n named[T]) each(fn func(T)) {
	for i, it := range n.order {
		if n.last[n.key(it)] == i {
			fn(it)
		}
	}
}

func tableName(t model.TableSchema) string { return t.Name }

func columnCount(t model.TableSchema) *string {
	return model.StringPtr(strconv.Itoa(len(t.Columns)) + " columns")
}

func joined(cols []string) *string {
	return model.StringPtr(strings.Join(cols, ", "))
}
