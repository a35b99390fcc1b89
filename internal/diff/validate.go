package diff

import (
	"fmt"

	"github.com/structsync/structsync/internal/model"
)

// DuplicateNameError reports a name that appears more than once where names
// must be unique. Table is empty for duplicate table names.
type DuplicateNameError struct {
	Kind  string
	Table string
	Name  string
}

func (e *DuplicateNameError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("duplicate %s name %q", e.Kind, e.Name)
	}
	return fmt.Sprintf("duplicate %s name %q in table %q", e.Kind, e.Name, e.Table)
}

// Validate checks that a snapshot has unique table names and, per table,
// unique column, index, foreign key and unique constraint names. Compare
// itself accepts duplicates; callers that prefer to reject them run this
// first.
func Validate(tables []model.TableSchema) error {
	if err := unique("table", "", tables, tableName); err != nil {
		return err
	}
	for _, t := range tables {
		if err := unique("column", t.Name, t.Columns, func(c model.Column) string { return c.Name }); err != nil {
			return err
		}
		if err := unique("index", t.Name, t.Indexes, func(i model.Index) string { return i.Name }); err != nil {
			return err
		}
		if err := unique("foreign key", t.Name, t.ForeignKeys, func(f model.ForeignKey) string { return f.Name }); err != nil {
			return err
		}
		if err := unique("unique constraint", t.Name, t.UniqueConstraints, func(u model.UniqueConstraint) string { return u.Name }); err != nil {
			return err
		}
	}
	return nil
}

func unique[T any](kind, table string, items []T, key func(T) string) error {
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		k := key(it)
		if seen[k] {
			return &DuplicateNameError{Kind: kind, Table: table, Name: k}
		}
		seen[k] = true
	}
	return nil
}
