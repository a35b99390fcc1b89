package model

import "strings"

// DiffType classifies a single structural discrepancy between two schemas.
type DiffType string

const (
	TableAdded               DiffType = "table_added"
	TableRemoved             DiffType = "table_removed"
	ColumnAdded              DiffType = "column_added"
	ColumnRemoved            DiffType = "column_removed"
	ColumnModified           DiffType = "column_modified"
	IndexAdded               DiffType = "index_added"
	IndexRemoved             DiffType = "index_removed"
	IndexModified            DiffType = "index_modified"
	ForeignKeyAdded          DiffType = "foreign_key_added"
	ForeignKeyRemoved        DiffType = "foreign_key_removed"
	ForeignKeyModified       DiffType = "foreign_key_modified"
	UniqueConstraintAdded    DiffType = "unique_constraint_added"
	UniqueConstraintRemoved  DiffType = "unique_constraint_removed"
	UniqueConstraintModified DiffType = "unique_constraint_modified"
)

// DiffTypes lists every DiffType in declaration order.
var DiffTypes = []DiffType{
	TableAdded, TableRemoved,
	ColumnAdded, ColumnRemoved, ColumnModified,
	IndexAdded, IndexRemoved, IndexModified,
	ForeignKeyAdded, ForeignKeyRemoved, ForeignKeyModified,
	UniqueConstraintAdded, UniqueConstraintRemoved, UniqueConstraintModified,
}

// Valid returns true if d is a recognized diff type.
func (d DiffType) Valid() bool {
	for _, t := range DiffTypes {
		if t == d {
			return true
		}
	}
	return false
}

// DiffItem is one classified change paired with the SQL that applies it to
// the target. SQL may hold several newline-separated statements.
type DiffItem struct {
	ID         string   `json:"id"`
	DiffType   DiffType `json:"diff_type"`
	TableName  string   `json:"table_name"`
	ObjectName *string  `json:"object_name,omitempty"`
	SourceDef  *string  `json:"source_def,omitempty"`
	TargetDef  *string  `json:"target_def,omitempty"`
	SQL        string   `json:"sql"`
	Selected   bool     `json:"selected"`
}

// DiffResult is the outcome of one comparison run.
type DiffResult struct {
	Items        []DiffItem `json:"items"`
	SourceTables int        `json:"source_tables"`
	TargetTables int        `json:"target_tables"`
}

// SelectedSQL returns the SQL of every selected item, in list order.
func (r DiffResult) SelectedSQL() []string {
	out := make([]string, 0, len(r.Items))
	for _, item := range r.Items {
		if item.Selected {
			out = append(out, item.SQL)
		}
	}
	return out
}

// Deselect clears the Selected flag on the items whose IDs are listed and
// returns how many items were changed.
func (r *DiffResult) Deselect(ids ...string) int {
	skip := make(map[string]bool, len(ids))
	for _, id := range ids {
		skip[id] = true
	}
	n := 0
	for i := range r.Items {
		if skip[r.Items[i].ID] && r.Items[i].Selected {
			r.Items[i].Selected = false
			n++
		}
	}
	return n
}

// Script joins the selected SQL into one script, one item per paragraph.
func (r DiffResult) Script() string {
	sql := r.SelectedSQL()
	if len(sql) == 0 {
		return ""
	}
	return strings.Join(sql, "\n\n") + "\n"
}

// SplitStatements breaks a generated SQL blob into individual statements.
// Generated statements end with ";" and multi-statement items join them
// with a newline, so a statement ends at ";\n". Semicolons inside string
// literals and quoted identifiers ('...', "...", `...`, [...]) do not end a
// statement.
func SplitStatements(sql string) []string {
	var (
		out   []string
		start int
		quote byte // closing quote of the region being scanned, 0 outside
	)
	emit := func(part string) {
		part = strings.TrimSpace(part)
		if part == "" {
			return
		}
		if !strings.HasSuffix(part, ";") {
			part += ";"
		}
		out = append(out, part)
	}
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		if quote != 0 {
			// Doubled quotes escape themselves and toggle twice.
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"', '`':
			quote = c
		case '[':
			quote = ']'
		case ';':
			if i+1 < len(sql) && sql[i+1] == '\n' {
				emit(sql[start : i+1])
				start = i + 2
				i++
			}
		}
	}
	emit(sql[start:])
	return out
}
