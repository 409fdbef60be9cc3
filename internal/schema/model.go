package schema

import (
	"database/sql"
	"strings"
)

// Kind distinguishes base tables from views in the live catalog.
type Kind int

const (
	KindTable Kind = iota
	KindView
)

func (k Kind) String() string {
	if k == KindView {
		return "view"
	}
	return "table"
}

// Table describes one table or view, either inspected live or extracted from source SQL.
// A new Table replaces the old one on every inspection; it is never patched in place.
type Table struct {
	Name         string
	Kind         Kind
	Columns      []*Column
	Dependencies []string // tables referenced through foreign keys
}

// Column identity is Name. Definition holds the declared type/constraint text.
type Column struct {
	Name       string
	Definition string
	Nullable   bool
	Default    sql.NullString
	Key        string // PRI, UNI, MUL or empty
	Extra      string
}

// ColumnNames returns the column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// HasColumn reports whether the table declares a column, ignoring case like MySQL does.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return true
		}
	}
	return false
}

// NameSet indexes table names by their lowercase form.
func NameSet(names []string) map[string]string {
	set := make(map[string]string, len(names))
	for _, n := range names {
		set[strings.ToLower(n)] = n
	}
	return set
}
