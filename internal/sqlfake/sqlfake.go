// Package sqlfake is an in-memory stand-in for one MySQL schema. It
// understands just enough SQL to replay backup artifacts and sync batches,
// and reports failures as driver errors so classification can be exercised.
package sqlfake

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"db-sync/internal/dialect"
	"db-sync/internal/executor"
	"db-sync/internal/schema"
	"db-sync/internal/sqlscript"

	"github.com/go-sql-driver/mysql"
)

const erBadField = 1054

type Table struct {
	DDL     string
	Columns []string
	Types   []string // DatabaseTypeName per column
	Defs    []string // column definitions as written in DDL
	Rows    [][]any
}

// NewTable builds a table from its CREATE TABLE statement.
func NewTable(ddl string) (*Table, error) {
	tbl, err := sqlscript.ExtractTable(ddl)
	if err != nil {
		return nil, err
	}
	t := &Table{DDL: ddl}
	for _, c := range tbl.Columns {
		t.addColumn(c)
	}
	return t, nil
}

func (t *Table) addColumn(c *schema.Column) {
	t.Columns = append(t.Columns, c.Name)
	t.Types = append(t.Types, columnType(c.Definition))
	t.Defs = append(t.Defs, c.Definition)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], nil)
	}
}

func (t *Table) column(name string) int {
	for i, c := range t.Columns {
		if strings.EqualFold(c, name) {
			return i
		}
	}
	return -1
}

func (t *Table) hasPrimaryKey() bool {
	return strings.Contains(strings.ToUpper(t.DDL), "PRIMARY KEY")
}

type DB struct {
	Name      string
	Databases map[string]bool
	Tables    map[string]*Table
	Views     map[string]string
	Deps      map[string][]string

	// FailCreate makes CREATE TABLE report "already exists" even for new tables.
	FailCreate bool
	// ExistsErr, when set, is returned by DatabaseExists.
	ExistsErr error
	// Executed records every statement text in order.
	Executed []string
}

func New(name string) *DB {
	return &DB{
		Name:      name,
		Databases: map[string]bool{name: true},
		Tables:    map[string]*Table{},
		Views:     map[string]string{},
		Deps:      map[string][]string{},
	}
}

// MustAddTable creates a table from ddl and panics on unsupported DDL.
func (f *DB) MustAddTable(ddl string) *Table {
	t, err := NewTable(ddl)
	if err != nil {
		panic(err)
	}
	f.Tables[sqlscript.ObjectName(ddl)] = t
	return t
}

func (f *DB) TotalRows() int {
	n := 0
	for _, t := range f.Tables {
		n += len(t.Rows)
	}
	return n
}

func (f *DB) DatabaseName() string { return f.Name }

func (f *DB) DatabaseExists(_ context.Context, name string) (bool, error) {
	if f.ExistsErr != nil {
		return false, f.ExistsErr
	}
	return f.Databases[name], nil
}

func (f *DB) ListTables(context.Context) ([]string, error) {
	return sortedKeys(f.Tables), nil
}

func (f *DB) ListViews(context.Context) ([]string, error) {
	return sortedKeys(f.Views), nil
}

func (f *DB) Dependencies(context.Context) (map[string][]string, error) {
	return f.Deps, nil
}

func (f *DB) ListColumns(_ context.Context, table string) ([]*schema.Column, error) {
	t, ok := f.Tables[table]
	if !ok {
		return nil, fmt.Errorf("no table %s", table)
	}
	cols := make([]*schema.Column, len(t.Columns))
	for i, name := range t.Columns {
		cols[i] = &schema.Column{Name: name, Definition: t.Defs[i]}
	}
	return cols, nil
}

func (f *DB) CountRows(_ context.Context, table string) (int64, error) {
	t, ok := f.Tables[table]
	if !ok {
		return 0, fmt.Errorf("no table %s", table)
	}
	return int64(len(t.Rows)), nil
}

func (f *DB) ShowCreate(_ context.Context, name string, kind schema.Kind) (string, error) {
	if kind == schema.KindView {
		return f.Views[name], nil
	}
	t, ok := f.Tables[name]
	if !ok {
		return "", fmt.Errorf("no table %s", name)
	}
	return t.DDL, nil
}

func (f *DB) ScanRows(_ context.Context, table string, fn schema.RowFunc) error {
	t := f.Tables[table]
	for _, row := range t.Rows {
		if err := fn(t.Columns, t.Types, row); err != nil {
			return err
		}
	}
	return nil
}

var (
	reTruncate     = regexp.MustCompile("(?i)^TRUNCATE\\s+TABLE\\s+`?([^`\\s]+)`?")
	reAddColumn    = regexp.MustCompile("(?is)^ALTER\\s+TABLE\\s+`?([^`\\s]+)`?\\s+ADD\\s+COLUMN\\s+(.+)$")
	reInsertCols   = regexp.MustCompile(`(?s)^INSERT\s+INTO\s+\S+\s*\(([^)]*)\)\s*VALUES\s*\(`)
	reCreateSchema = regexp.MustCompile("(?i)^CREATE\\s+DATABASE\\s+(?:IF\\s+NOT\\s+EXISTS\\s+)?`?([^`\\s]+)`?")
)

func (f *DB) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	f.Executed = append(f.Executed, query)
	upper := strings.ToUpper(query)
	switch {
	case strings.HasPrefix(upper, "SET "):
	case strings.HasPrefix(upper, "DROP TABLE"):
		delete(f.Tables, sqlscript.ObjectName(query))
	case strings.HasPrefix(upper, "DROP VIEW"):
		delete(f.Views, sqlscript.ObjectName(query))
	case reTruncate.MatchString(query):
		name := reTruncate.FindStringSubmatch(query)[1]
		t, ok := f.Tables[name]
		if !ok {
			return nil, noSuchTable(name)
		}
		t.Rows = nil
	case reAddColumn.MatchString(query):
		return f.addColumn(query)
	case reCreateSchema.MatchString(query):
		f.Databases[reCreateSchema.FindStringSubmatch(query)[1]] = true
	default:
		switch sqlscript.Categorize(query) {
		case sqlscript.CategoryCreateTable:
			return f.createTable(query)
		case sqlscript.CategoryCreateView:
			name := sqlscript.ObjectName(query)
			if _, ok := f.Views[name]; ok {
				return nil, &mysql.MySQLError{Number: executor.ErTableExists, Message: "Table '" + name + "' already exists"}
			}
			f.Views[name] = query
		case sqlscript.CategoryInsert:
			return f.insert(query, args)
		case sqlscript.CategoryCreateIndex, sqlscript.CategoryCreateRoutine:
		default:
			return nil, &mysql.MySQLError{Number: executor.ErParse, Message: "fake cannot run " + query}
		}
	}
	return driver.RowsAffected(0), nil
}

func (f *DB) createTable(query string) (sql.Result, error) {
	name := sqlscript.ObjectName(query)
	if _, ok := f.Tables[name]; ok || f.FailCreate {
		return nil, &mysql.MySQLError{Number: executor.ErTableExists, Message: "Table '" + name + "' already exists"}
	}
	t, err := NewTable(query)
	if err != nil {
		return nil, &mysql.MySQLError{Number: executor.ErParse, Message: err.Error()}
	}
	f.Tables[name] = t
	return driver.RowsAffected(0), nil
}

func (f *DB) addColumn(query string) (sql.Result, error) {
	m := reAddColumn.FindStringSubmatch(query)
	t, ok := f.Tables[m[1]]
	if !ok {
		return nil, noSuchTable(m[1])
	}
	probe, err := sqlscript.ExtractTable("CREATE TABLE `probe` (" + m[2] + ")")
	if err != nil || len(probe.Columns) != 1 {
		return nil, &mysql.MySQLError{Number: executor.ErParse, Message: "bad column definition"}
	}
	c := probe.Columns[0]
	if t.column(c.Name) >= 0 {
		return nil, &mysql.MySQLError{Number: executor.ErDupFieldName, Message: "Duplicate column name '" + c.Name + "'"}
	}
	t.addColumn(c)
	return driver.RowsAffected(0), nil
}

func (f *DB) insert(query string, args []any) (sql.Result, error) {
	name := sqlscript.ObjectName(query)
	t, ok := f.Tables[name]
	if !ok {
		return nil, noSuchTable(name)
	}

	var values []any
	if len(args) > 0 {
		values = args
	} else {
		idx := strings.Index(query, "VALUES (")
		body := query[idx+len("VALUES (") : len(query)-1]
		for _, lit := range splitLiterals(body) {
			values = append(values, decodeLiteral(lit))
		}
	}

	row := make([]any, len(t.Columns))
	if m := reInsertCols.FindStringSubmatch(query); m != nil {
		for i, col := range strings.Split(m[1], ",") {
			col = dialect.UnquoteIdent(strings.TrimSpace(col))
			j := t.column(col)
			if j < 0 {
				return nil, &mysql.MySQLError{Number: erBadField, Message: "Unknown column '" + col + "'"}
			}
			if i < len(values) {
				row[j] = values[i]
			}
		}
	} else {
		copy(row, values)
	}

	if t.hasPrimaryKey() && row[0] != nil {
		key := fmt.Sprint(row[0])
		for _, existing := range t.Rows {
			if fmt.Sprint(existing[0]) == key {
				return nil, &mysql.MySQLError{Number: executor.ErDupEntry, Message: "Duplicate entry '" + key + "' for key 'PRIMARY'"}
			}
		}
	}
	t.Rows = append(t.Rows, row)
	return driver.RowsAffected(1), nil
}

func noSuchTable(name string) error {
	return &mysql.MySQLError{Number: executor.ErNoSuchTable, Message: "Table '" + name + "' doesn't exist"}
}

// columnType maps a column definition to the driver's DatabaseTypeName.
func columnType(def string) string {
	fields := strings.Fields(def)
	if len(fields) < 2 {
		return ""
	}
	typ := strings.ToUpper(fields[1])
	if p := strings.IndexByte(typ, '('); p >= 0 {
		typ = typ[:p]
	}
	return typ
}

func splitLiterals(s string) []string {
	var out []string
	start := 0
	inQuote := false
	for i := 0; i < len(s); i++ {
		switch {
		case inQuote && s[i] == '\\':
			i++
		case s[i] == '\'':
			inQuote = !inQuote
		case !inQuote && s[i] == ',':
			out = append(out, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}

var unescape = strings.NewReplacer(`\0`, "\x00", `\n`, "\n", `\r`, "\r", `\\`, `\`, `\'`, "'", `\"`, `"`, `\Z`, "\x1a")

func decodeLiteral(lit string) any {
	switch {
	case lit == "NULL":
		return nil
	case strings.HasPrefix(lit, "X'"):
		b, _ := hex.DecodeString(lit[2 : len(lit)-1])
		return b
	case strings.HasPrefix(lit, "'"):
		return []byte(unescape.Replace(lit[1 : len(lit)-1]))
	default:
		if n, err := strconv.ParseInt(lit, 10, 64); err == nil {
			return n
		}
		return []byte(lit)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
