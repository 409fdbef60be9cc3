package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"db-sync/internal/dialect"
)

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Inspector reads live catalog metadata. Every method is read-only.
type Inspector struct {
	q          Querier
	d          dialect.Dialect
	schemaName string
}

func NewInspector(q Querier, d dialect.Dialect, schemaName string) *Inspector {
	return &Inspector{q: q, d: d, schemaName: schemaName}
}

func (i *Inspector) DatabaseName() string {
	return i.schemaName
}

func (i *Inspector) ListTables(ctx context.Context) ([]string, error) {
	return i.listNames(ctx, i.d.GetTablesQuery(), "tables")
}

func (i *Inspector) ListViews(ctx context.Context) ([]string, error) {
	return i.listNames(ctx, i.d.GetViewsQuery(), "views")
}

func (i *Inspector) listNames(ctx context.Context, query, what string) ([]string, error) {
	rows, err := i.q.QueryContext(ctx, query, i.schemaName)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", what, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan %s name: %w", what, err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", what, err)
	}
	return names, nil
}

// ListColumns returns the columns of one table in ordinal order.
func (i *Inspector) ListColumns(ctx context.Context, table string) ([]*Column, error) {
	rows, err := i.q.QueryContext(ctx, i.d.GetColumnsQuery(), i.schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []*Column
	for rows.Next() {
		var name, colType, isNull, key, extra sql.NullString
		var def sql.NullString
		if err := rows.Scan(&name, &colType, &isNull, &def, &key, &extra); err != nil {
			return nil, fmt.Errorf("failed to scan column (table: %s): %w", table, err)
		}
		if !name.Valid {
			continue
		}
		cols = append(cols, &Column{
			Name:       name.String,
			Definition: colType.String,
			Nullable:   isNull.String == "YES",
			Default:    def,
			Key:        key.String,
			Extra:      extra.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns of %s: %w", table, err)
	}
	return cols, nil
}

// Dependencies maps each table to the tables its foreign keys reference.
// Self references are dropped.
func (i *Inspector) Dependencies(ctx context.Context) (map[string][]string, error) {
	rows, err := i.q.QueryContext(ctx, i.d.GetForeignKeysQuery(), i.schemaName)
	if err != nil {
		return nil, fmt.Errorf("failed to query foreign keys: %w", err)
	}
	defer rows.Close()

	deps := make(map[string][]string)
	seen := make(map[string]bool)
	for rows.Next() {
		var tName, rTable sql.NullString
		if err := rows.Scan(&tName, &rTable); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key: %w", err)
		}
		if !tName.Valid || !rTable.Valid || strings.EqualFold(tName.String, rTable.String) {
			continue
		}
		key := strings.ToLower(tName.String + "->" + rTable.String)
		if seen[key] {
			continue
		}
		seen[key] = true
		deps[tName.String] = append(deps[tName.String], rTable.String)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating foreign keys: %w", err)
	}
	return deps, nil
}

// TableReader is the part of a catalog Analyze reads. *Inspector implements it.
type TableReader interface {
	ListTables(ctx context.Context) ([]string, error)
	Dependencies(ctx context.Context) (map[string][]string, error)
	ListColumns(ctx context.Context, table string) ([]*Column, error)
}

// Analyze loads every base table with its columns and foreign-key dependencies,
// returned in dependency order.
func Analyze(ctx context.Context, r TableReader, order Order) ([]*Table, error) {
	names, err := r.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	deps, err := r.Dependencies(ctx)
	if err != nil {
		return nil, err
	}

	tables := make([]*Table, 0, len(names))
	for _, name := range names {
		cols, err := r.ListColumns(ctx, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, &Table{Name: name, Kind: KindTable, Columns: cols, Dependencies: deps[name]})
	}
	return order.Apply(tables), nil
}

// ShowCreate returns the DDL the server reports for a table or view.
func (i *Inspector) ShowCreate(ctx context.Context, name string, kind Kind) (string, error) {
	rows, err := i.q.QueryContext(ctx, i.d.ShowCreateQuery(name, kind == KindView))
	if err != nil {
		return "", fmt.Errorf("failed to show create %s %s: %w", kind, name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", err
	}
	if len(cols) < 2 {
		return "", fmt.Errorf("unexpected SHOW CREATE result for %s: %d columns", name, len(cols))
	}
	// SHOW CREATE TABLE yields (Table, Create Table); SHOW CREATE VIEW adds charset columns.
	vals := make([]sql.NullString, len(cols))
	ptrs := make([]any, len(cols))
	for j := range vals {
		ptrs[j] = &vals[j]
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("no DDL returned for %s %s", kind, name)
	}
	if err := rows.Scan(ptrs...); err != nil {
		return "", fmt.Errorf("failed to scan DDL of %s: %w", name, err)
	}
	return vals[1].String, rows.Err()
}

func (i *Inspector) CountRows(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := i.q.QueryRowContext(ctx, i.d.CountRowsQuery(table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows of %s: %w", table, err)
	}
	return n, nil
}

// RowFunc receives one row. cols and types are shared across calls; vals is reused
// and must not be retained.
type RowFunc func(cols []string, types []string, vals []any) error

// ScanRows streams every row of a table. The callback must not issue queries on
// the same connection while the cursor is open.
func (i *Inspector) ScanRows(ctx context.Context, table string, fn RowFunc) error {
	rows, err := i.q.QueryContext(ctx, i.d.SelectAllQuery(table))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return err
	}
	types := make([]string, len(colTypes))
	for j, ct := range colTypes {
		types[j] = ct.DatabaseTypeName()
	}

	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for j := range vals {
		ptrs[j] = &vals[j]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("failed to scan row of %s: %w", table, err)
		}
		if err := fn(cols, types, vals); err != nil {
			return err
		}
	}
	return rows.Err()
}

// DatabaseExists reports whether the server has a schema called name. It works
// on connections opened without a default database.
func (i *Inspector) DatabaseExists(ctx context.Context, name string) (bool, error) {
	var n int
	if err := i.q.QueryRowContext(ctx, i.d.GetDatabaseExistsQuery(), name).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check database %s: %w", name, err)
	}
	return n > 0, nil
}
