package engine

import (
	"context"
	"strings"

	"db-sync/internal/dialect"
	"db-sync/internal/schema"
	"db-sync/internal/sqlscript"
)

// LiveSchema is a read-only snapshot of the target database.
type LiveSchema struct {
	Tables       []string
	Views        []string
	Columns      map[string][]*schema.Column
	Dependencies map[string][]string
}

// ColumnAddition is one source column missing from a live table.
type ColumnAddition struct {
	Table  string
	Column *schema.Column
}

// DiffPlan is the set of structural changes that reconcile live with source.
// Tables are in creation order; TablesToDrop is already reversed.
type DiffPlan struct {
	TablesToCreate  []*schema.Table
	TablesToDrop    []string
	AlterCandidates []*schema.Table
	MissingColumns  []ColumnAddition
	ViewsToRecreate []string
}

// IsEmpty reports whether the plan changes any table. Views are recreated on
// every run and do not count.
func (p *DiffPlan) IsEmpty() bool {
	return len(p.TablesToCreate) == 0 && len(p.TablesToDrop) == 0 && len(p.MissingColumns) == 0
}

// Inspect reads the live schema. It never writes.
func Inspect(ctx context.Context, cat Catalog, order schema.Order) (*LiveSchema, error) {
	tables, err := schema.Analyze(ctx, cat, order)
	if err != nil {
		return nil, err
	}
	views, err := cat.ListViews(ctx)
	if err != nil {
		return nil, err
	}
	live := &LiveSchema{
		Tables:       make([]string, 0, len(tables)),
		Views:        views,
		Columns:      make(map[string][]*schema.Column, len(tables)),
		Dependencies: make(map[string][]string),
	}
	for _, t := range tables {
		live.Tables = append(live.Tables, t.Name)
		live.Columns[t.Name] = t.Columns
		if len(t.Dependencies) > 0 {
			live.Dependencies[t.Name] = t.Dependencies
		}
	}
	return live, nil
}

// Plan compares source tables with the live schema. Names match case-insensitively.
func Plan(source []*schema.Table, live *LiveSchema, order schema.Order) *DiffPlan {
	plan := &DiffPlan{ViewsToRecreate: live.Views}
	liveSet := schema.NameSet(live.Tables)

	sourceSet := make(map[string]bool, len(source))
	for _, t := range order.Apply(dedupe(source)) {
		key := strings.ToLower(t.Name)
		sourceSet[key] = true
		liveName, exists := liveSet[key]
		if !exists {
			plan.TablesToCreate = append(plan.TablesToCreate, t)
			continue
		}
		plan.AlterCandidates = append(plan.AlterCandidates, t)
		current := &schema.Table{Name: liveName, Columns: live.Columns[liveName]}
		for _, c := range t.Columns {
			if !current.HasColumn(c.Name) {
				plan.MissingColumns = append(plan.MissingColumns, ColumnAddition{Table: liveName, Column: c})
			}
		}
	}

	var obsolete []string
	for _, name := range order.ApplyNames(live.Tables, live.Dependencies) {
		if !sourceSet[strings.ToLower(name)] {
			obsolete = append(obsolete, name)
		}
	}
	plan.TablesToDrop = schema.Reverse(obsolete)
	return plan
}

// dedupe keeps the first definition of each table name.
func dedupe(tables []*schema.Table) []*schema.Table {
	seen := make(map[string]bool, len(tables))
	out := make([]*schema.Table, 0, len(tables))
	for _, t := range tables {
		key := strings.ToLower(t.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}

// AddColumnStatements renders one ALTER TABLE .. ADD COLUMN per missing column.
func (p *DiffPlan) AddColumnStatements(d dialect.Dialect) []sqlscript.Statement {
	stmts := make([]sqlscript.Statement, 0, len(p.MissingColumns))
	for _, m := range p.MissingColumns {
		stmts = append(stmts, sqlscript.NewStatement(d.AddColumnQuery(m.Table, m.Column.Definition)))
	}
	return stmts
}
