package engine

import (
	"context"
	"strings"

	"db-sync/internal/executor"
	"db-sync/internal/schema"
	"db-sync/internal/sqlscript"
)

// Categories run after the structural changes, in this order.
var syncTail = []sqlscript.Category{
	sqlscript.CategoryCreateIndex,
	sqlscript.CategoryCreateRoutine,
	sqlscript.CategoryInsert,
	sqlscript.CategoryCreateView,
	sqlscript.CategoryOther,
}

type SyncReport struct {
	Plan   *DiffPlan
	Result *executor.Result
	// Unsupported lists CREATE TABLE statements whose columns could not be read.
	// Those tables are still created when missing but never column-healed.
	Unsupported []*sqlscript.UnsupportedDDLError
}

// SyncDatabase reconciles the configured database with the schema file.
func (e *Engine) SyncDatabase(ctx context.Context) (*SyncReport, error) {
	stmts, err := e.readSource()
	if err != nil {
		return nil, err
	}
	db, done, err := e.session(ctx, true)
	if err != nil {
		return nil, err
	}
	defer done()
	return e.sync(ctx, db, stmts)
}

func (e *Engine) sync(ctx context.Context, db Database, stmts []sqlscript.Statement) (*SyncReport, error) {
	report := &SyncReport{Result: &executor.Result{}}

	source, err := sqlscript.ExtractTables(stmts)
	if err != nil {
		for _, u := range unsupported(err) {
			e.log.Warn().Str("table", u.Table).Str("construct", u.Construct).Msg("Cannot read columns, table will not be healed")
			report.Unsupported = append(report.Unsupported, u)
		}
		if len(report.Unsupported) == 0 {
			return nil, err
		}
	}

	groups := sqlscript.Group(stmts)
	source = nameUnreadTables(source, groups[sqlscript.CategoryCreateTable])

	live, err := Inspect(ctx, db, e.settings.Order)
	if err != nil {
		return nil, err
	}
	plan := Plan(source, live, e.settings.Order)
	report.Plan = plan
	e.logPlan(plan)

	creates := make(map[string]sqlscript.Statement)
	for _, s := range groups[sqlscript.CategoryCreateTable] {
		key := strings.ToLower(sqlscript.ObjectName(s.Text))
		if _, ok := creates[key]; !ok {
			creates[key] = s
		}
	}

	var batch []sqlscript.Statement
	for _, v := range plan.ViewsToRecreate {
		batch = append(batch, sqlscript.NewStatement(e.d.DropViewQuery(v)))
	}
	for _, t := range plan.TablesToDrop {
		batch = append(batch, sqlscript.NewStatement(e.d.DropTableQuery(t)))
	}
	for _, t := range plan.TablesToCreate {
		batch = append(batch, creates[strings.ToLower(t.Name)])
	}
	batch = append(batch, plan.AddColumnStatements(e.d)...)
	for _, cat := range syncTail {
		batch = append(batch, groups[cat]...)
	}

	// Source DROP statements would destroy tables that are only being healed.
	for _, s := range groups[sqlscript.CategoryDropObject] {
		e.log.Warn().Str("table", sqlscript.ObjectName(s.Text)).Msg("Skipping DROP statement in schema file")
		report.Result.Skip(s)
	}

	exec := e.executor(db)
	n, progress := 0, e.progress(StageSync)
	exec.OnProgress = func() {
		n++
		progress(n, len(batch))
	}
	err = exec.WithForeignKeysDisabled(ctx, func() error {
		return exec.RunInto(ctx, report.Result, batch)
	})
	if err != nil {
		return report, err
	}

	res := report.Result
	ev := e.log.Info()
	if !res.OK() {
		ev = e.log.Warn()
	}
	ev.Int("success", res.Success).Int("skipped", res.Skipped).Int("errors", res.Errors).Msg("Sync finished")
	return report, nil
}

func (e *Engine) logPlan(p *DiffPlan) {
	if p.IsEmpty() {
		e.log.Info().Int("views", len(p.ViewsToRecreate)).Msg("Schema is up to date")
		return
	}
	e.log.Info().
		Int("create", len(p.TablesToCreate)).
		Int("drop", len(p.TablesToDrop)).
		Int("alter", len(p.AlterCandidates)).
		Int("columns", len(p.MissingColumns)).
		Int("views", len(p.ViewsToRecreate)).
		Msg("Sync plan")
	for _, t := range p.TablesToCreate {
		e.log.Info().Str("table", t.Name).Msg("Table will be created")
	}
	for _, t := range p.TablesToDrop {
		e.log.Warn().Str("table", t).Msg("Obsolete table will be dropped")
	}
	for _, m := range p.MissingColumns {
		e.log.Info().Str("table", m.Table).Str("column", m.Column.Name).Msg("Column will be added")
	}
}

// unsupported flattens the joined extractor errors. It returns nil when any
// other kind of error is present.
func unsupported(err error) []*sqlscript.UnsupportedDDLError {
	if u, ok := err.(*sqlscript.UnsupportedDDLError); ok {
		return []*sqlscript.UnsupportedDDLError{u}
	}
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return nil
	}
	var out []*sqlscript.UnsupportedDDLError
	for _, inner := range joined.Unwrap() {
		found := unsupported(inner)
		if found == nil {
			return nil
		}
		out = append(out, found...)
	}
	return out
}

// nameUnreadTables adds a bare entry for every CREATE TABLE the extractor could
// not name, so those tables are never treated as obsolete.
func nameUnreadTables(source []*schema.Table, creates []sqlscript.Statement) []*schema.Table {
	known := make(map[string]bool, len(source))
	for _, t := range source {
		known[strings.ToLower(t.Name)] = true
	}
	for _, s := range creates {
		name := sqlscript.ObjectName(s.Text)
		if name != "" && !known[strings.ToLower(name)] {
			known[strings.ToLower(name)] = true
			source = append(source, &schema.Table{Name: name, Kind: schema.KindTable})
		}
	}
	return source
}
