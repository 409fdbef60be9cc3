package engine

import (
	"context"

	"db-sync/internal/executor"
	"db-sync/internal/sqlscript"
)

// DropAllTables drops every table and view without taking a backup.
// It cannot be undone.
func (e *Engine) DropAllTables(ctx context.Context) (*executor.Result, error) {
	db, done, err := e.session(ctx, true)
	if err != nil {
		return nil, err
	}
	defer done()
	return e.dropAll(ctx, db)
}

func (e *Engine) dropAll(ctx context.Context, db Database) (*executor.Result, error) {
	tables, err := db.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	views, err := db.ListViews(ctx)
	if err != nil {
		return nil, err
	}
	deps, err := db.Dependencies(ctx)
	if err != nil {
		return nil, err
	}

	var stmts []sqlscript.Statement
	for _, v := range views {
		stmts = append(stmts, sqlscript.NewStatement(e.d.DropViewQuery(v)))
	}
	for _, t := range e.settings.Order.ApplyNames(tables, deps) {
		stmts = append(stmts, sqlscript.NewStatement(e.d.DropTableQuery(t)))
	}
	e.log.Warn().Int("tables", len(tables)).Int("views", len(views)).Msg("Dropping all tables")

	exec := e.executor(db)
	n, progress := 0, e.progress(StageDrop)
	exec.OnProgress = func() {
		n++
		progress(n, len(stmts))
	}
	res := &executor.Result{}
	err = exec.WithForeignKeysDisabled(ctx, func() error {
		return exec.RunInto(ctx, res, stmts)
	})
	if err != nil {
		return res, err
	}
	e.log.Info().Int("dropped", res.Success).Int("errors", res.Errors).Msg("Drop-all finished")
	return res, nil
}
