package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"db-sync/internal/backup"
	"db-sync/internal/executor"
	"db-sync/internal/schema"
	"db-sync/internal/sqlscript"
)

type ResetReport struct {
	Backup    *backup.Artifact
	Truncated int
	Seeded    int
	Result    *executor.Result
}

// ResetDatabase backs up, empties every table and writes the baseline rows.
// The structure is left as it is.
func (e *Engine) ResetDatabase(ctx context.Context) (*ResetReport, error) {
	db, done, err := e.session(ctx, true)
	if err != nil {
		return nil, err
	}
	defer done()
	return e.reset(ctx, db, time.Now())
}

func (e *Engine) reset(ctx context.Context, db Database, now time.Time) (*ResetReport, error) {
	report := &ResetReport{Result: &executor.Result{}}

	art, err := e.backupEngine(db).Create(ctx)
	switch {
	case errors.Is(err, backup.ErrNothingToBackup):
		e.log.Warn().Msg("Database has no tables, nothing to reset")
		return report, nil
	case err != nil:
		return nil, fmt.Errorf("backup failed, reset aborted: %w", err)
	}
	report.Backup = art

	tables, err := db.ListTables(ctx)
	if err != nil {
		return report, err
	}
	deps, err := db.Dependencies(ctx)
	if err != nil {
		return report, err
	}
	ordered := e.settings.Order.ApplyNames(tables, deps)

	rows, err := SeedRows(e.settings.Seed, now)
	if err != nil {
		return report, err
	}
	seeds, err := e.seedStatements(ctx, db, rows)
	if err != nil {
		return report, err
	}

	exec := e.executor(db)
	progress := e.progress(StageTruncate)
	err = exec.WithForeignKeysDisabled(ctx, func() error {
		reversed := schema.Reverse(ordered)
		for i, t := range reversed {
			before := report.Result.Errors
			if err := exec.RunInto(ctx, report.Result, []sqlscript.Statement{sqlscript.NewStatement(e.d.TruncateQuery(t))}); err != nil {
				return err
			}
			if report.Result.Errors == before {
				report.Truncated++
			}
			progress(i+1, len(reversed))
		}
		return nil
	})
	if err != nil {
		return report, err
	}
	e.log.Info().Int("tables", report.Truncated).Msg("Tables truncated")

	before := report.Result.Success
	if err := exec.RunInto(ctx, report.Result, seeds); err != nil {
		return report, err
	}
	report.Seeded = report.Result.Success - before
	e.log.Info().Int("rows", report.Seeded).Int("errors", report.Result.Errors).Msg("Baseline data inserted")
	return report, nil
}
