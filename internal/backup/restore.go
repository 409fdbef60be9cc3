package backup

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"db-sync/internal/executor"
	"db-sync/internal/sqlscript"

	"github.com/rs/zerolog"
)

// Restore execution groups, in order.
var restorePhases = []struct {
	name       string
	categories []sqlscript.Category
}{
	{"tables", []sqlscript.Category{sqlscript.CategoryCreateTable}},
	{"data", []sqlscript.Category{sqlscript.CategoryInsert}},
	{"views", []sqlscript.Category{sqlscript.CategoryCreateView}},
	{"other", []sqlscript.Category{sqlscript.CategoryCreateIndex, sqlscript.CategoryCreateRoutine, sqlscript.CategoryOther}},
}

// Session control the restorer manages itself.
var reSessionControl = regexp.MustCompile(`(?i)^(START\s+TRANSACTION|BEGIN|COMMIT|ROLLBACK|SET\s+(@@SESSION\.|SESSION\s+)?FOREIGN_KEY_CHECKS\s*=)`)

// Report summarizes one restore run.
type Report struct {
	File         string
	SafetyBackup *Artifact
	Result       *executor.Result
	Tables       int
}

// Restorer replays a backup artifact through the parser and executor.
type Restorer struct {
	backup *Engine
	exec   *executor.Executor
	log    zerolog.Logger

	// OnStatement is called after every executed statement.
	OnStatement func(done, total int)
}

func NewRestorer(b *Engine, exec *executor.Executor, log zerolog.Logger) *Restorer {
	return &Restorer{backup: b, exec: exec.WithPolicy(executor.RestorePolicy()), log: log}
}

// Restore replays name (or the newest backup when name is empty). A safety
// backup of the current state is always taken before anything is changed.
func (r *Restorer) Restore(ctx context.Context, name string) (*Report, error) {
	// Resolve before the safety backup, which would otherwise become the newest file.
	file, err := Resolve(r.backup.dir, r.backup.cat.DatabaseName(), name)
	if err != nil {
		return nil, err
	}
	stmts, err := sqlscript.ParseFile(file)
	if err != nil {
		return nil, err
	}
	r.log.Info().Str("file", file).Int("statements", len(stmts)).Msg("Restoring backup")

	report := &Report{File: file}
	safety, err := r.backup.Create(ctx)
	switch {
	case errors.Is(err, ErrNothingToBackup):
		r.log.Warn().Msg("Database is empty, no safety backup needed")
	case err != nil:
		return nil, fmt.Errorf("safety backup failed, restore aborted: %w", err)
	default:
		report.SafetyBackup = safety
		r.log.Info().Str("file", safety.Path).Msg("Safety backup created")
	}

	res := &executor.Result{}
	var runnable []sqlscript.Statement
	for _, s := range stmts {
		text := strings.TrimSpace(s.Text)
		switch {
		case text == "" || text == ";":
			continue
		case reSessionControl.MatchString(text):
			continue
		case s.Category == sqlscript.CategoryDropObject:
			// restoring adds to the database; it never removes objects
			r.log.Warn().Str("sql", text).Msg("Skipping DROP statement in backup")
			res.Skip(s)
		default:
			runnable = append(runnable, s)
		}
	}

	groups := sqlscript.Group(runnable)
	total, done := len(runnable), 0
	exec := *r.exec
	exec.OnProgress = func() {
		done++
		if r.OnStatement != nil {
			r.OnStatement(done, total)
		}
	}

	err = exec.WithForeignKeysDisabled(ctx, func() error {
		for _, phase := range restorePhases {
			var batch []sqlscript.Statement
			for _, cat := range phase.categories {
				batch = append(batch, groups[cat]...)
			}
			if len(batch) == 0 {
				continue
			}
			r.log.Info().Str("phase", phase.name).Int("statements", len(batch)).Msg("Restore phase")
			if err := exec.RunInto(ctx, res, batch); err != nil {
				return err
			}
		}
		return nil
	})
	report.Result = res
	if err != nil {
		return report, err
	}

	tables, err := r.backup.cat.ListTables(ctx)
	if err != nil {
		return report, err
	}
	report.Tables = len(tables)

	ev := r.log.Info()
	if !res.OK() {
		ev = r.log.Warn()
	}
	ev.Int("success", res.Success).Int("skipped", res.Skipped).Int("errors", res.Errors).Int("tables", report.Tables).Msg("Restore finished")
	return report, nil
}
