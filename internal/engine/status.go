package engine

import (
	"context"

	"db-sync/internal/backup"
)

type TableStatus struct {
	Name string
	Rows int64
}

// StatusReport describes the target database. A missing database or one
// without tables is a state, not an error.
type StatusReport struct {
	Host           string
	Port           int
	Database       string
	DatabaseExists bool
	Tables         []TableStatus
	Views          []string
	Backups        []backup.FileInfo
}

func (s *StatusReport) Empty() bool {
	return len(s.Tables) == 0
}

func (e *Engine) Status(ctx context.Context) (*StatusReport, error) {
	report := &StatusReport{}
	if e.manager != nil {
		cfg := e.manager.Config()
		report.Host, report.Port, report.Database = cfg.Host, cfg.Port, cfg.Database
	}

	backups, err := backup.List(e.settings.BackupDir)
	if err != nil {
		return nil, err
	}
	report.Backups = backups

	exists, err := e.DatabaseExists(ctx)
	if err != nil {
		return nil, err
	}
	report.DatabaseExists = exists
	if !exists {
		return report, nil
	}

	db, done, err := e.session(ctx, true)
	if err != nil {
		return nil, err
	}
	defer done()
	return e.status(ctx, db, report)
}

func (e *Engine) status(ctx context.Context, db Database, report *StatusReport) (*StatusReport, error) {
	report.Database = db.DatabaseName()
	tables, err := db.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range tables {
		n, err := db.CountRows(ctx, t)
		if err != nil {
			return nil, err
		}
		report.Tables = append(report.Tables, TableStatus{Name: t, Rows: n})
	}
	views, err := db.ListViews(ctx)
	if err != nil {
		return nil, err
	}
	report.Views = views
	if report.Empty() {
		e.log.Warn().Str("database", report.Database).Msg("Database has no tables")
	}
	return report, nil
}
