package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"db-sync/internal/backup"
	"db-sync/internal/conn"
	"db-sync/internal/dialect"
	"db-sync/internal/executor"
	"db-sync/internal/schema"
	"db-sync/internal/sqlscript"

	"github.com/rs/zerolog"
)

// ErrPrecondition marks a flow that could not start, such as a missing schema
// or backup file. Nothing has been changed when it is returned.
var ErrPrecondition = errors.New("precondition failed")

// Progress stages reported through Engine.Progress.
const (
	StageSync     = "sync"
	StageBackup   = "backup"
	StageRestore  = "restore"
	StageTruncate = "truncate"
	StageDrop     = "drop"
)

// Catalog is the read side a flow needs. *schema.Inspector implements it.
type Catalog interface {
	backup.Catalog
	DatabaseExists(ctx context.Context, name string) (bool, error)
	ListColumns(ctx context.Context, table string) ([]*schema.Column, error)
	CountRows(ctx context.Context, table string) (int64, error)
}

// Database is one flow's view of the server: catalog reads and statement
// execution over the same session.
type Database interface {
	Catalog
	executor.Execer
}

// liveDB binds an Inspector and the statements it runs to one *sql.Conn.
type liveDB struct {
	*schema.Inspector
	conn *sql.Conn
}

func (l liveDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return l.conn.ExecContext(ctx, query, args...)
}

type Settings struct {
	SchemaFile string
	BackupDir  string
	Order      schema.Order
	Seed       SeedConfig
}

// Engine runs the sync, backup, restore, reset, drop-all and status flows.
// Flows are sequential; each one opens its own connection and closes it on return.
type Engine struct {
	manager  *conn.Manager
	d        dialect.Dialect
	settings Settings
	log      zerolog.Logger

	// Progress, when set, receives per-statement or per-table progress.
	Progress func(stage string, done, total int)

	open      func(ctx context.Context, withDatabase bool) (Database, error)
	reconnect func(ctx context.Context) (Database, error)
}

func New(manager *conn.Manager, settings Settings, log zerolog.Logger) *Engine {
	if settings.Order == nil {
		settings.Order = schema.DefaultOrder
	}
	e := &Engine{manager: manager, d: dialect.GetDialect(), settings: settings, log: log}
	e.open = e.connect
	e.reconnect = e.reconnectDatabase
	return e
}

// NewWithDatabase runs every flow against db instead of opening connections.
func NewWithDatabase(db Database, settings Settings, log zerolog.Logger) *Engine {
	e := New(nil, settings, log)
	e.open = func(context.Context, bool) (Database, error) { return db, nil }
	e.reconnect = func(context.Context) (Database, error) { return db, nil }
	return e
}

func (e *Engine) connect(ctx context.Context, withDatabase bool) (Database, error) {
	h, err := e.manager.Connect(ctx, withDatabase)
	if err != nil {
		return nil, err
	}
	return e.bind(h), nil
}

func (e *Engine) reconnectDatabase(ctx context.Context) (Database, error) {
	h, err := e.manager.Reconnect(ctx)
	if err != nil {
		return nil, err
	}
	return e.bind(h), nil
}

func (e *Engine) bind(h *conn.Handle) Database {
	return liveDB{Inspector: schema.NewInspector(h.Conn, e.d, h.Database), conn: h.Conn}
}

// session opens a database for one flow. The returned func must be deferred.
func (e *Engine) session(ctx context.Context, withDatabase bool) (Database, func(), error) {
	db, err := e.open(ctx, withDatabase)
	if err != nil {
		return nil, nil, err
	}
	return db, func() {
		if e.manager == nil {
			return
		}
		if err := e.manager.Close(); err != nil {
			e.log.Warn().Err(err).Msg("Failed to close connection")
		}
	}, nil
}

func (e *Engine) progress(stage string) func(done, total int) {
	return func(done, total int) {
		if e.Progress != nil {
			e.Progress(stage, done, total)
		}
	}
}

func (e *Engine) executor(db Database) *executor.Executor {
	return executor.New(db, e.d, e.log)
}

func (e *Engine) backupEngine(db Database) *backup.Engine {
	b := backup.New(db, e.d, e.settings.BackupDir, e.settings.Order, e.log)
	b.OnTable = e.progress(StageBackup)
	return b
}

// Connect checks that the server accepts the configured credentials.
func (e *Engine) Connect(ctx context.Context) error {
	_, done, err := e.session(ctx, false)
	if err != nil {
		return err
	}
	done()
	return nil
}

// DatabaseExists reports whether the configured database exists on the server.
func (e *Engine) DatabaseExists(ctx context.Context) (bool, error) {
	db, done, err := e.session(ctx, false)
	if err != nil {
		return false, err
	}
	defer done()
	return db.DatabaseExists(ctx, e.databaseName(db))
}

func (e *Engine) databaseName(db Database) string {
	if e.manager != nil {
		return e.manager.Config().Database
	}
	return db.DatabaseName()
}

// Setup creates the database when missing and then syncs it with the schema file.
func (e *Engine) Setup(ctx context.Context) (*SyncReport, error) {
	// Fail before touching the server when there is nothing to sync.
	stmts, err := e.readSource()
	if err != nil {
		return nil, err
	}

	db, done, err := e.session(ctx, false)
	if err != nil {
		return nil, err
	}
	defer done()

	name := e.databaseName(db)
	exists, err := db.DatabaseExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to check whether database %s exists: %w", name, err)
	}
	if !exists {
		e.log.Info().Str("database", name).Msg("Creating database")
		if err := e.executor(db).Exec(ctx, sqlscript.NewStatement(e.d.CreateDatabaseQuery(name))); err != nil {
			return nil, fmt.Errorf("failed to create database %s: %w", name, err)
		}
	}

	// The server-level handle is replaced by one bound to the database.
	db, err = e.reconnect(ctx)
	if err != nil {
		return nil, err
	}
	return e.sync(ctx, db, stmts)
}

// CreateBackup writes a full backup of the configured database.
func (e *Engine) CreateBackup(ctx context.Context) (*backup.Artifact, error) {
	db, done, err := e.session(ctx, true)
	if err != nil {
		return nil, err
	}
	defer done()
	return e.backupEngine(db).Create(ctx)
}

// RestoreBackup replays name, or the newest backup when name is empty.
func (e *Engine) RestoreBackup(ctx context.Context, name string) (*backup.Report, error) {
	db, done, err := e.session(ctx, true)
	if err != nil {
		return nil, err
	}
	defer done()

	r := backup.NewRestorer(e.backupEngine(db), e.executor(db), e.log)
	r.OnStatement = e.progress(StageRestore)
	report, err := r.Restore(ctx, name)
	if errors.Is(err, backup.ErrBackupNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrPrecondition, err)
	}
	return report, err
}

func (e *Engine) readSource() ([]sqlscript.Statement, error) {
	path := e.settings.SchemaFile
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: schema file %s: %w", ErrPrecondition, path, err)
	}
	return sqlscript.ParseFile(path)
}
