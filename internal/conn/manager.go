package conn

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
)

// ErrConnection marks failures to reach or authenticate against the server.
var ErrConnection = errors.New("database connection failed")

// Config holds the connection settings read from DB_* variables.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// DSN renders a go-sql-driver DSN. Without withDatabase no schema is selected,
// which is how setup creates a database that does not exist yet.
func (c Config) DSN(withDatabase bool) string {
	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	if withDatabase {
		cfg.DBName = c.Database
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Collation = "utf8mb4_unicode_ci"
	return cfg.FormatDSN()
}

// Handle is one flow's exclusive connection. Session settings such as
// FOREIGN_KEY_CHECKS live on Conn, so every statement of a flow goes through it.
type Handle struct {
	DB       *sql.DB
	Conn     *sql.Conn
	Database string
}

// Close releases the dedicated connection and the pool.
func (h *Handle) Close() error {
	var errs []error
	if h.Conn != nil {
		errs = append(errs, h.Conn.Close())
	}
	if h.DB != nil {
		errs = append(errs, h.DB.Close())
	}
	return errors.Join(errs...)
}

// Opener opens a pool for a DSN.
type Opener func(dsn string) (*sql.DB, error)

func openMySQL(dsn string) (*sql.DB, error) {
	return sql.Open("mysql", dsn)
}

// Manager owns at most one Handle at a time.
type Manager struct {
	cfg    Config
	log    zerolog.Logger
	open   Opener
	handle *Handle
}

func NewManager(cfg Config, log zerolog.Logger) *Manager {
	return NewManagerWithOpener(cfg, log, openMySQL)
}

// NewManagerWithOpener is NewManager with a custom pool opener.
func NewManagerWithOpener(cfg Config, log zerolog.Logger, open Opener) *Manager {
	return &Manager{cfg: cfg, log: log, open: open}
}

func (m *Manager) Config() Config {
	return m.cfg
}

// Handle returns the current handle, or nil before Connect.
func (m *Manager) Handle() *Handle {
	return m.handle
}

// Connect opens a new handle, closing the previous one first.
func (m *Manager) Connect(ctx context.Context, withDatabase bool) (*Handle, error) {
	if err := m.Close(); err != nil {
		m.log.Warn().Err(err).Msg("Failed to close previous connection")
	}

	db, err := m.open(m.cfg.DSN(withDatabase))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open db: %w", ErrConnection, err)
	}
	db.SetMaxOpenConns(2)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to connect to %s: %w", ErrConnection, m.cfg.Host, err)
	}
	c, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to acquire connection: %w", ErrConnection, err)
	}

	h := &Handle{DB: db, Conn: c}
	if withDatabase {
		h.Database = m.cfg.Database
	}
	m.handle = h
	m.log.Debug().Str("host", m.cfg.Host).Int("port", m.cfg.Port).Str("database", h.Database).Msg("Connected")
	return h, nil
}

// Reconnect replaces the current handle with one bound to the configured database.
func (m *Manager) Reconnect(ctx context.Context) (*Handle, error) {
	return m.Connect(ctx, true)
}

// Close releases the current handle, if any.
func (m *Manager) Close() error {
	if m.handle == nil {
		return nil
	}
	h := m.handle
	m.handle = nil
	return h.Close()
}
