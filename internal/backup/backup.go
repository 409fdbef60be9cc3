package backup

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"db-sync/internal/dialect"
	"db-sync/internal/schema"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrNothingToBackup is returned when the database holds no tables.
var ErrNothingToBackup = errors.New("no tables to back up")

const timestampLayout = "2006-01-02T15-04-05.000Z"

// Artifact describes one written backup file.
type Artifact struct {
	ID        string
	Path      string
	Database  string
	Timestamp time.Time
	Objects   int // tables + views
	Rows      int
	Size      int64
}

// Catalog is the read side of a live database. *schema.Inspector implements it.
type Catalog interface {
	DatabaseName() string
	ListTables(ctx context.Context) ([]string, error)
	ListViews(ctx context.Context) ([]string, error)
	Dependencies(ctx context.Context) (map[string][]string, error)
	ShowCreate(ctx context.Context, name string, kind schema.Kind) (string, error)
	ScanRows(ctx context.Context, table string, fn schema.RowFunc) error
}

// Engine writes full schema + data backups as replayable SQL scripts.
type Engine struct {
	cat   Catalog
	d     dialect.Dialect
	dir   string
	order schema.Order
	log   zerolog.Logger
	now   func() time.Time

	// OnTable is called after each table is written.
	OnTable func(done, total int)
}

func New(cat Catalog, d dialect.Dialect, dir string, order schema.Order, log zerolog.Logger) *Engine {
	return &Engine{cat: cat, d: d, dir: dir, order: order, log: log, now: time.Now}
}

// FileName returns the artifact name for a database at t.
func FileName(database string, t time.Time) string {
	return fmt.Sprintf("backup_%s_%s.sql", database, t.UTC().Format(timestampLayout))
}

var reDefiner = regexp.MustCompile("(?i)\\s+DEFINER\\s*=\\s*(`[^`]*`|'[^']*'|[^\\s@]+)@(`[^`]*`|'[^']*'|\\S+)")

// Create writes a backup of every table and view. Tables come first, in
// dependency order, so the file also replays as a plain script.
func (b *Engine) Create(ctx context.Context) (*Artifact, error) {
	tables, err := b.cat.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return nil, ErrNothingToBackup
	}
	views, err := b.cat.ListViews(ctx)
	if err != nil {
		return nil, err
	}
	deps, err := b.cat.Dependencies(ctx)
	if err != nil {
		return nil, err
	}
	tables = b.order.ApplyNames(tables, deps)

	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	art := &Artifact{
		ID:        uuid.NewString(),
		Database:  b.cat.DatabaseName(),
		Timestamp: b.now().UTC(),
	}
	art.Path = filepath.Join(b.dir, FileName(art.Database, art.Timestamp))
	for exists(art.Path) {
		// never overwrite an earlier backup taken within the same millisecond
		art.Timestamp = art.Timestamp.Add(time.Millisecond)
		art.Path = filepath.Join(b.dir, FileName(art.Database, art.Timestamp))
	}

	tmp := art.Path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("failed to create backup file: %w", err)
	}
	defer func() {
		if f != nil {
			f.Close()
			os.Remove(tmp)
		}
	}()

	w := bufio.NewWriter(f)
	if err := b.write(ctx, w, art, tables, views); err != nil {
		return nil, err
	}
	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("failed to write backup: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close backup: %w", err)
	}
	f = nil
	if err := os.Rename(tmp, art.Path); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("failed to finalize backup: %w", err)
	}

	if fi, err := os.Stat(art.Path); err == nil {
		art.Size = fi.Size()
	}
	b.log.Info().
		Str("file", art.Path).
		Int("tables", len(tables)).
		Int("views", len(views)).
		Int("rows", art.Rows).
		Int64("bytes", art.Size).
		Msg("Backup created")
	return art, nil
}

func (b *Engine) write(ctx context.Context, w *bufio.Writer, art *Artifact, tables, views []string) error {
	fmt.Fprintf(w, "-- db-sync backup\n-- Database: %s\n-- Created: %s\n-- Backup ID: %s\n\n",
		art.Database, art.Timestamp.Format(time.RFC3339), art.ID)
	fmt.Fprintf(w, "%s;\nSTART TRANSACTION;\n\n", b.d.DisableForeignKeysQuery())

	for i, table := range tables {
		ddl, err := b.cat.ShowCreate(ctx, table, schema.KindTable)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "-- Table: %s\n%s;\n\n", b.d.QuoteIdent(table), strings.TrimSpace(ddl))

		rows := 0
		var prefix string
		err = b.cat.ScanRows(ctx, table, func(cols, types []string, vals []any) error {
			if prefix == "" {
				quoted := make([]string, len(cols))
				for j, c := range cols {
					quoted[j] = b.d.QuoteIdent(c)
				}
				prefix = fmt.Sprintf("INSERT INTO %s (%s) VALUES (", b.d.QuoteIdent(table), strings.Join(quoted, ", "))
			}
			w.WriteString(prefix)
			for j, v := range vals {
				if j > 0 {
					w.WriteString(", ")
				}
				w.WriteString(EncodeValue(v, types[j]))
			}
			_, err := w.WriteString(");\n")
			rows++
			return err
		})
		if err != nil {
			return err
		}
		if rows > 0 {
			w.WriteString("\n")
		}
		art.Rows += rows
		art.Objects++
		b.log.Debug().Str("table", table).Int("rows", rows).Msg("Table backed up")
		if b.OnTable != nil {
			b.OnTable(i+1, len(tables))
		}
	}

	for _, view := range views {
		ddl, err := b.cat.ShowCreate(ctx, view, schema.KindView)
		if err != nil {
			return err
		}
		// The definer account may not exist where the backup is restored.
		ddl = reDefiner.ReplaceAllString(strings.TrimSpace(ddl), "")
		fmt.Fprintf(w, "-- View: %s\n%s;\n\n", b.d.QuoteIdent(view), ddl)
		art.Objects++
	}

	_, err := fmt.Fprintf(w, "COMMIT;\n%s;\n", b.d.EnableForeignKeysQuery())
	return err
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
