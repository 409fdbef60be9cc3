package executor

import (
	"context"
	"database/sql"
	"fmt"
	"unicode/utf8"

	"db-sync/internal/dialect"
	"db-sync/internal/sqlscript"

	"github.com/rs/zerolog"
)

// Execer is satisfied by *sql.Conn, *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Status of one executed statement.
type Status int

const (
	StatusOK Status = iota
	StatusSkipped
	StatusError
)

type Outcome struct {
	Statement sqlscript.Statement
	Status    Status
	Class     Class
	Err       error
}

// Result accumulates over a whole run; it is never reset.
type Result struct {
	Success  int
	Skipped  int
	Errors   int
	Outcomes []Outcome
}

// OK reports whether no statement failed with a counted error.
func (r *Result) OK() bool {
	return r.Errors == 0
}

func (r *Result) record(o Outcome) {
	switch o.Status {
	case StatusOK:
		r.Success++
	case StatusSkipped:
		r.Skipped++
	default:
		r.Errors++
	}
	r.Outcomes = append(r.Outcomes, o)
}

// Skip counts a statement the caller chose not to execute.
func (r *Result) Skip(s sqlscript.Statement) {
	r.record(Outcome{Statement: s, Status: StatusSkipped, Class: Ignorable})
}

// Executor runs statements one at a time on a single connection.
type Executor struct {
	db     Execer
	d      dialect.Dialect
	log    zerolog.Logger
	policy Policy

	// OnProgress is called after every statement, whatever its outcome.
	OnProgress func()
}

func New(db Execer, d dialect.Dialect, log zerolog.Logger) *Executor {
	return &Executor{db: db, d: d, log: log, policy: DefaultPolicy()}
}

// WithPolicy returns a copy of the executor using p for classification.
func (e *Executor) WithPolicy(p Policy) *Executor {
	cp := *e
	cp.policy = p
	return &cp
}

// Run executes stmts and returns a fresh Result.
func (e *Executor) Run(ctx context.Context, stmts []sqlscript.Statement) (*Result, error) {
	res := &Result{}
	err := e.RunInto(ctx, res, stmts)
	return res, err
}

// RunInto executes stmts, adding their outcomes to res. Ignorable and tolerable
// failures are counted and the batch continues; a fatal failure aborts it.
func (e *Executor) RunInto(ctx context.Context, res *Result, stmts []sqlscript.Statement) error {
	for _, s := range stmts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("batch aborted: %w", err)
		}

		_, err := e.db.ExecContext(ctx, s.Text, s.Args...)
		if e.OnProgress != nil {
			e.OnProgress()
		}
		if err == nil {
			res.record(Outcome{Statement: s, Status: StatusOK})
			e.log.Debug().Str("category", s.Category.String()).Str("sql", preview(s.Text)).Msg("Executed")
			continue
		}

		class := e.policy.Classify(err)
		switch class {
		case Ignorable:
			res.record(Outcome{Statement: s, Status: StatusSkipped, Class: class, Err: err})
			e.log.Debug().Err(err).Str("sql", preview(s.Text)).Msg("Skipped (already applied)")
		case Syntax:
			res.record(Outcome{Statement: s, Status: StatusError, Class: class, Err: err})
			e.log.Error().Err(err).Str("sql", preview(s.Text)).Msg("Syntax error, statement may have been split incorrectly")
		case Tolerable:
			res.record(Outcome{Statement: s, Status: StatusError, Class: class, Err: err})
			e.log.Warn().Err(err).Str("sql", preview(s.Text)).Msg("Statement failed (continuing...)")
		default:
			res.record(Outcome{Statement: s, Status: StatusError, Class: class, Err: err})
			return fmt.Errorf("fatal error executing %q: %w", preview(s.Text), err)
		}
	}
	return nil
}

// Exec runs a single statement outside any Result, returning its raw error.
func (e *Executor) Exec(ctx context.Context, s sqlscript.Statement) error {
	_, err := e.db.ExecContext(ctx, s.Text, s.Args...)
	return err
}

// WithForeignKeysDisabled runs fn with foreign-key checks off and always turns
// them back on, even when fn fails or ctx is cancelled.
func (e *Executor) WithForeignKeysDisabled(ctx context.Context, fn func() error) (err error) {
	e.log.Info().Msg("Disabling Foreign Key Checks...")
	if _, err := e.db.ExecContext(ctx, e.d.DisableForeignKeysQuery()); err != nil {
		return fmt.Errorf("failed to disable foreign key checks: %w", err)
	}
	defer func() {
		e.log.Info().Msg("Enabling Foreign Key Checks...")
		if _, enableErr := e.db.ExecContext(context.WithoutCancel(ctx), e.d.EnableForeignKeysQuery()); enableErr != nil && err == nil {
			err = fmt.Errorf("failed to re-enable foreign key checks: %w", enableErr)
		}
	}()
	return fn()
}

// preview shortens text for logs without splitting a UTF-8 sequence.
func preview(text string) string {
	const limit = 120
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}
