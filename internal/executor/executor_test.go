package executor_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"testing"

	"db-sync/internal/dialect"
	"db-sync/internal/executor"
	"db-sync/internal/sqlscript"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn records executed statements and fails those matching a prefix.
type fakeConn struct {
	executed []string
	failures map[string]error
}

func (f *fakeConn) ExecContext(_ context.Context, query string, _ ...any) (sql.Result, error) {
	f.executed = append(f.executed, query)
	for prefix, err := range f.failures {
		if strings.HasPrefix(query, prefix) {
			return nil, err
		}
	}
	return driver.RowsAffected(1), nil
}

func myErr(code uint16) error {
	return &mysql.MySQLError{Number: code, Message: "test"}
}

func newExecutor(conn *fakeConn) *executor.Executor {
	return executor.New(conn, dialect.GetDialect(), zerolog.Nop())
}

func TestClassify(t *testing.T) {
	def := executor.DefaultPolicy()
	restore := executor.RestorePolicy()

	assert.Equal(t, executor.Ignorable, def.Classify(myErr(executor.ErTableExists)))
	assert.Equal(t, executor.Ignorable, def.Classify(myErr(executor.ErDupEntry)))
	assert.Equal(t, executor.Tolerable, def.Classify(myErr(executor.ErNoSuchTable)))
	assert.Equal(t, executor.Ignorable, restore.Classify(myErr(executor.ErNoSuchTable)))
	assert.Equal(t, executor.Ignorable, restore.Classify(myErr(executor.ErViewInvalid)))
	assert.Equal(t, executor.Syntax, def.Classify(myErr(executor.ErParse)))
	assert.Equal(t, executor.Fatal, def.Classify(myErr(executor.ErAccessDenied)))
	assert.Equal(t, executor.Fatal, def.Classify(mysql.ErrInvalidConn))
	assert.Equal(t, executor.Fatal, def.Classify(driver.ErrBadConn))
	assert.Equal(t, executor.Fatal, def.Classify(context.DeadlineExceeded))
	assert.Equal(t, executor.Tolerable, def.Classify(errors.New("something odd")))
}

func TestRun_AlreadyExistsIsSkippedAndBatchContinues(t *testing.T) {
	conn := &fakeConn{failures: map[string]error{
		"CREATE TABLE users": myErr(executor.ErTableExists),
	}}
	stmts := sqlscript.Parse("CREATE TABLE users (id int); INSERT INTO users VALUES (1); INSERT INTO users VALUES (2);")

	res, err := newExecutor(conn).Run(context.Background(), stmts)

	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 0, res.Errors)
	assert.Equal(t, 2, res.Success)
	assert.True(t, res.OK())
	assert.Len(t, conn.executed, 3)
}

func TestRun_TolerableAndSyntaxErrorsAreCounted(t *testing.T) {
	conn := &fakeConn{failures: map[string]error{
		"INSERT INTO a": myErr(1452),
		"CREATE VIEW":   myErr(executor.ErParse),
	}}
	stmts := sqlscript.Parse("INSERT INTO a VALUES (1); CREATE VIEW v AS SELECT 1; INSERT INTO b VALUES (1);")

	res, err := newExecutor(conn).Run(context.Background(), stmts)

	require.NoError(t, err)
	assert.Equal(t, 2, res.Errors)
	assert.Equal(t, 1, res.Success)
	assert.Equal(t, executor.Syntax, res.Outcomes[1].Class)
	assert.False(t, res.OK())
}

func TestRun_ConnectionFailureAborts(t *testing.T) {
	conn := &fakeConn{failures: map[string]error{
		"INSERT INTO a": mysql.ErrInvalidConn,
	}}
	stmts := sqlscript.Parse("CREATE TABLE a (id int); INSERT INTO a VALUES (1); INSERT INTO b VALUES (1);")

	res, err := newExecutor(conn).Run(context.Background(), stmts)

	require.Error(t, err)
	assert.ErrorIs(t, err, mysql.ErrInvalidConn)
	assert.Len(t, conn.executed, 2)
	assert.Equal(t, 1, res.Success)
	assert.Equal(t, 1, res.Errors)
}

func TestRun_CancelledContextAborts(t *testing.T) {
	conn := &fakeConn{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newExecutor(conn).Run(ctx, sqlscript.Parse("SELECT 1;"))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, conn.executed)
}

func TestWithForeignKeysDisabled_AlwaysReEnables(t *testing.T) {
	conn := &fakeConn{}
	exec := newExecutor(conn)

	err := exec.WithForeignKeysDisabled(context.Background(), func() error {
		return errors.New("boom")
	})

	assert.EqualError(t, err, "boom")
	assert.Equal(t, []string{"SET FOREIGN_KEY_CHECKS = 0", "SET FOREIGN_KEY_CHECKS = 1"}, conn.executed)
}

func TestRunInto_AccumulatesAndProgress(t *testing.T) {
	conn := &fakeConn{}
	exec := newExecutor(conn)
	calls := 0
	exec.OnProgress = func() { calls++ }

	res := &executor.Result{}
	require.NoError(t, exec.RunInto(context.Background(), res, sqlscript.Parse("SELECT 1;")))
	require.NoError(t, exec.RunInto(context.Background(), res, sqlscript.Parse("SELECT 2; SELECT 3;")))
	res.Skip(sqlscript.NewStatement("DROP TABLE x"))

	assert.Equal(t, 3, res.Success)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 3, calls)
	assert.Len(t, res.Outcomes, 4)
}

func TestRun_FatalErrorKeepsMultibyteSQLIntact(t *testing.T) {
	prefix := "INSERT INTO logs (msg) VALUES ('" + strings.Repeat("a", 87)
	conn := &fakeConn{failures: map[string]error{"INSERT INTO logs": mysql.ErrInvalidConn}}
	stmt := sqlscript.NewStatement(prefix + "ó acción de firma electrónica registrada')")

	_, err := newExecutor(conn).Run(context.Background(), []sqlscript.Statement{stmt})

	require.Error(t, err)
	assert.NotContains(t, err.Error(), `\xc3`)
	assert.Contains(t, err.Error(), strings.Repeat("a", 87)+"...")
}
