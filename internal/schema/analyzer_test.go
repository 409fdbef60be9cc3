package schema_test

import (
	"context"
	"errors"
	"testing"

	"db-sync/internal/dialect"
	"db-sync/internal/schema"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mysqlDialect = dialect.GetDialect()

func newInspector(t *testing.T) (*schema.Inspector, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return schema.NewInspector(db, mysqlDialect, "firmas"), mock
}

var columnHeaders = []string{"COLUMN_NAME", "COLUMN_TYPE", "IS_NULLABLE", "COLUMN_DEFAULT", "COLUMN_KEY", "EXTRA"}

func TestInspector_ListColumns(t *testing.T) {
	insp, mock := newInspector(t)
	mock.ExpectQuery(mysqlDialect.GetColumnsQuery()).
		WithArgs("firmas", "users").
		WillReturnRows(sqlmock.NewRows(columnHeaders).
			AddRow("id", "int", "NO", nil, "PRI", "auto_increment").
			AddRow("email", "varchar(255)", "NO", nil, "UNI", "").
			AddRow("departamento", "varchar(100)", "YES", nil, "", "").
			AddRow("created_at", "datetime", "YES", "CURRENT_TIMESTAMP", "", "DEFAULT_GENERATED").
			AddRow(nil, "int", "YES", nil, nil, nil))

	cols, err := insp.ListColumns(context.Background(), "users")
	require.NoError(t, err)

	require.Len(t, cols, 4, "rows without a column name are skipped")
	assert.Equal(t, "id", cols[0].Name)
	assert.Equal(t, "int", cols[0].Definition)
	assert.False(t, cols[0].Nullable)
	assert.False(t, cols[0].Default.Valid)
	assert.Equal(t, "PRI", cols[0].Key)
	assert.Equal(t, "auto_increment", cols[0].Extra)

	assert.True(t, cols[2].Nullable)
	assert.False(t, cols[2].Default.Valid, "NULL default stays distinguishable from an empty string")

	assert.True(t, cols[3].Default.Valid)
	assert.Equal(t, "CURRENT_TIMESTAMP", cols[3].Default.String)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInspector_ListColumnsQueryError(t *testing.T) {
	insp, mock := newInspector(t)
	mock.ExpectQuery(mysqlDialect.GetColumnsQuery()).
		WithArgs("firmas", "users").
		WillReturnError(errors.New("server gone"))

	_, err := insp.ListColumns(context.Background(), "users")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to query columns of users")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInspector_ShowCreate(t *testing.T) {
	insp, mock := newInspector(t)
	tableDDL := "CREATE TABLE `users` (\n  `id` int NOT NULL\n) ENGINE=InnoDB"
	viewDDL := "CREATE ALGORITHM=UNDEFINED DEFINER=`root`@`%` SQL SECURITY DEFINER VIEW `v_docs` AS select 1 AS `id`"
	mock.ExpectQuery("SHOW CREATE TABLE `users`").
		WillReturnRows(sqlmock.NewRows([]string{"Table", "Create Table"}).AddRow("users", tableDDL))
	mock.ExpectQuery("SHOW CREATE VIEW `v_docs`").
		WillReturnRows(sqlmock.NewRows([]string{"View", "Create View", "character_set_client", "collation_connection"}).
			AddRow("v_docs", viewDDL, "utf8mb4", "utf8mb4_0900_ai_ci"))
	mock.ExpectQuery("SHOW CREATE TABLE `ghost`").
		WillReturnRows(sqlmock.NewRows([]string{"Table", "Create Table"}))

	ctx := context.Background()
	got, err := insp.ShowCreate(ctx, "users", schema.KindTable)
	require.NoError(t, err)
	assert.Equal(t, tableDDL, got)

	got, err = insp.ShowCreate(ctx, "v_docs", schema.KindView)
	require.NoError(t, err)
	assert.Equal(t, viewDDL, got)

	_, err = insp.ShowCreate(ctx, "ghost", schema.KindTable)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no DDL returned for table ghost")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInspector_ScanRowsReportsColumnTypes(t *testing.T) {
	insp, mock := newInspector(t)
	mock.ExpectQuery("SELECT * FROM `users`").
		WillReturnRows(sqlmock.NewRowsWithColumnDefinition(
			sqlmock.NewColumn("id").OfType("INT", int64(0)),
			sqlmock.NewColumn("email").OfType("VARCHAR", ""),
			sqlmock.NewColumn("avatar").OfType("BLOB", []byte{}),
		).
			AddRow(int64(1), "admin@example.com", []byte{0x89, 0x50}).
			AddRow(int64(2), "owner@example.com", nil))

	var (
		gotCols  []string
		gotTypes []string
		gotRows  [][]any
	)
	err := insp.ScanRows(context.Background(), "users", func(cols, types []string, vals []any) error {
		gotCols, gotTypes = cols, types
		gotRows = append(gotRows, append([]any(nil), vals...))
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "email", "avatar"}, gotCols)
	assert.Equal(t, []string{"INT", "VARCHAR", "BLOB"}, gotTypes)
	require.Len(t, gotRows, 2)
	assert.Equal(t, int64(1), gotRows[0][0])
	assert.Equal(t, []byte{0x89, 0x50}, gotRows[0][2])
	assert.Nil(t, gotRows[1][2])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInspector_ScanRowsStopsOnCallbackError(t *testing.T) {
	insp, mock := newInspector(t)
	mock.ExpectQuery("SELECT * FROM `users`").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)).AddRow(int64(2)))

	stop := errors.New("disk full")
	calls := 0
	err := insp.ScanRows(context.Background(), "users", func([]string, []string, []any) error {
		calls++
		return stop
	})

	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestInspector_DatabaseExistsAndCountRows(t *testing.T) {
	insp, mock := newInspector(t)
	mock.ExpectQuery(mysqlDialect.GetDatabaseExistsQuery()).
		WithArgs("firmas").
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(1))
	mock.ExpectQuery(mysqlDialect.GetDatabaseExistsQuery()).
		WithArgs("firmas_test").
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(0))
	mock.ExpectQuery("SELECT COUNT(*) FROM `users`").
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(42))

	ctx := context.Background()
	exists, err := insp.DatabaseExists(ctx, "firmas")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = insp.DatabaseExists(ctx, "firmas_test")
	require.NoError(t, err)
	assert.False(t, exists)

	n, err := insp.CountRows(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyze_LoadsTablesInDependencyOrder(t *testing.T) {
	insp, mock := newInspector(t)
	mock.ExpectQuery(mysqlDialect.GetTablesQuery()).
		WithArgs("firmas").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("documents").AddRow("signatures").AddRow("users"))
	mock.ExpectQuery(mysqlDialect.GetForeignKeysQuery()).
		WithArgs("firmas").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME", "REFERENCED_TABLE_NAME"}).
			AddRow("documents", "users").
			AddRow("signatures", "documents").
			AddRow("signatures", "documents").
			AddRow("users", "users"))
	for _, table := range []string{"documents", "signatures", "users"} {
		mock.ExpectQuery(mysqlDialect.GetColumnsQuery()).
			WithArgs("firmas", table).
			WillReturnRows(sqlmock.NewRows(columnHeaders).AddRow("id", "int", "NO", nil, "PRI", ""))
	}

	tables, err := schema.Analyze(context.Background(), insp, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"users", "documents", "signatures"}, names(tables))
	assert.Empty(t, tables[0].Dependencies, "self references are dropped")
	assert.Equal(t, []string{"documents"}, tables[2].Dependencies, "duplicate references collapse")
	assert.Equal(t, []string{"id"}, tables[1].ColumnNames())
	assert.Equal(t, schema.KindTable, tables[1].Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}
