package dialect_test

import (
	"testing"

	"db-sync/internal/dialect"

	"github.com/stretchr/testify/assert"
)

func TestMysqlDialect_QuoteIdent(t *testing.T) {
	d := dialect.GetDialect()

	assert.Equal(t, "`users`", d.QuoteIdent("users"))
	assert.Equal(t, "`we``ird`", d.QuoteIdent("we`ird"))
}

func TestMysqlDialect_StatementBuilders(t *testing.T) {
	d := dialect.GetDialect()

	assert.Equal(t, "INSERT INTO `users` (`id`, `email`) VALUES (?, ?)", d.InsertQuery("users", []string{"id", "email"}))
	assert.Equal(t, "TRUNCATE TABLE `users`", d.TruncateQuery("users"))
	assert.Equal(t, "DROP TABLE IF EXISTS `users`", d.DropTableQuery("users"))
	assert.Equal(t, "DROP VIEW IF EXISTS `v_docs`", d.DropViewQuery("v_docs"))
	assert.Equal(t, "ALTER TABLE `users` ADD COLUMN `departamento` varchar(100) DEFAULT NULL",
		d.AddColumnQuery("users", " `departamento` varchar(100) DEFAULT NULL "))
	assert.Equal(t, "SHOW CREATE VIEW `v_docs`", d.ShowCreateQuery("v_docs", true))
	assert.Equal(t, "SHOW CREATE TABLE `users`", d.ShowCreateQuery("users", false))
}

func TestUnquoteIdent(t *testing.T) {
	tests := map[string]string{
		"`users`":     "users",
		`"users"`:     "users",
		"users":       "users",
		"`we``ird`":   "we`ird",
		"  `spaced` ": "spaced",
	}
	for in, want := range tests {
		assert.Equal(t, want, dialect.UnquoteIdent(in), in)
	}
}

func TestGetDialect_ServesMySQLAndMariaDB(t *testing.T) {
	d := dialect.GetDialect()

	assert.IsType(t, &dialect.MysqlDialect{}, d)
	assert.Equal(t, "SELECT COUNT(*) FROM information_schema.SCHEMATA WHERE SCHEMA_NAME = ?", d.GetDatabaseExistsQuery())
}
