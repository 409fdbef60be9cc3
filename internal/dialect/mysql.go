package dialect

import (
	"fmt"
	"strings"
)

type MysqlDialect struct{}

func (d *MysqlDialect) GetTablesQuery() string {
	return `SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME`
}

func (d *MysqlDialect) GetViewsQuery() string {
	return `SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'VIEW' ORDER BY TABLE_NAME`
}

// GetColumnsQuery takes the schema and table name as arguments.
func (d *MysqlDialect) GetColumnsQuery() string {
	return `SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE, COLUMN_DEFAULT, COLUMN_KEY, EXTRA FROM information_schema.COLUMNS WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION`
}

func (d *MysqlDialect) GetForeignKeysQuery() string {
	return `SELECT TABLE_NAME, REFERENCED_TABLE_NAME FROM information_schema.KEY_COLUMN_USAGE WHERE TABLE_SCHEMA = ? AND REFERENCED_TABLE_NAME IS NOT NULL`
}

func (d *MysqlDialect) GetDatabaseExistsQuery() string {
	return `SELECT COUNT(*) FROM information_schema.SCHEMATA WHERE SCHEMA_NAME = ?`
}

func (d *MysqlDialect) ShowCreateQuery(name string, view bool) string {
	if view {
		return fmt.Sprintf("SHOW CREATE VIEW %s", d.QuoteIdent(name))
	}
	return fmt.Sprintf("SHOW CREATE TABLE %s", d.QuoteIdent(name))
}

func (d *MysqlDialect) CountRowsQuery(table string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", d.QuoteIdent(table))
}

func (d *MysqlDialect) SelectAllQuery(table string) string {
	return fmt.Sprintf("SELECT * FROM %s", d.QuoteIdent(table))
}

func (d *MysqlDialect) DisableForeignKeysQuery() string {
	return "SET FOREIGN_KEY_CHECKS = 0"
}

func (d *MysqlDialect) EnableForeignKeysQuery() string {
	return "SET FOREIGN_KEY_CHECKS = 1"
}

// QuoteIdent wraps an identifier in backticks, doubling embedded backticks.
func (d *MysqlDialect) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (d *MysqlDialect) InsertQuery(table string, cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.QuoteIdent(c)
	}
	vals := GeneratePlaceholders(len(cols), d.Placeholder)
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", d.QuoteIdent(table), strings.Join(quoted, ", "), vals)
}

func (d *MysqlDialect) TruncateQuery(table string) string {
	return fmt.Sprintf("TRUNCATE TABLE %s", d.QuoteIdent(table))
}

func (d *MysqlDialect) DropTableQuery(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", d.QuoteIdent(table))
}

func (d *MysqlDialect) DropViewQuery(view string) string {
	return fmt.Sprintf("DROP VIEW IF EXISTS %s", d.QuoteIdent(view))
}

// AddColumnQuery expects definition to carry the column name, as extracted from CREATE TABLE.
func (d *MysqlDialect) AddColumnQuery(table, definition string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", d.QuoteIdent(table), strings.TrimSpace(definition))
}

func (d *MysqlDialect) CreateDatabaseQuery(name string) string {
	return fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci", d.QuoteIdent(name))
}

func (d *MysqlDialect) Placeholder(index int) string {
	return "?"
}
