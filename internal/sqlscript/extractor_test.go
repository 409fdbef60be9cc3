package sqlscript_test

import (
	"errors"
	"testing"

	"db-sync/internal/sqlscript"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTable_ColumnsAndConstraints(t *testing.T) {
	tbl, err := sqlscript.ExtractTable("CREATE TABLE `documents` (\n" +
		"  `id` int NOT NULL AUTO_INCREMENT,\n" +
		"  `user_id` int NOT NULL,\n" +
		"  `amount` decimal(10,2) DEFAULT '0.00',\n" +
		"  `status` enum('draft','signed') NOT NULL DEFAULT 'draft',\n" +
		"  `updated_at` timestamp NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,\n" +
		"  PRIMARY KEY (`id`),\n" +
		"  UNIQUE KEY `ux_user` (`user_id`, `status`),\n" +
		"  CONSTRAINT `fk_doc_user` FOREIGN KEY (`user_id`) REFERENCES `users` (`id`) ON DELETE CASCADE\n" +
		") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4")
	require.NoError(t, err)

	assert.Equal(t, "documents", tbl.Name)
	assert.Equal(t, []string{"id", "user_id", "amount", "status", "updated_at"}, tbl.ColumnNames())
	assert.Equal(t, []string{"users"}, tbl.Dependencies)

	id := tbl.Columns[0]
	assert.False(t, id.Nullable)
	assert.Equal(t, "auto_increment", id.Extra)
	assert.Equal(t, "`id` int NOT NULL AUTO_INCREMENT", id.Definition)

	amount := tbl.Columns[2]
	assert.Equal(t, "`amount` decimal(10,2) DEFAULT '0.00'", amount.Definition)
	assert.True(t, amount.Nullable)
	assert.Equal(t, "0.00", amount.Default.String)

	status := tbl.Columns[3]
	assert.Equal(t, "draft", status.Default.String)
	assert.False(t, status.Nullable)

	assert.Equal(t, "on update CURRENT_TIMESTAMP", tbl.Columns[4].Extra)
}

func TestExtractTable_InlineKeysAndReferences(t *testing.T) {
	tbl, err := sqlscript.ExtractTable(`CREATE TABLE IF NOT EXISTS signatures (
  id INT AUTO_INCREMENT PRIMARY KEY,
  document_id INT REFERENCES documents(id),
  token VARCHAR(64) UNIQUE,
  note TEXT
)`)
	require.NoError(t, err)

	assert.Equal(t, "signatures", tbl.Name)
	assert.Equal(t, "PRI", tbl.Columns[0].Key)
	assert.Equal(t, "UNI", tbl.Columns[2].Key)
	assert.Equal(t, []string{"documents"}, tbl.Dependencies)
	assert.Equal(t, "note TEXT", tbl.Columns[3].Definition)
}

func TestExtractTable_UnsupportedConstructs(t *testing.T) {
	tbl, err := sqlscript.ExtractTable("CREATE TABLE users_copy LIKE users")
	var unsupported *sqlscript.UnsupportedDDLError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "users_copy", unsupported.Table)
	require.NotNil(t, tbl, "table must still be named so it is never treated as obsolete")
	assert.Equal(t, "users_copy", tbl.Name)
	assert.Empty(t, tbl.Columns)

	tbl, err = sqlscript.ExtractTable("CREATE TABLE weird (id int, (expr) int)")
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, []string{"id"}, tbl.ColumnNames())
}

func TestExtractTables_CollectsErrorsAndKeepsGoing(t *testing.T) {
	stmts := sqlscript.Parse(`
CREATE TABLE users (id int, email varchar(255));
CREATE TABLE users_copy LIKE users;
INSERT INTO users VALUES (1, 'a');
CREATE TABLE theme_config (id int, name varchar(50));
`)
	tables, err := sqlscript.ExtractTables(stmts)

	assert.Error(t, err)
	require.Len(t, tables, 3)
	assert.Equal(t, "users", tables[0].Name)
	assert.Equal(t, "users_copy", tables[1].Name)
	assert.Equal(t, "theme_config", tables[2].Name)
}
