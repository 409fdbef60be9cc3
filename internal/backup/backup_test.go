package backup_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"db-sync/internal/backup"
	"db-sync/internal/dialect"
	"db-sync/internal/executor"
	"db-sync/internal/schema"
	"db-sync/internal/sqlfake"
	"db-sync/internal/sqlscript"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mysqlDialect = dialect.GetDialect()

// populatedDB builds three related tables holding 50 rows and one view.
func populatedDB(t *testing.T) *sqlfake.DB {
	t.Helper()
	faker := gofakeit.New(42)
	db := sqlfake.New("signing")
	db.Deps = map[string][]string{"documents": {"users"}, "signatures": {"documents"}}

	users := db.MustAddTable("CREATE TABLE `users` (\n  `id` int NOT NULL AUTO_INCREMENT,\n  `name` varchar(100) NOT NULL,\n  `email` varchar(255) DEFAULT NULL,\n  `created_at` datetime NOT NULL,\n  PRIMARY KEY (`id`)\n) ENGINE=InnoDB")
	for i := 1; i <= 20; i++ {
		var email any = []byte(faker.Email())
		if i%7 == 0 {
			email = nil
		}
		users.Rows = append(users.Rows, []any{int64(i), []byte(faker.Name()), email, faker.Date().UTC().Truncate(time.Second)})
	}
	users.Rows[0][1] = []byte("O'Brien \\ \"quoted\"")

	documents := db.MustAddTable("CREATE TABLE `documents` (\n  `id` int NOT NULL,\n  `user_id` int NOT NULL,\n  `title` varchar(200) NOT NULL,\n  PRIMARY KEY (`id`),\n  CONSTRAINT `fk_user` FOREIGN KEY (`user_id`) REFERENCES `users` (`id`)\n) ENGINE=InnoDB")
	for i := 1; i <= 20; i++ {
		documents.Rows = append(documents.Rows, []any{int64(i), int64(faker.Number(1, 20)), []byte(faker.Sentence(4))})
	}
	documents.Rows[3][2] = []byte("contract; DROP TABLE users;\nline two")

	signatures := db.MustAddTable("CREATE TABLE `signatures` (\n  `id` int NOT NULL,\n  `document_id` int NOT NULL,\n  `signer` varchar(100) NOT NULL,\n  PRIMARY KEY (`id`)\n) ENGINE=InnoDB")
	for i := 1; i <= 10; i++ {
		signatures.Rows = append(signatures.Rows, []any{int64(i), int64(faker.Number(1, 20)), []byte(faker.FirstName())})
	}

	db.Views["v_docs"] = "CREATE ALGORITHM=UNDEFINED DEFINER=`root`@`%` SQL SECURITY DEFINER VIEW `v_docs` AS select `documents`.`id` AS `id` from `documents`"
	require.Equal(t, 50, db.TotalRows())
	return db
}

func newEngine(db *sqlfake.DB, dir string) *backup.Engine {
	return backup.New(db, mysqlDialect, dir, schema.DefaultOrder, zerolog.Nop())
}

func TestCreate_WritesReplayableArtifact(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "backups")
	db := populatedDB(t)

	art, err := newEngine(db, dir).Create(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, art.Objects)
	assert.Equal(t, 50, art.Rows)
	assert.Equal(t, "signing", art.Database)
	assert.NotEmpty(t, art.ID)
	assert.Regexp(t, regexp.MustCompile(`^backup_signing_\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2}\.\d{3}Z\.sql$`), filepath.Base(art.Path))

	data, err := os.ReadFile(art.Path)
	require.NoError(t, err)
	content := string(data)
	assert.Equal(t, int64(len(data)), art.Size)
	assert.Contains(t, content, "START TRANSACTION;")
	assert.Contains(t, content, "COMMIT;")
	assert.Contains(t, content, "INSERT INTO `users` (`id`, `name`, `email`, `created_at`) VALUES (1, 'O\\'Brien \\\\ \\\"quoted\\\"', ")
	assert.NotContains(t, content, "DEFINER=`root`")
	assert.Less(t, regexp.MustCompile("CREATE TABLE `users`").FindStringIndex(content)[0],
		regexp.MustCompile("CREATE TABLE `documents`").FindStringIndex(content)[0], "parents are written before children")
}

func TestCreate_NothingToBackup(t *testing.T) {
	dir := t.TempDir()

	art, err := newEngine(sqlfake.New("empty"), dir).Create(context.Background())

	assert.ErrorIs(t, err, backup.ErrNothingToBackup)
	assert.Nil(t, art)
	files, _ := backup.List(dir)
	assert.Empty(t, files)
}

func TestCreate_NeverOverwritesExistingFile(t *testing.T) {
	dir := t.TempDir()
	db := populatedDB(t)
	eng := newEngine(db, dir)

	first, err := eng.Create(context.Background())
	require.NoError(t, err)
	second, err := eng.Create(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first.Path, second.Path)
	files, err := backup.List(dir)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestRoundTrip_BackupDropAllRestore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	db := populatedDB(t)
	original := map[string]*sqlfake.Table{}
	for name, tbl := range db.Tables {
		original[name] = tbl
	}

	eng := newEngine(db, dir)
	art, err := eng.Create(ctx)
	require.NoError(t, err)

	exec := executor.New(db, mysqlDialect, zerolog.Nop())
	names, _ := db.ListTables(ctx)
	for _, name := range names {
		require.NoError(t, exec.Exec(ctx, sqlscript.NewStatement(mysqlDialect.DropTableQuery(name))))
	}
	require.Empty(t, db.Tables)

	report, err := backup.NewRestorer(eng, exec, zerolog.Nop()).Restore(ctx, art.Path)
	require.NoError(t, err)

	assert.Equal(t, art.Path, report.File)
	assert.Nil(t, report.SafetyBackup, "nothing to save in an empty database")
	assert.Equal(t, 3, report.Tables)
	assert.Equal(t, 0, report.Result.Errors)
	assert.Equal(t, 50, db.TotalRows())

	for name, want := range original {
		got := db.Tables[name]
		require.NotNil(t, got, name)
		assert.Equal(t, want.Columns, got.Columns, name)
		require.Len(t, got.Rows, len(want.Rows), name)
		for i := range want.Rows {
			for j, v := range want.Rows[i] {
				if want.Types[j] == "DATETIME" {
					continue
				}
				assert.Equal(t, v, got.Rows[i][j], fmt.Sprintf("%s row %d col %s", name, i, want.Columns[j]))
			}
		}
	}
}

func TestRestore_IntoPopulatedDatabaseSkipsExistingTables(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	source := populatedDB(t)
	art, err := newEngine(source, dir).Create(ctx)
	require.NoError(t, err)

	target := populatedDB(t)
	for _, tbl := range target.Tables {
		tbl.Rows = nil
	}
	target.Tables["users"].Rows = [][]any{{int64(999), []byte("existing"), nil, time.Now().UTC()}}
	delete(target.Views, "v_docs")

	eng := newEngine(target, dir)
	exec := executor.New(target, mysqlDialect, zerolog.Nop())
	report, err := backup.NewRestorer(eng, exec, zerolog.Nop()).Restore(ctx, art.Path)
	require.NoError(t, err)

	require.NotNil(t, report.SafetyBackup)
	assert.Equal(t, 3, report.Result.Skipped)
	assert.Equal(t, 0, report.Result.Errors)
	assert.Equal(t, 51, target.TotalRows())
	assert.Contains(t, target.Views, "v_docs")
	assert.Equal(t, "SET FOREIGN_KEY_CHECKS = 0", target.Executed[0])
	assert.Equal(t, "SET FOREIGN_KEY_CHECKS = 1", target.Executed[len(target.Executed)-1])
}

func TestRestore_PicksLatestBackupBeforeSafetyBackup(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	db := populatedDB(t)
	eng := newEngine(db, dir)
	art, err := eng.Create(ctx)
	require.NoError(t, err)

	report, err := backup.NewRestorer(eng, executor.New(db, mysqlDialect, zerolog.Nop()), zerolog.Nop()).Restore(ctx, "")
	require.NoError(t, err)

	assert.Equal(t, art.Path, report.File)
	require.NotNil(t, report.SafetyBackup)
	assert.NotEqual(t, art.Path, report.SafetyBackup.Path)
}

func TestRestore_MissingFile(t *testing.T) {
	db := populatedDB(t)
	eng := newEngine(db, t.TempDir())

	_, err := backup.NewRestorer(eng, executor.New(db, mysqlDialect, zerolog.Nop()), zerolog.Nop()).Restore(context.Background(), "nope.sql")

	assert.ErrorIs(t, err, backup.ErrBackupNotFound)
	assert.Empty(t, db.Executed, "nothing may run before the file is found")
}

func TestLatestAndList(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"backup_signing_2026-01-01T00-00-00.000Z.sql",
		"backup_signing_2026-02-01T00-00-00.000Z.sql",
		"backup_other_2027-01-01T00-00-00.000Z.sql",
		"README.md",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644))
	}

	files, err := backup.List(dir)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "backup_signing_2026-02-01T00-00-00.000Z.sql", files[0].Name)

	latest, err := backup.Latest(dir, "other")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "backup_other_2027-01-01T00-00-00.000Z.sql"), latest)

	latest, err = backup.Latest(dir, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "backup_signing_2026-02-01T00-00-00.000Z.sql"), latest)

	_, err = backup.Latest(t.TempDir(), "signing")
	assert.ErrorIs(t, err, backup.ErrBackupNotFound)

	missing, err := backup.List(filepath.Join(dir, "absent"))
	assert.NoError(t, err)
	assert.Empty(t, missing)
}

func TestLatest_DatabaseNamePrefixOfAnother(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"backup_firmas_2026-05-01T00-00-00.000Z.sql",
		"backup_firmas_test_2025-01-01T00-00-00.000Z.sql",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644))
	}

	latest, err := backup.Latest(dir, "firmas")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "backup_firmas_2026-05-01T00-00-00.000Z.sql"), latest)

	latest, err = backup.Latest(dir, "firmas_test")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "backup_firmas_test_2025-01-01T00-00-00.000Z.sql"), latest)

	require.NoError(t, os.Remove(filepath.Join(dir, "backup_firmas_2026-05-01T00-00-00.000Z.sql")))
	_, err = backup.Latest(dir, "firmas")
	assert.ErrorIs(t, err, backup.ErrBackupNotFound)
}
