package backup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// ErrBackupNotFound is returned when no usable backup file exists.
var ErrBackupNotFound = errors.New("backup file not found")

// FileInfo is one backup file on disk.
type FileInfo struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// List returns backup files in dir sorted by whole file name, descending. Within
// one database that is newest first; across databases the name decides.
// A missing directory yields an empty list.
func List(dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "backup_") || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Name:    e.Name(),
			Path:    filepath.Join(dir, e.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name > files[j].Name })
	return files, nil
}

// Latest returns the lexicographically last backup of database in dir. The
// timestamp must follow the database name directly, so backups of firmas_test
// never count as backups of firmas. An empty database matches every backup.
func Latest(dir, database string) (string, error) {
	files, err := List(dir)
	if err != nil {
		return "", err
	}
	var re *regexp.Regexp
	if database != "" {
		re = regexp.MustCompile(`^backup_` + regexp.QuoteMeta(database) + `_\d{4}-`)
	}
	for _, f := range files {
		if re == nil || re.MatchString(f.Name) {
			return f.Path, nil
		}
	}
	return "", fmt.Errorf("%w: no backups in %s", ErrBackupNotFound, dir)
}

// Resolve finds the file to restore: the latest backup when name is empty,
// otherwise name as given or relative to dir.
func Resolve(dir, database, name string) (string, error) {
	if name == "" {
		return Latest(dir, database)
	}
	for _, candidate := range []string{name, filepath.Join(dir, name)} {
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrBackupNotFound, name)
}
