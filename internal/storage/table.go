package storage

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

var nonWordRe = regexp.MustCompile(`[^a-z0-9_]+`)

// SlugTableName lowercases and underscores a table name for its on-disk
// directory, per spec §6 (`<table_name_lowercased_underscored>`).
func SlugTableName(name string) string {
	return nonWordRe.ReplaceAllString(strings.ToLower(name), "_")
}

// TableDir returns <data_dir>/<slugified table name>/.
func TableDir(dataDir, tableName string) string {
	return filepath.Join(dataDir, SlugTableName(tableName))
}

func tableFilePath(dataDir, tableName string) string { return filepath.Join(TableDir(dataDir, tableName), "table") }
func walFilePath(dataDir, tableName string) string   { return filepath.Join(TableDir(dataDir, tableName), "wal") }

// Handle is a BTree bound to one table's pager and WAL, ready for one
// statement. Callers must Close it when done.
type Handle struct {
	*BTree
	pager *Pager
	wal   *WAL
}

// Close releases the pager and WAL file handles.
func (h *Handle) Close() error {
	perr := h.pager.Close()
	werr := h.wal.Close()
	if perr != nil {
		return perr
	}
	return werr
}

// OpenHandle constructs a fresh BTree handle bound to tableName's files.
// No handle outlives the table lock the dispatcher holds around it.
func OpenHandle(dataDir, tableName string, b int, log zerolog.Logger) (*Handle, error) {
	if err := os.MkdirAll(TableDir(dataDir, tableName), 0755); err != nil {
		return nil, &IOError{Op: "create table directory", Err: err}
	}
	pager, err := OpenPager(tableFilePath(dataDir, tableName), log)
	if err != nil {
		return nil, err
	}
	wal, err := OpenWAL(walFilePath(dataDir, tableName), log)
	if err != nil {
		pager.Close()
		return nil, err
	}
	return &Handle{BTree: Open(pager, wal, b, log), pager: pager, wal: wal}, nil
}

// DropTableFiles removes a table's directory (table file + WAL) entirely.
// This is a pure file-removal concern (SPEC_FULL.md §12); no tree
// operation is involved.
func DropTableFiles(dataDir, tableName string) error {
	if err := os.RemoveAll(TableDir(dataDir, tableName)); err != nil {
		return &IOError{Op: "drop table files", Err: err}
	}
	return nil
}

// ListTables scans the data directory for existing table directories,
// reversing SlugTableName is not attempted: the directory name itself
// (already slugified) is what the registry and `.show tables` use.
func ListTables(dataDir string) ([]string, error) {
	entries, err := os.ReadDir(dataDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &IOError{Op: "list tables", Err: err}
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
