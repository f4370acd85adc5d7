package credstore

import (
	"fmt"
	"os"
	"path/filepath"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Open returns the store for backend rooted at dir, plus the file names a
// Watcher should observe for out-of-process changes. Callers close the
// returned closer when done.
func Open(backend, dir string) (Store, []string, func() error, error) {
	switch backend {
	case "", BackendFile:
		fs, err := NewFileStore(dir)
		if err != nil {
			return nil, nil, nil, err
		}
		return fs, []string{CredentialsFileName}, func() error { return nil }, nil
	case BackendSQLite:
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create credential storage directory: %w", err)
		}
		ss, err := OpenSQLite(filepath.Join(dir, SQLiteFileName))
		if err != nil {
			return nil, nil, nil, err
		}
		return ss, []string{SQLiteFileName, SQLiteFileName + "-wal"}, ss.Close, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown credential storage backend %q", backend)
	}
}
