package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"deskauth/pkg/logging"
)

// CredentialsFileName is the file FileStore writes inside its directory.
const CredentialsFileName = "credentials.json"

// FileStore keeps the record as one JSON object in <dir>/credentials.json.
//
// SECURITY: the directory is created 0700 and the file 0600. Writes go to
// a temporary file that is renamed into place, so a crash never leaves a
// half-written record. Token values are never logged.
type FileStore struct {
	mu   sync.RWMutex
	dir  string
	path string
}

// NewFileStore creates the storage directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("credential storage directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create credential storage directory: %w", err)
	}
	return &FileStore{dir: dir, path: filepath.Join(dir, CredentialsFileName)}, nil
}

// Path returns the credentials file location.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(_ context.Context) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values, err := s.readLocked()
	if err != nil {
		return nil, err
	}
	return decodeRecord(values)
}

func (s *FileStore) Save(_ context.Context, rec Record) error {
	values, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeLocked(values); err != nil {
		logging.Audit("credentials_store_failed", "backend", "file", "error", err.Error())
		return err
	}
	logging.Audit("credentials_stored",
		"backend", "file",
		"expiry", values[KeyTokenExpiry],
		"has_refresh_token", !rec.Credentials.RefreshToken.IsEmpty(),
	)
	return nil
}

func (s *FileStore) SaveCredentials(_ context.Context, creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.readLocked()
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	values := mergeCredentials(current, creds)

	if err := s.writeLocked(values); err != nil {
		logging.Audit("credentials_store_failed", "backend", "file", "error", err.Error())
		return err
	}
	logging.Audit("credentials_renewed", "backend", "file", "expiry", values[KeyTokenExpiry])
	return nil
}

func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		logging.Audit("credentials_clear_failed", "backend", "file", "error", err.Error())
		return fmt.Errorf("failed to remove credentials file: %w", err)
	}
	logging.Audit("credentials_cleared", "backend", "file")
	return nil
}

// readLocked returns ErrNotFound when the file is absent.
// REQUIRES: s.mu held.
func (s *FileStore) readLocked() (map[string]string, error) {
	// #nosec G304 -- path is fixed at construction
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	values := map[string]string{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return values, nil
}

// writeLocked replaces the file atomically. An empty map removes it.
// REQUIRES: s.mu held for writing.
func (s *FileStore) writeLocked(values map[string]string) error {
	if len(values) == 0 {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove credentials file: %w", err)
		}
		return nil
	}

	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".credentials-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary credentials file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to restrict credentials file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync credentials file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close credentials file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace credentials file: %w", err)
	}
	return nil
}
