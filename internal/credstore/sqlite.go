package credstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"deskauth/pkg/logging"
)

// SQLiteFileName is the database SQLiteStore opens inside its directory.
const SQLiteFileName = "deskauth.db"

const createCredentialsTable = `
CREATE TABLE IF NOT EXISTS credentials (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// SQLiteStore keeps the record as rows of a key/value table. Every write is
// one transaction.
type SQLiteStore struct {
	sqlDB *sql.DB
}

// OpenSQLite opens (or creates) the database at path and ensures the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := "file:" + cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single connection serializes writers inside this process.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if _, err := sqlDB.Exec(createCredentialsTable); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create credentials table: %w", err)
	}

	return &SQLiteStore{sqlDB: sqlDB}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *SQLiteStore) Load(ctx context.Context) (*Record, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT key, value FROM credentials`)
	if err != nil {
		return nil, fmt.Errorf("query credentials: %w", err)
	}
	defer rows.Close()

	values := map[string]string{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan credentials: %w", err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}

	return decodeRecord(values)
}

func (s *SQLiteStore) Save(ctx context.Context, rec Record) error {
	values, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM credentials`); err != nil {
			return fmt.Errorf("delete credentials: %w", err)
		}
		return upsertAll(ctx, tx, values)
	})
	if err != nil {
		logging.Audit("credentials_store_failed", "backend", "sqlite", "error", err.Error())
		return err
	}
	logging.Audit("credentials_stored",
		"backend", "sqlite",
		"expiry", values[KeyTokenExpiry],
		"has_refresh_token", !rec.Credentials.RefreshToken.IsEmpty(),
	)
	return nil
}

func (s *SQLiteStore) SaveCredentials(ctx context.Context, creds Credentials) error {
	values := encodeCredentials(creds)
	replaced := []any{KeyAccessToken, KeyTokenExpiry}
	if !creds.RefreshToken.IsEmpty() {
		replaced = append(replaced, KeyRefreshToken)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(replaced)), ", ")

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM credentials WHERE key IN (`+placeholders+`)`,
			replaced...,
		); err != nil {
			return fmt.Errorf("delete tokens: %w", err)
		}
		return upsertAll(ctx, tx, values)
	})
	if err != nil {
		logging.Audit("credentials_store_failed", "backend", "sqlite", "error", err.Error())
		return err
	}
	logging.Audit("credentials_renewed", "backend", "sqlite", "expiry", values[KeyTokenExpiry])
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM credentials`); err != nil {
		logging.Audit("credentials_clear_failed", "backend", "sqlite", "error", err.Error())
		return fmt.Errorf("clear credentials: %w", err)
	}
	logging.Audit("credentials_cleared", "backend", "sqlite")
	return nil
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func upsertAll(ctx context.Context, tx *sql.Tx, values map[string]string) error {
	for _, key := range allKeys {
		value, ok := values[key]
		if !ok {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO credentials (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			key, value,
		); err != nil {
			return fmt.Errorf("upsert %s: %w", key, err)
		}
	}
	return nil
}
