package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DefaultTableName is the table created by the client storage migrations
const DefaultTableName = "client_storage"

// SQLStore keeps keys in a table of a sqlite or postgres database
type SQLStore struct {
	db        *sql.DB
	tableName string
}

// NewSQLStore creates a SQL-backed store. The table must already exist;
// config.Database.Migrate creates it.
func NewSQLStore(db *sql.DB, tableName string) *SQLStore {
	if tableName == "" {
		tableName = DefaultTableName
	}
	return &SQLStore{db: db, tableName: tableName}
}

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, error) {
	query := fmt.Sprintf(`SELECT storage_value FROM %s WHERE storage_key = $1`, s.tableName)

	var value string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get key %q: %w", key, err)
	}
	return []byte(value), nil
}

func (s *SQLStore) Set(ctx context.Context, key string, value []byte) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (storage_key, storage_value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (storage_key) DO UPDATE SET
			storage_value = EXCLUDED.storage_value,
			updated_at = EXCLUDED.updated_at`, s.tableName)

	if _, err := s.db.ExecContext(ctx, query, key, string(value), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to set key %q: %w", key, err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE storage_key = $1`, s.tableName)
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete key %q: %w", key, err)
	}
	return nil
}

func (s *SQLStore) Clear(ctx context.Context) error {
	query := fmt.Sprintf(`DELETE FROM %s`, s.tableName)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to clear storage: %w", err)
	}
	return nil
}

// Close is a no-op; the *sql.DB belongs to the caller.
func (s *SQLStore) Close() error {
	return nil
}
