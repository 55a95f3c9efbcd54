package storage

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE client_storage (
		storage_key TEXT PRIMARY KEY,
		storage_value TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`)
	require.NoError(t, err)

	return NewSQLStore(db, "")
}

func TestSQLStore_SQLite(t *testing.T) {
	exerciseStorage(t, setupSQLiteStore(t))
}

func TestSQLStore_GetUsesQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT storage_value FROM client_storage WHERE storage_key = $1`)).
		WithArgs("toyrent-storage").
		WillReturnRows(sqlmock.NewRows([]string{"storage_value"}).AddRow(`{"version":1}`))

	s := NewSQLStore(db, DefaultTableName)
	got, err := s.Get(context.Background(), "toyrent-storage")
	require.NoError(t, err)
	assert.Equal(t, `{"version":1}`, string(got))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_SetUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO client_storage .* ON CONFLICT \(storage_key\) DO UPDATE SET`).
		WithArgs("access_token", "abc", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := NewSQLStore(db, "")
	require.NoError(t, s.Set(context.Background(), "access_token", []byte("abc")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_WrapsDriverErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("connection reset")
	mock.ExpectQuery(`SELECT storage_value`).WillReturnError(boom)
	mock.ExpectExec(`DELETE FROM client_storage`).WillReturnError(boom)

	s := NewSQLStore(db, "")
	_, err = s.Get(context.Background(), "k")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNotFound)

	err = s.Clear(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}
