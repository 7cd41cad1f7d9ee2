package storage

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLStorageWithMock(t *testing.T, dialect Dialect) (*SQLStorage, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLStorage(db, dialect), mock
}

func TestSQLStorage_Get(t *testing.T) {
	s, mock := newSQLStorageWithMock(t, DialectSQLite)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM kv WHERE key = ?`)).
		WithArgs("ns_accessToken").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("abc"))

	v, ok, err := s.Get(context.Background(), "ns_accessToken")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStorage_GetMissing(t *testing.T) {
	s, mock := newSQLStorageWithMock(t, DialectSQLite)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM kv WHERE key = ?`)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	_, ok, err := s.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStorage_GetError(t *testing.T) {
	s, mock := newSQLStorageWithMock(t, DialectSQLite)

	mock.ExpectQuery(`SELECT value FROM kv`).
		WithArgs("k").
		WillReturnError(errors.New("db down"))

	_, _, err := s.Get(context.Background(), "k")
	assert.ErrorContains(t, err, "db down")
}

func TestSQLStorage_SetUsesPostgresPlaceholders(t *testing.T) {
	s, mock := newSQLStorageWithMock(t, DialectPostgres)

	mock.ExpectExec(`(?s)INSERT INTO kv \(key, value\) VALUES \(\$1, \$2\)\s+ON CONFLICT\(key\) DO UPDATE SET value = excluded\.value`).
		WithArgs("k", "v").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Set(context.Background(), "k", "v"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStorage_RemoveAndClear(t *testing.T) {
	s, mock := newSQLStorageWithMock(t, DialectSQLite)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM kv WHERE key = ?`)).
		WithArgs("k").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM kv`)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, s.Remove(context.Background(), "k"))
	require.NoError(t, s.Clear(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenSQLStorage_Validation(t *testing.T) {
	_, err := OpenSQLStorage(context.Background(), DialectSQLite, "")
	assert.Error(t, err)

	_, err = OpenSQLStorage(context.Background(), Dialect("oracle"), "dsn")
	assert.ErrorContains(t, err, "unsupported sql dialect")
}

func TestOpenSQLStorage_MigrationFailure(t *testing.T) {
	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })
	gooseUpContext = func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error {
		return errors.New("boom")
	}

	_, err := OpenSQLStorage(context.Background(), DialectSQLite, "file:mig?mode=memory")
	assert.ErrorContains(t, err, "running migrations: boom")
}

func TestOpenSQLStorage_SQLiteRoundTrip(t *testing.T) {
	s, err := OpenSQLStorage(context.Background(), DialectSQLite, "file:gqlsession-test?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	exerciseStorage(t, s)
}
