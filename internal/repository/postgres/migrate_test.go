package postgres

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrations_Embedded(t *testing.T) {
	migrations, err := LoadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	first := migrations[0]
	assert.Equal(t, 1, first.Version)
	assert.Equal(t, "patient_records", first.Name)
	for _, table := range []string{"patients", "diagnoses", "treatments", "appointments", "imaging_diagnostics", "ai_analysis_history"} {
		assert.Contains(t, first.SQL, "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
}

func TestLoadMigrations_SortsAndValidates(t *testing.T) {
	fsys := fstest.MapFS{
		"m/0002_second.sql": {Data: []byte("SELECT 2;")},
		"m/0001_first.sql":  {Data: []byte("SELECT 1;")},
		"m/README.md":       {Data: []byte("ignored")},
	}
	migrations, err := loadMigrations(fsys, "m")
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, "first", migrations[0].Name)
	assert.Equal(t, "second", migrations[1].Name)

	_, err = loadMigrations(fstest.MapFS{"m/first.sql": {Data: []byte("")}}, "m")
	assert.Error(t, err)

	_, err = loadMigrations(fstest.MapFS{
		"m/0001_a.sql": {Data: []byte("")},
		"m/0001_b.sql": {Data: []byte("")},
	}, "m")
	assert.Error(t, err)
}

func TestMigrator_Up(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	migrator := NewMigrator(sqlx.NewDb(db, "postgres"), []Migration{
		{Version: 1, Name: "first", SQL: "CREATE TABLE first_table (id TEXT)"},
		{Version: 2, Name: "second", SQL: "CREATE TABLE second_table (id TEXT)"},
	})

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version, applied_at FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version", "applied_at"}).AddRow(1, time.Now()))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE second_table").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO schema_migrations").WithArgs(2, "second").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	applied, err := migrator.Up(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrator_Up_FailureRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	migrator := NewMigrator(sqlx.NewDb(db, "postgres"), []Migration{
		{Version: 1, Name: "broken", SQL: "CREATE TABLE broken ("},
	})

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version, applied_at FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version", "applied_at"}))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE broken").WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	applied, err := migrator.Up(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, applied)
	assert.Contains(t, err.Error(), "apply migration 1_broken")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrator_Status(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	appliedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	migrator := NewMigrator(sqlx.NewDb(db, "postgres"), []Migration{
		{Version: 1, Name: "first"},
		{Version: 2, Name: "second"},
	})

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version, applied_at FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version", "applied_at"}).AddRow(1, appliedAt))

	statuses, err := migrator.Status(context.Background())
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.True(t, statuses[0].Applied)
	require.NotNil(t, statuses[0].AppliedAt)
	assert.Equal(t, appliedAt, *statuses[0].AppliedAt)
	assert.False(t, statuses[1].Applied)
	assert.Nil(t, statuses[1].AppliedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
