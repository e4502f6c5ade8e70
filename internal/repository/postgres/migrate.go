package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const (
	createMigrationsTableQuery = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`
	selectAppliedVersionsQuery = `SELECT version, applied_at FROM schema_migrations ORDER BY version`
	insertMigrationQuery       = `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`
)

// Migration is one embedded schema file, named <version>_<name>.sql.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// LoadMigrations returns the embedded migrations sorted by version.
func LoadMigrations() ([]Migration, error) {
	return loadMigrations(migrationFiles, "migrations")
}

func loadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	var migrations []Migration
	seen := make(map[int]string)
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}
		base := strings.TrimSuffix(entry.Name(), ".sql")
		prefix, name, ok := strings.Cut(base, "_")
		if !ok {
			return nil, fmt.Errorf("invalid migration file name %q", entry.Name())
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, fmt.Errorf("invalid migration version in %q: %w", entry.Name(), err)
		}
		if other, dup := seen[version]; dup {
			return nil, fmt.Errorf("migration version %d used by %q and %q", version, other, entry.Name())
		}
		seen[version] = entry.Name()

		body, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %q: %w", entry.Name(), err)
		}
		migrations = append(migrations, Migration{Version: version, Name: name, SQL: string(body)})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// Migrator applies pending migrations, one transaction per file.
type Migrator struct {
	BaseRepository
	migrations []Migration
}

func NewMigrator(db *sqlx.DB, migrations []Migration) *Migrator {
	return &Migrator{BaseRepository: NewBaseRepository(db), migrations: migrations}
}

// MigrationStatus reports whether a migration has been applied.
type MigrationStatus struct {
	Migration
	Applied   bool
	AppliedAt *time.Time
}

type appliedMigration struct {
	Version   int       `db:"version"`
	AppliedAt time.Time `db:"applied_at"`
}

// applied ensures the tracking table exists and returns the applied versions.
func (m *Migrator) applied(ctx context.Context) (map[int]time.Time, error) {
	if _, err := m.GetDB().ExecContext(ctx, createMigrationsTableQuery); err != nil {
		return nil, wrapErr("create schema_migrations", err)
	}

	var rows []appliedMigration
	if err := m.GetDB().SelectContext(ctx, &rows, selectAppliedVersionsQuery); err != nil {
		return nil, wrapErr("list applied migrations", err)
	}
	applied := make(map[int]time.Time, len(rows))
	for _, row := range rows {
		applied[row.Version] = row.AppliedAt
	}
	return applied, nil
}

// Status lists every known migration with its applied state.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]MigrationStatus, 0, len(m.migrations))
	for _, mig := range m.migrations {
		status := MigrationStatus{Migration: mig}
		if at, ok := applied[mig.Version]; ok {
			at := at
			status.Applied = true
			status.AppliedAt = &at
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// Up applies every migration not yet recorded in schema_migrations and
// returns how many were applied.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	logger := zerolog.Ctx(ctx)

	applied, err := m.applied(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, mig := range m.migrations {
		if _, ok := applied[mig.Version]; ok {
			continue
		}
		mig := mig
		err := m.WithTx(ctx, func(tx *sqlx.Tx) error {
			if _, err := tx.ExecContext(ctx, mig.SQL); err != nil {
				return wrapErr(fmt.Sprintf("apply migration %d_%s", mig.Version, mig.Name), err)
			}
			if _, err := tx.ExecContext(ctx, insertMigrationQuery, mig.Version, mig.Name); err != nil {
				return wrapErr("record migration", err)
			}
			return nil
		})
		if err != nil {
			return count, err
		}
		logger.Info().Int("version", mig.Version).Str("name", mig.Name).Msg("Applied migration")
		count++
	}
	return count, nil
}
