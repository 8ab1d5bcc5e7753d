// Package migrator applies the snapshot schema with sql-migrate
package migrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/peterldowns/pgtestdb"
	"github.com/peterldowns/pgtestdb/migrators/sqlmigrator"
	migrate "github.com/rubenv/sql-migrate"
)

const (
	migrationsTableName = "schema_migrations"
	schemaHashPrefix    = "jormprobe_schema_"
)

// Migration-related errors
var (
	ErrMigrationExecution = errors.New("migration execution failed")
	ErrMigrationHash      = errors.New("migration hash failed")
)

// SchemaMigrator applies schema migrations. It satisfies pgtestdb.Migrator so
// tests build their template databases exactly the way production migrates.
type SchemaMigrator struct {
	migrationsDir string
}

// NewSchemaMigrator creates a migrator for the migrations in dir
func NewSchemaMigrator(migrationsDir string) *SchemaMigrator {
	return &SchemaMigrator{
		migrationsDir: migrationsDir,
	}
}

func (m *SchemaMigrator) Hash() (string, error) {
	source, set := migrationSource(m.migrationsDir)

	baseHash, err := sqlmigrator.New(source, set).Hash()
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrMigrationHash, m.migrationsDir, err)
	}
	return schemaHashPrefix + baseHash, nil
}

func (m *SchemaMigrator) Migrate(_ context.Context, db *sql.DB, _ pgtestdb.Config) error {
	_, err := applyMigrations(db, m.migrationsDir)
	return err
}

// ApplyMigrations applies pending migrations through the pgx pool and returns how many ran
func ApplyMigrations(pool *pgxpool.Pool, migrationsDir string) (int, error) {
	// sql-migrate needs a database/sql handle
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	return applyMigrations(db, migrationsDir)
}

func applyMigrations(db *sql.DB, migrationsDir string) (int, error) {
	source, set := migrationSource(migrationsDir)

	n, err := set.Exec(db, "postgres", source, migrate.Up)
	if err != nil {
		return n, fmt.Errorf("%w: %w", ErrMigrationExecution, err)
	}
	return n, nil
}

func migrationSource(dir string) (*migrate.FileMigrationSource, *migrate.MigrationSet) {
	return &migrate.FileMigrationSource{Dir: dir}, &migrate.MigrationSet{TableName: migrationsTableName}
}
