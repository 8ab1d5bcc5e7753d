// Package migratortest creates throwaway PostgreSQL databases with the schema applied
package migratortest

import (
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for pgtestdb
	"github.com/peterldowns/pgtestdb"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/jormprobe/migrator"
	"github.com/screwyprof/jormprobe/migrator/migratortest/testcfg"
)

// CreateTestDatabase creates a database cloned from a migrated template.
// The pool is closed when the test ends.
func CreateTestDatabase(t *testing.T, migrationsDir string) *pgxpool.Pool {
	t.Helper()

	dbConfig := pgtestdb.Custom(t, createTestDatabaseConfig(), migrator.NewSchemaMigrator(migrationsDir))
	t.Logf("testdbconf: %s", dbConfig.URL())

	pool, err := pgxpool.New(t.Context(), dbConfig.URL())
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool
}

func createTestDatabaseConfig() pgtestdb.Config {
	cfg := testcfg.New()
	return pgtestdb.Config{
		DriverName: "pgx",
		User:       cfg.User,
		Password:   cfg.Password,
		Host:       cfg.Host,
		Port:       cfg.Port,
		Options:    "sslmode=disable",
	}
}
