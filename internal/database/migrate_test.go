package database_test

import (
	"context"
	"testing"

	"github.com/bengobox/social-auth/internal/database"
	"github.com/bengobox/social-auth/internal/database/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMigrationsCreatesTables(t *testing.T) {
	db := dbtest.Open(t)

	for _, table := range database.Tables {
		var count int
		err := db.GetContext(context.Background(), &count,
			`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table.Name)
		require.NoError(t, err)
		assert.Equal(t, 1, count, table.Name)
	}
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	db := dbtest.Open(t)
	require.NoError(t, database.RunMigrations(context.Background(), db))
}

func TestDialect(t *testing.T) {
	name, err := database.Dialect(database.DriverPostgres)
	require.NoError(t, err)
	assert.Equal(t, "postgres", name)

	name, err = database.Dialect(database.DriverSQLite)
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", name)

	_, err = database.Dialect("mysql")
	assert.Error(t, err)
}
