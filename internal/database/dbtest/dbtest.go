// Package dbtest opens migrated in-memory sqlite databases for tests.
package dbtest

import (
	"context"
	"fmt"
	"testing"

	"github.com/bengobox/social-auth/internal/config"
	"github.com/bengobox/social-auth/internal/database"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// Open returns a fresh, migrated database that is closed with the test.
func Open(t testing.TB) *sqlx.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", uuid.NewString())
	db, err := database.Open(context.Background(), config.DatabaseConfig{
		Driver: database.DriverSQLite,
		URL:    dsn,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.RunMigrations(context.Background(), db))
	return db
}
