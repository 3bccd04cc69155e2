// Package database opens the SQL connection pool and applies the schema.
package database

import (
	"context"
	"database/sql"
	"fmt"

	"entgo.io/ent/dialect"
	"github.com/bengobox/social-auth/internal/config"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // register sqlite3 driver
)

const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite3"
)

// Open initialises a connection pool for the configured driver.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sql.Open(cfg.Driver, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open %s connection: %w", cfg.Driver, err)
	}

	if cfg.Driver == DriverSQLite {
		// sqlite serialises writers; a single connection also keeps a
		// shared in-memory database alive.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}
	return sqlx.NewDb(db, cfg.Driver), nil
}

// Dialect maps a database/sql driver name onto the ent dialect.
func Dialect(driver string) (string, error) {
	switch driver {
	case DriverPostgres:
		return dialect.Postgres, nil
	case DriverSQLite:
		return dialect.SQLite, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}
