package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"os"

	"github.com/bengobox/social-auth/internal/config"
	"github.com/bengobox/social-auth/internal/database"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

// setup-db creates the PostgreSQL database named in AUTH_DB_URL. SQLite
// databases are created on first open and need no setup.
func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadStorage()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Database.Driver != database.DriverPostgres {
		fmt.Println("nothing to do for driver", cfg.Database.Driver)
		return
	}

	parsed, err := url.Parse(cfg.Database.URL)
	if err != nil {
		log.Fatalf("failed to parse DB URL: %v", err)
	}
	if len(parsed.Path) < 2 {
		log.Fatal("no database name in URL")
	}
	dbName, err := url.PathUnescape(parsed.Path[1:])
	if err != nil {
		log.Fatalf("failed to unescape database name: %v", err)
	}

	// Connect to the maintenance database on the same server unless an
	// explicit admin URL is given.
	adminURL := os.Getenv("AUTH_DB_ADMIN_URL")
	if adminURL == "" {
		admin := *parsed
		admin.Path = "/postgres"
		adminURL = admin.String()
	}
	db, err := sql.Open("pgx", adminURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping postgres: %v", err)
	}

	var exists bool
	if err := db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)`, dbName).Scan(&exists); err != nil {
		log.Fatalf("failed to check database: %v", err)
	}
	if exists {
		fmt.Printf("database '%s' already exists\n", dbName)
		return
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf(`CREATE DATABASE "%s"`, dbName)); err != nil {
		log.Fatalf("failed to create database: %v", err)
	}
	fmt.Printf("database '%s' created\n", dbName)
}
