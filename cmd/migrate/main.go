package main

import (
	"context"
	"log"

	"github.com/bengobox/social-auth/internal/config"
	"github.com/bengobox/social-auth/internal/database"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadStorage()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx := context.Background()
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Println("migrations completed")
}
