package main

import (
	"context"
	"log"
	"strings"

	"github.com/bengobox/social-auth/internal/config"
	"github.com/bengobox/social-auth/internal/database"
	"github.com/bengobox/social-auth/internal/logger"
	"github.com/bengobox/social-auth/internal/providers"
	"github.com/bengobox/social-auth/internal/store"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// seed registers a provider record for every OAuth client configured in the
// environment that has none yet. Existing records are left untouched.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zapLogger, err := logger.New(cfg.App.Environment)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zapLogger.Sync() //nolint:errcheck

	ctx := context.Background()
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		zapLogger.Fatal("database connection", zap.Error(err))
	}
	defer db.Close()

	// Run migrations first (idempotent)
	if err := database.RunMigrations(ctx, db); err != nil {
		zapLogger.Fatal("migrations", zap.Error(err))
	}

	s := store.New(db)
	existing, err := s.ListProviders(ctx)
	if err != nil {
		zapLogger.Fatal("list providers", zap.Error(err))
	}
	known := make(map[string]bool, len(existing))
	for _, p := range existing {
		known[p.Slug] = true
	}

	for slug := range cfg.OAuth.Clients() {
		if known[slug] {
			continue
		}
		p, err := providers.Validate(providers.Provider{Slug: slug, Label: label(slug)})
		if err != nil {
			zapLogger.Fatal("invalid provider", logger.Provider(slug), zap.Error(err))
		}
		if err := s.UpsertProvider(ctx, p); err != nil {
			zapLogger.Fatal("seed provider", logger.Provider(slug), zap.Error(err))
		}
		zapLogger.Info("provider seeded", logger.Provider(slug))
	}
}

var labels = map[string]string{
	"github":   "GitHub",
	"gitlab":   "GitLab",
	"google":   "Google",
	"facebook": "Facebook",
}

func label(slug string) string {
	if l, ok := labels[slug]; ok {
		return l
	}
	return strings.ToUpper(slug[:1]) + slug[1:]
}
