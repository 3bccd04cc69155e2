package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bengobox/social-auth/internal/audit"
	"github.com/bengobox/social-auth/internal/cache"
	"github.com/bengobox/social-auth/internal/config"
	"github.com/bengobox/social-auth/internal/database"
	"github.com/bengobox/social-auth/internal/events"
	"github.com/bengobox/social-auth/internal/httpapi"
	"github.com/bengobox/social-auth/internal/httpapi/handlers"
	httpmiddleware "github.com/bengobox/social-auth/internal/httpapi/middleware"
	"github.com/bengobox/social-auth/internal/oauth"
	"github.com/bengobox/social-auth/internal/providers"
	"github.com/bengobox/social-auth/internal/services/linkage"
	"github.com/bengobox/social-auth/internal/session"
	"github.com/bengobox/social-auth/internal/store"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// App wires core dependencies and exposes server lifecycle controls.
type App struct {
	logger      *zap.Logger
	db          *sqlx.DB
	redis       *redis.Client
	registry    *providers.Registry
	reloads     *providers.RedisCache
	stopReloads context.CancelFunc
	reloadsDone chan struct{}
	httpServer  *http.Server
}

// New constructs the application.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if cfg.Database.RunMigrations {
		if err := database.RunMigrations(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	redisClient, err := cache.New(ctx, cfg.Redis)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	st := store.New(db)
	oauthClient := oauth.New(cfg.OAuth.Clients())
	providerCache := providers.NewRedisCache(redisClient, cfg.Redis.Namespace)
	registry := providers.NewRegistry(providers.Dependencies{
		Source:        st,
		Cache:         providerCache,
		DefaultScopes: oauthClient.DefaultScopes(),
		Logger:        logger,
	})
	if err := registry.Load(ctx); err != nil {
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("load providers: %w", err)
	}

	sessions := session.NewManager(
		session.NewRedisStore(redisClient, cfg.Redis.Namespace),
		st,
		cfg.Session.TTL,
		logger,
	)

	metricsRegistry := prometheus.NewRegistry()
	metricsRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metricsSink, err := events.NewMetricsSink(metricsRegistry)
	if err != nil {
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	linkageService := linkage.New(linkage.Dependencies{
		Registry:      registry,
		OAuth:         oauthClient,
		Store:         st,
		Authenticator: sessions,
		Events: events.Multi{
			events.NewLogSink(logger),
			metricsSink,
			audit.New(st, logger),
		},
		StateSecret:  cfg.Security.OAuthStateSecret,
		StateTTL:     cfg.Security.OAuthStateTTL,
		RedirectPath: cfg.App.RedirectPath,
		Logger:       logger,
	})

	social := handlers.NewSocialHandler(linkageService, sessions, handlers.CookieConfig{
		Secure:   cfg.Session.CookieSecure,
		Domain:   cfg.Session.CookieDomain,
		StateTTL: cfg.Security.OAuthStateTTL,
	}, logger)
	sessionMiddleware := httpmiddleware.NewSession(sessions, logger)

	router := httpapi.NewRouter(httpapi.RouterDeps{
		HealthHandler: handlers.Health(db, logger),
		SocialHandlers: httpapi.SocialHandlers{
			Start:     social.Start,
			Callback:  social.Callback,
			Detach:    social.Detach,
			Providers: social.Providers,
			Links:     social.Links,
			Logout:    social.Logout,
		},
		LoadSession:    sessionMiddleware.Load,
		RequireSession: sessionMiddleware.Require,
		MetricsHandler: promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{}),
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           router,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	reloadCtx, stopReloads := context.WithCancel(context.Background())
	a := &App{
		logger:      logger,
		db:          db,
		redis:       redisClient,
		registry:    registry,
		reloads:     providerCache,
		stopReloads: stopReloads,
		reloadsDone: make(chan struct{}),
		httpServer:  server,
	}
	go a.watchProviderReloads(reloadCtx)
	return a, nil
}

// Run serves HTTP until Shutdown is called.
func (a *App) Run() error {
	a.logger.Info("starting HTTP server", zap.String("addr", a.httpServer.Addr))
	if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) watchProviderReloads(ctx context.Context) {
	defer close(a.reloadsDone)
	err := a.reloads.Subscribe(ctx, func(ctx context.Context) {
		if err := a.registry.Reload(ctx); err != nil {
			a.logger.Error("provider reload failed", zap.Error(err))
		}
	})
	if err != nil {
		a.logger.Error("provider reload subscription ended", zap.Error(err))
	}
}

// Shutdown gracefully stops the HTTP server and closes resources.
func (a *App) Shutdown(ctx context.Context) error {
	shutdownErr := a.httpServer.Shutdown(ctx)

	a.stopReloads()
	select {
	case <-a.reloadsDone:
	case <-ctx.Done():
	}
	if err := a.redis.Close(); err != nil {
		a.logger.Warn("failed to close redis client", zap.Error(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", zap.Error(err))
	}
	return shutdownErr
}
