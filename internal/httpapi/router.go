package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterDeps defines router construction dependencies.
type RouterDeps struct {
	HealthHandler  http.HandlerFunc
	SocialHandlers SocialHandlers
	LoadSession    func(http.Handler) http.Handler
	RequireSession func(http.Handler) http.Handler
	MetricsHandler http.Handler
	AllowedOrigins []string
}

// SocialHandlers groups the HTTP handlers for provider routes.
type SocialHandlers struct {
	Start     http.HandlerFunc
	Callback  http.HandlerFunc
	Detach    http.HandlerFunc
	Providers http.HandlerFunc
	Links     http.HandlerFunc
	Logout    http.HandlerFunc
}

// NewRouter wires HTTP routes.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		Error(w, r, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		Error(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	if deps.HealthHandler != nil {
		r.Get("/healthz", deps.HealthHandler)
	}
	if deps.MetricsHandler != nil {
		r.Method("GET", "/metrics", deps.MetricsHandler)
	}

	h := deps.SocialHandlers
	r.Route("/auth", func(r chi.Router) {
		if deps.LoadSession != nil {
			r.Use(deps.LoadSession)
		}
		r.Get("/providers", h.Providers)
		r.Post("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			if deps.RequireSession != nil {
				r.Use(deps.RequireSession)
			}
			r.Get("/links", h.Links)
			r.Delete("/{provider}", h.Detach)
		})

		r.Get("/{provider}", h.Start)
		r.Get("/{provider}/callback", h.Callback)
		r.Post("/{provider}/callback", h.Callback)
	})

	return r
}
