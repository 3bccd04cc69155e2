package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/bengobox/social-auth/internal/identity"
	"github.com/bengobox/social-auth/internal/session"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// SessionResolver maps a session id to its account.
type SessionResolver interface {
	Current(ctx context.Context, id string) (*identity.Account, error)
}

// Session attaches the signed-in account, if any, to the request context.
type Session struct {
	resolver SessionResolver
	logger   *zap.Logger
}

// NewSession creates a new instance.
func NewSession(resolver SessionResolver, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{resolver: resolver, logger: logger}
}

// Load resolves the session cookie. Anonymous requests pass through.
func (s *Session) Load(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := session.IDFromRequest(r)
		if id == "" {
			next.ServeHTTP(w, r)
			return
		}
		account, err := s.resolver.Current(r.Context(), id)
		if err != nil {
			reqID := chimiddleware.GetReqID(r.Context())
			s.logger.Error("load session", zap.String("request_id", reqID), zap.Error(err))
			writeSessionError(w, http.StatusInternalServerError, "server_error", "internal server error")
			return
		}
		if account == nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), account)))
	})
}

// Require rejects requests without a signed-in account. It expects Load to
// have run first.
func (s *Session) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := AccountFromContext(r.Context()); !ok {
			writeSessionError(w, http.StatusUnauthorized, "unauthorized", "sign in required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeSessionError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": message,
		"code":  code,
	})
}

type accountContextKey struct{}

// WithAccount stores the signed-in account on ctx.
func WithAccount(ctx context.Context, account *identity.Account) context.Context {
	return context.WithValue(ctx, accountContextKey{}, account)
}

// AccountFromContext extracts the account stored by Load.
func AccountFromContext(ctx context.Context) (*identity.Account, bool) {
	account, ok := ctx.Value(accountContextKey{}).(*identity.Account)
	return account, ok && account != nil
}
