package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bengobox/social-auth/internal/httpapi/middleware"
	"github.com/bengobox/social-auth/internal/identity"
	"github.com/bengobox/social-auth/internal/logger"
	"github.com/bengobox/social-auth/internal/providers"
	"github.com/bengobox/social-auth/internal/services/linkage"
	"github.com/bengobox/social-auth/internal/session"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const nonceCookieName = "social_oauth_nonce"

// LinkageService describes the linkage capabilities used by HTTP handlers.
type LinkageService interface {
	StartAuthorization(ctx context.Context, slug string) (*linkage.Authorization, error)
	CompleteAuthorization(ctx context.Context, cb linkage.Callback) (*linkage.Result, error)
	Detach(ctx context.Context, account *identity.Account, slug string) (*identity.Link, error)
	Links(ctx context.Context, account *identity.Account) ([]identity.Link, error)
	Providers() []providers.Provider
	RedirectPath() string
}

// SessionEnder terminates sessions.
type SessionEnder interface {
	Logout(ctx context.Context, id string) error
}

// CookieConfig controls the cookies issued by the social handler.
type CookieConfig struct {
	Secure   bool
	Domain   string
	StateTTL time.Duration
}

// SocialHandler exposes the provider sign-in, attach and detach endpoints.
type SocialHandler struct {
	service  LinkageService
	sessions SessionEnder
	cookies  CookieConfig
	logger   *zap.Logger
}

// NewSocialHandler constructs a handler.
func NewSocialHandler(service LinkageService, sessions SessionEnder, cookies CookieConfig, logger *zap.Logger) *SocialHandler {
	if cookies.StateTTL <= 0 {
		cookies.StateTTL = 10 * time.Minute
	}
	return &SocialHandler{
		service:  service,
		sessions: sessions,
		cookies:  cookies,
		logger:   logger,
	}
}

// Start redirects the browser to the provider.
func (h *SocialHandler) Start(w http.ResponseWriter, r *http.Request) {
	auth, err := h.service.StartAuthorization(r.Context(), chi.URLParam(r, "provider"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if auth.Nonce != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     nonceCookieName,
			Value:    auth.Nonce,
			Path:     "/auth",
			Domain:   h.cookies.Domain,
			MaxAge:   int(h.cookies.StateTTL.Seconds()),
			HttpOnly: true,
			Secure:   h.cookies.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
	http.Redirect(w, r, auth.URL, http.StatusFound)
}

// Callback completes the OAuth handshake and redirects to the configured
// landing path, carrying an error code on failure.
func (h *SocialHandler) Callback(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "provider")
	cb := linkage.Callback{
		Provider: slug,
		Code:     r.FormValue("code"),
		State:    r.FormValue("state"),
		Error:    r.FormValue("error"),
	}
	if c, err := r.Cookie(nonceCookieName); err == nil {
		cb.Nonce = c.Value
	}
	if account, ok := middleware.AccountFromContext(r.Context()); ok {
		cb.Current = account
	}
	h.clearNonce(w)

	result, err := h.service.CompleteAuthorization(r.Context(), cb)
	if err != nil {
		code, ok := redirectCode(err)
		if !ok {
			h.handleError(w, r, err)
			return
		}
		h.logger.Info("social callback rejected",
			logger.Provider(slug),
			zap.String("code", code),
			zap.String("ip", clientIP(r)),
			zap.String("user_agent", userAgent(r)),
			zap.Error(err),
		)
		http.Redirect(w, r, withError(h.service.RedirectPath(), code, slug), http.StatusFound)
		return
	}

	if result.Session != nil {
		session.SetCookie(w, *result.Session, h.sessionCookieOptions())
	}
	http.Redirect(w, r, result.Redirect, http.StatusFound)
}

// Detach removes the signed-in account's identity for a provider.
func (h *SocialHandler) Detach(w http.ResponseWriter, r *http.Request) {
	account, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "sign in required", nil)
		return
	}
	link, err := h.service.Detach(r.Context(), account, chi.URLParam(r, "provider"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"provider": link.ProviderSlug,
		"detached": linkView(*link),
		"redirect": h.service.RedirectPath(),
	})
}

// Providers lists the configured providers for sign-in buttons.
func (h *SocialHandler) Providers(w http.ResponseWriter, r *http.Request) {
	all := h.service.Providers()
	out := make([]map[string]any, 0, len(all))
	for _, p := range all {
		out = append(out, map[string]any{
			"slug":      p.Slug,
			"label":     p.Label,
			"login_url": "/auth/" + p.Slug,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": out})
}

// Links lists the signed-in account's identities next to every provider.
func (h *SocialHandler) Links(w http.ResponseWriter, r *http.Request) {
	account, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "sign in required", nil)
		return
	}
	links, err := h.service.Links(r.Context(), account)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	bySlug := make(map[string]identity.Link, len(links))
	views := make([]map[string]any, 0, len(links))
	for _, l := range links {
		bySlug[l.ProviderSlug] = l
		views = append(views, linkView(l))
	}
	available := make([]map[string]any, 0)
	for _, p := range h.service.Providers() {
		_, linked := bySlug[p.Slug]
		available = append(available, map[string]any{
			"slug":   p.Slug,
			"label":  p.Label,
			"linked": linked,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account":   accountView(account),
		"links":     views,
		"providers": available,
	})
}

// Logout ends the current session.
func (h *SocialHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context(), session.IDFromRequest(r)); err != nil {
		h.handleError(w, r, err)
		return
	}
	session.ClearCookie(w, h.sessionCookieOptions())
	w.WriteHeader(http.StatusNoContent)
}

func (h *SocialHandler) sessionCookieOptions() session.CookieOptions {
	return session.CookieOptions{Secure: h.cookies.Secure, Domain: h.cookies.Domain}
}

func (h *SocialHandler) clearNonce(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     nonceCookieName,
		Value:    "",
		Path:     "/auth",
		Domain:   h.cookies.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *SocialHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	provider := identity.ProviderOf(err)
	details := map[string]any{}
	if provider != "" {
		details["provider"] = provider
	}

	var (
		dup  *identity.DuplicateLinkError
		last *identity.LastIdentityError
	)
	switch {
	case errors.Is(err, identity.ErrProviderNotFound):
		writeError(w, http.StatusNotFound, "provider_not_found", "provider not found", details)
	case errors.As(err, &last):
		details["account_id"] = last.AccountID
		writeError(w, http.StatusConflict, string(identity.ReasonLastIdentity), "cannot detach the only identity of an account without email", details)
	case errors.Is(err, identity.ErrDetachFailed):
		writeError(w, http.StatusUnprocessableEntity, string(identity.ReasonDetachFailed), "identity could not be detached", details)
	case errors.As(err, &dup):
		writeError(w, http.StatusConflict, string(dup.Reason), "identity already linked", details)
	case errors.Is(err, identity.ErrAccountNotFound):
		writeError(w, http.StatusUnauthorized, "unauthorized", "sign in required", nil)
	default:
		reqID := chimiddleware.GetReqID(r.Context())
		h.logger.Error("social handler error", zap.String("request_id", reqID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "server_error", "internal server error", map[string]any{"request_id": reqID})
	}
}

// redirectCode maps callback failures the user can act on to an error code.
func redirectCode(err error) (string, bool) {
	var (
		dup   *identity.DuplicateLinkError
		fetch *identity.ProfileFetchError
	)
	switch {
	case errors.As(err, &dup):
		return string(dup.Reason), true
	case errors.As(err, &fetch):
		if fetch.Reason != "" {
			return string(fetch.Reason), true
		}
		return "profile_fetch_failed", true
	case errors.Is(err, identity.ErrMissingExternalID):
		return string(identity.ReasonNoUserData), true
	case errors.Is(err, identity.ErrStateInvalid):
		return "state_invalid", true
	case errors.Is(err, identity.ErrProviderNotFound):
		return "provider_not_found", true
	}
	return "", false
}

func withError(path, code, provider string) string {
	q := url.Values{}
	q.Set("error", code)
	if provider != "" {
		q.Set("provider", provider)
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + q.Encode()
}

func linkView(l identity.Link) map[string]any {
	return map[string]any{
		"id":               l.ID,
		"provider":         l.ProviderSlug,
		"external_user_id": l.ExternalUserID,
		"email":            l.Email,
		"linked_at":        l.LinkedAt,
	}
}

func accountView(a *identity.Account) map[string]any {
	return map[string]any{
		"id":         a.ID,
		"email":      a.Email,
		"name":       a.Name,
		"avatar_url": a.AvatarURL,
	}
}
