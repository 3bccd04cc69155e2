// Package linkage runs the social sign-in flow: it starts the OAuth
// redirect, turns callbacks into resolver decisions, executes them in one
// transaction and reports the outcome as sessions and events.
package linkage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bengobox/social-auth/internal/events"
	"github.com/bengobox/social-auth/internal/identity"
	"github.com/bengobox/social-auth/internal/logger"
	"github.com/bengobox/social-auth/internal/oauth"
	"github.com/bengobox/social-auth/internal/oauth/state"
	"github.com/bengobox/social-auth/internal/providers"
	"github.com/bengobox/social-auth/internal/session"
	"github.com/bengobox/social-auth/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultStateTTL = 10 * time.Minute

// Registry resolves configured providers.
type Registry interface {
	Resolve(slug string) (providers.Provider, error)
	All() []providers.Provider
	BuildAuthorizationRequest(p providers.Provider) providers.AuthorizationRequest
}

// OAuthClient talks to the external provider.
type OAuthClient interface {
	AuthCodeURL(p providers.Provider, req providers.AuthorizationRequest, state string) (string, error)
	FetchIdentity(ctx context.Context, p providers.Provider, code string) (identity.ExternalIdentity, error)
}

// Store is the persistence the flow runs against.
type Store interface {
	WithinTx(ctx context.Context, fn func(store.Repos) error) error
	ListLinks(ctx context.Context, accountID uuid.UUID) ([]identity.Link, error)
}

// Authenticator starts sessions.
type Authenticator interface {
	Login(ctx context.Context, account *identity.Account) (session.Session, error)
}

// Service orchestrates the linkage flow.
type Service struct {
	registry     Registry
	oauth        OAuthClient
	store        Store
	auth         Authenticator
	events       events.Sink
	stateSecret  string
	stateTTL     time.Duration
	redirectPath string
	logger       *zap.Logger
}

// Dependencies aggregates constructor inputs.
type Dependencies struct {
	Registry      Registry
	OAuth         OAuthClient
	Store         Store
	Authenticator Authenticator
	Events        events.Sink
	StateSecret   string
	StateTTL      time.Duration
	RedirectPath  string
	Logger        *zap.Logger
}

// New initialises the linkage service.
func New(deps Dependencies) *Service {
	s := &Service{
		registry:     deps.Registry,
		oauth:        deps.OAuth,
		store:        deps.Store,
		auth:         deps.Authenticator,
		events:       deps.Events,
		stateSecret:  deps.StateSecret,
		stateTTL:     deps.StateTTL,
		redirectPath: deps.RedirectPath,
		logger:       deps.Logger,
	}
	if s.events == nil {
		s.events = events.Multi{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.stateTTL <= 0 {
		s.stateTTL = defaultStateTTL
	}
	if s.redirectPath == "" {
		s.redirectPath = "/"
	}
	return s
}

// RedirectPath is where users land after auth, attach or detach.
func (s *Service) RedirectPath() string {
	return s.redirectPath
}

// Authorization is the outcome of StartAuthorization. Nonce is empty for
// stateless providers; otherwise the caller must hand it back on callback.
type Authorization struct {
	Provider providers.Provider
	URL      string
	Nonce    string
}

// StartAuthorization builds the provider redirect for slug.
func (s *Service) StartAuthorization(ctx context.Context, slug string) (*Authorization, error) {
	p, err := s.registry.Resolve(slug)
	if err != nil {
		return nil, err
	}
	req := s.registry.BuildAuthorizationRequest(p)

	out := &Authorization{Provider: p}
	stateToken := ""
	if !p.Stateless {
		out.Nonce = state.NewNonce()
		stateToken, err = state.Encode(s.stateSecret, state.Payload{Provider: p.Slug, Nonce: out.Nonce}, s.stateTTL)
		if err != nil {
			return nil, fmt.Errorf("encode oauth state: %w", err)
		}
	}

	out.URL, err = s.oauth.AuthCodeURL(p, req, stateToken)
	if errors.Is(err, oauth.ErrClientNotConfigured) {
		s.logger.Warn("provider has no oauth client", logger.Provider(p.Slug))
		return nil, &identity.ProviderNotFoundError{Slug: p.Slug}
	}
	if err != nil {
		return nil, fmt.Errorf("build authorization url: %w", err)
	}
	return out, nil
}

// Callback carries what the provider sent back plus the caller's context.
type Callback struct {
	Provider string
	Code     string
	State    string
	// Nonce is the value issued by StartAuthorization, read back from the
	// browser.
	Nonce string
	// Error is the provider's error parameter, set when the user declined.
	Error string
	// Current is the signed-in account, nil for anonymous callers.
	Current *identity.Account
}

// Result describes an executed decision.
type Result struct {
	Action   identity.ActionKind
	Account  *identity.Account
	Link     *identity.Link
	Session  *session.Session
	Redirect string
}

// CompleteAuthorization validates the callback, fetches the profile and
// applies the resolver's decision.
func (s *Service) CompleteAuthorization(ctx context.Context, cb Callback) (*Result, error) {
	p, err := s.registry.Resolve(cb.Provider)
	if err != nil {
		return nil, err
	}
	if !p.Stateless {
		if err := s.verifyState(p, cb); err != nil {
			return nil, err
		}
	}
	if cb.Error != "" {
		return nil, &identity.ProfileFetchError{Provider: p.Slug, Cause: fmt.Errorf("provider returned %q", cb.Error)}
	}

	ext, err := s.oauth.FetchIdentity(ctx, p, cb.Code)
	if errors.Is(err, oauth.ErrEmptyProfile) {
		return nil, &identity.ProfileFetchError{Provider: p.Slug, Reason: identity.ReasonNoUserData, Cause: err}
	}
	if err != nil {
		return nil, &identity.ProfileFetchError{Provider: p.Slug, Cause: err}
	}
	ext.ProviderSlug = p.Slug
	return s.Apply(ctx, cb.Current, ext)
}

func (s *Service) verifyState(p providers.Provider, cb Callback) error {
	if cb.State == "" || cb.Nonce == "" {
		return identity.ErrStateInvalid
	}
	payload, err := state.Decode(s.stateSecret, cb.State)
	if err != nil {
		s.logger.Debug("oauth state rejected", logger.Provider(p.Slug), zap.Error(err))
		return identity.ErrStateInvalid
	}
	if payload.Provider != p.Slug || payload.Nonce != cb.Nonce {
		return identity.ErrStateInvalid
	}
	return nil
}

// Apply resolves ext against current and executes the decision. Lookups and
// writes share one transaction; the session and events follow the commit.
func (s *Service) Apply(ctx context.Context, current *identity.Account, ext identity.ExternalIdentity) (*Result, error) {
	ext = ext.Normalize()

	var (
		decision identity.Decision
		account  *identity.Account
		link     *identity.Link
	)
	err := s.store.WithinTx(ctx, func(r store.Repos) error {
		var err error
		decision, err = identity.Resolve(ctx, current, ext, r)
		if err != nil {
			return err
		}

		switch decision.Kind {
		case identity.ActionAuthenticate:
			account = decision.Account
		case identity.ActionLinkAndAuthenticate, identity.ActionLink:
			account = decision.Account
			link = newLink(account, ext)
			return r.InsertLink(ctx, link)
		case identity.ActionCreateAndAuthenticate:
			account, err = r.CreateAccount(ctx, decision.Seed)
			if err != nil {
				return fmt.Errorf("create account: %w", err)
			}
			link = newLink(account, ext)
			return r.InsertLink(ctx, link)
		case identity.ActionRejectDuplicateLink:
			return &identity.DuplicateLinkError{
				Provider:  ext.ProviderSlug,
				AccountID: decision.Account.ID,
				Reason:    decision.Reason,
				Redirect:  s.redirectPath,
			}
		default:
			return fmt.Errorf("unknown action %s", decision.Kind)
		}
		return nil
	})
	if errors.Is(err, store.ErrConflict) {
		conflict := &identity.DuplicateLinkError{
			Provider: ext.ProviderSlug,
			Reason:   identity.ReasonWriteConflict,
			Redirect: s.redirectPath,
			Conflict: true,
		}
		if current != nil {
			conflict.AccountID = current.ID
		}
		s.logger.Info("identity link write conflict", logger.Provider(ext.ProviderSlug), zap.Error(err))
		return nil, conflict
	}
	if err != nil {
		return nil, err
	}

	result := &Result{Action: decision.Kind, Account: account, Link: link, Redirect: s.redirectPath}
	if link != nil {
		s.events.Emit(ctx, events.IdentityAttached(account, *link))
	}
	if decision.Kind.Authenticates() {
		sess, err := s.auth.Login(ctx, account)
		if err != nil {
			return nil, fmt.Errorf("start session: %w", err)
		}
		result.Session = &sess
		s.events.Emit(ctx, events.AccountAuthenticated(account, ext.ProviderSlug))
	}

	s.logger.Info("identity resolved",
		logger.Provider(ext.ProviderSlug),
		zap.String("action", decision.Kind.String()),
		zap.String("account_id", account.ID.String()),
	)
	return result, nil
}

func newLink(account *identity.Account, ext identity.ExternalIdentity) *identity.Link {
	return &identity.Link{
		ID:             uuid.New(),
		AccountID:      account.ID,
		ProviderSlug:   ext.ProviderSlug,
		ExternalUserID: ext.ExternalUserID,
		Email:          ext.Email,
		Profile:        identity.Attributes(ext.Attributes),
		LinkedAt:       time.Now().UTC(),
	}
}

// Detach removes account's link for provider. The account row is locked
// while the last-identity guard and the delete run.
func (s *Service) Detach(ctx context.Context, account *identity.Account, slug string) (*identity.Link, error) {
	if account == nil {
		return nil, identity.ErrAccountNotFound
	}
	p, err := s.registry.Resolve(slug)
	if err != nil {
		return nil, err
	}

	var (
		locked  *identity.Account
		removed identity.Link
	)
	err = s.store.WithinTx(ctx, func(r store.Repos) error {
		var err error
		locked, err = r.LockAccount(ctx, account.ID)
		if err != nil {
			return &identity.DetachFailedError{Provider: p.Slug, AccountID: account.ID, Cause: err}
		}
		links, err := r.ListLinks(ctx, account.ID)
		if err != nil {
			return &identity.DetachFailedError{Provider: p.Slug, AccountID: account.ID, Cause: err}
		}
		if err := identity.CheckDetach(locked, p.Slug, len(links)); err != nil {
			return err
		}

		found := false
		for _, l := range links {
			if l.ProviderSlug == p.Slug {
				removed, found = l, true
				break
			}
		}
		if !found {
			return &identity.DetachFailedError{Provider: p.Slug, AccountID: account.ID, Cause: identity.ErrLinkNotFound}
		}
		ok, err := r.DeleteLink(ctx, account.ID, p.Slug)
		if err != nil {
			return &identity.DetachFailedError{Provider: p.Slug, AccountID: account.ID, Cause: err}
		}
		if !ok {
			return &identity.DetachFailedError{Provider: p.Slug, AccountID: account.ID, Cause: identity.ErrLinkNotFound}
		}
		return nil
	})
	if err != nil {
		var last *identity.LastIdentityError
		var failed *identity.DetachFailedError
		if !errors.As(err, &last) && !errors.As(err, &failed) {
			err = &identity.DetachFailedError{Provider: p.Slug, AccountID: account.ID, Cause: err}
		}
		return nil, err
	}

	s.events.Emit(ctx, events.IdentityDetached(locked, removed))
	s.logger.Info("identity detached",
		logger.Provider(p.Slug),
		zap.String("account_id", account.ID.String()),
	)
	return &removed, nil
}

// Links lists the account's identities.
func (s *Service) Links(ctx context.Context, account *identity.Account) ([]identity.Link, error) {
	if account == nil {
		return nil, identity.ErrAccountNotFound
	}
	links, err := s.store.ListLinks(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return links, nil
}

// Providers lists the configured providers in slug order.
func (s *Service) Providers() []providers.Provider {
	return s.registry.All()
}
