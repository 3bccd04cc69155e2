package providers

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/bengobox/social-auth/internal/identity"
	"go.uber.org/zap"
)

// Source loads provider records from durable storage.
type Source interface {
	ListProviders(ctx context.Context) ([]Provider, error)
}

// Cache keeps a serialised copy of the last loaded records.
type Cache interface {
	Load(ctx context.Context) ([]Provider, bool, error)
	Store(ctx context.Context, records []Provider) error
}

// Dependencies aggregates constructor inputs.
type Dependencies struct {
	Source Source
	Cache  Cache
	// DefaultScopes are the OAuth client's own scopes per slug; configured
	// scopes are merged with or replace them.
	DefaultScopes map[string][]string
	Logger        *zap.Logger
}

// Registry resolves provider slugs against the current snapshot. Reads are
// lock-free; Reload builds a new snapshot and swaps it in one step.
type Registry struct {
	source   Source
	cache    Cache
	defaults map[string][]string
	logger   *zap.Logger
	current  atomic.Pointer[Snapshot]
}

// NewRegistry constructs a registry holding an empty snapshot.
func NewRegistry(deps Dependencies) *Registry {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		source:   deps.Source,
		cache:    deps.Cache,
		defaults: deps.DefaultScopes,
		logger:   logger,
	}
	empty, _ := NewSnapshot(nil)
	r.current.Store(empty)
	return r
}

// Load populates the registry at process start, preferring the cache.
func (r *Registry) Load(ctx context.Context) error {
	if r.cache != nil {
		records, ok, err := r.cache.Load(ctx)
		if err != nil {
			r.logger.Warn("provider cache unavailable, loading from source", zap.Error(err))
		} else if ok {
			snapshot, err := NewSnapshot(records)
			if err == nil {
				r.current.Store(snapshot)
				r.logger.Info("providers loaded from cache", zap.Int("count", snapshot.Len()))
				return nil
			}
			r.logger.Warn("cached providers invalid, reloading", zap.Error(err))
		}
	}
	return r.Reload(ctx)
}

// Reload reads the source, refreshes the cache and swaps the snapshot.
// On any error the previous snapshot stays in place.
func (r *Registry) Reload(ctx context.Context) error {
	if r.source == nil {
		return fmt.Errorf("provider source not configured")
	}
	records, err := r.source.ListProviders(ctx)
	if err != nil {
		return fmt.Errorf("list providers: %w", err)
	}
	snapshot, err := NewSnapshot(records)
	if err != nil {
		return fmt.Errorf("validate providers: %w", err)
	}
	if r.cache != nil {
		if err := r.cache.Store(ctx, snapshot.All()); err != nil {
			r.logger.Warn("failed to cache providers", zap.Error(err))
		}
	}
	r.current.Store(snapshot)
	r.logger.Info("providers reloaded", zap.Int("count", snapshot.Len()))
	return nil
}

// Resolve returns the provider for slug or a *identity.ProviderNotFoundError.
func (r *Registry) Resolve(slug string) (Provider, error) {
	p, ok := r.current.Load().Get(slug)
	if !ok {
		return Provider{}, &identity.ProviderNotFoundError{Slug: slug}
	}
	return p, nil
}

// All lists the providers of the current snapshot.
func (r *Registry) All() []Provider {
	return r.current.Load().All()
}

// BuildAuthorizationRequest merges configured scopes with the client
// defaults. Override replaces the defaults; otherwise the configured scopes
// are appended. Providers without configured scopes use the defaults.
func (r *Registry) BuildAuthorizationRequest(p Provider) AuthorizationRequest {
	defaults := r.defaults[p.Slug]
	var scopes []string
	switch {
	case len(p.Scopes) == 0:
		scopes = mergeScopes(nil, defaults)
	case p.OverrideScopes:
		scopes = mergeScopes(nil, p.Scopes)
	default:
		scopes = mergeScopes(defaults, p.Scopes)
	}

	params := make(map[string]string, len(p.Parameters))
	for k, v := range p.Parameters {
		params[k] = v
	}
	return AuthorizationRequest{Scopes: scopes, Parameters: params}
}
