// Package providers holds the configured external identity providers as an
// immutable snapshot that is swapped atomically on reload.
package providers

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Provider is one configured external identity provider.
type Provider struct {
	Slug           string            `json:"slug" db:"slug"`
	Label          string            `json:"label" db:"label"`
	Scopes         []string          `json:"scopes,omitempty"`
	OverrideScopes bool              `json:"override_scopes" db:"override_scopes"`
	Parameters     map[string]string `json:"parameters,omitempty"`
	Stateless      bool              `json:"stateless" db:"stateless"`
}

// AuthorizationRequest is what the OAuth client needs to build a redirect.
type AuthorizationRequest struct {
	Scopes     []string
	Parameters map[string]string
}

func (p Provider) normalize() (Provider, error) {
	p.Slug = strings.TrimSpace(strings.ToLower(p.Slug))
	if p.Slug == "" {
		return Provider{}, fmt.Errorf("provider slug is required")
	}
	if !slugPattern.MatchString(p.Slug) {
		return Provider{}, fmt.Errorf("provider slug %q is invalid", p.Slug)
	}
	p.Label = strings.TrimSpace(p.Label)
	if p.Label == "" {
		p.Label = p.Slug
	}
	p.Scopes = mergeScopes(nil, p.Scopes)

	params := make(map[string]string, len(p.Parameters))
	for key, value := range p.Parameters {
		key = strings.TrimSpace(key)
		if key == "" {
			return Provider{}, fmt.Errorf("provider %q has a parameter with an empty name", p.Slug)
		}
		params[key] = value
	}
	p.Parameters = params
	return p, nil
}

func (p Provider) clone() Provider {
	out := p
	out.Scopes = append([]string(nil), p.Scopes...)
	out.Parameters = make(map[string]string, len(p.Parameters))
	for k, v := range p.Parameters {
		out.Parameters[k] = v
	}
	return out
}

// Snapshot is an immutable, validated set of providers.
type Snapshot struct {
	bySlug map[string]Provider
	order  []string
}

// NewSnapshot validates the records and builds a snapshot.
func NewSnapshot(records []Provider) (*Snapshot, error) {
	s := &Snapshot{bySlug: make(map[string]Provider, len(records))}
	for _, record := range records {
		p, err := record.normalize()
		if err != nil {
			return nil, err
		}
		if _, exists := s.bySlug[p.Slug]; exists {
			return nil, fmt.Errorf("provider slug %q is duplicated", p.Slug)
		}
		s.bySlug[p.Slug] = p
		s.order = append(s.order, p.Slug)
	}
	sort.Strings(s.order)
	return s, nil
}

// Get returns a copy of the provider so callers cannot mutate the snapshot.
func (s *Snapshot) Get(slug string) (Provider, bool) {
	p, ok := s.bySlug[strings.TrimSpace(strings.ToLower(slug))]
	if !ok {
		return Provider{}, false
	}
	return p.clone(), true
}

// All returns copies of every provider ordered by slug.
func (s *Snapshot) All() []Provider {
	out := make([]Provider, 0, len(s.order))
	for _, slug := range s.order {
		out = append(out, s.bySlug[slug].clone())
	}
	return out
}

// Len returns the number of providers.
func (s *Snapshot) Len() int { return len(s.order) }

func mergeScopes(base []string, extra []string) []string {
	out := make([]string, 0, len(base)+len(extra))
	seen := make(map[string]struct{}, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, scope := range list {
			scope = strings.TrimSpace(scope)
			if scope == "" {
				continue
			}
			if _, dup := seen[scope]; dup {
				continue
			}
			seen[scope] = struct{}{}
			out = append(out, scope)
		}
	}
	return out
}

// Validate normalises a single record the way a snapshot load would.
func Validate(p Provider) (Provider, error) {
	return p.normalize()
}
