package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bengobox/social-auth/internal/providers"
	"github.com/jmoiron/sqlx"
)

type providerRow struct {
	Slug           string `db:"slug"`
	Label          string `db:"label"`
	Scopes         []byte `db:"scopes"`
	OverrideScopes bool   `db:"override_scopes"`
	Parameters     []byte `db:"parameters"`
	Stateless      bool   `db:"stateless"`
}

func (row providerRow) toProvider() (providers.Provider, error) {
	p := providers.Provider{
		Slug:           row.Slug,
		Label:          row.Label,
		OverrideScopes: row.OverrideScopes,
		Stateless:      row.Stateless,
	}
	if len(row.Scopes) > 0 {
		if err := json.Unmarshal(row.Scopes, &p.Scopes); err != nil {
			return providers.Provider{}, fmt.Errorf("decode scopes for %s: %w", row.Slug, err)
		}
	}
	if len(row.Parameters) > 0 {
		if err := json.Unmarshal(row.Parameters, &p.Parameters); err != nil {
			return providers.Provider{}, fmt.Errorf("decode parameters for %s: %w", row.Slug, err)
		}
	}
	return p, nil
}

// ListProviders returns every configured provider ordered by slug.
func (s *Store) ListProviders(ctx context.Context) ([]providers.Provider, error) {
	var rows []providerRow
	err := sqlx.SelectContext(ctx, s.db, &rows,
		`SELECT slug, label, COALESCE(scopes, '[]') AS scopes, override_scopes, COALESCE(parameters, '{}') AS parameters, stateless
		FROM social_providers ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	out := make([]providers.Provider, 0, len(rows))
	for _, row := range rows {
		p, err := row.toProvider()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// UpsertProvider creates or replaces a provider record.
func (s *Store) UpsertProvider(ctx context.Context, p providers.Provider) error {
	scopes := p.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	params := p.Parameters
	if params == nil {
		params = map[string]string{}
	}
	rawScopes, err := json.Marshal(scopes)
	if err != nil {
		return fmt.Errorf("encode scopes: %w", err)
	}
	rawParams, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode parameters: %w", err)
	}
	now := s.now()
	_, err = s.db.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO social_providers (slug, label, scopes, override_scopes, parameters, stateless, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (slug) DO UPDATE SET
			label = excluded.label,
			scopes = excluded.scopes,
			override_scopes = excluded.override_scopes,
			parameters = excluded.parameters,
			stateless = excluded.stateless,
			updated_at = excluded.updated_at`),
		p.Slug, p.Label, string(rawScopes), p.OverrideScopes, string(rawParams), p.Stateless, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert provider %s: %w", p.Slug, err)
	}
	return nil
}

// DeleteProvider removes a provider record and reports whether it existed.
func (s *Store) DeleteProvider(ctx context.Context, slug string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM social_providers WHERE slug = ?`), slug)
	if err != nil {
		return false, fmt.Errorf("delete provider %s: %w", slug, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete provider %s: %w", slug, err)
	}
	return affected > 0, nil
}
