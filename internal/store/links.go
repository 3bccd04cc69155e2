package store

import (
	"context"
	"fmt"

	"github.com/bengobox/social-auth/internal/identity"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// FindAccountByExternalID returns the account linked to the identity, or nil.
func (r repos) FindAccountByExternalID(ctx context.Context, provider, externalID string) (*identity.Account, error) {
	return r.getAccount(ctx, `SELECT `+accountColumns+` FROM accounts a
		JOIN identity_links l ON l.account_id = a.id
		WHERE l.provider_slug = ? AND l.external_user_id = ?`, provider, externalID)
}

// IsLinkedToProvider reports whether the account already has a link for provider.
func (r repos) IsLinkedToProvider(ctx context.Context, account *identity.Account, provider string) (bool, error) {
	if account == nil {
		return false, nil
	}
	var count int
	err := sqlx.GetContext(ctx, r.q, &count, r.rebind(
		`SELECT COUNT(*) FROM identity_links WHERE account_id = ? AND provider_slug = ?`), account.ID, provider)
	if err != nil {
		return false, fmt.Errorf("count provider links: %w", err)
	}
	return count > 0, nil
}

// InsertLink persists a new link. Uniqueness violations are reported as ErrConflict.
func (r repos) InsertLink(ctx context.Context, link *identity.Link) error {
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	if link.LinkedAt.IsZero() {
		link.LinkedAt = r.now()
	}
	if link.Profile == nil {
		link.Profile = identity.Attributes{}
	}
	_, err := r.q.ExecContext(ctx, r.rebind(
		`INSERT INTO identity_links (id, account_id, provider_slug, external_user_id, email, profile, linked_at) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		link.ID, link.AccountID, link.ProviderSlug, link.ExternalUserID, link.Email, link.Profile, link.LinkedAt,
	)
	if err != nil {
		return classify(fmt.Errorf("insert identity link: %w", err))
	}
	return nil
}

// DeleteLink removes the account's link for provider and reports whether a row went away.
func (r repos) DeleteLink(ctx context.Context, accountID uuid.UUID, provider string) (bool, error) {
	res, err := r.q.ExecContext(ctx, r.rebind(
		`DELETE FROM identity_links WHERE account_id = ? AND provider_slug = ?`), accountID, provider)
	if err != nil {
		return false, fmt.Errorf("delete identity link: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete identity link: %w", err)
	}
	return affected > 0, nil
}

// ListLinks returns the account's identities, oldest first.
func (r repos) ListLinks(ctx context.Context, accountID uuid.UUID) ([]identity.Link, error) {
	links := []identity.Link{}
	err := sqlx.SelectContext(ctx, r.q, &links, r.rebind(
		`SELECT id, account_id, provider_slug, external_user_id, email, profile, linked_at
		FROM identity_links WHERE account_id = ? ORDER BY linked_at, provider_slug`), accountID)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return links, nil
}
