package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bengobox/social-auth/internal/identity"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const accountColumns = `a.id, COALESCE(a.email, '') AS email, a.name, a.avatar_url, a.status, a.created_at, a.updated_at`

// FindAccountByEmail returns the account owning the email, or nil.
func (r repos) FindAccountByEmail(ctx context.Context, email string) (*identity.Account, error) {
	email = identity.NormalizeEmail(email)
	if email == "" {
		return nil, nil
	}
	return r.getAccount(ctx, `SELECT `+accountColumns+` FROM accounts a WHERE a.email = ?`, email)
}

// GetAccount loads an account by id.
func (r repos) GetAccount(ctx context.Context, id uuid.UUID) (*identity.Account, error) {
	account, err := r.getAccount(ctx, `SELECT `+accountColumns+` FROM accounts a WHERE a.id = ?`, id)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, identity.ErrAccountNotFound
	}
	return account, nil
}

// LockAccount loads an account and, on postgres, holds its row lock until
// the transaction ends so concurrent detaches serialise.
func (r repos) LockAccount(ctx context.Context, id uuid.UUID) (*identity.Account, error) {
	account, err := r.getAccount(ctx, `SELECT `+accountColumns+` FROM accounts a WHERE a.id = ?`+r.forUpdate(), id)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, identity.ErrAccountNotFound
	}
	return account, nil
}

// CreateAccount inserts an account seeded from an external identity.
func (r repos) CreateAccount(ctx context.Context, seed identity.AccountSeed) (*identity.Account, error) {
	now := r.now()
	account := &identity.Account{
		ID:        uuid.New(),
		Email:     identity.NormalizeEmail(seed.Email),
		Name:      seed.Name,
		AvatarURL: seed.AvatarURL,
		Status:    "active",
		CreatedAt: now,
		UpdatedAt: now,
	}
	email := sql.NullString{String: account.Email, Valid: account.Email != ""}

	_, err := r.q.ExecContext(ctx, r.rebind(
		`INSERT INTO accounts (id, email, name, avatar_url, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		account.ID, email, account.Name, account.AvatarURL, account.Status, account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return nil, classify(fmt.Errorf("insert account: %w", err))
	}
	return account, nil
}

func (r repos) getAccount(ctx context.Context, query string, args ...any) (*identity.Account, error) {
	var account identity.Account
	if err := sqlx.GetContext(ctx, r.q, &account, r.rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query account: %w", err)
	}
	return &account, nil
}
