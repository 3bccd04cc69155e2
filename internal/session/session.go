// Package session keeps login sessions in Redis and resolves them back to
// accounts.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/bengobox/social-auth/internal/identity"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Session binds an opaque id to an account. No provider tokens are kept.
type Session struct {
	ID        string    `json:"id"`
	AccountID uuid.UUID `json:"account_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store persists sessions.
type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

// AccountLoader resolves a session's account.
type AccountLoader interface {
	GetAccount(ctx context.Context, id uuid.UUID) (*identity.Account, error)
}

// GenerateID returns a 256-bit URL-safe session id.
func GenerateID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("session: generate id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Manager logs accounts in and out.
type Manager struct {
	store    Store
	accounts AccountLoader
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewManager constructs a Manager.
func NewManager(store Store, accounts AccountLoader, ttl time.Duration, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:    store,
		accounts: accounts,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// Login starts a new session for account.
func (m *Manager) Login(ctx context.Context, account *identity.Account) (Session, error) {
	if account == nil {
		return Session{}, identity.ErrAccountNotFound
	}
	id, err := GenerateID()
	if err != nil {
		return Session{}, err
	}
	now := m.now().UTC()
	s := Session{
		ID:        id,
		AccountID: account.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.Create(ctx, s); err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	return s, nil
}

// Current returns the account behind a session id, or nil when the session
// is missing, expired or points at a deleted account.
func (m *Manager) Current(ctx context.Context, id string) (*identity.Account, error) {
	if id == "" {
		return nil, nil
	}
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if s == nil {
		return nil, nil
	}
	if m.now().After(s.ExpiresAt) {
		_ = m.store.Delete(ctx, id)
		return nil, nil
	}
	account, err := m.accounts.GetAccount(ctx, s.AccountID)
	if errors.Is(err, identity.ErrAccountNotFound) {
		m.logger.Info("session account gone", zap.String("account_id", s.AccountID.String()))
		_ = m.store.Delete(ctx, id)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session account: %w", err)
	}
	return account, nil
}

// Logout ends the session.
func (m *Manager) Logout(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
