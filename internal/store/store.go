// Package store persists accounts, identity links, provider records and the
// audit trail with sqlx over postgres or sqlite.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bengobox/social-auth/internal/database"
	"github.com/bengobox/social-auth/internal/identity"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

// ErrConflict reports a unique constraint violation.
var ErrConflict = errors.New("unique constraint violated")

// Repos is the transactional view used by the linkage flow. Every lookup
// made through it sees the same snapshot as the writes that follow.
type Repos interface {
	identity.Lookup
	GetAccount(ctx context.Context, id uuid.UUID) (*identity.Account, error)
	LockAccount(ctx context.Context, id uuid.UUID) (*identity.Account, error)
	CreateAccount(ctx context.Context, seed identity.AccountSeed) (*identity.Account, error)
	InsertLink(ctx context.Context, link *identity.Link) error
	DeleteLink(ctx context.Context, accountID uuid.UUID, provider string) (bool, error)
	ListLinks(ctx context.Context, accountID uuid.UUID) ([]identity.Link, error)
}

// Store is the sqlx-backed persistence layer.
type Store struct {
	repos
	db *sqlx.DB
}

// New wraps an open database.
func New(db *sqlx.DB) *Store {
	return &Store{repos: newRepos(db), db: db}
}

// WithinTx runs fn inside a transaction, committing only when fn succeeds.
func (s *Store) WithinTx(ctx context.Context, fn func(Repos) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(newRepos(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return classify(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

type queryer interface {
	sqlx.ExtContext
}

type repos struct {
	q   queryer
	now func() time.Time
}

func newRepos(q queryer) repos {
	return repos{q: q, now: func() time.Time { return time.Now().UTC() }}
}

func (r repos) rebind(query string) string {
	return r.q.Rebind(query)
}

func (r repos) forUpdate() string {
	if r.q.DriverName() == database.DriverPostgres {
		return " FOR UPDATE"
	}
	return ""
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
