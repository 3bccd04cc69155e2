package store

import (
	"context"
	"fmt"
	"time"

	"github.com/bengobox/social-auth/internal/identity"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// AuditEntry is one row of the audit trail.
type AuditEntry struct {
	ID         uuid.UUID           `db:"id"`
	AccountID  uuid.NullUUID       `db:"account_id"`
	Action     string              `db:"action"`
	Provider   string              `db:"provider_slug"`
	Context    identity.Attributes `db:"context"`
	OccurredAt time.Time           `db:"occurred_at"`
}

// RecordAudit appends an entry to the audit trail.
func (s *Store) RecordAudit(ctx context.Context, entry AuditEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO audit_logs (id, account_id, action, provider_slug, context, occurred_at) VALUES (?, ?, ?, ?, ?, ?)`),
		entry.ID, entry.AccountID, entry.Action, entry.Provider, entry.Context, entry.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// ListAudit returns the most recent entries for an account.
func (s *Store) ListAudit(ctx context.Context, accountID uuid.UUID, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	entries := []AuditEntry{}
	err := sqlx.SelectContext(ctx, s.db, &entries, s.db.Rebind(
		`SELECT id, account_id, action, provider_slug, context, occurred_at
		FROM audit_logs WHERE account_id = ? ORDER BY occurred_at DESC LIMIT ?`), accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return entries, nil
}
