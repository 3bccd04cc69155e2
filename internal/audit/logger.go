package audit

import (
	"context"

	"github.com/bengobox/social-auth/internal/events"
	"github.com/bengobox/social-auth/internal/identity"
	"github.com/bengobox/social-auth/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Recorder persists audit entries.
type Recorder interface {
	RecordAudit(ctx context.Context, entry store.AuditEntry) error
}

// Logger writes every identity event into the audit trail.
type Logger struct {
	recorder Recorder
	logger   *zap.Logger
}

// New constructs a Logger.
func New(recorder Recorder, logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{recorder: recorder, logger: logger}
}

// Emit persists the event, logging failures but not interrupting flows.
func (l *Logger) Emit(ctx context.Context, e events.Event) {
	if e.Kind == "" {
		return
	}
	entry := store.AuditEntry{
		AccountID:  uuid.NullUUID{UUID: e.AccountID, Valid: e.AccountID != uuid.Nil},
		Action:     string(e.Kind),
		Provider:   e.Provider,
		OccurredAt: e.OccurredAt,
		Context:    identity.Attributes{},
	}
	if e.Link != nil {
		entry.Context["external_user_id"] = e.Link.ExternalUserID
		if e.Link.Email != "" {
			entry.Context["email"] = e.Link.Email
		}
	}
	if err := l.recorder.RecordAudit(ctx, entry); err != nil {
		l.logger.Warn("failed to persist audit log", zap.Error(err), zap.String("action", entry.Action))
	}
}
