// Package events defines the domain events emitted after a linkage
// transaction commits and the sinks that consume them.
package events

import (
	"context"
	"time"

	"github.com/bengobox/social-auth/internal/identity"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Kind names an event variant.
type Kind string

const (
	KindAccountAuthenticated Kind = "account_authenticated"
	KindIdentityAttached     Kind = "identity_attached"
	KindIdentityDetached     Kind = "identity_detached"
)

// Event is one domain notification. Link is set for attach and detach.
type Event struct {
	Kind       Kind
	AccountID  uuid.UUID
	Provider   string
	Link       *identity.Link
	OccurredAt time.Time
}

// AccountAuthenticated reports a session started for account via provider.
func AccountAuthenticated(account *identity.Account, provider string) Event {
	return Event{Kind: KindAccountAuthenticated, AccountID: account.ID, Provider: provider, OccurredAt: time.Now().UTC()}
}

// IdentityAttached reports a new link.
func IdentityAttached(account *identity.Account, link identity.Link) Event {
	return Event{Kind: KindIdentityAttached, AccountID: account.ID, Provider: link.ProviderSlug, Link: &link, OccurredAt: time.Now().UTC()}
}

// IdentityDetached reports a removed link.
func IdentityDetached(account *identity.Account, link identity.Link) Event {
	return Event{Kind: KindIdentityDetached, AccountID: account.ID, Provider: link.ProviderSlug, Link: &link, OccurredAt: time.Now().UTC()}
}

// Sink consumes events. Emit must not fail the caller; sinks log their own
// errors.
type Sink interface {
	Emit(ctx context.Context, e Event)
}

// Multi fans an event out to every sink in order.
type Multi []Sink

func (m Multi) Emit(ctx context.Context, e Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, e)
		}
	}
}

// LogSink writes events to a zap logger.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink constructs a LogSink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(_ context.Context, e Event) {
	fields := []zap.Field{
		zap.String("event", string(e.Kind)),
		zap.String("account_id", e.AccountID.String()),
		zap.String("provider", e.Provider),
	}
	if e.Link != nil {
		fields = append(fields, zap.String("external_user_id", e.Link.ExternalUserID))
	}
	s.logger.Info("identity event", fields...)
}
