package events

import (
	"context"
	"testing"

	"github.com/bengobox/social-auth/internal/identity"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recorder struct {
	got []Event
}

func (r *recorder) Emit(_ context.Context, e Event) {
	r.got = append(r.got, e)
}

func TestConstructorsCarryLinkAndProvider(t *testing.T) {
	account := &identity.Account{ID: uuid.New()}
	link := identity.Link{AccountID: account.ID, ProviderSlug: "github", ExternalUserID: "42"}

	attached := IdentityAttached(account, link)
	assert.Equal(t, KindIdentityAttached, attached.Kind)
	assert.Equal(t, "github", attached.Provider)
	require.NotNil(t, attached.Link)
	assert.Equal(t, "42", attached.Link.ExternalUserID)

	detached := IdentityDetached(account, link)
	assert.Equal(t, KindIdentityDetached, detached.Kind)

	auth := AccountAuthenticated(account, "google")
	assert.Equal(t, account.ID, auth.AccountID)
	assert.Nil(t, auth.Link)
	assert.False(t, auth.OccurredAt.IsZero())
}

func TestMultiFansOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	Multi{a, nil, b}.Emit(context.Background(), Event{Kind: KindIdentityAttached})
	assert.Len(t, a.got, 1)
	assert.Len(t, b.got, 1)
}

func TestMetricsSinkCountsByKindAndProvider(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewMetricsSink(reg)
	require.NoError(t, err)

	sink.Emit(context.Background(), Event{Kind: KindAccountAuthenticated, Provider: "github"})
	sink.Emit(context.Background(), Event{Kind: KindAccountAuthenticated, Provider: "github"})
	sink.Emit(context.Background(), Event{Kind: KindIdentityDetached, Provider: "google"})

	assert.Equal(t, 2.0, testutil.ToFloat64(sink.Counter().WithLabelValues("account_authenticated", "github")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.Counter().WithLabelValues("identity_detached", "google")))

	_, err = NewMetricsSink(reg)
	assert.Error(t, err)
}

func TestLogSinkWritesStructuredEntry(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core))

	sink.Emit(context.Background(), Event{
		Kind:     KindIdentityAttached,
		Provider: "github",
		Link:     &identity.Link{ExternalUserID: "42"},
	})

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "identity_attached", fields["event"])
	assert.Equal(t, "github", fields["provider"])
	assert.Equal(t, "42", fields["external_user_id"])
}
