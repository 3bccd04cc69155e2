package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/bengobox/social-auth/internal/database/dbtest"
	"github.com/bengobox/social-auth/internal/identity"
	"github.com/bengobox/social-auth/internal/providers"
	"github.com/bengobox/social-auth/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	return store.New(dbtest.Open(t))
}

func TestCreateAndFindAccount(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	created, err := s.CreateAccount(ctx, identity.AccountSeed{Email: " Alice@Example.com ", Name: "Alice"})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", created.Email)

	found, err := s.FindAccountByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "Alice", found.Name)

	missing, err := s.FindAccountByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = s.GetAccount(ctx, uuid.New())
	assert.ErrorIs(t, err, identity.ErrAccountNotFound)
}

func TestAccountsWithoutEmailDoNotCollide(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	a, err := s.CreateAccount(ctx, identity.AccountSeed{Name: "a"})
	require.NoError(t, err)
	b, err := s.CreateAccount(ctx, identity.AccountSeed{Name: "b"})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)

	got, err := s.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Email)
	assert.False(t, got.HasEmail())
}

func TestDuplicateEmailIsConflict(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.CreateAccount(ctx, identity.AccountSeed{Email: "dup@example.com"})
	require.NoError(t, err)
	_, err = s.CreateAccount(ctx, identity.AccountSeed{Email: "dup@example.com"})
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestLinkLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	account, err := s.CreateAccount(ctx, identity.AccountSeed{Email: "a@example.com"})
	require.NoError(t, err)

	link := &identity.Link{
		AccountID:      account.ID,
		ProviderSlug:   "github",
		ExternalUserID: "42",
		Email:          "a@example.com",
		Profile:        identity.Attributes{"login": "alice"},
	}
	require.NoError(t, s.InsertLink(ctx, link))

	owner, err := s.FindAccountByExternalID(ctx, "github", "42")
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, account.ID, owner.ID)

	attached, err := s.IsLinkedToProvider(ctx, account, "github")
	require.NoError(t, err)
	assert.True(t, attached)
	attached, err = s.IsLinkedToProvider(ctx, account, "google")
	require.NoError(t, err)
	assert.False(t, attached)

	links, err := s.ListLinks(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "alice", links[0].Profile["login"])

	removed, err := s.DeleteLink(ctx, account.ID, "github")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.DeleteLink(ctx, account.ID, "github")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestLinkUniquenessClosesRaces(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	first, err := s.CreateAccount(ctx, identity.AccountSeed{Name: "first"})
	require.NoError(t, err)
	second, err := s.CreateAccount(ctx, identity.AccountSeed{Name: "second"})
	require.NoError(t, err)

	require.NoError(t, s.WithinTx(ctx, func(r store.Repos) error {
		return r.InsertLink(ctx, &identity.Link{AccountID: first.ID, ProviderSlug: "github", ExternalUserID: "42"})
	}))

	// Same identity for another account.
	err = s.WithinTx(ctx, func(r store.Repos) error {
		return r.InsertLink(ctx, &identity.Link{AccountID: second.ID, ProviderSlug: "github", ExternalUserID: "42"})
	})
	assert.ErrorIs(t, err, store.ErrConflict)

	// Second identity of the same provider for one account.
	err = s.WithinTx(ctx, func(r store.Repos) error {
		return r.InsertLink(ctx, &identity.Link{AccountID: first.ID, ProviderSlug: "github", ExternalUserID: "43"})
	})
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	boom := errors.New("boom")

	var created *identity.Account
	err := s.WithinTx(ctx, func(r store.Repos) error {
		var err error
		created, err = r.CreateAccount(ctx, identity.AccountSeed{Email: "rollback@example.com"})
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetAccount(ctx, created.ID)
	assert.ErrorIs(t, err, identity.ErrAccountNotFound)
}

func TestDeletingAccountCascadesLinks(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	s := store.New(db)

	account, err := s.CreateAccount(ctx, identity.AccountSeed{Name: "x"})
	require.NoError(t, err)
	require.NoError(t, s.InsertLink(ctx, &identity.Link{AccountID: account.ID, ProviderSlug: "github", ExternalUserID: "1"}))

	_, err = db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, account.ID)
	require.NoError(t, err)

	owner, err := s.FindAccountByExternalID(ctx, "github", "1")
	require.NoError(t, err)
	assert.Nil(t, owner)
}

func TestProviderRecords(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.UpsertProvider(ctx, providers.Provider{
		Slug:       "github",
		Label:      "GitHub",
		Scopes:     []string{"read:org"},
		Parameters: map[string]string{"allow_signup": "false"},
	}))
	require.NoError(t, s.UpsertProvider(ctx, providers.Provider{Slug: "google", Label: "Google", Stateless: true}))
	require.NoError(t, s.UpsertProvider(ctx, providers.Provider{
		Slug:           "github",
		Label:          "GitHub Enterprise",
		Scopes:         []string{"read:user"},
		OverrideScopes: true,
	}))

	records, err := s.ListProviders(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "GitHub Enterprise", records[0].Label)
	assert.Equal(t, []string{"read:user"}, records[0].Scopes)
	assert.True(t, records[0].OverrideScopes)
	assert.Empty(t, records[0].Parameters)
	assert.True(t, records[1].Stateless)

	removed, err := s.DeleteProvider(ctx, "google")
	require.NoError(t, err)
	assert.True(t, removed)
}

func TestAuditTrail(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	accountID := uuid.New()

	require.NoError(t, s.RecordAudit(ctx, store.AuditEntry{
		AccountID: uuid.NullUUID{UUID: accountID, Valid: true},
		Action:    "identity_attached",
		Provider:  "github",
		Context:   identity.Attributes{"external_user_id": "42"},
	}))

	entries, err := s.ListAudit(ctx, accountID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "identity_attached", entries[0].Action)
	assert.Equal(t, "42", entries[0].Context["external_user_id"])
}
