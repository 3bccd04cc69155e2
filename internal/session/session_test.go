package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bengobox/social-auth/internal/identity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
}

func newMemoryStore() *memoryStore {
	return &memoryStore{sessions: map[string]Session{}}
}

func (m *memoryStore) Create(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *memoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

type accountMap map[uuid.UUID]*identity.Account

func (a accountMap) GetAccount(_ context.Context, id uuid.UUID) (*identity.Account, error) {
	if acc, ok := a[id]; ok {
		return acc, nil
	}
	return nil, identity.ErrAccountNotFound
}

func TestLoginAndCurrent(t *testing.T) {
	ctx := context.Background()
	account := &identity.Account{ID: uuid.New(), Email: "a@example.com"}
	store := newMemoryStore()
	m := NewManager(store, accountMap{account.ID: account}, time.Hour, nil)

	s, err := m.Login(ctx, account)
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, account.ID, s.AccountID)

	current, err := m.Current(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, account.ID, current.ID)

	require.NoError(t, m.Logout(ctx, s.ID))
	current, err = m.Current(ctx, s.ID)
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestCurrentDropsExpiredSessions(t *testing.T) {
	ctx := context.Background()
	account := &identity.Account{ID: uuid.New()}
	store := newMemoryStore()
	m := NewManager(store, accountMap{account.ID: account}, time.Minute, nil)

	s, err := m.Login(ctx, account)
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	current, err := m.Current(ctx, s.ID)
	require.NoError(t, err)
	assert.Nil(t, current)
	assert.Empty(t, store.sessions)
}

func TestCurrentDropsSessionsOfDeletedAccounts(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	m := NewManager(store, accountMap{}, time.Hour, nil)

	s, err := m.Login(ctx, &identity.Account{ID: uuid.New()})
	require.NoError(t, err)

	current, err := m.Current(ctx, s.ID)
	require.NoError(t, err)
	assert.Nil(t, current)
	assert.Empty(t, store.sessions)
}

func TestCurrentWithoutID(t *testing.T) {
	m := NewManager(newMemoryStore(), accountMap{}, time.Hour, nil)
	current, err := m.Current(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestCookieRoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	SetCookie(rec, Session{ID: "abc", ExpiresAt: time.Now().Add(time.Hour)}, CookieOptions{Secure: true})

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	assert.Equal(t, "abc", IDFromRequest(req))
	assert.Empty(t, IDFromRequest(httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestGenerateIDIsUnique(t *testing.T) {
	a, err := GenerateID()
	require.NoError(t, err)
	b, err := GenerateID()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 43)
}
