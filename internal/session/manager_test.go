package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serhatkrkmz54/eklinik-v2/internal/api"
)

func signedToken(t *testing.T, subject string, expiresAt time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func fileManager(t *testing.T, now time.Time) (*Manager, *FileStore) {
	t.Helper()
	store := NewFileStore(filepath.Join(t.TempDir(), "token"))
	m := NewManager(store, nil, WithClock(func() time.Time { return now }))
	return m, store
}

func TestRestoreWithoutStoredToken(t *testing.T) {
	m, _ := fileManager(t, time.Now())
	require.Equal(t, StateRestoring, m.State())

	state := m.Restore(context.Background())
	assert.Equal(t, StateUnauthenticated, state)

	_, ok := m.Token()
	assert.False(t, ok)
}

func TestRestoreWithValidToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m, store := fileManager(t, now)

	token := signedToken(t, "patient-42", now.Add(2*time.Hour))
	require.NoError(t, store.Save(context.Background(), token))

	state := m.Restore(context.Background())
	assert.Equal(t, StateAuthenticated, state)

	id, ok := m.Identity()
	require.True(t, ok)
	assert.Equal(t, "patient-42", id.SubjectID)

	got, ok := m.Token()
	require.True(t, ok)
	assert.Equal(t, token, got)
}

func TestRestoreWithExpiredTokenClearsStorage(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m, store := fileManager(t, now)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, signedToken(t, "patient-42", now.Add(-time.Minute))))

	state := m.Restore(ctx)
	assert.Equal(t, StateUnauthenticated, state)

	stored, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored, "expired credential must be erased from storage")
}

func TestRestoreWithMalformedTokenFailsSoft(t *testing.T) {
	m, store := fileManager(t, time.Now())

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "not-a-jwt"))

	state := m.Restore(ctx)
	assert.Equal(t, StateUnauthenticated, state)

	stored, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestLoginPersistsAtomically(t *testing.T) {
	now := time.Now()
	m, store := fileManager(t, now)
	ctx := context.Background()

	token := signedToken(t, "patient-7", now.Add(time.Hour))
	require.NoError(t, m.Login(ctx, token))

	assert.Equal(t, StateAuthenticated, m.State())

	stored, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, token, stored, "persisted token and in-memory state must agree")
}

func TestLoginRejectsMalformedToken(t *testing.T) {
	m, _ := fileManager(t, time.Now())

	err := m.Login(context.Background(), "garbage")
	require.Error(t, err)
	assert.Equal(t, StateRestoring, m.State(), "failed login must not change state")
}

func TestLogoutErasesCredential(t *testing.T) {
	now := time.Now()
	m, store := fileManager(t, now)
	ctx := context.Background()

	require.NoError(t, m.Login(ctx, signedToken(t, "p", now.Add(time.Hour))))
	require.NoError(t, m.Logout(ctx))

	assert.Equal(t, StateUnauthenticated, m.State())
	stored, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestSubscribeSeesTransitions(t *testing.T) {
	now := time.Now()
	m, _ := fileManager(t, now)
	ctx := context.Background()

	var seen []State
	unsubscribe := m.Subscribe(func(s State) { seen = append(seen, s) })

	require.NoError(t, m.Login(ctx, signedToken(t, "p", now.Add(time.Hour))))
	m.Invalidate()

	unsubscribe()
	require.NoError(t, m.Login(ctx, signedToken(t, "p", now.Add(time.Hour))))

	assert.Equal(t, []State{StateAuthenticated, StateUnauthenticated}, seen)
}

type fakeProfileAPI struct {
	err   error
	calls int
}

func (f *fakeProfileAPI) Me(context.Context) (*api.Profile, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &api.Profile{FirstName: "Ayşe"}, nil
}

func TestVerifyInvalidatesOnAuthFailure(t *testing.T) {
	now := time.Now()
	m, store := fileManager(t, now)
	ctx := context.Background()

	require.NoError(t, m.Login(ctx, signedToken(t, "p", now.Add(time.Hour))))

	client := &fakeProfileAPI{err: &api.Error{Kind: api.KindAuth, StatusCode: 401}}
	err := m.Verify(ctx, client)
	require.Error(t, err)

	assert.Equal(t, StateUnauthenticated, m.State())
	stored, loadErr := store.Load(ctx)
	require.NoError(t, loadErr)
	assert.Empty(t, stored, "rejected credential must be erased from storage")
}

func TestVerifyNetworkFailureLeavesSessionUntouched(t *testing.T) {
	now := time.Now()
	m, store := fileManager(t, now)
	ctx := context.Background()

	token := signedToken(t, "p", now.Add(time.Hour))
	require.NoError(t, m.Login(ctx, token))

	client := &fakeProfileAPI{err: &api.Error{Kind: api.KindNetwork}}
	err := m.Verify(ctx, client)
	require.Error(t, err)

	assert.Equal(t, StateAuthenticated, m.State(), "only an auth failure may drop the session")
	stored, loadErr := store.Load(ctx)
	require.NoError(t, loadErr)
	assert.Equal(t, token, stored)
}

func TestVerifySkipsWhenUnauthenticated(t *testing.T) {
	m, _ := fileManager(t, time.Now())
	m.Restore(context.Background())

	client := &fakeProfileAPI{}
	require.NoError(t, m.Verify(context.Background(), client))
	assert.Zero(t, client.calls, "no ping without a credential to verify")
}

func TestInvalidateIsIdempotent(t *testing.T) {
	now := time.Now()
	m, _ := fileManager(t, now)
	ctx := context.Background()

	require.NoError(t, m.Login(ctx, signedToken(t, "p", now.Add(time.Hour))))

	var transitions int
	m.Subscribe(func(State) { transitions++ })

	m.Invalidate()
	m.Invalidate()

	assert.Equal(t, StateUnauthenticated, m.State())
	assert.Equal(t, 1, transitions, "second invalidate must not re-notify")
}
