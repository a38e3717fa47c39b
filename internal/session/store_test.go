package session

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"casinoclient/internal/api"
	"casinoclient/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	token      string
	loginErr   error
	user       models.User
	profileErr error
	claimed    models.User
	profiles   int
}

func (f *fakeBackend) Login(ctx context.Context, creds models.Credentials) (string, error) {
	return f.token, f.loginErr
}

func (f *fakeBackend) Profile(ctx context.Context, token string) (models.User, error) {
	f.profiles++
	return f.user, f.profileErr
}

func (f *fakeBackend) ClaimDaily(ctx context.Context) (models.User, error) {
	return f.claimed, nil
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestStore_StartsUnknown(t *testing.T) {
	s := NewStore(&fakeBackend{}, nil)
	assert.Equal(t, StateUnknown, s.State())
	assert.Equal(t, "unknown", s.State().String())
}

func TestStore_Login(t *testing.T) {
	backend := &fakeBackend{token: "tok", user: models.User{ID: "1", Username: "alice", Balance: 1000}}
	tokens := NewMemoryTokenStore()
	s := NewStore(backend, tokens)

	var seen []Snapshot
	s.Subscribe(func(snap Snapshot) { seen = append(seen, snap) })

	require.NoError(t, s.Login(context.Background(), models.Credentials{Email: "a", Password: "b"}))

	assert.Equal(t, StateLoggedIn, s.State())
	assert.Equal(t, "tok", s.Token())
	assert.Equal(t, int64(1000), s.Balance())
	assert.Equal(t, "1", s.UserID())

	stored, _ := tokens.Load(context.Background())
	assert.Equal(t, "tok", stored)

	require.Len(t, seen, 1)
	assert.Equal(t, StateLoggedIn, seen[0].State)
}

func TestStore_LoginFailureMutatesNothing(t *testing.T) {
	t.Run("Rejected credentials", func(t *testing.T) {
		backend := &fakeBackend{loginErr: &api.Error{StatusCode: http.StatusUnauthorized}}
		s := NewStore(backend, nil)

		err := s.Login(context.Background(), models.Credentials{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrAuth)
		assert.True(t, api.IsUnauthorized(err))
		assert.Equal(t, StateUnknown, s.State())
		assert.Empty(t, s.Token())
	})

	t.Run("Profile fetch fails", func(t *testing.T) {
		backend := &fakeBackend{token: "tok", profileErr: errors.New("boom")}
		tokens := NewMemoryTokenStore()
		s := NewStore(backend, tokens)

		require.ErrorIs(t, s.Login(context.Background(), models.Credentials{}), ErrAuth)
		assert.Empty(t, s.Token())
		stored, _ := tokens.Load(context.Background())
		assert.Empty(t, stored, "token is not persisted on failure")
	})
}

func TestStore_LogoutIdempotent(t *testing.T) {
	backend := &fakeBackend{token: "tok", user: models.User{ID: "1"}}
	s := NewStore(backend, nil)
	require.NoError(t, s.Login(context.Background(), models.Credentials{}))

	notifications := 0
	s.Subscribe(func(Snapshot) { notifications++ })

	require.NoError(t, s.Logout(context.Background()))
	require.NoError(t, s.Logout(context.Background()))

	assert.Equal(t, StateLoggedOut, s.State())
	_, ok := s.User()
	assert.False(t, ok)
	assert.Equal(t, 1, notifications)
}

func TestStore_UpdateBalance(t *testing.T) {
	s := NewStore(&fakeBackend{}, nil)
	s.UpdateBalance(500)
	assert.Zero(t, s.Balance(), "no user loaded")

	backend := &fakeBackend{token: "tok", user: models.User{ID: "1", Username: "alice", Balance: 1000}}
	s = NewStore(backend, nil)
	require.NoError(t, s.Login(context.Background(), models.Credentials{}))

	var last Snapshot
	s.Subscribe(func(snap Snapshot) { last = snap })

	s.UpdateBalance(900)
	s.UpdateBalance(1200)

	assert.Equal(t, int64(1200), s.Balance())
	require.NotNil(t, last.User)
	assert.Equal(t, int64(1200), last.User.Balance)
	assert.Equal(t, "alice", last.User.Username, "only the balance changes")
}

func TestStore_UpdateUserDetails(t *testing.T) {
	name := "bob"

	s := NewStore(&fakeBackend{}, nil)
	called := false
	s.Subscribe(func(Snapshot) { called = true })
	s.UpdateUserDetails(models.UserPatch{Username: &name})
	assert.False(t, called, "no-op without a user")

	backend := &fakeBackend{token: "tok", user: models.User{ID: "1", Username: "alice", Balance: 10}}
	s = NewStore(backend, nil)
	require.NoError(t, s.Login(context.Background(), models.Credentials{}))
	s.UpdateUserDetails(models.UserPatch{Username: &name})

	user, ok := s.User()
	require.True(t, ok)
	assert.Equal(t, "bob", user.Username)
	assert.Equal(t, int64(10), user.Balance)
}

func TestStore_Unsubscribe(t *testing.T) {
	backend := &fakeBackend{token: "tok", user: models.User{ID: "1"}}
	s := NewStore(backend, nil)
	require.NoError(t, s.Login(context.Background(), models.Credentials{}))

	calls := 0
	unsubscribe := s.Subscribe(func(Snapshot) { calls++ })
	s.UpdateBalance(1)
	unsubscribe()
	s.UpdateBalance(2)

	assert.Equal(t, 1, calls)
}

func TestStore_ListenerMayReadStore(t *testing.T) {
	backend := &fakeBackend{token: "tok", user: models.User{ID: "1"}}
	s := NewStore(backend, nil)
	require.NoError(t, s.Login(context.Background(), models.Credentials{}))

	var observed int64
	s.Subscribe(func(Snapshot) { observed = s.Balance() })
	s.UpdateBalance(42)

	assert.Equal(t, int64(42), observed)
}

func TestStore_Hydrate(t *testing.T) {
	ctx := context.Background()

	t.Run("No stored token", func(t *testing.T) {
		backend := &fakeBackend{}
		s := NewStore(backend, nil)
		require.NoError(t, s.Hydrate(ctx))
		assert.Equal(t, StateLoggedOut, s.State())
		assert.Zero(t, backend.profiles)
	})

	t.Run("Valid token", func(t *testing.T) {
		tokens := NewMemoryTokenStore()
		token := signedToken(t, time.Now().Add(time.Hour))
		tokens.Save(ctx, token)

		s := NewStore(&fakeBackend{user: models.User{ID: "9", Balance: 300}}, tokens)
		require.NoError(t, s.Hydrate(ctx))
		assert.Equal(t, StateLoggedIn, s.State())
		assert.Equal(t, token, s.Token())
		assert.Equal(t, int64(300), s.Balance())
	})

	t.Run("Expired token skips the backend", func(t *testing.T) {
		tokens := NewMemoryTokenStore()
		tokens.Save(ctx, signedToken(t, time.Now().Add(-time.Minute)))

		backend := &fakeBackend{}
		s := NewStore(backend, tokens)
		require.NoError(t, s.Hydrate(ctx))
		assert.Equal(t, StateLoggedOut, s.State())
		assert.Zero(t, backend.profiles)
		stored, _ := tokens.Load(ctx)
		assert.Empty(t, stored)
	})

	t.Run("Rejected token is discarded", func(t *testing.T) {
		tokens := NewMemoryTokenStore()
		tokens.Save(ctx, "opaque-token")

		s := NewStore(&fakeBackend{profileErr: &api.Error{StatusCode: http.StatusUnauthorized}}, tokens)
		require.Error(t, s.Hydrate(ctx))
		assert.Equal(t, StateLoggedOut, s.State())
		stored, _ := tokens.Load(ctx)
		assert.Empty(t, stored)
	})

	t.Run("Transient failure keeps the token", func(t *testing.T) {
		tokens := NewMemoryTokenStore()
		tokens.Save(ctx, "opaque-token")

		s := NewStore(&fakeBackend{profileErr: errors.New("connection refused")}, tokens)
		require.Error(t, s.Hydrate(ctx))
		assert.Equal(t, StateLoggedOut, s.State())
		stored, _ := tokens.Load(ctx)
		assert.Equal(t, "opaque-token", stored)
	})
}

func TestStore_ClaimDaily(t *testing.T) {
	backend := &fakeBackend{
		token:   "tok",
		user:    models.User{ID: "1", Balance: 100, CanClaimDaily: true},
		claimed: models.User{ID: "1", Balance: 600, CanClaimDaily: false},
	}
	s := NewStore(backend, nil)
	assert.ErrorIs(t, s.ClaimDaily(context.Background()), ErrNotLoggedIn)

	require.NoError(t, s.Login(context.Background(), models.Credentials{}))
	require.NoError(t, s.ClaimDaily(context.Background()))

	user, _ := s.User()
	assert.Equal(t, int64(600), user.Balance)
	assert.False(t, user.CanClaimDaily)
}
