package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/polyrabbit/crypto-tracker/api"
	"github.com/polyrabbit/crypto-tracker/event"
	"github.com/polyrabbit/crypto-tracker/http"
	"github.com/polyrabbit/crypto-tracker/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	calls    int
	me       *model.User
	meErr    error
	auth     *api.AuthResponse
	authErr  error
	lastReg  api.RegisterRequest
	lastAuth api.LoginRequest
}

func (b *fakeBackend) Login(ctx context.Context, req api.LoginRequest) (*api.AuthResponse, error) {
	b.calls++
	b.lastAuth = req
	return b.auth, b.authErr
}

func (b *fakeBackend) Register(ctx context.Context, req api.RegisterRequest) (*api.AuthResponse, error) {
	b.calls++
	b.lastReg = req
	return b.auth, b.authErr
}

func (b *fakeBackend) Me(ctx context.Context) (*model.User, error) {
	b.calls++
	return b.me, b.meErr
}

func alice() model.User {
	return model.User{ID: "u1", Username: "alice", Watchlist: []model.WatchItem{{CoinID: "eth", CoinName: "Ethereum"}}}
}

func isReady(s *Store) bool {
	select {
	case <-s.Ready():
		return true
	default:
		return false
	}
}

func TestStore_Restore(t *testing.T) {
	ctx := context.Background()

	t.Run("no token", func(t *testing.T) {
		backend := &fakeBackend{}
		s := NewStore(backend, NewMemoryTokenStore(""), nil)
		assert.False(t, isReady(s))
		assert.Nil(t, s.Restore(ctx))
		assert.True(t, isReady(s))
		assert.Equal(t, 0, backend.calls)
	})

	t.Run("valid token", func(t *testing.T) {
		user := alice()
		s := NewStore(&fakeBackend{me: &user}, NewMemoryTokenStore("jwt"), nil)
		sess := s.Restore(ctx)
		require.NotNil(t, sess)
		assert.Equal(t, "alice", sess.User.Username)
		assert.True(t, s.Authenticated())
		assert.True(t, s.IsMember("eth"))
	})

	t.Run("expired token is cleared without error", func(t *testing.T) {
		tokens := NewMemoryTokenStore("expired")
		s := NewStore(&fakeBackend{meErr: &http.ResponseError{StatusCode: 401, Body: []byte(`{"error":"Token expired"}`)}}, tokens, nil)
		assert.Nil(t, s.Restore(ctx))
		assert.Equal(t, "", tokens.Token())
		assert.False(t, s.Authenticated())
		assert.True(t, isReady(s))
	})
}

func TestStore_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("success persists token", func(t *testing.T) {
		tokens := NewMemoryTokenStore("")
		bus := event.NewBus()
		var published []*model.Session
		require.NoError(t, bus.SubscribeSync(event.TopicSession, func(s *model.Session) { published = append(published, s) }))
		s := NewStore(&fakeBackend{auth: &api.AuthResponse{Token: "jwt", User: alice()}}, tokens, bus)

		sess, err := s.Login(ctx, "alice@example.com", "hunter22")
		require.NoError(t, err)
		assert.Equal(t, "u1", sess.User.ID)
		assert.Equal(t, "jwt", tokens.Token())
		require.Len(t, published, 1)
		assert.Equal(t, "alice", published[0].User.Username)
	})

	t.Run("backend message surfaces", func(t *testing.T) {
		backend := &fakeBackend{authErr: &http.ResponseError{StatusCode: 400, Body: []byte(`{"error":"Invalid credentials"}`)}}
		s := NewStore(backend, NewMemoryTokenStore(""), nil)
		_, err := s.Login(ctx, "alice@example.com", "wrong-password")
		require.Error(t, err)
		assert.True(t, IsAuthError(err))
		assert.EqualError(t, err, "Invalid credentials")
		assert.False(t, s.Authenticated())
	})

	t.Run("generic fallback", func(t *testing.T) {
		s := NewStore(&fakeBackend{authErr: errors.New("dial tcp: connection refused")}, NewMemoryTokenStore(""), nil)
		_, err := s.Login(ctx, "alice@example.com", "hunter22")
		assert.EqualError(t, err, "Login failed")
	})

	t.Run("empty fields never reach backend", func(t *testing.T) {
		backend := &fakeBackend{}
		s := NewStore(backend, NewMemoryTokenStore(""), nil)
		_, err := s.Login(ctx, "", "x")
		assert.True(t, IsValidationError(err))
		_, err = s.Login(ctx, "alice@example.com", "")
		assert.True(t, IsValidationError(err))
		assert.Equal(t, 0, backend.calls)
	})
}

func TestStore_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("short username fails before network", func(t *testing.T) {
		backend := &fakeBackend{}
		s := NewStore(backend, NewMemoryTokenStore(""), nil)
		_, err := s.Register(ctx, Registration{Username: "jo", Email: "jo@example.com", Password: "abc", ConfirmPassword: "abc"})
		require.Error(t, err)
		assert.True(t, IsValidationError(err))
		assert.EqualError(t, err, "Username must be at least 3 characters")
		assert.Equal(t, 0, backend.calls)
	})

	t.Run("validation order", func(t *testing.T) {
		tests := []struct {
			reg   Registration
			field string
		}{
			{Registration{Username: "  jo  ", Email: "a@b.io", Password: "secret1", ConfirmPassword: "secret1"}, "username"},
			{Registration{Username: "alice", Email: "not-an-email", Password: "secret1", ConfirmPassword: "secret1"}, "email"},
			{Registration{Username: "alice", Email: "a@b.io", Password: "abc", ConfirmPassword: "abc"}, "password"},
			{Registration{Username: "alice", Email: "a@b.io", Password: "secret1", ConfirmPassword: "secret2"}, "confirmPassword"},
			{Registration{Username: "éé", Email: "a@b.io", Password: "secret1", ConfirmPassword: "secret1"}, "username"},
			{Registration{Username: "alice", Email: "a@b.io", Password: "ééééé", ConfirmPassword: "ééééé"}, "password"},
		}
		for _, tt := range tests {
			err := ValidateRegistration(tt.reg)
			var v *ValidationError
			require.True(t, errors.As(err, &v), "expected validation error for %+v", tt.reg)
			assert.Equal(t, tt.field, v.Field)
		}
		assert.NoError(t, ValidateRegistration(Registration{Username: "alice", Email: "a@b.io", Password: "secret1", ConfirmPassword: "secret1"}))
		assert.NoError(t, ValidateRegistration(Registration{Username: "zoë", Email: "a@b.io", Password: "pässwö", ConfirmPassword: "pässwö"}))
	})

	t.Run("success sends trimmed username", func(t *testing.T) {
		tokens := NewMemoryTokenStore("")
		backend := &fakeBackend{auth: &api.AuthResponse{Token: "jwt", User: model.User{ID: "u2", Username: "bob"}}}
		s := NewStore(backend, tokens, nil)
		sess, err := s.Register(ctx, Registration{Username: " bob ", Email: "bob@example.com", Password: "secret1", ConfirmPassword: "secret1"})
		require.NoError(t, err)
		assert.Equal(t, "bob", backend.lastReg.Username)
		assert.Equal(t, "u2", sess.User.ID)
		assert.Equal(t, "jwt", tokens.Token())
	})

	t.Run("registration fallback message", func(t *testing.T) {
		s := NewStore(&fakeBackend{authErr: &http.ResponseError{StatusCode: 500, Body: []byte("<html>")}}, NewMemoryTokenStore(""), nil)
		_, err := s.Register(ctx, Registration{Username: "bob", Email: "bob@example.com", Password: "secret1", ConfirmPassword: "secret1"})
		assert.EqualError(t, err, "Registration failed")
	})
}

func TestStore_Watchlist(t *testing.T) {
	ctx := context.Background()
	signedIn := func(t *testing.T) *Store {
		user := alice()
		s := NewStore(&fakeBackend{me: &user}, NewMemoryTokenStore("jwt"), nil)
		require.NotNil(t, s.Restore(ctx))
		return s
	}

	t.Run("add is idempotent", func(t *testing.T) {
		s := signedIn(t)
		s.AddToWatchlist("btc", "Bitcoin")
		s.AddToWatchlist("btc", "Bitcoin")
		count := 0
		for _, w := range s.Session().User.Watchlist {
			if w.CoinID == "btc" {
				count++
			}
		}
		assert.Equal(t, 1, count)
		assert.Len(t, s.Session().User.Watchlist, 2)
	})

	t.Run("remove non-member is a no-op", func(t *testing.T) {
		s := signedIn(t)
		before := s.Session()
		s.RemoveFromWatchlist("doge")
		assert.Equal(t, before, s.Session())
	})

	t.Run("remove member", func(t *testing.T) {
		s := signedIn(t)
		s.RemoveFromWatchlist("eth")
		assert.False(t, s.IsMember("eth"))
		assert.Empty(t, s.Session().User.Watchlist)
	})

	t.Run("signed out ignores edits", func(t *testing.T) {
		s := NewStore(&fakeBackend{}, NewMemoryTokenStore(""), nil)
		s.AddToWatchlist("btc", "Bitcoin")
		assert.Nil(t, s.Session())
	})

	t.Run("returned session is a copy", func(t *testing.T) {
		s := signedIn(t)
		sess := s.Session()
		sess.User.Watchlist = nil
		assert.True(t, s.IsMember("eth"))
	})

	t.Run("replace watchlist", func(t *testing.T) {
		s := signedIn(t)
		s.ReplaceWatchlist([]model.WatchItem{{CoinID: "btc"}, {CoinID: "btc"}, {CoinID: "sol"}})
		assert.Equal(t, []model.WatchItem{{CoinID: "btc"}, {CoinID: "sol"}}, s.Session().User.Watchlist)
	})

	t.Run("logout clears everything", func(t *testing.T) {
		tokens := NewMemoryTokenStore("jwt")
		user := alice()
		s := NewStore(&fakeBackend{me: &user}, tokens, nil)
		s.Restore(ctx)
		s.Logout()
		assert.False(t, s.Authenticated())
		assert.Equal(t, "", tokens.Token())
	})
}

func TestFileTokenStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.yml")

	t.Run("missing file means signed out", func(t *testing.T) {
		token, err := NewFileTokenStore(path).Get()
		require.NoError(t, err)
		assert.Equal(t, "", token)
	})

	t.Run("set survives reload", func(t *testing.T) {
		require.NoError(t, NewFileTokenStore(path).Set("jwt"))
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
		assert.Equal(t, "jwt", NewFileTokenStore(path).Token())
	})

	t.Run("remove", func(t *testing.T) {
		store := NewFileTokenStore(path)
		require.NoError(t, store.Remove())
		require.NoError(t, store.Remove())
		assert.Equal(t, "", NewFileTokenStore(path).Token())
	})

	t.Run("corrupt file", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.yml")
		require.NoError(t, os.WriteFile(bad, []byte("token: [unclosed"), 0o600))
		_, err := NewFileTokenStore(bad).Get()
		assert.Error(t, err)
	})
}
