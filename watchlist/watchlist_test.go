package watchlist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/polyrabbit/crypto-tracker/api"
	"github.com/polyrabbit/crypto-tracker/http"
	"github.com/polyrabbit/crypto-tracker/model"
	"github.com/polyrabbit/crypto-tracker/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func price(v float64) *float64 { return &v }

func snapshot() model.Snapshot {
	return model.NewSnapshot([]model.Asset{
		{ID: "btc", Name: "Bitcoin", Symbol: "btc", CurrentPrice: price(65000)},
		{ID: "eth", Name: "Ethereum", Symbol: "eth", CurrentPrice: price(3200)},
		{ID: "sol", Name: "Solana", Symbol: "sol", CurrentPrice: price(150)},
	}, time.Time{}, 1)
}

func sessionWith(ids ...string) *model.Session {
	sess := &model.Session{User: model.User{ID: "u1"}}
	for _, id := range ids {
		sess.User.Watchlist = append(sess.User.Watchlist, model.WatchItem{CoinID: id})
	}
	return sess
}

func ids(assets []model.Asset) []string {
	out := make([]string, 0, len(assets))
	for _, a := range assets {
		out = append(out, a.ID)
	}
	return out
}

func TestDerive(t *testing.T) {
	t.Run("members only", func(t *testing.T) {
		snap := model.NewSnapshot([]model.Asset{
			{ID: "btc", CurrentPrice: price(65000)},
			{ID: "eth", CurrentPrice: price(3200)},
		}, time.Time{}, 1)
		view := Derive(snap, sessionWith("eth"))
		assert.True(t, view.Authenticated)
		require.Len(t, view.Assets, 1)
		assert.Equal(t, "eth", view.Assets[0].ID)
		assert.Equal(t, 3200.0, *view.Assets[0].CurrentPrice)
	})

	t.Run("snapshot order wins over membership order", func(t *testing.T) {
		view := Derive(snapshot(), sessionWith("sol", "btc"))
		assert.Equal(t, []string{"btc", "sol"}, ids(view.Assets))
	})

	t.Run("signed out is not an empty watchlist", func(t *testing.T) {
		assert.False(t, Derive(snapshot(), nil).Authenticated)
		view := Derive(snapshot(), sessionWith())
		assert.True(t, view.Authenticated)
		assert.Empty(t, view.Assets)
	})

	t.Run("members absent from the snapshot", func(t *testing.T) {
		sess := sessionWith("eth", "doge")
		view := Derive(snapshot(), sess)
		assert.Equal(t, []string{"eth"}, ids(view.Assets))
		assert.Equal(t, []model.WatchItem{{CoinID: "doge"}}, view.Missing(sess))
	})
}

func TestFilter(t *testing.T) {
	assets := snapshot().Assets
	assert.Equal(t, []string{"btc"}, ids(Filter(assets, "BIT")))
	assert.Equal(t, []string{"sol"}, ids(Filter(assets, "SoL")))
	assert.Equal(t, []string{"btc", "eth", "sol"}, ids(Filter(assets, "  ")))
	assert.Empty(t, Filter(assets, "doge"))
}

type fakeBackend struct {
	addErr    error
	removeErr error
	list      []model.Asset
	added     []string
	removed   []string
}

func (b *fakeBackend) AddToWatchlist(ctx context.Context, coinID, coinName string) error {
	b.added = append(b.added, coinID)
	return b.addErr
}

func (b *fakeBackend) RemoveFromWatchlist(ctx context.Context, coinID string) error {
	b.removed = append(b.removed, coinID)
	return b.removeErr
}

func (b *fakeBackend) Watchlist(ctx context.Context) ([]model.Asset, error) {
	return b.list, nil
}

type authBackend struct{ user model.User }

func (b authBackend) Login(context.Context, api.LoginRequest) (*api.AuthResponse, error) {
	return nil, errors.New("not used")
}

func (b authBackend) Register(context.Context, api.RegisterRequest) (*api.AuthResponse, error) {
	return nil, errors.New("not used")
}

func (b authBackend) Me(context.Context) (*model.User, error) {
	user := b.user
	return &user, nil
}

func signedIn(t *testing.T, ids ...string) *session.Store {
	user := model.User{ID: "u1", Username: "alice"}
	for _, id := range ids {
		user.Watchlist = append(user.Watchlist, model.WatchItem{CoinID: id})
	}
	store := session.NewStore(authBackend{user: user}, session.NewMemoryTokenStore("jwt"), nil)
	require.NotNil(t, store.Restore(context.Background()))
	return store
}

func TestActions_Add(t *testing.T) {
	ctx := context.Background()
	eth := model.Asset{ID: "eth", Name: "Ethereum"}

	t.Run("confirmed add", func(t *testing.T) {
		store := signedIn(t)
		backend := &fakeBackend{}
		require.NoError(t, NewActions(backend, store).Add(ctx, eth))
		assert.True(t, store.IsMember("eth"))
		assert.Equal(t, []string{"eth"}, backend.added)
	})

	t.Run("conflict counts as success", func(t *testing.T) {
		store := signedIn(t)
		backend := &fakeBackend{addErr: &http.ResponseError{StatusCode: 400, Body: []byte(`{"error":"Coin already in watchlist"}`)}}
		require.NoError(t, NewActions(backend, store).Add(ctx, eth))
		assert.True(t, store.IsMember("eth"))
	})

	t.Run("other failure leaves membership", func(t *testing.T) {
		store := signedIn(t)
		backend := &fakeBackend{addErr: &http.ResponseError{StatusCode: 500, Body: []byte(`{"error":"Server error"}`)}}
		err := NewActions(backend, store).Add(ctx, eth)
		var mutErr *MutationError
		require.True(t, errors.As(err, &mutErr))
		assert.Equal(t, "add", mutErr.Op)
		assert.EqualError(t, err, "Server error")
		assert.False(t, store.IsMember("eth"))
	})

	t.Run("existing member skips backend", func(t *testing.T) {
		store := signedIn(t, "eth")
		backend := &fakeBackend{}
		require.NoError(t, NewActions(backend, store).Add(ctx, eth))
		assert.Empty(t, backend.added)
		assert.Len(t, store.Session().User.Watchlist, 1)
	})

	t.Run("signed out", func(t *testing.T) {
		store := session.NewStore(authBackend{}, session.NewMemoryTokenStore(""), nil)
		backend := &fakeBackend{}
		assert.ErrorIs(t, NewActions(backend, store).Add(ctx, eth), ErrNotAuthenticated)
		assert.Empty(t, backend.added)
	})
}

func TestActions_Remove(t *testing.T) {
	ctx := context.Background()

	t.Run("confirmed remove", func(t *testing.T) {
		store := signedIn(t, "btc", "eth")
		require.NoError(t, NewActions(&fakeBackend{}, store).Remove(ctx, "btc"))
		assert.False(t, store.IsMember("btc"))
		assert.True(t, store.IsMember("eth"))
	})

	t.Run("failure keeps member", func(t *testing.T) {
		store := signedIn(t, "btc")
		backend := &fakeBackend{removeErr: errors.New("connection reset")}
		err := NewActions(backend, store).Remove(ctx, "btc")
		require.Error(t, err)
		assert.EqualError(t, err, "Failed to remove btc")
		assert.True(t, store.IsMember("btc"))
	})
}

func TestActions_Sync(t *testing.T) {
	store := signedIn(t, "btc", "eth")
	backend := &fakeBackend{list: []model.Asset{{ID: "eth", Name: "Ethereum"}, {ID: "sol", Name: "Solana"}}}
	require.NoError(t, NewActions(backend, store).Sync(context.Background()))
	assert.Equal(t, []model.WatchItem{{CoinID: "eth", CoinName: "Ethereum"}, {CoinID: "sol", CoinName: "Solana"}},
		store.Session().User.Watchlist)
}
