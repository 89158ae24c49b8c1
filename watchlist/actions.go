package watchlist

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	transport "github.com/polyrabbit/crypto-tracker/http"
	"github.com/polyrabbit/crypto-tracker/model"
	"github.com/sirupsen/logrus"
)

var ErrNotAuthenticated = errors.New("not signed in")

// Backend persists watchlist edits remotely.
type Backend interface {
	AddToWatchlist(ctx context.Context, coinID, coinName string) error
	RemoveFromWatchlist(ctx context.Context, coinID string) error
	Watchlist(ctx context.Context) ([]model.Asset, error)
}

// Membership is the local side of the watchlist, updated only after the
// backend confirmed an edit.
type Membership interface {
	Authenticated() bool
	IsMember(coinID string) bool
	AddToWatchlist(coinID, coinName string)
	RemoveFromWatchlist(coinID string)
	ReplaceWatchlist(items []model.WatchItem)
}

// MutationError is a watchlist edit the backend refused. The local
// membership is left as it was.
type MutationError struct {
	Op     string
	CoinID string
	Err    error
}

func (e *MutationError) Error() string {
	return transport.ErrorMessage(e.Err, "Failed to "+e.Op+" "+e.CoinID)
}

func (e *MutationError) Unwrap() error { return e.Err }

type Actions struct {
	backend Backend
	members Membership
}

func NewActions(backend Backend, members Membership) *Actions {
	return &Actions{backend: backend, members: members}
}

// Add confirms with the backend first. A 400 from the backend means the coin
// is already persisted and counts as success.
func (a *Actions) Add(ctx context.Context, asset model.Asset) error {
	if !a.members.Authenticated() {
		return ErrNotAuthenticated
	}
	if a.members.IsMember(asset.ID) {
		return nil
	}
	err := a.backend.AddToWatchlist(ctx, asset.ID, asset.Name)
	if err != nil && transport.StatusCode(err) != http.StatusBadRequest {
		logrus.WithError(err).WithField("coin", asset.ID).Warnln("Failed to add to watchlist")
		return &MutationError{Op: "add", CoinID: asset.ID, Err: err}
	}
	if err != nil {
		logrus.WithField("coin", asset.ID).Debugln("Coin already in remote watchlist")
	}
	a.members.AddToWatchlist(asset.ID, asset.Name)
	return nil
}

// Remove drops the coin locally only once the backend removed it.
func (a *Actions) Remove(ctx context.Context, coinID string) error {
	if !a.members.Authenticated() {
		return ErrNotAuthenticated
	}
	if err := a.backend.RemoveFromWatchlist(ctx, coinID); err != nil {
		logrus.WithError(err).WithField("coin", coinID).Warnln("Failed to remove from watchlist")
		return &MutationError{Op: "remove", CoinID: coinID, Err: err}
	}
	a.members.RemoveFromWatchlist(coinID)
	return nil
}

// Sync replaces the local membership with the backend's persisted list.
func (a *Actions) Sync(ctx context.Context) error {
	if !a.members.Authenticated() {
		return ErrNotAuthenticated
	}
	assets, err := a.backend.Watchlist(ctx)
	if err != nil {
		return errors.Wrap(err, "sync watchlist")
	}
	items := make([]model.WatchItem, 0, len(assets))
	for _, asset := range assets {
		items = append(items, model.WatchItem{CoinID: asset.ID, CoinName: asset.Name})
	}
	a.members.ReplaceWatchlist(items)
	return nil
}
