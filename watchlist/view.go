// Package watchlist derives the signed-in user's watched coins from the
// shared price list and carries the add/remove flows against the backend.
package watchlist

import (
	"strings"

	"github.com/polyrabbit/crypto-tracker/model"
)

// View is the derived watchlist. Authenticated is false when nobody is
// signed in, which is different from an empty watchlist.
type View struct {
	Authenticated bool
	Assets        []model.Asset
}

// Derive picks the snapshot assets whose id is a member of the session's
// watchlist, in snapshot order. Members missing from the snapshot are left
// out.
func Derive(snap model.Snapshot, sess *model.Session) View {
	if sess == nil {
		return View{}
	}
	members := sess.Members()
	assets := make([]model.Asset, 0, len(members))
	for _, a := range snap.Assets {
		if _, ok := members[a.ID]; ok {
			assets = append(assets, a)
		}
	}
	return View{Authenticated: true, Assets: assets}
}

// Missing lists members that the snapshot does not carry.
func (v View) Missing(sess *model.Session) []model.WatchItem {
	if sess == nil {
		return nil
	}
	present := make(map[string]struct{}, len(v.Assets))
	for _, a := range v.Assets {
		present[a.ID] = struct{}{}
	}
	var missing []model.WatchItem
	for _, w := range sess.User.Watchlist {
		if _, ok := present[w.CoinID]; !ok {
			missing = append(missing, w)
		}
	}
	return missing
}

// Filter keeps assets whose name or symbol contains term, ignoring case.
// An empty term keeps everything.
func Filter(assets []model.Asset, term string) []model.Asset {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return assets
	}
	var out []model.Asset
	for _, a := range assets {
		if strings.Contains(strings.ToLower(a.Name), term) || strings.Contains(strings.ToLower(a.Symbol), term) {
			out = append(out, a)
		}
	}
	return out
}
