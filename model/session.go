package model

// WatchItem is one watchlist membership entry, unique by CoinID.
type WatchItem struct {
	CoinID   string `json:"coinId"`
	CoinName string `json:"coinName"`
}

type User struct {
	ID        string      `json:"id"`
	Username  string      `json:"username"`
	Email     string      `json:"email"`
	Watchlist []WatchItem `json:"watchlist"`
}

// Session is a signed-in identity together with its watchlist membership.
type Session struct {
	User User
}

func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.User.Watchlist = append([]WatchItem(nil), s.User.Watchlist...)
	return &c
}

func (s *Session) Has(coinID string) bool {
	if s == nil {
		return false
	}
	for _, w := range s.User.Watchlist {
		if w.CoinID == coinID {
			return true
		}
	}
	return false
}

// Members returns the membership set keyed by coin id.
func (s *Session) Members() map[string]struct{} {
	if s == nil {
		return nil
	}
	members := make(map[string]struct{}, len(s.User.Watchlist))
	for _, w := range s.User.Watchlist {
		members[w.CoinID] = struct{}{}
	}
	return members
}

// DedupWatchlist keeps the first entry of every coin id, in order.
func DedupWatchlist(items []WatchItem) []WatchItem {
	out := make([]WatchItem, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, w := range items {
		if w.CoinID == "" {
			continue
		}
		if _, ok := seen[w.CoinID]; ok {
			continue
		}
		seen[w.CoinID] = struct{}{}
		out = append(out, w)
	}
	return out
}
