// Package session owns who is signed in and what is in their watchlist.
package session

import (
	"context"
	"strings"
	"sync"

	"github.com/polyrabbit/crypto-tracker/api"
	"github.com/polyrabbit/crypto-tracker/event"
	"github.com/polyrabbit/crypto-tracker/http"
	"github.com/polyrabbit/crypto-tracker/model"
	"github.com/sirupsen/logrus"
)

const (
	loginFailed        = "Login failed"
	registrationFailed = "Registration failed"
)

type AuthBackend interface {
	Login(ctx context.Context, req api.LoginRequest) (*api.AuthResponse, error)
	Register(ctx context.Context, req api.RegisterRequest) (*api.AuthResponse, error)
	Me(ctx context.Context) (*model.User, error)
}

// Store is the single source of truth of the signed-in identity. It never
// calls the watchlist backend, callers confirm mutations first.
type Store struct {
	backend AuthBackend
	tokens  TokenStore
	bus     *event.Bus

	mu        sync.RWMutex
	session   *model.Session
	ready     chan struct{}
	readyOnce sync.Once
}

func NewStore(backend AuthBackend, tokens TokenStore, bus *event.Bus) *Store {
	return &Store{
		backend: backend,
		tokens:  tokens,
		bus:     bus,
		ready:   make(chan struct{}),
	}
}

// Ready is closed once Restore has resolved. Nothing should be rendered
// as signed in or signed out before that.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Restore validates a persisted token against the backend. Any failure
// drops the token and leaves the store signed out.
func (s *Store) Restore(ctx context.Context) *model.Session {
	defer s.readyOnce.Do(func() { close(s.ready) })

	token, err := s.tokens.Get()
	if err != nil {
		logrus.WithError(err).Warn("Failed to read stored credential")
		s.clearToken()
		s.set(nil)
		return nil
	}
	if token == "" {
		s.set(nil)
		return nil
	}

	user, err := s.backend.Me(ctx)
	if err != nil {
		logrus.WithError(err).Warn("Failed to validate token")
		s.clearToken()
		s.set(nil)
		return nil
	}
	return s.set(newSession(*user))
}

func (s *Store) Login(ctx context.Context, email, password string) (*model.Session, error) {
	if err := validateLogin(email, password); err != nil {
		return nil, err
	}
	resp, err := s.backend.Login(ctx, api.LoginRequest{Email: strings.TrimSpace(email), Password: password})
	if err != nil {
		logrus.WithError(err).Debug("Login rejected")
		return nil, &AuthError{Message: http.ErrorMessage(err, loginFailed), Err: err}
	}
	return s.signIn(resp), nil
}

func (s *Store) Register(ctx context.Context, r Registration) (*model.Session, error) {
	if err := ValidateRegistration(r); err != nil {
		return nil, err
	}
	resp, err := s.backend.Register(ctx, api.RegisterRequest{
		Username: strings.TrimSpace(r.Username),
		Email:    strings.TrimSpace(r.Email),
		Password: r.Password,
	})
	if err != nil {
		logrus.WithError(err).Debug("Registration rejected")
		return nil, &AuthError{Message: http.ErrorMessage(err, registrationFailed), Err: err}
	}
	return s.signIn(resp), nil
}

func (s *Store) signIn(resp *api.AuthResponse) *model.Session {
	if err := s.tokens.Set(resp.Token); err != nil {
		logrus.WithError(err).Warn("Failed to persist credential, you will need to sign in again next time")
	}
	return s.set(newSession(resp.User))
}

// Logout never fails, a token that cannot be removed is only logged.
func (s *Store) Logout() {
	s.clearToken()
	s.set(nil)
}

func (s *Store) clearToken() {
	if err := s.tokens.Remove(); err != nil {
		logrus.WithError(err).Warn("Failed to remove stored credential")
	}
}

// AddToWatchlist inserts coinID unless it is already a member or nobody is
// signed in.
func (s *Store) AddToWatchlist(coinID, coinName string) {
	s.mutate(func(sess *model.Session) bool {
		if sess.Has(coinID) {
			return false
		}
		sess.User.Watchlist = append(sess.User.Watchlist, model.WatchItem{CoinID: coinID, CoinName: coinName})
		return true
	})
}

// RemoveFromWatchlist drops coinID; removing a non-member changes nothing.
func (s *Store) RemoveFromWatchlist(coinID string) {
	s.mutate(func(sess *model.Session) bool {
		kept := sess.User.Watchlist[:0]
		for _, w := range sess.User.Watchlist {
			if w.CoinID != coinID {
				kept = append(kept, w)
			}
		}
		changed := len(kept) != len(sess.User.Watchlist)
		sess.User.Watchlist = kept
		return changed
	})
}

// ReplaceWatchlist sets the membership to what the backend persisted.
func (s *Store) ReplaceWatchlist(items []model.WatchItem) {
	items = model.DedupWatchlist(items)
	s.mutate(func(sess *model.Session) bool {
		if sameMembers(sess.User.Watchlist, items) {
			return false
		}
		sess.User.Watchlist = items
		return true
	})
}

// mutate applies fn to the live session under the lock and publishes the
// result when fn reports a change.
func (s *Store) mutate(fn func(sess *model.Session) bool) {
	s.mu.Lock()
	if s.session == nil || !fn(s.session) {
		s.mu.Unlock()
		return
	}
	snapshot := s.session.Clone()
	s.mu.Unlock()
	s.bus.Publish(event.TopicSession, snapshot)
}

func (s *Store) set(sess *model.Session) *model.Session {
	s.mu.Lock()
	s.session = sess
	snapshot := sess.Clone()
	s.mu.Unlock()
	s.bus.Publish(event.TopicSession, snapshot)
	return snapshot.Clone()
}

// Session returns a copy of the signed-in session, nil when signed out.
func (s *Store) Session() *model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Clone()
}

func (s *Store) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session != nil
}

func (s *Store) IsMember(coinID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Has(coinID)
}

// Members returns the membership set, nil when signed out.
func (s *Store) Members() map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Members()
}

func newSession(user model.User) *model.Session {
	user.Watchlist = model.DedupWatchlist(user.Watchlist)
	return &model.Session{User: user}
}

func sameMembers(a, b []model.WatchItem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
