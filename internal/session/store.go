// Package session holds the client's authentication state: the current
// token, where it is persisted, and who is notified when it changes.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// TokenKey is the storage key holding the session token.
const TokenKey = "session-token"

// ErrNoSession is returned by Token when nobody is logged in.
var ErrNoSession = errors.New("session: not authenticated")

// Storage is a durable key/value backend. Both the OS keyring and the
// local SQLite state store implement it.
type Storage interface {
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

// Session is an authenticated session. The zero value means "none".
type Session struct {
	Token string
}

// Observer is called synchronously after every session change. The
// argument is the new session and whether it is authenticated.
type Observer func(s Session, authenticated bool)

type subscription struct {
	id uint64
	fn Observer
}

// Store owns the process-wide session. It is created once at startup and
// passed by reference to every component that needs it.
type Store struct {
	storage Storage
	log     zerolog.Logger

	mu        sync.RWMutex
	current   Session
	observers []subscription
	nextID    uint64
}

// Open creates a Store and restores the session from storage. An absent
// token leaves the store unauthenticated.
func Open(ctx context.Context, storage Storage, log zerolog.Logger) (*Store, error) {
	s := &Store{storage: storage, log: log}

	token, ok, err := storage.GetItem(ctx, TokenKey)
	if err != nil {
		return nil, fmt.Errorf("restoring session: %w", err)
	}
	if ok && token != "" {
		s.current = Session{Token: token}
		log.Debug().Msg("session restored from storage")
	}
	return s, nil
}

// Current returns the current session and whether it is authenticated.
func (s *Store) Current() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.current.Token != ""
}

// IsAuthenticated reports whether a token is present.
func (s *Store) IsAuthenticated() bool {
	_, ok := s.Current()
	return ok
}

// Login persists token and makes it the current session. Calling it again
// with the same token rewrites storage but does not notify observers.
func (s *Store) Login(ctx context.Context, token string) error {
	if token == "" {
		return errors.New("session: empty token")
	}
	if err := s.storage.SetItem(ctx, TokenKey, token); err != nil {
		return fmt.Errorf("persisting session: %w", err)
	}

	s.mu.Lock()
	changed := s.current.Token != token
	s.current = Session{Token: token}
	s.mu.Unlock()

	if changed {
		s.log.Info().Msg("logged in")
		s.notify()
	}
	return nil
}

// Logout clears storage and the current session. It does nothing when
// already logged out.
func (s *Store) Logout(ctx context.Context) error {
	if !s.IsAuthenticated() {
		return nil
	}

	s.mu.Lock()
	s.current = Session{}
	s.mu.Unlock()

	err := s.storage.RemoveItem(ctx, TokenKey)
	if err != nil {
		s.log.Error().Err(err).Msg("clearing persisted session")
	}

	s.log.Info().Msg("logged out")
	s.notify()

	if err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

// Subscribe registers fn to be called after every change. The returned
// function unregisters it and is safe to call more than once.
func (s *Store) Subscribe(fn Observer) (unsubscribe func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.observers = append(s.observers, subscription{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.observers {
			if sub.id == id {
				s.observers = append(s.observers[:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

// notify calls observers in registration order outside the lock so they
// may read the store.
func (s *Store) notify() {
	s.mu.RLock()
	current := s.current
	subs := make([]subscription, len(s.observers))
	copy(subs, s.observers)
	s.mu.RUnlock()

	for _, sub := range subs {
		sub.fn(current, current.Token != "")
	}
}

// Token implements oauth2.TokenSource so HTTP clients pick up the current
// token on every request.
func (s *Store) Token() (*oauth2.Token, error) {
	current, ok := s.Current()
	if !ok {
		return nil, ErrNoSession
	}
	return &oauth2.Token{AccessToken: current.Token, TokenType: "Bearer"}, nil
}
