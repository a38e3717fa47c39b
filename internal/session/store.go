package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"casinoclient/internal/api"
	"casinoclient/internal/models"

	"github.com/golang-jwt/jwt/v5"
	log "github.com/sirupsen/logrus"
)

var (
	ErrNotLoggedIn = errors.New("session: not logged in")
	ErrAuth        = errors.New("session: authentication failed")
)

type State int

const (
	// StateUnknown holds from process start until hydration resolves.
	StateUnknown State = iota
	StateLoggedOut
	StateLoggedIn
)

func (s State) String() string {
	switch s {
	case StateLoggedOut:
		return "logged_out"
	case StateLoggedIn:
		return "logged_in"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Backend is the subset of the API client the store depends on.
type Backend interface {
	Login(ctx context.Context, creds models.Credentials) (string, error)
	Profile(ctx context.Context, token string) (models.User, error)
	ClaimDaily(ctx context.Context) (models.User, error)
}

type Snapshot struct {
	State State        `json:"state"`
	User  *models.User `json:"user,omitempty"`
}

type Listener func(Snapshot)

// Store holds the authenticated identity. All mutation goes through its named methods.
type Store struct {
	backend Backend
	tokens  TokenStore
	now     func() time.Time

	mu        sync.RWMutex
	state     State
	token     string
	user      *models.User
	listeners map[int]Listener
	nextID    int
}

func NewStore(backend Backend, tokens TokenStore) *Store {
	if tokens == nil {
		tokens = NewMemoryTokenStore()
	}
	return &Store{
		backend:   backend,
		tokens:    tokens,
		now:       time.Now,
		state:     StateUnknown,
		listeners: make(map[int]Listener),
	}
}

// Hydrate restores the session from a stored token. Until it returns the state stays unknown.
func (s *Store) Hydrate(ctx context.Context) error {
	token, err := s.tokens.Load(ctx)
	if err != nil {
		s.setLoggedOut()
		return fmt.Errorf("load token: %w", err)
	}
	if token == "" {
		s.setLoggedOut()
		return nil
	}

	logger := log.WithField("component", "session")

	if tokenExpired(token, s.now()) {
		logger.Info("Stored token expired, discarding")
		if err := s.tokens.Delete(ctx); err != nil {
			logger.WithError(err).Warn("Failed to delete expired token")
		}
		s.setLoggedOut()
		return nil
	}

	user, err := s.backend.Profile(ctx, token)
	if err != nil {
		if api.IsUnauthorized(err) {
			logger.Info("Stored token rejected, discarding")
			if delErr := s.tokens.Delete(ctx); delErr != nil {
				logger.WithError(delErr).Warn("Failed to delete rejected token")
			}
		}
		s.setLoggedOut()
		return fmt.Errorf("hydrate profile: %w", err)
	}

	s.setLoggedIn(token, user)
	logger.WithField("user_id", user.ID).Info("Session hydrated")
	return nil
}

// Login authenticates and loads the profile. On failure no state is mutated.
func (s *Store) Login(ctx context.Context, creds models.Credentials) error {
	token, err := s.backend.Login(ctx, creds)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAuth, err)
	}

	user, err := s.backend.Profile(ctx, token)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAuth, err)
	}

	if err := s.tokens.Save(ctx, token); err != nil {
		log.WithField("component", "session").WithError(err).Warn("Failed to persist token")
	}

	s.setLoggedIn(token, user)
	log.WithFields(log.Fields{"component": "session", "user_id": user.ID}).Info("Logged in")
	return nil
}

// Logout clears the token and the in-memory user. Calling it again is a no-op.
func (s *Store) Logout(ctx context.Context) error {
	err := s.tokens.Delete(ctx)

	s.mu.Lock()
	changed := s.state != StateLoggedOut || s.user != nil
	s.state = StateLoggedOut
	s.token = ""
	s.user = nil
	s.mu.Unlock()

	if changed {
		s.notify()
	}
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

// UpdateBalance replaces the balance field. Last write wins.
func (s *Store) UpdateBalance(balance int64) {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return
	}
	s.user.Balance = balance
	s.mu.Unlock()

	s.notify()
}

// UpdateUserDetails shallow-merges patch into the current user; no-op without one.
func (s *Store) UpdateUserDetails(patch models.UserPatch) {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return
	}
	patch.Apply(s.user)
	s.mu.Unlock()

	s.notify()
}

// ClaimDaily redeems the daily bonus and merges the returned balance and eligibility.
func (s *Store) ClaimDaily(ctx context.Context) error {
	if s.State() != StateLoggedIn {
		return ErrNotLoggedIn
	}
	user, err := s.backend.ClaimDaily(ctx)
	if err != nil {
		return err
	}
	s.UpdateUserDetails(models.UserPatch{
		Balance:       &user.Balance,
		CanClaimDaily: &user.CanClaimDaily,
	})
	return nil
}

func (s *Store) Balance() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return 0
	}
	return s.user.Balance
}

func (s *Store) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return ""
	}
	return s.user.ID
}

func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Store) User() (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return models.User{}, false
	}
	return *s.user, true
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe registers fn for every mutation and returns its unsubscribe func.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{State: s.state}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

func (s *Store) setLoggedIn(token string, user models.User) {
	s.mu.Lock()
	s.state = StateLoggedIn
	s.token = token
	s.user = &user
	s.mu.Unlock()

	s.notify()
}

func (s *Store) setLoggedOut() {
	s.mu.Lock()
	s.state = StateLoggedOut
	s.token = ""
	s.user = nil
	s.mu.Unlock()

	s.notify()
}

// notify runs listeners outside the lock so they may read the store.
func (s *Store) notify() {
	s.mu.RLock()
	snap := s.snapshotLocked()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

// tokenExpired reads exp without verifying the signature; the backend stays the authority.
func tokenExpired(token string, now time.Time) bool {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	return claims.ExpiresAt != nil && !claims.ExpiresAt.After(now)
}
