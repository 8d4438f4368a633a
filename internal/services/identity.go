package services

import (
	"sync"

	"storefront/internal/models"
)

// IdentityProvider exposes the current login state and notifies on changes.
type IdentityProvider interface {
	CurrentIdentity() (models.Identity, bool)
	SignOut() error
	Subscribe(fn func(identity models.Identity, present bool)) (cancel func())
}

// SessionIdentity is the per-session IdentityProvider. Tokens validated by
// AuthService are bound to it with SignIn.
type SessionIdentity struct {
	mu          sync.Mutex
	identity    *models.Identity
	subscribers map[int]func(models.Identity, bool)
	nextID      int
	revoke      func(models.Identity) error
}

// NewSessionIdentity creates a signed-out identity. revoke, if not nil, is
// called with the outgoing identity on SignOut.
func NewSessionIdentity(revoke func(models.Identity) error) *SessionIdentity {
	return &SessionIdentity{
		subscribers: make(map[int]func(models.Identity, bool)),
		revoke:      revoke,
	}
}

// CurrentIdentity returns the signed-in identity and whether there is one.
func (s *SessionIdentity) CurrentIdentity() (models.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return models.Identity{}, false
	}
	return *s.identity, true
}

// SignIn binds identity to the session. Subscribers are only notified when the
// signed-in user changes.
func (s *SessionIdentity) SignIn(identity models.Identity) {
	s.mu.Lock()
	changed := s.identity == nil || s.identity.UserID != identity.UserID || s.identity.Email != identity.Email
	s.identity = &identity
	subscribers := s.subscribersLocked()
	s.mu.Unlock()

	if changed {
		for _, fn := range subscribers {
			fn(identity, true)
		}
	}
}

// SignOut clears the session identity and revokes its token.
func (s *SessionIdentity) SignOut() error {
	previous := s.clear()
	if previous != nil && s.revoke != nil {
		return s.revoke(*previous)
	}
	return nil
}

// Detach clears the session identity without revoking the token, for
// requests that arrive without credentials.
func (s *SessionIdentity) Detach() {
	s.clear()
}

func (s *SessionIdentity) clear() *models.Identity {
	s.mu.Lock()
	previous := s.identity
	s.identity = nil
	subscribers := s.subscribersLocked()
	s.mu.Unlock()

	if previous != nil {
		for _, fn := range subscribers {
			fn(models.Identity{}, false)
		}
	}
	return previous
}

// Subscribe registers fn for sign-in and sign-out changes and returns a func that
// unregisters it.
func (s *SessionIdentity) Subscribe(fn func(identity models.Identity, present bool)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

func (s *SessionIdentity) subscribersLocked() []func(models.Identity, bool) {
	fns := make([]func(models.Identity, bool), 0, len(s.subscribers))
	for i := 0; i < s.nextID; i++ {
		if fn, ok := s.subscribers[i]; ok {
			fns = append(fns, fn)
		}
	}
	return fns
}
