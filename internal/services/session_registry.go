package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"storefront/internal/metrics"
	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/google/uuid"
)

const cacheTimeout = 2 * time.Second

// OrderService is what a session needs from the order gateway.
type OrderService interface {
	OrderSubmitter
	OrderFetcher
}

// Session groups the per-visitor cart, checkout and order history.
type Session struct {
	ID       string
	Identity *SessionIdentity
	Cart     *CartStore
	Checkout *CheckoutService
	History  *OrderHistoryView

	lastSeen time.Time
	ready    sync.Once
}

func (s *Session) release() {
	s.Checkout.Release()
	s.History.Release()
}

// SessionRegistry creates sessions on first use and persists their carts.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	orders   OrderService
	cache    repositories.CartCache
	revoke   func(models.Identity) error
	idleTTL  time.Duration
	metrics  *metrics.StoreMetrics
	now      func() time.Time
}

// NewSessionRegistry creates a registry. cache and revoke may be nil.
func NewSessionRegistry(orders OrderService, cache repositories.CartCache, revoke func(models.Identity) error, idleTTL time.Duration, m *metrics.StoreMetrics) *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*Session),
		orders:   orders,
		cache:    cache,
		revoke:   revoke,
		idleTTL:  idleTTL,
		metrics:  m,
		now:      time.Now,
	}
}

// Get returns the session for id, creating it (and restoring a persisted
// cart) when it does not exist yet. An empty id gets a fresh one.
func (r *SessionRegistry) Get(ctx context.Context, id string) *Session {
	if id == "" || len(id) > 128 {
		id = uuid.New().String()
	}

	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		s.lastSeen = r.now()
	} else {
		s = r.newSession(id)
		r.sessions[id] = s
	}
	r.mu.Unlock()

	s.ready.Do(func() {
		r.restore(ctx, s)
		s.Cart.OnChange(func(items []models.CartLineItem) { r.persist(id, items) })
	})
	return s
}

// Len returns the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops sessions idle for longer than the registry TTL. Their carts stay
// in the cache and are restored if the session comes back.
func (r *SessionRegistry) Sweep() int {
	r.mu.Lock()
	cutoff := r.now().Add(-r.idleTTL)
	var expired []*Session
	for id, s := range r.sessions {
		if s.lastSeen.Before(cutoff) {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.release()
	}
	return len(expired)
}

func (r *SessionRegistry) newSession(id string) *Session {
	identity := NewSessionIdentity(r.revoke)
	cart := NewCartStore(r.metrics)
	return &Session{
		ID:       id,
		Identity: identity,
		Cart:     cart,
		Checkout: NewCheckoutService(cart, identity, r.orders, r.metrics),
		History:  NewOrderHistoryView(identity, r.orders, r.metrics),
		lastSeen: r.now(),
	}
}

func (r *SessionRegistry) restore(ctx context.Context, s *Session) {
	if r.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, cacheTimeout)
	defer cancel()

	items, err := r.cache.Get(ctx, s.ID)
	if errors.Is(err, repositories.ErrCacheMiss) {
		return
	}
	if err != nil {
		log.Printf("Failed to restore cart for session %s: %v", s.ID, err)
		return
	}
	s.Cart.Restore(items)
}

func (r *SessionRegistry) persist(id string, items []models.CartLineItem) {
	if r.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
	defer cancel()

	var err error
	if len(items) == 0 {
		err = r.cache.Delete(ctx, id)
	} else {
		err = r.cache.Set(ctx, id, items)
	}
	if err != nil {
		log.Printf("Failed to persist cart for session %s: %v", id, err)
	}
}
