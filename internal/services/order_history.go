package services

import (
	"context"
	"errors"
	"sync"

	"storefront/internal/metrics"
	"storefront/internal/models"

	"github.com/shopspring/decimal"
)

// HistoryState is the load state of the order history screen.
type HistoryState int

const (
	HistoryLoading HistoryState = iota
	HistoryLoaded
	HistoryFailed
	HistoryEmpty
)

func (s HistoryState) String() string {
	switch s {
	case HistoryLoading:
		return "loading"
	case HistoryLoaded:
		return "loaded"
	case HistoryFailed:
		return "failed"
	case HistoryEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

func (s HistoryState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// OrderFetcher reads a customer's hydrated orders.
type OrderFetcher interface {
	FetchOrders(ctx context.Context, email string) ([]models.Order, error)
}

// HistoryView is what the order history screen renders. Orders is only set
// when State is HistoryLoaded, Reason only when it is HistoryFailed.
type HistoryView struct {
	State  HistoryState   `json:"state"`
	Orders []models.Order `json:"orders,omitempty"`
	Reason string         `json:"reason,omitempty"`
}

// ReasonNotAuthenticated is the HistoryFailed reason when no one is signed in.
const ReasonNotAuthenticated = "not authenticated"

// OrderHistoryView loads and holds one session's order history.
type OrderHistoryView struct {
	mu          sync.Mutex
	identity    IdentityProvider
	orders      OrderFetcher
	metrics     *metrics.StoreMetrics
	view        HistoryView
	generation  uint64
	unsubscribe func()
}

// NewOrderHistoryView creates a history view in the Loading state that follows
// the identity's sign-in changes.
func NewOrderHistoryView(identity IdentityProvider, orders OrderFetcher, m *metrics.StoreMetrics) *OrderHistoryView {
	h := &OrderHistoryView{
		identity: identity,
		orders:   orders,
		metrics:  m,
		view:     HistoryView{State: HistoryLoading},
	}
	h.unsubscribe = identity.Subscribe(h.identityChanged)
	return h
}

// Release stops listening for identity changes.
func (h *OrderHistoryView) Release() {
	if h.unsubscribe != nil {
		h.unsubscribe()
	}
}

// Load fetches the signed-in customer's orders and settles in exactly one of
// Loaded, Empty or Failed.
func (h *OrderHistoryView) Load(ctx context.Context) HistoryView {
	identity, ok := h.identity.CurrentIdentity()

	h.mu.Lock()
	h.generation++
	generation := h.generation
	if !ok {
		h.view = HistoryView{State: HistoryFailed, Reason: ReasonNotAuthenticated}
		h.mu.Unlock()
		h.metrics.ObserveHistoryFetch("unauthenticated")
		return h.View()
	}
	h.view = HistoryView{State: HistoryLoading}
	h.mu.Unlock()

	orders, err := h.orders.FetchOrders(ctx, identity.Email)

	h.mu.Lock()
	defer h.mu.Unlock()
	if generation != h.generation {
		// a newer load or a logout already settled the view
		return copyHistoryView(h.view)
	}

	switch {
	case errors.Is(err, ErrNotAuthenticated):
		h.view = HistoryView{State: HistoryFailed, Reason: ReasonNotAuthenticated}
		h.metrics.ObserveHistoryFetch("unauthenticated")
	case err != nil:
		h.view = HistoryView{State: HistoryFailed, Reason: err.Error()}
		h.metrics.ObserveHistoryFetch("failed")
	case len(orders) == 0:
		h.view = HistoryView{State: HistoryEmpty}
		h.metrics.ObserveHistoryFetch("empty")
	default:
		h.view = HistoryView{State: HistoryLoaded, Orders: orders}
		h.metrics.ObserveHistoryFetch("loaded")
	}
	return copyHistoryView(h.view)
}

// View returns the current state without fetching.
func (h *OrderHistoryView) View() HistoryView {
	h.mu.Lock()
	defer h.mu.Unlock()
	return copyHistoryView(h.view)
}

func (h *OrderHistoryView) identityChanged(_ models.Identity, present bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.generation++
	if present {
		h.view = HistoryView{State: HistoryLoading}
		return
	}
	h.view = HistoryView{State: HistoryFailed, Reason: ReasonNotAuthenticated}
}

// DisplayTotal is the sum of unit price times quantity over the order's items.
func DisplayTotal(order models.Order) decimal.Decimal {
	return models.SumItems(order.Items)
}

func copyHistoryView(v HistoryView) HistoryView {
	if v.Orders != nil {
		v.Orders = append([]models.Order(nil), v.Orders...)
	}
	return v
}
