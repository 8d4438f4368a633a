package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"reflect"
	"strings"
	"sync"

	"storefront/internal/metrics"
	"storefront/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// CheckoutState is the single source of truth for the checkout form.
type CheckoutState int

const (
	StateIdle CheckoutState = iota
	StateFormOpen
	StateUnauthenticated
	StateAuthenticated
	StateSubmitting
	StateSucceeded
	StateFailed
)

var checkoutStateNames = map[CheckoutState]string{
	StateIdle:            "idle",
	StateFormOpen:        "form_open",
	StateUnauthenticated: "unauthenticated",
	StateAuthenticated:   "authenticated",
	StateSubmitting:      "submitting",
	StateSucceeded:       "succeeded",
	StateFailed:          "failed",
}

func (s CheckoutState) String() string {
	if name, ok := checkoutStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("CheckoutState(%d)", int(s))
}

func (s CheckoutState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var checkoutTransitions = map[CheckoutState][]CheckoutState{
	StateIdle:            {StateFormOpen},
	StateFormOpen:        {StateUnauthenticated, StateAuthenticated},
	StateUnauthenticated: {StateAuthenticated, StateFormOpen, StateIdle},
	StateAuthenticated:   {StateSubmitting, StateUnauthenticated, StateFormOpen, StateIdle},
	StateSubmitting:      {StateSucceeded, StateFailed, StateIdle},
	StateSucceeded:       {StateFormOpen, StateIdle},
	StateFailed:          {StateSubmitting, StateUnauthenticated, StateFormOpen, StateIdle},
}

// CanTransitionTo reports whether the state machine allows moving to next.
func (s CheckoutState) CanTransitionTo(next CheckoutState) bool {
	for _, allowed := range checkoutTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// OrderSubmitter persists a checked-out cart.
type OrderSubmitter interface {
	Submit(ctx context.Context, customer models.CustomerDetails, items []models.CartLineItem, total decimal.Decimal) (string, error)
}

// CheckoutView is an immutable snapshot of the checkout for rendering.
type CheckoutView struct {
	State         CheckoutState          `json:"state"`
	FormOpen      bool                   `json:"form_open"`
	FieldsEnabled bool                   `json:"fields_enabled"`
	LoginRequired bool                   `json:"login_required"`
	Cart          models.CartSnapshot    `json:"cart"`
	Details       models.CustomerDetails `json:"details"`
	LastError     string                 `json:"last_error,omitempty"`
	LastOrderID   string                 `json:"last_order_id,omitempty"`
}

// CheckoutService drives one session's checkout form from open to a stored order.
type CheckoutService struct {
	mu          sync.Mutex
	state       CheckoutState
	cart        *CartStore
	identity    IdentityProvider
	orders      OrderSubmitter
	validate    *validator.Validate
	metrics     *metrics.StoreMetrics
	details     models.CustomerDetails
	snapshot    models.CartSnapshot
	lastErr     error
	lastOrderID string

	// generation changes on Close so a detached write cannot move the form.
	generation  uint64
	inFlight    bool
	unsubscribe func()
}

// NewCheckoutService creates an idle checkout bound to cart and identity.
func NewCheckoutService(cart *CartStore, identity IdentityProvider, orders OrderSubmitter, m *metrics.StoreMetrics) *CheckoutService {
	c := &CheckoutService{
		state:    StateIdle,
		cart:     cart,
		identity: identity,
		orders:   orders,
		validate: newCustomerValidator(),
		metrics:  m,
	}
	c.unsubscribe = identity.Subscribe(c.identityChanged)
	return c
}

// Release stops listening for identity changes.
func (c *CheckoutService) Release() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
}

// Open shows the form and evaluates the login state from scratch.
func (c *CheckoutService) Open() (CheckoutView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateSubmitting || c.inFlight {
		return c.viewLocked(), ErrSubmitInProgress
	}
	if err := c.transitionLocked(StateFormOpen); err != nil {
		return c.viewLocked(), err
	}

	c.snapshot = c.cart.Snapshot()
	c.lastErr = nil
	c.lastOrderID = ""

	next := StateAuthenticated
	identity, ok := c.identity.CurrentIdentity()
	if ok {
		c.details.Email = identity.Email
	} else {
		c.details.Email = ""
		next = StateUnauthenticated
	}
	err := c.transitionLocked(next)
	return c.viewLocked(), err
}

// Close hides the form. The cart is kept, and an in-flight write finishes
// without changing the form state.
func (c *CheckoutService) Close() CheckoutView {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		c.generation++
		c.state = StateIdle
		c.lastErr = nil
	}
	return c.viewLocked()
}

// UpdateDetails sets the customer fields. The email is never taken from input.
func (c *CheckoutService) UpdateDetails(name, address, phone string) (CheckoutView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateAuthenticated, StateFailed:
	case StateUnauthenticated:
		return c.viewLocked(), ErrFormDisabled
	case StateSubmitting:
		return c.viewLocked(), ErrSubmitInProgress
	default:
		return c.viewLocked(), ErrCheckoutNotOpen
	}

	c.details.Name = strings.TrimSpace(name)
	c.details.Address = strings.TrimSpace(address)
	c.details.Phone = strings.TrimSpace(phone)
	return c.viewLocked(), nil
}

// Validate checks the customer fields without changing state.
func (c *CheckoutService) Validate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.validateLocked()
}

// Submit writes the current cart as an order. Only one write can be in flight;
// a second call returns ErrSubmitInProgress. On success the ordered lines leave
// the cart; on failure the cart and form are kept for a retry.
func (c *CheckoutService) Submit(ctx context.Context) (string, error) {
	c.mu.Lock()
	switch {
	case c.state == StateSubmitting || c.inFlight:
		c.mu.Unlock()
		return "", ErrSubmitInProgress
	case c.state == StateIdle || c.state == StateSucceeded:
		c.mu.Unlock()
		return "", ErrCheckoutNotOpen
	case c.state == StateUnauthenticated || c.state == StateFormOpen:
		c.mu.Unlock()
		return "", ErrNotAuthenticated
	}

	identity, ok := c.identity.CurrentIdentity()
	if !ok {
		c.details.Email = ""
		_ = c.transitionLocked(StateUnauthenticated)
		c.mu.Unlock()
		return "", ErrNotAuthenticated
	}
	c.details.Email = identity.Email

	if err := c.validateLocked(); err != nil {
		c.mu.Unlock()
		return "", err
	}
	if err := c.transitionLocked(StateSubmitting); err != nil {
		c.mu.Unlock()
		return "", err
	}

	c.snapshot = c.cart.Snapshot()
	c.lastErr = nil
	c.inFlight = true
	generation := c.generation
	customer := c.details
	snapshot := c.snapshot
	c.mu.Unlock()

	orderID, err := c.orders.Submit(context.WithoutCancel(ctx), customer, snapshot.Items, snapshot.TotalPrice)
	if err == nil {
		c.cart.RemoveSubmitted(snapshot.Items)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false

	if generation != c.generation {
		log.Printf("Checkout closed during submission, order %q result not shown (err: %v)", orderID, err)
		c.observe(err)
		return orderID, err
	}
	if err != nil {
		c.lastErr = err
		_ = c.transitionLocked(StateFailed)
		c.observe(err)
		return "", err
	}

	c.lastOrderID = orderID
	c.details = models.CustomerDetails{}
	c.snapshot = models.CartSnapshot{Items: []models.CartLineItem{}, TotalPrice: decimal.Zero}
	_ = c.transitionLocked(StateSucceeded)
	c.observe(nil)
	return orderID, nil
}

// View returns the current snapshot for rendering. While the form is editable
// the cart part reflects the live cart.
func (c *CheckoutService) View() CheckoutView {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateUnauthenticated, StateAuthenticated, StateFailed:
		c.snapshot = c.cart.Snapshot()
	}
	return c.viewLocked()
}

// State returns the current state.
func (c *CheckoutService) State() CheckoutState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *CheckoutService) identityChanged(identity models.Identity, present bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case !present && (c.state == StateAuthenticated || c.state == StateFailed):
		c.details.Email = ""
		c.lastErr = nil
		_ = c.transitionLocked(StateUnauthenticated)
	case present && c.state == StateUnauthenticated:
		c.details.Email = identity.Email
		_ = c.transitionLocked(StateAuthenticated)
	}
}

func (c *CheckoutService) transitionLocked(next CheckoutState) error {
	if !c.state.CanTransitionTo(next) {
		log.Printf("Rejected checkout transition %s -> %s", c.state, next)
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.state, next)
	}
	c.state = next
	return nil
}

func (c *CheckoutService) validateLocked() error {
	err := c.validate.Struct(c.details)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("failed to validate customer details: %w", err)
	}
	verr := &ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		verr.Fields[fe.Field()] = fieldMessage(fe)
	}
	return verr
}

func (c *CheckoutService) viewLocked() CheckoutView {
	view := CheckoutView{
		State:         c.state,
		FormOpen:      c.state != StateIdle && c.state != StateSucceeded,
		FieldsEnabled: c.state == StateAuthenticated || c.state == StateFailed,
		LoginRequired: c.state == StateUnauthenticated,
		Cart:          c.snapshot,
		Details:       c.details,
		LastOrderID:   c.lastOrderID,
	}
	view.Cart.Items = append([]models.CartLineItem{}, c.snapshot.Items...)
	if c.lastErr != nil {
		view.LastError = c.lastErr.Error()
	}
	return view
}

func (c *CheckoutService) observe(err error) {
	switch {
	case err == nil:
		c.metrics.ObserveCheckout("succeeded")
	default:
		c.metrics.ObserveCheckout("failed")
	}
}

func newCustomerValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
