package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrSubmitInProgress   = errors.New("order submission already in progress")
	ErrFormDisabled       = errors.New("checkout form is disabled until login")
	ErrCheckoutNotOpen    = errors.New("checkout is not open")
	ErrInvalidTransition  = errors.New("invalid checkout state transition")
	ErrInvalidQuantity    = errors.New("quantity must be at least 1")
	ErrItemNotInCart      = errors.New("item not in cart")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrTokenRevoked       = errors.New("token has been revoked")
	ErrInvalidStatus      = errors.New("invalid order status")
)

// ValidationError reports which customer fields are missing or malformed.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s %s", name, e.Fields[name]))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// PersistenceError means an order could not be written. The cart is kept.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to save order: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// QueryError means order history could not be read.
type QueryError struct {
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("failed to load orders: %v", e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}
