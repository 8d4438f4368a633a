package repositories

import (
	"context"
	"errors"

	"storefront/internal/models"
)

// CartCache persists per-session cart contents between requests and restarts.
type CartCache interface {
	Get(ctx context.Context, sessionID string) ([]models.CartLineItem, error)
	Set(ctx context.Context, sessionID string, items []models.CartLineItem) error
	Delete(ctx context.Context, sessionID string) error
}

var ErrCacheMiss = errors.New("cache miss")
