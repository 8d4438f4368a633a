package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"storefront/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisCartCache stores cart line items as JSON under cart:<session>.
type RedisCartCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

// NewRedisCartCache creates a cache whose entries live for ttl plus jitter.
func NewRedisCartCache(client *redis.Client, ttl time.Duration) *RedisCartCache {
	return &RedisCartCache{
		client:  client,
		baseTTL: ttl,
	}
}

// Get returns the cached items for sessionID, or ErrCacheMiss.
func (r *RedisCartCache) Get(ctx context.Context, sessionID string) ([]models.CartLineItem, error) {
	data, err := r.client.Get(ctx, cartKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var items []models.CartLineItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return items, nil
}

// Set stores items for sessionID and refreshes the expiry.
func (r *RedisCartCache) Set(ctx context.Context, sessionID string, items []models.CartLineItem) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(5)) * time.Minute
	if err := r.client.Set(ctx, cartKey(sessionID), data, r.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Delete drops the cached cart for sessionID.
func (r *RedisCartCache) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, cartKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cartKey(sessionID string) string {
	return fmt.Sprintf("cart:%s", sessionID)
}
