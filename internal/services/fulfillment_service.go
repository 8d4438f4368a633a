package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"storefront/internal/metrics"
	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/go-playground/validator/v10"
)

// FulfillmentService applies status and shipping updates to stored orders.
type FulfillmentService struct {
	store    repositories.OrderStore
	validate *validator.Validate
	timeout  time.Duration
	metrics  *metrics.StoreMetrics
}

// NewFulfillmentService creates a FulfillmentService writing to store with a
// per-update timeout.
func NewFulfillmentService(store repositories.OrderStore, timeout time.Duration, m *metrics.StoreMetrics) *FulfillmentService {
	return &FulfillmentService{
		store:    store,
		validate: validator.New(),
		timeout:  timeout,
		metrics:  m,
	}
}

// Apply validates update and writes it to the orders collection.
func (s *FulfillmentService) Apply(ctx context.Context, update models.FulfillmentUpdate) error {
	update.Status = strings.ToLower(strings.TrimSpace(update.Status))
	if err := s.validate.Struct(update); err != nil {
		s.metrics.ObserveFulfillment("invalid")
		return fmt.Errorf("invalid fulfillment update: %w", err)
	}
	if !models.IsKnownStatus(update.Status) {
		s.metrics.ObserveFulfillment("invalid")
		return fmt.Errorf("%w: %s", ErrInvalidStatus, update.Status)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.store.UpdateFulfillment(ctx, models.OrdersCollection, update); err != nil {
		s.metrics.ObserveFulfillment("failed")
		return fmt.Errorf("failed to apply fulfillment to order %s: %w", update.OrderID, err)
	}

	log.Printf("Order %s moved to %s", update.OrderID, update.Status)
	s.metrics.ObserveFulfillment("applied")
	return nil
}
