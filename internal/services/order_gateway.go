package services

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"

	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// EventPublisher announces stored orders to downstream consumers.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event models.OrderCreatedEvent) error
}

// OrderGateway writes orders to and reads order history from the document store.
type OrderGateway struct {
	store     repositories.OrderStore
	publisher EventPublisher
	timeout   time.Duration
	group     singleflight.Group
	now       func() time.Time
}

// NewOrderGateway creates a gateway. publisher may be nil.
func NewOrderGateway(store repositories.OrderStore, publisher EventPublisher, timeout time.Duration) *OrderGateway {
	return &OrderGateway{
		store:     store,
		publisher: publisher,
		timeout:   timeout,
		now:       time.Now,
	}
}

// Submit stores a new pending order and returns its store-assigned ID.
// Every failure, including a timeout, is returned as *PersistenceError.
func (g *OrderGateway) Submit(ctx context.Context, customer models.CustomerDetails, items []models.CartLineItem, total decimal.Decimal) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	createdAt := g.now().UTC()
	doc := newOrderDocument(customer, items, total, createdAt)

	id, err := g.store.Insert(ctx, models.OrdersCollection, doc)
	if err != nil {
		log.Printf("Failed to store order for %s: %v", customer.Email, err)
		return "", &PersistenceError{Err: err}
	}
	log.Printf("Order %s stored for %s (%d items, total %s)", id, customer.Email, len(items), total.StringFixed(2))

	g.publishCreated(ctx, models.OrderCreatedEvent{
		OrderID:       id,
		CustomerEmail: customer.Email,
		Total:         total.StringFixed(2),
		ItemCount:     len(items),
		CreatedAt:     createdAt,
	})
	return id, nil
}

func (g *OrderGateway) publishCreated(ctx context.Context, event models.OrderCreatedEvent) {
	if g.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
	defer cancel()
	if err := g.publisher.PublishOrderCreated(ctx, event); err != nil {
		log.Printf("Failed to publish order.created for %s: %v", event.OrderID, err)
	}
}

// FetchOrders returns the customer's orders, newest first. An empty email is
// ErrNotAuthenticated; store failures are *QueryError. The returned slice is
// never nil. Concurrent fetches for one email share a single query.
func (g *OrderGateway) FetchOrders(ctx context.Context, email string) ([]models.Order, error) {
	if strings.TrimSpace(email) == "" {
		return []models.Order{}, ErrNotAuthenticated
	}

	v, err, _ := g.group.Do(email, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
		defer cancel()

		docs, err := g.store.Query(ctx, models.OrdersCollection, models.Filter{
			Field: models.CustomerEmailField,
			Value: email,
		})
		if err != nil {
			return nil, err
		}

		orders := make([]models.Order, 0, len(docs))
		for _, doc := range docs {
			orders = append(orders, HydrateOrder(doc))
		}
		sort.SliceStable(orders, func(i, j int) bool {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		})
		return orders, nil
	})
	if err != nil {
		log.Printf("Failed to fetch orders for %s: %v", email, err)
		return []models.Order{}, &QueryError{Err: err}
	}

	shared := v.([]models.Order)
	orders := make([]models.Order, len(shared))
	copy(orders, shared)
	return orders, nil
}

// HydrateOrder turns a stored document into a display-ready order. Missing
// fields get defaults and the total is recomputed from the line items.
func HydrateOrder(doc models.OrderDocument) models.Order {
	items := make([]models.CartLineItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		items = append(items, models.CartLineItem{
			ProductID: item.ID,
			Name:      item.Name,
			UnitPrice: decimal.NewFromFloat(item.Price),
			Quantity:  item.Quantity,
			ImageURL:  item.Image,
		})
	}

	var createdAt time.Time
	switch {
	case doc.CreatedAt != nil:
		createdAt = *doc.CreatedAt
	case doc.Timestamp != nil:
		createdAt = *doc.Timestamp
	}

	return models.Order{
		ID: doc.ID,
		Customer: models.CustomerDetails{
			Name:    doc.Customer.Name,
			Address: doc.Customer.Address,
			Phone:   doc.Customer.Phone,
			Email:   doc.Customer.Email,
		},
		Items:            items,
		Total:            models.SumItems(items),
		CreatedAt:        createdAt,
		Status:           valueOr(doc.Status, models.StatusUnknown),
		ShippingProvider: valueOr(doc.ShippingProvider, models.NotAvailable),
		TrackingNumber:   valueOr(doc.TrackingNumber, models.NotAvailable),
	}
}

func newOrderDocument(customer models.CustomerDetails, items []models.CartLineItem, total decimal.Decimal, createdAt time.Time) models.OrderDocument {
	lines := make([]models.LineItemDocument, 0, len(items))
	for _, item := range items {
		lines = append(lines, models.LineItemDocument{
			ID:       item.ProductID,
			Name:     item.Name,
			Price:    item.UnitPrice.InexactFloat64(),
			Quantity: item.Quantity,
			Image:    item.ImageURL,
		})
	}

	amount := total.InexactFloat64()
	status := models.StatusPending
	return models.OrderDocument{
		Customer: models.CustomerDocument{
			Name:    customer.Name,
			Address: customer.Address,
			Phone:   customer.Phone,
			Email:   customer.Email,
		},
		Items:     lines,
		Total:     &amount,
		CreatedAt: &createdAt,
		Status:    &status,
	}
}

func valueOr(value *string, fallback string) string {
	if value == nil || *value == "" {
		return fallback
	}
	return *value
}
