package repositories

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/models"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrUnsupportedFilter = errors.New("unsupported filter field")
)

// OrderStore is the narrow document-store contract the order gateway depends on.
// Insert is a single-record write: the document is stored in full or not at all.
type OrderStore interface {
	Insert(ctx context.Context, collection string, doc models.OrderDocument) (string, error)
	Query(ctx context.Context, collection string, filter models.Filter) ([]models.OrderDocument, error)
	UpdateFulfillment(ctx context.Context, collection string, update models.FulfillmentUpdate) error
}

// documentField resolves a dotted field path against a stored document.
func documentField(doc models.OrderDocument, field string) (string, error) {
	switch field {
	case "_id", "id":
		return doc.ID, nil
	case models.CustomerEmailField:
		return doc.Customer.Email, nil
	case "customer.name":
		return doc.Customer.Name, nil
	case "status":
		if doc.Status == nil {
			return "", nil
		}
		return *doc.Status, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFilter, field)
	}
}

// applyFulfillment copies the non-empty fields of update onto doc.
func applyFulfillment(doc *models.OrderDocument, update models.FulfillmentUpdate) {
	if update.Status != "" {
		status := update.Status
		doc.Status = &status
	}
	if update.ShippingProvider != "" {
		provider := update.ShippingProvider
		doc.ShippingProvider = &provider
	}
	if update.TrackingNumber != "" {
		tracking := update.TrackingNumber
		doc.TrackingNumber = &tracking
	}
}
