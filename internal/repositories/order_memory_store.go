package repositories

import (
	"context"
	"fmt"
	"sync"

	"storefront/internal/models"

	"github.com/google/uuid"
)

// MemoryOrderStore is an in-memory implementation of OrderStore.
// Documents keep their insertion order per collection.
type MemoryOrderStore struct {
	mu          sync.RWMutex
	collections map[string][]models.OrderDocument
}

// NewMemoryOrderStore creates a new instance of MemoryOrderStore.
func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{
		collections: make(map[string][]models.OrderDocument),
	}
}

// Insert stores a copy of doc and returns its generated ID.
func (s *MemoryOrderStore) Insert(ctx context.Context, collection string, doc models.OrderDocument) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc.ID = uuid.New().String()
	doc.Items = append([]models.LineItemDocument(nil), doc.Items...)
	s.collections[collection] = append(s.collections[collection], doc)
	return doc.ID, nil
}

// Query returns every document in collection whose filter field matches.
func (s *MemoryOrderStore) Query(ctx context.Context, collection string, filter models.Filter) ([]models.OrderDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.OrderDocument
	for _, doc := range s.collections[collection] {
		value, err := documentField(doc, filter.Field)
		if err != nil {
			return nil, err
		}
		if value == filter.Value {
			result = append(result, doc)
		}
	}
	return result, nil
}

// UpdateFulfillment sets status and shipping fields on a stored order.
func (s *MemoryOrderStore) UpdateFulfillment(ctx context.Context, collection string, update models.FulfillmentUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.collections[collection]
	for i := range docs {
		if docs[i].ID == update.OrderID {
			applyFulfillment(&docs[i], update)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrOrderNotFound, update.OrderID)
}

// Seed stores doc as-is, keeping its ID. Used to load legacy documents.
func (s *MemoryOrderStore) Seed(collection string, doc models.OrderDocument) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	s.collections[collection] = append(s.collections[collection], doc)
}

// Count returns the number of documents in collection.
func (s *MemoryOrderStore) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}
