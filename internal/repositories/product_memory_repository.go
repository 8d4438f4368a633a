package repositories

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"storefront/internal/models"

	"github.com/google/uuid"
)

// MemoryProductRepository keeps the catalog in a map. Used by tests and as the
// catalog when no database is wired.
type MemoryProductRepository struct {
	mu       sync.RWMutex
	products map[string]models.Product
}

// NewMemoryProductRepository creates an empty MemoryProductRepository.
func NewMemoryProductRepository() *MemoryProductRepository {
	return &MemoryProductRepository{products: make(map[string]models.Product)}
}

func (r *MemoryProductRepository) GetByID(id string) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	return &product, nil
}

func (r *MemoryProductRepository) SearchByName(term string) ([]models.Product, error) {
	term = strings.ToLower(term)

	r.mu.RLock()
	found := make([]models.Product, 0, len(r.products))
	for _, p := range r.products {
		if strings.Contains(strings.ToLower(p.Name), term) {
			found = append(found, p)
		}
	}
	r.mu.RUnlock()

	sort.Slice(found, func(i, j int) bool {
		if found[i].Name != found[j].Name {
			return found[i].Name < found[j].Name
		}
		return found[i].ID < found[j].ID
	})
	return found, nil
}

func (r *MemoryProductRepository) Count() (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.products)), nil
}

// Create stores a copy of product, assigning an ID when it has none.
func (r *MemoryProductRepository) Create(product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if _, exists := r.products[product.ID]; exists {
		return fmt.Errorf("product %s already exists", product.ID)
	}
	r.products[product.ID] = *product
	return nil
}
