package repositories

import (
	"errors"

	"storefront/internal/models"
)

var ErrProductNotFound = errors.New("product not found")

// ProductRepository is the local catalog. The cart only reads it; Create is
// used for seeding.
type ProductRepository interface {
	GetByID(id string) (*models.Product, error)
	// SearchByName matches term case-insensitively anywhere in the name,
	// ordered by name. An empty term matches everything.
	SearchByName(term string) ([]models.Product, error)
	Count() (int64, error)
	Create(product *models.Product) error
}
