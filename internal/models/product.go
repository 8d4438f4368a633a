package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a catalog entry that can be put into a cart.
// The core never modifies products; it only copies them into line items.
type Product struct {
	ID        string          `json:"id" gorm:"primaryKey;type:varchar(64)" validate:"required"`
	Name      string          `json:"name" validate:"required,max=200"`
	UnitPrice decimal.Decimal `json:"unit_price" gorm:"type:decimal(12,2)"`
	ImageURL  string          `json:"image_url" validate:"omitempty,url"`
	CreatedAt time.Time       `json:"-"`
	UpdatedAt time.Time       `json:"-"`
}
