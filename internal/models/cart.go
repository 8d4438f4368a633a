package models

import "github.com/shopspring/decimal"

// CartLineItem is one product's aggregated quantity within a cart.
type CartLineItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	ImageURL  string          `json:"image_url"`
}

// Subtotal returns unit price times quantity.
func (i CartLineItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CartSnapshot is a point-in-time copy of a cart.
type CartSnapshot struct {
	Items         []CartLineItem  `json:"items"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	TotalQuantity int             `json:"total_quantity"`
}

// SumItems returns the total price of the given line items.
func SumItems(items []CartLineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}
