package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// OrdersCollection is the document collection orders are written to.
	OrdersCollection = "orders"

	// CustomerEmailField is the document path used to look up a customer's orders.
	CustomerEmailField = "customer.email"

	// StatusUnknown is shown for stored orders that carry no status.
	StatusUnknown = "unknown"

	// NotAvailable is shown for missing shipping fields.
	NotAvailable = "N/A"

	// StatusPending is written on every newly submitted order.
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusShipped    = "shipped"
	StatusDelivered  = "delivered"
	StatusCancelled  = "cancelled"
)

// IsKnownStatus reports whether status is one fulfillment may set.
func IsKnownStatus(status string) bool {
	switch status {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// CustomerDetails holds the delivery details collected at checkout.
// Email always comes from the authenticated identity.
type CustomerDetails struct {
	Name    string `json:"name" validate:"required"`
	Address string `json:"address" validate:"required"`
	Phone   string `json:"phone" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
}

// Order is a hydrated, display-ready order.
type Order struct {
	ID               string          `json:"id"`
	Customer         CustomerDetails `json:"customer"`
	Items            []CartLineItem  `json:"items"`
	Total            decimal.Decimal `json:"total"`
	CreatedAt        time.Time       `json:"created_at"`
	Status           string          `json:"status"`
	ShippingProvider string          `json:"shipping_provider"`
	TrackingNumber   string          `json:"tracking_number"`
}

// OrderDocument is the stored shape of an order. Optional fields are pointers
// because older documents may not carry them.
type OrderDocument struct {
	ID               string             `bson:"-" json:"id,omitempty"`
	Customer         CustomerDocument   `bson:"customer" json:"customer"`
	Items            []LineItemDocument `bson:"items" json:"items"`
	Total            *float64           `bson:"total,omitempty" json:"total,omitempty"`
	CreatedAt        *time.Time         `bson:"createdAt,omitempty" json:"createdAt,omitempty"`
	Timestamp        *time.Time         `bson:"timestamp,omitempty" json:"timestamp,omitempty"`
	Status           *string            `bson:"status,omitempty" json:"status,omitempty"`
	ShippingProvider *string            `bson:"shippingProvider,omitempty" json:"shippingProvider,omitempty"`
	TrackingNumber   *string            `bson:"trackingNumber,omitempty" json:"trackingNumber,omitempty"`
}

// CustomerDocument is the stored shape of CustomerDetails.
type CustomerDocument struct {
	Name    string `bson:"name" json:"name"`
	Address string `bson:"address" json:"address"`
	Phone   string `bson:"phone" json:"phone"`
	Email   string `bson:"email" json:"email"`
}

// LineItemDocument is the stored shape of a line item.
type LineItemDocument struct {
	ID       string  `bson:"id" json:"id"`
	Name     string  `bson:"name" json:"name"`
	Price    float64 `bson:"price" json:"price"`
	Quantity int     `bson:"quantity" json:"quantity"`
	Image    string  `bson:"image,omitempty" json:"image,omitempty"`
}

// Filter selects documents whose Field equals Value.
type Filter struct {
	Field string
	Value string
}

// FulfillmentUpdate carries status and shipping changes made after checkout.
type FulfillmentUpdate struct {
	OrderID          string `json:"order_id" validate:"required"`
	Status           string `json:"status" validate:"required"`
	ShippingProvider string `json:"shipping_provider,omitempty"`
	TrackingNumber   string `json:"tracking_number,omitempty"`
}

// OrderCreatedEvent is published after an order has been stored.
type OrderCreatedEvent struct {
	OrderID       string    `json:"order_id"`
	CustomerEmail string    `json:"customer_email"`
	Total         string    `json:"total"`
	ItemCount     int       `json:"item_count"`
	CreatedAt     time.Time `json:"created_at"`
}
