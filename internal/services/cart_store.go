package services

import (
	"sync"

	"storefront/internal/metrics"
	"storefront/internal/models"
)

// CartStore holds one session's line items. Each product appears at most once
// and every quantity is at least 1.
type CartStore struct {
	mu       sync.Mutex
	items    []models.CartLineItem
	onChange func([]models.CartLineItem)
	metrics  *metrics.StoreMetrics

	// notifyMu keeps change notifications in mutation order.
	notifyMu sync.Mutex
}

// NewCartStore creates an empty cart.
func NewCartStore(m *metrics.StoreMetrics) *CartStore {
	return &CartStore{metrics: m}
}

// OnChange registers fn to receive a copy of the items after every mutation.
func (c *CartStore) OnChange(fn func([]models.CartLineItem)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// AddItem merges quantity into the product's line, or appends a new line.
// It reports false, leaving the cart unchanged, when quantity < 1.
func (c *CartStore) AddItem(product models.Product, quantity int) bool {
	if quantity < 1 {
		return false
	}

	c.mu.Lock()
	merged := false
	for i := range c.items {
		if c.items[i].ProductID == product.ID {
			c.items[i].Quantity += quantity
			merged = true
			break
		}
	}
	if !merged {
		c.items = append(c.items, models.CartLineItem{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.UnitPrice,
			Quantity:  quantity,
			ImageURL:  product.ImageURL,
		})
	}
	c.changedLocked("add")
	return true
}

// UpdateQuantity sets the quantity of an existing line. Quantities below 1 and
// unknown products are ignored; an item is never removed here.
func (c *CartStore) UpdateQuantity(productID string, quantity int) bool {
	if quantity < 1 {
		return false
	}

	c.mu.Lock()
	for i := range c.items {
		if c.items[i].ProductID == productID {
			c.items[i].Quantity = quantity
			c.changedLocked("update")
			return true
		}
	}
	c.mu.Unlock()
	return false
}

// RemoveItem deletes the product's line if present.
func (c *CartStore) RemoveItem(productID string) bool {
	c.mu.Lock()
	for i := range c.items {
		if c.items[i].ProductID == productID {
			c.items = append(c.items[:i], c.items[i+1:]...)
			c.changedLocked("remove")
			return true
		}
	}
	c.mu.Unlock()
	return false
}

// Clear empties the cart.
func (c *CartStore) Clear() {
	c.mu.Lock()
	c.items = nil
	c.changedLocked("clear")
}

// RemoveSubmitted takes the quantities of an ordered snapshot out of the cart.
// Lines added or increased after the snapshot was taken keep the difference.
func (c *CartStore) RemoveSubmitted(submitted []models.CartLineItem) {
	ordered := make(map[string]int, len(submitted))
	for _, item := range submitted {
		ordered[item.ProductID] += item.Quantity
	}

	c.mu.Lock()
	kept := c.items[:0]
	for _, item := range c.items {
		item.Quantity -= ordered[item.ProductID]
		if item.Quantity >= 1 {
			kept = append(kept, item)
		}
	}
	c.items = kept
	c.changedLocked("checkout")
}

// Snapshot returns the items in insertion order together with their totals.
func (c *CartStore) Snapshot() models.CartSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := c.copyLocked()
	quantity := 0
	for _, item := range items {
		quantity += item.Quantity
	}
	return models.CartSnapshot{
		Items:         items,
		TotalPrice:    models.SumItems(items),
		TotalQuantity: quantity,
	}
}

// Restore replaces the cart with persisted items. Duplicate product lines are
// merged and lines with quantity < 1 are dropped. OnChange is not called.
func (c *CartStore) Restore(items []models.CartLineItem) {
	restored := make([]models.CartLineItem, 0, len(items))
	index := make(map[string]int, len(items))
	for _, item := range items {
		if item.Quantity < 1 || item.ProductID == "" {
			continue
		}
		if i, ok := index[item.ProductID]; ok {
			restored[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(restored)
		restored = append(restored, item)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = restored
}

func (c *CartStore) copyLocked() []models.CartLineItem {
	items := make([]models.CartLineItem, len(c.items))
	copy(items, c.items)
	return items
}

// changedLocked releases the lock and then notifies the change hook.
func (c *CartStore) changedLocked(operation string) {
	items := c.copyLocked()
	fn := c.onChange
	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()

	c.metrics.ObserveCartMutation(operation)
	if fn != nil {
		fn(items)
	}
}
