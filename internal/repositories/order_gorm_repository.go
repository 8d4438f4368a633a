package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// orderRow keeps an order document as a JSON body next to the columns it is queried by.
type orderRow struct {
	ID            string `gorm:"primaryKey;type:varchar(36)"`
	Collection    string `gorm:"index:idx_collection_email;type:varchar(64)"`
	CustomerEmail string `gorm:"index:idx_collection_email;type:varchar(255)"`
	Body          []byte
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (orderRow) TableName() string {
	return "order_documents"
}

// GORMOrderStore is a GORM implementation of OrderStore for SQL databases.
type GORMOrderStore struct {
	db *gorm.DB
}

// NewGORMOrderStore creates a new instance of GORMOrderStore.
func NewGORMOrderStore(db *gorm.DB) *GORMOrderStore {
	return &GORMOrderStore{
		db: db,
	}
}

// AutoMigrate creates the order_documents table.
func (r *GORMOrderStore) AutoMigrate() error {
	if err := r.db.AutoMigrate(&orderRow{}); err != nil {
		return fmt.Errorf("failed to migrate order documents: %w", err)
	}
	return nil
}

// Insert writes doc in a single statement and returns its ID.
func (r *GORMOrderStore) Insert(ctx context.Context, collection string, doc models.OrderDocument) (string, error) {
	doc.ID = ""
	body, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal order document: %w", err)
	}

	row := orderRow{
		ID:            uuid.New().String(),
		Collection:    collection,
		CustomerEmail: doc.Customer.Email,
		Body:          body,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", fmt.Errorf("failed to insert order document: %w", err)
	}
	return row.ID, nil
}

// Query supports filtering by document ID or customer email.
func (r *GORMOrderStore) Query(ctx context.Context, collection string, filter models.Filter) ([]models.OrderDocument, error) {
	tx := r.db.WithContext(ctx).Where("collection = ?", collection)
	switch filter.Field {
	case "_id", "id":
		tx = tx.Where("id = ?", filter.Value)
	case models.CustomerEmailField:
		tx = tx.Where("customer_email = ?", filter.Value)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFilter, filter.Field)
	}

	var rows []orderRow
	if err := tx.Order("created_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query order documents: %w", err)
	}

	docs := make([]models.OrderDocument, 0, len(rows))
	for _, row := range rows {
		doc, err := decodeOrderRow(row)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// UpdateFulfillment rewrites the status and shipping fields of a stored order.
func (r *GORMOrderStore) UpdateFulfillment(ctx context.Context, collection string, update models.FulfillmentUpdate) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row orderRow
		err := tx.First(&row, "id = ? AND collection = ?", update.OrderID, collection).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrOrderNotFound, update.OrderID)
		}
		if err != nil {
			return fmt.Errorf("failed to load order document %s: %w", update.OrderID, err)
		}

		doc, err := decodeOrderRow(row)
		if err != nil {
			return err
		}
		applyFulfillment(&doc, update)
		doc.ID = ""
		body, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to marshal order document: %w", err)
		}
		if err := tx.Model(&row).Update("body", body).Error; err != nil {
			return fmt.Errorf("failed to update order document %s: %w", update.OrderID, err)
		}
		return nil
	})
}

func decodeOrderRow(row orderRow) (models.OrderDocument, error) {
	var doc models.OrderDocument
	if err := json.Unmarshal(row.Body, &doc); err != nil {
		return models.OrderDocument{}, fmt.Errorf("failed to unmarshal order document %s: %w", row.ID, err)
	}
	doc.ID = row.ID
	return doc, nil
}
