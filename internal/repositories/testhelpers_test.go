package repositories

import (
	"fmt"
	"testing"
	"time"

	"storefront/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func fakeOrderDocument(email string) models.OrderDocument {
	createdAt := time.Now().UTC().Truncate(time.Millisecond)
	status := models.StatusPending
	price := float64(gofakeit.IntRange(100, 9999)) / 100
	quantity := gofakeit.IntRange(1, 5)
	total := price * float64(quantity)

	return models.OrderDocument{
		Customer: models.CustomerDocument{
			Name:    gofakeit.Name(),
			Address: gofakeit.Street(),
			Phone:   gofakeit.Phone(),
			Email:   email,
		},
		Items: []models.LineItemDocument{{
			ID:       gofakeit.UUID(),
			Name:     gofakeit.ProductName(),
			Price:    price,
			Quantity: quantity,
			Image:    gofakeit.URL(),
		}},
		Total:     &total,
		CreatedAt: &createdAt,
		Status:    &status,
	}
}
