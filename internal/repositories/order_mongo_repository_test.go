package repositories

import (
	"context"
	"testing"

	"storefront/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

func setupMongoOrderStore(t *testing.T) *MongoOrderStore {
	if testing.Short() {
		t.Skip("skipping MongoDB container test in short mode")
	}
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	if err != nil {
		t.Skipf("mongo container unavailable: %s", err)
	}
	t.Cleanup(func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)

	store := NewMongoOrderStore(db)
	require.NoError(t, store.CreateIndexes(ctx))
	return store
}

func TestMongoOrderStore(t *testing.T) {
	store := setupMongoOrderStore(t)
	ctx := context.Background()
	email := gofakeit.Email()

	t.Run("insert and query by customer email", func(t *testing.T) {
		doc := fakeOrderDocument(email)
		id, err := store.Insert(ctx, models.OrdersCollection, doc)
		require.NoError(t, err)

		docs, err := store.Query(ctx, models.OrdersCollection, models.Filter{Field: models.CustomerEmailField, Value: email})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, id, docs[0].ID)
		assert.Equal(t, doc.Customer, docs[0].Customer)
		assert.Equal(t, doc.Items, docs[0].Items)
		assert.Equal(t, models.StatusPending, *docs[0].Status)
		assert.Nil(t, docs[0].Timestamp)
	})

	t.Run("legacy document without createdAt", func(t *testing.T) {
		legacyEmail := gofakeit.Email()
		doc := fakeOrderDocument(legacyEmail)
		doc.Timestamp, doc.CreatedAt = doc.CreatedAt, nil
		doc.Status = nil
		_, err := store.Insert(ctx, models.OrdersCollection, doc)
		require.NoError(t, err)

		docs, err := store.Query(ctx, models.OrdersCollection, models.Filter{Field: models.CustomerEmailField, Value: legacyEmail})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Nil(t, docs[0].CreatedAt)
		assert.Nil(t, docs[0].Status)
		require.NotNil(t, docs[0].Timestamp)
	})

	t.Run("update fulfillment", func(t *testing.T) {
		id, err := store.Insert(ctx, models.OrdersCollection, fakeOrderDocument(gofakeit.Email()))
		require.NoError(t, err)

		require.NoError(t, store.UpdateFulfillment(ctx, models.OrdersCollection, models.FulfillmentUpdate{
			OrderID:          id,
			Status:           "shipped",
			ShippingProvider: "UPS",
		}))

		docs, err := store.Query(ctx, models.OrdersCollection, models.Filter{Field: "_id", Value: id})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "shipped", *docs[0].Status)
		assert.Equal(t, "UPS", *docs[0].ShippingProvider)
	})

	t.Run("update unknown order", func(t *testing.T) {
		err := store.UpdateFulfillment(ctx, models.OrdersCollection, models.FulfillmentUpdate{
			OrderID: "65a1b2c3d4e5f60718293a4b",
			Status:  "shipped",
		})
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("query by malformed id matches nothing", func(t *testing.T) {
		docs, err := store.Query(ctx, models.OrdersCollection, models.Filter{Field: "_id", Value: "not-an-object-id"})
		require.NoError(t, err)
		assert.Empty(t, docs)
	})
}
