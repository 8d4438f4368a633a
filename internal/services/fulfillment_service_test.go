package services_test

import (
	"context"
	"testing"
	"time"

	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFulfillmentService_Apply(t *testing.T) {
	store := repositories.NewMemoryOrderStore()
	gateway := services.NewOrderGateway(store, nil, time.Second)
	email := gofakeit.Email()
	id, err := gateway.Submit(context.Background(), fakeCustomer(email), nil, decimal.Zero)
	require.NoError(t, err)

	fulfillment := services.NewFulfillmentService(store, time.Second, nil)
	err = fulfillment.Apply(context.Background(), models.FulfillmentUpdate{
		OrderID:          id,
		Status:           " Shipped ",
		ShippingProvider: "Kanto Post",
		TrackingNumber:   "KP-42",
	})
	require.NoError(t, err)

	orders, err := gateway.FetchOrders(context.Background(), email)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, models.StatusShipped, orders[0].Status)
	assert.Equal(t, "Kanto Post", orders[0].ShippingProvider)
	assert.Equal(t, "KP-42", orders[0].TrackingNumber)
}

func TestFulfillmentService_RejectsInvalidUpdates(t *testing.T) {
	store := new(MockOrderStore)
	fulfillment := services.NewFulfillmentService(store, time.Second, nil)

	err := fulfillment.Apply(context.Background(), models.FulfillmentUpdate{OrderID: "o1", Status: "teleported"})
	assert.ErrorIs(t, err, services.ErrInvalidStatus)

	err = fulfillment.Apply(context.Background(), models.FulfillmentUpdate{Status: "shipped"})
	assert.ErrorContains(t, err, "invalid fulfillment update")

	store.AssertNotCalled(t, "UpdateFulfillment")
}

func TestFulfillmentService_UnknownOrder(t *testing.T) {
	fulfillment := services.NewFulfillmentService(repositories.NewMemoryOrderStore(), time.Second, nil)

	err := fulfillment.Apply(context.Background(), models.FulfillmentUpdate{OrderID: "missing", Status: "delivered"})
	assert.ErrorIs(t, err, repositories.ErrOrderNotFound)
}
