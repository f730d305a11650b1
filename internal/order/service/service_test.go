package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/example/courierlive/internal/order/domain"
	"github.com/example/courierlive/internal/order/service"
	"github.com/example/courierlive/internal/order/store"
)

func TestCreateOrderAssignsWellFormedID(t *testing.T) {
	svc := service.New(store.NewMemoryStore(), domain.SystemClock{}, store.NewMemoryIdempotencyRepo())

	resp, err := svc.CreateOrder(context.Background(), "")
	require.NoError(t, err)
	require.NoError(t, domain.ValidateID(resp.OrderID))
	require.Equal(t, domain.StatusPending, resp.Status)

	order, err := svc.GetOrder(context.Background(), resp.OrderID)
	require.NoError(t, err)
	require.Equal(t, resp.OrderID, order.ID)
	require.Nil(t, order.CurrentLocation)
}

func TestCreateOrderIdempotencyKeyReturnsCachedOrder(t *testing.T) {
	svc := service.New(store.NewMemoryStore(), domain.SystemClock{}, store.NewMemoryIdempotencyRepo())
	ctx := context.Background()

	first, err := svc.CreateOrder(ctx, "client-key-1")
	require.NoError(t, err)
	second, err := svc.CreateOrder(ctx, "client-key-1")
	require.NoError(t, err)
	require.Equal(t, first.OrderID, second.OrderID)

	third, err := svc.CreateOrder(ctx, "client-key-2")
	require.NoError(t, err)
	require.NotEqual(t, first.OrderID, third.OrderID)
}

func TestGetOrderPropagatesStoreErrors(t *testing.T) {
	svc := service.New(store.NewMemoryStore(), domain.SystemClock{}, nil)

	_, err := svc.GetOrder(context.Background(), "not-a-real-id")
	require.ErrorIs(t, err, domain.ErrMalformedID)

	_, err = svc.GetOrder(context.Background(), "abc123")
	require.ErrorIs(t, err, domain.ErrNotFound)
}
