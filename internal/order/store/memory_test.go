package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/example/courierlive/internal/order/domain"
	"github.com/example/courierlive/internal/order/store"
)

func TestMemoryStoreApplyUpdateAppendsHistory(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	_, err := s.CreateOrder(ctx, domain.Order{ID: "abc123"})
	require.NoError(t, err)

	_, err = s.ApplyUpdate(ctx, "abc123", domain.Report{Latitude: 6.19, Longitude: 80.08, Heading: 45})
	require.NoError(t, err)
	pos, err := s.ApplyUpdate(ctx, "abc123", domain.Report{Latitude: 6.20, Longitude: 80.09, Heading: 50})
	require.NoError(t, err)
	require.Equal(t, 6.20, pos.Lat)

	order, err := s.GetOrderByID(ctx, "abc123")
	require.NoError(t, err)
	require.NotNil(t, order.CurrentLocation)
	require.Equal(t, 6.20, order.CurrentLocation.Lat)
	require.Len(t, order.RouteHistory, 2)
	require.Equal(t, 6.19, order.RouteHistory[0].Lat)
}

func TestMemoryStoreReturnedOrderIsIsolated(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	_, err := s.CreateOrder(ctx, domain.Order{ID: "abc123"})
	require.NoError(t, err)
	_, err = s.ApplyUpdate(ctx, "abc123", domain.Report{Latitude: 1, Longitude: 2})
	require.NoError(t, err)

	first, err := s.GetOrderByID(ctx, "abc123")
	require.NoError(t, err)
	first.RouteHistory[0].Lat = 99
	first.CurrentLocation.Lat = 99

	second, err := s.GetOrderByID(ctx, "abc123")
	require.NoError(t, err)
	require.Equal(t, 1.0, second.RouteHistory[0].Lat)
	require.Equal(t, 1.0, second.CurrentLocation.Lat)
}

func TestMemoryStoreErrors(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	_, err := s.GetOrderByID(ctx, "abc123")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.ApplyUpdate(ctx, "not-a-real-id", domain.Report{})
	require.ErrorIs(t, err, domain.ErrMalformedID)

	_, err = s.CreateOrder(ctx, domain.Order{ID: "abc123"})
	require.NoError(t, err)
	_, err = s.CreateOrder(ctx, domain.Order{ID: "abc123"})
	require.ErrorIs(t, err, domain.ErrAlreadyExists)
}
