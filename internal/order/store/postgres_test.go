package store_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/example/courierlive/internal/order/domain"
	"github.com/example/courierlive/internal/order/store"
)

func startPostgres(t *testing.T, ctx context.Context) *postgrescontainer.PostgresContainer {
	pg, err := postgrescontainer.RunContainer(ctx,
		testcontainers.WithImage("postgres:16"),
		postgrescontainer.WithDatabase("courierlive"),
		postgrescontainer.WithUsername("postgres"),
		postgrescontainer.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").WithOccurrence(2)))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, pg.Terminate(ctx))
	})
	return pg
}

func openDB(t *testing.T, ctx context.Context, pg *postgrescontainer.PostgresContainer) *sql.DB {
	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	require.NoError(t, db.PingContext(ctx))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newPostgresStore(t *testing.T, ctx context.Context) *store.PostgresStore {
	pg := startPostgres(t, ctx)
	db := openDB(t, ctx, pg)
	s := store.NewPostgresStore(db)
	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestPostgresStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newPostgresStore(t, ctx)
	now := time.Now().UTC()

	created, err := s.CreateOrder(ctx, domain.Order{ID: "abc123", CreatedAt: now, UpdatedAt: now})
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, created.Status)

	_, err = s.CreateOrder(ctx, domain.Order{ID: "abc123", CreatedAt: now, UpdatedAt: now})
	require.ErrorIs(t, err, domain.ErrAlreadyExists)

	order, err := s.GetOrderByID(ctx, "abc123")
	require.NoError(t, err)
	require.Nil(t, order.CurrentLocation)
	require.Empty(t, order.RouteHistory)

	reports := []domain.Report{
		{Latitude: 6.19, Longitude: 80.08, Heading: 45},
		{Latitude: 6.20, Longitude: 80.09, Heading: 50},
		{Latitude: 6.21, Longitude: 80.10, Heading: 55},
	}
	for _, report := range reports {
		pos, err := s.ApplyUpdate(ctx, "abc123", report)
		require.NoError(t, err)
		require.Equal(t, report.Latitude, pos.Lat)
	}

	order, err = s.GetOrderByID(ctx, "abc123")
	require.NoError(t, err)
	require.NotNil(t, order.CurrentLocation)
	require.Equal(t, 6.21, order.CurrentLocation.Lat)
	require.Equal(t, 80.10, order.CurrentLocation.Lng)
	require.Equal(t, 55.0, order.CurrentLocation.Heading)
	require.Len(t, order.RouteHistory, 3)
	require.Equal(t, 6.19, order.RouteHistory[0].Lat)
	require.Equal(t, 6.21, order.RouteHistory[2].Lat)
}

func TestPostgresStoreMissingAndMalformed(t *testing.T) {
	ctx := context.Background()
	s := newPostgresStore(t, ctx)

	_, err := s.ApplyUpdate(ctx, "abc123", domain.Report{Latitude: 1})
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.GetOrderByID(ctx, "abc123")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.ApplyUpdate(ctx, "not-a-real-id", domain.Report{Latitude: 1})
	require.ErrorIs(t, err, domain.ErrMalformedID)
}
