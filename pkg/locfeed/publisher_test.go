package locfeed_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	natscontainer "github.com/testcontainers/testcontainers-go/modules/nats"

	"github.com/example/courierlive/internal/order/domain"
	"github.com/example/courierlive/pkg/locfeed"
)

func startNATS(t *testing.T, ctx context.Context) *natscontainer.NATSContainer {
	container, err := natscontainer.RunContainer(ctx, testcontainers.WithImage("nats:2.9"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(ctx))
	})
	return container
}

func TestPublisherDeliversLocationEvent(t *testing.T) {
	ctx := context.Background()
	container := startNATS(t, ctx)
	natsURL, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	nc, err := nats.Connect(natsURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = nc.Drain() })

	msgCh := make(chan *nats.Msg, 1)
	_, err = nc.Subscribe("orders.location", func(msg *nats.Msg) {
		msgCh <- msg
	})
	require.NoError(t, err)

	publisher := locfeed.NewPublisher(nc, "orders.location")
	updatedAt := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	err = publisher.Publish(ctx, "abc123", domain.Position{
		Lat:         6.19,
		Lng:         80.08,
		Heading:     45,
		LastUpdated: updatedAt,
	})
	require.NoError(t, err)

	select {
	case <-time.After(10 * time.Second):
		t.Fatal("expected location event")
	case msg := <-msgCh:
		require.Equal(t, "abc123", msg.Header.Get("x-order-id"))
		var event locfeed.LocationEvent
		require.NoError(t, json.Unmarshal(msg.Data, &event))
		require.Equal(t, "abc123", event.OrderID)
		require.Equal(t, 6.19, event.Latitude)
		require.Equal(t, 80.08, event.Longitude)
		require.Equal(t, 45.0, event.Heading)
		require.True(t, event.UpdatedAt.Equal(updatedAt))
	}
}

func TestNilConnectionIsNoop(t *testing.T) {
	publisher := locfeed.NewPublisher(nil, "orders.location")
	require.NoError(t, publisher.Publish(context.Background(), "abc123", domain.Position{}))
}
