package relay_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/example/courierlive/internal/relay"
)

type recordConn struct {
	id string

	mu     sync.Mutex
	events []relay.Event
}

func (c *recordConn) ID() string { return c.id }

func (c *recordConn) Send(event relay.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *recordConn) Events() []relay.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]relay.Event(nil), c.events...)
}

func TestBroadcastDeliversInOrderExactlyOnce(t *testing.T) {
	registry := relay.NewRegistry(4)
	first := &recordConn{id: "c1"}
	second := &recordConn{id: "c2"}
	other := &recordConn{id: "c3"}

	registry.Join("abc123", first)
	registry.Join("abc123", second)
	registry.Join("fff999", other)

	for i := 0; i < 5; i++ {
		registry.Broadcast("abc123", relay.Event{Type: relay.EventDriverLocationUpdated, Data: i})
	}

	for _, conn := range []*recordConn{first, second} {
		events := conn.Events()
		require.Len(t, events, 5)
		for i, event := range events {
			require.Equal(t, i, event.Data)
		}
	}
	require.Empty(t, other.Events())
}

func TestJoinIsIdempotent(t *testing.T) {
	registry := relay.NewRegistry(0)
	conn := &recordConn{id: "c1"}

	registry.Join("abc123", conn)
	registry.Join("abc123", conn)
	require.Equal(t, 1, registry.RoomSize("abc123"))

	registry.Broadcast("abc123", relay.Event{Type: relay.EventDriverLocationUpdated})
	require.Len(t, conn.Events(), 1)
}

func TestLeaveIsIdempotent(t *testing.T) {
	registry := relay.NewRegistry(4)
	member := &recordConn{id: "c1"}
	stranger := &recordConn{id: "c2"}
	bystander := &recordConn{id: "c3"}

	registry.Join("abc123", member)
	registry.Join("fff999", bystander)

	registry.Leave(member)
	registry.Leave(member)
	registry.Leave(stranger)

	require.Equal(t, 0, registry.RoomSize("abc123"))
	require.Equal(t, 1, registry.RoomSize("fff999"))

	registry.Broadcast("fff999", relay.Event{Type: relay.EventDriverLocationUpdated})
	require.Len(t, bystander.Events(), 1)
}

func TestBroadcastEmptyRoomIsNoop(t *testing.T) {
	registry := relay.NewRegistry(4)
	// A driver may emit before any customer joined.
	registry.Broadcast("abc123", relay.Event{Type: relay.EventDriverLocationUpdated})
}

func TestLeaveRemovesFromAllRooms(t *testing.T) {
	registry := relay.NewRegistry(4)
	conn := &recordConn{id: "c1"}

	registry.Join("abc123", conn)
	registry.Join("fff999", conn)
	registry.Leave(conn)

	require.Equal(t, 0, registry.RoomSize("abc123"))
	require.Equal(t, 0, registry.RoomSize("fff999"))
}
