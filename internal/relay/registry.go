package relay

import (
	"hash/fnv"
	"sync"
)

// Conn is one client attached to the registry. Send must not block;
// adapters queue outbound events and report failure instead of stalling
// the room.
type Conn interface {
	ID() string
	Send(Event) error
}

const defaultShardCount = 16

// Registry maps order ids to the set of connections in that room. Rooms
// are sharded by order id with a mutex per shard; a reverse index keeps
// Leave cheap on disconnect. The registry holds membership entries
// only, never connection lifecycle.
type Registry struct {
	shards []registryShard

	mu     sync.Mutex
	joined map[Conn]map[string]struct{}
}

type registryShard struct {
	mu    sync.Mutex
	rooms map[string]map[Conn]struct{}
}

// NewRegistry constructs a registry with the given shard count.
func NewRegistry(shardCount int) *Registry {
	if shardCount <= 0 {
		shardCount = defaultShardCount
	}
	shards := make([]registryShard, shardCount)
	for i := range shards {
		shards[i].rooms = make(map[string]map[Conn]struct{})
	}
	return &Registry{shards: shards, joined: make(map[Conn]map[string]struct{})}
}

func (r *Registry) shard(orderID string) *registryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(orderID))
	return &r.shards[h.Sum32()%uint32(len(r.shards))]
}

// Join adds the connection to the room for orderID, creating the room
// if absent. Idempotent; always succeeds.
func (r *Registry) Join(orderID string, conn Conn) {
	r.mu.Lock()
	set := r.joined[conn]
	if set == nil {
		set = make(map[string]struct{})
		r.joined[conn] = set
	}
	set[orderID] = struct{}{}
	r.mu.Unlock()

	sh := r.shard(orderID)
	sh.mu.Lock()
	room := sh.rooms[orderID]
	if room == nil {
		room = make(map[Conn]struct{})
		sh.rooms[orderID] = room
		roomsActive.Inc()
	}
	room[conn] = struct{}{}
	sh.mu.Unlock()
}

// Leave removes the connection from every room it joined. Idempotent;
// a room whose member set becomes empty is discarded immediately.
func (r *Registry) Leave(conn Conn) {
	r.mu.Lock()
	ids := r.joined[conn]
	delete(r.joined, conn)
	r.mu.Unlock()

	for orderID := range ids {
		sh := r.shard(orderID)
		sh.mu.Lock()
		if room, ok := sh.rooms[orderID]; ok {
			delete(room, conn)
			if len(room) == 0 {
				delete(sh.rooms, orderID)
				roomsActive.Dec()
			}
		}
		sh.mu.Unlock()
	}
}

// Broadcast delivers event to every current member of the room. An
// empty room is a silent no-op. Holding the shard lock across the
// enqueue loop keeps per-room delivery order equal to call order.
func (r *Registry) Broadcast(orderID string, event Event) {
	sh := r.shard(orderID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	room := sh.rooms[orderID]
	if len(room) == 0 {
		return
	}
	for conn := range room {
		if err := conn.Send(event); err != nil {
			deliveriesDropped.Inc()
		}
	}
	broadcastsTotal.Inc()
}

// RoomSize reports the current member count for orderID.
func (r *Registry) RoomSize(orderID string) int {
	sh := r.shard(orderID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return len(sh.rooms[orderID])
}
