package store

import (
	"context"
	"sync"

	"github.com/example/courierlive/internal/order/domain"
)

// MemoryStore provides an in-memory order store suitable for tests and
// local demos.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
	clock  domain.Clock
}

// NewMemoryStore constructs an empty memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]domain.Order), clock: domain.SystemClock{}}
}

// CreateOrder stores the order and returns it.
func (m *MemoryStore) CreateOrder(_ context.Context, order domain.Order) (domain.Order, error) {
	if err := domain.ValidateID(order.ID); err != nil {
		return domain.Order{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[order.ID]; ok {
		return domain.Order{}, domain.ErrAlreadyExists
	}
	if order.Status == "" {
		order.Status = domain.StatusPending
	}
	m.orders[order.ID] = order
	return order, nil
}

// GetOrderByID retrieves an order.
func (m *MemoryStore) GetOrderByID(_ context.Context, id string) (domain.Order, error) {
	if err := domain.ValidateID(id); err != nil {
		return domain.Order{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	order, ok := m.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	order.RouteHistory = append([]domain.RoutePoint(nil), order.RouteHistory...)
	if order.CurrentLocation != nil {
		loc := *order.CurrentLocation
		order.CurrentLocation = &loc
	}
	return order, nil
}

// ApplyUpdate overwrites the current position and appends one route
// history entry under the store lock.
func (m *MemoryStore) ApplyUpdate(_ context.Context, id string, report domain.Report) (domain.Position, error) {
	if err := domain.ValidateID(id); err != nil {
		return domain.Position{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	now := m.clock.Now()
	pos := domain.Position{Lat: report.Latitude, Lng: report.Longitude, Heading: report.Heading, LastUpdated: now}
	order.CurrentLocation = &pos
	order.RouteHistory = append(order.RouteHistory, domain.RoutePoint{Lat: report.Latitude, Lng: report.Longitude, Timestamp: now})
	order.UpdatedAt = now
	m.orders[id] = order
	return pos, nil
}
