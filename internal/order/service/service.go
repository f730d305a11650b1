package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/courierlive/internal/order/domain"
)

// IdempotencyRepository caches create responses keyed by client token.
type IdempotencyRepository interface {
	GetResponse(ctx context.Context, key string) ([]byte, bool, error)
	PutResponse(ctx context.Context, key string, payload []byte) error
}

// Service coordinates order CRUD between the HTTP handler and the
// store. It never touches the relay path; orders and rooms only meet on
// the shared identifier.
type Service struct {
	store      domain.Store
	clock      domain.Clock
	idempotent IdempotencyRepository
}

// New constructs a Service with the required collaborators.
func New(store domain.Store, clock domain.Clock, idem IdempotencyRepository) *Service {
	return &Service{store: store, clock: clock, idempotent: idem}
}

// CreateOrderResponse returns the created order identifier and status.
type CreateOrderResponse struct {
	OrderID string             `json:"order_id"`
	Status  domain.OrderStatus `json:"status"`
}

// CreateOrder provisions a new order record with a server-assigned
// well-formed identifier and pending status.
func (s *Service) CreateOrder(ctx context.Context, key string) (CreateOrderResponse, error) {
	if key != "" && s.idempotent != nil {
		if cached, ok, err := s.idempotent.GetResponse(ctx, key); err == nil && ok {
			var resp CreateOrderResponse
			if err := json.Unmarshal(cached, &resp); err == nil {
				return resp, nil
			}
		}
	}

	now := s.clock.Now()
	order := domain.Order{
		ID:        domain.NewID(),
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	created, err := s.store.CreateOrder(ctx, order)
	if err != nil {
		return CreateOrderResponse{}, fmt.Errorf("create order: %w", err)
	}

	resp := CreateOrderResponse{OrderID: created.ID, Status: created.Status}
	if key != "" && s.idempotent != nil {
		if payload, err := json.Marshal(resp); err == nil {
			_ = s.idempotent.PutResponse(ctx, key, payload)
		}
	}
	return resp, nil
}

// GetOrder retrieves an order by identifier.
func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	return s.store.GetOrderByID(ctx, id)
}
