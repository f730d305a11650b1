package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/example/courierlive/internal/order/domain"
	"github.com/example/courierlive/internal/order/service"
)

// HTTP exposes the order record endpoints consumed by client apps to
// provision and look up orders ahead of joining a room.
type HTTP struct {
	svc *service.Service
}

// NewHTTP constructs a handler.
func NewHTTP(svc *service.Service) *HTTP {
	return &HTTP{svc: svc}
}

// Router builds the chi router with all endpoints and middlewares.
func (h *HTTP) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Post("/v1/orders", h.createOrder)
	r.Get("/v1/orders/{id}", h.getOrder)
	return r
}

func (h *HTTP) createOrder(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.CreateOrder(r.Context(), r.Header.Get("Idempotency-Key"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

type orderResponse struct {
	ID              string              `json:"id"`
	Status          domain.OrderStatus  `json:"status"`
	CurrentLocation *domain.Position    `json:"current_location,omitempty"`
	RouteHistory    []domain.RoutePoint `json:"route_history"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

func (h *HTTP) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if order.RouteHistory == nil {
		order.RouteHistory = []domain.RoutePoint{}
	}
	writeJSON(w, http.StatusOK, orderResponse{
		ID:              order.ID,
		Status:          order.Status,
		CurrentLocation: order.CurrentLocation,
		RouteHistory:    order.RouteHistory,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrMalformedID):
		http.Error(w, "invalid order id", http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "order not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrAlreadyExists):
		http.Error(w, "order already exists", http.StatusConflict)
	case errors.Is(err, domain.ErrUnavailable):
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
