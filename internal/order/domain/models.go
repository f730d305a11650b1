package domain

import (
	"context"
	"encoding/hex"
	"errors"
	"regexp"
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusAccepted  OrderStatus = "accepted"
	StatusPickedUp  OrderStatus = "picked_up"
	StatusInTransit OrderStatus = "in_transit"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
)

// Persistence failure taxonomy. The relay pipeline never surfaces these
// to the transport layer; it only needs to tell them apart.
var ErrMalformedID = errors.New("malformed order id")
var ErrNotFound = errors.New("order not found")
var ErrUnavailable = errors.New("order store unavailable")
var ErrAlreadyExists = errors.New("order already exists")

// orderIDPattern is the store primary-key format: a hex token between 6
// and 64 characters. Anything else is still usable as a room key for
// live-only relay but can never be persisted.
var orderIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{6,64}$`)

// ValidateID reports whether id conforms to the store key format.
func ValidateID(id string) error {
	if !orderIDPattern.MatchString(id) {
		return ErrMalformedID
	}
	return nil
}

// NewID generates a well-formed order identifier.
func NewID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// Position is the single live location of an order, overwritten on
// every successful persisted update.
type Position struct {
	Lat         float64   `json:"lat"`
	Lng         float64   `json:"lng"`
	Heading     float64   `json:"heading"`
	LastUpdated time.Time `json:"last_updated"`
}

// RoutePoint is one entry of the append-only route history.
type RoutePoint struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}

// Report is an incoming position report. Values are passed through
// without range validation; heading is degrees clockwise from north.
type Report struct {
	Latitude  float64
	Longitude float64
	Heading   float64
}

type Order struct {
	ID              string
	Status          OrderStatus
	CurrentLocation *Position
	RouteHistory    []RoutePoint
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Store is the persistence gateway for order records. ApplyUpdate must
// atomically overwrite the current position and append one history
// entry, serialized per order id so LastUpdated stays monotonic; it
// must never hold a lock spanning different orders.
type Store interface {
	CreateOrder(ctx context.Context, order Order) (Order, error)
	GetOrderByID(ctx context.Context, id string) (Order, error)
	ApplyUpdate(ctx context.Context, id string, report Report) (Position, error)
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
