package relay

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/example/courierlive/internal/order/domain"
)

// Event type names on the client connection.
const (
	EventJoinOrder             = "join_order"
	EventUpdateLocation        = "update_location"
	EventDriverLocationUpdated = "driver_location_updated"
)

// Event is a typed message delivered to room members. Transport framing
// is up to the adapter.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// JoinOrder is the inbound payload for join_order.
type JoinOrder struct {
	OrderID string `json:"orderId"`
}

// UpdateLocation is the inbound publisher payload. Coordinate fields
// are permissive: a missing or unparsable value decodes as 0 and the
// update still relays.
type UpdateLocation struct {
	OrderID   string     `json:"orderId"`
	Latitude  LooseFloat `json:"latitude"`
	Longitude LooseFloat `json:"longitude"`
	Heading   LooseFloat `json:"heading"`
}

// Report converts the payload to a position report.
func (u UpdateLocation) Report() domain.Report {
	return domain.Report{
		Latitude:  float64(u.Latitude),
		Longitude: float64(u.Longitude),
		Heading:   float64(u.Heading),
	}
}

// LocationUpdated is the fan-out payload. Persisted reports whether the
// datastore write succeeded; on success the coordinates are the stored
// values, otherwise the raw incoming ones.
type LocationUpdated struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Heading   float64 `json:"heading"`
	Persisted bool    `json:"persisted"`
}

// LooseFloat decodes a JSON number or numeric string as float64 and
// coerces anything else to 0.
type LooseFloat float64

// UnmarshalJSON never fails; malformed input becomes 0.
func (f *LooseFloat) UnmarshalJSON(b []byte) error {
	var v float64
	if err := json.Unmarshal(b, &v); err == nil {
		*f = LooseFloat(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			*f = LooseFloat(parsed)
			return nil
		}
	}
	*f = 0
	return nil
}
