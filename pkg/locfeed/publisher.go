package locfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/courierlive/internal/order/domain"
)

// LocationEvent is the payload published for every persisted position.
// Downstream consumers (analytics, notifications) subscribe here; the
// feed is best effort and is not a substitute for room fan-out.
type LocationEvent struct {
	OrderID   string    `json:"order_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Heading   float64   `json:"heading"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Publisher writes location events to a NATS subject.
type Publisher struct {
	conn    *nats.Conn
	subject string
}

// NewPublisher builds a Publisher using the provided NATS connection.
func NewPublisher(conn *nats.Conn, subject string) *Publisher {
	return &Publisher{conn: conn, subject: subject}
}

// Publish satisfies relay.FeedPublisher.
func (p *Publisher) Publish(ctx context.Context, orderID string, pos domain.Position) error {
	if p == nil || p.conn == nil {
		return nil
	}

	payload, err := json.Marshal(LocationEvent{
		OrderID:   orderID,
		Latitude:  pos.Lat,
		Longitude: pos.Lng,
		Heading:   pos.Heading,
		UpdatedAt: pos.LastUpdated,
	})
	if err != nil {
		return fmt.Errorf("marshal location event: %w", err)
	}

	return p.conn.PublishMsg(&nats.Msg{Subject: p.subject, Data: payload, Header: map[string][]string{
		"x-trace-id": {traceIDFromContext(ctx)},
		"x-order-id": {orderID},
	}})
}

func traceIDFromContext(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span == nil {
		return ""
	}
	sc := span.SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
