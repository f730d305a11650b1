package relay

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/example/courierlive/internal/order/domain"
)

// FeedPublisher receives successfully persisted positions for
// downstream consumers. Best effort; failures are logged only.
type FeedPublisher interface {
	Publish(ctx context.Context, orderID string, pos domain.Position) error
}

// Config defines pipeline tunables.
type Config struct {
	PersistTimeout time.Duration
}

// Service is the location update pipeline: it joins connections to
// rooms and relays position reports, persisting asynchronously so the
// live path never waits on storage beyond a bounded timeout.
type Service struct {
	registry *Registry
	store    domain.Store
	feed     FeedPublisher
	logger   *zap.Logger
	tracer   trace.Tracer
	timeout  time.Duration
}

// NewService constructs the pipeline with its collaborators. feed may
// be nil.
func NewService(registry *Registry, store domain.Store, feed FeedPublisher, logger *zap.Logger, cfg Config) *Service {
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		registry: registry,
		store:    store,
		feed:     feed,
		logger:   logger,
		tracer:   otel.Tracer("relay.pipeline"),
		timeout:  cfg.PersistTimeout,
	}
}

// Registry exposes the room registry for transport adapters.
func (s *Service) Registry() *Registry { return s.registry }

// HandleJoin adds the connection to the order's room. No existence
// check against the store: joining an order that was never created is
// legal and yields live-only updates.
func (s *Service) HandleJoin(conn Conn, orderID string) {
	s.registry.Join(orderID, conn)
	s.logger.Debug("joined room", zap.String("order_id", orderID), zap.String("conn_id", conn.ID()))
}

// HandleDisconnect removes the connection from all rooms. This is the
// only mandatory cleanup trigger.
func (s *Service) HandleDisconnect(conn Conn) {
	s.registry.Leave(conn)
}

type persistResult struct {
	pos domain.Position
	err error
}

// HandleLocationUpdate relays a position report to the order's room.
// The persistence attempt runs on its own goroutine; the broadcast
// fires exactly once, after that branch resolves or the bounded timeout
// elapses, carrying the stored values and persisted=true on success and
// the raw values with persisted=false on any failure. Persistence
// errors never reach the transport layer.
func (s *Service) HandleLocationUpdate(ctx context.Context, orderID string, report domain.Report) {
	ctx, span := s.tracer.Start(ctx, "relay.location_update")
	defer span.End()

	payload := LocationUpdated{
		Latitude:  report.Latitude,
		Longitude: report.Longitude,
		Heading:   report.Heading,
	}

	// Malformed ids are legal room keys but can never be persisted, so
	// the store is not called at all.
	if err := domain.ValidateID(orderID); err != nil {
		persistAttempts.WithLabelValues("malformed_id").Inc()
		s.registry.Broadcast(orderID, Event{Type: EventDriverLocationUpdated, Data: payload})
		return
	}

	started := time.Now()
	var stored domain.Position
	resCh := make(chan persistResult, 1)
	// Detached from the caller's cancellation so a write that resolves
	// late still lands even after the broadcast degraded.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	go func() {
		defer cancel()
		pos, err := s.store.ApplyUpdate(persistCtx, orderID, report)
		resCh <- persistResult{pos: pos, err: err}
	}()

	select {
	case res := <-resCh:
		persistLatency.Observe(time.Since(started).Seconds())
		if res.err != nil {
			s.observePersistFailure(orderID, res.err)
		} else {
			persistAttempts.WithLabelValues("ok").Inc()
			stored = res.pos
			payload = LocationUpdated{
				Latitude:  stored.Lat,
				Longitude: stored.Lng,
				Heading:   stored.Heading,
				Persisted: true,
			}
		}
	case <-time.After(s.timeout):
		persistAttempts.WithLabelValues("timeout").Inc()
		s.logger.Warn("location persist timed out", zap.String("order_id", orderID), zap.Duration("timeout", s.timeout))
	}

	s.registry.Broadcast(orderID, Event{Type: EventDriverLocationUpdated, Data: payload})

	if payload.Persisted && s.feed != nil {
		if err := s.feed.Publish(ctx, orderID, stored); err != nil {
			s.logger.Warn("location feed publish failed", zap.String("order_id", orderID), zap.Error(err))
		}
	}
}

func (s *Service) observePersistFailure(orderID string, err error) {
	switch {
	case errors.Is(err, domain.ErrMalformedID):
		persistAttempts.WithLabelValues("malformed_id").Inc()
	case errors.Is(err, domain.ErrNotFound):
		persistAttempts.WithLabelValues("not_found").Inc()
	default:
		persistAttempts.WithLabelValues("unavailable").Inc()
	}
	s.logger.Warn("location persist failed", zap.String("order_id", orderID), zap.Error(err))
}
