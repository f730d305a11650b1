package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/courierlive/internal/order/domain"
)

// PostgresStore persists orders in two tables: a current-state row per
// order and an append-only route_history table. ApplyUpdate runs both
// writes in one transaction; the row lock taken by the UPDATE gives
// per-order serialization without blocking updates to other orders.
type PostgresStore struct {
	db    *sql.DB
	clock domain.Clock
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, clock: domain.SystemClock{}}
}

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("migrate order schema: %w", err)
	}
	return nil
}

// CreateOrder inserts the order row.
func (s *PostgresStore) CreateOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	if err := domain.ValidateID(order.ID); err != nil {
		return domain.Order{}, err
	}
	if order.Status == "" {
		order.Status = domain.StatusPending
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO orders (id, status, created_at, updated_at) VALUES ($1, $2, $3, $4) ON CONFLICT (id) DO NOTHING`,
		order.ID, string(order.Status), order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return domain.Order{}, fmt.Errorf("%w: insert order: %v", domain.ErrUnavailable, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Order{}, fmt.Errorf("%w: rows affected: %v", domain.ErrUnavailable, err)
	}
	if affected == 0 {
		return domain.Order{}, domain.ErrAlreadyExists
	}
	return order, nil
}

// GetOrderByID loads the order row and its route history in insertion order.
func (s *PostgresStore) GetOrderByID(ctx context.Context, id string) (domain.Order, error) {
	if err := domain.ValidateID(id); err != nil {
		return domain.Order{}, err
	}
	order := domain.Order{ID: id}
	var lat, lng, heading sql.NullFloat64
	var lastUpdated sql.NullTime
	row := s.db.QueryRowContext(ctx,
		`SELECT status, lat, lng, heading, last_updated, created_at, updated_at FROM orders WHERE id = $1`, id)
	if err := row.Scan(&order.Status, &lat, &lng, &heading, &lastUpdated, &order.CreatedAt, &order.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrNotFound
		}
		return domain.Order{}, fmt.Errorf("%w: select order: %v", domain.ErrUnavailable, err)
	}
	if lastUpdated.Valid {
		order.CurrentLocation = &domain.Position{
			Lat:         lat.Float64,
			Lng:         lng.Float64,
			Heading:     heading.Float64,
			LastUpdated: lastUpdated.Time,
		}
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT lat, lng, recorded_at FROM route_history WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return domain.Order{}, fmt.Errorf("%w: select route history: %v", domain.ErrUnavailable, err)
	}
	defer rows.Close()
	for rows.Next() {
		var point domain.RoutePoint
		if err := rows.Scan(&point.Lat, &point.Lng, &point.Timestamp); err != nil {
			return domain.Order{}, fmt.Errorf("%w: scan route point: %v", domain.ErrUnavailable, err)
		}
		order.RouteHistory = append(order.RouteHistory, point)
	}
	if err := rows.Err(); err != nil {
		return domain.Order{}, fmt.Errorf("%w: iterate route history: %v", domain.ErrUnavailable, err)
	}
	return order, nil
}

// ApplyUpdate overwrites the current position and appends one history row.
func (s *PostgresStore) ApplyUpdate(ctx context.Context, id string, report domain.Report) (domain.Position, error) {
	if err := domain.ValidateID(id); err != nil {
		return domain.Position{}, err
	}
	now := s.clock.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Position{}, fmt.Errorf("%w: begin tx: %v", domain.ErrUnavailable, err)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET lat = $2, lng = $3, heading = $4, last_updated = $5, updated_at = $5 WHERE id = $1`,
		id, report.Latitude, report.Longitude, report.Heading, now)
	if err != nil {
		_ = tx.Rollback()
		return domain.Position{}, fmt.Errorf("%w: update order: %v", domain.ErrUnavailable, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return domain.Position{}, fmt.Errorf("%w: rows affected: %v", domain.ErrUnavailable, err)
	}
	if affected == 0 {
		_ = tx.Rollback()
		return domain.Position{}, domain.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO route_history (order_id, lat, lng, recorded_at) VALUES ($1, $2, $3, $4)`,
		id, report.Latitude, report.Longitude, now); err != nil {
		_ = tx.Rollback()
		return domain.Position{}, fmt.Errorf("%w: insert route point: %v", domain.ErrUnavailable, err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Position{}, fmt.Errorf("%w: commit: %v", domain.ErrUnavailable, err)
	}
	return domain.Position{Lat: report.Latitude, Lng: report.Longitude, Heading: report.Heading, LastUpdated: now}, nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS orders (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL DEFAULT 'pending',
	lat DOUBLE PRECISION,
	lng DOUBLE PRECISION,
	heading DOUBLE PRECISION,
	last_updated TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS route_history (
	id BIGSERIAL PRIMARY KEY,
	order_id TEXT NOT NULL REFERENCES orders (id) ON DELETE CASCADE,
	lat DOUBLE PRECISION NOT NULL,
	lng DOUBLE PRECISION NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS route_history_order_idx ON route_history (order_id, id);
`
