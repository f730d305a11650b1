package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/courierlive/internal/order/domain"
)

const defaultKeyPrefix = "order:"

// RedisStore keeps each order as a hash plus a route-history list. The
// apply script runs HSET and RPUSH in one EVAL, so Redis itself
// serializes updates per order key and the monotonic last_updated
// invariant holds without client-side locking.
type RedisStore struct {
	client    redis.Cmdable
	keyPrefix string
	apply     *redis.Script
	clock     domain.Clock
}

// NewRedisStore constructs the store helper.
func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{
		client:    client,
		keyPrefix: prefix,
		apply:     redis.NewScript(applyUpdateLua),
		clock:     domain.SystemClock{},
	}
}

func (r *RedisStore) orderKey(id string) string { return r.keyPrefix + id }
func (r *RedisStore) routeKey(id string) string { return r.keyPrefix + id + ":route" }

// CreateOrder writes the order hash, failing if the id is taken.
func (r *RedisStore) CreateOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	if err := domain.ValidateID(order.ID); err != nil {
		return domain.Order{}, err
	}
	if order.Status == "" {
		order.Status = domain.StatusPending
	}
	key := r.orderKey(order.ID)
	ok, err := r.client.HSetNX(ctx, key, "id", order.ID).Result()
	if err != nil {
		return domain.Order{}, fmt.Errorf("%w: redis hsetnx: %v", domain.ErrUnavailable, err)
	}
	if !ok {
		return domain.Order{}, domain.ErrAlreadyExists
	}
	fields := map[string]any{
		"status":     string(order.Status),
		"created_at": order.CreatedAt.Format(time.RFC3339Nano),
		"updated_at": order.UpdatedAt.Format(time.RFC3339Nano),
	}
	if err := r.client.HSet(ctx, key, fields).Err(); err != nil {
		return domain.Order{}, fmt.Errorf("%w: redis hset: %v", domain.ErrUnavailable, err)
	}
	return order, nil
}

// GetOrderByID loads the order hash and its full route history.
func (r *RedisStore) GetOrderByID(ctx context.Context, id string) (domain.Order, error) {
	if err := domain.ValidateID(id); err != nil {
		return domain.Order{}, err
	}
	fields, err := r.client.HGetAll(ctx, r.orderKey(id)).Result()
	if err != nil {
		return domain.Order{}, fmt.Errorf("%w: redis hgetall: %v", domain.ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return domain.Order{}, domain.ErrNotFound
	}
	order := domain.Order{
		ID:        id,
		Status:    domain.OrderStatus(fields["status"]),
		CreatedAt: parseTime(fields["created_at"]),
		UpdatedAt: parseTime(fields["updated_at"]),
	}
	if fields["last_updated"] != "" {
		order.CurrentLocation = &domain.Position{
			Lat:         parseFloat(fields["lat"]),
			Lng:         parseFloat(fields["lng"]),
			Heading:     parseFloat(fields["heading"]),
			LastUpdated: parseTime(fields["last_updated"]),
		}
	}
	raw, err := r.client.LRange(ctx, r.routeKey(id), 0, -1).Result()
	if err != nil {
		return domain.Order{}, fmt.Errorf("%w: redis lrange: %v", domain.ErrUnavailable, err)
	}
	for _, item := range raw {
		var point domain.RoutePoint
		if json.Unmarshal([]byte(item), &point) == nil {
			order.RouteHistory = append(order.RouteHistory, point)
		}
	}
	return order, nil
}

// ApplyUpdate runs the atomic overwrite-and-append script.
func (r *RedisStore) ApplyUpdate(ctx context.Context, id string, report domain.Report) (domain.Position, error) {
	if err := domain.ValidateID(id); err != nil {
		return domain.Position{}, err
	}
	now := r.clock.Now()
	pos := domain.Position{Lat: report.Latitude, Lng: report.Longitude, Heading: report.Heading, LastUpdated: now}
	point, err := json.Marshal(domain.RoutePoint{Lat: report.Latitude, Lng: report.Longitude, Timestamp: now})
	if err != nil {
		return domain.Position{}, fmt.Errorf("marshal route point: %w", err)
	}
	keys := []string{r.orderKey(id), r.routeKey(id)}
	argv := []any{
		formatFloat(report.Latitude),
		formatFloat(report.Longitude),
		formatFloat(report.Heading),
		now.Format(time.RFC3339Nano),
		string(point),
	}
	res, err := r.apply.Run(ctx, r.client, keys, argv...).Int()
	if err != nil {
		return domain.Position{}, fmt.Errorf("%w: redis eval: %v", domain.ErrUnavailable, err)
	}
	if res == 0 {
		return domain.Position{}, domain.ErrNotFound
	}
	return pos, nil
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

const applyUpdateLua = `
local order_key = KEYS[1]
local route_key = KEYS[2]

if redis.call('EXISTS', order_key) == 0 then
  return 0
end

redis.call('HSET', order_key,
  'lat', ARGV[1],
  'lng', ARGV[2],
  'heading', ARGV[3],
  'last_updated', ARGV[4],
  'updated_at', ARGV[4])
redis.call('RPUSH', route_key, ARGV[5])
return 1
`
