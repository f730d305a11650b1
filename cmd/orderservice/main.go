package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/example/courierlive/internal/auth"
	ratelimitmw "github.com/example/courierlive/internal/http/middleware"
	"github.com/example/courierlive/internal/order/domain"
	"github.com/example/courierlive/internal/order/handler"
	orderservice "github.com/example/courierlive/internal/order/service"
	"github.com/example/courierlive/internal/order/store"
	"github.com/example/courierlive/pkg/observability"
)

type appConfig struct {
	HTTPAddr    string
	PostgresDSN string
	RedisAddr   string
	JWTSecret   string
	RateRead    ratelimitmw.RateConfig
	RateWrite   ratelimitmw.RateConfig
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := observability.SetupLogger("order-service")
	defer logger.Sync() //nolint:errcheck

	shutdown, err := observability.SetupTracer(ctx, "order-service")
	if err != nil {
		logger.Warn("tracer setup failed", zap.Error(err))
	} else {
		defer shutdown(context.Background())
	}

	cfg := loadConfig()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("redis ping", zap.Error(err))
		}
		defer redisClient.Close()
	}

	orderStore, cleanup := buildStore(ctx, logger, cfg, redisClient)
	defer cleanup()

	svc := orderservice.New(orderStore, domain.SystemClock{}, store.NewMemoryIdempotencyRepo())
	orderHTTP := handler.NewHTTP(svc)

	limiter := ratelimitmw.NewRateLimiter(redisClient, cfg.RateRead, cfg.RateWrite)

	r := chi.NewRouter()
	if cfg.JWTSecret != "" {
		r.Use(auth.Middleware(cfg.JWTSecret))
	}
	if limiter != nil {
		r.Use(limiter.Middleware)
	}
	r.Mount("/", orderHTTP.Router())
	r.Mount("/observability", observability.MetricsRouter())

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("order service listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func buildStore(ctx context.Context, logger *zap.Logger, cfg appConfig, redisClient *redis.Client) (domain.Store, func()) {
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			logger.Fatal("postgres connect", zap.Error(err))
		}
		db.SetMaxOpenConns(10)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			logger.Fatal("postgres ping", zap.Error(err))
		}
		pg := store.NewPostgresStore(db)
		if err := pg.Migrate(ctx); err != nil {
			logger.Fatal("postgres migrate", zap.Error(err))
		}
		return pg, func() { _ = db.Close() }
	}
	if redisClient != nil {
		return store.NewRedisStore(redisClient, ""), func() {}
	}
	logger.Warn("no store backend configured, using in-memory store")
	return store.NewMemoryStore(), func() {}
}

func loadConfig() appConfig {
	return appConfig{
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		PostgresDSN: firstNonEmpty(os.Getenv("POSTGRES_DSN"), os.Getenv("DATABASE_URL")),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		RateRead: ratelimitmw.RateConfig{
			Rate:  parseFloatEnv("RATE_READ_RPS", 50),
			Burst: parseFloatEnv("RATE_READ_BURST", 100),
		},
		RateWrite: ratelimitmw.RateConfig{
			Rate:  parseFloatEnv("RATE_WRITE_RPS", 10),
			Burst: parseFloatEnv("RATE_WRITE_BURST", 20),
		},
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseFloatEnv(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
