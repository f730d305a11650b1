package main

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/example/courierlive/internal/auth"
	"github.com/example/courierlive/internal/order/domain"
	"github.com/example/courierlive/internal/order/store"
	"github.com/example/courierlive/internal/relay"
	"github.com/example/courierlive/internal/ws"
	"github.com/example/courierlive/pkg/locfeed"
	"github.com/example/courierlive/pkg/observability"
)

type appConfig struct {
	HTTPAddr       string
	GRPCAddr       string
	PostgresDSN    string
	RedisAddr      string
	NATSURL        string
	FeedSubject    string
	JWTSecret      string
	RoomShards     int
	PersistTimeout time.Duration
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := observability.SetupLogger("relay-service")
	defer logger.Sync() //nolint:errcheck

	shutdown, err := observability.SetupTracer(ctx, "relay-service")
	if err != nil {
		logger.Warn("tracer setup failed", zap.Error(err))
	} else {
		defer shutdown(context.Background())
	}

	cfg := loadConfig()

	orderStore, cleanup := buildStore(ctx, logger, cfg)
	defer cleanup()

	var feed relay.FeedPublisher
	if cfg.NATSURL != "" {
		if conn, err := nats.Connect(cfg.NATSURL, nats.Name("relayservice")); err == nil {
			feed = locfeed.NewPublisher(conn, cfg.FeedSubject)
			defer conn.Drain() //nolint:errcheck
		} else {
			logger.Warn("nats connection failed", zap.Error(err))
		}
	}

	registry := relay.NewRegistry(cfg.RoomShards)
	svc := relay.NewService(registry, orderStore, feed, logger.Named("pipeline"), relay.Config{
		PersistTimeout: cfg.PersistTimeout,
	})

	wsHandler := ws.NewHandler(svc, auth.WSGate(cfg.JWTSecret), logger.Named("ws"))

	r := chi.NewRouter()
	r.Handle("/ws", wsHandler)
	r.Mount("/observability", observability.MetricsRouter())

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("relay listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	grpcSrv := grpc.NewServer()
	relay.RegisterLocationRelayServer(grpcSrv, relay.NewStreamServer(svc))
	go func() {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			logger.Fatal("listen grpc", zap.Error(err))
		}
		logger.Info("relay grpc listening", zap.String("addr", lis.Addr().String()))
		if err := grpcSrv.Serve(lis); err != nil {
			logger.Fatal("grpc serve", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")
	grpcSrv.GracefulStop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// buildStore picks the first configured backend: postgres, then redis,
// then an in-memory store for local demos.
func buildStore(ctx context.Context, logger *zap.Logger, cfg appConfig) (domain.Store, func()) {
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
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Fatal("redis ping", zap.Error(err))
		}
		return store.NewRedisStore(client, ""), func() { _ = client.Close() }
	}
	logger.Warn("no store backend configured, using in-memory store")
	return store.NewMemoryStore(), func() {}
}

func loadConfig() appConfig {
	return appConfig{
		HTTPAddr:       getenv("HTTP_ADDR", ":8090"),
		GRPCAddr:       getenv("GRPC_ADDR", ":9091"),
		PostgresDSN:    firstNonEmpty(os.Getenv("POSTGRES_DSN"), os.Getenv("DATABASE_URL")),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		NATSURL:        os.Getenv("NATS_URL"),
		FeedSubject:    getenv("FEED_SUBJECT", "orders.location"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		RoomShards:     parseIntEnv("ROOM_SHARDS", 16),
		PersistTimeout: time.Duration(parseIntEnv("PERSIST_TIMEOUT_MS", 2000)) * time.Millisecond,
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

func parseIntEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}
