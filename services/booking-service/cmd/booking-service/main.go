package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/bookease/libs/auth"
	"github.com/md-rashed-zaman/bookease/libs/config"
	"github.com/md-rashed-zaman/bookease/libs/db"
	"github.com/md-rashed-zaman/bookease/libs/grpcx"
	"github.com/md-rashed-zaman/bookease/libs/httpx"
	"github.com/md-rashed-zaman/bookease/libs/kafkax"
	otelx "github.com/md-rashed-zaman/bookease/libs/otel"
	"github.com/md-rashed-zaman/bookease/libs/runtime"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/housekeeping"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/bookease/services/booking-service/migrations"
)

func main() {
	if err := config.LoadDotenv(); err != nil {
		slog.Error("dotenv load failed", "err", err)
		os.Exit(1)
	}
	service := config.String("SERVICE_NAME", "booking-service")
	logger := runtime.NewLogger(service)
	if err := run(service, logger); err != nil {
		logger.Error("booking-service exited", "err", err)
		os.Exit(1)
	}
}

func run(service string, logger *slog.Logger) error {
	port, err := config.Port("PORT", "8083")
	if err != nil {
		return err
	}
	grpcPort, err := config.Port("GRPC_PORT", "9093")
	if err != nil {
		return err
	}
	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		return err
	}
	migrateOnStart, err := config.Bool("MIGRATE_ON_START", false)
	if err != nil {
		return err
	}
	rateLimit, err := config.Int("PUBLIC_RATE_LIMIT", 60)
	if err != nil {
		return err
	}
	rateWindow, err := config.Duration("PUBLIC_RATE_WINDOW", time.Minute)
	if err != nil {
		return err
	}
	requestTimeout, err := config.Duration("REQUEST_TIMEOUT", 10*time.Second)
	if err != nil {
		return err
	}
	outboxRetention, err := config.Duration("OUTBOX_RETENTION", 168*time.Hour)
	if err != nil {
		return err
	}
	idempotencyTTL, err := config.Duration("IDEMPOTENCY_TTL", 24*time.Hour)
	if err != nil {
		return err
	}
	brokers := config.String("KAFKA_BROKERS", "")

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		return err
	}
	defer pool.Close()

	if migrateOnStart {
		m, err := db.NewMigrator(pool, migrations.FS, ".", logger)
		if err != nil {
			return err
		}
		err = m.Up(ctx)
		_ = m.Close()
		if err != nil {
			return err
		}
	}

	outboxRepo := outbox.NewRepository(pool)
	store := storage.NewStore(pool, outboxRepo)
	svc := booking.NewService(store, logger)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	janitor := housekeeping.New(logger, housekeeping.Config{Schedule: config.String("HOUSEKEEPING_CRON", "@hourly")},
		housekeeping.Task{Table: "outbox_events", Retention: outboxRetention, Pruner: outboxRepo},
		housekeeping.Task{Table: "booking_idempotency_keys", Retention: idempotencyTTL, Pruner: housekeeping.PrunerFunc(store.PruneIdempotencyBefore)},
	)
	go func() {
		if err := janitor.Run(ctx); err != nil {
			logger.Error("housekeeping disabled", "err", err)
		}
	}()

	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	if len(kafkax.SplitBrokers(brokers)) > 0 {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}

	publicLimit := httpx.NewRateLimiter(rateLimit, rateWindow).Middleware()
	if redisURL := config.String("REDIS_URL", ""); redisURL != "" {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return err
		}
		rdb := redis.NewClient(opt)
		defer rdb.Close()
		publicLimit = httpx.NewRedisRateLimiter(rdb, rateLimit, rateWindow, "bookease:rl:public").Middleware(logger, true)
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	var verifier *auth.Verifier
	if secret := config.String("AUTH_JWT_SECRET", ""); secret != "" {
		verifier = auth.NewVerifier(secret, config.String("AUTH_JWT_ISSUER", ""))
	} else {
		logger.Warn("AUTH_JWT_SECRET not set; owner routes trust the " + handlers.BusinessIDHeader + " header")
	}

	metrics.Register()
	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("GET /metrics", metrics.Handler())
	handlers.NewPublicHandler(svc, logger).Register(mux, publicLimit)
	handlers.NewOwnerHandler(svc, logger).Register(mux, handlers.OwnerAuth(verifier))

	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: config.List("CORS_ALLOWED_ORIGINS"),
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type", "Idempotency-Key", handlers.BusinessIDHeader},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(requestTimeout),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return !strings.HasPrefix(r.URL.Path, "/healthz") && !strings.HasPrefix(r.URL.Path, "/readyz")
		}),
	)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcSrv := grpcx.NewServer(logger)
	grpcSrv.SetServing(service, true)
	grpcErr := make(chan error, 1)
	go func() { grpcErr <- grpcSrv.Run(ctx, ":"+grpcPort, 5*time.Second) }()

	if err := runtime.ServeHTTP(ctx, srv, logger, 10*time.Second); err != nil {
		return err
	}
	stop()
	if err := <-grpcErr; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
