package main

import (
	"context"
	"net/http"
	"time"
	_ "time/tzdata"

	"github.com/ak-ash93/scheduled/libs/auth"
	"github.com/ak-ash93/scheduled/libs/config"
	"github.com/ak-ash93/scheduled/libs/db"
	"github.com/ak-ash93/scheduled/libs/httpx"
	"github.com/ak-ash93/scheduled/libs/kafkax"
	otelx "github.com/ak-ash93/scheduled/libs/otel"
	"github.com/ak-ash93/scheduled/libs/runtime"
	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/admission"
	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/handlers"
	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/outbox"
	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/slots"
	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "scheduling-service")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext(logger)
	defer stop()

	otelCfg, err := otelx.ConfigFromEnv(service)
	if err != nil {
		panic(err)
	}
	otelShutdown, err := otelx.Setup(ctx, otelCfg)
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	maxConns, err := config.Int("DB_MAX_CONNS", 10, 1)
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL, db.PoolConfig{MaxConns: int32(maxConns)})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	if config.Bool("MIGRATE_ON_START", true) {
		applied, err := storage.Migrate(ctx, pool)
		if err != nil {
			logger.Error("migrations failed", "err", err)
			panic(err)
		}
		if len(applied) > 0 {
			logger.Info("migrations applied", "files", applied)
		}
	}

	policy, err := slotPolicy()
	if err != nil {
		panic(err)
	}

	outboxRepo := outbox.NewRepository()
	bookings := storage.NewBookingRepository(pool, outboxRepo)
	schedules := storage.NewScheduleRepository(pool)
	eventRepo := storage.NewEventRepository(pool)

	svc := admission.NewService(admission.Config{
		Schedules: schedules,
		Events:    eventRepo,
		Store:     bookings,
		Resolver:  slots.NewResolver(policy),
		Logger:    logger,
	})

	brokers := config.String("KAFKA_BROKERS", "")
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "kafka", Check: kafkax.ReadyCheck(brokers), Optional: true},
	}

	limit, err := config.Int("RATE_LIMIT_PER_MINUTE", 60, 1)
	if err != nil {
		panic(err)
	}
	var publicLimit httpx.Middleware
	if redisURL := config.String("REDIS_URL", ""); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			panic(err)
		}
		rdb := redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()
		publicLimit = httpx.NewRedisRateLimiter(rdb, limit, time.Minute, service+":rl").
			Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: httpx.RedisReadyCheck(rdb), Optional: true})
	} else {
		publicLimit = httpx.NewRateLimiter(limit, time.Minute).Middleware()
	}

	verifier := &auth.Verifier{Secret: config.String("AUTH_JWT_SECRET", "")}
	if jwksURL := config.String("AUTH_JWKS_URL", ""); jwksURL != "" {
		verifier.JWKS = auth.NewJWKSClient(jwksURL, 10*time.Minute)
	}
	if verifier.Secret == "" && verifier.JWKS == nil {
		logger.Warn("no AUTH_JWT_SECRET or AUTH_JWKS_URL configured; owner routes will reject every request")
	}

	maxWindowDays, err := config.Int("SLOT_MAX_WINDOW_DAYS", 62, 1)
	if err != nil {
		panic(err)
	}
	handler := handlers.New(handlers.Config{
		Service:   svc,
		Schedules: schedules,
		Events:    eventRepo,
		Logger:    logger,
		MaxWindow: time.Duration(maxWindowDays) * 24 * time.Hour,
	})

	cors := httpx.CORS{
		Origins: config.List("CORS_ALLOWED_ORIGINS", ""),
		Methods: config.List("CORS_ALLOWED_METHODS", "GET,POST,OPTIONS"),
		Headers: config.List("CORS_ALLOWED_HEADERS", "Content-Type,X-Request-Id"),
		MaxAge:  10 * time.Minute,
	}.Middleware()
	public := func(next http.Handler) http.Handler { return cors(publicLimit(next)) }

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	handler.Register(mux, public, handlers.RequireOwner(verifier))

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithRecover(logger),
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "scheduling")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	logger.Info("http server stopping", "cause", context.Cause(ctx))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

func slotPolicy() (slots.Policy, error) {
	lead, err := config.Minutes("SLOT_MIN_LEAD_MINUTES", 0)
	if err != nil {
		return slots.Policy{}, err
	}
	buffer, err := config.Minutes("SLOT_BUFFER_MINUTES", 0)
	if err != nil {
		return slots.Policy{}, err
	}
	horizonDays, err := config.Int("SLOT_MAX_HORIZON_DAYS", 60, 0)
	if err != nil {
		return slots.Policy{}, err
	}
	return slots.Policy{
		MinLeadTime: lead,
		MaxHorizon:  time.Duration(horizonDays) * 24 * time.Hour,
		Buffer:      buffer,
	}, nil
}
