package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	jwttoken "collabhub/internal/jwt_token"
	"collabhub/internal/platform/config"
	"collabhub/internal/platform/httpserver"
	"collabhub/internal/platform/kafka"
	"collabhub/internal/platform/logger"
	platformmetrics "collabhub/internal/platform/metrics"
	"collabhub/internal/platform/middleware"
	"collabhub/internal/platform/postgres"
	"collabhub/internal/platform/redis"
	ratelimit "collabhub/internal/ratelimit/middleware"
	"collabhub/internal/ratelimit/store/bucket"
	"collabhub/internal/realtime"
	"collabhub/internal/realtime/metrics"
	"collabhub/internal/realtime/ports"
	"collabhub/internal/realtime/store/membership"
	"collabhub/internal/realtime/store/presence"
	"collabhub/pkg/platform/circuit"
	"collabhub/pkg/platform/httputil"
)

// main wires infrastructure into the realtime layer and keeps the process
// lifecycle small. Behaviour lives in internal/realtime.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rtMetrics := metrics.New()
	gwMetrics := platformmetrics.New()

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	var (
		presenceStore ports.PresenceStore
		connectBucket ratelimit.BucketStore
	)
	if redisClient != nil {
		defer redisClient.Close()
		store := presence.NewRedis(redisClient.Client,
			presence.WithLeaseTTL(cfg.Presence.LeaseTTL),
			presence.WithKeyPrefix(cfg.Presence.KeyPrefix),
			presence.WithMetrics(rtMetrics),
		)
		presenceStore = presence.NewGuarded(store, circuit.New("presence"), log)
		connectBucket = bucket.NewRedisBucketStore(redisClient.Client, cfg.Presence.KeyPrefix+":ratelimit")
		log.InfoContext(ctx, "presence store ready", "backend", "redis")
	} else {
		presenceStore = presence.NewInMemory(presence.WithLeaseTTL(cfg.Presence.LeaseTTL))
		memBucket := bucket.NewInMemoryBucketStore()
		go pruneBuckets(ctx, memBucket, cfg.RateLimit.ConnectWindow)
		connectBucket = memBucket
		log.WarnContext(ctx, "REDIS_URL not set, presence is process local")
	}

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	var (
		members   ports.MembershipResolver
		directory ports.Directory
	)
	if db != nil {
		defer db.Close()
		store := membership.NewPostgres(db.DB)
		members = store
		directory = membership.NewCachedDirectory(store, cfg.Presence.NameCacheTTL)
	} else {
		store := membership.NewInMemory()
		members, directory = store, store
		log.WarnContext(ctx, "DATABASE_URL not set, membership is empty")
	}

	userTokens := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience)
	producerTokens := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTProducerAudience)

	svc, err := realtime.New(realtime.Deps{
		Presence:          presenceStore,
		Members:           members,
		Directory:         directory,
		Validator:         jwttoken.NewJWTServiceAdapter(userTokens),
		ProducerValidator: jwttoken.NewJWTServiceAdapter(producerTokens),
		Logger:            log,
		Metrics:           rtMetrics,
		GatewayMetrics:    gwMetrics,
		Config:            cfg.Presence,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		ConnectLimiter: ratelimit.New(connectBucket, cfg.RateLimit.ConnectLimit, cfg.RateLimit.ConnectWindow,
			ratelimit.WithLogger(log),
			ratelimit.WithMetrics(gwMetrics),
		),
	})
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		status := map[string]string{"status": "ok"}
		code := http.StatusOK
		if redisClient != nil {
			if err := redisClient.Health(req.Context()); err != nil {
				status["redis"] = err.Error()
				code = http.StatusServiceUnavailable
			}
		}
		if db != nil {
			if err := db.Health(req.Context()); err != nil {
				status["postgres"] = err.Error()
				code = http.StatusServiceUnavailable
			}
		}
		if code != http.StatusOK {
			status["status"] = "degraded"
		}
		httputil.WriteJSON(w, code, status)
	})
	r.Handle("/metrics", promhttp.Handler())
	svc.Register(r)

	srv := httpserver.New(cfg.Server.Addr, r)

	errCh := make(chan error, 3)
	go func() {
		log.InfoContext(ctx, "starting collabhub realtime", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		if err := svc.Run(ctx); err != nil {
			errCh <- err
		}
	}()

	if cfg.Kafka.Enabled() {
		client, err := kafka.NewConsumer(cfg.Kafka)
		if err != nil {
			return err
		}
		defer client.Close()
		if err := kafka.EnsureTopic(ctx, client, cfg.Kafka.Topic, 1); err != nil {
			log.WarnContext(ctx, "ensure trigger topic failed", "topic", cfg.Kafka.Topic, "error", err)
		}
		cons, err := svc.NewConsumer(client)
		if err != nil {
			return err
		}
		go func() {
			if err := cons.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- err
			}
		}()
		log.InfoContext(ctx, "trigger consumer started", "topic", cfg.Kafka.Topic, "group", cfg.Kafka.GroupID)
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "error", err)
	}
	if err := svc.Shutdown(shutdownCtx); err != nil {
		log.Error("realtime shutdown failed", "error", err)
	}
	return runErr
}

func pruneBuckets(ctx context.Context, store *bucket.InMemoryBucketStore, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			store.Prune()
		}
	}
}
