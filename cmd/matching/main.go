package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/wandero/matching/internal/adapter/discord"
	mhttp "github.com/wandero/matching/internal/adapter/http"
	mnats "github.com/wandero/matching/internal/adapter/nats"
	"github.com/wandero/matching/internal/adapter/natskv"
	motel "github.com/wandero/matching/internal/adapter/otel"
	"github.com/wandero/matching/internal/adapter/postgres"
	"github.com/wandero/matching/internal/adapter/ristretto"
	"github.com/wandero/matching/internal/adapter/slack"
	"github.com/wandero/matching/internal/adapter/tiered"
	"github.com/wandero/matching/internal/adapter/ws"
	"github.com/wandero/matching/internal/config"
	"github.com/wandero/matching/internal/domain/scoring"
	"github.com/wandero/matching/internal/logger"
	"github.com/wandero/matching/internal/middleware"
	"github.com/wandero/matching/internal/port/cache"
	"github.com/wandero/matching/internal/resilience"
	"github.com/wandero/matching/internal/service"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer logCloser.Close()

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"max_attempts", cfg.Matching.MaxAttempts,
		"sweep_interval", cfg.Matching.SweepInterval,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Observability ---
	shutdownOTel, err := motel.Init(ctx, cfg.Logging.Service, cfg.OTel.Endpoint)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownOTel(shutdownCtx)
	}()

	// --- Infrastructure ---
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	queue, err := mnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Drain() }()

	localCache, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer localCache.Close()

	var candidateCache cache.Cache = localCache
	if cfg.Cache.SharedBucket != "" {
		kv, err := queue.KeyValue(ctx, cfg.Cache.SharedBucket, cfg.Cache.CandidateTTL)
		if err != nil {
			return fmt.Errorf("shared cache: %w", err)
		}
		candidateCache = tiered.New(localCache, natskv.New(kv), cfg.Cache.CandidateTTL)
		slog.Info("shared candidate cache enabled", "bucket", cfg.Cache.SharedBucket)
	}

	// --- Services ---
	hub := ws.NewHub()
	store := postgres.NewStore(pool)
	directory := postgres.NewDirectory(pool)
	auditLog := postgres.NewAuditLog(pool)

	matchingSvc := service.NewMatchingService(store, directory, queue, auditLog, hub, policyFrom(cfg.Matching), cfg.Matching)
	matchingSvc.SetCache(candidateCache, cfg.Cache.CandidateTTL)
	matchingSvc.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))
	switch {
	case cfg.Slack.WebhookURL != "":
		matchingSvc.SetNotifier(slack.NewNotifier(cfg.Slack.WebhookURL))
	case cfg.Discord.WebhookURL != "":
		matchingSvc.SetNotifier(discord.NewNotifier(cfg.Discord.WebhookURL))
	}
	metrics, err := motel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	matchingSvc.SetMetrics(metrics)

	requestSvc := service.NewRequestService(store, directory, queue, auditLog, cfg.Matching)

	// Matching triggers flow through the queue so that intake, retries, and
	// admin restarts all take the same path.
	cancelTriggers, err := matchingSvc.StartRequestSubscriber(ctx)
	if err != nil {
		return fmt.Errorf("request subscriber: %w", err)
	}
	defer cancelTriggers()

	go matchingSvc.RunSweeper(ctx)

	// --- HTTP ---
	handlers := &mhttp.Handlers{
		Requests: requestSvc,
		Matching: matchingSvc,
		Hub:      hub,
		Queue:    queue,
	}

	r := chi.NewRouter()
	r.Use(mhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(middleware.CorrelationID)
	r.Use(mhttp.Logger)
	r.Use(motel.HTTPMiddleware(cfg.Logging.Service))
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	mhttp.MountRoutes(r, handlers, cfg.Server)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// policyFrom lifts the configured scoring constants into the engine policy.
func policyFrom(m config.Matching) scoring.Policy {
	return scoring.Policy{
		StarTierScore:    m.StarTierScore,
		BenchTierScore:   m.BenchTierScore,
		MaxResponseHours: m.MaxResponseHours,
	}
}
