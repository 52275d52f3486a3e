package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	cfhttp "github.com/Strob0t/settingsd/internal/adapter/http"
	cfnats "github.com/Strob0t/settingsd/internal/adapter/nats"
	cfotel "github.com/Strob0t/settingsd/internal/adapter/otel"
	"github.com/Strob0t/settingsd/internal/adapter/postgres"
	"github.com/Strob0t/settingsd/internal/middleware"
	"github.com/Strob0t/settingsd/internal/service"
)

// ServeCmd runs the HTTP API and, when enabled, the expiry scheduler.
type ServeCmd struct {
	SkipMigrations bool `help:"Do not apply pending migrations on startup."`
}

// Run wires the service and blocks until SIGINT or SIGTERM.
func (c *ServeCmd) Run(app *appContext) error {
	cfg := app.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"pg_max_conns", cfg.Postgres.MaxConns,
		"scheduler_enabled", cfg.Scheduler.Enabled,
		"scheduler_interval", cfg.Scheduler.Interval,
	)

	// --- Observability ---

	shutdownOTEL, err := cfotel.Setup(ctx, cfg.OTEL, cfg.Logging.Service)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTEL(sctx); err != nil {
			slog.Warn("otel shutdown failed", "error", err)
		}
	}()

	metrics, err := cfotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Infrastructure ---

	pool, err := connectPostgres(ctx, cfg, !c.SkipMigrations)
	if err != nil {
		return err
	}
	defer pool.Close()
	slog.Info("postgres connected")

	var queue *cfnats.Queue
	if cfg.NATS.URL != "" {
		queue, err = cfnats.Connect(ctx, cfg.NATS.URL, cfg.NATS.Stream)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() {
			if err := queue.Drain(); err != nil {
				slog.Warn("nats drain failed", "error", err)
			}
		}()
	}

	dirCache, err := buildCache(ctx, cfg, queue)
	if err != nil {
		return err
	}
	defer dirCache.release()

	// --- Services ---

	store := postgres.NewStore(pool)
	dir := buildDirectory(pool, dirCache.cache, cfg)
	svc := buildService(store, dir, cfg)
	svc.SetMetrics(metrics)
	if queue != nil {
		svc.SetQueue(queue)
	}

	// --- HTTP ---

	healthChecks := map[string]cfhttp.HealthCheck{"postgres": store.Ping}
	if queue != nil {
		healthChecks["nats"] = func(context.Context) error {
			if !queue.IsConnected() {
				return errors.New("disconnected")
			}
			return nil
		}
	}

	handlers := &cfhttp.Handlers{
		Settings:           svc,
		Directory:          dir,
		HealthChecks:       healthChecks,
		MaxRequestBodySize: cfg.Server.MaxRequestBodySize,
	}

	var limiter *middleware.RateLimiter
	if cfg.Server.RateLimitRPS > 0 {
		limiter = middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	}

	r := chi.NewRouter()
	r.Use(cfotel.HTTPMiddleware(cfg.Logging.Service))
	r.Use(middleware.RequestID)
	r.Use(middleware.Actor)
	r.Use(cfhttp.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cfhttp.SecurityHeaders)
	r.Use(cfhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(chimw.Timeout(30 * time.Second))
	cfhttp.MountRoutes(r, handlers, limiter)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if cfg.Scheduler.Enabled {
		g.Go(func() error {
			return service.NewExpiryScheduler(svc, cfg.Scheduler.Interval).Run(gctx)
		})
	}

	if limiter != nil {
		limiter.StartCleanup(gctx, time.Minute, 10*time.Minute)
	}

	return g.Wait()
}
