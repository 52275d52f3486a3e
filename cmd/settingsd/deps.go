package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/settingsd/internal/adapter/dircache"
	cfnats "github.com/Strob0t/settingsd/internal/adapter/nats"
	"github.com/Strob0t/settingsd/internal/adapter/natskv"
	"github.com/Strob0t/settingsd/internal/adapter/postgres"
	"github.com/Strob0t/settingsd/internal/adapter/redis"
	"github.com/Strob0t/settingsd/internal/adapter/ristretto"
	"github.com/Strob0t/settingsd/internal/adapter/tiered"
	"github.com/Strob0t/settingsd/internal/config"
	"github.com/Strob0t/settingsd/internal/domain/settings"
	"github.com/Strob0t/settingsd/internal/port/cache"
	"github.com/Strob0t/settingsd/internal/port/clock"
	"github.com/Strob0t/settingsd/internal/resilience"
	"github.com/Strob0t/settingsd/internal/service"
)

// directoryCacheKeyPrefix namespaces directory lookups in shared L2 backends.
const directoryCacheKeyPrefix = "settingsd/directory/"

// connectPostgres opens the pool. Migrations are applied when migrate is set.
func connectPostgres(ctx context.Context, cfg *config.Config, migrate bool) (*pgxpool.Pool, error) {
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	if migrate {
		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		slog.Info("migrations applied")
	}
	return pool, nil
}

// directoryCache is the assembled lookup cache. shared is true when an L2
// tier visible to other processes is in use.
type directoryCache struct {
	cache   cache.Cache
	shared  bool
	release func()
}

// buildCache assembles the directory cache: ristretto L1, plus NATS KV or
// Redis as L2 depending on cache.l2_backend.
func buildCache(ctx context.Context, cfg *config.Config, queue *cfnats.Queue) (*directoryCache, error) {
	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB)
	if err != nil {
		return nil, fmt.Errorf("l1 cache: %w", err)
	}

	var l2 cache.Cache
	release := l1.Close
	switch cfg.Cache.L2Backend {
	case "nats":
		if queue == nil {
			slog.Warn("cache l2 backend nats unavailable, using l1 only")
			break
		}
		kv, err := natskv.Open(ctx, queue.JetStream(), cfg.Cache.L2Bucket, cfg.Cache.L2TTL)
		if err != nil {
			l1.Close()
			return nil, fmt.Errorf("l2 cache: %w", err)
		}
		l2 = kv
	case "redis":
		rc, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			l1.Close()
			return nil, fmt.Errorf("l2 cache: %w", err)
		}
		l2 = rc
		release = func() {
			_ = rc.Close()
			l1.Close()
		}
	}

	var c cache.Cache = l1
	if l2 != nil {
		c = tiered.New(l1, l2, cfg.Directory.CacheTTL)
	}
	slog.Info("directory cache ready", "l1_mb", cfg.Cache.L1MaxSizeMB, "l2", cfg.Cache.L2Backend, "shared", l2 != nil)
	return &directoryCache{
		cache:   cache.WithPrefix(c, directoryCacheKeyPrefix),
		shared:  l2 != nil,
		release: release,
	}, nil
}

// buildDirectory wraps the Postgres directory with cache-aside lookups and a
// circuit breaker.
func buildDirectory(pool *pgxpool.Pool, c cache.Cache, cfg *config.Config) *dircache.Directory {
	breaker := resilience.NewBreaker("directory", cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
	return dircache.New(postgres.NewDirectory(pool), c, cfg.Directory.CacheTTL, breaker)
}

// buildService creates the settings service over the given store and directory.
func buildService(store *postgres.Store, dir *dircache.Directory, cfg *config.Config) *service.SettingsService {
	svc := service.NewSettingsService(store, dir, clock.System{}, settings.NewDndEngine(cfg.Dnd.MaxStepHours))
	svc.SetExpiryConcurrency(cfg.Scheduler.Concurrency)
	return svc
}
