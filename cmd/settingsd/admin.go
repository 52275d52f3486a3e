package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/term"

	"github.com/Strob0t/settingsd/internal/adapter/dircache"
	cfnats "github.com/Strob0t/settingsd/internal/adapter/nats"
	"github.com/Strob0t/settingsd/internal/adapter/postgres"
	"github.com/Strob0t/settingsd/internal/service"
)

// adminDeps holds what admin commands need. close releases everything.
type adminDeps struct {
	pool  *pgxpool.Pool
	dir   *dircache.Directory
	svc   *service.SettingsService
	close func()

	// sharedCache is true when the directory cache has an L2 tier that
	// running servers read too.
	sharedCache bool
}

// openAdmin connects to Postgres and, when configured, NATS so admin writes
// publish the same events as API writes.
func openAdmin(ctx context.Context, app *appContext) (*adminDeps, error) {
	cfg := app.cfg
	pool, err := connectPostgres(ctx, cfg, false)
	if err != nil {
		return nil, err
	}

	var queue *cfnats.Queue
	if cfg.NATS.URL != "" {
		queue, err = cfnats.Connect(ctx, cfg.NATS.URL, cfg.NATS.Stream)
		if err != nil {
			slog.Warn("nats unavailable, events will not be published", "error", err)
			queue = nil
		}
	}

	dc, err := buildCache(ctx, cfg, queue)
	if err != nil {
		pool.Close()
		if queue != nil {
			_ = queue.Close()
		}
		return nil, err
	}

	dir := buildDirectory(pool, dc.cache, cfg)
	svc := buildService(postgres.NewStore(pool), dir, cfg)
	if queue != nil {
		svc.SetQueue(queue)
	}

	return &adminDeps{
		pool:        pool,
		dir:         dir,
		svc:         svc,
		sharedCache: dc.shared,
		close: func() {
			dc.release()
			if queue != nil {
				_ = queue.Drain()
			}
			pool.Close()
		},
	}, nil
}

func printJSON(app *appContext, v any) error {
	enc := json.NewEncoder(app.out)
	if isTerminal(app.out) {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// isTerminal reports whether w is an interactive terminal. Piped output stays
// one JSON document per line.
func isTerminal(w any) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
}

// ExpireDndCmd runs one expiry pass.
type ExpireDndCmd struct{}

// Run executes the pass and prints its report.
func (c *ExpireDndCmd) Run(app *appContext) error {
	ctx := context.Background()
	deps, err := openAdmin(ctx, app)
	if err != nil {
		return err
	}
	defer deps.close()

	report, err := deps.svc.ProcessExpiredDndModes(ctx)
	if err != nil {
		return fmt.Errorf("expire dnd: %w", err)
	}
	return printJSON(app, report)
}

// ShowBusinessCmd prints one business's settings.
type ShowBusinessCmd struct {
	BusinessID string `help:"Business id." required:"" name:"business-id"`
}

// Run loads (creating on first access) and prints the settings.
func (c *ShowBusinessCmd) Run(app *appContext) error {
	ctx := context.Background()
	deps, err := openAdmin(ctx, app)
	if err != nil {
		return err
	}
	defer deps.close()

	v, err := deps.svc.GetBusinessSettings(ctx, c.BusinessID)
	if err != nil {
		return fmt.Errorf("show business %s: %w", c.BusinessID, err)
	}
	return printJSON(app, v)
}

// ExtendDndCmd extends an active DnD window on behalf of a support actor.
type ExtendDndCmd struct {
	BusinessID string `help:"Business id." required:"" name:"business-id"`
	Hours      int    `help:"Hours to add." required:""`
	ActorID    string `help:"Support user performing the extension." required:"" name:"actor-id"`
}

// Run performs the extension and prints the resulting settings.
func (c *ExtendDndCmd) Run(app *appContext) error {
	ctx := context.Background()
	deps, err := openAdmin(ctx, app)
	if err != nil {
		return err
	}
	defer deps.close()

	v, err := deps.svc.ExtendDndMode(ctx, c.BusinessID, c.Hours, c.ActorID)
	if err != nil {
		return fmt.Errorf("extend dnd %s: %w", c.BusinessID, err)
	}
	return printJSON(app, v)
}

// MigrateCmd manages the schema.
type MigrateCmd struct {
	Direction string `arg:"" optional:"" enum:"up,down,version" default:"up" help:"up, down or version."`
	Steps     int    `help:"Migrations to roll back with down." default:"1"`
}

// Run applies, rolls back or reports migrations.
func (c *MigrateCmd) Run(app *appContext) error {
	ctx := context.Background()
	dsn := app.cfg.Postgres.DSN

	switch c.Direction {
	case "down":
		if err := postgres.RollbackMigrations(ctx, dsn, c.Steps); err != nil {
			return err
		}
		slog.Info("migrations rolled back", "steps", c.Steps)
	case "version":
		v, err := postgres.MigrationVersion(ctx, dsn)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(app.out, "%d\n", v)
		return err
	default:
		if err := postgres.RunMigrations(ctx, dsn); err != nil {
			return err
		}
		slog.Info("migrations applied")
	}
	return nil
}

// RegisterRepCmd records a representative in the directory. The first
// representative registered for a business becomes its parent.
type RegisterRepCmd struct {
	RepID      string `help:"Representative id." required:"" name:"rep-id"`
	BusinessID string `help:"Business id." required:"" name:"business-id"`
}

// Run registers the representative and drops stale cached lookups from the
// shared cache tier, when one is configured.
func (c *RegisterRepCmd) Run(app *appContext) error {
	ctx := context.Background()
	deps, err := openAdmin(ctx, app)
	if err != nil {
		return err
	}
	defer deps.close()

	if err := postgres.NewDirectory(deps.pool).RegisterRepresentative(ctx, c.RepID, c.BusinessID, time.Now().UTC()); err != nil {
		return err
	}
	invalidateShared(ctx, app, deps, c.BusinessID, c.RepID)

	parent, _, err := deps.dir.ParentRepresentative(ctx, c.BusinessID)
	if err != nil {
		return err
	}
	return printJSON(app, map[string]string{
		"business_id":           c.BusinessID,
		"rep_id":                c.RepID,
		"parent_representative": parent,
	})
}

// invalidateShared drops cached directory answers from the shared L2 tier.
// Without one, a running server's in-process cache is out of reach and keeps
// its answers until directory.cache_ttl elapses. It reports whether it
// invalidated anything.
func invalidateShared(ctx context.Context, app *appContext, deps *adminDeps, businessID, userID string) bool {
	if !deps.sharedCache {
		slog.Warn("no shared directory cache, running servers pick up the change after the cache ttl",
			"cache_ttl", app.cfg.Directory.CacheTTL)
		return false
	}
	deps.dir.Invalidate(ctx, businessID, userID)
	return true
}

// GrantSupportCmd grants the support role.
type GrantSupportCmd struct {
	UserID string `help:"User id." required:"" name:"user-id"`
}

// Run grants the role and drops the cached answer for the user from the
// shared cache tier, when one is configured.
func (c *GrantSupportCmd) Run(app *appContext) error {
	ctx := context.Background()
	deps, err := openAdmin(ctx, app)
	if err != nil {
		return err
	}
	defer deps.close()

	if err := postgres.NewDirectory(deps.pool).GrantSupport(ctx, c.UserID); err != nil {
		return err
	}
	invalidateShared(ctx, app, deps, "", c.UserID)
	slog.Info("support role granted", "user_id", c.UserID)
	return nil
}
