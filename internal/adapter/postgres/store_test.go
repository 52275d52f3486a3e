package postgres_test

import (
	"context"
	"errors"
	"os"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/settingsd/internal/adapter/postgres"
	"github.com/Strob0t/settingsd/internal/domain"
	"github.com/Strob0t/settingsd/internal/domain/settings"
	"github.com/Strob0t/settingsd/internal/port/database"
	"github.com/Strob0t/settingsd/internal/port/directory"
)

var (
	_ database.Store      = (*postgres.Store)(nil)
	_ directory.Directory = (*postgres.Directory)(nil)
)

// setupPool runs all migrations and returns a pool closed via t.Cleanup.
func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("requires DATABASE_URL")
	}

	ctx := context.Background()
	if err := postgres.RunMigrations(ctx, dsn); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func uniqueID(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}

// now is truncated to microseconds, the resolution of TIMESTAMPTZ.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func TestBusinessSettingsCreateIsIdempotent(t *testing.T) {
	store := postgres.NewStore(setupPool(t))
	ctx := context.Background()
	bizID := uniqueID("biz")

	if _, err := store.GetBusinessSettings(ctx, bizID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	first, err := store.CreateBusinessSettings(ctx, bizID, now())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := store.CreateBusinessSettings(ctx, bizID, now())
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if first.ID != second.ID || first.Version != 1 {
		t.Fatalf("expected one row at version 1, got %q/%q v%d", first.ID, second.ID, first.Version)
	}
	if first.DndModeEnabled || first.ReviewsPrivate {
		t.Errorf("expected defaults, got %+v", first)
	}
}

func TestBusinessSettingsOptimisticLock(t *testing.T) {
	store := postgres.NewStore(setupPool(t))
	ctx := context.Background()
	bizID := uniqueID("biz")

	b, err := store.CreateBusinessSettings(ctx, bizID, now())
	if err != nil {
		t.Fatal(err)
	}
	stale := b.Clone()

	ts := now()
	if err := settings.NewDndEngine(0).Enable(b, 2, ts); err != nil {
		t.Fatal(err)
	}
	reason := "inventory"
	b.DndModeReason = &reason
	b.UpdatedAt = ts
	if err := store.UpdateBusinessSettings(ctx, b); err != nil {
		t.Fatalf("update: %v", err)
	}
	if b.Version != 2 {
		t.Errorf("expected version 2, got %d", b.Version)
	}

	stale.ReviewsPrivate = true
	stale.ReviewsPrivateEnabledAt = &ts
	if err := store.UpdateBusinessSettings(ctx, stale); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict for stale write, got %v", err)
	}

	got, err := store.GetBusinessSettings(ctx, bizID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.DndModeEnabled || got.ReviewsPrivate || got.DndModeReason == nil || *got.DndModeReason != reason {
		t.Fatalf("unexpected stored row %+v", got)
	}
	if !got.DndModeExpiresAt.Equal(ts.Add(2 * time.Hour)) {
		t.Errorf("expected expiry %v, got %v", ts.Add(2*time.Hour), got.DndModeExpiresAt)
	}
}

func TestFindExpiredDndSettings(t *testing.T) {
	store := postgres.NewStore(setupPool(t))
	ctx := context.Background()
	engine := settings.NewDndEngine(0)
	start := now().Add(-10 * time.Hour)

	lapsed := uniqueID("biz")
	active := uniqueID("biz")
	for id, hours := range map[string]int{lapsed: 1, active: 48} {
		b, err := store.CreateBusinessSettings(ctx, id, start)
		if err != nil {
			t.Fatal(err)
		}
		_ = engine.Enable(b, hours, start)
		if err := store.UpdateBusinessSettings(ctx, b); err != nil {
			t.Fatal(err)
		}
	}

	due, err := store.FindExpiredDndSettings(ctx, now())
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	ids := make([]string, 0, len(due))
	for _, b := range due {
		ids = append(ids, b.BusinessID)
	}
	if !slices.Contains(ids, lapsed) {
		t.Errorf("expected %s among due rows", lapsed)
	}
	if slices.Contains(ids, active) {
		t.Errorf("active window %s must not be due", active)
	}
}

func TestRepSettingsRoundTrip(t *testing.T) {
	store := postgres.NewStore(setupPool(t))
	ctx := context.Background()
	repID := uniqueID("rep")

	r, err := store.CreateRepSettings(ctx, repID, now())
	if err != nil {
		t.Fatal(err)
	}
	if r.DisabledAccessUsernames == nil || len(r.DisabledAccessUsernames) != 0 {
		t.Fatalf("expected empty username list, got %#v", r.DisabledAccessUsernames)
	}

	positive := "thanks for the review"
	r.DarkMode = true
	r.NotificationPreferences.InApp = true
	r.AutoResponseTemplates.Positive = &positive
	r.DisabledAccessUsernames = []string{"carol", "alice"}
	r.UpdatedAt = now()
	if err := store.UpdateRepSettings(ctx, r); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := store.GetRepSettings(ctx, repID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.DarkMode || !got.NotificationPreferences.InApp || got.NotificationPreferences.Email {
		t.Errorf("unexpected flags %+v", got)
	}
	if got.AutoResponseTemplates.Positive == nil || *got.AutoResponseTemplates.Positive != positive {
		t.Errorf("expected positive template, got %v", got.AutoResponseTemplates.Positive)
	}
	if !slices.Equal(got.DisabledAccessUsernames, []string{"carol", "alice"}) {
		t.Errorf("expected ordered usernames, got %v", got.DisabledAccessUsernames)
	}

	r.Version = 1
	if err := store.UpdateRepSettings(ctx, r); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestDirectory(t *testing.T) {
	dir := postgres.NewDirectory(setupPool(t))
	ctx := context.Background()
	bizID := uniqueID("biz")
	first, second := uniqueID("rep"), uniqueID("rep")
	ts := now()

	if _, found, err := dir.ParentRepresentative(ctx, bizID); err != nil || found {
		t.Fatalf("expected no parent, got found=%v err=%v", found, err)
	}

	if err := dir.RegisterRepresentative(ctx, second, bizID, ts.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	if err := dir.RegisterRepresentative(ctx, first, bizID, ts); err != nil {
		t.Fatal(err)
	}

	parent, found, err := dir.ParentRepresentative(ctx, bizID)
	if err != nil || !found || parent != first {
		t.Fatalf("expected parent %s, got %s (found=%v err=%v)", first, parent, found, err)
	}

	got, found, err := dir.BusinessForRep(ctx, second)
	if err != nil || !found || got != bizID {
		t.Fatalf("expected business %s, got %s (found=%v err=%v)", bizID, got, found, err)
	}

	supportID := uniqueID("support")
	if ok, _ := dir.IsSupportActor(ctx, supportID); ok {
		t.Fatal("expected no support role yet")
	}
	if err := dir.GrantSupport(ctx, supportID); err != nil {
		t.Fatal(err)
	}
	if ok, err := dir.IsSupportActor(ctx, supportID); err != nil || !ok {
		t.Fatalf("expected support role, got %v (err=%v)", ok, err)
	}
}
