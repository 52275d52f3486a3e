// Package dircache decorates a directory.Directory with cache-aside lookups
// and a circuit breaker around the authoritative source.
package dircache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Strob0t/settingsd/internal/port/cache"
	"github.com/Strob0t/settingsd/internal/port/directory"
	"github.com/Strob0t/settingsd/internal/resilience"
)

// Compile-time interface check.
var _ directory.Directory = (*Directory)(nil)

// Key prefixes for cached lookups.
const (
	keyParent      = "parent/"
	keySupport     = "support/"
	keyRepBusiness = "rep-business/"
)

// entry is the cached form of one lookup. Negative answers are cached too.
type entry struct {
	ID    string `json:"id,omitempty"`
	Found bool   `json:"found"`
}

// Directory serves lookups from cache and falls back to the inner directory.
// Errors from the inner directory are never cached.
type Directory struct {
	inner   directory.Directory
	cache   cache.Cache
	ttl     time.Duration
	breaker *resilience.Breaker
}

// New wraps inner. breaker may be nil to call inner directly.
func New(inner directory.Directory, c cache.Cache, ttl time.Duration, breaker *resilience.Breaker) *Directory {
	return &Directory{inner: inner, cache: c, ttl: ttl, breaker: breaker}
}

// ParentRepresentative returns the business's parent representative.
func (d *Directory) ParentRepresentative(ctx context.Context, businessID string) (string, bool, error) {
	e, err := d.lookup(ctx, keyParent+businessID, func(ctx context.Context) (entry, error) {
		id, found, err := d.inner.ParentRepresentative(ctx, businessID)
		return entry{ID: id, Found: found}, err
	})
	if err != nil {
		return "", false, fmt.Errorf("parent representative %s: %w", businessID, err)
	}
	return e.ID, e.Found, nil
}

// IsSupportActor reports whether the user holds the support role.
func (d *Directory) IsSupportActor(ctx context.Context, userID string) (bool, error) {
	e, err := d.lookup(ctx, keySupport+userID, func(ctx context.Context) (entry, error) {
		ok, err := d.inner.IsSupportActor(ctx, userID)
		return entry{Found: ok}, err
	})
	if err != nil {
		return false, fmt.Errorf("support role %s: %w", userID, err)
	}
	return e.Found, nil
}

// BusinessForRep returns the business the representative belongs to.
func (d *Directory) BusinessForRep(ctx context.Context, repID string) (string, bool, error) {
	e, err := d.lookup(ctx, keyRepBusiness+repID, func(ctx context.Context) (entry, error) {
		id, found, err := d.inner.BusinessForRep(ctx, repID)
		return entry{ID: id, Found: found}, err
	})
	if err != nil {
		return "", false, fmt.Errorf("business for rep %s: %w", repID, err)
	}
	return e.ID, e.Found, nil
}

// Invalidate drops the cached answers for a business and a user, e.g. after
// the admin CLI registers a representative or grants the support role.
func (d *Directory) Invalidate(ctx context.Context, businessID, userID string) {
	keys := make([]string, 0, 3)
	if businessID != "" {
		keys = append(keys, keyParent+businessID)
	}
	if userID != "" {
		keys = append(keys, keySupport+userID, keyRepBusiness+userID)
	}
	for _, k := range keys {
		if err := d.cache.Delete(ctx, k); err != nil {
			slog.Warn("directory cache invalidate failed", "key", k, "error", err)
		}
	}
}

func (d *Directory) lookup(ctx context.Context, key string, load func(context.Context) (entry, error)) (entry, error) {
	if data, ok, err := d.cache.Get(ctx, key); err != nil {
		slog.Warn("directory cache get failed", "key", key, "error", err)
	} else if ok {
		var e entry
		if err := json.Unmarshal(data, &e); err == nil {
			return e, nil
		}
		slog.Warn("directory cache entry corrupt", "key", key)
	}

	var e entry
	call := func(ctx context.Context) error {
		var err error
		e, err = load(ctx)
		return err
	}
	var err error
	if d.breaker != nil {
		err = d.breaker.Execute(ctx, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return entry{}, err
	}

	if data, err := json.Marshal(e); err == nil {
		if err := d.cache.Set(ctx, key, data, d.ttl); err != nil {
			slog.Warn("directory cache set failed", "key", key, "error", err)
		}
	}
	return e, nil
}
