// Package database defines the database store port (interface).
package database

import (
	"context"
	"time"

	"github.com/Strob0t/settingsd/internal/domain/settings"
)

// Store is the port interface for settings persistence.
//
// Update methods are compare-and-swap on Version: they succeed only when the
// stored version equals the record's version, bump it, and otherwise return
// domain.ErrConflict. This serializes writes per settings row.
type Store interface {
	// Business settings
	GetBusinessSettings(ctx context.Context, businessID string) (*settings.BusinessSettings, error)
	// CreateBusinessSettings inserts the default record, or returns the existing
	// one when another caller created it first.
	CreateBusinessSettings(ctx context.Context, businessID string, now time.Time) (*settings.BusinessSettings, error)
	UpdateBusinessSettings(ctx context.Context, b *settings.BusinessSettings) error
	// FindExpiredDndSettings returns records with dnd_mode_enabled AND dnd_mode_expires_at <= now.
	FindExpiredDndSettings(ctx context.Context, now time.Time) ([]settings.BusinessSettings, error)

	// Representative settings
	GetRepSettings(ctx context.Context, repID string) (*settings.RepSettings, error)
	CreateRepSettings(ctx context.Context, repID string, now time.Time) (*settings.RepSettings, error)
	UpdateRepSettings(ctx context.Context, r *settings.RepSettings) error
}
