package settings

import (
	"fmt"
	"time"

	"github.com/Strob0t/settingsd/internal/domain"
)

// DefaultMaxDndHours is the configured default cap for a single enable or
// extend step (30 days).
const DefaultMaxDndHours = 720

// DndEngine drives the DnD state machine of a BusinessSettings record.
//
//	Inactive --Enable--> Active
//	Active   --Enable--> Active   (restarts from now with the new duration)
//	Active   --Extend--> Active   (expiry += hours, extension count += 1)
//	Active   --Disable-> Inactive
//	Active   --Expire--> Inactive (only once now >= expiry)
//
// The engine mutates the record in place and never touches persistence.
type DndEngine struct {
	MaxStepHours int // 0 means uncapped
}

// NewDndEngine returns an engine with the given per-step cap. A non-positive
// cap disables the check.
func NewDndEngine(maxStepHours int) DndEngine {
	return DndEngine{MaxStepHours: max(maxStepHours, 0)}
}

func (e DndEngine) checkHours(field string, hours int) error {
	if hours <= 0 {
		return fmt.Errorf("%s must be greater than 0: %w", field, domain.ErrInvalidArgument)
	}
	if e.MaxStepHours > 0 && hours > e.MaxStepHours {
		return fmt.Errorf("%s must not exceed %d: %w", field, e.MaxStepHours, domain.ErrInvalidArgument)
	}
	return nil
}

// CheckExtension validates an extension step without touching a record. Only
// the configured dnd.max_step_hours bounds it; 0 accepts any positive step.
func (e DndEngine) CheckExtension(hours int) error {
	return e.checkHours("additional_hours", hours)
}

// Enable activates DnD for hours from now. Enabling an active record restarts
// the window; remaining time is not carried over.
func (e DndEngine) Enable(b *BusinessSettings, hours int, now time.Time) error {
	if err := e.checkHours("dnd_mode_duration_hours", hours); err != nil {
		return err
	}
	enabledAt := now
	expiresAt := now.Add(time.Duration(hours) * time.Hour)
	b.DndModeEnabled = true
	b.DndModeEnabledAt = &enabledAt
	b.DndModeExpiresAt = &expiresAt
	b.DndExtensionCount = 0
	return nil
}

// Extend pushes the expiry of an active record out by hours. The new expiry is
// computed from the stored expiry, also when it already lies in the past.
// It returns the remaining hours as of now.
func (e DndEngine) Extend(b *BusinessSettings, hours int, now time.Time) (float64, error) {
	if err := e.CheckExtension(hours); err != nil {
		return 0, err
	}
	if !b.DndModeEnabled || b.DndModeExpiresAt == nil {
		return 0, fmt.Errorf("dnd mode is not active: %w", domain.ErrInvalidState)
	}
	expiresAt := b.DndModeExpiresAt.Add(time.Duration(hours) * time.Hour)
	b.DndModeExpiresAt = &expiresAt
	b.DndExtensionCount++
	return expiresAt.Sub(now).Hours(), nil
}

// Disable deactivates DnD. It is a no-op for an inactive record.
func (e DndEngine) Disable(b *BusinessSettings) {
	clearDnd(b)
}

// Expire deactivates DnD when its window has lapsed at now and reports whether
// a transition happened. ModifiedByUserID is left untouched: automatic
// transitions have no actor.
func (e DndEngine) Expire(b *BusinessSettings, now time.Time) bool {
	if !IsDndLapsed(b, now) {
		return false
	}
	clearDnd(b)
	b.UpdatedAt = now
	return true
}

// IsDndLapsed reports whether b is active with an expiry at or before now.
func IsDndLapsed(b *BusinessSettings, now time.Time) bool {
	return b.DndModeEnabled && b.DndModeExpiresAt != nil && !now.Before(*b.DndModeExpiresAt)
}

// RemainingHours returns the hours left until expiry, 0 for inactive or lapsed records.
func RemainingHours(b *BusinessSettings, now time.Time) float64 {
	if !b.DndModeEnabled || b.DndModeExpiresAt == nil {
		return 0
	}
	return max(b.DndModeExpiresAt.Sub(now).Hours(), 0)
}

func clearDnd(b *BusinessSettings) {
	b.DndModeEnabled = false
	b.DndModeEnabledAt = nil
	b.DndModeExpiresAt = nil
	b.DndModeReason = nil
	b.DndModeMessage = nil
	b.DndExtensionCount = 0
}
