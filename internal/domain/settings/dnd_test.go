package settings

import (
	"errors"
	"testing"
	"time"

	"github.com/Strob0t/settingsd/internal/domain"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func TestEnableFromInactive(t *testing.T) {
	b := NewBusinessSettings("biz-1", t0)
	e := NewDndEngine(0)

	if err := e.Enable(&b, 48, t0); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if !b.DndModeEnabled {
		t.Fatal("expected dnd enabled")
	}
	if !b.DndModeEnabledAt.Equal(t0) {
		t.Errorf("expected enabled_at %v, got %v", t0, b.DndModeEnabledAt)
	}
	if want := t0.Add(48 * time.Hour); !b.DndModeExpiresAt.Equal(want) {
		t.Errorf("expected expires_at %v, got %v", want, b.DndModeExpiresAt)
	}
	if !b.DndModeExpiresAt.After(*b.DndModeEnabledAt) {
		t.Error("expires_at must be after enabled_at")
	}
}

func TestEnableRejectsNonPositiveDuration(t *testing.T) {
	e := NewDndEngine(0)
	for _, hours := range []int{0, -1, -48} {
		b := NewBusinessSettings("biz-1", t0)
		err := e.Enable(&b, hours, t0)
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("hours=%d: expected ErrInvalidArgument, got %v", hours, err)
		}
		if b.DndModeEnabled {
			t.Errorf("hours=%d: record must stay inactive", hours)
		}
	}
}

func TestEnableRejectsAboveCap(t *testing.T) {
	e := NewDndEngine(24)
	b := NewBusinessSettings("biz-1", t0)
	if err := e.Enable(&b, 25, t0); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestZeroCapAcceptsAnyPositiveStep(t *testing.T) {
	e := NewDndEngine(0)
	b := NewBusinessSettings("biz-1", t0)
	if err := e.Enable(&b, 10_000, t0); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if err := e.CheckExtension(50_000); err != nil {
		t.Fatalf("CheckExtension: %v", err)
	}
	if _, err := e.Extend(&b, 50_000, t0); err != nil {
		t.Fatalf("Extend: %v", err)
	}
	if want := t0.Add(60_000 * time.Hour); !b.DndModeExpiresAt.Equal(want) {
		t.Errorf("expected expires_at %v, got %v", want, b.DndModeExpiresAt)
	}
}

func TestReEnableRestartsWindow(t *testing.T) {
	e := NewDndEngine(0)
	b := NewBusinessSettings("biz-1", t0)
	_ = e.Enable(&b, 48, t0)
	_, _ = e.Extend(&b, 24, t0.Add(time.Hour))

	later := t0.Add(10 * time.Hour)
	if err := e.Enable(&b, 5, later); err != nil {
		t.Fatal(err)
	}
	if want := later.Add(5 * time.Hour); !b.DndModeExpiresAt.Equal(want) {
		t.Errorf("expected expires_at %v, got %v", want, b.DndModeExpiresAt)
	}
	if b.DndExtensionCount != 0 {
		t.Errorf("expected extension count reset, got %d", b.DndExtensionCount)
	}
}

func TestExtendCompoundsFromStoredExpiry(t *testing.T) {
	e := NewDndEngine(0)
	b := NewBusinessSettings("biz-1", t0)
	_ = e.Enable(&b, 48, t0)

	remaining, err := e.Extend(&b, 24, t0.Add(10*time.Hour))
	if err != nil {
		t.Fatalf("Extend: %v", err)
	}
	if want := t0.Add(72 * time.Hour); !b.DndModeExpiresAt.Equal(want) {
		t.Errorf("expected expires_at %v, got %v", want, b.DndModeExpiresAt)
	}
	if b.DndExtensionCount != 1 {
		t.Errorf("expected extension count 1, got %d", b.DndExtensionCount)
	}
	if remaining != 62 {
		t.Errorf("expected 62 remaining hours, got %v", remaining)
	}
}

func TestExtendLapsedRecordUsesStoredExpiry(t *testing.T) {
	e := NewDndEngine(0)
	b := NewBusinessSettings("biz-1", t0)
	_ = e.Enable(&b, 1, t0)

	// Lapsed 5h ago but not yet processed by the scheduler.
	now := t0.Add(6 * time.Hour)
	remaining, err := e.Extend(&b, 2, now)
	if err != nil {
		t.Fatal(err)
	}
	if want := t0.Add(3 * time.Hour); !b.DndModeExpiresAt.Equal(want) {
		t.Errorf("expected expires_at %v, got %v", want, b.DndModeExpiresAt)
	}
	if remaining != -3 {
		t.Errorf("expected -3 remaining hours, got %v", remaining)
	}
}

func TestExtendInactiveFails(t *testing.T) {
	e := NewDndEngine(0)
	b := NewBusinessSettings("biz-1", t0)
	_, err := e.Extend(&b, 24, t0)
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestExtendNonPositiveFails(t *testing.T) {
	e := NewDndEngine(0)
	b := NewBusinessSettings("biz-1", t0)
	_ = e.Enable(&b, 48, t0)
	before := *b.DndModeExpiresAt

	_, err := e.Extend(&b, 0, t0)
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if !b.DndModeExpiresAt.Equal(before) || b.DndExtensionCount != 0 {
		t.Error("failed extend must not change state")
	}
}

func TestDisableClearsFields(t *testing.T) {
	e := NewDndEngine(0)
	b := NewBusinessSettings("biz-1", t0)
	_ = e.Enable(&b, 48, t0)
	b.DndModeReason = strPtr("holiday")
	b.DndModeMessage = strPtr("back soon")
	_, _ = e.Extend(&b, 1, t0)

	e.Disable(&b)

	if b.DndModeEnabled || b.DndModeEnabledAt != nil || b.DndModeExpiresAt != nil ||
		b.DndModeReason != nil || b.DndModeMessage != nil || b.DndExtensionCount != 0 {
		t.Fatalf("expected all dnd fields cleared, got %+v", b)
	}
}

func TestExpire(t *testing.T) {
	e := NewDndEngine(0)
	actor := "rep-parent"

	tests := []struct {
		name    string
		now     time.Time
		expired bool
	}{
		{"before expiry", t0.Add(47 * time.Hour), false},
		{"exactly at expiry", t0.Add(48 * time.Hour), true},
		{"after expiry", t0.Add(49 * time.Hour), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBusinessSettings("biz-1", t0)
			_ = e.Enable(&b, 48, t0)
			b.ModifiedByUserID = &actor

			got := e.Expire(&b, tt.now)
			if got != tt.expired {
				t.Fatalf("expected expired=%v, got %v", tt.expired, got)
			}
			if b.DndModeEnabled == tt.expired {
				t.Errorf("unexpected dnd_mode_enabled=%v", b.DndModeEnabled)
			}
			if b.ModifiedByUserID == nil || *b.ModifiedByUserID != actor {
				t.Error("expire must keep the last human modifier")
			}
		})
	}
}

func TestExpireInactiveIsNoop(t *testing.T) {
	e := NewDndEngine(0)
	b := NewBusinessSettings("biz-1", t0)
	if e.Expire(&b, t0.Add(time.Hour)) {
		t.Fatal("expected no transition for inactive record")
	}
	if !b.UpdatedAt.Equal(t0) {
		t.Error("no-op expire must not touch updated_at")
	}
}

func TestRemainingHours(t *testing.T) {
	e := NewDndEngine(0)
	b := NewBusinessSettings("biz-1", t0)
	if got := RemainingHours(&b, t0); got != 0 {
		t.Errorf("inactive: expected 0, got %v", got)
	}
	_ = e.Enable(&b, 10, t0)
	if got := RemainingHours(&b, t0.Add(4*time.Hour)); got != 6 {
		t.Errorf("expected 6, got %v", got)
	}
	if got := RemainingHours(&b, t0.Add(12*time.Hour)); got != 0 {
		t.Errorf("lapsed: expected 0, got %v", got)
	}
}
