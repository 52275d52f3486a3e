package service

import (
	"context"
	"log/slog"
	"time"
)

// DefaultExpiryInterval is the scheduler period when none is configured.
const DefaultExpiryInterval = 15 * time.Minute

// ExpiryProcessor runs one expiry pass. *SettingsService implements it.
type ExpiryProcessor interface {
	ProcessExpiredDndModes(ctx context.Context) (ExpiryReport, error)
}

// ExpiryScheduler periodically expires lapsed DnD windows. It holds no settings
// state; all coordination with request handlers goes through the store.
type ExpiryScheduler struct {
	proc     ExpiryProcessor
	interval time.Duration
}

// NewExpiryScheduler creates a scheduler running proc every interval.
// A non-positive interval falls back to DefaultExpiryInterval.
func NewExpiryScheduler(proc ExpiryProcessor, interval time.Duration) *ExpiryScheduler {
	if interval <= 0 {
		interval = DefaultExpiryInterval
	}
	return &ExpiryScheduler{proc: proc, interval: interval}
}

// Run performs a pass immediately and then on every tick until ctx is
// canceled. A pass in progress finishes the rows it already dispatched before
// Run returns. The returned error is always nil.
func (s *ExpiryScheduler) Run(ctx context.Context) error {
	slog.Info("dnd expiry scheduler started", "interval", s.interval)
	s.pass(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("dnd expiry scheduler stopped")
			return nil
		case <-ticker.C:
			s.pass(ctx)
		}
	}
}

func (s *ExpiryScheduler) pass(ctx context.Context) {
	start := time.Now()
	report, err := s.proc.ProcessExpiredDndModes(ctx)
	if err != nil {
		slog.Error("dnd expiry pass failed", "error", err)
		return
	}
	if report.Due == 0 {
		slog.Debug("dnd expiry pass found nothing due")
		return
	}
	slog.Info("dnd expiry pass completed",
		"due", report.Due,
		"expired", report.Expired,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"duration", time.Since(start),
	)
}
