package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// countingProcessor counts passes and signals after each one.
type countingProcessor struct {
	passes atomic.Int32
	err    error
	ran    chan struct{}
}

func (p *countingProcessor) ProcessExpiredDndModes(context.Context) (ExpiryReport, error) {
	p.passes.Add(1)
	select {
	case p.ran <- struct{}{}:
	default:
	}
	return ExpiryReport{Due: 1, Expired: 1}, p.err
}

func waitPass(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for expiry pass")
	}
}

func TestExpirySchedulerRunsImmediately(t *testing.T) {
	proc := &countingProcessor{ran: make(chan struct{}, 1)}
	s := NewExpiryScheduler(proc, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	waitPass(t, proc.ran)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	if got := proc.passes.Load(); got != 1 {
		t.Errorf("expected exactly one pass with a long interval, got %d", got)
	}
}

func TestExpirySchedulerTicksAndSurvivesErrors(t *testing.T) {
	proc := &countingProcessor{ran: make(chan struct{}, 1), err: errors.New("db down")}
	s := NewExpiryScheduler(proc, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	for range 3 {
		waitPass(t, proc.ran)
	}
	if got := proc.passes.Load(); got < 3 {
		t.Fatalf("expected at least 3 passes, got %d", got)
	}
}

func TestNewExpirySchedulerDefaultInterval(t *testing.T) {
	s := NewExpiryScheduler(&countingProcessor{}, 0)
	if s.interval != DefaultExpiryInterval {
		t.Fatalf("expected %v, got %v", DefaultExpiryInterval, s.interval)
	}
}

func TestExpirySchedulerWithService(t *testing.T) {
	f := newFixture(t)
	seedLapsed(f, bizID)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = NewExpiryScheduler(f.svc, time.Hour).Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		if b, _ := f.store.business(bizID); !b.DndModeEnabled {
			break
		}
		select {
		case <-deadline:
			t.Fatal("scheduler did not expire the lapsed window")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done
}
