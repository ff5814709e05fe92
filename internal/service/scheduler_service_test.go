package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduleIntervalRejectsNonPositive(t *testing.T) {
	t.Parallel()

	s := NewSchedulerService(time.UTC, discardLogger())
	if _, err := s.ScheduleInterval("bad", 0, 0, func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected error for zero interval")
	}
	if _, err := s.ScheduleInterval("bad", -time.Second, 0, func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected error for negative interval")
	}
}

func TestScheduleIntervalFires(t *testing.T) {
	t.Parallel()

	s := NewSchedulerService(time.UTC, discardLogger())
	fired := make(chan struct{}, 1)
	if _, err := s.ScheduleInterval("tick", time.Second, 0, func(context.Context) error {
		select {
		case fired <- struct{}{}:
		default:
		}
		return nil
	}); err != nil {
		t.Fatalf("ScheduleInterval error: %v", err)
	}

	s.Start()
	defer s.Stop()

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("job never fired")
	}
}

func TestScheduleIntervalSkipsOverlappingRuns(t *testing.T) {
	t.Parallel()

	s := NewSchedulerService(time.UTC, discardLogger())
	var runs atomic.Int32
	if _, err := s.ScheduleInterval("slow", time.Second, 0, func(context.Context) error {
		runs.Add(1)
		time.Sleep(2500 * time.Millisecond)
		return nil
	}); err != nil {
		t.Fatalf("ScheduleInterval error: %v", err)
	}

	s.Start()
	time.Sleep(3600 * time.Millisecond)
	s.Stop()

	// Ticks arriving while the first run sleeps must be skipped, not queued.
	if got := runs.Load(); got < 1 || got > 2 {
		t.Fatalf("expected 1-2 runs with overlap skipping, got %d", got)
	}
}
