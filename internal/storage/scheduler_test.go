package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/statvalue/statvalue-companion/internal/positions"
	"github.com/statvalue/statvalue-companion/internal/session"
)

type countingPurger struct {
	mu      sync.Mutex
	calls   int
	cutoffs []time.Time
	err     error
}

func (p *countingPurger) PurgeBefore(_ context.Context, cutoff time.Time) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.cutoffs = append(p.cutoffs, cutoff)
	if p.err != nil {
		return 0, p.err
	}
	return 2, nil
}

func (p *countingPurger) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestNewPurgeScheduler_Defaults(t *testing.T) {
	s := NewPurgeScheduler(&countingPurger{}, nil)

	if s.config.Interval != time.Hour {
		t.Errorf("Expected default interval 1h, got %v", s.config.Interval)
	}
	if s.config.MaxIdle != 30*24*time.Hour {
		t.Errorf("Expected default max idle 720h, got %v", s.config.MaxIdle)
	}
	if s.IsRunning() {
		t.Error("Scheduler should not run before Start")
	}
}

func TestPurgeScheduler_RunOnce(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	purger := &countingPurger{}
	var reported int64
	s := NewPurgeScheduler(purger, &SchedulerConfig{
		Interval: time.Hour,
		MaxIdle:  24 * time.Hour,
		Now:      func() time.Time { return now },
		OnPurge:  func(n int64, _ error) { reported = n },
	})

	n, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 || reported != 2 {
		t.Errorf("purged = %d, reported = %d, want 2", n, reported)
	}
	if want := now.Add(-24 * time.Hour); !purger.cutoffs[0].Equal(want) {
		t.Errorf("cutoff = %v, want %v", purger.cutoffs[0], want)
	}

	status := s.Status()
	if status.RunCount != 1 || status.PurgedTotal != 2 || status.Failures != 0 {
		t.Errorf("unexpected status: %+v", status)
	}
}

func TestPurgeScheduler_RecordsFailures(t *testing.T) {
	purger := &countingPurger{err: errors.New("disk full")}
	s := NewPurgeScheduler(purger, &SchedulerConfig{Interval: time.Hour, MaxIdle: time.Hour})

	if _, err := s.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	status := s.Status()
	if status.Failures != 1 || status.LastError == nil {
		t.Errorf("failure not recorded: %+v", status)
	}
}

func TestPurgeScheduler_StartStop(t *testing.T) {
	purger := &countingPurger{}
	s := NewPurgeScheduler(purger, &SchedulerConfig{
		Interval:         10 * time.Millisecond,
		MaxIdle:          time.Hour,
		StartImmediately: true,
	})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Start(context.Background()); err == nil {
		t.Error("second Start should fail")
	}

	deadline := time.Now().Add(2 * time.Second)
	for purger.Calls() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if purger.Calls() < 3 {
		t.Fatalf("expected at least 3 purges, got %d", purger.Calls())
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if s.IsRunning() {
		t.Error("scheduler should be stopped")
	}
	if err := s.Stop(); err == nil {
		t.Error("Stop on a stopped scheduler should fail")
	}
}

func TestPurgeScheduler_InvalidInterval(t *testing.T) {
	s := NewPurgeScheduler(&countingPurger{}, &SchedulerConfig{})
	if err := s.Start(context.Background()); err == nil {
		t.Error("expected an error for a zero interval")
	}
}

func TestPurgeScheduler_WithRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSessionRepository(db, nil)
	history := NewHistoryRepository(db)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	if err := repo.Save(ctx, session.Record{ID: "old", Position: positions.Forward, CreatedAt: old, UpdatedAt: old}); err != nil {
		t.Fatal(err)
	}
	if err := history.SaveComparison(ctx, session.ComparisonRecord{SessionID: "old", Position: "forward", Players: []string{"a", "b"}}); err != nil {
		t.Fatal(err)
	}

	s := NewPurgeScheduler(repo, &SchedulerConfig{Interval: time.Hour, MaxIdle: 24 * time.Hour})
	n, err := s.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("purged %d sessions, want 1", n)
	}

	list, err := history.ListComparisons(ctx, "old", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("history of a purged session should be gone, got %d rows", len(list))
	}
}
