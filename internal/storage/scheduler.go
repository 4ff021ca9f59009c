package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Purger deletes stored sessions idle since a cutoff.
type Purger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PurgeScheduler periodically removes idle sessions.
type PurgeScheduler struct {
	purger Purger
	config *SchedulerConfig

	mu          sync.RWMutex
	cancel      context.CancelFunc
	done        chan struct{}
	running     bool
	lastRun     time.Time
	lastError   error
	purgedTotal int64
	runCount    int
	failures    int
}

// SchedulerConfig holds configuration for the purge scheduler.
type SchedulerConfig struct {
	// Interval is how often to purge.
	Interval time.Duration

	// MaxIdle is how long a session may go unused before it is purged.
	MaxIdle time.Duration

	// StartImmediately purges once when the scheduler starts.
	StartImmediately bool

	// OnPurge is called after each run with the number of removed
	// sessions. Optional.
	OnPurge func(purged int64, err error)

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// DefaultSchedulerConfig returns hourly purges of sessions idle for 30 days.
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		Interval:         time.Hour,
		MaxIdle:          30 * 24 * time.Hour,
		StartImmediately: true,
	}
}

// NewPurgeScheduler creates a scheduler. It does nothing until Start.
func NewPurgeScheduler(purger Purger, config *SchedulerConfig) *PurgeScheduler {
	if config == nil {
		config = DefaultSchedulerConfig()
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &PurgeScheduler{purger: purger, config: config}
}

// Start runs the scheduler until ctx is cancelled or Stop is called.
// Returns an error if the scheduler is already running.
func (s *PurgeScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	if s.config.Interval <= 0 {
		return fmt.Errorf("scheduler interval must be positive: %s", s.config.Interval)
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.running = true

	go s.run(ctx, s.done)
	return nil
}

// Stop stops the scheduler and waits for a running purge to finish.
func (s *PurgeScheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is not running")
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	return nil
}

func (s *PurgeScheduler) run(ctx context.Context, done chan struct{}) {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		close(done)
	}()

	if s.config.StartImmediately {
		s.RunOnce(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce purges immediately and updates the statistics.
func (s *PurgeScheduler) RunOnce(ctx context.Context) (int64, error) {
	now := s.config.Now()
	n, err := s.purger.PurgeBefore(ctx, now.Add(-s.config.MaxIdle))

	s.mu.Lock()
	s.lastRun = now
	s.lastError = err
	s.runCount++
	if err != nil {
		s.failures++
	} else {
		s.purgedTotal += n
	}
	s.mu.Unlock()

	if s.config.OnPurge != nil {
		s.config.OnPurge(n, err)
	}
	return n, err
}

// Status returns the current scheduler status.
func (s *PurgeScheduler) Status() SchedulerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var next time.Time
	if s.running && !s.lastRun.IsZero() {
		next = s.lastRun.Add(s.config.Interval)
	}
	return SchedulerStatus{
		Running:     s.running,
		Interval:    s.config.Interval,
		LastRun:     s.lastRun,
		NextRun:     next,
		RunCount:    s.runCount,
		Failures:    s.failures,
		PurgedTotal: s.purgedTotal,
		LastError:   s.lastError,
	}
}

// IsRunning returns whether the scheduler is currently running.
func (s *PurgeScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// SchedulerStatus contains information about the scheduler state.
type SchedulerStatus struct {
	Running     bool
	Interval    time.Duration
	LastRun     time.Time
	NextRun     time.Time
	RunCount    int
	Failures    int
	PurgedTotal int64
	LastError   error
}

// String returns a human-readable representation of the scheduler status.
func (s SchedulerStatus) String() string {
	if !s.Running {
		return "Purge scheduler: stopped"
	}

	status := "Purge scheduler: running\n"
	status += fmt.Sprintf("  Interval: %s\n", s.Interval)
	status += fmt.Sprintf("  Runs: %d (failures: %d)\n", s.RunCount, s.Failures)
	status += fmt.Sprintf("  Sessions purged: %d\n", s.PurgedTotal)
	if !s.LastRun.IsZero() {
		status += fmt.Sprintf("  Last run: %s\n", s.LastRun.Format(time.RFC3339))
	}
	if !s.NextRun.IsZero() {
		status += fmt.Sprintf("  Next run: %s\n", s.NextRun.Format(time.RFC3339))
	}
	if s.LastError != nil {
		status += fmt.Sprintf("  Last error: %v\n", s.LastError)
	}
	return status
}
