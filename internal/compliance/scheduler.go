package compliance

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scheduler drives the runner: one run immediately at startup, then one per
// interval. Each tick launches an independent run; a slow run never delays or
// blocks the next one.
type Scheduler struct {
	runner   *Runner
	interval time.Duration
	logger   *slog.Logger

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler creates a scheduler with the given interval.
func NewScheduler(runner *Runner, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		runner:   runner,
		interval: interval,
		logger:   logger.With("component", "compliance-scheduler"),
		stop:     make(chan struct{}),
	}
}

// Start launches the schedule loop. The initial run happens before the first
// tick so a fresh process reports compliance state immediately.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("compliance scheduler started", "interval", s.interval)

		s.launch()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.launch()
			}
		}
	}()
}

// Stop halts the schedule loop and waits for launched runs to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
	s.logger.Info("compliance scheduler stopped")
}

func (s *Scheduler) launch() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runner.RunChecks(context.Background())
	}()
}
