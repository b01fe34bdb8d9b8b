/*
scheduler.go - Periodic deadline and attendance checks

PURPOSE:
  Calls Service.Tick on a fixed interval so that reminders, final rosters
  and attendance prompts go out without anybody typing a command.

DESIGN:
  - Runs a background goroutine with a configurable check interval
  - Ticks once immediately on Start
  - Tick itself is idempotent: a reminder or a prompt is only ever sent once,
    so a short interval only costs CPU

CONFIGURATION:
  - CheckInterval: How often to check (default: 10 minutes)
  - Enabled: Whether the scheduler runs (default: true)

USAGE:
  scheduler := NewScheduler(service, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()
*/
package room

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scheduler drives Service.Tick.
type Scheduler struct {
	Service       *Service
	CheckInterval time.Duration
	Enabled       bool
	Now           func() time.Time

	log    *slog.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewScheduler creates a scheduler for svc.
func NewScheduler(svc *Service, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		Service:       svc,
		CheckInterval: 10 * time.Minute,
		Enabled:       true,
		Now:           time.Now,
		log:           logger.With("component", "scheduler"),
	}
}

// Start begins the scheduler.
func (sc *Scheduler) Start() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if !sc.Enabled {
		sc.log.Info("disabled, not starting")
		return
	}
	if sc.ticker != nil {
		return
	}

	sc.ticker = time.NewTicker(sc.CheckInterval)
	sc.stop = make(chan struct{})
	sc.wg.Add(1)

	go sc.run(sc.ticker, sc.stop)

	sc.log.Info("started", "interval", sc.CheckInterval)
}

// Stop stops the scheduler and waits for a running tick to finish.
func (sc *Scheduler) Stop() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.ticker != nil {
		sc.ticker.Stop()
		close(sc.stop)
		sc.wg.Wait()
		sc.ticker = nil
		sc.log.Info("stopped")
	}
}

func (sc *Scheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer sc.wg.Done()

	// Run immediately on start
	sc.RunNow()

	for {
		select {
		case <-ticker.C:
			sc.RunNow()
		case <-stop:
			return
		}
	}
}

// RunNow triggers an immediate check.
func (sc *Scheduler) RunNow() {
	now := sc.Now()
	sc.log.Debug("checking deadlines and attendance", "at", now)
	sc.Service.Tick(context.Background(), now)
}

// NextRunTime returns when the next scheduled check will occur.
func (sc *Scheduler) NextRunTime() time.Time {
	return sc.Now().Add(sc.CheckInterval)
}
