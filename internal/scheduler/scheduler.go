// Package scheduler owns run cadence and nothing else: the timer and a
// single mutual-exclusion gate. All business logic lives in the job.
package scheduler

import (
	"context"
	"sync"
	"time"

	"secwire/internal/logger"
	"secwire/internal/metrics"
)

// Job is one unit of scheduled work, typically the ingestion cycle.
type Job func(ctx context.Context)

// Scheduler fires the job once at startup and then on a fixed interval.
// A tick that arrives while the job is still running is skipped outright:
// never queued, never cancelling the running cycle, always counted.
type Scheduler struct {
	interval time.Duration
	job      Job

	running sync.Mutex // held for the duration of one job run
	stopped chan struct{}
	stop    sync.Once
	wg      sync.WaitGroup

	mu    sync.Mutex
	skips int64
}

func New(interval time.Duration, job Job) *Scheduler {
	return &Scheduler{
		interval: interval,
		job:      job,
		stopped:  make(chan struct{}),
	}
}

// Start launches the scheduler loop. The startup run happens immediately
// on the loop goroutine. Call Stop to tear down.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.trigger(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.trigger(ctx)
			case <-ctx.Done():
				return
			case <-s.stopped:
				return
			}
		}
	}()
}

// trigger starts the job on its own goroutine if no run is in flight,
// otherwise records a skip. Running the job off the timer goroutine keeps
// ticks arriving on schedule, so overlap is observed instead of queued.
func (s *Scheduler) trigger(ctx context.Context) {
	if !s.running.TryLock() {
		s.mu.Lock()
		s.skips++
		skips := s.skips
		s.mu.Unlock()

		metrics.Global.RecordSkippedCycle()
		logger.Warn("cycle still running, skipping trigger", "total_skips", skips)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Unlock()
		s.job(ctx)
	}()
}

// TriggerNow runs the job immediately under the same gate, for manual
// kicks from the operational surface. Returns false when a run was
// already in flight.
func (s *Scheduler) TriggerNow(ctx context.Context) bool {
	if !s.running.TryLock() {
		metrics.Global.RecordSkippedCycle()
		return false
	}
	defer s.running.Unlock()

	s.job(ctx)
	return true
}

// Skips reports how many triggers were dropped due to an in-flight run.
func (s *Scheduler) Skips() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skips
}

// Stop halts the timer and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	s.stop.Do(func() { close(s.stopped) })
	s.wg.Wait()
}
