package metrics

import (
	"sync"
	"time"
)

// Metrics aggregates ingestion outcomes across cycles. The health and
// metrics endpoints read it; the pipeline and scheduler write it.
type Metrics struct {
	mu sync.RWMutex

	// Counters
	CyclesCompleted    int64
	CyclesSkipped      int64 // scheduler ticks dropped because a cycle was running
	SourcesFetched     int64
	SourcesFailed      int64
	EntriesSeen        int64
	ArticlesAdded      int64
	DuplicatesFiltered int64
	ExtractionFailures int64
	SummaryFailures    int64
	ArticlesSwept      int64

	// Timings
	LastCycleDuration    time.Duration
	AverageCycleDuration time.Duration
	totalCycleDuration   time.Duration

	// Status
	LastCycleStart time.Time
	LastCycleEnd   time.Time
	LastSweepTime  time.Time
	LastErrorTime  time.Time
	LastError      string
	IsHealthy      bool
}

var Global = &Metrics{IsHealthy: true}

// RecordCycle folds one completed cycle into the counters.
func (m *Metrics) RecordCycle(sourcesOK, sourcesFailed, entries, added, duplicates, extractFailed, summaryFailed int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CyclesCompleted++
	m.SourcesFetched += int64(sourcesOK)
	m.SourcesFailed += int64(sourcesFailed)
	m.EntriesSeen += int64(entries)
	m.ArticlesAdded += int64(added)
	m.DuplicatesFiltered += int64(duplicates)
	m.ExtractionFailures += int64(extractFailed)
	m.SummaryFailures += int64(summaryFailed)

	m.LastCycleDuration = duration
	m.totalCycleDuration += duration
	m.AverageCycleDuration = m.totalCycleDuration / time.Duration(m.CyclesCompleted)

	m.LastCycleEnd = time.Now()
	m.IsHealthy = true
}

func (m *Metrics) RecordCycleStart() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastCycleStart = time.Now()
}

func (m *Metrics) RecordSkippedCycle() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CyclesSkipped++
}

func (m *Metrics) RecordSweep(deleted int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ArticlesSwept += int64(deleted)
	m.LastSweepTime = time.Now()
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.IsHealthy
}

func (m *Metrics) Snapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"cycles_completed": m.CyclesCompleted,
		"cycles_skipped": m.CyclesSkipped,
		"sources_fetched": m.SourcesFetched,
		"sources_failed": m.SourcesFailed,
		"entries_seen": m.EntriesSeen,
		"articles_added": m.ArticlesAdded,
		"duplicates_filtered": m.DuplicatesFiltered,
		"extraction_failures": m.ExtractionFailures,
		"summary_failures": m.SummaryFailures,
		"articles_swept": m.ArticlesSwept,
		"last_cycle_duration_ms": m.LastCycleDuration.Milliseconds(),
		"avg_cycle_duration_ms": m.AverageCycleDuration.Milliseconds(),
		"last_cycle_start": m.LastCycleStart.Format(time.RFC3339),
		"last_successful_cycle": m.LastCycleEnd.Format(time.RFC3339),
		"last_sweep_time": m.LastSweepTime.Format(time.RFC3339),
		"last_error_time": m.LastErrorTime.Format(time.RFC3339),
		"last_error": m.LastError,
		"is_healthy": m.IsHealthy,
	}
}
