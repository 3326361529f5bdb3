package task

import (
	"log/slog"
	"sync"

	"github.com/phrazzld/atlas-api/internal/domain"
)

// LevelWeights assigns each hierarchy level its share of overall progress.
// Weights sum to 100 for the levels a task actually walks.
type LevelWeights map[domain.Level]int

// Progress weights per task kind. A province refresh never walks the
// province level itself, so its weights are renormalized across the levels
// below the scope.
var (
	fullRefreshWeights = LevelWeights{
		domain.LevelProvince: 10,
		domain.LevelCity:     20,
		domain.LevelDistrict: 30,
		domain.LevelFacility: 40,
	}

	provinceRefreshWeights = LevelWeights{
		domain.LevelCity:     20,
		domain.LevelDistrict: 30,
		domain.LevelFacility: 50,
	}
)

// WeightsForKind returns the progress weights for the given task kind.
func WeightsForKind(kind domain.TaskKind) LevelWeights {
	if kind == domain.TaskKindProvinceRefresh {
		return provinceRefreshWeights
	}
	return fullRefreshWeights
}

// LevelCount tracks how many nodes are known and how many have been
// processed at one hierarchy level.
type LevelCount struct {
	Total     int
	Processed int
}

// ComputeProgress turns per-level counters into a 0-100 value: the sum over
// weighted levels of weight * processed/total. Levels with no known nodes
// contribute nothing. The result is truncated, never rounded up, so 100 is
// reported only when every known node of every weighted level is processed.
func ComputeProgress(weights LevelWeights, counters map[domain.Level]LevelCount) int {
	var progress float64
	for level, weight := range weights {
		c := counters[level]
		if c.Total <= 0 {
			continue
		}
		processed := c.Processed
		if processed > c.Total {
			processed = c.Total
		}
		progress += float64(weight) * float64(processed) / float64(c.Total)
	}

	value := int(progress)
	if value < 0 {
		value = 0
	}
	if value > 100 {
		value = 100
	}
	return value
}

// ProgressObserver is invoked synchronously with each new progress value.
type ProgressObserver func(progress int)

// ProgressTracker combines the pure progress computation with a per-task
// monotonic guard: a computed value lower than the last reported one is
// clamped so observed progress never decreases. Observers are notified
// synchronously whenever the reported value changes; an observer that panics
// is recovered and logged, never aborting the task.
type ProgressTracker struct {
	mu        sync.Mutex
	weights   LevelWeights
	counters  map[domain.Level]LevelCount
	last      int
	observers []ProgressObserver
	logger    *slog.Logger
}

// NewProgressTracker creates a tracker for one task using the given weights.
func NewProgressTracker(weights LevelWeights, logger *slog.Logger) *ProgressTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressTracker{
		weights:  weights,
		counters: make(map[domain.Level]LevelCount),
		logger:   logger,
	}
}

// Observe registers an observer for subsequent progress changes.
func (t *ProgressTracker) Observe(observer ProgressObserver) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, observer)
}

// AddTotal records n newly discovered nodes at the given level. Totals grow
// as parent nodes resolve; growing a total can only lower the computed ratio,
// which the monotonic guard absorbs.
func (t *ProgressTracker) AddTotal(level domain.Level, n int) {
	if n <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	c := t.counters[level]
	c.Total += n
	t.counters[level] = c
}

// MarkProcessed records n processed nodes at the given level, recomputes
// progress, and notifies observers if the reported value advanced. Returns
// the current reported value.
func (t *ProgressTracker) MarkProcessed(level domain.Level, n int) int {
	if n <= 0 {
		return t.Current()
	}

	t.mu.Lock()
	c := t.counters[level]
	c.Processed += n
	t.counters[level] = c

	computed := ComputeProgress(t.weights, t.counters)
	if computed <= t.last {
		last := t.last
		t.mu.Unlock()
		return last
	}

	t.last = computed
	observers := make([]ProgressObserver, len(t.observers))
	copy(observers, t.observers)
	t.mu.Unlock()

	t.notify(observers, computed)
	return computed
}

// Complete forces the reported value to 100. Called once a task finishes its
// whole walk, covering levels that never discovered any nodes.
func (t *ProgressTracker) Complete() {
	t.mu.Lock()
	if t.last >= 100 {
		t.mu.Unlock()
		return
	}
	t.last = 100
	observers := make([]ProgressObserver, len(t.observers))
	copy(observers, t.observers)
	t.mu.Unlock()

	t.notify(observers, 100)
}

// Current returns the last reported value.
func (t *ProgressTracker) Current() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// Counts returns a snapshot of the per-level counters.
func (t *ProgressTracker) Counts() map[domain.Level]LevelCount {
	t.mu.Lock()
	defer t.mu.Unlock()
	snapshot := make(map[domain.Level]LevelCount, len(t.counters))
	for level, c := range t.counters {
		snapshot[level] = c
	}
	return snapshot
}

// notify invokes each observer outside the tracker lock, recovering panics.
func (t *ProgressTracker) notify(observers []ProgressObserver, progress int) {
	for _, observer := range observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.logger.Warn("progress observer panicked",
						"panic", r,
						"progress", progress)
				}
			}()
			observer(progress)
		}()
	}
}
