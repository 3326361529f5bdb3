package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/atlas-api/internal/domain"
	"github.com/phrazzld/atlas-api/internal/events"
	"github.com/phrazzld/atlas-api/internal/store"
)

// Pagination bounds for task listings.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// runHandle tracks one running walk: its cancel function and a channel
// closed after the task's terminal state has been recorded and all of its
// work has unwound.
type runHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager is the top-level orchestrator for refresh tasks: lifecycle,
// execution, cancellation, listing and cleanup. It owns the hierarchy walk
// and is the only component that mutates task records; updates to one task
// are serialized through a per-task lock, and the store's terminal guard
// keeps finished tasks frozen.
type Manager struct {
	tasks   store.TaskStore
	places  store.PlaceStore
	fetcher *HierarchyFetcher
	sched   Scheduler
	emitter events.EventEmitter
	logger  *slog.Logger

	baseCtx    context.Context
	cancelBase context.CancelFunc

	mu      sync.Mutex
	running map[uuid.UUID]*runHandle
	closed  bool

	locksMu sync.Mutex
	locks   map[uuid.UUID]*sync.Mutex
}

// NewManager creates a Manager. The emitter may be nil, in which case no
// lifecycle events are published; every other dependency is required.
func NewManager(
	tasks store.TaskStore,
	places store.PlaceStore,
	fetcher *HierarchyFetcher,
	sched Scheduler,
	emitter events.EventEmitter,
	logger *slog.Logger,
) (*Manager, error) {
	if tasks == nil {
		return nil, ErrNilTaskStore
	}
	if places == nil {
		return nil, ErrNilPlaceStore
	}
	if fetcher == nil {
		return nil, ErrNilFetcher
	}
	if sched == nil {
		return nil, ErrNilScheduler
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	baseCtx, cancelBase := context.WithCancel(context.Background())

	return &Manager{
		tasks:      tasks,
		places:     places,
		fetcher:    fetcher,
		sched:      sched,
		emitter:    emitter,
		logger:     logger,
		baseCtx:    baseCtx,
		cancelBase: cancelBase,
		running:    make(map[uuid.UUID]*runHandle),
		locks:      make(map[uuid.UUID]*sync.Mutex),
	}, nil
}

// CreateTask validates the kind/scope combination and persists a new pending
// task. Execution does not start until StartTask is called. On a validation
// failure nothing is persisted.
func (m *Manager) CreateTask(ctx context.Context, kind domain.TaskKind, scope string) (*domain.RefreshTask, error) {
	task, err := domain.NewRefreshTask(kind, scope)
	if err != nil {
		return nil, err
	}

	if err := m.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	m.logger.Info("task created",
		"task_id", task.ID,
		"kind", task.Kind,
		"scope", task.Scope)
	m.emit(ctx, events.TypeTaskCreated, task)

	return task, nil
}

// StartTask transitions a pending task to running and spawns its hierarchy
// walk on the scheduler. It returns immediately; all further status changes
// happen asynchronously. Returns store.ErrTaskNotFound for an unknown id and
// ErrTaskNotPending when the task has already started or finished.
func (m *Manager) StartTask(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	if _, exists := m.running[id]; exists {
		m.mu.Unlock()
		return fmt.Errorf("%w: already running", ErrTaskNotPending)
	}

	task, err := m.tasks.Get(ctx, id)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if task.Status != domain.TaskStatusPending {
		m.mu.Unlock()
		return fmt.Errorf("%w: status is %s", ErrTaskNotPending, task.Status)
	}

	running := domain.TaskStatusRunning
	step := "starting"
	if err := m.updateTask(ctx, id, store.TaskUpdate{Status: &running, CurrentStep: &step}); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("mark task running: %w", err)
	}
	task.Status = domain.TaskStatusRunning

	runCtx, cancelRun := context.WithCancel(m.baseCtx)
	handle := &runHandle{cancel: cancelRun, done: make(chan struct{})}
	m.running[id] = handle
	m.mu.Unlock()

	m.logger.Info("task started", "task_id", id, "kind", task.Kind, "scope", task.Scope)
	m.emit(ctx, events.TypeTaskStatusChanged, task)

	m.sched.Spawn(func() {
		m.runTask(runCtx, task, handle)
	})

	return nil
}

// runTask executes one task's walk and records its terminal state. It is
// the single writer of that state: CancelTask waits on handle.done, which
// closes only after the terminal update has been committed.
func (m *Manager) runTask(ctx context.Context, task *domain.RefreshTask, handle *runHandle) {
	id := task.ID
	log := m.logger.With("task_id", id, "kind", task.Kind)

	defer func() {
		m.mu.Lock()
		delete(m.running, id)
		m.mu.Unlock()
		handle.cancel()
		close(handle.done)
	}()

	tracker := NewProgressTracker(WeightsForKind(task.Kind), log)
	tracker.Observe(func(progress int) {
		p := progress
		// Progress writes use a fresh context: they must not be starved by
		// the run's own cancellation, and the store's terminal guard drops
		// any straggler after the task settles.
		err := m.updateTask(context.Background(), id, store.TaskUpdate{Progress: &p})
		if err != nil && !errors.Is(err, store.ErrTaskAlreadyTerminal) {
			log.Warn("failed to persist progress", "progress", p, "error", err)
		}
	})

	step := func(_ context.Context, s string) {
		current := s
		err := m.updateTask(context.Background(), id, store.TaskUpdate{CurrentStep: &current})
		if err != nil && !errors.Is(err, store.ErrTaskAlreadyTerminal) {
			log.Debug("failed to persist current step", "step", s, "error", err)
		}
	}

	walk := newHierarchyWalk(task, m.fetcher, m.places, tracker, m.sched, log, step)
	result, err := walk.Run(ctx)

	switch {
	case err == nil:
		tracker.Complete()
		progress := 100
		step := "completed"
		m.finishTask(id, task, domain.TaskStatusSucceeded, store.TaskUpdate{
			Progress:    &progress,
			CurrentStep: &step,
			Result:      result,
		})
		log.Info("task succeeded",
			"provinces", result.Counts.Provinces,
			"cities", result.Counts.Cities,
			"districts", result.Counts.Districts,
			"facilities", result.Counts.Facilities,
			"branch_failures", len(result.Failures))

	case errors.Is(err, context.Canceled):
		step := "cancelled"
		m.finishTask(id, task, domain.TaskStatusCancelled, store.TaskUpdate{
			CurrentStep: &step,
		})
		log.Info("task cancelled")

	default:
		step := "failed"
		message := err.Error()
		m.finishTask(id, task, domain.TaskStatusFailed, store.TaskUpdate{
			CurrentStep:  &step,
			ErrorMessage: &message,
		})
		log.Error("task failed", "error", err)
	}
}

// finishTask commits a terminal status for the task and emits the matching
// lifecycle event.
func (m *Manager) finishTask(id uuid.UUID, task *domain.RefreshTask, status domain.TaskStatus, update store.TaskUpdate) {
	now := time.Now().UTC()
	update.Status = &status
	update.CompletedAt = &now

	if err := m.updateTask(context.Background(), id, update); err != nil {
		m.logger.Error("failed to record terminal task state",
			"task_id", id,
			"status", status,
			"error", err)
	}
	m.releaseLock(id)

	snapshot := *task
	snapshot.Status = status
	if update.Progress != nil {
		snapshot.Progress = *update.Progress
	}
	snapshot.CompletedAt = &now
	m.emit(context.Background(), events.TypeTaskStatusChanged, &snapshot)
}

// GetTask returns the latest committed snapshot of the task.
// Returns store.ErrTaskNotFound for an unknown id.
func (m *Manager) GetTask(ctx context.Context, id uuid.UUID) (*domain.RefreshTask, error) {
	return m.tasks.Get(ctx, id)
}

// CancelTask requests cooperative cancellation. For a running task it waits
// until the walk has acknowledged the request, unwound its in-flight work
// and recorded the cancelled state. A pending task is marked cancelled
// directly. Returns false with store.ErrTaskAlreadyTerminal when the task
// has already finished.
func (m *Manager) CancelTask(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	if handle, isRunning := m.running[id]; isRunning {
		m.mu.Unlock()
		m.logger.Info("cancellation requested", "task_id", id)
		handle.cancel()
		select {
		case <-handle.done:
			return true, nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	defer m.mu.Unlock()

	task, err := m.tasks.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if task.Status.IsTerminal() {
		return false, fmt.Errorf("cancel task %s: %w", id, store.ErrTaskAlreadyTerminal)
	}

	// Pending, or recorded as running with no live walk (a previous process
	// crashed mid-run). Either way there is no work to wait for.
	cancelled := domain.TaskStatusCancelled
	step := "cancelled"
	now := time.Now().UTC()
	update := store.TaskUpdate{Status: &cancelled, CurrentStep: &step, CompletedAt: &now}
	if err := m.updateTask(ctx, id, update); err != nil {
		return false, err
	}
	m.releaseLock(id)

	task.Status = cancelled
	task.CompletedAt = &now
	m.emit(ctx, events.TypeTaskStatusChanged, task)
	m.logger.Info("task cancelled before start", "task_id", id)

	return true, nil
}

// ListTasks returns a page of task snapshots, newest first. Page defaults
// to 1 and page size to DefaultPageSize, capped at MaxPageSize.
func (m *Manager) ListTasks(ctx context.Context, filter store.TaskFilter) (*store.TaskPage, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, *filter.Status)
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = DefaultPageSize
	}
	if filter.PageSize > MaxPageSize {
		filter.PageSize = MaxPageSize
	}

	return m.tasks.List(ctx, filter)
}

// CleanupOldTasks deletes terminal tasks whose completion precedes the
// retention cutoff. With no explicit statuses every terminal status is
// eligible; naming a non-terminal status is a validation error. Pending and
// running tasks are never touched regardless of age.
func (m *Manager) CleanupOldTasks(ctx context.Context, olderThan time.Duration, statuses []domain.TaskStatus) (int64, error) {
	if olderThan < 0 {
		return 0, fmt.Errorf("%w: retention must not be negative", domain.ErrValidation)
	}

	if len(statuses) == 0 {
		statuses = []domain.TaskStatus{
			domain.TaskStatusSucceeded,
			domain.TaskStatusFailed,
			domain.TaskStatusCancelled,
		}
	} else {
		for _, status := range statuses {
			if !status.IsTerminal() {
				return 0, fmt.Errorf("%w: cleanup status %q is not terminal", domain.ErrValidation, status)
			}
		}
	}

	cutoff := time.Now().UTC().Add(-olderThan)
	count, err := m.tasks.DeleteOlderThan(ctx, cutoff, statuses)
	if err != nil {
		return 0, err
	}

	if count > 0 {
		m.logger.Info("cleaned up old tasks", "count", count, "cutoff", cutoff)
	}
	return count, nil
}

// TaskStats returns the number of tasks per status.
func (m *Manager) TaskStats(ctx context.Context) (map[domain.TaskStatus]int, error) {
	return m.tasks.CountByStatus(ctx)
}

// Shutdown cancels every running walk and waits, bounded by ctx, for each to
// record its terminal state. After Shutdown no new task can be started.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	handles := make([]*runHandle, 0, len(m.running))
	for _, handle := range m.running {
		handles = append(handles, handle)
	}
	m.mu.Unlock()

	m.logger.Info("task manager shutting down", "running_tasks", len(handles))
	m.cancelBase()

	for _, handle := range handles {
		select {
		case <-handle.done:
		case <-ctx.Done():
			return fmt.Errorf("shutdown wait: %w", ctx.Err())
		}
	}
	return nil
}

// updateTask applies one store update under the task's serialization lock so
// concurrent writers (progress ticks, cancellation, terminal writes) cannot
// interleave half-applied states.
func (m *Manager) updateTask(ctx context.Context, id uuid.UUID, update store.TaskUpdate) error {
	lock := m.taskLock(id)
	lock.Lock()
	defer lock.Unlock()
	return m.tasks.Update(ctx, id, update)
}

// taskLock returns the per-task update lock, creating it on first use.
func (m *Manager) taskLock(id uuid.UUID) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	lock, ok := m.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[id] = lock
	}
	return lock
}

// releaseLock drops a task's update lock once it can no longer be written.
func (m *Manager) releaseLock(id uuid.UUID) {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	delete(m.locks, id)
}

// emit publishes a lifecycle event when an emitter is configured.
func (m *Manager) emit(ctx context.Context, eventType string, task *domain.RefreshTask) {
	if m.emitter == nil {
		return
	}
	event := events.NewTaskLifecycleEvent(eventType, task)
	if err := m.emitter.EmitEvent(ctx, event); err != nil {
		m.logger.Warn("failed to emit task event",
			"event_type", eventType,
			"task_id", task.ID,
			"error", err)
	}
}
