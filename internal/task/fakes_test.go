package task

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/atlas-api/internal/discovery"
	"github.com/phrazzld/atlas-api/internal/domain"
	"github.com/phrazzld/atlas-api/internal/events"
	"github.com/phrazzld/atlas-api/internal/store"
)

func newTestLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTaskStore is an in-memory store.TaskStore honoring the same semantics
// as the database-backed one, including the terminal guard.
type fakeTaskStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.RefreshTask
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: make(map[uuid.UUID]*domain.RefreshTask)}
}

func (s *fakeTaskStore) Create(ctx context.Context, task *domain.RefreshTask) error {
	if err := task.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[task.ID]; exists {
		return store.ErrDuplicate
	}
	snapshot := *task
	s.tasks[task.ID] = &snapshot
	return nil
}

func (s *fakeTaskStore) Get(ctx context.Context, id uuid.UUID) (*domain.RefreshTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	snapshot := *task
	return &snapshot, nil
}

func (s *fakeTaskStore) Update(ctx context.Context, id uuid.UUID, update store.TaskUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return store.ErrTaskNotFound
	}
	if task.Status.IsTerminal() {
		return store.ErrTaskAlreadyTerminal
	}
	if update.Status != nil {
		task.Status = *update.Status
	}
	if update.Progress != nil {
		task.Progress = *update.Progress
	}
	if update.CurrentStep != nil {
		task.CurrentStep = *update.CurrentStep
	}
	if update.ErrorMessage != nil {
		task.ErrorMessage = *update.ErrorMessage
	}
	if update.Result != nil {
		task.Result = update.Result
	}
	if update.CompletedAt != nil {
		task.CompletedAt = update.CompletedAt
	}
	task.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *fakeTaskStore) List(ctx context.Context, filter store.TaskFilter) (*store.TaskPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]*domain.RefreshTask, 0, len(s.tasks))
	for _, task := range s.tasks {
		if filter.Status != nil && task.Status != *filter.Status {
			continue
		}
		snapshot := *task
		matched = append(matched, &snapshot)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := (filter.Page - 1) * filter.PageSize
	if start > total {
		start = total
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}

	return &store.TaskPage{
		Tasks:    matched[start:end],
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}, nil
}

func (s *fakeTaskStore) DeleteOlderThan(ctx context.Context, cutoff time.Time, statuses []domain.TaskStatus) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	eligible := make(map[domain.TaskStatus]bool, len(statuses))
	for _, status := range statuses {
		eligible[status] = true
	}

	var deleted int64
	for id, task := range s.tasks {
		if !eligible[task.Status] || task.CompletedAt == nil {
			continue
		}
		if task.CompletedAt.Before(cutoff) {
			delete(s.tasks, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *fakeTaskStore) CountByStatus(ctx context.Context) (map[domain.TaskStatus]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[domain.TaskStatus]int)
	for _, task := range s.tasks {
		counts[task.Status]++
	}
	return counts, nil
}

func (s *fakeTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return s
}

// fakePlaceStore is an in-memory store.PlaceStore. Nodes are keyed by
// (level, parentID, name), matching the upsert contract.
type fakePlaceStore struct {
	mu     sync.Mutex
	nextID int64
	ids    map[string]int64
	counts map[domain.Level]int

	upsertErr func(level domain.Level, place store.UpsertPlace) error
}

func newFakePlaceStore() *fakePlaceStore {
	return &fakePlaceStore{
		ids:    make(map[string]int64),
		counts: make(map[domain.Level]int),
	}
}

func placeKey(level domain.Level, parentID int64, name string) string {
	if level == domain.LevelProvince {
		parentID = 0
	}
	return fmt.Sprintf("%s|%d|%s", level, parentID, name)
}

func (s *fakePlaceStore) Upsert(ctx context.Context, level domain.Level, parentID int64, place store.UpsertPlace) (int64, error) {
	if s.upsertErr != nil {
		if err := s.upsertErr(level, place); err != nil {
			return 0, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := placeKey(level, parentID, place.Name)
	if id, ok := s.ids[key]; ok {
		return id, nil
	}
	s.nextID++
	s.ids[key] = s.nextID
	s.counts[level]++
	return s.nextID, nil
}

func (s *fakePlaceStore) FindByName(ctx context.Context, level domain.Level, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, id := range s.ids {
		if key == placeKey(level, 0, name) {
			return id, nil
		}
	}
	return 0, store.ErrPlaceNotFound
}

func (s *fakePlaceStore) levelCount(level domain.Level) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[level]
}

func (s *fakePlaceStore) ListProvinces(ctx context.Context, page, pageSize int) (*store.PlacePage, error) {
	return &store.PlacePage{Page: page, PageSize: pageSize}, nil
}

func (s *fakePlaceStore) ListChildren(ctx context.Context, level domain.Level, parentID int64, page, pageSize int) (*store.PlacePage, error) {
	return &store.PlacePage{Page: page, PageSize: pageSize}, nil
}

func (s *fakePlaceStore) ListFacilities(ctx context.Context, districtID int64, page, pageSize int) (*store.FacilityPage, error) {
	return &store.FacilityPage{Page: page, PageSize: pageSize}, nil
}

func (s *fakePlaceStore) SearchFacilities(ctx context.Context, query string, page, pageSize int) (*store.FacilityPage, error) {
	return &store.FacilityPage{Page: page, PageSize: pageSize}, nil
}

func (s *fakePlaceStore) Stats(ctx context.Context) (*store.HierarchyStats, error) {
	return &store.HierarchyStats{}, nil
}

func (s *fakePlaceStore) WithTx(tx *sql.Tx) store.PlaceStore {
	return s
}

// fakeSource serves a canned hierarchy. Children are keyed by parent path and
// child level; per-key errors simulate failing branches.
type fakeSource struct {
	mu           sync.Mutex
	provinces    []discovery.Node
	provincesErr error
	children     map[string][]discovery.Node
	childErr     map[string]error
	calls        map[string]int

	fetchProvincesFn func(ctx context.Context) ([]discovery.Node, error)
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		children: make(map[string][]discovery.Node),
		childErr: make(map[string]error),
		calls:    make(map[string]int),
	}
}

func childKey(parentPath string, level domain.Level) string {
	return parentPath + "|" + string(level)
}

func (s *fakeSource) setChildren(parentPath string, level domain.Level, names ...string) {
	nodes := make([]discovery.Node, len(names))
	for i, name := range names {
		nodes[i] = discovery.Node{Name: name}
	}
	s.children[childKey(parentPath, level)] = nodes
}

func (s *fakeSource) FetchProvinces(ctx context.Context) ([]discovery.Node, error) {
	if s.fetchProvincesFn != nil {
		return s.fetchProvincesFn(ctx)
	}
	s.mu.Lock()
	s.calls["provinces"]++
	s.mu.Unlock()
	if s.provincesErr != nil {
		return nil, s.provincesErr
	}
	return s.provinces, nil
}

func (s *fakeSource) FetchChildren(ctx context.Context, parentPath string, level domain.Level) ([]discovery.Node, error) {
	key := childKey(parentPath, level)
	s.mu.Lock()
	s.calls[key]++
	s.mu.Unlock()
	if err := s.childErr[key]; err != nil {
		return nil, err
	}
	return s.children[key], nil
}

func (s *fakeSource) callCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[key]
}

// recordingEmitter captures emitted lifecycle events.
type recordingEmitter struct {
	mu     sync.Mutex
	events []*events.TaskLifecycleEvent
}

func (e *recordingEmitter) EmitEvent(ctx context.Context, event *events.TaskLifecycleEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}

func (e *recordingEmitter) recorded() []*events.TaskLifecycleEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	snapshot := make([]*events.TaskLifecycleEvent, len(e.events))
	copy(snapshot, e.events)
	return snapshot
}

// newTestFetcher builds a fetcher with retries disabled and no pacing, for
// tests that exercise the walk rather than the resilience layer.
func newTestFetcher(t *testing.T, source discovery.Source) *HierarchyFetcher {
	t.Helper()
	logger := newTestLogger(t)
	retry := NewRetryPolicy(RetryConfig{MaxAttempts: 1}, logger)
	fetcher, err := NewHierarchyFetcher(source, NewPermitPool(4), retry, FetcherConfig{}, logger)
	if err != nil {
		t.Fatalf("NewHierarchyFetcher: %v", err)
	}
	return fetcher
}
