package api

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/phrazzld/atlas-api/internal/domain"
	"github.com/phrazzld/atlas-api/internal/store"
)

// mockTaskManager implements TaskManager with injectable behavior per method.
// Methods without an injected Fn fail loudly by returning a nil result.
type mockTaskManager struct {
	CreateTaskFn      func(ctx context.Context, kind domain.TaskKind, scope string) (*domain.RefreshTask, error)
	StartTaskFn       func(ctx context.Context, id uuid.UUID) error
	CancelTaskFn      func(ctx context.Context, id uuid.UUID) (bool, error)
	GetTaskFn         func(ctx context.Context, id uuid.UUID) (*domain.RefreshTask, error)
	ListTasksFn       func(ctx context.Context, filter store.TaskFilter) (*store.TaskPage, error)
	CleanupOldTasksFn func(ctx context.Context, olderThan time.Duration, statuses []domain.TaskStatus) (int64, error)
	TaskStatsFn       func(ctx context.Context) (map[domain.TaskStatus]int, error)
}

func (m *mockTaskManager) CreateTask(ctx context.Context, kind domain.TaskKind, scope string) (*domain.RefreshTask, error) {
	return m.CreateTaskFn(ctx, kind, scope)
}

func (m *mockTaskManager) StartTask(ctx context.Context, id uuid.UUID) error {
	return m.StartTaskFn(ctx, id)
}

func (m *mockTaskManager) CancelTask(ctx context.Context, id uuid.UUID) (bool, error) {
	return m.CancelTaskFn(ctx, id)
}

func (m *mockTaskManager) GetTask(ctx context.Context, id uuid.UUID) (*domain.RefreshTask, error) {
	return m.GetTaskFn(ctx, id)
}

func (m *mockTaskManager) ListTasks(ctx context.Context, filter store.TaskFilter) (*store.TaskPage, error) {
	return m.ListTasksFn(ctx, filter)
}

func (m *mockTaskManager) CleanupOldTasks(ctx context.Context, olderThan time.Duration, statuses []domain.TaskStatus) (int64, error) {
	return m.CleanupOldTasksFn(ctx, olderThan, statuses)
}

func (m *mockTaskManager) TaskStats(ctx context.Context) (map[domain.TaskStatus]int, error) {
	return m.TaskStatsFn(ctx)
}

// mockPlaceStore implements store.PlaceStore with injectable behavior.
type mockPlaceStore struct {
	UpsertFn           func(ctx context.Context, level domain.Level, parentID int64, place store.UpsertPlace) (int64, error)
	FindByNameFn       func(ctx context.Context, level domain.Level, name string) (int64, error)
	ListProvincesFn    func(ctx context.Context, page, pageSize int) (*store.PlacePage, error)
	ListChildrenFn     func(ctx context.Context, level domain.Level, parentID int64, page, pageSize int) (*store.PlacePage, error)
	ListFacilitiesFn   func(ctx context.Context, districtID int64, page, pageSize int) (*store.FacilityPage, error)
	SearchFacilitiesFn func(ctx context.Context, query string, page, pageSize int) (*store.FacilityPage, error)
	StatsFn            func(ctx context.Context) (*store.HierarchyStats, error)
}

func (m *mockPlaceStore) Upsert(ctx context.Context, level domain.Level, parentID int64, place store.UpsertPlace) (int64, error) {
	return m.UpsertFn(ctx, level, parentID, place)
}

func (m *mockPlaceStore) FindByName(ctx context.Context, level domain.Level, name string) (int64, error) {
	return m.FindByNameFn(ctx, level, name)
}

func (m *mockPlaceStore) ListProvinces(ctx context.Context, page, pageSize int) (*store.PlacePage, error) {
	return m.ListProvincesFn(ctx, page, pageSize)
}

func (m *mockPlaceStore) ListChildren(ctx context.Context, level domain.Level, parentID int64, page, pageSize int) (*store.PlacePage, error) {
	return m.ListChildrenFn(ctx, level, parentID, page, pageSize)
}

func (m *mockPlaceStore) ListFacilities(ctx context.Context, districtID int64, page, pageSize int) (*store.FacilityPage, error) {
	return m.ListFacilitiesFn(ctx, districtID, page, pageSize)
}

func (m *mockPlaceStore) SearchFacilities(ctx context.Context, query string, page, pageSize int) (*store.FacilityPage, error) {
	return m.SearchFacilitiesFn(ctx, query, page, pageSize)
}

func (m *mockPlaceStore) Stats(ctx context.Context) (*store.HierarchyStats, error) {
	return m.StatsFn(ctx)
}

func (m *mockPlaceStore) WithTx(tx *sql.Tx) store.PlaceStore {
	return m
}

// withURLParam attaches a chi route parameter to the request context so
// handlers under test can read path variables without a router.
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// doRequest executes the handler against the request and records the
// response.
func doRequest(handler http.HandlerFunc, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	handler(w, r)
	return w
}
