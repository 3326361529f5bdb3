package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/atlas-api/internal/api/shared"
	"github.com/phrazzld/atlas-api/internal/domain"
	"github.com/phrazzld/atlas-api/internal/platform/logger"
	"github.com/phrazzld/atlas-api/internal/store"
	"github.com/phrazzld/atlas-api/internal/task"
)

// TaskManager defines the task operations the handler depends on. Satisfied
// by *task.Manager.
type TaskManager interface {
	CreateTask(ctx context.Context, kind domain.TaskKind, scope string) (*domain.RefreshTask, error)
	StartTask(ctx context.Context, id uuid.UUID) error
	CancelTask(ctx context.Context, id uuid.UUID) (bool, error)
	GetTask(ctx context.Context, id uuid.UUID) (*domain.RefreshTask, error)
	ListTasks(ctx context.Context, filter store.TaskFilter) (*store.TaskPage, error)
	CleanupOldTasks(ctx context.Context, olderThan time.Duration, statuses []domain.TaskStatus) (int64, error)
	TaskStats(ctx context.Context) (map[domain.TaskStatus]int, error)
}

var _ TaskManager = (*task.Manager)(nil)

// TaskHandler handles refresh-task HTTP requests: create, start, cancel,
// inspect, list, stats and cleanup.
type TaskHandler struct {
	manager TaskManager
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(manager TaskManager) (*TaskHandler, error) {
	if manager == nil {
		return nil, errors.New("task manager cannot be nil")
	}
	return &TaskHandler{manager: manager}, nil
}

// CreateTask handles POST /api/tasks requests. The task is persisted in the
// pending state; starting it is a separate call.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req CreateTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: kind must be full_refresh or province_refresh")
		return
	}

	created, err := h.manager.CreateTask(r.Context(), domain.TaskKind(req.Kind), req.Scope)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	log.Info("task created", "task_id", created.ID, "kind", created.Kind, "scope", created.Scope)
	shared.RespondWithJSON(w, r, http.StatusCreated, taskToResponse(created))
}

// StartTask handles POST /api/tasks/{id}/start requests. The refresh runs
// asynchronously; the response only acknowledges the start.
func (h *TaskHandler) StartTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	if err := h.manager.StartTask(r.Context(), id); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	log.Info("task started", "task_id", id)
	w.WriteHeader(http.StatusAccepted)
}

// CancelTask handles POST /api/tasks/{id}/cancel requests. For a running
// task the call blocks until the walk has unwound and recorded the cancelled
// state.
func (h *TaskHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	cancelled, err := h.manager.CancelTask(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	log.Info("task cancel completed", "task_id", id, "cancelled", cancelled)
	shared.RespondWithJSON(w, r, http.StatusOK, CancelTaskResponse{Cancelled: cancelled})
}

// GetTask handles GET /api/tasks/{id} requests.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	found, err := h.manager.GetTask(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(found))
}

// ListTasks handles GET /api/tasks requests. Supports status, page and
// page_size query parameters.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	page, pageSize, err := getPagination(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	filter := store.TaskFilter{Page: page, PageSize: pageSize}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.TaskStatus(raw)
		filter.Status = &status
	}

	listed, err := h.manager.ListTasks(r.Context(), filter)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskPageToResponse(listed))
}

// TaskStats handles GET /api/tasks/stats requests.
func (h *TaskHandler) TaskStats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.manager.TaskStats(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	response := TaskStatsResponse{Counts: make(map[string]int, len(counts))}
	for status, count := range counts {
		response.Counts[string(status)] = count
		response.Total += count
	}

	shared.RespondWithJSON(w, r, http.StatusOK, response)
}

// CleanupTasks handles POST /api/tasks/cleanup requests, deleting terminal
// tasks older than the requested retention.
func (h *TaskHandler) CleanupTasks(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req CleanupTasksRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: older_than_hours must be a positive integer")
		return
	}

	statuses := make([]domain.TaskStatus, 0, len(req.Statuses))
	for _, status := range req.Statuses {
		statuses = append(statuses, domain.TaskStatus(status))
	}

	deleted, err := h.manager.CleanupOldTasks(r.Context(), time.Duration(req.OlderThanHours)*time.Hour, statuses)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	log.Info("task cleanup completed", "deleted", deleted, "older_than_hours", req.OlderThanHours)
	shared.RespondWithJSON(w, r, http.StatusOK, CleanupTasksResponse{Deleted: deleted})
}
