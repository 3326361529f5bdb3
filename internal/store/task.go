package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/atlas-api/internal/domain"
)

// TaskFilter narrows a task listing. A nil Status matches every status.
// Page is 1-based.
type TaskFilter struct {
	Status   *domain.TaskStatus
	Page     int
	PageSize int
}

// TaskPage is one page of task snapshots, ordered by created_at descending.
type TaskPage struct {
	Tasks    []*domain.RefreshTask
	Total    int
	Page     int
	PageSize int
}

// TaskUpdate is a partial update of a task record. Nil fields are left
// untouched. The store applies the whole update atomically: a reader never
// observes a half-applied update.
type TaskUpdate struct {
	Status       *domain.TaskStatus
	Progress     *int
	CurrentStep  *string
	ErrorMessage *string
	Result       *domain.RefreshResult
	CompletedAt  *time.Time
}

// TaskStore defines the interface for refresh task persistence.
// Version: 1.0
type TaskStore interface {
	// Create saves a new task to the store.
	// Returns validation errors from the domain RefreshTask if data is invalid.
	Create(ctx context.Context, task *domain.RefreshTask) error

	// Get retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	Get(ctx context.Context, id uuid.UUID) (*domain.RefreshTask, error)

	// Update applies a partial update to an existing task atomically.
	// Returns ErrTaskNotFound if the task does not exist and
	// ErrTaskAlreadyTerminal if the task has already reached a terminal
	// status; terminal rows are never modified.
	Update(ctx context.Context, id uuid.UUID, update TaskUpdate) error

	// List retrieves a page of tasks matching the filter, newest first.
	List(ctx context.Context, filter TaskFilter) (*TaskPage, error)

	// DeleteOlderThan removes terminal tasks whose completed_at precedes the
	// cutoff, restricted to the given statuses. Returns the number of rows
	// deleted. Tasks without a terminal status are never deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time, statuses []domain.TaskStatus) (int64, error)

	// CountByStatus returns the number of tasks per status.
	CountByStatus(ctx context.Context) (map[domain.TaskStatus]int, error)

	// WithTx returns a new TaskStore instance that uses the provided
	// transaction. The transaction is created and managed by the caller.
	WithTx(tx *sql.Tx) TaskStore
}
