package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/atlas-api/internal/domain"
	"github.com/phrazzld/atlas-api/internal/platform/logger"
	"github.com/phrazzld/atlas-api/internal/store"
)

// PostgresTaskStore implements the store.TaskStore interface using PostgreSQL.
type PostgresTaskStore struct {
	db store.DBTX
}

// Ensure PostgresTaskStore implements store.TaskStore
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// NewPostgresTaskStore creates a new PostgresTaskStore.
func NewPostgresTaskStore(db store.DBTX) *PostgresTaskStore {
	return &PostgresTaskStore{db: db}
}

// WithTx implements store.TaskStore.WithTx.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{db: tx}
}

// terminalStatuses are the statuses the guarded update refuses to modify.
var terminalStatuses = []domain.TaskStatus{
	domain.TaskStatusSucceeded,
	domain.TaskStatusFailed,
	domain.TaskStatusCancelled,
}

// Create persists a new task record.
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.RefreshTask) error {
	log := logger.FromContext(ctx)

	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	resultJSON, err := marshalResult(task.Result)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO tasks (id, kind, scope, status, progress, current_step,
			error_message, result, created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = s.db.ExecContext(ctx, query,
		task.ID,
		task.Kind,
		task.Scope,
		task.Status,
		task.Progress,
		task.CurrentStep,
		task.ErrorMessage,
		resultJSON,
		task.CreatedAt,
		task.UpdatedAt,
		task.CompletedAt,
	)
	if err != nil {
		log.Error("failed to create task",
			"task_id", task.ID,
			"kind", task.Kind,
			"error", err)
		return fmt.Errorf("failed to create task: %w", MapError(err))
	}

	return nil
}

// Get retrieves a task by ID. Returns store.ErrTaskNotFound if absent.
func (s *PostgresTaskStore) Get(ctx context.Context, id uuid.UUID) (*domain.RefreshTask, error) {
	query := `
		SELECT id, kind, scope, status, progress, current_step,
			error_message, result, created_at, updated_at, completed_at
		FROM tasks
		WHERE id = $1
	`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", MapError(err))
	}

	return task, nil
}

// Update applies a partial update atomically. The statement carries a guard
// on the current status: rows already in a terminal state never match, so a
// straggling progress write can never thaw a finished task.
func (s *PostgresTaskStore) Update(ctx context.Context, id uuid.UUID, update store.TaskUpdate) error {
	log := logger.FromContext(ctx)

	setClauses := []string{"updated_at = $1"}
	args := []any{time.Now().UTC()}

	addSet := func(column string, value any) {
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Status != nil {
		addSet("status", *update.Status)
	}
	if update.Progress != nil {
		addSet("progress", *update.Progress)
	}
	if update.CurrentStep != nil {
		addSet("current_step", *update.CurrentStep)
	}
	if update.ErrorMessage != nil {
		addSet("error_message", *update.ErrorMessage)
	}
	if update.Result != nil {
		resultJSON, err := marshalResult(update.Result)
		if err != nil {
			return err
		}
		addSet("result", resultJSON)
	}
	if update.CompletedAt != nil {
		addSet("completed_at", *update.CompletedAt)
	}

	args = append(args, id)
	idArg := len(args)
	statusArgs := make([]string, 0, len(terminalStatuses))
	for _, status := range terminalStatuses {
		args = append(args, status)
		statusArgs = append(statusArgs, fmt.Sprintf("$%d", len(args)))
	}

	query := fmt.Sprintf(
		"UPDATE tasks SET %s WHERE id = $%d AND status NOT IN (%s)",
		strings.Join(setClauses, ", "),
		idArg,
		strings.Join(statusArgs, ", "),
	)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to update task", "task_id", id, "error", err)
		return fmt.Errorf("failed to update task: %w", MapError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	// The guard rejected the update: either the task does not exist or it
	// has already settled.
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing.Status.IsTerminal() {
		return fmt.Errorf("update task %s: %w", id, store.ErrTaskAlreadyTerminal)
	}
	return fmt.Errorf("%w: task %s", store.ErrUpdateFailed, id)
}

// List retrieves a page of tasks matching the filter, newest first.
func (s *PostgresTaskStore) List(ctx context.Context, filter store.TaskFilter) (*store.TaskPage, error) {
	where := ""
	args := []any{}
	if filter.Status != nil {
		where = "WHERE status = $1"
		args = append(args, *filter.Status)
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM tasks %s", where)
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", MapError(err))
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	args = append(args, pageSize, (page-1)*pageSize)
	query := fmt.Sprintf(`
		SELECT id, kind, scope, status, progress, current_step,
			error_message, result, created_at, updated_at, completed_at
		FROM tasks
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	tasks := make([]*domain.RefreshTask, 0, pageSize)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate task rows: %w", err)
	}

	return &store.TaskPage{
		Tasks:    tasks,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// DeleteOlderThan removes terminal tasks whose completed_at precedes the
// cutoff, restricted to the given statuses. The statement also re-checks
// completed_at IS NOT NULL so rows that never settled are untouchable even
// if a caller passes a non-terminal status.
func (s *PostgresTaskStore) DeleteOlderThan(
	ctx context.Context,
	cutoff time.Time,
	statuses []domain.TaskStatus,
) (int64, error) {
	log := logger.FromContext(ctx)

	if len(statuses) == 0 {
		return 0, nil
	}

	args := []any{cutoff}
	placeholders := make([]string, 0, len(statuses))
	for _, status := range statuses {
		args = append(args, status)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}

	query := fmt.Sprintf(`
		DELETE FROM tasks
		WHERE completed_at IS NOT NULL
		  AND completed_at < $1
		  AND status IN (%s)
	`, strings.Join(placeholders, ", "))

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to delete old tasks", "cutoff", cutoff, "error", err)
		return 0, fmt.Errorf("failed to delete old tasks: %w", MapError(err))
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// CountByStatus returns the number of tasks per status.
func (s *PostgresTaskStore) CountByStatus(ctx context.Context) (map[domain.TaskStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM tasks GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks by status: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[domain.TaskStatus]int)
	for rows.Next() {
		var status domain.TaskStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate status counts: %w", err)
	}

	return counts, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanTask.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask reads one task row into a domain.RefreshTask.
func scanTask(row rowScanner) (*domain.RefreshTask, error) {
	var task domain.RefreshTask
	var resultJSON []byte
	var completedAt sql.NullTime

	err := row.Scan(
		&task.ID,
		&task.Kind,
		&task.Scope,
		&task.Status,
		&task.Progress,
		&task.CurrentStep,
		&task.ErrorMessage,
		&resultJSON,
		&task.CreatedAt,
		&task.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		t := completedAt.Time
		task.CompletedAt = &t
	}

	if len(resultJSON) > 0 {
		var result domain.RefreshResult
		if err := json.Unmarshal(resultJSON, &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal task result: %w", err)
		}
		task.Result = &result
	}

	return &task, nil
}

// marshalResult serializes a task result for the jsonb column. A nil result
// stays NULL.
func marshalResult(result *domain.RefreshResult) ([]byte, error) {
	if result == nil {
		return nil, nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task result: %w", err)
	}
	return data, nil
}
