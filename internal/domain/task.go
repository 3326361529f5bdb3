package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskKind distinguishes the two refresh shapes: the whole hierarchy or a
// single province's subtree.
type TaskKind string

// Possible task kinds.
const (
	TaskKindFullRefresh     TaskKind = "full_refresh"
	TaskKindProvinceRefresh TaskKind = "province_refresh"
)

// TaskStatus represents the lifecycle state of a refresh task.
type TaskStatus string

// Possible task status values. Succeeded, failed and cancelled are terminal.
const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusSucceeded TaskStatus = "succeeded"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Common validation errors for RefreshTask.
var (
	ErrEmptyTaskID         = errors.New("task ID cannot be empty")
	ErrInvalidTaskKind     = errors.New("invalid task kind")
	ErrInvalidTaskStatus   = errors.New("invalid task status")
	ErrScopeRequired       = errors.New("scope is required for a province refresh")
	ErrScopeNotAllowed     = errors.New("scope must be empty for a full refresh")
	ErrInvalidTaskProgress = errors.New("task progress must be between 0 and 100")
)

// ErrInvalidTransition is returned when a status change does not follow the
// task state machine.
var ErrInvalidTransition = errors.New("invalid task status transition")

// taskTransitions enumerates the legal status edges. Terminal states have no
// outgoing edges.
var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskStatusPending: {TaskStatusRunning, TaskStatusCancelled},
	TaskStatusRunning: {TaskStatusSucceeded, TaskStatusFailed, TaskStatusCancelled},
}

// Valid reports whether the status is one of the known values.
func (s TaskStatus) Valid() bool {
	return isValidTaskStatus(s)
}

// IsTerminal reports whether the status is final. Terminal tasks are frozen:
// no field may change after one is reached.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusSucceeded, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the state machine permits moving from s to
// next.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	for _, allowed := range taskTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// LevelCounts records how many nodes were processed per hierarchy tier
// during a refresh.
type LevelCounts struct {
	Provinces  int `json:"provinces"`
	Cities     int `json:"cities"`
	Districts  int `json:"districts"`
	Facilities int `json:"facilities"`
}

// BranchFailure describes one abandoned branch of the hierarchy walk: the
// tier whose children could not be fetched, the path of the node where the
// walk stopped, and the underlying error text.
type BranchFailure struct {
	Level Level  `json:"level"`
	Path  string `json:"path"`
	Error string `json:"error"`
}

// RefreshResult summarizes a finished refresh: per-tier processed counts and
// any branch failures that were absorbed along the way.
type RefreshResult struct {
	Counts   LevelCounts     `json:"counts"`
	Failures []BranchFailure `json:"failures,omitempty"`
}

// RefreshTask is the central entity: one long-running, cancellable refresh of
// the place hierarchy, tracked from creation through a terminal state.
type RefreshTask struct {
	ID           uuid.UUID      `json:"id"`
	Kind         TaskKind       `json:"kind"`
	Scope        string         `json:"scope,omitempty"`
	Status       TaskStatus     `json:"status"`
	Progress     int            `json:"progress"`
	CurrentStep  string         `json:"current_step,omitempty"`
	ErrorMessage string         `json:"error,omitempty"`
	Result       *RefreshResult `json:"result,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// NewRefreshTask creates a pending RefreshTask for the given kind and scope.
// It generates a new UUID, zeroes progress, and stamps the timestamps.
// Returns a validation error on a bad kind/scope combination.
func NewRefreshTask(kind TaskKind, scope string) (*RefreshTask, error) {
	now := time.Now().UTC()
	task := &RefreshTask{
		ID:        uuid.New(),
		Kind:      kind,
		Scope:     scope,
		Status:    TaskStatusPending,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks the task's fields against the entity invariants.
func (t *RefreshTask) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	switch t.Kind {
	case TaskKindFullRefresh:
		if t.Scope != "" {
			return fmt.Errorf("%w: %w", ErrValidation, ErrScopeNotAllowed)
		}
	case TaskKindProvinceRefresh:
		if t.Scope == "" {
			return fmt.Errorf("%w: %w", ErrValidation, ErrScopeRequired)
		}
	default:
		return fmt.Errorf("%w: %w: %q", ErrValidation, ErrInvalidTaskKind, t.Kind)
	}

	if !isValidTaskStatus(t.Status) {
		return ErrInvalidTaskStatus
	}

	if t.Progress < 0 || t.Progress > 100 {
		return ErrInvalidTaskProgress
	}

	return nil
}

// TransitionTo moves the task to the given status, enforcing the state
// machine. CompletedAt is stamped when a terminal status is reached.
func (t *RefreshTask) TransitionTo(status TaskStatus) error {
	if !isValidTaskStatus(status) {
		return ErrInvalidTaskStatus
	}
	if !t.Status.CanTransitionTo(status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, status)
	}

	now := time.Now().UTC()
	t.Status = status
	t.UpdatedAt = now
	if status.IsTerminal() {
		t.CompletedAt = &now
	}
	return nil
}

// isValidTaskStatus checks if the given status is a valid TaskStatus.
func isValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusPending, TaskStatusRunning, TaskStatusSucceeded,
		TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// isValidTaskKind checks if the given kind is a valid TaskKind.
func isValidTaskKind(kind TaskKind) bool {
	switch kind {
	case TaskKindFullRefresh, TaskKindProvinceRefresh:
		return true
	default:
		return false
	}
}

// ValidateKindScope checks a kind/scope combination without constructing a
// task. Used by callers that validate input before persisting anything.
func ValidateKindScope(kind TaskKind, scope string) error {
	if !isValidTaskKind(kind) {
		return fmt.Errorf("%w: %w: %q", ErrValidation, ErrInvalidTaskKind, kind)
	}
	if kind == TaskKindProvinceRefresh && scope == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrScopeRequired)
	}
	if kind == TaskKindFullRefresh && scope != "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrScopeNotAllowed)
	}
	return nil
}
