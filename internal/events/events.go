package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/atlas-api/internal/domain"
)

// Event types emitted over a task's lifecycle.
const (
	TypeTaskCreated       = "task.created"
	TypeTaskStatusChanged = "task.status_changed"
)

// TaskLifecycleEvent represents one observable change of a refresh task:
// its creation or a status transition. Events carry a snapshot of the fields
// consumers typically audit, without direct dependencies on the task package.
type TaskLifecycleEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is one of the Type* constants
	Type string `json:"type"`

	// TaskID identifies the task the event belongs to
	TaskID uuid.UUID `json:"task_id"`

	// Kind is the task's refresh kind
	Kind domain.TaskKind `json:"kind"`

	// Status is the task's status after the change
	Status domain.TaskStatus `json:"status"`

	// Progress is the task's progress after the change
	Progress int `json:"progress"`

	// OccurredAt is the timestamp when the event was created
	OccurredAt time.Time `json:"occurred_at"`
}

// NewTaskLifecycleEvent creates an event of the given type for one task.
func NewTaskLifecycleEvent(eventType string, task *domain.RefreshTask) *TaskLifecycleEvent {
	return &TaskLifecycleEvent{
		ID:         uuid.New(),
		Type:       eventType,
		TaskID:     task.ID,
		Kind:       task.Kind,
		Status:     task.Status,
		Progress:   task.Progress,
		OccurredAt: time.Now().UTC(),
	}
}

// EventHandler defines an interface for components that can handle events.
// Handlers are responsible for processing events and taking appropriate actions.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *TaskLifecycleEvent) error
}

// EventHandlerFunc adapts a function to the EventHandler interface.
type EventHandlerFunc func(ctx context.Context, event *TaskLifecycleEvent) error

// HandleEvent implements EventHandler.
func (f EventHandlerFunc) HandleEvent(ctx context.Context, event *TaskLifecycleEvent) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
// This allows the task manager to publish lifecycle changes without direct
// knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *TaskLifecycleEvent) error
}
