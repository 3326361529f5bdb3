package events

import (
	"context"
	"log/slog"
)

// AuditLogHandler writes every task lifecycle event to the structured log,
// giving operators a durable trail of who-did-what without a separate audit
// store.
type AuditLogHandler struct {
	logger *slog.Logger
}

// NewAuditLogHandler creates an AuditLogHandler writing to the given logger.
func NewAuditLogHandler(logger *slog.Logger) *AuditLogHandler {
	return &AuditLogHandler{
		logger: logger.With("component", "task_audit"),
	}
}

// HandleEvent implements EventHandler.
func (h *AuditLogHandler) HandleEvent(ctx context.Context, event *TaskLifecycleEvent) error {
	h.logger.InfoContext(ctx, "task lifecycle event",
		"event_id", event.ID,
		"event_type", event.Type,
		"task_id", event.TaskID,
		"kind", event.Kind,
		"status", event.Status,
		"progress", event.Progress,
		"occurred_at", event.OccurredAt)
	return nil
}
