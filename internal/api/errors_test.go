package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/phrazzld/atlas-api/internal/domain"
	"github.com/phrazzld/atlas-api/internal/service/auth"
	"github.com/phrazzld/atlas-api/internal/store"
	"github.com/phrazzld/atlas-api/internal/task"
)

func TestMapErrorToStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "invalid token", err: auth.ErrInvalidToken, want: http.StatusUnauthorized},
		{name: "expired token", err: auth.ErrExpiredToken, want: http.StatusUnauthorized},
		{name: "invalid operator key", err: auth.ErrInvalidOperatorKey, want: http.StatusUnauthorized},
		{name: "task not found", err: store.ErrTaskNotFound, want: http.StatusNotFound},
		{name: "place not found", err: store.ErrPlaceNotFound, want: http.StatusNotFound},
		{name: "already terminal", err: store.ErrTaskAlreadyTerminal, want: http.StatusConflict},
		{name: "not pending", err: task.ErrTaskNotPending, want: http.StatusConflict},
		{name: "invalid transition", err: domain.ErrInvalidTransition, want: http.StatusConflict},
		{name: "validation", err: domain.ErrValidation, want: http.StatusBadRequest},
		{name: "invalid id", err: domain.ErrInvalidID, want: http.StatusBadRequest},
		{name: "invalid entity", err: store.ErrInvalidEntity, want: http.StatusBadRequest},
		{name: "manager closed", err: task.ErrManagerClosed, want: http.StatusServiceUnavailable},
		{name: "unknown", err: errors.New("boom"), want: http.StatusInternalServerError},
		{
			name: "wrapped sentinel",
			err:  fmt.Errorf("start task: %w", task.ErrTaskNotPending),
			want: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, MapErrorToStatusCode(tt.err))
		})
	}
}

func TestGetSafeErrorMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Task not found", GetSafeErrorMessage(store.ErrTaskNotFound))
	assert.Equal(t, "Task has already finished", GetSafeErrorMessage(store.ErrTaskAlreadyTerminal))
	assert.Equal(t, "Invalid token", GetSafeErrorMessage(auth.ErrExpiredToken))
	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(nil))

	// Internal details of unknown errors never leak.
	leaky := errors.New("pq: connection to host db.internal failed")
	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(leaky))

	// Validation text is our own and passes through.
	validation := fmt.Errorf("%w: scope is required", domain.ErrValidation)
	assert.Contains(t, GetSafeErrorMessage(validation), "scope is required")
}
