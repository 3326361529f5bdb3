package store

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsNotFoundError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "generic error",
			err:      errors.New("some error"),
			expected: false,
		},
		{
			name:     "wrapped generic error",
			err:      fmt.Errorf("failed to do something: %w", errors.New("some error")),
			expected: false,
		},
		{
			name:     "ErrNotFound",
			err:      ErrNotFound,
			expected: true,
		},
		{
			name:     "wrapped ErrNotFound",
			err:      fmt.Errorf("failed to do something: %w", ErrNotFound),
			expected: true,
		},
		{
			name:     "ErrTaskNotFound",
			err:      ErrTaskNotFound,
			expected: true,
		},
		{
			name:     "wrapped ErrTaskNotFound",
			err:      fmt.Errorf("failed to get task: %w", ErrTaskNotFound),
			expected: true,
		},
		{
			name:     "ErrPlaceNotFound",
			err:      ErrPlaceNotFound,
			expected: true,
		},
		{
			name:     "ErrFacilityNotFound",
			err:      ErrFacilityNotFound,
			expected: true,
		},
		{
			name:     "ErrTaskAlreadyTerminal",
			err:      ErrTaskAlreadyTerminal,
			expected: false,
		},
		{
			name:     "ErrDuplicate",
			err:      ErrDuplicate,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsNotFoundError(tt.err)
			if result != tt.expected {
				t.Errorf("IsNotFoundError(%v) = %v, expected %v", tt.err, result, tt.expected)
			}
		})
	}
}

func TestStoreErrorFormat(t *testing.T) {
	base := errors.New("connection reset")
	storeErr := NewStoreError("task", "update", "failed to write row", base)

	want := "update operation on task failed: failed to write row: connection reset"
	if storeErr.Error() != want {
		t.Errorf("Error() = %q, expected %q", storeErr.Error(), want)
	}

	if !errors.Is(storeErr, base) {
		t.Error("expected StoreError to wrap the original error")
	}

	var typed *StoreError
	if !errors.As(storeErr, &typed) {
		t.Fatal("expected errors.As to find a *StoreError")
	}
	if typed.Entity != "task" || typed.Operation != "update" {
		t.Errorf("unexpected entity/operation: %s/%s", typed.Entity, typed.Operation)
	}

	bare := NewStoreError("place", "upsert", "bad level", nil)
	wantBare := "upsert operation on place failed: bad level"
	if bare.Error() != wantBare {
		t.Errorf("Error() = %q, expected %q", bare.Error(), wantBare)
	}
	if errors.Unwrap(bare) != nil {
		t.Error("expected no wrapped error")
	}
}

func TestTerminalGuardDistinctFromNotFound(t *testing.T) {
	// The terminal guard must stay distinct from the not-found family so
	// callers can map them to different outcomes.
	wrapped := fmt.Errorf("update task: %w", ErrTaskAlreadyTerminal)
	if !errors.Is(wrapped, ErrTaskAlreadyTerminal) {
		t.Error("expected wrapped error to match ErrTaskAlreadyTerminal")
	}
	if IsNotFoundError(wrapped) {
		t.Error("terminal guard must not be classified as not-found")
	}
}
