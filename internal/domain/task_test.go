package domain

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestNewRefreshTask(t *testing.T) {
	t.Parallel()

	task, err := NewRefreshTask(TaskKindFullRefresh, "")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if task.ID == uuid.Nil {
		t.Error("Expected non-nil UUID, got nil UUID")
	}

	if task.Kind != TaskKindFullRefresh {
		t.Errorf("Expected kind %s, got %s", TaskKindFullRefresh, task.Kind)
	}

	if task.Status != TaskStatusPending {
		t.Errorf("Expected status %s, got %s", TaskStatusPending, task.Status)
	}

	if task.Progress != 0 {
		t.Errorf("Expected progress 0, got %d", task.Progress)
	}

	if task.CreatedAt.IsZero() {
		t.Error("Expected non-zero CreatedAt time")
	}

	if task.CompletedAt != nil {
		t.Error("Expected nil CompletedAt on a fresh task")
	}
}

func TestNewRefreshTaskScopeValidation(t *testing.T) {
	t.Parallel()

	// Province refresh without a scope is rejected.
	_, err := NewRefreshTask(TaskKindProvinceRefresh, "")
	if !errors.Is(err, ErrScopeRequired) {
		t.Errorf("Expected error %v, got %v", ErrScopeRequired, err)
	}
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Expected error to wrap %v, got %v", ErrValidation, err)
	}

	// Full refresh with a scope is rejected.
	_, err = NewRefreshTask(TaskKindFullRefresh, "Guangdong")
	if !errors.Is(err, ErrScopeNotAllowed) {
		t.Errorf("Expected error %v, got %v", ErrScopeNotAllowed, err)
	}

	// Unknown kind is rejected.
	_, err = NewRefreshTask(TaskKind("partial"), "")
	if !errors.Is(err, ErrInvalidTaskKind) {
		t.Errorf("Expected error %v, got %v", ErrInvalidTaskKind, err)
	}

	// Province refresh with a scope is fine.
	task, err := NewRefreshTask(TaskKindProvinceRefresh, "Guangdong")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if task.Scope != "Guangdong" {
		t.Errorf("Expected scope Guangdong, got %s", task.Scope)
	}
}

func TestValidateKindScope(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		kind    TaskKind
		scope   string
		wantErr error
	}{
		{"full refresh no scope", TaskKindFullRefresh, "", nil},
		{"full refresh with scope", TaskKindFullRefresh, "Hunan", ErrScopeNotAllowed},
		{"province refresh with scope", TaskKindProvinceRefresh, "Hunan", nil},
		{"province refresh no scope", TaskKindProvinceRefresh, "", ErrScopeRequired},
		{"unknown kind", TaskKind("bogus"), "", ErrInvalidTaskKind},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateKindScope(tc.kind, tc.scope)
			if tc.wantErr == nil {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Expected error %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestTaskStatusIsTerminal(t *testing.T) {
	t.Parallel()

	terminal := []TaskStatus{TaskStatusSucceeded, TaskStatusFailed, TaskStatusCancelled}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("Expected %s to be terminal", s)
		}
	}

	live := []TaskStatus{TaskStatusPending, TaskStatusRunning}
	for _, s := range live {
		if s.IsTerminal() {
			t.Errorf("Expected %s not to be terminal", s)
		}
	}
}

func TestTaskStatusTransitions(t *testing.T) {
	t.Parallel()

	allowed := []struct{ from, to TaskStatus }{
		{TaskStatusPending, TaskStatusRunning},
		{TaskStatusPending, TaskStatusCancelled},
		{TaskStatusRunning, TaskStatusSucceeded},
		{TaskStatusRunning, TaskStatusFailed},
		{TaskStatusRunning, TaskStatusCancelled},
	}
	for _, tr := range allowed {
		if !tr.from.CanTransitionTo(tr.to) {
			t.Errorf("Expected transition %s -> %s to be allowed", tr.from, tr.to)
		}
	}

	denied := []struct{ from, to TaskStatus }{
		{TaskStatusPending, TaskStatusSucceeded},
		{TaskStatusPending, TaskStatusFailed},
		{TaskStatusRunning, TaskStatusPending},
		{TaskStatusSucceeded, TaskStatusRunning},
		{TaskStatusSucceeded, TaskStatusCancelled},
		{TaskStatusFailed, TaskStatusRunning},
		{TaskStatusCancelled, TaskStatusRunning},
		{TaskStatusCancelled, TaskStatusCancelled},
	}
	for _, tr := range denied {
		if tr.from.CanTransitionTo(tr.to) {
			t.Errorf("Expected transition %s -> %s to be denied", tr.from, tr.to)
		}
	}
}

func TestRefreshTaskTransitionTo(t *testing.T) {
	t.Parallel()

	task, err := NewRefreshTask(TaskKindFullRefresh, "")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if err := task.TransitionTo(TaskStatusRunning); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if task.CompletedAt != nil {
		t.Error("Expected CompletedAt to stay nil while running")
	}

	if err := task.TransitionTo(TaskStatusSucceeded); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if task.CompletedAt == nil {
		t.Error("Expected CompletedAt to be set on terminal status")
	}

	// Terminal state is frozen.
	err = task.TransitionTo(TaskStatusCancelled)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected error %v, got %v", ErrInvalidTransition, err)
	}
	if task.Status != TaskStatusSucceeded {
		t.Errorf("Expected status to remain %s, got %s", TaskStatusSucceeded, task.Status)
	}
}

func TestRefreshTaskValidateProgress(t *testing.T) {
	t.Parallel()

	task, err := NewRefreshTask(TaskKindFullRefresh, "")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	task.Progress = 101
	if err := task.Validate(); err != ErrInvalidTaskProgress {
		t.Errorf("Expected error %v, got %v", ErrInvalidTaskProgress, err)
	}

	task.Progress = -1
	if err := task.Validate(); err != ErrInvalidTaskProgress {
		t.Errorf("Expected error %v, got %v", ErrInvalidTaskProgress, err)
	}

	task.Progress = 100
	if err := task.Validate(); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}
