package api

import (
	"time"

	"github.com/phrazzld/atlas-api/internal/domain"
	"github.com/phrazzld/atlas-api/internal/store"
)

// Common request/response structures

// TokenRequest defines the payload for the operator token endpoint.
type TokenRequest struct {
	OperatorKey string `json:"operator_key" validate:"required,min=1"`
}

// TokenResponse defines the successful response for the token endpoint.
type TokenResponse struct {
	// AccessToken is the JWT token used for API authorization
	AccessToken string `json:"access_token"`

	// ExpiresAt is the ISO 8601 timestamp when the access token expires
	ExpiresAt string `json:"expires_at"`
}

// CreateTaskRequest defines the payload for creating a refresh task.
// Scope names the province for a province_refresh and must be empty for a
// full_refresh; the kind/scope combination is validated by the domain.
type CreateTaskRequest struct {
	Kind  string `json:"kind"  validate:"required,oneof=full_refresh province_refresh"`
	Scope string `json:"scope" validate:"max=200"`
}

// CleanupTasksRequest defines the payload for the task cleanup endpoint.
// Statuses defaults to every terminal status when empty.
type CleanupTasksRequest struct {
	OlderThanHours int      `json:"older_than_hours" validate:"required,gt=0"`
	Statuses       []string `json:"statuses"         validate:"dive,oneof=succeeded failed cancelled"`
}

// CleanupTasksResponse reports how many task records were removed.
type CleanupTasksResponse struct {
	Deleted int64 `json:"deleted"`
}

// CancelTaskResponse reports the outcome of a cancellation request.
type CancelTaskResponse struct {
	Cancelled bool `json:"cancelled"`
}

// TaskResponse is the API representation of one refresh task.
type TaskResponse struct {
	ID           string                `json:"id"`
	Kind         string                `json:"kind"`
	Scope        string                `json:"scope,omitempty"`
	Status       string                `json:"status"`
	Progress     int                   `json:"progress"`
	CurrentStep  string                `json:"current_step,omitempty"`
	ErrorMessage string                `json:"error,omitempty"`
	Result       *domain.RefreshResult `json:"result,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
	CompletedAt  *time.Time            `json:"completed_at,omitempty"`
}

// TaskListResponse is one page of tasks, newest first.
type TaskListResponse struct {
	Tasks    []TaskResponse `json:"tasks"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

// TaskStatsResponse reports task counts by status.
type TaskStatsResponse struct {
	Counts map[string]int `json:"counts"`
	Total  int            `json:"total"`
}

// PlaceResponse is the API representation of one administrative place.
type PlaceResponse struct {
	ID       int64  `json:"id"`
	Level    string `json:"level"`
	ParentID int64  `json:"parent_id,omitempty"`
	Name     string `json:"name"`
	Code     string `json:"code,omitempty"`
}

// PlaceListResponse is one page of administrative places, ordered by name.
type PlaceListResponse struct {
	Places   []PlaceResponse `json:"places"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// FacilityResponse is the API representation of one healthcare facility.
type FacilityResponse struct {
	ID         int64   `json:"id"`
	DistrictID int64   `json:"district_id"`
	Name       string  `json:"name"`
	Website    string  `json:"website,omitempty"`
	Confidence float64 `json:"confidence"`
}

// FacilityListResponse is one page of facilities, ordered by name.
type FacilityListResponse struct {
	Facilities []FacilityResponse `json:"facilities"`
	Total      int                `json:"total"`
	Page       int                `json:"page"`
	PageSize   int                `json:"page_size"`
}

// taskToResponse converts a domain.RefreshTask to its API representation.
func taskToResponse(task *domain.RefreshTask) TaskResponse {
	return TaskResponse{
		ID:           task.ID.String(),
		Kind:         string(task.Kind),
		Scope:        task.Scope,
		Status:       string(task.Status),
		Progress:     task.Progress,
		CurrentStep:  task.CurrentStep,
		ErrorMessage: task.ErrorMessage,
		Result:       task.Result,
		CreatedAt:    task.CreatedAt,
		UpdatedAt:    task.UpdatedAt,
		CompletedAt:  task.CompletedAt,
	}
}

// taskPageToResponse converts a store.TaskPage to its API representation.
func taskPageToResponse(page *store.TaskPage) TaskListResponse {
	tasks := make([]TaskResponse, 0, len(page.Tasks))
	for _, task := range page.Tasks {
		tasks = append(tasks, taskToResponse(task))
	}
	return TaskListResponse{
		Tasks:    tasks,
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
	}
}

// placePageToResponse converts a store.PlacePage to its API representation.
func placePageToResponse(page *store.PlacePage) PlaceListResponse {
	places := make([]PlaceResponse, 0, len(page.Places))
	for _, place := range page.Places {
		places = append(places, PlaceResponse{
			ID:       place.ID,
			Level:    string(place.Level),
			ParentID: place.ParentID,
			Name:     place.Name,
			Code:     place.Code,
		})
	}
	return PlaceListResponse{
		Places:   places,
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
	}
}

// facilityPageToResponse converts a store.FacilityPage to its API
// representation.
func facilityPageToResponse(page *store.FacilityPage) FacilityListResponse {
	facilities := make([]FacilityResponse, 0, len(page.Facilities))
	for _, facility := range page.Facilities {
		facilities = append(facilities, FacilityResponse{
			ID:         facility.ID,
			DistrictID: facility.DistrictID,
			Name:       facility.Name,
			Website:    facility.Website,
			Confidence: facility.Confidence,
		})
	}
	return FacilityListResponse{
		Facilities: facilities,
		Total:      page.Total,
		Page:       page.Page,
		PageSize:   page.PageSize,
	}
}
