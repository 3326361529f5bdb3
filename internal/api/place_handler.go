package api

import (
	"errors"
	"net/http"

	"github.com/phrazzld/atlas-api/internal/api/shared"
	"github.com/phrazzld/atlas-api/internal/domain"
	"github.com/phrazzld/atlas-api/internal/store"
)

// PlaceHandler handles the read-only hierarchy browse and search endpoints.
type PlaceHandler struct {
	places store.PlaceStore
}

// NewPlaceHandler creates a new PlaceHandler.
func NewPlaceHandler(places store.PlaceStore) (*PlaceHandler, error) {
	if places == nil {
		return nil, errors.New("place store cannot be nil")
	}
	return &PlaceHandler{places: places}, nil
}

// ListProvinces handles GET /api/provinces requests.
func (h *PlaceHandler) ListProvinces(w http.ResponseWriter, r *http.Request) {
	page, pageSize, err := getPagination(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	listed, err := h.places.ListProvinces(r.Context(), page, pageSize)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, placePageToResponse(listed))
}

// ListCities handles GET /api/provinces/{id}/cities requests.
func (h *PlaceHandler) ListCities(w http.ResponseWriter, r *http.Request) {
	h.listChildren(w, r, domain.LevelCity)
}

// ListDistricts handles GET /api/cities/{id}/districts requests.
func (h *PlaceHandler) ListDistricts(w http.ResponseWriter, r *http.Request) {
	h.listChildren(w, r, domain.LevelDistrict)
}

func (h *PlaceHandler) listChildren(w http.ResponseWriter, r *http.Request, level domain.Level) {
	parentID, err := getPathInt64(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	page, pageSize, err := getPagination(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	listed, err := h.places.ListChildren(r.Context(), level, parentID, page, pageSize)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, placePageToResponse(listed))
}

// ListFacilities handles GET /api/districts/{id}/facilities requests.
func (h *PlaceHandler) ListFacilities(w http.ResponseWriter, r *http.Request) {
	districtID, err := getPathInt64(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	page, pageSize, err := getPagination(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	listed, err := h.places.ListFacilities(r.Context(), districtID, page, pageSize)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, facilityPageToResponse(listed))
}

// SearchFacilities handles GET /api/facilities/search requests. The q query
// parameter is required.
func (h *PlaceHandler) SearchFacilities(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Query parameter q is required")
		return
	}

	page, pageSize, err := getPagination(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	found, err := h.places.SearchFacilities(r.Context(), query, page, pageSize)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, facilityPageToResponse(found))
}

// HierarchyStats handles GET /api/stats requests.
func (h *PlaceHandler) HierarchyStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.places.Stats(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, stats)
}
