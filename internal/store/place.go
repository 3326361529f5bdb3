package store

import (
	"context"
	"database/sql"

	"github.com/phrazzld/atlas-api/internal/domain"
)

// UpsertPlace carries the writable attributes of an upserted node. Code is
// used for administrative levels; Website and Confidence apply only to
// facilities.
type UpsertPlace struct {
	Name       string
	Code       string
	Website    string
	Confidence float64
}

// PlacePage is one page of administrative places, ordered by name.
type PlacePage struct {
	Places   []*domain.Place
	Total    int
	Page     int
	PageSize int
}

// FacilityPage is one page of facilities, ordered by name.
type FacilityPage struct {
	Facilities []*domain.Facility
	Total      int
	Page       int
	PageSize   int
}

// HierarchyStats summarizes the stored hierarchy.
type HierarchyStats struct {
	Provinces     int     `json:"provinces"`
	Cities        int     `json:"cities"`
	Districts     int     `json:"districts"`
	Facilities    int     `json:"facilities"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// PlaceStore defines the interface for place hierarchy persistence.
// Version: 1.0
type PlaceStore interface {
	// Upsert inserts or updates one node, keyed by (level, parentID, name).
	// Repeating an upsert with the same key is idempotent and refreshes the
	// node's attributes. parentID is ignored for the province level.
	// Returns the node's ID.
	Upsert(ctx context.Context, level domain.Level, parentID int64, place UpsertPlace) (int64, error)

	// FindByName looks up a node's ID by level and exact name. For levels
	// below province the lookup is not parent-scoped and returns the first
	// match; callers that need sibling disambiguation should track IDs from
	// Upsert instead. Returns ErrPlaceNotFound if absent.
	FindByName(ctx context.Context, level domain.Level, name string) (int64, error)

	// ListProvinces retrieves a page of provinces ordered by name.
	ListProvinces(ctx context.Context, page, pageSize int) (*PlacePage, error)

	// ListChildren retrieves a page of the direct children of the given
	// parent at the given child level (cities of a province, districts of a
	// city). Returns ErrPlaceNotFound if the parent does not exist.
	ListChildren(ctx context.Context, level domain.Level, parentID int64, page, pageSize int) (*PlacePage, error)

	// ListFacilities retrieves a page of a district's facilities.
	// Returns ErrPlaceNotFound if the district does not exist.
	ListFacilities(ctx context.Context, districtID int64, page, pageSize int) (*FacilityPage, error)

	// SearchFacilities retrieves facilities whose name contains the query,
	// case-insensitively, ordered by name.
	SearchFacilities(ctx context.Context, query string, page, pageSize int) (*FacilityPage, error)

	// Stats returns per-level totals and the average facility confidence.
	Stats(ctx context.Context) (*HierarchyStats, error)

	// WithTx returns a new PlaceStore instance that uses the provided
	// transaction. The transaction is created and managed by the caller.
	WithTx(tx *sql.Tx) PlaceStore
}
