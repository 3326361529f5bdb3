package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/phrazzld/atlas-api/internal/domain"
	"github.com/phrazzld/atlas-api/internal/platform/logger"
	"github.com/phrazzld/atlas-api/internal/store"
)

// PostgresPlaceStore implements the store.PlaceStore interface using
// PostgreSQL. The administrative levels live in one table per level
// (provinces, cities, districts) plus facilities for the leaf level; all
// writes go through idempotent upserts keyed by (parent, name).
type PostgresPlaceStore struct {
	db store.DBTX
}

// Ensure PostgresPlaceStore implements store.PlaceStore
var _ store.PlaceStore = (*PostgresPlaceStore)(nil)

// NewPostgresPlaceStore creates a new PostgresPlaceStore.
func NewPostgresPlaceStore(db store.DBTX) *PostgresPlaceStore {
	return &PostgresPlaceStore{db: db}
}

// WithTx implements store.PlaceStore.WithTx.
func (s *PostgresPlaceStore) WithTx(tx *sql.Tx) store.PlaceStore {
	return &PostgresPlaceStore{db: tx}
}

// Upsert inserts or refreshes one node and returns its ID. The conflict
// target is the sibling-uniqueness constraint of the level's table, so
// repeating an upsert never duplicates a node.
func (s *PostgresPlaceStore) Upsert(
	ctx context.Context,
	level domain.Level,
	parentID int64,
	place store.UpsertPlace,
) (int64, error) {
	log := logger.FromContext(ctx)

	if place.Name == "" {
		return 0, fmt.Errorf("%w: place name cannot be empty", store.ErrInvalidEntity)
	}

	var query string
	var args []any

	switch level {
	case domain.LevelProvince:
		query = `
			INSERT INTO provinces (name, code, created_at, updated_at)
			VALUES ($1, $2, now(), now())
			ON CONFLICT (name)
			DO UPDATE SET code = EXCLUDED.code, updated_at = now()
			RETURNING id
		`
		args = []any{place.Name, place.Code}
	case domain.LevelCity:
		query = `
			INSERT INTO cities (province_id, name, code, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
			ON CONFLICT (province_id, name)
			DO UPDATE SET code = EXCLUDED.code, updated_at = now()
			RETURNING id
		`
		args = []any{parentID, place.Name, place.Code}
	case domain.LevelDistrict:
		query = `
			INSERT INTO districts (city_id, name, code, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
			ON CONFLICT (city_id, name)
			DO UPDATE SET code = EXCLUDED.code, updated_at = now()
			RETURNING id
		`
		args = []any{parentID, place.Name, place.Code}
	case domain.LevelFacility:
		query = `
			INSERT INTO facilities (district_id, name, website, confidence, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
			ON CONFLICT (district_id, name)
			DO UPDATE SET website = EXCLUDED.website,
				confidence = EXCLUDED.confidence,
				updated_at = now()
			RETURNING id
		`
		args = []any{parentID, place.Name, place.Website, place.Confidence}
	default:
		return 0, fmt.Errorf("%w: unknown level %q", store.ErrInvalidEntity, level)
	}

	var id int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		log.Error("failed to upsert place",
			"level", level,
			"parent_id", parentID,
			"name", place.Name,
			"error", err)
		return 0, fmt.Errorf("failed to upsert %s %q: %w", level, place.Name, MapError(err))
	}

	return id, nil
}

// FindByName looks up a node's ID by level and exact name.
func (s *PostgresPlaceStore) FindByName(ctx context.Context, level domain.Level, name string) (int64, error) {
	table, err := tableForLevel(level)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf("SELECT id FROM %s WHERE name = $1 ORDER BY id LIMIT 1", table)

	var id int64
	if err := s.db.QueryRowContext(ctx, query, name).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, store.ErrPlaceNotFound
		}
		return 0, fmt.Errorf("failed to find %s %q: %w", level, name, MapError(err))
	}

	return id, nil
}

// ListProvinces retrieves a page of provinces ordered by name.
func (s *PostgresPlaceStore) ListProvinces(ctx context.Context, page, pageSize int) (*store.PlacePage, error) {
	page, pageSize = normalizePage(page, pageSize)

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM provinces").Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count provinces: %w", MapError(err))
	}

	query := `
		SELECT id, name, code, created_at, updated_at
		FROM provinces
		ORDER BY name
		LIMIT $1 OFFSET $2
	`
	rows, err := s.db.QueryContext(ctx, query, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list provinces: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	places := make([]*domain.Place, 0, pageSize)
	for rows.Next() {
		place := &domain.Place{Level: domain.LevelProvince}
		if err := rows.Scan(&place.ID, &place.Name, &place.Code, &place.CreatedAt, &place.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan province row: %w", err)
		}
		places = append(places, place)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate province rows: %w", err)
	}

	return &store.PlacePage{Places: places, Total: total, Page: page, PageSize: pageSize}, nil
}

// ListChildren retrieves a page of the direct children of a parent at the
// given child level: cities of a province or districts of a city.
func (s *PostgresPlaceStore) ListChildren(
	ctx context.Context,
	level domain.Level,
	parentID int64,
	page, pageSize int,
) (*store.PlacePage, error) {
	page, pageSize = normalizePage(page, pageSize)

	var table, parentTable, parentColumn string
	switch level {
	case domain.LevelCity:
		table, parentTable, parentColumn = "cities", "provinces", "province_id"
	case domain.LevelDistrict:
		table, parentTable, parentColumn = "districts", "cities", "city_id"
	default:
		return nil, fmt.Errorf("%w: level %q has no administrative children listing", store.ErrInvalidEntity, level)
	}

	if err := s.checkExists(ctx, parentTable, parentID); err != nil {
		return nil, err
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = $1", table, parentColumn)
	if err := s.db.QueryRowContext(ctx, countQuery, parentID).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count %s: %w", table, MapError(err))
	}

	query := fmt.Sprintf(`
		SELECT id, %s, name, code, created_at, updated_at
		FROM %s
		WHERE %s = $1
		ORDER BY name
		LIMIT $2 OFFSET $3
	`, parentColumn, table, parentColumn)

	rows, err := s.db.QueryContext(ctx, query, parentID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", table, MapError(err))
	}
	defer func() { _ = rows.Close() }()

	places := make([]*domain.Place, 0, pageSize)
	for rows.Next() {
		place := &domain.Place{Level: level}
		if err := rows.Scan(&place.ID, &place.ParentID, &place.Name, &place.Code, &place.CreatedAt, &place.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		places = append(places, place)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s rows: %w", table, err)
	}

	return &store.PlacePage{Places: places, Total: total, Page: page, PageSize: pageSize}, nil
}

// ListFacilities retrieves a page of a district's facilities.
func (s *PostgresPlaceStore) ListFacilities(
	ctx context.Context,
	districtID int64,
	page, pageSize int,
) (*store.FacilityPage, error) {
	page, pageSize = normalizePage(page, pageSize)

	if err := s.checkExists(ctx, "districts", districtID); err != nil {
		return nil, err
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM facilities WHERE district_id = $1"
	if err := s.db.QueryRowContext(ctx, countQuery, districtID).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count facilities: %w", MapError(err))
	}

	query := `
		SELECT id, district_id, name, website, confidence, created_at, updated_at
		FROM facilities
		WHERE district_id = $1
		ORDER BY name
		LIMIT $2 OFFSET $3
	`
	return s.queryFacilities(ctx, query, total, page, pageSize, districtID, pageSize, (page-1)*pageSize)
}

// SearchFacilities retrieves facilities whose name contains the query,
// case-insensitively, ordered by name.
func (s *PostgresPlaceStore) SearchFacilities(
	ctx context.Context,
	query string,
	page, pageSize int,
) (*store.FacilityPage, error) {
	page, pageSize = normalizePage(page, pageSize)
	pattern := "%" + query + "%"

	var total int
	countQuery := "SELECT COUNT(*) FROM facilities WHERE name ILIKE $1"
	if err := s.db.QueryRowContext(ctx, countQuery, pattern).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count facility matches: %w", MapError(err))
	}

	searchQuery := `
		SELECT id, district_id, name, website, confidence, created_at, updated_at
		FROM facilities
		WHERE name ILIKE $1
		ORDER BY name
		LIMIT $2 OFFSET $3
	`
	return s.queryFacilities(ctx, searchQuery, total, page, pageSize, pattern, pageSize, (page-1)*pageSize)
}

// Stats returns per-level totals and the average facility confidence.
func (s *PostgresPlaceStore) Stats(ctx context.Context) (*store.HierarchyStats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM provinces),
			(SELECT COUNT(*) FROM cities),
			(SELECT COUNT(*) FROM districts),
			(SELECT COUNT(*) FROM facilities),
			COALESCE((SELECT AVG(confidence) FROM facilities), 0)
	`

	var stats store.HierarchyStats
	err := s.db.QueryRowContext(ctx, query).Scan(
		&stats.Provinces,
		&stats.Cities,
		&stats.Districts,
		&stats.Facilities,
		&stats.AvgConfidence,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute hierarchy stats: %w", MapError(err))
	}

	return &stats, nil
}

// queryFacilities runs one facility page query and scans its rows.
func (s *PostgresPlaceStore) queryFacilities(
	ctx context.Context,
	query string,
	total, page, pageSize int,
	args ...any,
) (*store.FacilityPage, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query facilities: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	facilities := make([]*domain.Facility, 0, pageSize)
	for rows.Next() {
		facility := &domain.Facility{}
		err := rows.Scan(
			&facility.ID,
			&facility.DistrictID,
			&facility.Name,
			&facility.Website,
			&facility.Confidence,
			&facility.CreatedAt,
			&facility.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan facility row: %w", err)
		}
		facilities = append(facilities, facility)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate facility rows: %w", err)
	}

	return &store.FacilityPage{
		Facilities: facilities,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// checkExists verifies a parent row exists before listing its children.
func (s *PostgresPlaceStore) checkExists(ctx context.Context, table string, id int64) error {
	var exists bool
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1)", table)
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check %s existence: %w", table, MapError(err))
	}
	if !exists {
		return store.ErrPlaceNotFound
	}
	return nil
}

// tableForLevel maps a hierarchy level to its table name.
func tableForLevel(level domain.Level) (string, error) {
	switch level {
	case domain.LevelProvince:
		return "provinces", nil
	case domain.LevelCity:
		return "cities", nil
	case domain.LevelDistrict:
		return "districts", nil
	case domain.LevelFacility:
		return "facilities", nil
	default:
		return "", fmt.Errorf("%w: unknown level %q", store.ErrInvalidEntity, level)
	}
}

// normalizePage applies listing defaults.
func normalizePage(page, pageSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
