package domain

import (
	"errors"
	"time"
)

// Common validation errors for places and facilities.
var (
	ErrEmptyPlaceName    = errors.New("place name cannot be empty")
	ErrInvalidPlaceLevel = errors.New("invalid place level")
	ErrMissingParent     = errors.New("place parent is required below the province level")
	ErrInvalidConfidence = errors.New("facility confidence must be between 0 and 1")
)

// Place is one node of the administrative hierarchy: a province, city or
// district. Provinces have no parent (ParentID is zero). Name is unique
// among siblings under the same parent; nothing here assumes global
// uniqueness.
type Place struct {
	ID        int64     `json:"id"`
	Level     Level     `json:"level"`
	ParentID  int64     `json:"parent_id,omitempty"`
	Name      string    `json:"name"`
	Code      string    `json:"code,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the place's fields.
func (p *Place) Validate() error {
	if p.Name == "" {
		return ErrEmptyPlaceName
	}
	if !p.Level.Valid() || p.Level == LevelFacility {
		return ErrInvalidPlaceLevel
	}
	if p.Level != LevelProvince && p.ParentID == 0 {
		return ErrMissingParent
	}
	return nil
}

// Facility is a leaf entity of the hierarchy: a healthcare facility inside a
// district. Website may be empty; Confidence is the data source's 0..1
// certainty that the entry is real and correctly attributed.
type Facility struct {
	ID         int64     `json:"id"`
	DistrictID int64     `json:"district_id"`
	Name       string    `json:"name"`
	Website    string    `json:"website,omitempty"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Validate checks the facility's fields.
func (f *Facility) Validate() error {
	if f.Name == "" {
		return ErrEmptyPlaceName
	}
	if f.DistrictID == 0 {
		return ErrMissingParent
	}
	if f.Confidence < 0 || f.Confidence > 1 {
		return ErrInvalidConfidence
	}
	return nil
}
