package domain

// Level identifies one tier of the place hierarchy, ordered top-down:
// province, city, district, facility.
type Level string

// Hierarchy tiers in containment order.
const (
	LevelProvince Level = "province"
	LevelCity     Level = "city"
	LevelDistrict Level = "district"
	LevelFacility Level = "facility"
)

// HierarchyLevels lists all tiers in top-down order.
var HierarchyLevels = []Level{LevelProvince, LevelCity, LevelDistrict, LevelFacility}

// Valid reports whether the level is one of the four hierarchy tiers.
func (l Level) Valid() bool {
	switch l {
	case LevelProvince, LevelCity, LevelDistrict, LevelFacility:
		return true
	default:
		return false
	}
}

// Child returns the tier directly below this one. The second return is
// false for LevelFacility, which has no children.
func (l Level) Child() (Level, bool) {
	switch l {
	case LevelProvince:
		return LevelCity, true
	case LevelCity:
		return LevelDistrict, true
	case LevelDistrict:
		return LevelFacility, true
	default:
		return "", false
	}
}
