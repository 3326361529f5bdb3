package discovery

import (
	"context"

	"github.com/phrazzld/atlas-api/internal/domain"
)

// Node is one hierarchy entry returned by a data source. Name is always set.
// Code is populated for administrative levels (province, city, district);
// Website and Confidence are populated for facilities.
type Node struct {
	Name       string
	Code       string
	Website    string
	Confidence float64
}

// Source defines the interface for fetching hierarchy data from an external
// provider, one level at a time. This interface is the boundary between the
// refresh core and external AI/LLM services.
//
// Implementations classify their failures: errors wrapping ErrTransient may
// be retried by the caller, everything else is treated as permanent and
// propagates immediately.
type Source interface {
	// FetchProvinces returns every top-level node the provider knows about.
	FetchProvinces(ctx context.Context) ([]Node, error)

	// FetchChildren returns the direct children of the named parent at the
	// given child level. For example FetchChildren(ctx, "Guangdong",
	// domain.LevelCity) lists Guangdong's cities. The parent path gives the
	// provider enough context to disambiguate same-named nodes under
	// different parents.
	FetchChildren(ctx context.Context, parentPath string, level domain.Level) ([]Node, error)
}
