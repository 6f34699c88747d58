package search

import (
	"strings"

	"github.com/bastiangx/menuserve/pkg/catalog"
)

// Filters are post-hoc predicates applied to prefix results.
// Zero values mean "unset".
type Filters struct {
	// Cuisine matches case-insensitively.
	Cuisine   string  `msgpack:"cuisine,omitempty"`
	MinRating float64 `msgpack:"min_rating,omitempty"`
	MaxRating float64 `msgpack:"max_rating,omitempty"`
	// PriceBucket is 1..4, see catalog.PriceBucket.
	PriceBucket  int    `msgpack:"price_bucket,omitempty"`
	RestaurantID string `msgpack:"restaurant_id,omitempty"`
}

// IsZero reports whether no predicate is set.
func (f Filters) IsZero() bool {
	return f == Filters{}
}

// Match reports whether e passes every set predicate.
func (f Filters) Match(e catalog.Entity) bool {
	if f.Cuisine != "" && !strings.EqualFold(strings.TrimSpace(f.Cuisine), strings.TrimSpace(e.Cuisine)) {
		return false
	}
	if f.MinRating > 0 && e.Rating < f.MinRating {
		return false
	}
	if f.MaxRating > 0 && e.Rating > f.MaxRating {
		return false
	}
	if f.PriceBucket > 0 && e.PriceBucket() != f.PriceBucket {
		return false
	}
	if f.RestaurantID != "" && e.RestaurantID != f.RestaurantID {
		return false
	}
	return true
}

// apply copies the entities passing f into a new slice, stopping at limit
// when limit > 0.
func (f Filters) apply(entities []catalog.Entity, limit int) []catalog.Entity {
	size := len(entities)
	if limit > 0 && limit < size {
		size = limit
	}
	out := make([]catalog.Entity, 0, size)
	for _, e := range entities {
		if !f.Match(e) {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
