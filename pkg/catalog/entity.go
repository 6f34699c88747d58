// Package catalog defines the entities the engine indexes and the ways a
// catalog reaches it: typed records from a data-access layer, or YAML, TOML
// and msgpack catalog files.
package catalog

import (
	"fmt"
	"strings"
)

// Kind tags which domain an entity belongs to.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindRestaurant
	KindMenuItem
)

// Kinds lists every indexable kind, in build order.
var Kinds = []Kind{KindRestaurant, KindMenuItem}

func (k Kind) String() string {
	switch k {
	case KindRestaurant:
		return "restaurant"
	case KindMenuItem:
		return "menu_item"
	default:
		return "unknown"
	}
}

// ParseKind accepts the spellings found in catalog files.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "restaurant", "restaurants", "r":
		return KindRestaurant, nil
	case "menu_item", "menuitem", "menu-item", "item", "dish", "m":
		return KindMenuItem, nil
	}
	return KindUnknown, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Entity is one searchable catalog row.
type Entity struct {
	ID   string
	Kind Kind
	// Fields are the texts the entity is indexed under. Empty means
	// Name, Cuisine and Address.
	Fields []string
	// Owner is the caller's own record handle, carried through untouched.
	Owner any

	Name         string
	Cuisine      string
	Address      string
	Rating       float64
	Price        float64
	RestaurantID string
}

// SearchableFields returns the texts to index, dropping blanks.
func (e Entity) SearchableFields() []string {
	src := e.Fields
	if len(src) == 0 {
		src = []string{e.Name, e.Cuisine, e.Address}
	}
	out := make([]string, 0, len(src))
	for _, f := range src {
		if strings.TrimSpace(f) != "" {
			out = append(out, f)
		}
	}
	return out
}

// PriceBucket maps a price onto the 1..4 buckets shown in listings.
func (e Entity) PriceBucket() int {
	return PriceBucket(e.Price)
}

// PriceBucket maps a price onto 1 (< 10), 2 (< 25), 3 (< 50) or 4.
func PriceBucket(price float64) int {
	switch {
	case price < 10:
		return 1
	case price < 25:
		return 2
	case price < 50:
		return 3
	default:
		return 4
	}
}

// Validate checks an entity list before it is indexed: ids present, kinds
// known, ids unique per kind and menu items pointing at a restaurant.
func Validate(entities []Entity) error {
	seen := make(map[Kind]map[string]struct{}, len(Kinds))
	for i, e := range entities {
		if strings.TrimSpace(e.ID) == "" {
			return fmt.Errorf("%w: entity %d has an empty id", ErrInvalidEntity, i)
		}
		if e.Kind != KindRestaurant && e.Kind != KindMenuItem {
			return fmt.Errorf("%w: entity %q", ErrUnknownKind, e.ID)
		}
		if e.Kind == KindMenuItem && strings.TrimSpace(e.RestaurantID) == "" {
			return fmt.Errorf("%w: menu item %q has no restaurant id", ErrInvalidEntity, e.ID)
		}
		ids := seen[e.Kind]
		if ids == nil {
			ids = make(map[string]struct{})
			seen[e.Kind] = ids
		}
		if _, dup := ids[e.ID]; dup {
			return fmt.Errorf("%w: %s %q", ErrDuplicateID, e.Kind, e.ID)
		}
		ids[e.ID] = struct{}{}
	}
	return nil
}
