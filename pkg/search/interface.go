package search

import (
	"context"

	"github.com/bastiangx/menuserve/pkg/catalog"
)

// ISearcher is the read side of the coordinator, as used by the IPC server
// and the interactive CLI.
type ISearcher interface {
	// SearchRestaurants returns restaurants matching a query prefix and filters
	SearchRestaurants(query string, filters Filters, limit int) []catalog.Entity

	// SearchMenuItems returns menu items matching a query prefix, optionally of one restaurant
	SearchMenuItems(query, restaurantID string, limit int) []catalog.Entity

	// GetSuggestions returns distinct completions across every domain
	GetSuggestions(query string, limit int) []string

	// Rebuild reloads the catalog source and swaps in new indexes
	Rebuild(ctx context.Context) error

	// State reports whether indexes are built and fresh
	State() State

	// Stats returns index, filter and cache counters
	Stats() map[string]int
}

var _ ISearcher = (*Coordinator)(nil)
