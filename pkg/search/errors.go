package search

import "errors"

var (
	// ErrInvalidCatalog wraps every reason a rebuild was refused.
	// The previous snapshot stays live when it is returned.
	ErrInvalidCatalog = errors.New("search: invalid catalog")

	// ErrNoSource is returned by Rebuild when no catalog source is configured.
	ErrNoSource = errors.New("search: no catalog source configured")

	// ErrInvalidParams is returned by options given out-of-range values.
	ErrInvalidParams = errors.New("search: invalid parameters")
)
