package recommend

import "errors"

var (
	// ErrEmptyID is returned for a blank user or item id.
	ErrEmptyID = errors.New("recommend: user and item ids must be non-empty")

	// ErrInvalidRating is returned for NaN or infinite ratings.
	ErrInvalidRating = errors.New("recommend: rating must be a finite number")

	// ErrInvalidParams is returned by options given out-of-range values.
	ErrInvalidParams = errors.New("recommend: invalid parameters")
)
