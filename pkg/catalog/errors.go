package catalog

import "errors"

var (
	// ErrInvalidEntity is returned when an entity is missing required data.
	ErrInvalidEntity = errors.New("catalog: invalid entity")

	// ErrUnknownKind is returned for kinds other than restaurant and menu item.
	ErrUnknownKind = errors.New("catalog: unknown entity kind")

	// ErrDuplicateID is returned when an id appears twice within one kind.
	ErrDuplicateID = errors.New("catalog: duplicate entity id")

	// ErrUnsupportedFormat is returned for catalog files with an unknown extension.
	ErrUnsupportedFormat = errors.New("catalog: unsupported file format")

	// ErrMalformed is returned when a catalog document cannot be parsed.
	ErrMalformed = errors.New("catalog: malformed document")
)

// IsDataError reports whether err comes from the catalog contents rather
// than from reading them.
func IsDataError(err error) bool {
	return errors.Is(err, ErrMalformed) ||
		errors.Is(err, ErrInvalidEntity) ||
		errors.Is(err, ErrUnknownKind) ||
		errors.Is(err, ErrDuplicateID)
}
