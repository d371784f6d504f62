package playlist

import "errors"

// Domain errors for the playlist package.
var (
	// ErrInvalidDocument is returned when a playlist document cannot be decoded.
	ErrInvalidDocument = errors.New("playlist: invalid document")

	// ErrDuplicateItemID is returned by Validate when two items share an id.
	ErrDuplicateItemID = errors.New("playlist: duplicate item id")

	// ErrInvalidDuration is returned by Validate for a non-positive or
	// non-finite duration.
	ErrInvalidDuration = errors.New("playlist: invalid duration")

	// ErrInvalidSchedule is returned by Validate for a malformed or wrapping window.
	ErrInvalidSchedule = errors.New("playlist: invalid schedule")

	// ErrMissingItemID is returned by Validate for an item without an id.
	ErrMissingItemID = errors.New("playlist: missing item id")
)
