package label

import "errors"

// Domain errors for the label package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, label.ErrLabelNotFound) {
//	    // handle not found case
//	}
var (
	// ErrLabelNotFound is returned when a label ID does not exist.
	ErrLabelNotFound = errors.New("label: not found")

	// ErrLabelExists is returned when inserting a label with an ID that
	// already exists in the catalog.
	ErrLabelExists = errors.New("label: already exists")

	// ErrInvalidID is returned when a label ID is empty.
	ErrInvalidID = errors.New("label: id cannot be empty")
)
