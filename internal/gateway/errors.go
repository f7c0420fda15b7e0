package gateway

import "errors"

// Sentinel errors for gateway operations.
var (
	// ErrInvalidMode is returned when a mode switch names a mode other
	// than "simulation" or "production".
	ErrInvalidMode = errors.New("gateway: invalid mode")

	// ErrMissingLabelID is returned when a publish has no target label.
	ErrMissingLabelID = errors.New("gateway: label ID required")
)
