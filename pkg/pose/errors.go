package pose

import "errors"

// Sentinel errors for common conditions.
var (
	// ErrModelNotFound is returned when the model file or worker script is missing.
	ErrModelNotFound = errors.New("pose: model not found")

	// ErrDecode is returned when a frame cannot be decoded.
	ErrDecode = errors.New("pose: decode frame")

	// ErrClosed is returned when detecting on a closed detector.
	ErrClosed = errors.New("pose: detector closed")
)
