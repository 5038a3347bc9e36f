package domain

import "errors"

var (
	// ErrStoreUnavailable means the task store could not be reached or failed.
	ErrStoreUnavailable = errors.New("task store unavailable")

	// ErrInvalidInput rejects a task without a title or a coordinate.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoGeocodingResult means a place search matched nothing.
	ErrNoGeocodingResult = errors.New("no geocoding result")

	// ErrLocationUnavailable means the position provider denied or failed.
	ErrLocationUnavailable = errors.New("location unavailable")

	// ErrNotFound is returned by repositories for unknown ids.
	ErrNotFound = errors.New("not found")
)
