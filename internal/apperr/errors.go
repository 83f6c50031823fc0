// Package apperr defines the sentinel errors shared by the query surfaces.
package apperr

import "errors"

var (
	// ErrNotFound is returned when a symbol, path or target resolves to nothing.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable is returned while no registry document is loaded.
	ErrUnavailable = errors.New("registry unavailable")
	// ErrUnsupported is returned by primitives that need a real parser.
	ErrUnsupported = errors.New("unsupported by the registry index")
)
