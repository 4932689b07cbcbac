// Package apperr defines the typed error kinds shared across the engine.
//
// Library layers return one of these sentinels (wrapped with context via
// fmt.Errorf("...: %w", ...)) rather than logging at the source. Callers
// that need to distinguish kinds use errors.Is against the sentinels below;
// the HTTP façade maps them to status codes in infrastructure/api/middleware.
package apperr

import "errors"

var (
	// ErrNotFound indicates a collection, model handle, or row was not found.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a collection name collision without overwrite.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidArgument indicates a caller-supplied argument was invalid
	// (empty name, out-of-range limit, unknown column).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrIO indicates a filesystem, database, or network failure.
	ErrIO = errors.New("io error")

	// ErrProtocol indicates a malformed hub manifest or unsupported
	// serialization version.
	ErrProtocol = errors.New("protocol error")

	// ErrDimensionMismatch indicates an index's dimensions disagree with a
	// model's output dimension. Fatal: callers must re-create the collection.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrUnsupported indicates a requested model variant or dtype is not
	// implemented. Fatal: callers must re-create the collection.
	ErrUnsupported = errors.New("unsupported")

	// ErrCancelled indicates the caller's context was cancelled mid-operation.
	ErrCancelled = errors.New("cancelled")
)
