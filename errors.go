package pyramid

import (
	"errors"
	"fmt"
)

// Common errors for pyramid production.
var (
	// ErrMemoryBudget is returned when a source decode cannot be admitted to
	// the raster cache even after the cache has been cleared and the decode
	// retried once.
	ErrMemoryBudget = errors.New("pyramid: raster exceeds cache memory budget")

	// ErrDisposed is returned when an operation is attempted on a raster
	// whose pixel buffer has already been released.
	ErrDisposed = errors.New("pyramid: raster disposed")

	// ErrNoIntersection is returned when a requested sub-sector does not
	// intersect the raster's sector.
	ErrNoIntersection = errors.New("pyramid: sectors do not intersect")

	// ErrIncompleteMetadata is returned when a source's sector or dimensions
	// remain unknown after the reader's metadata pass.
	ErrIncompleteMetadata = errors.New("pyramid: source metadata incomplete")

	// ErrNoReader is returned when no registered reader accepts a source.
	ErrNoReader = errors.New("pyramid: no reader for source")

	// ErrNoWriter is returned when no registered writer matches a tile's
	// format suffix.
	ErrNoWriter = errors.New("pyramid: no writer for format")
)

// ValidationError reports a missing or invalid production parameter.
// Validation runs before any I/O, so a ValidationError guarantees nothing
// was written.
type ValidationError struct {
	Param  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("pyramid: invalid parameter %q: %s", e.Param, e.Reason)
}

// AssemblyError reports that a source could not be decoded or composed.
// It aborts only the affected subtree; sibling tiles still complete.
type AssemblyError struct {
	Source string
	Err    error
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("pyramid: assemble %q: %v", e.Source, e.Err)
}

func (e *AssemblyError) Unwrap() error { return e.Err }

// ManifestError reports a failure writing the pyramid manifest. A pyramid
// without its manifest is unusable, so this is the only per-phase failure
// that aborts a whole run after tile production has started.
type ManifestError struct {
	Path string
	Err  error
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("pyramid: write manifest %q: %v", e.Path, e.Err)
}

func (e *ManifestError) Unwrap() error { return e.Err }
