package domain

import "errors"

// Error kinds shared across packages. Startup failures (artifact or
// dataset load) are fatal; per-request failures are caught at the API
// boundary and surfaced as validation messages. An empty filtered set
// is not an error anywhere.
var (
	// ErrSchemaMismatch: a record field is absent, of the wrong type,
	// or carries a category outside the schema vocabulary.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrDimensionMismatch: an encoded vector does not match the
	// frozen weight dimensionality. Callers must not attempt partial
	// inference.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrArtifactLoad: the model artifact is missing or corrupt.
	// Fatal at startup, never recoverable per-request.
	ErrArtifactLoad = errors.New("artifact load failure")

	// ErrNotFound: a stored entity does not exist.
	ErrNotFound = errors.New("record not found")
)
