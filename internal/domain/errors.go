package domain

import "errors"

// Pipeline error taxonomy. Callers classify failures with errors.Is; every
// adapter wraps one of these sentinels with fmt.Errorf("%w: ...") context.
var (
	// ErrInvalidRegion marks a degenerate or out-of-range bounding box.
	ErrInvalidRegion = errors.New("invalid region")

	// ErrProviderUnavailable marks a network or HTTP failure from the
	// point-data provider, including malformed payloads.
	ErrProviderUnavailable = errors.New("point-data provider unavailable")

	// ErrIncompletePointSet marks a provider response with fewer points
	// than requested. Assembly must never proceed with a shape mismatch.
	ErrIncompletePointSet = errors.New("incomplete point set")

	// ErrInconsistentTimeAxis marks per-point series whose length or step
	// differs across a single fetch.
	ErrInconsistentTimeAxis = errors.New("inconsistent time axis")

	// ErrInsufficientGrid marks a cube with fewer than two samples along a
	// spatial axis, which cannot be resampled.
	ErrInsufficientGrid = errors.New("insufficient grid for interpolation")

	// ErrPersistenceFailure marks a durable store read or write error.
	ErrPersistenceFailure = errors.New("persistence failure")
)
