package model

import "errors"

// Error taxonomy for the retrieval engine. Callers classify failures
// with errors.Is against these sentinels; components wrap them with
// fmt.Errorf("...: %w", ...) to add context.
var (
	// ErrValidation marks malformed caller input: empty or
	// length-mismatched batches, out-of-range parameters, or a raw
	// record with no usable identity. Never retried.
	ErrValidation = errors.New("validation error")

	// ErrEmbedding marks a failure of the embedding provider to
	// produce a vector. Always propagated, never converted into a
	// no-match result.
	ErrEmbedding = errors.New("embedding failure")

	// ErrDimensionMismatch marks a stored index whose dimension
	// disagrees with the active model. Recovered internally by a full
	// rebuild; surfaces only if the rebuild itself fails.
	ErrDimensionMismatch = errors.New("index dimension mismatch")

	// ErrStorageUnavailable marks a persistent snapshot that can
	// neither be opened nor recreated, with in-memory fallback
	// disabled or exhausted.
	ErrStorageUnavailable = errors.New("index storage unavailable")
)
