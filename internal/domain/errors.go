package domain

import "errors"

var (
	// ErrInvalidConfig is returned for weight/threshold configuration that
	// fails validation. The only error class that aborts a run.
	ErrInvalidConfig = errors.New("invalid matching configuration")

	// ErrCacheMiss is returned when an embedding is not found in the cache.
	ErrCacheMiss = errors.New("embedding cache miss")

	// ErrCacheUnavailable is returned when the durable cache store cannot be
	// opened or written. The run continues with an in-memory cache.
	ErrCacheUnavailable = errors.New("embedding cache store unavailable")

	// ErrEmbeddingFailure is returned when the embedding backend errors.
	// Scoring degrades to lexical-only for affected pairs.
	ErrEmbeddingFailure = errors.New("embedding computation failed")

	// ErrMalformedRecord is returned when a raw row cannot be normalized
	// into the required fields. Routed to the unmatched set, never fatal.
	ErrMalformedRecord = errors.New("malformed product record")

	// ErrNoRecords is returned when the loader produced no usable rows.
	ErrNoRecords = errors.New("no product records to match")
)
