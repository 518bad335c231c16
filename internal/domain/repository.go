package domain

import "context"

// EmbeddingCache is the injected vector cache the scorer depends on. Keys are
// normalized title text, so identical titles from different retailers reuse
// one vector. Implementations must be safe for concurrent use; duplicate
// computation on a racing miss is acceptable because the backend is
// deterministic for a fixed model.
type EmbeddingCache interface {
	// GetOrCompute returns the cached vector for text, computing and storing
	// it on a miss.
	GetOrCompute(ctx context.Context, text string) ([]float32, error)
	// Len reports the number of cached vectors.
	Len() int
	// Stats reports hit/miss counters for the current run.
	Stats() (hits, misses int64)
	// Flush persists any entries added since open. A no-op for purely
	// in-memory caches.
	Flush() error
	// Clear drops every cached vector, in memory and in the durable store.
	Clear() error
}

// Embedder turns text into fixed-length sentence vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
