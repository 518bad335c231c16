// Package embedcache provides the embedding caches the scorer depends on: a
// process-wide in-memory cache and a SQLite-backed cache persisted between
// runs. Entries are append-only and keyed by normalized title text; there is
// no TTL or eviction, so growth is bounded only by distinct-title
// cardinality.
package embedcache

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/auenatural/pricelens/internal/domain"
)

var keyCleanRegex = regexp.MustCompile(`[^a-z0-9\s]+`)
var keySpaceRegex = regexp.MustCompile(`\s+`)

// cacheKey normalizes text the same way titles are normalized, so identical
// titles from different retailers share one vector.
func cacheKey(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = keyCleanRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(keySpaceRegex.ReplaceAllString(s, " "))
}

// Memory is a thread-safe in-memory embedding cache. Concurrent
// get-or-compute calls racing on the same missing key may both compute; the
// loser overwrites with an identical vector, which is harmless because the
// embedder is deterministic.
type Memory struct {
	embedder domain.Embedder

	mutex sync.RWMutex
	data  map[string][]float32

	hits   atomic.Int64
	misses atomic.Int64
}

// NewMemory creates an in-memory cache over the given embedder.
func NewMemory(embedder domain.Embedder) *Memory {
	return &Memory{
		embedder: embedder,
		data:     make(map[string][]float32),
	}
}

// GetOrCompute returns the cached vector for text, computing and storing it
// on a miss.
func (m *Memory) GetOrCompute(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)
	if key == "" {
		return nil, domain.ErrEmbeddingFailure
	}

	m.mutex.RLock()
	vec, ok := m.data[key]
	m.mutex.RUnlock()
	if ok {
		m.hits.Add(1)
		return vec, nil
	}
	m.misses.Add(1)

	vectors, err := m.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, domain.ErrEmbeddingFailure
	}

	m.mutex.Lock()
	m.data[key] = vectors[0]
	m.mutex.Unlock()

	return vectors[0], nil
}

// Len reports the number of cached vectors.
func (m *Memory) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.data)
}

// Stats reports hit/miss counters for the current run.
func (m *Memory) Stats() (hits, misses int64) {
	return m.hits.Load(), m.misses.Load()
}

// Flush is a no-op for the in-memory cache.
func (m *Memory) Flush() error {
	return nil
}

// Clear drops every cached vector.
func (m *Memory) Clear() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.data = make(map[string][]float32)
	return nil
}

// preload seeds the cache, used by the SQLite store at open.
func (m *Memory) preload(data map[string][]float32) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for k, v := range data {
		m.data[k] = v
	}
}
