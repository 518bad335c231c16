package embedcache

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/auenatural/pricelens/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS embeddings (
	text_key   TEXT NOT NULL,
	model      TEXT NOT NULL,
	vector     BLOB NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (text_key, model)
);
`

// SQLite is an embedding cache persisted to a SQLite file between runs.
// Lifecycle: every stored vector for the configured model is loaded into
// memory at open, new entries accumulate in a pending buffer, and Flush
// writes them back in one transaction at run end.
type SQLite struct {
	*Memory

	db     *sql.DB
	model  string
	logger *zap.SugaredLogger

	pendingMu sync.Mutex
	pending   map[string][]float32
}

// OpenSQLite opens (creating if needed) the cache store at path. An open or
// load failure wraps ErrCacheUnavailable; callers fall back to a memory-only
// cache for the invocation.
func OpenSQLite(path, model string, embedder domain.Embedder, logger *zap.SugaredLogger) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create cache dir: %v", domain.ErrCacheUnavailable, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrCacheUnavailable, path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: init schema: %v", domain.ErrCacheUnavailable, err)
	}

	s := &SQLite{
		Memory:  NewMemory(embedder),
		db:      db,
		model:   model,
		logger:  logger,
		pending: make(map[string][]float32),
	}

	loaded, err := s.loadAll()
	if err != nil {
		db.Close()
		return nil, err
	}
	logger.Infow("embedding cache loaded", "path", path, "model", model, "entries", loaded)
	return s, nil
}

// GetOrCompute delegates to the in-memory layer and tracks fresh entries for
// the next Flush.
func (s *SQLite) GetOrCompute(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)

	s.Memory.mutex.RLock()
	_, known := s.Memory.data[key]
	s.Memory.mutex.RUnlock()

	vec, err := s.Memory.GetOrCompute(ctx, text)
	if err != nil {
		return nil, err
	}

	if !known {
		s.pendingMu.Lock()
		s.pending[key] = vec
		s.pendingMu.Unlock()
	}
	return vec, nil
}

// Flush persists entries added since open. On failure the entries stay
// pending and the error wraps ErrCacheUnavailable; the in-memory cache is
// unaffected.
func (s *SQLite) Flush() error {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	if len(s.pending) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin: %v", domain.ErrCacheUnavailable, err)
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO embeddings (text_key, model, vector) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("%w: prepare: %v", domain.ErrCacheUnavailable, err)
	}
	defer stmt.Close()

	for key, vec := range s.pending {
		if _, err := stmt.Exec(key, s.model, encodeVector(vec)); err != nil {
			tx.Rollback()
			return fmt.Errorf("%w: insert: %v", domain.ErrCacheUnavailable, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", domain.ErrCacheUnavailable, err)
	}

	s.logger.Infow("embedding cache flushed", "newEntries", len(s.pending))
	s.pending = make(map[string][]float32)
	return nil
}

// Clear drops every cached vector, in memory and in the store.
func (s *SQLite) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM embeddings WHERE model = ?`, s.model); err != nil {
		return fmt.Errorf("%w: clear: %v", domain.ErrCacheUnavailable, err)
	}
	s.pendingMu.Lock()
	s.pending = make(map[string][]float32)
	s.pendingMu.Unlock()
	return s.Memory.Clear()
}

// Close flushes pending entries and closes the store.
func (s *SQLite) Close() error {
	flushErr := s.Flush()
	if err := s.db.Close(); err != nil {
		return err
	}
	return flushErr
}

func (s *SQLite) loadAll() (int, error) {
	rows, err := s.db.Query(`SELECT text_key, vector FROM embeddings WHERE model = ?`, s.model)
	if err != nil {
		return 0, fmt.Errorf("%w: load: %v", domain.ErrCacheUnavailable, err)
	}
	defer rows.Close()

	data := make(map[string][]float32)
	for rows.Next() {
		var key string
		var blob []byte
		if err := rows.Scan(&key, &blob); err != nil {
			return 0, fmt.Errorf("%w: scan: %v", domain.ErrCacheUnavailable, err)
		}
		data[key] = decodeVector(blob)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("%w: iterate: %v", domain.ErrCacheUnavailable, err)
	}

	s.Memory.preload(data)
	return len(data), nil
}

// Vectors are stored as little-endian float32 sequences.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(blob []byte) []float32 {
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec
}
