package usecase

import (
	"context"
	"hash/fnv"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/auenatural/pricelens/config"
	"github.com/auenatural/pricelens/internal/domain"
)

func testMatchingConfig() config.MatchingConfig {
	return config.MatchingConfig{
		MinSimilarity:      65,
		LowThreshold:       65,
		MediumThreshold:    75,
		HighThreshold:      88,
		LexicalWeight:      0.6,
		SemanticWeight:     0.4,
		LexicalRatioWeight: 0.6,
		SizeTolerance:      0.20,
		SizeExactEpsilon:   0.05,
		BrandBonus:         20,
		BrandPenalty:       25,
		SubcategoryBonus:   10,
		SubcategoryPenalty: 15,
		Workers:            1,
	}
}

func testRecoveryConfig() config.RecoveryConfig {
	return config.RecoveryConfig{
		Enabled:          true,
		MinSimilarity:    60,
		BrandBonus:       25,
		BrandPenalty:     15,
		SizeTolerance:    0.10,
		NearDupThreshold: 95,
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Matching: testMatchingConfig(),
		Recovery: testRecoveryConfig(),
		Embedding: config.EmbeddingConfig{
			Model:          "test-embedder",
			BatchSize:      50,
			RequestsPerSec: 100,
		},
		Normalize: config.NormalizeConfig{
			KnownBrands:   []string{"Faith in Nature", "Ethique", "Garnier"},
			GenericTitles: []string{"shampoo bar", "body butter", "face serum"},
		},
	}
}

// fakeCache is an in-memory EmbeddingCache whose vectors are a deterministic
// hash of the key, so identical titles always agree and distinct titles are
// mostly dissimilar.
type fakeCache struct {
	data   map[string][]float32
	hits   atomic.Int64
	misses atomic.Int64
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]float32)}
}

func (f *fakeCache) GetOrCompute(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := f.data[text]; ok {
		f.hits.Add(1)
		return vec, nil
	}
	f.misses.Add(1)
	vec := hashVector(text)
	f.data[text] = vec
	return vec, nil
}

func (f *fakeCache) Len() int              { return len(f.data) }
func (f *fakeCache) Stats() (int64, int64) { return f.hits.Load(), f.misses.Load() }
func (f *fakeCache) Flush() error          { return nil }
func (f *fakeCache) Clear() error          { f.data = map[string][]float32{}; return nil }

// failingCache simulates an unavailable embedding backend.
type failingCache struct{}

func (failingCache) GetOrCompute(ctx context.Context, text string) ([]float32, error) {
	return nil, domain.ErrEmbeddingFailure
}
func (failingCache) Len() int              { return 0 }
func (failingCache) Stats() (int64, int64) { return 0, 0 }
func (failingCache) Flush() error          { return nil }
func (failingCache) Clear() error          { return nil }

func hashVector(text string) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()
	vec := make([]float32, 8)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed>>32)) / float32(1<<31)
	}
	return vec
}

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func record(id, retailer, title, brand, category string, size float64, unit string) domain.ProductRecord {
	return domain.ProductRecord{
		SourceID:   id,
		Retailer:   retailer,
		RawTitle:   title,
		CleanTitle: CleanTitle(title),
		Brand:      brand,
		Category:   category,
		SizeValue:  size,
		SizeUnit:   unit,
		Price:      9.99,
		Currency:   "GBP",
	}
}
