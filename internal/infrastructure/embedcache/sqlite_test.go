package embedcache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testSugar() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeddings.sqlite")
	ctx := context.Background()

	embedder := &stubEmbedder{}
	cache, err := OpenSQLite(path, "test-model", embedder, testSugar())
	require.NoError(t, err)

	vec, err := cache.GetOrCompute(ctx, "lavender shampoo bar")
	require.NoError(t, err)
	require.NoError(t, cache.Close())
	assert.Equal(t, 1, embedder.calls)

	// A fresh process sees the stored vector and never re-embeds.
	embedder2 := &stubEmbedder{}
	reopened, err := OpenSQLite(path, "test-model", embedder2, testSugar())
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, 1, reopened.Len())
	again, err := reopened.GetOrCompute(ctx, "lavender shampoo bar")
	require.NoError(t, err)
	assert.Equal(t, vec, again)
	assert.Equal(t, 0, embedder2.calls)
}

func TestSQLiteEntriesAreModelScoped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeddings.sqlite")
	ctx := context.Background()

	cache, err := OpenSQLite(path, "model-a", &stubEmbedder{}, testSugar())
	require.NoError(t, err)
	_, err = cache.GetOrCompute(ctx, "lavender shampoo bar")
	require.NoError(t, err)
	require.NoError(t, cache.Close())

	// Same store, different model: the vector does not apply.
	other, err := OpenSQLite(path, "model-b", &stubEmbedder{}, testSugar())
	require.NoError(t, err)
	defer other.Close()
	assert.Equal(t, 0, other.Len())
}

func TestSQLiteFlushIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeddings.sqlite")
	ctx := context.Background()

	cache, err := OpenSQLite(path, "test-model", &stubEmbedder{}, testSugar())
	require.NoError(t, err)
	defer cache.Close()

	_, err = cache.GetOrCompute(ctx, "lavender shampoo bar")
	require.NoError(t, err)

	require.NoError(t, cache.Flush())
	// Nothing pending on the second flush.
	require.NoError(t, cache.Flush())
}

func TestSQLiteClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeddings.sqlite")
	ctx := context.Background()

	cache, err := OpenSQLite(path, "test-model", &stubEmbedder{}, testSugar())
	require.NoError(t, err)

	_, err = cache.GetOrCompute(ctx, "lavender shampoo bar")
	require.NoError(t, err)
	require.NoError(t, cache.Flush())
	require.NoError(t, cache.Clear())
	assert.Equal(t, 0, cache.Len())
	require.NoError(t, cache.Close())

	reopened, err := OpenSQLite(path, "test-model", &stubEmbedder{}, testSugar())
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, 0, reopened.Len())
}

func TestVectorRoundTrip(t *testing.T) {
	vec := []float32{0, 1.5, -2.25, 3.14159}
	assert.Equal(t, vec, decodeVector(encodeVector(vec)))
	assert.Empty(t, decodeVector(nil))
}
