package embedcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rvlgh/ragserve/internal/ai"
)

type countingEmbedder struct {
	batches [][]string
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	c.batches = append(c.batches, texts)
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vectors = append(vectors, []float32{float32(len(text))})
	}
	return vectors, nil
}

func (c *countingEmbedder) ModelName() string {
	return "test-model"
}

func TestLruEmbedder_CachesRepeatedTexts(t *testing.T) {
	upstream := &countingEmbedder{}
	cached := WrapLruCacheToEmbedder(upstream, 16, time.Minute)

	first, err := cached.EmbedBatch(context.Background(), []string{"hello", "world"}, ai.TaskTypeQuery)
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.Len(t, upstream.batches, 1)

	second, err := cached.EmbedBatch(context.Background(), []string{"hello", "world"}, ai.TaskTypeQuery)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Len(t, upstream.batches, 1, "fully cached batch must not reach upstream")
}

func TestLruEmbedder_PartialHitForwardsOnlyMisses(t *testing.T) {
	upstream := &countingEmbedder{}
	cached := WrapLruCacheToEmbedder(upstream, 16, time.Minute)

	_, err := cached.EmbedBatch(context.Background(), []string{"aaa"}, ai.TaskTypeQuery)
	require.NoError(t, err)

	got, err := cached.EmbedBatch(context.Background(), []string{"bbbb", "aaa", "ccccc"}, ai.TaskTypeQuery)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, []float32{4}, got[0])
	require.Equal(t, []float32{3}, got[1])
	require.Equal(t, []float32{5}, got[2])
	require.Len(t, upstream.batches, 2)
	require.Equal(t, []string{"bbbb", "ccccc"}, upstream.batches[1])
}

func TestLruEmbedder_TaskTypesCachedSeparately(t *testing.T) {
	upstream := &countingEmbedder{}
	cached := WrapLruCacheToEmbedder(upstream, 16, time.Minute)

	_, err := cached.EmbedBatch(context.Background(), []string{"same text"}, ai.TaskTypeQuery)
	require.NoError(t, err)
	_, err = cached.EmbedBatch(context.Background(), []string{"same text"}, ai.TaskTypeDocument)
	require.NoError(t, err)
	require.Len(t, upstream.batches, 2, "different task types must not share cache entries")
}

func TestWrapLruCacheToEmbedder_DisabledPassthrough(t *testing.T) {
	upstream := &countingEmbedder{}
	require.Equal(t, ai.IEmbedder(upstream), WrapLruCacheToEmbedder(upstream, 0, time.Minute))
	require.Equal(t, ai.IEmbedder(upstream), WrapLruCacheToEmbedder(upstream, 16, 0))
}
