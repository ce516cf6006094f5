package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	batches [][]string
	failOn  int // 1-based batch number to fail on, 0 disables
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	f.batches = append(f.batches, texts)
	if f.failOn > 0 && len(f.batches) == f.failOn {
		return nil, errors.New("upstream rejected request")
	}
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vectors = append(vectors, []float32{float32(len(text))})
	}
	return vectors, nil
}

func (f *fakeEmbedder) ModelName() string {
	return "fake-embed"
}

type countingPacer struct {
	calls int
}

func (p *countingPacer) Pause(ctx context.Context) error {
	p.calls++
	return nil
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 400), 100},
	}
	for _, tt := range tests {
		if got := estimateTokens(tt.text); got != tt.want {
			t.Errorf("estimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestBatcherEmbedMany_PreservesOrder(t *testing.T) {
	embedder := &fakeEmbedder{}
	batcher := NewBatcher(embedder, WithPacer(&countingPacer{}))

	texts := []string{"a", "bb", "ccc", "dddd"}
	vectors, err := batcher.EmbedMany(context.Background(), texts, TaskTypeDocument)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))
	for i, text := range texts {
		require.Equal(t, float32(len(text)), vectors[i][0])
	}
}

func TestBatcherEmbedMany_SplitsAtTokenCeiling(t *testing.T) {
	embedder := &fakeEmbedder{}
	pacer := &countingPacer{}
	// Each text estimates to 100 tokens; ceiling of 250 fits two per batch.
	batcher := NewBatcher(embedder, WithMaxBatchTokens(250), WithPacer(pacer))

	text := strings.Repeat("x", 400)
	texts := []string{text, text, text, text, text}
	vectors, err := batcher.EmbedMany(context.Background(), texts, TaskTypeDocument)
	require.NoError(t, err)
	require.Len(t, vectors, 5)
	require.Len(t, embedder.batches, 3)
	require.Len(t, embedder.batches[0], 2)
	require.Len(t, embedder.batches[1], 2)
	require.Len(t, embedder.batches[2], 1)
	// Pause runs between batches, never after the last one.
	require.Equal(t, 2, pacer.calls)
}

func TestBatcherEmbedMany_OversizedTextGetsOwnBatch(t *testing.T) {
	embedder := &fakeEmbedder{}
	batcher := NewBatcher(embedder, WithMaxBatchTokens(10), WithPacer(&countingPacer{}))

	huge := strings.Repeat("y", 400) // 100 tokens, far over the ceiling
	vectors, err := batcher.EmbedMany(context.Background(), []string{"aa", huge, "bb"}, TaskTypeDocument)
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	require.Len(t, embedder.batches, 3)
	require.Equal(t, []string{huge}, embedder.batches[1])
}

func TestBatcherEmbedMany_FailureNamesBatch(t *testing.T) {
	embedder := &fakeEmbedder{failOn: 2}
	batcher := NewBatcher(embedder, WithMaxBatchTokens(1), WithPacer(&countingPacer{}))

	_, err := batcher.EmbedMany(context.Background(), []string{"aaaa", "bbbb", "cccc"}, TaskTypeDocument)
	require.Error(t, err)
	require.Contains(t, err.Error(), "embed batch 2/3")
	// Fail fast: the third batch is never attempted.
	require.Len(t, embedder.batches, 2)
}

func TestBatcherEmbedMany_EmptyInput(t *testing.T) {
	embedder := &fakeEmbedder{}
	batcher := NewBatcher(embedder)

	vectors, err := batcher.EmbedMany(context.Background(), nil, TaskTypeDocument)
	require.NoError(t, err)
	require.Nil(t, vectors)
	require.Empty(t, embedder.batches)
}

func TestBatcherEmbedOne(t *testing.T) {
	embedder := &fakeEmbedder{}
	batcher := NewBatcher(embedder)

	vector, err := batcher.EmbedOne(context.Background(), "hello", TaskTypeQuery)
	require.NoError(t, err)
	require.Equal(t, []float32{5}, vector)
	require.Len(t, embedder.batches, 1)
}

func TestFixedDelayPacer_CancelledContext(t *testing.T) {
	pacer := NewFixedDelayPacer(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, pacer.Pause(ctx))
}
