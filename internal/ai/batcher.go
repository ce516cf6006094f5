package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const (
	// DefaultMaxBatchTokens keeps each request safely under the 300k token
	// ceiling the embedding services enforce per call.
	DefaultMaxBatchTokens = 250000
	DefaultBatchDelay     = 100 * time.Millisecond
)

// Pacer inserts a pause between consecutive upstream calls. It exists so the
// fixed delay can be swapped for token-bucket throttling without touching the
// batching logic.
type Pacer interface {
	Pause(ctx context.Context) error
}

type fixedDelayPacer struct {
	delay time.Duration
}

func (p fixedDelayPacer) Pause(ctx context.Context) error {
	if p.delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.delay):
		return nil
	}
}

func NewFixedDelayPacer(delay time.Duration) Pacer {
	return fixedDelayPacer{delay: delay}
}

// Batcher groups texts into embedding requests that respect the upstream
// token ceiling and preserves input order across batches.
type Batcher struct {
	embedder  IEmbedder
	maxTokens int
	pacer     Pacer
}

type BatcherOption func(*Batcher)

func WithMaxBatchTokens(n int) BatcherOption {
	return func(b *Batcher) {
		if n > 0 {
			b.maxTokens = n
		}
	}
}

func WithPacer(p Pacer) BatcherOption {
	return func(b *Batcher) {
		if p != nil {
			b.pacer = p
		}
	}
}

func NewBatcher(embedder IEmbedder, opts ...BatcherOption) *Batcher {
	b := &Batcher{
		embedder:  embedder,
		maxTokens: DefaultMaxBatchTokens,
		pacer:     fixedDelayPacer{delay: DefaultBatchDelay},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// estimateTokens approximates the provider's tokenizer as one token per four
// characters, rounded up. It is deliberately cheap; real token counts only
// matter within the safety margin built into the ceiling.
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// EmbedMany embeds every text and returns one vector per input, in input
// order. Batches run strictly sequentially with a pause in between; the first
// failing batch aborts the whole call, partial results are never returned.
func (b *Batcher) EmbedMany(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	batches := b.plan(texts)
	logger := logutil.GetLogger(ctx)
	logger.Debug("embedding batches planned",
		zap.Int("texts", len(texts)),
		zap.Int("batches", len(batches)),
		zap.Int("max_tokens", b.maxTokens),
	)
	results := make([][]float32, 0, len(texts))
	for i, batch := range batches {
		if i > 0 {
			if err := b.pacer.Pause(ctx); err != nil {
				return nil, err
			}
		}
		vectors, err := b.embedder.EmbedBatch(ctx, batch, taskType)
		if err != nil {
			return nil, fmt.Errorf("embed batch %d/%d (%d texts): %w", i+1, len(batches), len(batch), err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("embed batch %d/%d: got %d vectors for %d texts", i+1, len(batches), len(vectors), len(batch))
		}
		results = append(results, vectors...)
	}
	return results, nil
}

// EmbedOne is the single-text path used for query embedding.
func (b *Batcher) EmbedOne(ctx context.Context, text string, taskType string) ([]float32, error) {
	vectors, err := b.embedder.EmbedBatch(ctx, []string{text}, taskType)
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("got %d vectors for single text", len(vectors))
	}
	return vectors[0], nil
}

// plan greedily packs texts into batches whose estimated token sum stays
// under the ceiling. A single text over the ceiling still gets its own batch;
// texts are never dropped or split.
func (b *Batcher) plan(texts []string) [][]string {
	var batches [][]string
	var current []string
	running := 0
	for _, text := range texts {
		tokens := estimateTokens(text)
		if len(current) > 0 && running+tokens > b.maxTokens {
			batches = append(batches, current)
			current = nil
			running = 0
		}
		current = append(current, text)
		running += tokens
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}
