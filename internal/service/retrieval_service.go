package service

import (
	"context"
	"sort"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/rvlgh/ragserve/internal/ai"
	"github.com/rvlgh/ragserve/internal/model"
	appErr "github.com/rvlgh/ragserve/internal/pkg/errors"
)

const (
	// Fewer vector hits than this triggers the keyword fallback channel.
	defaultSparsityFloor = 3
	// Keyword matches carry no graded score; they all get this flat value.
	defaultKeywordSimilarity = 0.5

	maxFallbackKeywords = 5
	minKeywordLength    = 4
)

type QueryEmbedder interface {
	EmbedOne(ctx context.Context, text string, taskType string) ([]float32, error)
}

type VectorSearcher interface {
	SearchBySimilarity(ctx context.Context, userID string, embedding []float32, threshold float64, limit int) ([]model.RetrievedChunk, error)
}

type KeywordSearcher interface {
	SearchByKeywords(ctx context.Context, userID string, keywords []string, limit int) ([]model.RetrievedChunk, error)
}

type RetrievalOptions struct {
	SparsityFloor     int
	KeywordSimilarity float64
}

// RetrievalService answers queries by vector similarity, with a lexical
// safety net for queries the vector channel under-returns on. Dense
// embeddings under-perform on short or morphologically rich queries at the
// usual thresholds, so the fallback fires exactly when vector results look
// sparse rather than on every call.
type RetrievalService struct {
	embedder QueryEmbedder
	vectors  VectorSearcher
	keywords KeywordSearcher
	opts     RetrievalOptions
}

func NewRetrievalService(embedder QueryEmbedder, vectors VectorSearcher, keywords KeywordSearcher, opts RetrievalOptions) *RetrievalService {
	if opts.SparsityFloor <= 0 {
		opts.SparsityFloor = defaultSparsityFloor
	}
	if opts.KeywordSimilarity <= 0 {
		opts.KeywordSimilarity = defaultKeywordSimilarity
	}
	return &RetrievalService{
		embedder: embedder,
		vectors:  vectors,
		keywords: keywords,
		opts:     opts,
	}
}

// Retrieve returns at most topK chunks ranked by similarity descending.
// Collaborator failures degrade to fewer or zero results; only a bad topK is
// an error. An unretrievable query yields an empty set, never a failure.
func (s *RetrievalService) Retrieve(ctx context.Context, userID, query string, topK int, threshold float64) ([]model.RetrievedChunk, error) {
	if topK <= 0 {
		return nil, appErr.ErrInvalid
	}
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", userID))

	queryEmb, err := s.embedder.EmbedOne(ctx, query, ai.TaskTypeQuery)
	if err != nil {
		logger.Error("failed to embed query, returning empty context", zap.Error(err))
		return nil, nil
	}

	vector, err := s.vectors.SearchBySimilarity(ctx, userID, queryEmb, threshold, topK)
	if err != nil {
		logger.Warn("vector search failed, continuing without it", zap.Error(err))
		vector = nil
	}

	var keyword []model.RetrievedChunk
	if len(vector) < s.opts.SparsityFloor {
		if kws := fallbackKeywords(query); len(kws) > 0 {
			keyword, err = s.keywords.SearchByKeywords(ctx, userID, kws, topK)
			if err != nil {
				logger.Warn("keyword search failed, continuing without it", zap.Error(err))
				keyword = nil
			}
			logger.Debug("keyword fallback",
				zap.Strings("keywords", kws),
				zap.Int("vector_hits", len(vector)),
				zap.Int("keyword_hits", len(keyword)),
			)
		}
	}

	merged := s.merge(vector, keyword)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Similarity > merged[j].Similarity
	})
	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged, nil
}

// merge unions both channels and drops duplicate chunk ids. A graded vector
// score always wins over the flat keyword default for the same chunk.
func (s *RetrievalService) merge(vector, keyword []model.RetrievedChunk) []model.RetrievedChunk {
	merged := make([]model.RetrievedChunk, 0, len(vector)+len(keyword))
	seen := make(map[string]struct{}, len(vector)+len(keyword))
	for _, item := range vector {
		if _, ok := seen[item.ID]; ok {
			continue
		}
		seen[item.ID] = struct{}{}
		merged = append(merged, item)
	}
	for _, item := range keyword {
		if _, ok := seen[item.ID]; ok {
			continue
		}
		seen[item.ID] = struct{}{}
		item.Similarity = s.opts.KeywordSimilarity
		merged = append(merged, item)
	}
	return merged
}

// fallbackKeywords derives lexical search terms from a query: lowercase,
// whitespace-split, tokens longer than three characters, at most the first
// five survivors.
func fallbackKeywords(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	keywords := make([]string, 0, maxFallbackKeywords)
	for _, field := range fields {
		if len(field) < minKeywordLength {
			continue
		}
		keywords = append(keywords, field)
		if len(keywords) == maxFallbackKeywords {
			break
		}
	}
	return keywords
}
