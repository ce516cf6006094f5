package service

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rvlgh/ragserve/internal/model"
	appErr "github.com/rvlgh/ragserve/internal/pkg/errors"
)

type fakeQueryEmbedder struct {
	err   error
	calls int
}

func (f *fakeQueryEmbedder) EmbedOne(ctx context.Context, text string, taskType string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeVectorSearcher struct {
	results []model.RetrievedChunk
	err     error
	calls   int
}

func (f *fakeVectorSearcher) SearchBySimilarity(ctx context.Context, userID string, embedding []float32, threshold float64, limit int) ([]model.RetrievedChunk, error) {
	f.calls++
	return f.results, f.err
}

type fakeKeywordSearcher struct {
	results  []model.RetrievedChunk
	err      error
	calls    int
	keywords []string
}

func (f *fakeKeywordSearcher) SearchByKeywords(ctx context.Context, userID string, keywords []string, limit int) ([]model.RetrievedChunk, error) {
	f.calls++
	f.keywords = keywords
	return f.results, f.err
}

func chunk(id string, similarity float64) model.RetrievedChunk {
	return model.RetrievedChunk{ID: id, DocumentID: "doc-" + id, Content: "content " + id, Similarity: similarity}
}

func newTestRetrieval(embedder QueryEmbedder, vectors VectorSearcher, keywords KeywordSearcher) *RetrievalService {
	return NewRetrievalService(embedder, vectors, keywords, RetrievalOptions{})
}

func TestRetrieve_InvalidTopK(t *testing.T) {
	svc := newTestRetrieval(&fakeQueryEmbedder{}, &fakeVectorSearcher{}, &fakeKeywordSearcher{})
	_, err := svc.Retrieve(context.Background(), "u1", "query", 0, 0.55)
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestRetrieve_EmbedFailureYieldsEmptyNotError(t *testing.T) {
	embedder := &fakeQueryEmbedder{err: errors.New("provider down")}
	vectors := &fakeVectorSearcher{}
	keywords := &fakeKeywordSearcher{}
	svc := newTestRetrieval(embedder, vectors, keywords)

	got, err := svc.Retrieve(context.Background(), "u1", "some query", 5, 0.55)
	require.NoError(t, err)
	require.Empty(t, got)
	require.Zero(t, vectors.calls)
	require.Zero(t, keywords.calls)
}

func TestRetrieve_DenseResultsSkipFallback(t *testing.T) {
	vectors := &fakeVectorSearcher{results: []model.RetrievedChunk{
		chunk("c1", 0.9), chunk("c2", 0.8), chunk("c3", 0.7),
	}}
	keywords := &fakeKeywordSearcher{}
	svc := newTestRetrieval(&fakeQueryEmbedder{}, vectors, keywords)

	got, err := svc.Retrieve(context.Background(), "u1", "well covered query", 5, 0.55)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Zero(t, keywords.calls, "fallback must not fire with enough vector hits")
}

func TestRetrieve_SparseResultsTriggerFallback(t *testing.T) {
	vectors := &fakeVectorSearcher{results: []model.RetrievedChunk{chunk("c1", 0.9)}}
	keywords := &fakeKeywordSearcher{results: []model.RetrievedChunk{chunk("c2", 0)}}
	svc := newTestRetrieval(&fakeQueryEmbedder{}, vectors, keywords)

	got, err := svc.Retrieve(context.Background(), "u1", "kubernetes deployment rollback", 5, 0.55)
	require.NoError(t, err)
	require.Equal(t, 1, keywords.calls)
	require.Equal(t, []string{"kubernetes", "deployment", "rollback"}, keywords.keywords)
	require.Len(t, got, 2)
	require.Equal(t, "c1", got[0].ID)
	require.Equal(t, 0.9, got[0].Similarity)
	require.Equal(t, "c2", got[1].ID)
	require.Equal(t, 0.5, got[1].Similarity, "keyword matches carry the flat score")
}

func TestRetrieve_DedupKeepsVectorScore(t *testing.T) {
	vectors := &fakeVectorSearcher{results: []model.RetrievedChunk{chunk("c1", 0.8)}}
	keywords := &fakeKeywordSearcher{results: []model.RetrievedChunk{chunk("c1", 0), chunk("c2", 0)}}
	svc := newTestRetrieval(&fakeQueryEmbedder{}, vectors, keywords)

	got, err := svc.Retrieve(context.Background(), "u1", "duplicate chunk query", 5, 0.55)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "c1", got[0].ID)
	require.Equal(t, 0.8, got[0].Similarity, "graded vector score wins over the flat keyword value")
	require.Equal(t, "c2", got[1].ID)
}

func TestRetrieve_ShortTokensProduceNoFallback(t *testing.T) {
	vectors := &fakeVectorSearcher{}
	keywords := &fakeKeywordSearcher{}
	svc := newTestRetrieval(&fakeQueryEmbedder{}, vectors, keywords)

	got, err := svc.Retrieve(context.Background(), "u1", "a is it", 5, 0.55)
	require.NoError(t, err)
	require.Empty(t, got)
	require.Zero(t, keywords.calls, "queries with only short tokens skip the keyword channel")
}

func TestRetrieve_VectorErrorDegradesToKeywords(t *testing.T) {
	vectors := &fakeVectorSearcher{err: errors.New("db timeout")}
	keywords := &fakeKeywordSearcher{results: []model.RetrievedChunk{chunk("c9", 0)}}
	svc := newTestRetrieval(&fakeQueryEmbedder{}, vectors, keywords)

	got, err := svc.Retrieve(context.Background(), "u1", "resilient query text", 5, 0.55)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "c9", got[0].ID)
}

func TestRetrieve_TruncatesToTopK(t *testing.T) {
	vectors := &fakeVectorSearcher{results: []model.RetrievedChunk{
		chunk("c1", 0.9), chunk("c2", 0.85), chunk("c3", 0.8), chunk("c4", 0.75),
	}}
	svc := newTestRetrieval(&fakeQueryEmbedder{}, vectors, &fakeKeywordSearcher{})

	got, err := svc.Retrieve(context.Background(), "u1", "broad query", 2, 0.55)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "c1", got[0].ID)
	require.Equal(t, "c2", got[1].ID)
}

func TestRetrieve_SortedBySimilarityDescending(t *testing.T) {
	vectors := &fakeVectorSearcher{results: []model.RetrievedChunk{chunk("low", 0.6), chunk("high", 0.95)}}
	keywords := &fakeKeywordSearcher{results: []model.RetrievedChunk{chunk("kw", 0)}}
	svc := newTestRetrieval(&fakeQueryEmbedder{}, vectors, keywords)

	got, err := svc.Retrieve(context.Background(), "u1", "mixed score query", 5, 0.55)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, []string{"high", "low", "kw"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestFallbackKeywords(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{
			name:  "lowercases and filters short tokens",
			query: "How DO Kubernetes Pods restart",
			want:  []string{"kubernetes", "pods", "restart"},
		},
		{
			name:  "caps at five keywords",
			query: "alpha beta gamma delta epsilon zeta theta",
			want:  []string{"alpha", "beta", "gamma", "delta", "epsilon"},
		},
		{
			name:  "only short tokens",
			query: "a to is it on",
			want:  []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fallbackKeywords(tt.query)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("fallbackKeywords(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}
