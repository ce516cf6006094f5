package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rvlgh/ragserve/internal/ai"
	"github.com/rvlgh/ragserve/internal/model"
	appErr "github.com/rvlgh/ragserve/internal/pkg/errors"
)

type fakeGenerator struct {
	prompt string
	answer string
	err    error
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func newTestChat(vectors *fakeVectorSearcher, generator ai.IGenerator) *ChatService {
	retrieval := newTestRetrieval(&fakeQueryEmbedder{}, vectors, &fakeKeywordSearcher{})
	return NewChatService(retrieval, generator, 5, 0.55, 0)
}

func TestChatAnswer_GroundsPromptInRetrievedContext(t *testing.T) {
	vectors := &fakeVectorSearcher{results: []model.RetrievedChunk{
		chunk("c1", 0.9), chunk("c2", 0.8), chunk("c3", 0.7),
	}}
	generator := &fakeGenerator{answer: "Grounded answer [1]."}
	svc := newTestChat(vectors, generator)

	got, err := svc.Answer(context.Background(), "u1", "what does chunk one say?")
	require.NoError(t, err)
	require.Equal(t, "Grounded answer [1].", got.Answer)
	require.Len(t, got.Sources, 3)
	require.Contains(t, generator.prompt, "CONTEXT:")
	require.Contains(t, generator.prompt, "[1] content c1")
	require.Contains(t, generator.prompt, "what does chunk one say?")
}

func TestChatAnswer_NoContextStillAnswers(t *testing.T) {
	generator := &fakeGenerator{answer: "I do not have notes on that."}
	svc := newTestChat(&fakeVectorSearcher{}, generator)

	got, err := svc.Answer(context.Background(), "u1", "an uncovered topic question")
	require.NoError(t, err)
	require.Empty(t, got.Sources)
	require.NotContains(t, generator.prompt, "CONTEXT:")
}

func TestChatAnswer_EmptyQuestion(t *testing.T) {
	svc := newTestChat(&fakeVectorSearcher{}, &fakeGenerator{answer: "x"})
	_, err := svc.Answer(context.Background(), "u1", "   ")
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestChatAnswer_NilGenerator(t *testing.T) {
	svc := newTestChat(&fakeVectorSearcher{}, nil)
	_, err := svc.Answer(context.Background(), "u1", "any question")
	require.ErrorIs(t, err, ai.ErrUnavailable)
}

func TestChatAnswer_GenerationFailure(t *testing.T) {
	generator := &fakeGenerator{err: errors.New("model overloaded")}
	svc := newTestChat(&fakeVectorSearcher{}, generator)
	_, err := svc.Answer(context.Background(), "u1", "a failing question")
	require.Error(t, err)
}

func TestChatAnswer_EmptyGenerationIsError(t *testing.T) {
	generator := &fakeGenerator{answer: "   "}
	svc := newTestChat(&fakeVectorSearcher{}, generator)
	_, err := svc.Answer(context.Background(), "u1", "question with blank reply")
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "empty"))
}
