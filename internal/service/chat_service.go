package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/rvlgh/ragserve/internal/ai"
	"github.com/rvlgh/ragserve/internal/model"
	appErr "github.com/rvlgh/ragserve/internal/pkg/errors"
)

type ChatService struct {
	retrieval *RetrievalService
	generator ai.IGenerator
	topK      int
	threshold float64
	timeout   int
}

func NewChatService(retrieval *RetrievalService, generator ai.IGenerator, topK int, threshold float64, timeoutSeconds int) *ChatService {
	return &ChatService{
		retrieval: retrieval,
		generator: generator,
		topK:      topK,
		threshold: threshold,
		timeout:   timeoutSeconds,
	}
}

// Answer retrieves context for the question and asks the generator for a
// grounded reply. Retrieval trouble silently shrinks the context; only the
// generation call itself can fail the request.
func (s *ChatService) Answer(ctx context.Context, userID, question string) (*model.ChatAnswer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, appErr.ErrInvalid
	}
	if s.generator == nil {
		return nil, ai.ErrUnavailable
	}
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", userID))

	sources, err := s.retrieval.Retrieve(ctx, userID, question, s.topK, s.threshold)
	if err != nil {
		return nil, err
	}
	contextBlock := BuildContext(sources)
	prompt := buildAnswerPrompt(question, contextBlock)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.timeout)*time.Second)
		defer cancel()
	}
	answer, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		logger.Error("generation failed", zap.Error(err))
		return nil, err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, fmt.Errorf("empty ai response")
	}
	logger.Info("chat answered", zap.Int("sources", len(sources)))
	return &model.ChatAnswer{Answer: answer, Sources: sources}, nil
}

func buildAnswerPrompt(question, contextBlock string) string {
	if contextBlock == "" {
		return fmt.Sprintf(`You are a helpful assistant.
Answer the question below as well as you can.
- Use the same language as the question.
- If you do not know the answer, say so.

QUESTION:
%s`, question)
	}
	return fmt.Sprintf(`You are a helpful assistant.
Answer the question below using the numbered context passages.
- Use the same language as the question.
- Prefer information from the context; cite passage numbers like [1] when you use them.
- If the context does not contain the answer, say so.

CONTEXT:
%s

QUESTION:
%s`, contextBlock, question)
}
