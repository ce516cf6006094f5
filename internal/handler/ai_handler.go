package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rvlgh/ragserve/internal/ai"
	"github.com/rvlgh/ragserve/internal/model"
	"github.com/rvlgh/ragserve/internal/pkg/errcode"
	"github.com/rvlgh/ragserve/internal/pkg/response"
	"github.com/rvlgh/ragserve/internal/service"
)

type AIHandler struct {
	chat      *service.ChatService
	retrieval *service.RetrievalService
	documents *service.DocumentService
	topK      int
	threshold float64
}

func NewAIHandler(chat *service.ChatService, retrieval *service.RetrievalService, documents *service.DocumentService, topK int, threshold float64) *AIHandler {
	return &AIHandler{
		chat:      chat,
		retrieval: retrieval,
		documents: documents,
		topK:      topK,
		threshold: threshold,
	}
}

type chatRequest struct {
	Question string `json:"question"`
}

type sourceItem struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

func (h *AIHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	answer, err := h.chat.Answer(c.Request.Context(), getUserID(c), req.Question)
	if err != nil {
		if errors.Is(err, ai.ErrUnavailable) {
			response.Error(c, errcode.ErrAIUnavailable, "ai not configured")
			return
		}
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"answer":  answer.Answer,
		"sources": h.decorateSources(c, answer.Sources),
	})
}

func (h *AIHandler) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		response.Error(c, errcode.ErrInvalid, "query required")
		return
	}
	topK := h.topK
	if raw := c.Query("top_k"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 50 {
			topK = v
		}
	}
	userID := getUserID(c)
	chunks, err := h.retrieval.Retrieve(c.Request.Context(), userID, query, topK, h.threshold)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"items": h.decorateSources(c, chunks)})
}

// decorateSources joins retrieved chunks with their document titles. A chunk
// whose document vanished mid-request is returned without a title rather
// than dropped.
func (h *AIHandler) decorateSources(c *gin.Context, chunks []model.RetrievedChunk) []sourceItem {
	items := make([]sourceItem, 0, len(chunks))
	if len(chunks) == 0 {
		return items
	}
	seen := make(map[string]struct{}, len(chunks))
	docIDs := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if _, ok := seen[chunk.DocumentID]; ok {
			continue
		}
		seen[chunk.DocumentID] = struct{}{}
		docIDs = append(docIDs, chunk.DocumentID)
	}
	titles := make(map[string]string, len(docIDs))
	docs, err := h.documents.ListByIDs(c.Request.Context(), getUserID(c), docIDs)
	if err == nil {
		for _, doc := range docs {
			titles[doc.ID] = doc.Title
		}
	}
	for _, chunk := range chunks {
		items = append(items, sourceItem{
			ChunkID:    chunk.ID,
			DocumentID: chunk.DocumentID,
			Title:      titles[chunk.DocumentID],
			Content:    chunk.Content,
			Similarity: chunk.Similarity,
		})
	}
	return items
}
