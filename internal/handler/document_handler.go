package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rvlgh/ragserve/internal/model"
	"github.com/rvlgh/ragserve/internal/pkg/errcode"
	"github.com/rvlgh/ragserve/internal/pkg/response"
	"github.com/rvlgh/ragserve/internal/service"
)

type DocumentHandler struct {
	documents *service.DocumentService
}

func NewDocumentHandler(documents *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

type documentRequest struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	ContentType string `json:"content_type"`
}

type documentResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Content     string `json:"content,omitempty"`
	ContentType string `json:"content_type"`
	FileKey     string `json:"file_key,omitempty"`
	Indexed     bool   `json:"indexed"`
	Ctime       int64  `json:"ctime"`
	Mtime       int64  `json:"mtime"`
}

func toDocumentResponse(doc *model.Document, indexed, withContent bool) documentResponse {
	rsp := documentResponse{
		ID:          doc.ID,
		Title:       doc.Title,
		ContentType: doc.ContentType,
		FileKey:     doc.FileKey,
		Indexed:     indexed,
		Ctime:       doc.Ctime,
		Mtime:       doc.Mtime,
	}
	if withContent {
		rsp.Content = doc.Content
	}
	return rsp
}

func (h *DocumentHandler) Create(c *gin.Context) {
	var req documentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	doc, indexed, err := h.documents.Create(c.Request.Context(), getUserID(c), req.Title, req.Content, req.ContentType, "")
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, toDocumentResponse(doc, indexed, true))
}

func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.documents.Get(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, toDocumentResponse(doc, true, true))
}

func (h *DocumentHandler) List(c *gin.Context) {
	limit, _ := strconv.ParseUint(c.DefaultQuery("limit", "50"), 10, 32)
	offset, _ := strconv.ParseUint(c.DefaultQuery("offset", "0"), 10, 32)
	docs, err := h.documents.List(c.Request.Context(), getUserID(c), uint(limit), uint(offset))
	if err != nil {
		handleError(c, err)
		return
	}
	items := make([]documentResponse, 0, len(docs))
	for _, doc := range docs {
		items = append(items, toDocumentResponse(doc, true, false))
	}
	response.Success(c, gin.H{"items": items})
}

func (h *DocumentHandler) Update(c *gin.Context) {
	var req documentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	doc, indexed, err := h.documents.Update(c.Request.Context(), getUserID(c), c.Param("id"), req.Title, req.Content, req.ContentType)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, toDocumentResponse(doc, indexed, true))
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.documents.Delete(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{})
}
