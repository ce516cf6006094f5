package handler

import (
	"crypto/rand"
	"encoding/hex"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/rvlgh/ragserve/internal/filestore"
	"github.com/rvlgh/ragserve/internal/model"
	"github.com/rvlgh/ragserve/internal/pkg/errcode"
	"github.com/rvlgh/ragserve/internal/pkg/response"
	"github.com/rvlgh/ragserve/internal/service"
)

const maxUploadBytes = 2 << 20

type FileHandler struct {
	store     filestore.Store
	documents *service.DocumentService
}

func NewFileHandler(store filestore.Store, documents *service.DocumentService) *FileHandler {
	return &FileHandler{store: store, documents: documents}
}

// Upload accepts a plain-text or markdown file, keeps the original in the
// file store and creates a document from its contents.
func (h *FileHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "file is required")
		return
	}
	if file.Size > maxUploadBytes {
		response.Error(c, errcode.ErrInvalidFile, "file too large")
		return
	}
	contentType, ok := contentTypeByExtension(file.Filename)
	if !ok {
		response.Error(c, errcode.ErrInvalidFile, "only .md and .txt files are supported")
		return
	}
	opened, err := file.Open()
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to open file")
		return
	}
	defer opened.Close()

	raw, err := io.ReadAll(io.LimitReader(opened, maxUploadBytes+1))
	if err != nil || len(raw) > maxUploadBytes {
		response.Error(c, errcode.ErrInvalidFile, "failed to read file")
		return
	}
	if !utf8.Valid(raw) {
		response.Error(c, errcode.ErrInvalidFile, "file must be utf-8 text")
		return
	}
	if _, err := opened.Seek(0, io.SeekStart); err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to read file")
		return
	}

	key := buildFileKey(getUserID(c), file.Filename)
	if err := h.store.Save(c.Request.Context(), key, opened, file.Size); err != nil {
		response.Error(c, errcode.ErrUploadFailed, "failed to store file")
		return
	}

	title := strings.TrimSuffix(filepath.Base(file.Filename), filepath.Ext(file.Filename))
	doc, indexed, err := h.documents.Create(c.Request.Context(), getUserID(c), title, string(raw), contentType, key)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, toDocumentResponse(doc, indexed, false))
}

func contentTypeByExtension(name string) (string, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown":
		return model.ContentTypeMarkdown, true
	case ".txt", ".text":
		return model.ContentTypeText, true
	default:
		return "", false
	}
}

func buildFileKey(userID, filename string) string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	ext := strings.ToLower(filepath.Ext(filename))
	return userID + "-" + hex.EncodeToString(buf) + ext
}
