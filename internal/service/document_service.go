package service

import (
	"context"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/rvlgh/ragserve/internal/model"
	appErr "github.com/rvlgh/ragserve/internal/pkg/errors"
	"github.com/rvlgh/ragserve/internal/repo"
)

const maxDocumentBytes = 2 << 20

type DocumentService struct {
	docs   *repo.DocumentRepo
	chunks *repo.ChunkRepo
	ingest *IngestService
}

func NewDocumentService(docs *repo.DocumentRepo, chunks *repo.ChunkRepo, ingest *IngestService) *DocumentService {
	return &DocumentService{
		docs:   docs,
		chunks: chunks,
		ingest: ingest,
	}
}

// Create stores the document and indexes it in the same request. Indexing
// failures do not roll back the stored document; the backfill job retries
// them, and the caller learns indexing is still pending via the flag.
func (s *DocumentService) Create(ctx context.Context, userID, title, content, contentType, fileKey string) (*model.Document, bool, error) {
	title = strings.TrimSpace(title)
	if title == "" || strings.TrimSpace(content) == "" {
		return nil, false, appErr.ErrInvalid
	}
	if len(content) > maxDocumentBytes {
		return nil, false, appErr.ErrInvalid
	}
	contentType, err := normalizeContentType(contentType)
	if err != nil {
		return nil, false, err
	}
	now := time.Now().UnixMilli()
	doc := &model.Document{
		ID:          newID(),
		UserID:      userID,
		Title:       title,
		Content:     content,
		ContentType: contentType,
		FileKey:     fileKey,
		State:       repo.DocumentStateNormal,
		Ctime:       now,
		Mtime:       now,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, false, err
	}
	indexed := s.tryIndex(ctx, doc)
	return doc, indexed, nil
}

func (s *DocumentService) Update(ctx context.Context, userID, docID, title, content, contentType string) (*model.Document, bool, error) {
	title = strings.TrimSpace(title)
	if title == "" || strings.TrimSpace(content) == "" {
		return nil, false, appErr.ErrInvalid
	}
	if len(content) > maxDocumentBytes {
		return nil, false, appErr.ErrInvalid
	}
	contentType, err := normalizeContentType(contentType)
	if err != nil {
		return nil, false, err
	}
	doc, err := s.docs.Get(ctx, userID, docID)
	if err != nil {
		return nil, false, err
	}
	doc.Title = title
	doc.Content = content
	doc.ContentType = contentType
	doc.Mtime = time.Now().UnixMilli()
	if err := s.docs.Update(ctx, doc); err != nil {
		return nil, false, err
	}
	indexed := s.tryIndex(ctx, doc)
	return doc, indexed, nil
}

func (s *DocumentService) Get(ctx context.Context, userID, docID string) (*model.Document, error) {
	return s.docs.Get(ctx, userID, docID)
}

func (s *DocumentService) List(ctx context.Context, userID string, limit, offset uint) ([]*model.Document, error) {
	if limit == 0 || limit > 200 {
		limit = 50
	}
	return s.docs.List(ctx, userID, limit, offset)
}

func (s *DocumentService) ListByIDs(ctx context.Context, userID string, ids []string) ([]*model.Document, error) {
	return s.docs.ListByIDs(ctx, userID, ids)
}

func (s *DocumentService) Delete(ctx context.Context, userID, docID string) error {
	if err := s.docs.Delete(ctx, userID, docID, time.Now().UnixMilli()); err != nil {
		return err
	}
	if err := s.chunks.DeleteByDocument(ctx, docID); err != nil {
		logutil.GetLogger(ctx).Warn("failed to delete chunks for document",
			zap.String("doc_id", docID), zap.Error(err))
	}
	return nil
}

func (s *DocumentService) tryIndex(ctx context.Context, doc *model.Document) bool {
	if s.ingest == nil {
		return false
	}
	if err := s.ingest.Reindex(ctx, doc); err != nil {
		logutil.GetLogger(ctx).Error("document indexing failed, left for backfill",
			zap.String("doc_id", doc.ID), zap.Error(err))
		return false
	}
	return true
}

func normalizeContentType(contentType string) (string, error) {
	switch strings.TrimSpace(strings.ToLower(contentType)) {
	case "", model.ContentTypeText:
		return model.ContentTypeText, nil
	case model.ContentTypeMarkdown:
		return model.ContentTypeMarkdown, nil
	default:
		return "", appErr.ErrInvalid
	}
}
