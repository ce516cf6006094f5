package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/rvlgh/ragserve/internal/repo"
	"github.com/rvlgh/ragserve/internal/service"
)

// EmbeddingBackfillJob re-indexes documents whose chunks are missing or
// older than the document itself, typically because indexing failed during
// the original write request.
type EmbeddingBackfillJob struct {
	chunks *repo.ChunkRepo
	ingest *service.IngestService
	limit  int
}

func NewEmbeddingBackfillJob(chunks *repo.ChunkRepo, ingest *service.IngestService, limit int) *EmbeddingBackfillJob {
	return &EmbeddingBackfillJob{chunks: chunks, ingest: ingest, limit: limit}
}

func (j *EmbeddingBackfillJob) Name() string {
	return "embedding_backfill"
}

func (j *EmbeddingBackfillJob) Run(ctx context.Context) error {
	if j.chunks == nil || j.ingest == nil {
		return nil
	}
	limit := j.limit
	if limit <= 0 {
		limit = 20
	}
	docs, err := j.chunks.ListStaleDocuments(ctx, limit)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}
	logger := logutil.GetLogger(ctx)
	var failed int
	for _, doc := range docs {
		if err := j.ingest.Reindex(ctx, doc); err != nil {
			failed++
			logger.Error("backfill indexing failed",
				zap.String("doc_id", doc.ID), zap.Error(err))
			continue
		}
		logger.Info("backfill indexed document", zap.String("doc_id", doc.ID))
	}
	logger.Info("backfill pass done",
		zap.Int("total", len(docs)), zap.Int("failed", failed))
	return nil
}
