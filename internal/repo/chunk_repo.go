package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"

	"github.com/rvlgh/ragserve/internal/model"
)

// ChunkRepo stores per-document chunk rows with their pgvector embeddings and
// serves both retrieval channels: graded cosine search and keyword matching.
type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// ReplaceDocumentChunks swaps a document's chunk rows atomically so a reader
// never observes a half-indexed document.
func (r *ChunkRepo) ReplaceDocumentChunks(ctx context.Context, records []*model.ChunkRecord, docID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, docID); err != nil {
		return err
	}
	const insert = `
		INSERT INTO document_chunks (id, document_id, user_id, chunk_index, content, embedding, mtime)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, rec := range records {
		if _, err := tx.ExecContext(ctx, insert,
			rec.ID,
			rec.DocumentID,
			rec.UserID,
			rec.ChunkIndex,
			rec.Content,
			pgvector.NewVector(rec.Embedding),
			rec.Mtime,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *ChunkRepo) DeleteByDocument(ctx context.Context, docID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, docID)
	return err
}

// SearchBySimilarity returns up to limit chunks whose cosine similarity to
// the query embedding exceeds threshold, best first. Similarity is
// 1 - cosine distance as computed by pgvector's <=> operator.
func (r *ChunkRepo) SearchBySimilarity(ctx context.Context, userID string, embedding []float32, threshold float64, limit int) ([]model.RetrievedChunk, error) {
	const query = `
		SELECT id, document_id, content, 1 - (embedding <=> $1) AS similarity
		FROM document_chunks
		WHERE user_id = $2 AND 1 - (embedding <=> $1) > $3
		ORDER BY embedding <=> $1
		LIMIT $4
	`
	rows, err := r.db.QueryContext(ctx, query, pgvector.NewVector(embedding), userID, threshold, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.RetrievedChunk
	for rows.Next() {
		var item model.RetrievedChunk
		if err := rows.Scan(&item.ID, &item.DocumentID, &item.Content, &item.Similarity); err != nil {
			return nil, err
		}
		results = append(results, item)
	}
	return results, rows.Err()
}

// SearchByKeywords returns chunks whose content contains any of the keywords,
// case-insensitively. No graded score is available on this path; callers
// assign one.
func (r *ChunkRepo) SearchByKeywords(ctx context.Context, userID string, keywords []string, limit int) ([]model.RetrievedChunk, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	conds := make([]string, 0, len(keywords))
	args := make([]interface{}, 0, len(keywords)+2)
	args = append(args, userID)
	for _, kw := range keywords {
		args = append(args, "%"+escapeLike(kw)+"%")
		conds = append(conds, fmt.Sprintf("content ILIKE $%d", len(args)))
	}
	args = append(args, limit)
	query := fmt.Sprintf(`
		SELECT id, document_id, content
		FROM document_chunks
		WHERE user_id = $1 AND (%s)
		LIMIT $%d
	`, strings.Join(conds, " OR "), len(args))
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.RetrievedChunk
	for rows.Next() {
		var item model.RetrievedChunk
		if err := rows.Scan(&item.ID, &item.DocumentID, &item.Content); err != nil {
			return nil, err
		}
		results = append(results, item)
	}
	return results, rows.Err()
}

// ListStaleDocuments finds documents with no chunk rows, or whose content
// changed after the last indexing pass.
func (r *ChunkRepo) ListStaleDocuments(ctx context.Context, limit int) ([]*model.Document, error) {
	const query = `
		SELECT d.id, d.user_id, d.title, d.content, d.content_type, d.file_key, d.state, d.ctime, d.mtime
		FROM documents d
		LEFT JOIN (
			SELECT document_id, MAX(mtime) AS indexed_mtime
			FROM document_chunks
			GROUP BY document_id
		) c ON d.id = c.document_id
		WHERE d.state = $1 AND (c.document_id IS NULL OR d.mtime > c.indexed_mtime)
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, DocumentStateNormal, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []*model.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
