package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"go.uber.org/zap"

	"github.com/rvlgh/ragserve/internal/ai"
	"github.com/rvlgh/ragserve/internal/model"
)

type BatchEmbedder interface {
	EmbedMany(ctx context.Context, texts []string, taskType string) ([][]float32, error)
}

type ChunkStore interface {
	ReplaceDocumentChunks(ctx context.Context, records []*model.ChunkRecord, docID string) error
	DeleteByDocument(ctx context.Context, docID string) error
}

// IngestService turns a document into chunk rows with embeddings: normalize,
// segment, batch-embed, replace. Chunk-to-vector alignment is positional, so
// any embedding failure aborts the whole document instead of skipping parts.
type IngestService struct {
	chunker  *ai.Chunker
	embedder BatchEmbedder
	chunks   ChunkStore
}

func NewIngestService(chunker *ai.Chunker, embedder BatchEmbedder, chunks ChunkStore) *IngestService {
	return &IngestService{
		chunker:  chunker,
		embedder: embedder,
		chunks:   chunks,
	}
}

func (s *IngestService) Reindex(ctx context.Context, doc *model.Document) error {
	logger := logutil.GetLogger(ctx).With(zap.String("doc_id", doc.ID))

	content := doc.Content
	if doc.ContentType == model.ContentTypeMarkdown {
		content = markdownToPlainText(content)
	}
	pieces := s.chunker.Split(content)
	if len(pieces) == 0 {
		logger.Info("document has no indexable text, clearing chunks")
		return s.chunks.DeleteByDocument(ctx, doc.ID)
	}

	texts := make([]string, 0, len(pieces))
	for _, piece := range pieces {
		texts = append(texts, piece.Content)
	}
	vectors, err := s.embedder.EmbedMany(ctx, texts, ai.TaskTypeDocument)
	if err != nil {
		return fmt.Errorf("index document %s: %w", doc.ID, err)
	}

	records := make([]*model.ChunkRecord, 0, len(pieces))
	for i, piece := range pieces {
		records = append(records, &model.ChunkRecord{
			ID:         newID(),
			DocumentID: doc.ID,
			UserID:     doc.UserID,
			ChunkIndex: piece.Index,
			Content:    piece.Content,
			Embedding:  vectors[i],
			Mtime:      doc.Mtime,
		})
	}
	if err := s.chunks.ReplaceDocumentChunks(ctx, records, doc.ID); err != nil {
		return fmt.Errorf("store chunks for document %s: %w", doc.ID, err)
	}
	logger.Info("document indexed", zap.Int("chunks", len(records)))
	return nil
}

// markdownToPlainText strips markdown structure so headings and emphasis do
// not leak markup into chunk content. Fenced code blocks keep their text.
func markdownToPlainText(markdown string) string {
	md := goldmark.New()
	reader := text.NewReader([]byte(markdown))
	doc := md.Parser().Parse(reader)

	var parts []string
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		switch n := node.(type) {
		case *ast.FencedCodeBlock:
			var code strings.Builder
			for i := 0; i < n.Lines().Len(); i++ {
				line := n.Lines().At(i)
				code.Write(line.Value(reader.Source()))
			}
			if trimmed := strings.TrimSpace(code.String()); trimmed != "" {
				parts = append(parts, trimmed)
			}
		default:
			if txt := extractText(node, reader.Source()); txt != "" {
				parts = append(parts, txt)
			}
		}
	}
	return strings.Join(parts, " ")
}

func extractText(n ast.Node, source []byte) string {
	var sb strings.Builder
	ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if node.Kind() == ast.KindText {
			sb.Write(node.(*ast.Text).Segment.Value(source))
			sb.WriteByte(' ')
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
