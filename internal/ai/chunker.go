package ai

import (
	"strings"

	"github.com/rvlgh/ragserve/internal/model"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

var sentenceTerminators = []string{". ", "? ", "! "}

// Chunker splits normalized document text into overlapping chunks, preferring
// sentence boundaries over word boundaries over raw cuts. Splitting is a pure
// function of the input text and the two size parameters.
type Chunker struct {
	chunkSize int
	overlap   int
}

func NewChunker(chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap}
}

// Split segments text into chunks of at most chunkSize characters, each
// starting overlap characters before the previous chunk's end. Whitespace
// runs are collapsed first; empty input yields no chunks.
func (c *Chunker) Split(text string) []model.Chunk {
	normalized := normalizeWhitespace(text)
	if normalized == "" {
		return nil
	}

	var chunks []model.Chunk
	index := 0
	start := 0
	for start < len(normalized) {
		end := start + c.chunkSize
		if end < len(normalized) {
			end = c.seekBoundary(normalized, start, end)
		} else {
			end = len(normalized)
		}

		content := strings.TrimSpace(normalized[start:end])
		if content != "" {
			chunks = append(chunks, model.Chunk{Content: content, Index: index})
			index++
		}

		// Overlap can swallow the whole chunk; force forward progress so
		// the loop always terminates.
		next := end - c.overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// seekBoundary picks the end index for a chunk whose naive end falls inside
// the text. It prefers the rightmost sentence terminator after start, then
// the rightmost space, and keeps the naive end as a last resort.
func (c *Chunker) seekBoundary(text string, start, naiveEnd int) int {
	window := text[start:naiveEnd]
	best := -1
	for _, term := range sentenceTerminators {
		if pos := strings.LastIndex(window, term); pos > best {
			best = pos
		}
	}
	if best > 0 {
		// Include the punctuation, drop the trailing space.
		return start + best + 1
	}
	if sp := strings.LastIndex(window, " "); sp > 0 {
		return start + sp
	}
	return naiveEnd
}

func normalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
