package service

import (
	"fmt"
	"strings"

	"github.com/rvlgh/ragserve/internal/model"
)

// BuildContext renders retrieved chunks as a numbered block, one entry per
// chunk in rank order. An empty input yields an empty string so callers can
// omit the context section entirely.
func BuildContext(chunks []model.RetrievedChunk) string {
	if len(chunks) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, chunk := range chunks {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[%d] %s", i+1, chunk.Content)
	}
	return sb.String()
}
