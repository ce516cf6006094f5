package service

import (
	"strings"
	"testing"

	"github.com/rvlgh/ragserve/internal/model"
)

func TestBuildContext(t *testing.T) {
	tests := []struct {
		name   string
		chunks []model.RetrievedChunk
		want   string
	}{
		{
			name:   "empty",
			chunks: nil,
			want:   "",
		},
		{
			name:   "single chunk",
			chunks: []model.RetrievedChunk{{Content: "first passage"}},
			want:   "[1] first passage",
		},
		{
			name: "numbered in rank order",
			chunks: []model.RetrievedChunk{
				{Content: "first passage"},
				{Content: "second passage"},
				{Content: "third passage"},
			},
			want: "[1] first passage\n\n[2] second passage\n\n[3] third passage",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildContext(tt.chunks); got != tt.want {
				t.Errorf("BuildContext() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildAnswerPrompt_WithContext(t *testing.T) {
	prompt := buildAnswerPrompt("what is the refund policy?", "[1] refunds within 30 days")
	if !strings.Contains(prompt, "CONTEXT:") {
		t.Error("prompt missing context section")
	}
	if !strings.Contains(prompt, "[1] refunds within 30 days") {
		t.Error("prompt missing context passage")
	}
	if !strings.Contains(prompt, "what is the refund policy?") {
		t.Error("prompt missing question")
	}
}

func TestBuildAnswerPrompt_WithoutContext(t *testing.T) {
	prompt := buildAnswerPrompt("what is the refund policy?", "")
	if strings.Contains(prompt, "CONTEXT:") {
		t.Error("prompt must omit the context section when nothing was retrieved")
	}
	if !strings.Contains(prompt, "what is the refund policy?") {
		t.Error("prompt missing question")
	}
}
