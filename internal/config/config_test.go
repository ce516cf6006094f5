package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"port": 8080,
		"jwt_secret": "s",
		"database": {"dsn": "postgres://localhost/test"},
		"ai": {"provider": "gemini", "embed_model": "gemini-embedding-001", "data": {"api_key": "k"}}
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 72, cfg.JWTTTLHours)
	require.Equal(t, 1000, cfg.Ingest.ChunkSize)
	require.Equal(t, 200, cfg.Ingest.ChunkOverlap)
	require.Equal(t, 250000, cfg.Ingest.MaxBatchTokens)
	require.Equal(t, 100, cfg.Ingest.BatchDelayMS)
	require.Equal(t, 5, cfg.Retrieval.TopK)
	require.Equal(t, 0.55, cfg.Retrieval.VectorThreshold)
	require.Equal(t, 3, cfg.Retrieval.SparsityFloor)
	require.Equal(t, 0.5, cfg.Retrieval.KeywordSimilarity)
	require.Equal(t, "*/5 * * * *", cfg.Jobs.BackfillSpec)
	require.Equal(t, 20, cfg.Jobs.BackfillLimit)
	require.Equal(t, "local", cfg.FileStore.Type)
}

func TestLoad_RequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "missing port",
			content: `{"jwt_secret": "s", "database": {"dsn": "x"}, "ai": {"provider": "gemini", "embed_model": "m"}}`,
		},
		{
			name:    "missing jwt secret",
			content: `{"port": 8080, "database": {"dsn": "x"}, "ai": {"provider": "gemini", "embed_model": "m"}}`,
		},
		{
			name:    "missing database",
			content: `{"port": 8080, "jwt_secret": "s", "ai": {"provider": "gemini", "embed_model": "m"}}`,
		},
		{
			name:    "missing ai provider",
			content: `{"port": 8080, "jwt_secret": "s", "database": {"dsn": "x"}, "ai": {"embed_model": "m"}}`,
		},
		{
			name:    "missing embed model",
			content: `{"port": 8080, "jwt_secret": "s", "database": {"dsn": "x"}, "ai": {"provider": "gemini"}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
