package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port        int              `json:"port"`
	JWTSecret   string           `json:"jwt_secret"`
	JWTTTLHours int              `json:"jwt_ttl_hours"`
	CORSOrigins []string         `json:"cors_origins"`
	LogConfig   logger.LogConfig `json:"log_config"`
	Database    DatabaseConfig   `json:"database"`
	AI          AIConfig         `json:"ai"`
	Ingest      IngestConfig     `json:"ingest"`
	Retrieval   RetrievalConfig  `json:"retrieval"`
	FileStore   FileStoreConfig  `json:"file_store"`
	Jobs        JobsConfig       `json:"jobs"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type AIConfig struct {
	Provider          string      `json:"provider"`
	Model             string      `json:"model"`
	EmbedModel        string      `json:"embed_model"`
	Timeout           int         `json:"timeout"`
	QueryCacheSize    int         `json:"query_cache_size"`
	QueryCacheTTLMins int         `json:"query_cache_ttl_minutes"`
	Data              interface{} `json:"data"`
}

type IngestConfig struct {
	ChunkSize      int `json:"chunk_size"`
	ChunkOverlap   int `json:"chunk_overlap"`
	MaxBatchTokens int `json:"max_batch_tokens"`
	BatchDelayMS   int `json:"batch_delay_ms"`
}

type RetrievalConfig struct {
	TopK              int     `json:"top_k"`
	VectorThreshold   float64 `json:"vector_threshold"`
	SparsityFloor     int     `json:"sparsity_floor"`
	KeywordSimilarity float64 `json:"keyword_similarity"`
}

type JobsConfig struct {
	BackfillSpec  string `json:"backfill_spec"`
	BackfillLimit int    `json:"backfill_limit"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.AI.Provider == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	if cfg.AI.EmbedModel == "" {
		return nil, fmt.Errorf("ai.embed_model is required")
	}
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 72
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 1000
	}
	if cfg.Ingest.ChunkOverlap == 0 {
		cfg.Ingest.ChunkOverlap = 200
	}
	if cfg.Ingest.MaxBatchTokens == 0 {
		cfg.Ingest.MaxBatchTokens = 250000
	}
	if cfg.Ingest.BatchDelayMS == 0 {
		cfg.Ingest.BatchDelayMS = 100
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.VectorThreshold == 0 {
		cfg.Retrieval.VectorThreshold = 0.55
	}
	if cfg.Retrieval.SparsityFloor == 0 {
		cfg.Retrieval.SparsityFloor = 3
	}
	if cfg.Retrieval.KeywordSimilarity == 0 {
		cfg.Retrieval.KeywordSimilarity = 0.5
	}
	if cfg.Jobs.BackfillSpec == "" {
		cfg.Jobs.BackfillSpec = "*/5 * * * *"
	}
	if cfg.Jobs.BackfillLimit == 0 {
		cfg.Jobs.BackfillLimit = 20
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	return &cfg, nil
}
