package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/rvlgh/ragserve/internal/ai"
	"github.com/rvlgh/ragserve/internal/config"
	"github.com/rvlgh/ragserve/internal/db"
	"github.com/rvlgh/ragserve/internal/embedcache"
	"github.com/rvlgh/ragserve/internal/filestore"
	"github.com/rvlgh/ragserve/internal/handler"
	"github.com/rvlgh/ragserve/internal/job"
	"github.com/rvlgh/ragserve/internal/middleware"
	"github.com/rvlgh/ragserve/internal/repo"
	"github.com/rvlgh/ragserve/internal/schedule"
	"github.com/rvlgh/ragserve/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "ragserve",
		Short: "ragserve backend server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run ragserve server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			conn, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(conn); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, conn)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, conn *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("file_store", cfg.FileStore.Type),
	)

	userRepo := repo.NewUserRepo(conn)
	docRepo := repo.NewDocumentRepo(conn)
	chunkRepo := repo.NewChunkRepo(conn)

	providerArgs := cfg.AI.Data
	if providerArgs == nil {
		providerArgs = cfg.AI
	}
	aiProvider, err := ai.NewProvider(cfg.AI.Provider, providerArgs)
	if err != nil {
		return fmt.Errorf("init ai provider: %w", err)
	}
	embedProvider, err := ai.NewEmbedProvider(cfg.AI.Provider, providerArgs)
	if err != nil {
		return fmt.Errorf("init embed provider: %w", err)
	}
	embedder := ai.NewEmbedder(embedProvider, cfg.AI.EmbedModel)
	ingestBatcher := ai.NewBatcher(embedder,
		ai.WithMaxBatchTokens(cfg.Ingest.MaxBatchTokens),
		ai.WithPacer(ai.NewFixedDelayPacer(time.Duration(cfg.Ingest.BatchDelayMS)*time.Millisecond)),
	)
	// Only the query path is memoized; ingestion vectors land in Postgres anyway.
	queryEmbedder := embedder
	if cfg.AI.QueryCacheSize > 0 {
		ttl := time.Duration(cfg.AI.QueryCacheTTLMins) * time.Minute
		queryEmbedder = embedcache.WrapLruCacheToEmbedder(embedder, cfg.AI.QueryCacheSize, ttl)
	}
	queryBatcher := ai.NewBatcher(queryEmbedder)
	generator := ai.NewGenerator(aiProvider, cfg.AI.Model)

	chunker := ai.NewChunker(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	ingestService := service.NewIngestService(chunker, ingestBatcher, chunkRepo)
	retrievalService := service.NewRetrievalService(queryBatcher, chunkRepo, chunkRepo, service.RetrievalOptions{
		SparsityFloor:     cfg.Retrieval.SparsityFloor,
		KeywordSimilarity: cfg.Retrieval.KeywordSimilarity,
	})
	chatService := service.NewChatService(retrievalService, generator, cfg.Retrieval.TopK, cfg.Retrieval.VectorThreshold, cfg.AI.Timeout)
	documentService := service.NewDocumentService(docRepo, chunkRepo, ingestService)
	authService := service.NewAuthService(userRepo, []byte(cfg.JWTSecret), time.Hour*time.Duration(cfg.JWTTTLHours))

	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}

	deps := handler.RouterDeps{
		Auth:      handler.NewAuthHandler(authService),
		Documents: handler.NewDocumentHandler(documentService),
		Files:     handler.NewFileHandler(store, documentService),
		AI:        handler.NewAIHandler(chatService, retrievalService, documentService, cfg.Retrieval.TopK, cfg.Retrieval.VectorThreshold),
		JWTSecret: []byte(cfg.JWTSecret),
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	backfill := job.NewEmbeddingBackfillJob(chunkRepo, ingestService, cfg.Jobs.BackfillLimit)
	if err := scheduler.AddJob(backfill, cfg.Jobs.BackfillSpec); err != nil {
		return fmt.Errorf("schedule backfill: %w", err)
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
