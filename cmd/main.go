package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/lexbr/legal-qa-system/api"
	"github.com/lexbr/legal-qa-system/api/handler"
	"github.com/lexbr/legal-qa-system/api/middleware"
	"github.com/lexbr/legal-qa-system/config"
	"github.com/lexbr/legal-qa-system/internal/cache"
	"github.com/lexbr/legal-qa-system/internal/database"
	"github.com/lexbr/legal-qa-system/internal/document"
	"github.com/lexbr/legal-qa-system/internal/embedding"
	"github.com/lexbr/legal-qa-system/internal/llm"
	"github.com/lexbr/legal-qa-system/internal/repository"
	"github.com/lexbr/legal-qa-system/internal/rerank"
	"github.com/lexbr/legal-qa-system/internal/services"
	"github.com/lexbr/legal-qa-system/internal/vectordb"
	"github.com/lexbr/legal-qa-system/pkg/storage"
	"github.com/lexbr/legal-qa-system/pkg/taskqueue"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	mode := flag.String("mode", "release", "gin mode (debug/release)")
	flag.Parse()

	// .env is optional, the environment itself takes precedence
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	gin.SetMode(*mode)

	logger := setupLogger(cfg.Logging)
	logger.Info("Starting legal QA system")

	if err := setupDatabase(cfg.Database, logger); err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}

	fileStorage, err := setupStorage(cfg.Storage)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	vectorDB, err := setupVectorDB(cfg.VectorDB, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize vector database: %v", err)
	}
	defer vectorDB.Close()

	embeddingClient, err := embedding.NewClient(cfg.Embed.Provider,
		embedding.WithAPIKey(cfg.Embed.APIKey),
		embedding.WithModel(cfg.Embed.Model),
		embedding.WithBaseURL(cfg.Embed.Endpoint),
		embedding.WithDimensions(cfg.Embed.Dimensions),
		embedding.WithBatchSize(cfg.Embed.BatchSize),
	)
	if err != nil {
		logger.Fatalf("Failed to initialize embedding client: %v", err)
	}

	llmClient, err := llm.NewClient(cfg.LLM.Provider,
		llm.WithAPIKey(cfg.LLM.APIKey),
		llm.WithBaseURL(cfg.LLM.Endpoint),
		llm.WithModel(cfg.LLM.Model),
		llm.WithMaxTokens(cfg.LLM.MaxTokens),
		llm.WithTemperature(cfg.LLM.Temperature),
	)
	if err != nil {
		logger.Fatalf("Failed to initialize LLM client: %v", err)
	}

	qaCache, err := setupCache(cfg.Cache)
	if err != nil {
		logger.Fatalf("Failed to initialize cache: %v", err)
	}

	var queue taskqueue.Queue
	if cfg.Queue.Enable {
		queue, err = setupTaskQueue(cfg.Queue, logger)
		if err != nil {
			logger.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer queue.Close()
	}

	splitter := document.NewLegalSplitter(document.LegalSplitterConfig{
		ChunkSize:    cfg.Document.ChunkSize,
		ChunkOverlap: cfg.Document.ChunkOverlap,
	})

	ragService := llm.NewRAG(llmClient,
		llm.WithRAGMaxTokens(cfg.LLM.MaxTokens),
		llm.WithRAGTemperature(cfg.LLM.Temperature),
	)

	var repo repository.DocumentRepository
	if queue != nil {
		repo = repository.NewDocumentRepositoryWithQueue(database.MustDB(), queue)
	} else {
		repo = repository.NewDocumentRepository()
	}
	statusManager := services.NewDocumentStatusManager(repo, logger)

	documentOptions := []services.DocumentOption{
		services.WithDocumentRepository(repo),
		services.WithStatusManager(statusManager),
		services.WithBatchSize(cfg.Embed.BatchSize),
		services.WithLogger(logger),
	}
	if queue != nil {
		documentOptions = append(documentOptions,
			services.WithTaskQueue(queue),
			services.WithAsyncProcessing(true),
		)
	}

	documentService := services.NewDocumentService(
		fileStorage,
		splitter,
		embeddingClient,
		vectorDB,
		documentOptions...,
	)

	var worker taskqueue.Worker
	if queue != nil {
		documentService.EnableAsyncProcessing(queue)

		rq, ok := queue.(*taskqueue.RedisQueue)
		if !ok {
			logger.Fatal("Async processing requires a redis task queue")
		}

		worker = taskqueue.NewRedisWorker(rq, nil)
		pipelineHandler := services.NewPipelineWorkerHandler(documentService)
		for _, taskType := range pipelineHandler.GetTaskTypes() {
			worker.RegisterHandler(taskType, pipelineHandler)
		}

		if err := worker.Start(); err != nil {
			logger.Fatalf("Failed to start task worker: %v", err)
		}
		defer worker.Stop()

		logger.Info("Document processing will use the async task queue")
	}

	reranker := rerank.New(rerank.WithConfig(rerank.Config{
		ImportanceBonus: cfg.Search.Rerank.ImportanceBonus,
		ArticleBonus:    cfg.Search.Rerank.ArticleBonus,
		RecencyBonus:    cfg.Search.Rerank.RecencyBonus,
		RecencyCutoff:   cfg.Search.Rerank.RecencyCutoff,
	}))

	qaService := services.NewQAService(
		embeddingClient,
		vectorDB,
		ragService,
		qaCache,
		services.WithReranker(reranker),
		services.WithSearchLimit(cfg.Search.Limit),
		services.WithMinScore(cfg.Search.MinScore),
		services.WithCacheTTL(time.Duration(cfg.Cache.TTL)*time.Second),
		services.WithQALogger(logger),
	)

	docHandler := handler.NewDocumentHandler(documentService)
	qaHandler := handler.NewQAHandler(qaService)

	var taskHandler *handler.TaskHandler
	if queue != nil {
		taskHandler = handler.NewTaskHandler(queue)
	}

	router := api.SetupRouter(docHandler, qaHandler, taskHandler)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Infof("Server is listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// setupLogger configures the shared logger, adding file rotation when a
// log file is set.
func setupLogger(cfg config.LoggingConfig) *logrus.Logger {
	logger := middleware.GetLogger()

	switch cfg.Level {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "warn":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		logger.SetOutput(io.MultiWriter(os.Stdout, rotator))
	}

	return logger
}

func setupDatabase(cfg config.DatabaseConfig, logger *logrus.Logger) error {
	if cfg.Type == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(cfg.DSN), 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %v", err)
		}
	}

	return database.Setup(&database.Config{
		Type: cfg.Type,
		DSN:  cfg.DSN,
	}, logger)
}

func setupStorage(cfg config.StorageConfig) (storage.Storage, error) {
	if cfg.Type == "minio" {
		return storage.NewMinioStorage(storage.MinioConfig{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			UseSSL:    cfg.UseSSL,
			Bucket:    cfg.Bucket,
		})
	}

	if err := os.MkdirAll(cfg.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %v", err)
	}
	return storage.NewLocalStorage(storage.LocalConfig{Path: cfg.Path})
}

// setupVectorDB builds the configured vector store, falling back to the
// in-memory index when the persistent backend cannot start.
func setupVectorDB(cfg config.VectorDBConfig, logger *logrus.Logger) (vectordb.Repository, error) {
	vdbConfig := vectordb.Config{
		Type:              cfg.Type,
		Path:              cfg.Path,
		Dimension:         cfg.Dim,
		DistanceType:      vectordb.DistanceType(cfg.Distance),
		CreateIfNotExists: true,
	}

	if cfg.Type == "faiss" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create vector database directory: %v", err)
		}

		repo, err := vectordb.NewRepository(vdbConfig)
		if err == nil {
			return repo, nil
		}

		logger.WithError(err).Warn("Failed to initialize faiss index, falling back to in-memory store")
		vdbConfig.Type = "memory"
		vdbConfig.Path = ""
	}

	return vectordb.NewRepository(vdbConfig)
}

func setupCache(cfg config.CacheConfig) (cache.Cache, error) {
	cacheType := cfg.Type
	if !cfg.Enable {
		cacheType = "memory"
	}

	return cache.NewCache(cache.Config{
		Type:            cacheType,
		RedisAddr:       cfg.Address,
		RedisPassword:   cfg.Password,
		RedisDB:         cfg.DB,
		DefaultTTL:      time.Duration(cfg.TTL) * time.Second,
		CleanupInterval: 10 * time.Minute,
	})
}

func setupTaskQueue(cfg config.QueueConfig, logger *logrus.Logger) (taskqueue.Queue, error) {
	queueConfig := &taskqueue.Config{
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		Concurrency:   cfg.Concurrency,
		RetryLimit:    cfg.RetryLimit,
		RetryDelay:    time.Duration(cfg.RetryDelay) * time.Second,
	}

	logger.WithFields(logrus.Fields{
		"redis_addr":  cfg.RedisAddr,
		"concurrency": cfg.Concurrency,
		"retry_limit": cfg.RetryLimit,
	}).Info("Setting up task queue")

	return taskqueue.NewRedisQueue(queueConfig)
}
