package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"agentic-rag/internal/adapter/pgrepo"
	"agentic-rag/internal/adapter/rag_augur"
	"agentic-rag/internal/adapter/rag_http"
	"agentic-rag/internal/domain"
	"agentic-rag/internal/infra/config"
	"agentic-rag/internal/infra/logger"
	ragotel "agentic-rag/internal/infra/otel"
	"agentic-rag/internal/infra/postgres"
	"agentic-rag/internal/usecase"
	"agentic-rag/internal/usecase/retrieval"
	"agentic-rag/internal/worker"
)

func main() {
	cfg := config.Load()

	shutdownOtel, err := ragotel.InitProvider(context.Background(), ragotel.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init otel provider: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownOtel(ctx)
	}()

	log := logger.New()

	if err := postgres.Migrate(postgres.Config{
		Host: cfg.DBHost, Port: cfg.DBPort, User: cfg.DBUser, Password: cfg.DBPassword, DBName: cfg.DBName,
	}, log); err != nil {
		log.Error("failed to apply database migrations", "error", err)
		os.Exit(1)
	}

	pool, err := postgres.Connect(context.Background(), postgres.Config{
		Host: cfg.DBHost, Port: cfg.DBPort, User: cfg.DBUser, Password: cfg.DBPassword, DBName: cfg.DBName,
	}, log)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	docRepo := pgrepo.NewDocumentRepository(pool, log)
	chunkRepo := pgrepo.NewChunkRepository(pool, log)
	jobRepo := pgrepo.NewJobRepository(pool, log)
	txManager := pgrepo.NewTransactionManager(pool)

	embedder := rag_augur.NewOllamaEmbedder(cfg.OllamaURL, cfg.EmbeddingModel, int(cfg.OllamaTimeout.Seconds()))
	generator := rag_augur.NewOllamaGenerator(cfg.OllamaURL, cfg.GenerationModel, int(cfg.OllamaTimeout.Seconds()), log)
	reranker := rag_augur.NewRerankerClient(cfg.RerankerURL, cfg.RerankerModel, cfg.RerankerTimeout, log)

	indexUsecase := usecase.NewIndexArticleUsecase(
		docRepo,
		chunkRepo,
		txManager,
		domain.NewSourceHashPolicy(),
		domain.NewChunker(),
		embedder,
	)

	promptFactory := usecase.NewPromptFactory()
	preparer := usecase.NewQueryPreparer(cfg.MaxQueryLength, generator, promptFactory, cfg.QueryPreparationAlternateCount, log)
	retriever := retrieval.NewRetriever(chunkRepo, embedder, cfg.RetrievalPrefetchLimit)
	rerankerStage := usecase.NewRerankerStage(reranker)
	grader := usecase.NewGrader(cfg.GradingThreshold, cfg.GradingFallbackTopK)
	expander := usecase.NewContextExpander(chunkRepo)
	packer := usecase.NewContextPacker(cfg.ReserveOutputTokens)
	genStage := usecase.NewGenerator(generator, promptFactory, packer, cfg.GenerationMaxTokens)
	rewriter := usecase.NewRewriter(generator, promptFactory)

	retrievalConfig := usecase.RetrievalConfig{
		RetrievalTopK:          cfg.RetrievalTopK,
		RetrievalPrefetchLimit: cfg.RetrievalPrefetchLimit,
		RerankTopK:             cfg.RerankTopK,
		GradingThreshold:       cfg.GradingThreshold,
		GradingFallbackTopK:    cfg.GradingFallbackTopK,
		MaxRetries:             cfg.MaxRetries,
		ReserveOutputTokens:    cfg.ReserveOutputTokens,
	}

	answerUsecase := usecase.NewAnswerWithRAGUsecase(
		preparer,
		retriever,
		rerankerStage,
		grader,
		expander,
		genStage,
		rewriter,
		retrievalConfig,
		cfg.GenerationModel,
		usecase.WithHeartbeatInterval(time.Duration(cfg.HeartbeatIntervalSeconds)*time.Second),
	)

	jobWorker := worker.NewJobWorker(jobRepo, indexUsecase, log)
	jobWorker.Start()
	defer func() {
		log.Info("stopping worker")
		jobWorker.Stop()
	}()

	validator, err := rag_http.NewRequestValidator()
	if err != nil {
		log.Error("failed to build request validator", "error", err)
		os.Exit(1)
	}
	handler := rag_http.NewHandler(answerUsecase, indexUsecase, jobRepo)

	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	handler.Register(e, validator)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/readyz", func(c echo.Context) error {
		if err := pool.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "db down", "error": err.Error()})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
	})

	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		log.Info("starting server", "addr", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Error("server stopped unexpectedly", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
