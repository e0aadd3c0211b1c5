package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"agentic-rag/internal/adapter/docsource"
	"agentic-rag/internal/adapter/pgrepo"
	"agentic-rag/internal/adapter/rag_augur"
	"agentic-rag/internal/backfill"
	"agentic-rag/internal/domain"
	"agentic-rag/internal/infra/config"
	"agentic-rag/internal/infra/logger"
	ragotel "agentic-rag/internal/infra/otel"
	"agentic-rag/internal/infra/postgres"
	"agentic-rag/internal/usecase"
)

var (
	version    = "dev"
	cursorFile string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "backfill-cli",
	Short:   "Reindex a corpus of policy documents into the vector store",
	Version: version,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Page through the document source and (re)index everything since the last cursor",
	Long: `Run pages through the upstream document source starting from the
last saved cursor, reindexing every document it finds. Progress is
checkpointed after every page, so an interrupted run resumes without
reprocessing the corpus from the beginning.`,
	RunE: runBackfill,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current cursor position",
	RunE:  showStatus,
}

var resetCmd = &cobra.Command{
	Use:   "reset-cursor",
	Short: "Reset the cursor so the next run starts from the beginning",
	RunE:  resetCursor,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cursorFile, "cursor-file", "", "cursor file path (defaults to BACKFILL_CURSOR_PATH)")
	rootCmd.AddCommand(runCmd, statusCmd, resetCmd)
}

func cursorPath(cfg config.Config) string {
	if cursorFile != "" {
		return cursorFile
	}
	return cfg.BackfillCursorPath
}

func runBackfill(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	shutdownOtel, err := ragotel.InitProvider(context.Background(), ragotel.ConfigFromEnv())
	if err != nil {
		return fmt.Errorf("init otel provider: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownOtel(ctx)
	}()

	log := logger.New()

	pool, err := postgres.Connect(context.Background(), postgres.Config{
		Host: cfg.DBHost, Port: cfg.DBPort, User: cfg.DBUser, Password: cfg.DBPassword, DBName: cfg.DBName,
	}, log)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	docRepo := pgrepo.NewDocumentRepository(pool, log)
	chunkRepo := pgrepo.NewChunkRepository(pool, log)
	txManager := pgrepo.NewTransactionManager(pool)
	embedder := rag_augur.NewOllamaEmbedder(cfg.OllamaURL, cfg.EmbeddingModel, int(cfg.OllamaTimeout.Seconds()))

	indexUsecase := usecase.NewIndexArticleUsecase(
		docRepo,
		chunkRepo,
		txManager,
		domain.NewSourceHashPolicy(),
		domain.NewChunker(),
		embedder,
	)

	source := docsource.NewHTTPDocumentSourceClient(cfg.DocumentSourceURL, cfg.DocumentSourceTimeout, log)
	cursors := backfill.NewCursorManager(cursorPath(cfg))
	runner := backfill.NewRunner(source, indexUsecase, cursors, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	processed, err := runner.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			log.Info("backfill interrupted, cursor saved for resume", "processed", processed)
			return nil
		}
		return fmt.Errorf("run backfill: %w", err)
	}

	log.Info("backfill complete", "processed", processed)
	return nil
}

func showStatus(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	cursors := backfill.NewCursorManager(cursorPath(cfg))

	cursor, err := cursors.Load()
	if err != nil {
		return fmt.Errorf("load cursor: %w", err)
	}

	if cursor.IsEmpty() {
		fmt.Println("No cursor found. Backfill will start from the beginning.")
		return nil
	}

	fmt.Printf("Cursor status:\n")
	fmt.Printf("  Version:         %d\n", cursor.Version)
	fmt.Printf("  Last Created At: %s\n", cursor.LastCreatedAt.Format(time.RFC3339))
	fmt.Printf("  Last ID:         %s\n", cursor.LastID)
	fmt.Printf("  Processed Count: %d\n", cursor.ProcessedCount)
	fmt.Printf("  Updated At:      %s\n", cursor.UpdatedAt.Format(time.RFC3339))
	return nil
}

func resetCursor(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	cursors := backfill.NewCursorManager(cursorPath(cfg))

	if err := cursors.Reset(); err != nil {
		return fmt.Errorf("reset cursor: %w", err)
	}

	fmt.Println("cursor reset")
	return nil
}
