package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jordan/alivia/internal/config"
	"github.com/jordan/alivia/internal/logger"
	"github.com/jordan/alivia/pkg/retrieval"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the document index",
	Long: `Synchronize the document index with the corpus directory once and
exit. Useful for warming the index before starting the service.`,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logs, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		Console: true,
		Pretty:  true,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logs.Close()
	log := logs.GetZerolog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var embedder retrieval.EmbeddingProvider
	if cfg.Embeddings.Enabled {
		embedder = retrieval.NewOpenAIEmbedder(cfg.Embeddings.APIKey, cfg.Embeddings.Model)
	}

	index, err := retrieval.NewIndex(retrieval.Config{
		DocsDir:      cfg.Retrieval.DocsDir,
		DBPath:       cfg.Retrieval.IndexPath,
		TopK:         cfg.Retrieval.TopK,
		ChunkSize:    cfg.Retrieval.ChunkSize,
		ChunkOverlap: cfg.Retrieval.ChunkOverlap,
		Logger:       log,
		Embedder:     embedder,
	})
	if err != nil {
		return fmt.Errorf("failed to open document index: %w", err)
	}
	defer index.Close()

	if err := index.Sync(ctx); err != nil {
		return fmt.Errorf("index sync failed: %w", err)
	}

	log.Info().Msg("Document index is up to date")
	return nil
}
