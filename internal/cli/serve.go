package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jordan/alivia/internal/config"
	"github.com/jordan/alivia/internal/logger"
	"github.com/jordan/alivia/internal/server"
	"github.com/jordan/alivia/internal/tracing"
	"github.com/jordan/alivia/pkg/engine"
	"github.com/jordan/alivia/pkg/llm"
	"github.com/jordan/alivia/pkg/mailer"
	"github.com/jordan/alivia/pkg/prompt"
	"github.com/jordan/alivia/pkg/retrieval"
	"github.com/jordan/alivia/pkg/session"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Alivia chat service",
	Long: `Run the Alivia HTTP service. It serves streaming chat turns, session
summaries with optional mail delivery, and keeps the document index in sync
with the corpus directory.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
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
		File:    cfg.Logging.File,
		Console: cfg.Logging.Console,
		Pretty:  cfg.Logging.Pretty,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logs.Close()
	log := logs.GetZerolog()

	if err := tracing.Init(tracing.Config{
		ServiceName: "alivia",
		SampleRatio: cfg.Tracing.SampleRatio,
	}); err != nil {
		log.Warn().Err(err).Msg("Tracing disabled")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tracing.Shutdown(ctx)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Document index
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
		Watch:        cfg.Retrieval.Watch,
	})
	if err != nil {
		return fmt.Errorf("failed to open document index: %w", err)
	}
	defer index.Close()

	if err := index.Sync(ctx); err != nil {
		log.Warn().Err(err).Msg("Initial corpus sync failed")
	}

	// Session store with idle eviction
	store := session.NewStore(session.Config{WindowPairs: cfg.Session.WindowPairs})
	sweeper := session.NewSweeper(
		store,
		time.Duration(cfg.Session.IdleTTL)*time.Minute,
		cfg.Session.SweepSchedule,
	)
	if err := sweeper.Start(); err != nil {
		return fmt.Errorf("failed to start session sweeper: %w", err)
	}
	defer sweeper.Stop()

	// Persona and prompt composer
	persona := prompt.DefaultPersona()
	if cfg.PersonaPath != "" {
		persona, err = prompt.LoadPersona(cfg.PersonaPath)
		if err != nil {
			return fmt.Errorf("failed to load persona: %w", err)
		}
	}
	composer, err := prompt.NewComposer(persona)
	if err != nil {
		return fmt.Errorf("failed to build prompt composer: %w", err)
	}

	// Model backend
	provider, err := llm.NewProvider(cfg.Model.Provider, cfg.Model.APIKey)
	if err != nil {
		return fmt.Errorf("failed to create model provider: %w", err)
	}

	eng := engine.New(store, composer, index, provider, log, engine.Options{
		Model:       cfg.Model.Model,
		Temperature: cfg.Model.Temperature,
		MaxTokens:   cfg.Model.MaxTokens,
		CallTimeout: time.Duration(cfg.Model.CallTimeout) * time.Second,
		MaxRetries:  cfg.Model.MaxRetries,
	})

	// Summary mail transport, optional
	var sender mailer.Sender
	if cfg.Mail.Host != "" {
		smtpSender, err := mailer.NewSMTPSender(mailer.Config{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
			Logger:   log,
		})
		if err != nil {
			return fmt.Errorf("failed to configure mail transport: %w", err)
		}
		sender = smtpSender
	}

	srv := server.New(server.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		MaxInputLength: cfg.Server.MaxInputLength,
		MailSubject:    cfg.Mail.Subject,
	}, eng, sender, log)

	log.Info().
		Str("provider", provider.Name()).
		Str("model", cfg.Model.Model).
		Msg("Alivia service starting")

	return srv.Run(ctx)
}
