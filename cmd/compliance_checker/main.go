// compliance_checker ingests documents into a vector store and answers
// suitability questions against them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"compliance_checker/internal/app"
	"compliance_checker/internal/config"
	"compliance_checker/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Global flags
var (
	envFile   string
	dataDir   string
	namespace string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "compliance_checker",
	Short: "Document ingestion, semantic search and suitability reports",
	Long: `compliance_checker extracts text from PDF, markdown and text files, splits it
into overlapping chunks, embeds the chunks and stores them in a local vector
database. Stored documents can be searched or used as context for an LLM
suitability report.

Running without a subcommand starts the interactive shell.

Examples:
  compliance_checker serve                          # HTTP API on HTTP_ADDR
  compliance_checker ingest cv.pdf -n resumes       # ingest one file
  compliance_checker index ./docs                   # ingest a directory
  compliance_checker query "go microservices"       # semantic search
  compliance_checker chunk notes.md --size 500      # show chunks only
  compliance_checker report --resume cv.pdf --job "Senior Go engineer"`,
	SilenceUsage: true,
	RunE:         runShell,
}

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive shell: paths are ingested, text is searched, '? question' builds a report",
	Args:  cobra.NoArgs,
	RunE:  runShell,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "data directory (overrides DATA_DIR)")
	rootCmd.PersistentFlags().StringVarP(&namespace, "namespace", "n", "", "vector namespace (defaults to DEFAULT_NAMESPACE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(shellCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads .env and the environment and applies the global flags.
func loadConfig() (*config.Config, error) {
	if dataDir != "" {
		os.Setenv("DATA_DIR", dataDir)
	}
	if verbose {
		os.Setenv("LOG_LEVEL", "debug")
	}

	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setup builds and initializes the app. The returned func flushes the logger.
func setup(ctx context.Context, opts ...app.Option) (*app.App, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	if err := logger.InitGlobal(&cfg.Log); err != nil {
		return nil, nil, fmt.Errorf("failed to init logger: %w", err)
	}
	lgr := logger.L()
	cleanup := func() { _ = logger.Sync() }

	lgr.Debug("config loaded",
		zap.String("data_dir", cfg.DataDir),
		zap.String("embed_provider", cfg.Embedding.Provider),
		zap.String("upload_store", cfg.UploadStore),
		zap.Int("chunk_size", cfg.ChunkSize),
		zap.Int("chunk_overlap", cfg.ChunkOverlap))

	a, err := app.New(cfg, append([]app.Option{app.WithLogger(lgr)}, opts...)...)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to create app: %w", err)
	}
	if err := a.Init(ctx); err != nil {
		_ = a.Close()
		cleanup()
		return nil, nil, fmt.Errorf("failed to initialize app: %w", err)
	}
	return a, func() {
		if err := a.Close(); err != nil {
			lgr.Warn("failed to close app", zap.Error(err))
		}
		cleanup()
	}, nil
}

func runShell(cmd *cobra.Command, _ []string) error {
	var opts []app.Option
	if render := markdownRenderer(cmd.OutOrStdout()); render != nil {
		opts = append(opts, app.WithMarkdownRenderer(render))
	}

	a, cleanup, err := setup(cmd.Context(), opts...)
	if err != nil {
		return err
	}
	defer cleanup()

	return a.Run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
}
