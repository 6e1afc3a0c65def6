package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"pulse/internal/config"
	"pulse/internal/embed"
	"pulse/internal/knowledge"
	"pulse/internal/llm"
	"pulse/internal/persistence"
	"pulse/internal/pipeline"
	"pulse/internal/sources"
	"pulse/internal/summarize"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pulse",
	Short: "Pulse fetches, summarizes, and organizes AI news into daily digests",
	Long: `Pulse runs a news ingestion pipeline: it fetches configured feed
sources, deduplicates and summarizes new items with an LLM, stores them with
embeddings, and maintains a knowledge base of the entities the news mentions.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./pulse.yaml)")
}

// app bundles everything a command needs after wiring.
type app struct {
	cfg          *config.Config
	db           *persistence.PostgresDB
	orchestrator *pipeline.Orchestrator
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}

// buildApp wires config, store, LLM client, and pipeline stages together.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database URL is required: set DATABASE_URL or database.url in the config file")
	}
	db, err := persistence.NewPostgresDB(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := persistence.NewMigrationManager(db).Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	if cfg.Gemini.APIKey != "" && os.Getenv("GEMINI_API_KEY") == "" {
		os.Setenv("GEMINI_API_KEY", cfg.Gemini.APIKey)
	}
	client, err := llm.NewClient(ctx, cfg.Gemini.Model)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating LLM client: %w", err)
	}

	timeout, err := time.ParseDuration(cfg.Fetch.Timeout)
	if err != nil {
		timeout = sources.DefaultTimeout
	}
	gateway := sources.NewGateway(sources.Options{
		Timeout:        timeout,
		MaxConcurrency: cfg.Fetch.MaxConcurrency,
	})

	resolver := knowledge.NewResolver(client, client, db.Entities())
	orchestrator := pipeline.NewOrchestrator(pipeline.Options{
		Gateway:    gateway,
		Summarizer: summarize.NewStage(client),
		Embedder:   embed.NewStage(client),
		Resolver:   resolver,
		LLM:        client,
		Articles:   db.Articles(),
		Entities:   db.Entities(),
		Digests:    db.Digests(),
		Sources:    cfg.Sources,
	})

	return &app{cfg: cfg, db: db, orchestrator: orchestrator}, nil
}

// printJSON writes a result value to stdout for scheduler consumption.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
