package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/imkonsowa/restaurant-qa/catalog"
	"github.com/imkonsowa/restaurant-qa/chunker"
	"github.com/imkonsowa/restaurant-qa/config"
	"github.com/imkonsowa/restaurant-qa/events"
	"github.com/imkonsowa/restaurant-qa/snapshot"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	force  bool
	dryRun bool
)

var rootCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Request an index rebuild when the snapshot is behind the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "err", err)
	}

	rootCmd.Flags().BoolVar(&force, "force", false, "request a rebuild even when the snapshot is current")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "only report whether the snapshot is stale")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg := config.LoadConfig()
	cfg.Log.Setup()

	pg, err := catalog.NewPostgres(cfg.Postgres.ConnStr())
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}

	cat, err := catalog.Load(ctx, pg)
	if err != nil {
		return err
	}
	chunks := chunker.Build(cat.Restaurants())

	rows, err := snapshot.NewStore(pg.DB()).Load(ctx)
	if err != nil {
		return err
	}

	reason := staleReason(rows, chunks, cfg.Ollama.EmbeddingModel)
	switch {
	case reason == "" && !force:
		slog.Info("index snapshot is current", "chunks", len(rows))
		return nil
	case reason == "":
		reason = "forced"
	}

	slog.Info("index rebuild needed", "reason", reason, "chunks", chunks.Len(), "stored", len(rows))
	if dryRun {
		return nil
	}

	nc, err := events.Connect(&cfg.Nats)
	if err != nil {
		return fmt.Errorf("failed to connect to nats: %w", err)
	}
	defer nc.Close()

	data, err := events.CatalogChanged{Reason: reason, At: time.Now()}.Encode()
	if err != nil {
		return err
	}
	if err := nc.Publish(cfg.Nats.CatalogSubject, data); err != nil {
		return fmt.Errorf("failed to publish rebuild request: %w", err)
	}

	slog.Info("rebuild requested", "subject", cfg.Nats.CatalogSubject)

	return nil
}

// staleReason explains why rows do not match the chunks, or is empty.
func staleReason(rows []snapshot.Row, chunks *chunker.Store, model string) string {
	_, _, err := snapshot.Vectors(rows, chunks.Texts(), model)
	if err == nil {
		return ""
	}
	if errors.Is(err, snapshot.ErrStale) || len(rows) == 0 {
		return err.Error()
	}

	return "unusable snapshot: " + err.Error()
}
