package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/imkonsowa/restaurant-qa/catalog"
	"github.com/imkonsowa/restaurant-qa/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type options struct {
	configPath string
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "err", err)
	}

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "restaurants",
		Short:         "Ask questions about the restaurant menu catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultPath := os.Getenv("CONFIG_PATH")
	if defaultPath == "" {
		defaultPath = config.DefaultPath
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", defaultPath, "path to the config file")

	root.AddCommand(
		newAskCmd(opts),
		newChatCmd(opts),
		newParseCmd(opts),
		newChunksCmd(opts),
		newImportCmd(opts),
	)

	return root
}

func (o *options) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	cfg.Log.Setup()

	return cfg, nil
}

// loadCatalog reads the catalog without building the index.
func loadCatalog(ctx context.Context, cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.Catalog.Source == "postgres" {
		pg, err := catalog.NewPostgres(cfg.Postgres.ConnStr())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return catalog.Load(ctx, pg)
	}

	return catalog.Load(ctx, catalog.NewFile(cfg.Catalog.Path))
}
