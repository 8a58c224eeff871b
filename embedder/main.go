package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/imkonsowa/restaurant-qa/bootstrap"
	"github.com/imkonsowa/restaurant-qa/catalog"
	"github.com/imkonsowa/restaurant-qa/config"
	"github.com/imkonsowa/restaurant-qa/events"
	"github.com/imkonsowa/restaurant-qa/snapshot"
	"github.com/imkonsowa/restaurant-qa/vectorindex"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "err", err)
	}

	cfg := config.LoadConfig()
	cfg.Log.Setup()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	nc, err := events.Connect(&cfg.Nats)
	if err != nil {
		log.Fatal(err)
	}
	defer nc.Close()

	pg, err := catalog.NewPostgres(cfg.Postgres.ConnStr())
	if err != nil {
		log.Fatal(err)
	}

	store := snapshot.NewStore(pg.DB())
	if err := store.Migrate(ctx); err != nil {
		log.Fatal(err)
	}

	embedder, err := bootstrap.NewEmbedder(cfg)
	if err != nil {
		log.Fatal(err)
	}
	if c, ok := embedder.(io.Closer); ok {
		defer c.Close()
	}

	handler := NewHandler(pg, embedder, store, vectorindex.Options{
		Workers:   cfg.Retrieval.BuildWorkers,
		Dimension: cfg.Retrieval.EmbeddingDimension,
	})

	if err := handler.Sync(ctx); err != nil {
		log.Fatal(err)
	}

	slog.Info("Starting embedder", "workers", cfg.Embedder.Workers, "queueSize", cfg.Embedder.QueueSize)

	pool := NewWorkerPool(ctx, cfg.Embedder.Workers, cfg.Embedder.QueueSize, handler.HandleCatalogChanged)

	subject := cfg.Nats.CatalogSubject
	worker, wctx := errgroup.WithContext(ctx)
	worker.Go(func() error {
		return nc.Subscribe(wctx, subject, func(m *nats.Msg) {
			pool.Submit(wctx, m)
		})
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- worker.Wait()
	}()

	select {
	case <-shutdown:
		slog.Info("Shutting down")
		cancel()
		<-errChan
	case err := <-errChan:
		slog.Error("Shutting down due to error", "error", err)
		cancel()
	}

	pool.Stop()
}
