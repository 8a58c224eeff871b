package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/imkonsowa/restaurant-qa/catalog"
	"github.com/imkonsowa/restaurant-qa/chunker"
	"github.com/imkonsowa/restaurant-qa/config"
	"github.com/imkonsowa/restaurant-qa/embedding"
	"github.com/imkonsowa/restaurant-qa/generation"
	"github.com/imkonsowa/restaurant-qa/router"
	"github.com/imkonsowa/restaurant-qa/snapshot"
	"github.com/imkonsowa/restaurant-qa/vectorindex"
)

// Engine is everything a front end needs to answer questions. It is built
// once before serving and shared read-only afterwards.
type Engine struct {
	Catalog  *catalog.Catalog
	Chunks   *chunker.Store
	Index    *vectorindex.Index
	Embedder embedding.Embedder
	Router   *router.Router

	closers []io.Closer
}

// New loads the catalog, indexes it and wires the router.
func New(ctx context.Context, cfg *config.Config) (*Engine, error) {
	e := &Engine{}

	pg, err := e.postgres(cfg)
	if err != nil {
		return nil, err
	}

	var source catalog.Source = catalog.NewFile(cfg.Catalog.Path)
	if cfg.Catalog.Source == "postgres" {
		source = pg
	}

	e.Catalog, err = catalog.Load(ctx, source)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	e.Chunks = chunker.Build(e.Catalog.Restaurants())

	e.Embedder, err = e.embedder(cfg)
	if err != nil {
		e.Close()
		return nil, err
	}

	var snapshots Snapshots
	if pg != nil && cfg.Retrieval.Snapshot {
		store := snapshot.NewStore(pg.DB())
		if err := store.Migrate(ctx); err != nil {
			e.Close()
			return nil, err
		}
		snapshots = store
	}

	e.Index, err = Index(ctx, cfg, e.Chunks, e.Embedder, snapshots)
	if err != nil {
		e.Close()
		return nil, err
	}

	generator, err := e.generator(ctx, cfg)
	if err != nil {
		e.Close()
		return nil, err
	}

	e.Router = router.New(e.Catalog, e.Chunks, e.Index, generator, router.Options{
		TopK:            cfg.Retrieval.TopK,
		MaxContextChars: cfg.Retrieval.MaxContextChars,
		Structured:      cfg.Generation.Structured,
	})

	return e, nil
}

func (e *Engine) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i].Close())
	}
	e.closers = nil

	return errors.Join(errs...)
}

// postgres connects only when the catalog or the snapshot lives there.
func (e *Engine) postgres(cfg *config.Config) (*catalog.Postgres, error) {
	if cfg.Catalog.Source != "postgres" && !cfg.Retrieval.Snapshot {
		return nil, nil
	}

	pg, err := catalog.NewPostgres(cfg.Postgres.ConnStr())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return pg, nil
}

func (e *Engine) embedder(cfg *config.Config) (embedding.Embedder, error) {
	embedder, err := NewEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	if c, ok := embedder.(io.Closer); ok {
		e.closers = append(e.closers, c)
	}

	return embedder, nil
}

func (e *Engine) generator(ctx context.Context, cfg *config.Config) (generation.Generator, error) {
	temperature := cfg.Generation.Temperature

	if cfg.Generation.Provider == "gemini" {
		g, err := generation.NewGemini(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, temperature)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, g)

		return g, nil
	}

	return generation.NewOllama(cfg.Ollama.Address(), cfg.Ollama.ContextModel, temperature)
}

// NewEmbedder returns the configured embedding function, behind the sqlite
// cache when it is enabled.
func NewEmbedder(cfg *config.Config) (embedding.Embedder, error) {
	ollama, err := embedding.NewOllama(cfg.Ollama.Address(), cfg.Ollama.EmbeddingModel)
	if err != nil {
		return nil, err
	}
	if !cfg.Cache.Enabled {
		return ollama, nil
	}

	cache, err := embedding.NewCache(cfg.Cache.Path, ollama)
	if err != nil {
		return nil, err
	}

	return cache, nil
}

// Index restores the index from store when the snapshot matches the chunks,
// and otherwise embeds every chunk and refreshes the snapshot. store may be
// nil.
// Snapshots persists built indexes; *snapshot.Store implements it.
type Snapshots interface {
	Save(ctx context.Context, chunks *chunker.Store, index *vectorindex.Index) error
	Restore(ctx context.Context, chunks *chunker.Store, embedder embedding.Embedder) (*vectorindex.Index, error)
}

// dimensionProbe is embedded once after a restore, since a restored index
// has not seen the live model.
const dimensionProbe = "dimension check"

func Index(ctx context.Context, cfg *config.Config, chunks *chunker.Store, embedder embedding.Embedder, snapshots Snapshots) (*vectorindex.Index, error) {
	if snapshots != nil {
		idx, err := snapshots.Restore(ctx, chunks, embedder)
		if err == nil && (cfg.Retrieval.EmbeddingDimension == 0 || idx.Dimension() == cfg.Retrieval.EmbeddingDimension) {
			if err := checkLiveDimension(ctx, embedder, idx); err != nil {
				return nil, err
			}
			slog.Info("vector index restored from snapshot", "chunks", idx.Len(), "dimension", idx.Dimension())
			return idx, nil
		}
		slog.Warn("index snapshot unusable, embedding the catalog", "err", err)
	}

	idx, err := vectorindex.Build(ctx, embedder, chunks.Texts(), vectorindex.Options{
		Workers:   cfg.Retrieval.BuildWorkers,
		Dimension: cfg.Retrieval.EmbeddingDimension,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build vector index: %w", err)
	}

	if snapshots != nil {
		if err := snapshots.Save(ctx, chunks, idx); err != nil {
			slog.Warn("failed to save index snapshot", "err", err)
		}
	}

	return idx, nil
}

// checkLiveDimension fails when the embedding model now returns vectors of
// another size than the restored index holds.
func checkLiveDimension(ctx context.Context, embedder embedding.Embedder, idx *vectorindex.Index) error {
	v, err := embedder.Embed(ctx, dimensionProbe)
	if err != nil {
		return fmt.Errorf("failed to embed with %s: %w", embedder.Model(), err)
	}
	if len(v) != idx.Dimension() {
		return fmt.Errorf("model %s returns %d dimensions, snapshot holds %d: %w",
			embedder.Model(), len(v), idx.Dimension(), vectorindex.ErrDimensionMismatch)
	}

	return nil
}
