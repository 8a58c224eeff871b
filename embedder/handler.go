package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/imkonsowa/restaurant-qa/catalog"
	"github.com/imkonsowa/restaurant-qa/chunker"
	"github.com/imkonsowa/restaurant-qa/embedding"
	"github.com/imkonsowa/restaurant-qa/events"
	"github.com/imkonsowa/restaurant-qa/vectorindex"
)

type snapshotStore interface {
	Save(ctx context.Context, chunks *chunker.Store, index *vectorindex.Index) error
	Restore(ctx context.Context, chunks *chunker.Store, embedder embedding.Embedder) (*vectorindex.Index, error)
}

// Handler keeps the index snapshot in step with the catalog. Rebuilds are
// serialized, and an event older than the last rebuild is already covered
// by it.
type Handler struct {
	source   catalog.Source
	embedder embedding.Embedder
	store    snapshotStore
	opts     vectorindex.Options

	mu      sync.Mutex
	builtAt time.Time
}

func NewHandler(source catalog.Source, embedder embedding.Embedder, store snapshotStore, opts vectorindex.Options) *Handler {
	return &Handler{
		source:   source,
		embedder: embedder,
		store:    store,
		opts:     opts,
	}
}

func (h *Handler) HandleCatalogChanged(ctx context.Context, msg []byte) error {
	event, err := events.DecodeCatalogChanged(msg)
	if err != nil {
		// redelivery cannot fix a malformed event
		slog.Warn("dropping catalog event", "err", err)
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if !event.At.IsZero() && event.At.Before(h.builtAt) {
		slog.Debug("catalog event covered by last rebuild", "table", event.Table, "id", event.ID)
		return nil
	}

	slog.Info("catalog changed, rebuilding index", "table", event.Table, "kind", event.Kind, "id", event.ID, "reason", event.Reason)

	return h.rebuild(ctx, false)
}

// Sync rebuilds only when the stored snapshot does not match the catalog.
func (h *Handler) Sync(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.rebuild(ctx, true)
}

func (h *Handler) rebuild(ctx context.Context, reuse bool) error {
	started := time.Now()

	cat, err := catalog.Load(ctx, h.source)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	chunks := chunker.Build(cat.Restaurants())
	if chunks.Len() == 0 {
		slog.Warn("catalog has no menu items, nothing to index")
		h.builtAt = started
		return nil
	}

	if reuse {
		idx, err := h.store.Restore(ctx, chunks, h.embedder)
		if err == nil {
			slog.Info("index snapshot is current", "chunks", idx.Len())
			h.builtAt = started
			return nil
		}
		slog.Info("index snapshot needs a rebuild", "reason", err)
	}

	idx, err := vectorindex.Build(ctx, h.embedder, chunks.Texts(), h.opts)
	if err != nil {
		return fmt.Errorf("failed to build vector index: %w", err)
	}

	if err := h.store.Save(ctx, chunks, idx); err != nil {
		return fmt.Errorf("failed to save index snapshot: %w", err)
	}

	h.builtAt = started

	return nil
}
