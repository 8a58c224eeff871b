package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/imkonsowa/restaurant-qa/chunker"
	"github.com/imkonsowa/restaurant-qa/embedding"
	"github.com/imkonsowa/restaurant-qa/events"
	"github.com/imkonsowa/restaurant-qa/models"
	"github.com/imkonsowa/restaurant-qa/snapshot"
	"github.com/imkonsowa/restaurant-qa/vectorindex"
	"github.com/nats-io/nats.go"
)

type staticSource struct {
	restaurants []models.Restaurant
}

func (s staticSource) Load(context.Context) ([]models.Restaurant, error) {
	return s.restaurants, nil
}

type sizeEmbedder struct {
	calls atomic.Int32
}

func (e *sizeEmbedder) Model() string {
	return "size"
}

func (e *sizeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	return []float32{float32(len(text)), 1}, nil
}

// memoryStore keeps the saved rows and restores through the same checks as
// the postgres store.
type memoryStore struct {
	rows  []snapshot.Row
	saves int
}

func (m *memoryStore) Save(_ context.Context, chunks *chunker.Store, index *vectorindex.Index) error {
	rows, err := snapshot.Rows(chunks, index)
	if err != nil {
		return err
	}
	m.rows = rows
	m.saves++

	return nil
}

func (m *memoryStore) Restore(_ context.Context, chunks *chunker.Store, embedder embedding.Embedder) (*vectorindex.Index, error) {
	vectors, dimension, err := snapshot.Vectors(m.rows, chunks.Texts(), embedder.Model())
	if err != nil {
		return nil, err
	}

	return vectorindex.FromVectors(embedder, vectors, dimension)
}

func testSource() staticSource {
	return staticSource{restaurants: []models.Restaurant{{
		Name: "Spice Route",
		Menu: []models.MenuItem{{Name: "Paneer Tikka"}, {Name: "Chicken 65"}},
	}}}
}

func encode(t *testing.T, e events.CatalogChanged) []byte {
	t.Helper()

	data, err := e.Encode()
	if err != nil {
		t.Fatal(err)
	}

	return data
}

func TestHandleCatalogChangedCoalesces(t *testing.T) {
	ctx := context.Background()
	store := &memoryStore{}
	h := NewHandler(testSource(), &sizeEmbedder{}, store, vectorindex.Options{})

	before := time.Now().Add(-time.Minute)
	if err := h.HandleCatalogChanged(ctx, encode(t, events.CatalogChanged{Table: "menu_items", ID: 1, At: time.Now()})); err != nil {
		t.Fatalf("HandleCatalogChanged() error = %v", err)
	}
	if err := h.HandleCatalogChanged(ctx, encode(t, events.CatalogChanged{Table: "menu_items", ID: 2, At: before})); err != nil {
		t.Fatalf("HandleCatalogChanged() error = %v", err)
	}

	if store.saves != 1 {
		t.Errorf("snapshot saved %d times, want 1 for an event older than the rebuild", store.saves)
	}
	if len(store.rows) != 2 {
		t.Errorf("snapshot has %d rows, want 2", len(store.rows))
	}

	if err := h.HandleCatalogChanged(ctx, []byte("{")); err != nil {
		t.Errorf("malformed event returned %v, want it dropped", err)
	}
}

func TestSyncReusesCurrentSnapshot(t *testing.T) {
	ctx := context.Background()
	store := &memoryStore{}
	embedder := &sizeEmbedder{}
	h := NewHandler(testSource(), embedder, store, vectorindex.Options{})

	if err := h.Sync(ctx); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if store.saves != 1 {
		t.Fatalf("first Sync() saved %d times, want 1", store.saves)
	}

	if err := h.Sync(ctx); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if store.saves != 1 {
		t.Errorf("Sync() rebuilt a current snapshot")
	}
	if n := embedder.calls.Load(); n != 2 {
		t.Errorf("embedder called %d times, want 2", n)
	}
}

type fakeAck struct {
	acked, naked atomic.Int32
}

func (f *fakeAck) Ack(...nats.AckOpt) error {
	f.acked.Add(1)
	return nil
}

func (f *fakeAck) Nak(...nats.AckOpt) error {
	f.naked.Add(1)
	return nil
}

func TestWorkerPoolSettlesMessages(t *testing.T) {
	handler := func(_ context.Context, data []byte) error {
		if string(data) == "bad" {
			return errors.New("rebuild failed")
		}
		return nil
	}

	pool := NewWorkerPool(context.Background(), 2, 4, handler)

	ack := &fakeAck{}
	for _, data := range []string{"ok", "bad", "ok"} {
		if !pool.submit(context.Background(), job{data: []byte(data), msg: ack}) {
			t.Fatal("submit() refused a job")
		}
	}
	pool.Stop()

	if ack.acked.Load() != 2 || ack.naked.Load() != 1 {
		t.Errorf("acked %d naked %d, want 2 and 1", ack.acked.Load(), ack.naked.Load())
	}
}

func TestWorkerPoolDrainsAfterShutdown(t *testing.T) {
	release := make(chan struct{})
	handler := func(ctx context.Context, _ []byte) error {
		<-release
		return ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	pool := NewWorkerPool(ctx, 1, 4, handler)

	ack := &fakeAck{}
	for i := 0; i < 3; i++ {
		if !pool.submit(context.Background(), job{data: []byte("event"), msg: ack}) {
			t.Fatal("submit() refused a job")
		}
	}

	cancel()
	close(release)
	pool.Stop()

	if ack.acked.Load() != 3 || ack.naked.Load() != 0 {
		t.Errorf("acked %d naked %d, want all 3 queued messages handled", ack.acked.Load(), ack.naked.Load())
	}
}
