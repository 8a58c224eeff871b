package embedding

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
)

type countingEmbedder struct {
	calls     atomic.Int32
	dimension int
}

func (e *countingEmbedder) Model() string {
	return "fake"
}

func (e *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	v := make([]float32, e.dimension)
	for i := range v {
		v[i] = float32(len(text) + i)
	}

	return v, nil
}

type fakeClient struct {
	out [][]float32
	err error
}

func (f fakeClient) CreateEmbedding(context.Context, []string) ([][]float32, error) {
	return f.out, f.err
}

func TestOllamaEmbed(t *testing.T) {
	ctx := context.Background()

	o := &Ollama{llm: fakeClient{out: [][]float32{{1, 2, 3}}}, model: "nomic"}
	v, err := o.Embed(ctx, "paneer")
	if err != nil || len(v) != 3 {
		t.Fatalf("Embed() = %v, %v", v, err)
	}

	o.llm = fakeClient{}
	if _, err := o.Embed(ctx, "paneer"); !errors.Is(err, ErrEmptyEmbedding) {
		t.Errorf("Embed() error = %v, want ErrEmptyEmbedding", err)
	}

	o.llm = fakeClient{err: errors.New("connection refused")}
	if _, err := o.Embed(ctx, "paneer"); err == nil {
		t.Error("Embed() expected the client error")
	}
}

func TestCacheReusesVectors(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "embeddings.db")

	inner := &countingEmbedder{dimension: 4}
	cache, err := NewCache(path, inner)
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}

	first, err := cache.Embed(ctx, "Paneer Tikka")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	second, err := cache.Embed(ctx, "Paneer Tikka")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if inner.calls.Load() != 1 {
		t.Errorf("inner embedder called %d times, want 1", inner.calls.Load())
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("cached vector = %v, want %v", second, first)
		}
	}
	cache.Close()

	// a reopened cache still serves the stored vector
	reopened, err := NewCache(path, inner)
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}
	defer reopened.Close()

	if _, err := reopened.Embed(ctx, "Paneer Tikka"); err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if inner.calls.Load() != 1 {
		t.Errorf("inner embedder called %d times after reopen, want 1", inner.calls.Load())
	}
}

func TestCacheRejectsDimensionDrift(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "embeddings.db")

	cache, err := NewCache(path, &countingEmbedder{dimension: 4})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cache.Embed(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	cache.Close()

	drifted, err := NewCache(path, &countingEmbedder{dimension: 8})
	if err != nil {
		t.Fatal(err)
	}
	defer drifted.Close()

	if _, err := drifted.Embed(ctx, "b"); !errors.Is(err, ErrDimensionDrift) {
		t.Errorf("Embed() error = %v, want ErrDimensionDrift", err)
	}
}

func TestVectorEncoding(t *testing.T) {
	in := []float32{0, -1.5, 3.25, 1e-7}
	out := decodeVector(encodeVector(in))
	if len(out) != len(in) {
		t.Fatalf("decoded %d values, want %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("value %d = %v, want %v", i, out[i], in[i])
		}
	}
}
