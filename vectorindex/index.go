package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/imkonsowa/restaurant-qa/embedding"
	"golang.org/x/sync/errgroup"
)

const DefaultTopK = 5

var (
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrEmptyIndex        = errors.New("index has no vectors")
)

type Hit struct {
	Ordinal  int     `json:"ordinal"`
	Distance float64 `json:"distance"`
}

type Options struct {
	// Workers bounds concurrent embedding calls during Build.
	Workers int
	// Dimension, when non-zero, is the expected vector length.
	Dimension int
}

// Index is a flat, exact L2 index. Position i holds the vector of chunk
// ordinal i. It is read-only once built and safe for concurrent queries.
type Index struct {
	embedder  embedding.Embedder
	vectors   [][]float32
	dimension int
}

// Build embeds every text once and indexes the result in text order.
func Build(ctx context.Context, embedder embedding.Embedder, texts []string, opts Options) (*Index, error) {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	start := time.Now()
	vectors := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, text := range texts {
		g.Go(func() error {
			v, err := embedder.Embed(gctx, text)
			if err != nil {
				return fmt.Errorf("failed to embed chunk %d: %w", i, err)
			}
			vectors[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	idx, err := FromVectors(embedder, vectors, opts.Dimension)
	if err != nil {
		return nil, err
	}

	slog.Info("vector index built",
		"chunks", len(texts),
		"dimension", idx.dimension,
		"model", embedder.Model(),
		"took", time.Since(start),
	)

	return idx, nil
}

// FromVectors indexes precomputed vectors, for example a persisted snapshot.
// The embedder must be the function that produced them.
func FromVectors(embedder embedding.Embedder, vectors [][]float32, dimension int) (*Index, error) {
	if len(vectors) == 0 {
		return nil, ErrEmptyIndex
	}

	if dimension == 0 {
		dimension = len(vectors[0])
	}
	for i, v := range vectors {
		if len(v) != dimension {
			return nil, fmt.Errorf("%w: chunk %d has %d values, want %d", ErrDimensionMismatch, i, len(v), dimension)
		}
	}

	return &Index{
		embedder:  embedder,
		vectors:   vectors,
		dimension: dimension,
	}, nil
}

func (x *Index) Len() int {
	return len(x.vectors)
}

func (x *Index) Dimension() int {
	return x.dimension
}

func (x *Index) Model() string {
	return x.embedder.Model()
}

// Vectors returns the indexed vectors in ordinal order. The slices must not
// be modified.
func (x *Index) Vectors() [][]float32 {
	return x.vectors
}

// Query returns the k nearest chunks to text, nearest first. Equal
// distances are ordered by ordinal. k is clamped to the corpus size and
// k <= 0 means DefaultTopK.
func (x *Index) Query(ctx context.Context, text string, k int) ([]Hit, error) {
	return x.query(ctx, text, k, nil)
}

// QuerySubset ranks only the given ordinals.
func (x *Index) QuerySubset(ctx context.Context, text string, k int, ordinals []int) ([]Hit, error) {
	if len(ordinals) == 0 {
		return nil, nil
	}

	return x.query(ctx, text, k, ordinals)
}

func (x *Index) query(ctx context.Context, text string, k int, ordinals []int) ([]Hit, error) {
	q, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(q) != x.dimension {
		return nil, fmt.Errorf("%w: query has %d values, index has %d", ErrDimensionMismatch, len(q), x.dimension)
	}

	var hits []Hit
	if ordinals == nil {
		hits = make([]Hit, len(x.vectors))
		for i, v := range x.vectors {
			hits[i] = Hit{Ordinal: i, Distance: distance(q, v)}
		}
	} else {
		hits = make([]Hit, 0, len(ordinals))
		for _, i := range ordinals {
			if i < 0 || i >= len(x.vectors) {
				continue
			}
			hits = append(hits, Hit{Ordinal: i, Distance: distance(q, x.vectors[i])})
		}
	}

	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Distance != hits[b].Distance {
			return hits[a].Distance < hits[b].Distance
		}
		return hits[a].Ordinal < hits[b].Ordinal
	})

	if k <= 0 {
		k = DefaultTopK
	}
	if k > len(hits) {
		k = len(hits)
	}

	return hits[:k], nil
}

// distance is the squared euclidean distance, accumulated in float64.
func distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}

	return sum
}
