package vectorindex

import (
	"context"
	"errors"
	"hash/fnv"
	"testing"
)

// hashEmbedder maps a text to a deterministic vector, so identical texts
// embed identically and different texts land apart.
type hashEmbedder struct {
	dimension int
}

func (h hashEmbedder) Model() string {
	return "hash"
}

func (h hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, h.dimension)
	for i := range v {
		f := fnv.New32a()
		f.Write([]byte{byte(i)})
		f.Write([]byte(text))
		v[i] = float32(f.Sum32()%1000) / 1000
	}

	return v, nil
}

var corpus = []string{
	"Restaurant: Spice Route. Dish: Paneer Tikka.",
	"Restaurant: Spice Route. Dish: Chicken 65.",
	"Restaurant: Green Bowl. Dish: Quinoa Salad.",
	"Restaurant: Green Bowl. Dish: Falafel Wrap.",
	"Restaurant: Toit. Dish: Wings.",
	"Restaurant: Toit. Dish: Nachos.",
}

func buildTestIndex(t *testing.T) *Index {
	t.Helper()

	idx, err := Build(context.Background(), hashEmbedder{dimension: 16}, corpus, Options{Workers: 3})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	return idx
}

func TestSelfRetrieval(t *testing.T) {
	idx := buildTestIndex(t)

	for i, text := range corpus {
		hits, err := idx.Query(context.Background(), text, 1)
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		if len(hits) != 1 || hits[0].Ordinal != i || hits[0].Distance != 0 {
			t.Errorf("Query(corpus[%d]) = %+v, want ordinal %d at distance 0", i, hits, i)
		}
	}
}

func TestQueryOrderingAndClamp(t *testing.T) {
	idx := buildTestIndex(t)

	tests := []struct {
		name string
		k    int
		want int
	}{
		{name: "top three", k: 3, want: 3},
		{name: "default", k: 0, want: DefaultTopK},
		{name: "negative", k: -2, want: DefaultTopK},
		{name: "beyond corpus", k: 100, want: len(corpus)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := idx.Query(context.Background(), "spicy starters", tt.k)
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			if len(hits) != tt.want {
				t.Fatalf("Query() returned %d hits, want %d", len(hits), tt.want)
			}
			for i := 1; i < len(hits); i++ {
				if hits[i].Distance < hits[i-1].Distance {
					t.Errorf("distances not non-decreasing at %d: %+v", i, hits)
				}
			}
		})
	}
}

func TestTiesBreakByOrdinal(t *testing.T) {
	vectors := [][]float32{{1, 0}, {0, 1}, {1, 0}}
	idx, err := FromVectors(fixedEmbedder{v: []float32{1, 0}}, vectors, 0)
	if err != nil {
		t.Fatal(err)
	}

	hits, err := idx.Query(context.Background(), "anything", 3)
	if err != nil {
		t.Fatal(err)
	}
	if hits[0].Ordinal != 0 || hits[1].Ordinal != 2 || hits[2].Ordinal != 1 {
		t.Errorf("Query() = %+v, want ordinals 0, 2, 1", hits)
	}
}

func TestQuerySubset(t *testing.T) {
	idx := buildTestIndex(t)

	hits, err := idx.QuerySubset(context.Background(), corpus[4], 10, []int{2, 4, 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 3 || hits[0].Ordinal != 4 {
		t.Errorf("QuerySubset() = %+v, want 3 hits led by ordinal 4", hits)
	}
	for _, h := range hits {
		if h.Ordinal != 2 && h.Ordinal != 4 && h.Ordinal != 5 {
			t.Errorf("QuerySubset() returned ordinal %d outside the subset", h.Ordinal)
		}
	}

	hits, err = idx.QuerySubset(context.Background(), corpus[0], 3, nil)
	if err != nil || hits != nil {
		t.Errorf("QuerySubset(nil) = %v, %v", hits, err)
	}
}

type fixedEmbedder struct {
	v []float32
}

func (f fixedEmbedder) Model() string {
	return "fixed"
}

func (f fixedEmbedder) Embed(context.Context, string) ([]float32, error) {
	return f.v, nil
}

func TestDimensionMismatch(t *testing.T) {
	if _, err := FromVectors(fixedEmbedder{}, [][]float32{{1, 2}, {1, 2, 3}}, 0); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("FromVectors() error = %v, want ErrDimensionMismatch", err)
	}

	_, err := Build(context.Background(), hashEmbedder{dimension: 8}, corpus, Options{Dimension: 768})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Build() error = %v, want ErrDimensionMismatch", err)
	}

	idx, err := FromVectors(fixedEmbedder{v: []float32{1, 2, 3}}, [][]float32{{1, 2}}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := idx.Query(context.Background(), "q", 1); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Query() error = %v, want ErrDimensionMismatch", err)
	}
}

func TestEmptyIndex(t *testing.T) {
	if _, err := Build(context.Background(), hashEmbedder{dimension: 4}, nil, Options{}); !errors.Is(err, ErrEmptyIndex) {
		t.Errorf("Build() error = %v, want ErrEmptyIndex", err)
	}
}
