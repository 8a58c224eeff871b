package snapshot

import (
	"context"
	"errors"
	"hash/fnv"
	"testing"

	"github.com/imkonsowa/restaurant-qa/chunker"
	"github.com/imkonsowa/restaurant-qa/models"
	"github.com/imkonsowa/restaurant-qa/vectorindex"
	"github.com/pgvector/pgvector-go"
)

type lengthEmbedder struct{}

func (lengthEmbedder) Model() string {
	return "length"
}

func (lengthEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f := fnv.New32a()
	f.Write([]byte(text))

	return []float32{float32(len(text)), float32(f.Sum32() % 1000), 1}, nil
}

func testChunks() *chunker.Store {
	price := 150.0
	return chunker.Build([]models.Restaurant{
		{
			Name: "Spice Route",
			Menu: []models.MenuItem{
				{Name: "Paneer Tikka", Price: &price},
				{Name: "Chicken 65"},
			},
		},
		{
			Name: "Green Bowl",
			Menu: []models.MenuItem{{Name: "Quinoa Salad"}},
		},
	})
}

func testRows(t *testing.T) (*chunker.Store, []Row) {
	t.Helper()

	chunks := testChunks()
	idx, err := vectorindex.Build(context.Background(), lengthEmbedder{}, chunks.Texts(), vectorindex.Options{})
	if err != nil {
		t.Fatalf("vectorindex.Build() error = %v", err)
	}

	rows, err := Rows(chunks, idx)
	if err != nil {
		t.Fatalf("Rows() error = %v", err)
	}

	return chunks, rows
}

func TestRows(t *testing.T) {
	chunks, rows := testRows(t)

	if len(rows) != chunks.Len() {
		t.Fatalf("got %d rows for %d chunks", len(rows), chunks.Len())
	}
	for i, row := range rows {
		m := chunks.Metadata(i)
		if row.Ordinal != i || row.Restaurant != m.Restaurant || row.Item != m.Item {
			t.Errorf("row %d = %+v, want chunk %d of %s / %s", i, row, i, m.Restaurant, m.Item)
		}
		if row.Model != "length" || row.Dimension != 3 || len(row.Embedding.Slice()) != 3 {
			t.Errorf("row %d model %q dimension %d", i, row.Model, row.Dimension)
		}
	}
}

func TestVectorsRoundTrip(t *testing.T) {
	chunks, rows := testRows(t)

	vectors, dimension, err := Vectors(rows, chunks.Texts(), "length")
	if err != nil {
		t.Fatalf("Vectors() error = %v", err)
	}
	if dimension != 3 || len(vectors) != chunks.Len() {
		t.Fatalf("got %d vectors of dimension %d", len(vectors), dimension)
	}

	idx, err := vectorindex.FromVectors(lengthEmbedder{}, vectors, dimension)
	if err != nil {
		t.Fatalf("FromVectors() error = %v", err)
	}
	hits, err := idx.Query(context.Background(), chunks.Texts()[1], 1)
	if err != nil {
		t.Fatal(err)
	}
	if hits[0].Ordinal != 1 || hits[0].Distance != 0 {
		t.Errorf("restored index returned %+v for its own chunk", hits[0])
	}
}

func TestVectorsRejectsStaleSnapshots(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(rows []Row, texts []string) ([]Row, []string)
		model  string
		want   error
	}{
		{
			name: "chunk added",
			mutate: func(rows []Row, texts []string) ([]Row, []string) {
				return rows, append(texts, "Restaurant: Toit. Dish: Wings.")
			},
			want: ErrStale,
		},
		{
			name: "text changed",
			mutate: func(rows []Row, texts []string) ([]Row, []string) {
				texts[2] = texts[2] + " Price: ₹90."
				return rows, texts
			},
			want: ErrStale,
		},
		{
			name: "ordinal gap",
			mutate: func(rows []Row, texts []string) ([]Row, []string) {
				rows[1].Ordinal = 7
				return rows, texts
			},
			want: ErrStale,
		},
		{
			name:  "other model",
			model: "nomic-embed-text",
			want:  ErrStale,
		},
		{
			name: "dimension drift",
			mutate: func(rows []Row, texts []string) ([]Row, []string) {
				rows[2].Embedding = pgvector.NewVector([]float32{1, 2})
				return rows, texts
			},
			want: vectorindex.ErrDimensionMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, rows := testRows(t)
			texts := append([]string(nil), chunks.Texts()...)
			if tt.mutate != nil {
				rows, texts = tt.mutate(rows, texts)
			}
			model := tt.model
			if model == "" {
				model = "length"
			}

			if _, _, err := Vectors(rows, texts, model); !errors.Is(err, tt.want) {
				t.Errorf("Vectors() error = %v, want %v", err, tt.want)
			}
		})
	}
}
