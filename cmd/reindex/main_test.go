package main

import (
	"context"
	"strings"
	"testing"

	"github.com/imkonsowa/restaurant-qa/chunker"
	"github.com/imkonsowa/restaurant-qa/models"
	"github.com/imkonsowa/restaurant-qa/snapshot"
	"github.com/imkonsowa/restaurant-qa/vectorindex"
)

type unitEmbedder struct{}

func (unitEmbedder) Model() string {
	return "nomic-embed-text"
}

func (unitEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1}, nil
}

func TestStaleReason(t *testing.T) {
	chunks := chunker.Build([]models.Restaurant{{
		Name: "Spice Route",
		Menu: []models.MenuItem{{Name: "Paneer Tikka"}},
	}})

	idx, err := vectorindex.Build(context.Background(), unitEmbedder{}, chunks.Texts(), vectorindex.Options{})
	if err != nil {
		t.Fatal(err)
	}
	rows, err := snapshot.Rows(chunks, idx)
	if err != nil {
		t.Fatal(err)
	}

	if got := staleReason(rows, chunks, "nomic-embed-text"); got != "" {
		t.Errorf("staleReason() = %q for a current snapshot", got)
	}
	if got := staleReason(nil, chunks, "nomic-embed-text"); !strings.Contains(got, "stale") {
		t.Errorf("staleReason() = %q for an empty snapshot", got)
	}
	if got := staleReason(rows, chunks, "mxbai-embed-large"); !strings.Contains(got, "mxbai-embed-large") {
		t.Errorf("staleReason() = %q for another model", got)
	}
}
