package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/imkonsowa/restaurant-qa/models"
)

// File reads the catalog from a JSON document holding either a list of
// restaurants or an object with a "restaurants" list.
type File struct {
	Path string
}

func NewFile(path string) *File {
	return &File{Path: path}
}

func (f *File) Load(ctx context.Context) ([]models.Restaurant, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	return Decode(data)
}

// Decode parses a catalog document. Records that fail to decode are logged
// and skipped; only a document that is not a list at all is an error.
func Decode(data []byte) ([]models.Restaurant, error) {
	data = bytes.TrimSpace(data)

	var records []json.RawMessage
	if len(data) > 0 && data[0] == '{' {
		var wrapper struct {
			Restaurants []json.RawMessage `json:"restaurants"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, fmt.Errorf("decode catalog: %w", err)
		}
		records = wrapper.Restaurants
	} else if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	restaurants := make([]models.Restaurant, 0, len(records))
	for i, record := range records {
		var r models.Restaurant
		if err := json.Unmarshal(record, &r); err != nil {
			slog.Warn("skipping malformed restaurant record", "index", i, "err", err)
			continue
		}
		restaurants = append(restaurants, r)
	}

	return restaurants, nil
}
