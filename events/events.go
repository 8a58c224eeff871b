package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// CatalogChanged tells the embedder that the catalog differs from the
// indexed snapshot.
type CatalogChanged struct {
	Table  string    `json:"table,omitempty"`
	Kind   string    `json:"kind,omitempty"`
	ID     uint64    `json:"id,omitempty"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

func (e CatalogChanged) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode catalog event: %w", err)
	}

	return data, nil
}

func DecodeCatalogChanged(data []byte) (CatalogChanged, error) {
	var e CatalogChanged
	if err := json.Unmarshal(data, &e); err != nil {
		return CatalogChanged{}, fmt.Errorf("failed to decode catalog event: %w", err)
	}

	return e, nil
}
