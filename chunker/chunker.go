package chunker

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/imkonsowa/restaurant-qa/models"
)

// Metadata is the structured side of a chunk, used for filtering and for
// citing the source when the context is assembled.
type Metadata struct {
	Restaurant string          `json:"restaurant"`
	Item       string          `json:"item"`
	Price      *float64        `json:"price,omitempty"`
	VegNonVeg  models.VegClass `json:"veg_non_veg,omitempty"`
	SpiceLevel *int            `json:"spice_level,omitempty"`
	Rating     string          `json:"rating,omitempty"`
	Category   string          `json:"category,omitempty"`
}

type Chunk struct {
	Ordinal  int      `json:"ordinal"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// Position locates a dish in the restaurant list a Store was built from.
type Position struct {
	Restaurant int
	Item       int
}

// Store holds chunk texts and metadata in two parallel slices. Position i
// in either slice is chunk ordinal i, which is also the vector index
// position.
type Store struct {
	texts     []string
	metadata  []Metadata
	positions map[Position]int
}

// Build renders one chunk per named menu item, in catalog order.
func Build(restaurants []models.Restaurant) *Store {
	s := &Store{positions: make(map[Position]int)}

	for ri, r := range restaurants {
		for i, item := range r.Menu {
			if strings.TrimSpace(item.Name) == "" {
				slog.Warn("skipping menu item without a name", "restaurant", r.Name, "position", i)
				continue
			}

			s.positions[Position{Restaurant: ri, Item: i}] = len(s.texts)
			s.texts = append(s.texts, Render(r, item))
			s.metadata = append(s.metadata, Metadata{
				Restaurant: r.Name,
				Item:       item.Name,
				Price:      item.Price,
				VegNonVeg:  item.Attributes.VegNonVeg,
				SpiceLevel: item.Attributes.SpiceLevel,
				Rating:     r.Rating,
				Category:   item.Attributes.Category,
			})
		}
	}

	slog.Debug("chunks built", "count", len(s.texts))

	return s
}

// Render is the text embedded for a dish. Absent optional fields are left
// out rather than printed as placeholders.
func Render(r models.Restaurant, item models.MenuItem) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Restaurant: %s. Dish: %s.", r.Name, item.Name)
	if item.Description != "" {
		fmt.Fprintf(&b, " Description: %s.", strings.TrimSuffix(item.Description, "."))
	}
	if item.Price != nil {
		fmt.Fprintf(&b, " Price: ₹%s.", FormatPrice(*item.Price))
	}
	if item.Attributes.VegNonVeg != models.VegUnknown {
		fmt.Fprintf(&b, " %s.", item.Attributes.VegNonVeg)
	}
	if item.Attributes.SpiceLevel != nil {
		fmt.Fprintf(&b, " Spice level: %d.", *item.Attributes.SpiceLevel)
	}
	if item.Attributes.Category != "" {
		fmt.Fprintf(&b, " Category: %s.", item.Attributes.Category)
	}
	if r.Rating != "" {
		fmt.Fprintf(&b, " Restaurant rating: %s.", r.Rating)
	}
	if r.PriceRange != "" {
		fmt.Fprintf(&b, " Price range: %s.", r.PriceRange)
	}
	if len(r.DietaryOptions) > 0 {
		fmt.Fprintf(&b, " Dietary options: %s.", strings.Join(r.DietaryOptions, ", "))
	}

	return b.String()
}

func FormatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

func (s *Store) Len() int {
	return len(s.texts)
}

// Texts returns the chunk texts in ordinal order. The slice must not be
// modified.
func (s *Store) Texts() []string {
	return s.texts
}

// Ordinal returns the chunk of the item-th dish of the restaurant-th
// restaurant. Dishes that share a name have distinct ordinals.
func (s *Store) Ordinal(restaurant, item int) (int, bool) {
	o, ok := s.positions[Position{Restaurant: restaurant, Item: item}]
	return o, ok
}

func (s *Store) Metadata(ordinal int) Metadata {
	return s.metadata[ordinal]
}

func (s *Store) Chunk(ordinal int) Chunk {
	return Chunk{
		Ordinal:  ordinal,
		Text:     s.texts[ordinal],
		Metadata: s.metadata[ordinal],
	}
}

// Filter returns the ordinals whose metadata satisfies keep, ascending.
func (s *Store) Filter(keep func(Metadata) bool) []int {
	var ordinals []int
	for i, m := range s.metadata {
		if keep(m) {
			ordinals = append(ordinals, i)
		}
	}

	return ordinals
}
