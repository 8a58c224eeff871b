package intent

import (
	"fmt"
	"strings"
)

type Kind string

const (
	NoMatch       Kind = "no-match"
	SpiceCompare  Kind = "spice-compare"
	RatingCompare Kind = "rating-compare"
	PriceCompare  Kind = "price-compare"
	PriceRange    Kind = "price-range"
	DishPrice     Kind = "dish-price"
	MenuLookup    Kind = "menu-lookup"
	RatingFilter  Kind = "rating-filter"
	PriceFilter   Kind = "price-filter"
	DietaryFilter Kind = "dietary-filter"
)

type Comparator string

const (
	Below   Comparator = "<"
	AtMost  Comparator = "<="
	Above   Comparator = ">"
	AtLeast Comparator = ">="
)

// Holds reports whether value satisfies the comparison against threshold.
func (c Comparator) Holds(value, threshold float64) bool {
	switch c {
	case Below:
		return value < threshold
	case AtMost:
		return value <= threshold
	case Above:
		return value > threshold
	case AtLeast:
		return value >= threshold
	}

	return false
}

func (c Comparator) Phrase() string {
	switch c {
	case Below:
		return "under"
	case AtMost:
		return "at most"
	case Above:
		return "above"
	case AtLeast:
		return "at least"
	}

	return string(c)
}

// Descriptor is the parsed shape of a question. Which fields are set
// depends on Kind. Restaurant and dish names hold the canonical catalog
// spelling when they could be resolved, otherwise the phrase as written.
type Descriptor struct {
	Kind        Kind       `json:"kind"`
	Restaurants []string   `json:"restaurants,omitempty"`
	Dish        string     `json:"dish,omitempty"`
	Comparator  Comparator `json:"comparator,omitempty"`
	Threshold   float64    `json:"threshold,omitempty"`
	Dietary     string     `json:"dietary,omitempty"`
	Keyword     string     `json:"keyword,omitempty"`
}

func (d Descriptor) Structured() bool {
	return d.Kind != NoMatch
}

// HasThreshold reports whether a numeric comparison was extracted.
func (d Descriptor) HasThreshold() bool {
	return d.Comparator != ""
}

func (d Descriptor) String() string {
	var parts []string
	if len(d.Restaurants) > 0 {
		parts = append(parts, "restaurants="+strings.Join(d.Restaurants, "|"))
	}
	if d.Dish != "" {
		parts = append(parts, "dish="+d.Dish)
	}
	if d.HasThreshold() {
		parts = append(parts, fmt.Sprintf("%s%g", d.Comparator, d.Threshold))
	}
	if d.Dietary != "" {
		parts = append(parts, "dietary="+d.Dietary)
	}
	if d.Keyword != "" {
		parts = append(parts, "keyword="+d.Keyword)
	}
	if len(parts) == 0 {
		return string(d.Kind)
	}

	return string(d.Kind) + "(" + strings.Join(parts, " ") + ")"
}
