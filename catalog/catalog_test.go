package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/imkonsowa/restaurant-qa/models"
)

const sampleCatalog = `[
	{"name": "Spice Route", "rating": "4.3/5", "price_range": "₹400 for two",
	 "menu": [{"name": "Paneer Tikka", "price": 250}, {"name": "Chicken 65", "price": 300}]},
	{"name": "Green Bowl", "rating": "New", "menu": [{"name": "Quinoa Salad"}]},
	"not a restaurant",
	{"name": "spice route!", "menu": []},
	{"name": "", "menu": [{"name": "Ghost dish"}]}
]`

func TestDecodeAndNew(t *testing.T) {
	restaurants, err := Decode([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(restaurants) != 4 {
		t.Fatalf("Decode() returned %d records, want 4 (malformed record skipped)", len(restaurants))
	}

	c := New(restaurants)
	if got := len(c.Restaurants()); got != 2 {
		t.Fatalf("New() kept %d restaurants, want 2 (duplicate and nameless dropped)", got)
	}
	if got := c.ItemCount(); got != 3 {
		t.Errorf("ItemCount() = %d, want 3", got)
	}

	names := c.Names()
	if names[0] != "Spice Route" || names[1] != "Green Bowl" {
		t.Errorf("Names() = %v, want catalog order", names)
	}
}

func TestDecodeKeepsRecordsWithDriftedFields(t *testing.T) {
	payload := `[
		{"name": "Udupi Corner", "menu": [{"name": "Idli", "description": 5, "price": 40}, {"name": "Vada", "price": 50}]},
		{"name": "Toit", "price_range": 2, "address": ["100 Feet Road", "Indiranagar"], "menu": [{"name": "Wings"}]},
		{"name": "Pongal House", "image": {"url": "x.png"}, "menu": ["Pongal", {"name": "Pongal", "price": 80}, {"price": 10}]}
	]`

	restaurants, err := Decode([]byte(payload))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(restaurants) != 3 {
		t.Fatalf("Decode() returned %d records, want 3", len(restaurants))
	}

	udupi := restaurants[0]
	if len(udupi.Menu) != 2 || udupi.Menu[0].Description != "5" {
		t.Errorf("Udupi Corner menu = %+v", udupi.Menu)
	}

	toit := restaurants[1]
	if toit.PriceRange != "2" || toit.Address != "100 Feet Road, Indiranagar" || len(toit.Menu) != 1 {
		t.Errorf("Toit = %+v", toit)
	}

	// the bare string and the nameless entry are dropped, the rest stays
	pongal := restaurants[2]
	if pongal.Image != "" || len(pongal.Menu) != 1 || pongal.Menu[0].Name != "Pongal" {
		t.Errorf("Pongal House = %+v", pongal)
	}
}

func TestDecodeWrapped(t *testing.T) {
	restaurants, err := Decode([]byte(`{"restaurants": [{"name": "Cafe One", "menu": []}]}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(restaurants) != 1 || restaurants[0].Name != "Cafe One" {
		t.Errorf("Decode() = %+v", restaurants)
	}
}

func TestDecodeRejectsNonList(t *testing.T) {
	if _, err := Decode([]byte(`"hello"`)); err == nil {
		t.Error("Decode() expected an error for a scalar document")
	}
}

func TestFind(t *testing.T) {
	c := New([]models.Restaurant{{Name: "The Bombay Canteen"}, {Name: "Toit"}})

	tests := []struct {
		query string
		want  string
		found bool
	}{
		{query: "the bombay canteen", want: "The Bombay Canteen", found: true},
		{query: "  THE BOMBAY-CANTEEN ", want: "The Bombay Canteen", found: true},
		{query: "toit", want: "Toit", found: true},
		{query: "bombay", found: false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r, ok := c.Find(tt.query)
			if ok != tt.found {
				t.Fatalf("Find(%q) found = %v, want %v", tt.query, ok, tt.found)
			}
			if ok && r.Name != tt.want {
				t.Errorf("Find(%q) = %q, want %q", tt.query, r.Name, tt.want)
			}
		})
	}
}

func TestFileLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "restaurants.json")
	if err := os.WriteFile(path, []byte(sampleCatalog), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(context.Background(), NewFile(path))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(c.Restaurants()) != 2 {
		t.Errorf("Load() kept %d restaurants", len(c.Restaurants()))
	}

	if _, err := Load(context.Background(), NewFile(filepath.Join(t.TempDir(), "missing.json"))); err == nil {
		t.Error("Load() expected an error for a missing file")
	}
}

func TestRowRoundTrip(t *testing.T) {
	price := 120.0
	spice := 3
	in := models.Restaurant{
		Name:           "Toit",
		DietaryOptions: []string{"Vegan"},
		Rating:         "4.5",
		Menu: []models.MenuItem{{
			Name:  "Wings",
			Price: &price,
			Attributes: models.Attributes{
				VegNonVeg:  models.NonVeg,
				Category:   "Starters",
				SpiceLevel: &spice,
			},
		}},
	}

	out := fromModel(in).toModel()
	if out.Name != in.Name || out.Rating != in.Rating || len(out.DietaryOptions) != 1 {
		t.Errorf("restaurant round trip = %+v", out)
	}
	if len(out.Menu) != 1 {
		t.Fatalf("menu round trip = %+v", out.Menu)
	}
	item := out.Menu[0]
	if item.Attributes.VegNonVeg != models.NonVeg || *item.Attributes.SpiceLevel != 3 || *item.Price != 120 {
		t.Errorf("menu item round trip = %+v", item)
	}
}
