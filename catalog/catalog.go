package catalog

import (
	"context"
	"log/slog"

	"github.com/imkonsowa/restaurant-qa/models"
)

// Source produces the restaurant list the engine is built from.
type Source interface {
	Load(ctx context.Context) ([]models.Restaurant, error)
}

// Catalog is the read-only object graph shared by every request after
// startup. It is never mutated once New returns.
type Catalog struct {
	restaurants []models.Restaurant
	byName      map[string]int
}

func New(restaurants []models.Restaurant) *Catalog {
	c := &Catalog{
		restaurants: make([]models.Restaurant, 0, len(restaurants)),
		byName:      make(map[string]int, len(restaurants)),
	}

	for _, r := range restaurants {
		key := models.Normalize(r.Name)
		if key == "" {
			slog.Warn("skipping restaurant without a name", "address", r.Address)
			continue
		}
		if _, ok := c.byName[key]; ok {
			slog.Warn("duplicate restaurant name, keeping the first record", "name", r.Name)
			continue
		}

		c.byName[key] = len(c.restaurants)
		c.restaurants = append(c.restaurants, r)
	}

	return c
}

func Load(ctx context.Context, source Source) (*Catalog, error) {
	restaurants, err := source.Load(ctx)
	if err != nil {
		return nil, err
	}

	c := New(restaurants)
	slog.Info("catalog loaded", "restaurants", len(c.restaurants), "menu_items", c.ItemCount())

	return c, nil
}

func (c *Catalog) Restaurants() []models.Restaurant {
	return c.restaurants
}

// Find looks a restaurant up by name, ignoring case and punctuation.
func (c *Catalog) Find(name string) (*models.Restaurant, bool) {
	i, ok := c.byName[models.Normalize(name)]
	if !ok {
		return nil, false
	}

	return &c.restaurants[i], true
}

func (c *Catalog) Names() []string {
	names := make([]string, len(c.restaurants))
	for i, r := range c.restaurants {
		names[i] = r.Name
	}

	return names
}

func (c *Catalog) ItemCount() int {
	var n int
	for _, r := range c.restaurants {
		n += len(r.Menu)
	}

	return n
}
