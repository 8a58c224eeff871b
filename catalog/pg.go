package catalog

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/imkonsowa/restaurant-qa/models"
	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type restaurantRow struct {
	ID             uint64         `gorm:"primaryKey"`
	Name           string         `gorm:"uniqueIndex"`
	DietaryOptions pq.StringArray `gorm:"type:text[]"`
	PriceRange     string
	Address        string
	OpeningHours   string
	Image          string
	Phone          string
	Rating         string
	Location       *models.Location
	MenuItems      []menuItemRow `gorm:"foreignKey:RestaurantID"`
}

func (r *restaurantRow) TableName() string {
	return "restaurants"
}

type menuItemRow struct {
	ID           uint64 `gorm:"primaryKey"`
	RestaurantID uint64 `gorm:"index"`
	Name         string
	Description  string
	Price        *float64
	VegNonVeg    string
	Category     string
	SpiceLevel   *int
}

func (m *menuItemRow) TableName() string {
	return "menu_items"
}

// Postgres reads the catalog from the restaurants and menu_items tables.
type Postgres struct {
	db *gorm.DB
}

func NewPostgres(connStr string) (*Postgres, error) {
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Silent,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
			Colorful:                  true,
		},
	)

	db, err := gorm.Open(postgres.Open(connStr), &gorm.Config{
		Logger: newLogger,
	})
	if err != nil {
		return nil, err
	}

	return &Postgres{db: db}, nil
}

func (p *Postgres) DB() *gorm.DB {
	return p.db
}

func (p *Postgres) Migrate(ctx context.Context) error {
	return p.db.WithContext(ctx).AutoMigrate(&restaurantRow{}, &menuItemRow{})
}

func (p *Postgres) Load(ctx context.Context) ([]models.Restaurant, error) {
	var rows []restaurantRow
	err := p.db.WithContext(ctx).
		Preload("MenuItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("menu_items.id")
		}).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load restaurants: %w", err)
	}

	restaurants := make([]models.Restaurant, len(rows))
	for i, row := range rows {
		restaurants[i] = row.toModel()
	}

	return restaurants, nil
}

// Import writes restaurants and their menus in one transaction. Existing
// restaurants with the same name are replaced.
func (p *Postgres) Import(ctx context.Context, restaurants []models.Restaurant) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, r := range restaurants {
			var existing restaurantRow
			if err := tx.Where("name = ?", r.Name).Limit(1).Find(&existing).Error; err != nil {
				return fmt.Errorf("failed to look up restaurant %q: %w", r.Name, err)
			}
			if existing.ID != 0 {
				if err := tx.Where("restaurant_id = ?", existing.ID).Delete(&menuItemRow{}).Error; err != nil {
					return fmt.Errorf("failed to delete menu items: %w", err)
				}
				if err := tx.Delete(&existing).Error; err != nil {
					return fmt.Errorf("failed to delete restaurant: %w", err)
				}
			}

			row := fromModel(r)
			create := tx
			if row.Location == nil {
				create = tx.Omit("Location")
			}
			if err := create.Create(&row).Error; err != nil {
				return fmt.Errorf("failed to create restaurant: %w", err)
			}
		}

		return nil
	})
}

func (r restaurantRow) toModel() models.Restaurant {
	restaurant := models.Restaurant{
		Name:           r.Name,
		DietaryOptions: []string(r.DietaryOptions),
		PriceRange:     r.PriceRange,
		Address:        r.Address,
		OpeningHours:   r.OpeningHours,
		Image:          r.Image,
		Phone:          r.Phone,
		Rating:         r.Rating,
		Location:       r.Location,
		Menu:           make([]models.MenuItem, len(r.MenuItems)),
	}

	for i, m := range r.MenuItems {
		restaurant.Menu[i] = models.MenuItem{
			Name:        m.Name,
			Description: m.Description,
			Price:       m.Price,
			Attributes: models.Attributes{
				VegNonVeg:  models.ParseVegClass(m.VegNonVeg),
				Category:   m.Category,
				SpiceLevel: m.SpiceLevel,
			},
		}
	}

	return restaurant
}

func fromModel(r models.Restaurant) restaurantRow {
	row := restaurantRow{
		Name:           r.Name,
		DietaryOptions: pq.StringArray(r.DietaryOptions),
		PriceRange:     r.PriceRange,
		Address:        r.Address,
		OpeningHours:   r.OpeningHours,
		Image:          r.Image,
		Phone:          r.Phone,
		Rating:         r.Rating,
		Location:       r.Location,
		MenuItems:      make([]menuItemRow, len(r.Menu)),
	}

	for i, m := range r.Menu {
		row.MenuItems[i] = menuItemRow{
			Name:        m.Name,
			Description: m.Description,
			Price:       m.Price,
			VegNonVeg:   string(m.Attributes.VegNonVeg),
			Category:    m.Attributes.Category,
			SpiceLevel:  m.Attributes.SpiceLevel,
		}
	}

	return row
}
