package models

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Location struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

func NewGeoPoint(lng, lat float64) Location {
	return Location{
		Lon: lng,
		Lat: lat,
	}
}

func (g *Location) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case string:
		var err error
		data, err = hex.DecodeString(v)
		if err != nil {
			return err
		}
	case []byte:
		data = v
	default:
		return fmt.Errorf("expected string or []byte, got %T", value)
	}

	t, err := ewkb.Unmarshal(data)
	if err != nil {
		return err
	}

	if point, ok := t.(*geom.Point); ok {
		g.Lon = point.X()
		g.Lat = point.Y()

		return nil
	}

	return fmt.Errorf("expected Point, got %T", t)
}

func (loc Location) GormDataType() string {
	return "geometry"
}

func (loc Location) GormValue(ctx context.Context, db *gorm.DB) clause.Expr {
	return clause.Expr{
		SQL:  "ST_PointFromText(?)",
		Vars: []interface{}{fmt.Sprintf("POINT(%f %f)", loc.Lon, loc.Lat)},
	}
}

// VegClass is the veg/non-veg classification of a dish.
type VegClass string

const (
	VegUnknown VegClass = ""
	Veg        VegClass = "Veg"
	NonVeg     VegClass = "Non-Veg"
)

func ParseVegClass(s string) VegClass {
	n := strings.Join(strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r < 'a' || r > 'z'
	}), "")

	switch n {
	case "veg", "vegetarian", "v", "pureveg":
		return Veg
	case "nonveg", "nonvegetarian", "nv":
		return NonVeg
	}

	return VegUnknown
}

func (v *VegClass) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// booleans and numbers are not a classification
		*v = VegUnknown
		return nil
	}

	*v = ParseVegClass(s)
	return nil
}

type Attributes struct {
	VegNonVeg  VegClass `json:"veg_non_veg"`
	Category   string   `json:"category"`
	SpiceLevel *int     `json:"spice_level,omitempty"`
}

func (a *Attributes) UnmarshalJSON(data []byte) error {
	var raw struct {
		VegNonVeg  VegClass        `json:"veg_non_veg"`
		Veg        VegClass        `json:"veg"`
		Category   string          `json:"category"`
		SpiceLevel json.RawMessage `json:"spice_level"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	a.VegNonVeg = raw.VegNonVeg
	if a.VegNonVeg == VegUnknown {
		a.VegNonVeg = raw.Veg
	}
	a.Category = strings.TrimSpace(raw.Category)

	if f, ok := parseLooseNumber(raw.SpiceLevel); ok {
		level := int(f)
		a.SpiceLevel = &level
	}

	return nil
}

// ErrUnnamedItem rejects a menu entry with neither "name" nor "item".
var ErrUnnamedItem = errors.New("menu item has no name")

type MenuItem struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Price       *float64   `json:"price,omitempty"`
	Attributes  Attributes `json:"attributes"`
}

func (m *MenuItem) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name        json.RawMessage `json:"name"`
		Item        json.RawMessage `json:"item"`
		Description json.RawMessage `json:"description"`
		Price       json.RawMessage `json:"price"`
		Attributes  json.RawMessage `json:"attributes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	m.Name = looseText(raw.Name)
	if m.Name == "" {
		m.Name = looseText(raw.Item)
	}
	if m.Name == "" {
		return ErrUnnamedItem
	}
	m.Description = looseText(raw.Description)

	if f, ok := parseLooseNumber(raw.Price); ok {
		m.Price = &f
	}

	if len(raw.Attributes) > 0 && !bytes.Equal(raw.Attributes, []byte("null")) {
		if err := json.Unmarshal(raw.Attributes, &m.Attributes); err != nil {
			// a broken attributes record leaves the dish usable
			m.Attributes = Attributes{}
		}
	}

	return nil
}

// Stringify renders the dish for display, e.g. "Paneer Tikka (₹250.00)".
func (m *MenuItem) Stringify() string {
	if m.Price == nil {
		return m.Name
	}

	return fmt.Sprintf("%s (₹%.2f)", m.Name, *m.Price)
}

type Restaurant struct {
	Name           string     `json:"name"`
	DietaryOptions []string   `json:"dietary_options,omitempty"`
	PriceRange     string     `json:"price_range,omitempty"`
	Address        string     `json:"address,omitempty"`
	OpeningHours   string     `json:"opening_hours,omitempty"`
	Image          string     `json:"image,omitempty"`
	Phone          string     `json:"phone,omitempty"`
	Rating         string     `json:"rating,omitempty"`
	Location       *Location  `json:"location,omitempty"`
	Menu           []MenuItem `json:"menu"`
}

func (r *Restaurant) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name           json.RawMessage `json:"name"`
		DietaryOptions json.RawMessage `json:"dietary_options"`
		PriceRange     json.RawMessage `json:"price_range"`
		Address        json.RawMessage `json:"address"`
		OpeningHours   json.RawMessage `json:"opening_hours"`
		Image          json.RawMessage `json:"image"`
		Phone          json.RawMessage `json:"phone"`
		Contact        json.RawMessage `json:"contact"`
		Rating         json.RawMessage `json:"rating"`
		Location       json.RawMessage `json:"location"`
		Menu           json.RawMessage `json:"menu"`
		MenuItems      json.RawMessage `json:"menu_items"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.Name = looseText(raw.Name)
	r.DietaryOptions = looseStrings(raw.DietaryOptions)
	r.PriceRange = looseText(raw.PriceRange)
	r.Address = looseText(raw.Address)
	r.OpeningHours = looseText(raw.OpeningHours)
	r.Image = looseText(raw.Image)
	r.Phone = looseText(raw.Phone)
	if r.Phone == "" {
		r.Phone = looseText(raw.Contact)
	}
	r.Rating = looseText(raw.Rating)
	r.Location = looseLocation(raw.Location)

	menu := raw.Menu
	if isEmptyJSON(menu) {
		menu = raw.MenuItems
	}
	r.Menu = r.decodeMenu(menu)

	return nil
}

// decodeMenu decodes each menu entry on its own. A malformed entry is
// logged and dropped; the rest of the menu is kept.
func (r *Restaurant) decodeMenu(raw json.RawMessage) []MenuItem {
	if isEmptyJSON(raw) {
		return nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		slog.Warn("ignoring menu that is not a list", "restaurant", r.Name, "err", err)
		return nil
	}

	menu := make([]MenuItem, 0, len(entries))
	for i, entry := range entries {
		var item MenuItem
		if err := json.Unmarshal(entry, &item); err != nil {
			slog.Warn("skipping malformed menu item", "restaurant", r.Name, "index", i, "err", err)
			continue
		}
		menu = append(menu, item)
	}

	return menu
}

// looseLocation accepts {"lon":..,"lat":..} or a [lon, lat] pair.
func looseLocation(raw json.RawMessage) *Location {
	if isEmptyJSON(raw) {
		return nil
	}

	var pair []float64
	if err := json.Unmarshal(raw, &pair); err == nil {
		if len(pair) != 2 {
			return nil
		}
		loc := NewGeoPoint(pair[0], pair[1])
		return &loc
	}

	var obj struct {
		Lon *float64 `json:"lon"`
		Lng *float64 `json:"lng"`
		Lat *float64 `json:"lat"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil || obj.Lat == nil {
		return nil
	}

	lon := obj.Lon
	if lon == nil {
		lon = obj.Lng
	}
	if lon == nil {
		return nil
	}
	loc := NewGeoPoint(*lon, *obj.Lat)

	return &loc
}

func isEmptyJSON(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

var firstNumber = regexp.MustCompile(`\d+(?:\.\d+)?`)

// RatingValue extracts the first number in the free-text rating
// ("4.3/5", "Rated 4", "4.1 (2k reviews)"). ok is false when none is found.
func (r *Restaurant) RatingValue() (float64, bool) {
	return ParseRating(r.Rating)
}

func ParseRating(s string) (float64, bool) {
	match := firstNumber.FindString(s)
	if match == "" {
		return 0, false
	}

	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}

	return v, true
}

// HasDietaryOption reports whether the restaurant lists option, compared
// after normalization ("Gluten-Free" matches "gluten free").
func (r *Restaurant) HasDietaryOption(option string) bool {
	want := Normalize(option)
	for _, o := range r.DietaryOptions {
		if Normalize(o) == want {
			return true
		}
	}

	return false
}

// AveragePrice is the mean of all priced dishes.
func (r *Restaurant) AveragePrice() (float64, bool) {
	var sum float64
	var n int
	for _, item := range r.Menu {
		if item.Price == nil {
			continue
		}
		sum += *item.Price
		n++
	}
	if n == 0 {
		return 0, false
	}

	return sum / float64(n), true
}

func (r *Restaurant) Stringify() string {
	parts := []string{"Restaurant: " + r.Name}
	if r.Rating != "" {
		parts = append(parts, "Rating: "+r.Rating)
	}
	if r.PriceRange != "" {
		parts = append(parts, "Price range: "+r.PriceRange)
	}
	if len(r.DietaryOptions) > 0 {
		parts = append(parts, "Dietary options: "+strings.Join(r.DietaryOptions, ", "))
	}
	if r.Address != "" {
		parts = append(parts, "Address: "+r.Address)
	}
	if r.OpeningHours != "" {
		parts = append(parts, "Hours: "+r.OpeningHours)
	}

	return strings.Join(parts, ", ")
}

// Normalize lowercases s and collapses every run of non-alphanumerics into
// a single space.
func Normalize(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r > 127)
	})

	return strings.Join(fields, " ")
}

func parseLooseNumber(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}

	match := firstNumber.FindString(strings.ReplaceAll(s, ",", ""))
	if match == "" {
		return 0, false
	}

	f, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}

	return f, true
}

func looseText(raw json.RawMessage) string {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, ", ")
	}

	// numbers and booleans are kept as written; objects carry no text
	switch t := bytes.TrimSpace(raw); {
	case len(t) == 0, t[0] == '{', t[0] == '[':
		return ""
	default:
		return string(t)
	}
}

func looseStrings(raw json.RawMessage) []string {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		out := list[:0]
		for _, s := range list {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		var out []string
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}

	return nil
}
