package intent

import (
	"reflect"
	"testing"
)

var (
	testRestaurants = []string{"Spice Route", "Green Bowl", "The Bombay Canteen", "Toit"}
	testDishes      = []string{"Paneer Tikka", "Quinoa Salad", "Chicken 65", "Wings"}
)

func TestParse(t *testing.T) {
	p := NewParser(testRestaurants, testDishes)

	tests := []struct {
		question string
		want     Descriptor
	}{
		{
			question: "Compare spice level of Paneer Tikka between Spice Route and Green Bowl",
			want:     Descriptor{Kind: SpiceCompare, Dish: "Paneer Tikka", Restaurants: []string{"Spice Route", "Green Bowl"}},
		},
		{
			question: "compare the ratings of spice route and toit",
			want:     Descriptor{Kind: RatingCompare, Restaurants: []string{"Spice Route", "Toit"}},
		},
		{
			question: "Is Toit rated higher than the bombay canteen?",
			want:     Descriptor{Kind: RatingCompare, Restaurants: []string{"Toit", "The Bombay Canteen"}},
		},
		{
			question: "Which one has a better rating, Spice Route or Green Bowl",
			want:     Descriptor{Kind: RatingCompare, Restaurants: []string{"Spice Route", "Green Bowl"}},
		},
		{
			question: "Which is cheaper, Toit or Green Bowl?",
			want:     Descriptor{Kind: PriceCompare, Restaurants: []string{"Toit", "Green Bowl"}},
		},
		{
			question: "compare prices of Spice Route and Toit",
			want:     Descriptor{Kind: PriceCompare, Restaurants: []string{"Spice Route", "Toit"}},
		},
		{
			question: "What is the price range of Toit",
			want:     Descriptor{Kind: PriceRange, Restaurants: []string{"Toit"}},
		},
		{
			question: "How much does Paneer Tikka cost at Spice Route?",
			want:     Descriptor{Kind: DishPrice, Dish: "Paneer Tikka", Restaurants: []string{"Spice Route"}},
		},
		{
			question: "what is the price of quinoa salad",
			want:     Descriptor{Kind: DishPrice, Dish: "Quinoa Salad"},
		},
		{
			question: "Show me the dishes at Spice Route",
			want:     Descriptor{Kind: MenuLookup, Restaurants: []string{"Spice Route"}},
		},
		{
			question: "What does Green Bowl serve",
			want:     Descriptor{Kind: MenuLookup, Restaurants: []string{"Green Bowl"}},
		},
		{
			question: "vegan dishes at Green Bowl under 300",
			want: Descriptor{
				Kind:        MenuLookup,
				Restaurants: []string{"Green Bowl"},
				Dietary:     "Vegan",
				Comparator:  Below,
				Threshold:   300,
			},
		},
		{
			question: "restaurants rated above 4",
			want:     Descriptor{Kind: RatingFilter, Comparator: Above, Threshold: 4},
		},
		{
			question: "places with 4+ stars",
			want:     Descriptor{Kind: RatingFilter, Comparator: AtLeast, Threshold: 4},
		},
		{
			question: "dishes under 200",
			want:     Descriptor{Kind: PriceFilter, Comparator: Below, Threshold: 200},
		},
		{
			question: "Show me items up to ₹250",
			want:     Descriptor{Kind: PriceFilter, Comparator: AtMost, Threshold: 250},
		},
		{
			question: "anything at least 150",
			want:     Descriptor{Kind: PriceFilter, Comparator: AtLeast, Threshold: 150},
		},
		{
			question: "veg dishes below 300",
			want:     Descriptor{Kind: PriceFilter, Comparator: Below, Threshold: 300, Dietary: "Veg"},
		},
		{
			question: "non-veg options over 1,200",
			want:     Descriptor{Kind: PriceFilter, Comparator: Above, Threshold: 1200, Dietary: "Non-Veg"},
		},
		{
			question: "show me vegan options",
			want:     Descriptor{Kind: DietaryFilter, Dietary: "Vegan"},
		},
		{
			question: "which dishes contain peanuts",
			want:     Descriptor{Kind: DietaryFilter, Keyword: "peanuts"},
		},
		{
			question: "gluten free food at Toit",
			want:     Descriptor{Kind: DietaryFilter, Dietary: "Gluten-Free", Restaurants: []string{"Toit"}},
		},
		{
			question: "what is good for a rainy day",
			want:     Descriptor{Kind: NoMatch},
		},
		{
			question: "   ",
			want:     Descriptor{Kind: NoMatch},
		},
	}

	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			got := p.Parse(tt.question)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse(%q) = %s, want %s", tt.question, got, tt.want)
			}
		})
	}
}

func TestRuleOrder(t *testing.T) {
	p := NewParser(testRestaurants, testDishes)

	// each question fits more than one rule; the earliest rule wins
	tests := []struct {
		question string
		want     Kind
	}{
		{"compare spice level of Paneer Tikka between Spice Route and Toit under 200", SpiceCompare},
		{"is Spice Route rated higher than Toit for vegan dishes under 200", RatingCompare},
		{"restaurants rated at least 4 with dishes under 500", RatingFilter},
		{"vegan dishes under 300", PriceFilter},
		{"dishes at Toit under 300", MenuLookup},
	}

	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			first := p.Parse(tt.question)
			if first.Kind != tt.want {
				t.Fatalf("Parse(%q).Kind = %s, want %s", tt.question, first.Kind, tt.want)
			}
			if again := p.Parse(tt.question); !reflect.DeepEqual(first, again) {
				t.Errorf("Parse(%q) not deterministic: %s then %s", tt.question, first, again)
			}
		})
	}

	want := []Kind{SpiceCompare, RatingCompare, PriceCompare, PriceRange, DishPrice, MenuLookup, RatingFilter, PriceFilter, DietaryFilter}
	if got := Order(); !reflect.DeepEqual(got, want) {
		t.Errorf("Order() = %v, want %v", got, want)
	}
}

func TestExtractionFailureDegrades(t *testing.T) {
	p := NewParser(testRestaurants, testDishes)

	tests := []struct {
		question string
		want     Kind
	}{
		// only one name
		{"compare the ratings of Spice Route", NoMatch},
		// no number
		{"dishes under the budget", NoMatch},
		// not a dish on any menu
		{"how much is the lobster thermidor", NoMatch},
		// 40 is not a rating, so it is read as a price
		{"restaurants rated above 40", PriceFilter},
	}

	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			if got := p.Parse(tt.question); got.Kind != tt.want {
				t.Errorf("Parse(%q) = %s, want kind %s", tt.question, got, tt.want)
			}
		})
	}
}

func TestUnknownNameKeptRaw(t *testing.T) {
	p := NewParser(testRestaurants, testDishes)

	got := p.Parse("compare ratings of Spice Route and Pizza Planet")
	want := Descriptor{Kind: RatingCompare, Restaurants: []string{"Spice Route", "Pizza Planet"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Parse() = %s, want %s", got, want)
	}
}

func TestRestaurantNameIsNotDietary(t *testing.T) {
	p := NewParser([]string{"Veggie Hut"}, nil)

	got := p.Parse("dishes at Veggie Hut")
	if got.Kind != MenuLookup || got.Dietary != "" {
		t.Errorf("Parse() = %s, want a plain menu lookup", got)
	}
}

func TestMenuLookupNeedsARestaurant(t *testing.T) {
	p := NewParser(testRestaurants, testDishes)

	tests := []struct {
		question string
		want     Descriptor
	}{
		{"Which dishes in the catalog are spicy?", Descriptor{Kind: NoMatch}},
		{"Any dishes for a birthday party?", Descriptor{Kind: NoMatch}},
		{"What items from the coastal region do you recommend?", Descriptor{Kind: NoMatch}},
		{"what can I eat at home tonight", Descriptor{Kind: NoMatch}},
		{"dishes at the place near my office", Descriptor{Kind: NoMatch}},
		{"Show me the items from Green Bowl", Descriptor{Kind: MenuLookup, Restaurants: []string{"Green Bowl"}}},
		{"dishes in the bombay canteen", Descriptor{Kind: MenuLookup, Restaurants: []string{"The Bombay Canteen"}}},
		// an unknown name after "at" is kept so it can be reported
		{"dishes at Pizza Planet", Descriptor{Kind: MenuLookup, Restaurants: []string{"Pizza Planet"}}},
		{"What does Burger Barn serve?", Descriptor{Kind: MenuLookup, Restaurants: []string{"Burger Barn"}}},
	}

	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			if got := p.Parse(tt.question); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse(%q) = %s, want %s", tt.question, got, tt.want)
			}
		})
	}
}
