package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/imkonsowa/restaurant-qa/chunker"
	"github.com/imkonsowa/restaurant-qa/intent"
	"github.com/imkonsowa/restaurant-qa/models"
)

func (r *Router) resolve(ctx context.Context, d intent.Descriptor, question string) (*Result, error) {
	switch d.Kind {
	case intent.SpiceCompare:
		return r.spiceCompare(d)
	case intent.RatingCompare:
		return r.ratingCompare(d)
	case intent.PriceCompare:
		return r.priceCompare(d)
	case intent.PriceRange:
		return r.priceRange(d)
	case intent.DishPrice:
		return r.dishPrice(d)
	case intent.MenuLookup:
		return r.menuLookup(d)
	case intent.RatingFilter:
		return r.ratingFilter(d)
	case intent.PriceFilter:
		return r.priceFilter(ctx, d, question)
	case intent.DietaryFilter:
		return r.dietaryFilter(d)
	}

	return nil, fmt.Errorf("unsupported intent %q", d.Kind)
}

func (r *Router) direct(lines []string, evidence []string) *Result {
	return &Result{
		Direct:  strings.Join(lines, "\n"),
		Context: r.evidenceContext(evidence),
	}
}

func (r *Router) findRestaurants(names []string) ([]*models.Restaurant, error) {
	found := make([]*models.Restaurant, 0, len(names))

	var missing []string
	for _, name := range names {
		rest, ok := r.catalog.Find(name)
		if !ok {
			missing = append(missing, name)
			continue
		}
		found = append(found, rest)
	}
	if len(missing) > 0 {
		return nil, &ResolutionError{Restaurants: missing}
	}

	return found, nil
}

func (r *Router) spiceCompare(d intent.Descriptor) (*Result, error) {
	rs, err := r.findRestaurants(d.Restaurants)
	if err != nil {
		return nil, err
	}

	items := make([]*models.MenuItem, len(rs))
	var missing []string
	for i, rest := range rs {
		item, ok := findDish(rest, d.Dish)
		if !ok {
			missing = append(missing, rest.Name)
			continue
		}
		items[i] = item
	}
	if len(missing) > 0 {
		return nil, &ResolutionError{Dish: d.Dish, Restaurants: missing}
	}

	lines := []string{fmt.Sprintf("For the dish '%s':", items[0].Name)}
	var evidence []string
	for i, rest := range rs {
		lines = append(lines, fmt.Sprintf("- Spice level at %s: %s", rest.Name, spiceText(items[i])))
		evidence = append(evidence, r.itemText(rest, items[i]))
	}

	a, b := items[0].Attributes.SpiceLevel, items[1].Attributes.SpiceLevel
	switch {
	case a == nil || b == nil:
		lines = append(lines, "-> Cannot compare spice levels because one of them is not specified.")
	case *a > *b:
		lines = append(lines, fmt.Sprintf("-> It is spicier at %s.", rs[0].Name))
	case *b > *a:
		lines = append(lines, fmt.Sprintf("-> It is spicier at %s.", rs[1].Name))
	default:
		lines = append(lines, "-> Both have the same spice level.")
	}

	return r.direct(lines, evidence), nil
}

func (r *Router) ratingCompare(d intent.Descriptor) (*Result, error) {
	rs, err := r.findRestaurants(d.Restaurants)
	if err != nil {
		return nil, err
	}
	a, b := rs[0], rs[1]

	lines := []string{
		fmt.Sprintf("Comparing ratings for '%s' and '%s':", a.Name, b.Name),
		fmt.Sprintf("- %s Rating: %s", a.Name, ratingText(a)),
		fmt.Sprintf("- %s Rating: %s", b.Name, ratingText(b)),
	}

	ra, okA := a.RatingValue()
	rb, okB := b.RatingValue()
	switch {
	case !okA || !okB:
		lines = append(lines, "-> Cannot numerically compare ratings due to missing or non-standard data.")
	case ra > rb:
		lines = append(lines, fmt.Sprintf("-> %s has a higher rating.", a.Name))
	case rb > ra:
		lines = append(lines, fmt.Sprintf("-> %s has a higher rating.", b.Name))
	default:
		lines = append(lines, "-> Both restaurants have a similar rating.")
	}

	return r.direct(lines, []string{a.Stringify(), b.Stringify()}), nil
}

func (r *Router) priceCompare(d intent.Descriptor) (*Result, error) {
	rs, err := r.findRestaurants(d.Restaurants)
	if err != nil {
		return nil, err
	}
	a, b := rs[0], rs[1]

	lines := []string{fmt.Sprintf("Comparing price ranges for '%s' and '%s':", a.Name, b.Name)}
	for _, rest := range rs {
		line := fmt.Sprintf("- %s: %s", rest.Name, orNotListed(rest.PriceRange, "price range not listed"))
		if avg, ok := rest.AveragePrice(); ok {
			line += fmt.Sprintf(" (average dish ₹%.2f)", avg)
		}
		lines = append(lines, line)
	}

	pa, okA := a.AveragePrice()
	pb, okB := b.AveragePrice()
	switch {
	case !okA || !okB:
		lines = append(lines, "-> Cannot compare average dish prices due to missing prices.")
	case pa < pb:
		lines = append(lines, fmt.Sprintf("-> %s is cheaper on average.", a.Name))
	case pb < pa:
		lines = append(lines, fmt.Sprintf("-> %s is cheaper on average.", b.Name))
	default:
		lines = append(lines, "-> Both have a similar average dish price.")
	}

	return r.direct(lines, []string{a.Stringify(), b.Stringify()}), nil
}

func (r *Router) priceRange(d intent.Descriptor) (*Result, error) {
	rs, err := r.findRestaurants(d.Restaurants)
	if err != nil {
		return nil, err
	}
	rest := rs[0]

	if rest.PriceRange == "" {
		return r.direct([]string{
			fmt.Sprintf("Sorry, the price range information is not available for '%s'.", rest.Name),
		}, []string{rest.Stringify()}), nil
	}

	return r.direct([]string{
		fmt.Sprintf("The approximate price range for '%s' is: %s.", rest.Name, rest.PriceRange),
	}, []string{rest.Stringify()}), nil
}

func (r *Router) dishPrice(d intent.Descriptor) (*Result, error) {
	scope, err := r.scope(d.Restaurants)
	if err != nil {
		return nil, err
	}

	lines := []string{fmt.Sprintf("Prices for '%s':", d.Dish)}
	var evidence []string
	for _, rest := range scope {
		item, ok := findDish(rest, d.Dish)
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", rest.Name, priceText(item.Price)))
		evidence = append(evidence, r.itemText(rest, item))
	}

	if len(evidence) == 0 {
		return nil, &ResolutionError{Dish: d.Dish, Restaurants: d.Restaurants}
	}

	return r.direct(lines, evidence), nil
}

func (r *Router) menuLookup(d intent.Descriptor) (*Result, error) {
	rs, err := r.findRestaurants(d.Restaurants)
	if err != nil {
		return nil, err
	}
	rest := rs[0]

	if len(rest.Menu) == 0 {
		return r.direct([]string{
			fmt.Sprintf("Sorry, I couldn't find specific dishes listed for '%s', but the restaurant exists in the data.", rest.Name),
		}, []string{rest.Stringify()}), nil
	}

	qualifier := filterPhrase(d)

	var lines, evidence []string
	for i := range rest.Menu {
		item := &rest.Menu[i]
		if strings.TrimSpace(item.Name) == "" || !r.itemMatches(rest, item, d) {
			continue
		}
		lines = append(lines, "- "+item.Stringify())
		evidence = append(evidence, r.itemText(rest, item))
	}

	if len(lines) == 0 {
		return r.direct([]string{
			fmt.Sprintf("No dishes at %s match%s.", rest.Name, qualifier),
		}, []string{rest.Stringify()}), nil
	}

	header := fmt.Sprintf("Dishes available at %s%s:", rest.Name, qualifier)
	return r.direct(append([]string{header}, lines...), evidence), nil
}

func (r *Router) ratingFilter(d intent.Descriptor) (*Result, error) {
	phrase := fmt.Sprintf("%s %g", d.Comparator.Phrase(), d.Threshold)

	var lines, evidence []string
	for _, rest := range r.catalog.Restaurants() {
		v, ok := rest.RatingValue()
		if !ok || !d.Comparator.Holds(v, d.Threshold) {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s (%s)", rest.Name, rest.Rating))
		evidence = append(evidence, rest.Stringify())
	}

	if len(lines) == 0 {
		return r.direct([]string{fmt.Sprintf("Sorry, no restaurants are rated %s.", phrase)}, nil), nil
	}

	header := fmt.Sprintf("Restaurants rated %s:", phrase)
	return r.direct(append([]string{header}, lines...), evidence), nil
}

type itemMatch struct {
	rest    *models.Restaurant
	item    *models.MenuItem
	ordinal int
}

// priceFilter lists every priced dish that satisfies the comparison, in
// catalog order. When there are more than top-k, the matches are ranked
// against the question and only the nearest k are kept.
func (r *Router) priceFilter(ctx context.Context, d intent.Descriptor, question string) (*Result, error) {
	scope, err := r.scope(d.Restaurants)
	if err != nil {
		return nil, err
	}

	var matches []itemMatch
	for _, rest := range scope {
		for i := range rest.Menu {
			item := &rest.Menu[i]
			if item.Price == nil || !r.itemMatches(rest, item, d) {
				continue
			}
			ordinal, ok := r.ordinals[item]
			if !ok {
				continue
			}
			matches = append(matches, itemMatch{rest: rest, item: item, ordinal: ordinal})
		}
	}

	qualifier := filterPhrase(d)
	if len(matches) == 0 {
		return r.direct([]string{fmt.Sprintf("Sorry, I couldn't find any dishes%s.", qualifier)}, nil), nil
	}

	if len(matches) > r.opts.TopK {
		byOrdinal := make(map[int]itemMatch, len(matches))
		ordinals := make([]int, len(matches))
		for i, m := range matches {
			byOrdinal[m.ordinal] = m
			ordinals[i] = m.ordinal
		}

		hits, err := r.index.QuerySubset(ctx, question, r.opts.TopK, ordinals)
		if err != nil {
			return nil, fmt.Errorf("failed to rank filtered dishes: %w", err)
		}

		matches = matches[:0]
		for _, h := range hits {
			matches = append(matches, byOrdinal[h.Ordinal])
		}
	}

	lines := []string{fmt.Sprintf("Here are some dishes%s:", qualifier)}
	var evidence []string
	for _, m := range matches {
		lines = append(lines, fmt.Sprintf("- %s (at %s) - %s", m.item.Name, m.rest.Name, priceText(m.item.Price)))
		evidence = append(evidence, r.store.Texts()[m.ordinal])
	}

	return r.direct(lines, evidence), nil
}

func (r *Router) dietaryFilter(d intent.Descriptor) (*Result, error) {
	scope, err := r.scope(d.Restaurants)
	if err != nil {
		return nil, err
	}

	var lines, evidence []string
	for _, rest := range scope {
		for i := range rest.Menu {
			item := &rest.Menu[i]
			if strings.TrimSpace(item.Name) == "" || !r.itemMatches(rest, item, d) {
				continue
			}
			lines = append(lines, fmt.Sprintf("- %s at %s", item.Stringify(), rest.Name))
			evidence = append(evidence, r.itemText(rest, item))
		}
	}

	if d.Keyword != "" {
		if len(lines) == 0 {
			return r.direct([]string{fmt.Sprintf("No items containing %s found.", d.Keyword)}, nil), nil
		}
		header := fmt.Sprintf("Here are items that contain %s:", d.Keyword)
		return r.direct(append([]string{header}, lines...), evidence), nil
	}

	if len(lines) == 0 {
		return r.direct([]string{fmt.Sprintf("No %s options found.", d.Dietary)}, nil), nil
	}

	header := fmt.Sprintf("Here are the %s options:", d.Dietary)
	return r.direct(append([]string{header}, lines...), evidence), nil
}

// scope resolves the named restaurants, or returns the whole catalog when
// none are named.
func (r *Router) scope(names []string) ([]*models.Restaurant, error) {
	if len(names) > 0 {
		return r.findRestaurants(names)
	}

	all := r.catalog.Restaurants()
	scope := make([]*models.Restaurant, len(all))
	for i := range all {
		scope[i] = &all[i]
	}

	return scope, nil
}

// itemMatches applies the optional price, dietary and keyword qualifiers
// of d to one dish.
func (r *Router) itemMatches(rest *models.Restaurant, item *models.MenuItem, d intent.Descriptor) bool {
	if d.HasThreshold() {
		if item.Price == nil || !d.Comparator.Holds(*item.Price, d.Threshold) {
			return false
		}
	}
	if d.Dietary != "" && !dietaryMatch(rest, item, d.Dietary) {
		return false
	}
	if d.Keyword != "" && !keywordMatch(rest, item, d.Keyword) {
		return false
	}

	return true
}

// plantBased labels exclude dishes classified as Non-Veg even at a
// restaurant that lists the option.
var plantBased = map[string]bool{"Vegan": true, "Jain": true}

func dietaryMatch(rest *models.Restaurant, item *models.MenuItem, label string) bool {
	switch label {
	case "Veg":
		return item.Attributes.VegNonVeg == models.Veg
	case "Non-Veg":
		return item.Attributes.VegNonVeg == models.NonVeg
	}

	if mentions(item, label) {
		return true
	}
	if plantBased[label] && item.Attributes.VegNonVeg == models.NonVeg {
		return false
	}

	return rest.HasDietaryOption(label)
}

// keywordMatch looks for the keyword in the dish text and in the
// restaurant's dietary labels.
func keywordMatch(rest *models.Restaurant, item *models.MenuItem, keyword string) bool {
	if mentions(item, keyword) {
		return true
	}

	k := models.Normalize(keyword)
	for _, option := range rest.DietaryOptions {
		if strings.Contains(models.Normalize(option), k) {
			return true
		}
	}

	return false
}

func mentions(item *models.MenuItem, keyword string) bool {
	k := models.Normalize(keyword)
	if k == "" {
		return false
	}
	text := models.Normalize(item.Name + " " + item.Description + " " + item.Attributes.Category)

	return strings.Contains(" "+text+" ", " "+k+" ")
}

// findDish matches a dish on one menu by normalized name, falling back to
// the single dish whose name contains the phrase.
func findDish(rest *models.Restaurant, dish string) (*models.MenuItem, bool) {
	want := models.Normalize(dish)
	if want == "" {
		return nil, false
	}

	for i := range rest.Menu {
		if models.Normalize(rest.Menu[i].Name) == want {
			return &rest.Menu[i], true
		}
	}

	var found *models.MenuItem
	for i := range rest.Menu {
		name := models.Normalize(rest.Menu[i].Name)
		if !strings.Contains(" "+name+" ", " "+want+" ") {
			continue
		}
		if found != nil {
			return nil, false
		}
		found = &rest.Menu[i]
	}

	return found, found != nil
}

func filterPhrase(d intent.Descriptor) string {
	var parts []string
	if d.Dietary != "" {
		parts = append(parts, d.Dietary)
	}
	if d.HasThreshold() {
		parts = append(parts, fmt.Sprintf("%s ₹%s", d.Comparator.Phrase(), chunker.FormatPrice(d.Threshold)))
	}
	if len(parts) == 0 {
		return ""
	}

	return " (" + strings.Join(parts, ", ") + ")"
}

func priceText(p *float64) string {
	if p == nil {
		return "price not listed"
	}

	return fmt.Sprintf("₹%.2f", *p)
}

func spiceText(item *models.MenuItem) string {
	if item.Attributes.SpiceLevel == nil {
		return "not specified"
	}

	return fmt.Sprintf("%d", *item.Attributes.SpiceLevel)
}

func ratingText(rest *models.Restaurant) string {
	return orNotListed(rest.Rating, "unrated")
}

func orNotListed(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}

	return s
}
