package intent

import (
	"regexp"
	"strings"
)

type rule struct {
	kind  Kind
	match func(p *Parser, q string) (Descriptor, bool)
}

// rules is evaluated top to bottom and the first match wins. The order is
// part of the contract: a question that fits several shapes is answered
// by the earliest one.
var rules = []rule{
	{SpiceCompare, (*Parser).spiceCompare},
	{RatingCompare, (*Parser).ratingCompare},
	{PriceCompare, (*Parser).priceCompare},
	{PriceRange, (*Parser).priceRange},
	{DishPrice, (*Parser).dishPrice},
	{MenuLookup, (*Parser).menuLookup},
	{RatingFilter, (*Parser).ratingFilter},
	{PriceFilter, (*Parser).priceFilter},
	{DietaryFilter, (*Parser).dietaryFilter},
}

// Order returns the rule kinds in evaluation order.
func Order() []Kind {
	kinds := make([]Kind, len(rules))
	for i, r := range rules {
		kinds[i] = r.kind
	}

	return kinds
}

// Parser maps a question to a Descriptor. It never fails: anything it does
// not recognise is NoMatch.
type Parser struct {
	restaurants *Matcher
	dishes      *Matcher
}

func NewParser(restaurants, dishes []string) *Parser {
	return &Parser{
		restaurants: NewMatcher(restaurants),
		dishes:      NewMatcher(dishes),
	}
}

func (p *Parser) Parse(question string) Descriptor {
	q := clean(question)
	if q == "" {
		return Descriptor{Kind: NoMatch}
	}

	for _, r := range rules {
		if d, ok := r.match(p, q); ok {
			d.Kind = r.kind
			return d
		}
	}

	return Descriptor{Kind: NoMatch}
}

func clean(question string) string {
	q := strings.Join(strings.Fields(question), " ")
	return strings.TrimRight(q, "?!. ")
}

var (
	spiceCompareRe = regexp.MustCompile(`(?i)\bcompare\s+(?:the\s+)?spic(?:e|iness)(?:\s+levels?)?\s+(?:of\s+|for\s+)?(?:the\s+)?(?:dish\s+)?(.+?)\s+(?:between|at|across|in)\s+(.+?)\s+(?:and|vs\.?|versus)\s+(.+)$`)

	ratingCompareRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bcompare\s+(?:the\s+)?ratings?\s+(?:of\s+|for\s+|between\s+)?(.+?)\s+(?:and|vs\.?|versus|with)\s+(.+)$`),
		regexp.MustCompile(`(?i)^(?:is|does)\s+(.+?)\s+(?:rated|have\s+a)\s+(?:higher|better|lower|worse)(?:\s+rating)?\s+than\s+(.+)$`),
		regexp.MustCompile(`(?i)\bwhich\s+(?:one\s+|restaurant\s+|place\s+)?(?:has|is)\s+(?:a\s+|the\s+)?(?:better|higher|best|highest)(?:\s+rating|\s+rated)\s*[,:]?\s*(.+?)\s+or\s+(.+)$`),
	}

	priceCompareRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bcompare\s+(?:the\s+)?(?:prices?|price\s+ranges?|costs?)\s+(?:of\s+|for\s+|between\s+|at\s+)?(.+?)\s+(?:and|vs\.?|versus|with)\s+(.+)$`),
		regexp.MustCompile(`(?i)\bwhich\s+(?:one\s+|restaurant\s+|place\s+)?is\s+(?:cheaper|more\s+expensive|costlier|pricier|more\s+affordable)\s*[,:]?\s*(.+?)\s+or\s+(.+)$`),
		regexp.MustCompile(`(?i)^is\s+(.+?)\s+(?:cheaper|more\s+expensive|costlier|pricier|more\s+affordable)\s+than\s+(.+)$`),
	}

	priceRangeRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bprice\s+range\s+(?:of|at|for|in)\s+(.+)$`),
		regexp.MustCompile(`(?i)^how\s+(?:expensive|pricey|costly)\s+is\s+(.+)$`),
	}

	dishPriceRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^(?:what\s+is\s+|what's\s+|whats\s+|tell\s+me\s+)?(?:the\s+)?(?:price|cost)\s+of\s+(?:the\s+|a\s+|an\s+)?(.+?)(?:\s+(?:at|in|from)\s+(.+))?$`),
		regexp.MustCompile(`(?i)^how\s+much\s+(?:is|does|do|are|for)\s+(?:the\s+|a\s+|an\s+)?(.+?)(?:\s+costs?)?(?:\s+(?:at|in|from)\s+(.+?))?(?:\s+costs?)?$`),
	}

	// An open pattern may name a restaurant that is not in the catalog, so
	// the question can be answered with "not found". A closed pattern only
	// fires for a known restaurant and otherwise leaves the question to
	// semantic search.
	menuLookupRes = []struct {
		re   *regexp.Regexp
		open bool
	}{
		{regexp.MustCompile(`(?i)\b(?:dishes|menu)\s+(?:are\s+|is\s+)?(?:available\s+|served\s+|offered\s+)?at\s+(?:the\s+restaurant\s+)?(.+)$`), true},
		{regexp.MustCompile(`(?i)\b(?:dishes|menu|items)\s+(?:are\s+|is\s+)?(?:available\s+|served\s+|offered\s+)?(?:at|of|from|in|for)\s+(?:the\s+restaurant\s+)?(.+)$`), false},
		{regexp.MustCompile(`(?i)\bwhat\s+(?:does|do)\s+(.+?)\s+(?:serve|offer|sell|have\s+on\s+(?:the|its|their)\s+menu)\b`), true},
		{regexp.MustCompile(`(?i)\bwhat\s+can\s+i\s+(?:eat|order|get)\s+at\s+(.+)$`), true},
	}

	// notNameWords rule a phrase out as an unknown restaurant name.
	notNameWords = map[string]bool{
		"a": true, "an": true, "the": true, "this": true, "that": true, "these": true, "those": true,
		"my": true, "your": true, "our": true, "any": true, "some": true, "all": true, "every": true,
		"is": true, "are": true, "do": true, "does": true, "you": true, "i": true, "we": true,
		"with": true, "for": true, "from": true, "in": true, "near": true, "around": true,
		"home": true, "night": true, "lunch": true, "dinner": true, "breakfast": true, "party": true,
		"catalog": true, "menu": true, "restaurants": true, "places": true,
	}

	ratingWordRe = regexp.MustCompile(`(?i)\b(?:rated|rating|ratings|stars?)\b`)

	ratingFilterRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:rated|rating|ratings)\s+(?:of\s+|is\s+)?` + comparatorPattern + `\s*` + numberPattern),
		regexp.MustCompile(`(?i)` + comparatorPattern + `\s*` + numberPattern + `\s*\+?\s*(?:stars?|rating)`),
	}

	ratingAtLeastRe = regexp.MustCompile(`(?i)\b(\d(?:\.\d+)?)\s*(?:\+|stars?\s+(?:and|or)\s+(?:above|more|up|higher))`)

	containsRe = regexp.MustCompile(`(?i)\bcontains?\s+(?:any\s+)?([a-z][a-z\s-]*[a-z])`)

	dietaryLabels = []struct {
		re    *regexp.Regexp
		label string
	}{
		{regexp.MustCompile(`(?i)\bnon[\s-]?veg(?:etarian)?\b`), "Non-Veg"},
		{regexp.MustCompile(`(?i)\bvegan\b`), "Vegan"},
		{regexp.MustCompile(`(?i)\bgluten[\s-]?free\b`), "Gluten-Free"},
		{regexp.MustCompile(`(?i)\bdairy[\s-]?free\b`), "Dairy-Free"},
		{regexp.MustCompile(`(?i)\bjain\b`), "Jain"},
		{regexp.MustCompile(`(?i)\bhalal\b`), "Halal"},
		{regexp.MustCompile(`(?i)\b(?:vegetarian|veg|veggie)\b`), "Veg"},
	}
)

func (p *Parser) spiceCompare(q string) (Descriptor, bool) {
	m := spiceCompareRe.FindStringSubmatch(q)
	if m == nil {
		return Descriptor{}, false
	}

	dish := p.dish(m[1])
	a, b := p.restaurant(m[2]), p.restaurant(m[3])
	if dish == "" || a == "" || b == "" {
		return Descriptor{}, false
	}

	return Descriptor{Dish: dish, Restaurants: []string{a, b}}, true
}

func (p *Parser) ratingCompare(q string) (Descriptor, bool) {
	return p.pair(q, ratingCompareRes)
}

func (p *Parser) priceCompare(q string) (Descriptor, bool) {
	return p.pair(q, priceCompareRes)
}

// pair extracts two restaurant names with the first pattern that matches.
func (p *Parser) pair(q string, res []*regexp.Regexp) (Descriptor, bool) {
	for _, re := range res {
		m := re.FindStringSubmatch(q)
		if m == nil {
			continue
		}

		a, b := p.restaurant(m[1]), p.restaurant(m[2])
		if a == "" || b == "" {
			continue
		}

		return Descriptor{Restaurants: []string{a, b}}, true
	}

	return Descriptor{}, false
}

func (p *Parser) priceRange(q string) (Descriptor, bool) {
	for _, re := range priceRangeRes {
		m := re.FindStringSubmatch(q)
		if m == nil {
			continue
		}
		if name := p.restaurant(m[1]); name != "" {
			return Descriptor{Restaurants: []string{name}}, true
		}
	}

	return Descriptor{}, false
}

// dishPrice only fires for dishes on some menu, so price questions about
// anything else ("a meal for two") go to semantic search.
func (p *Parser) dishPrice(q string) (Descriptor, bool) {
	for _, re := range dishPriceRes {
		m := re.FindStringSubmatch(q)
		if m == nil {
			continue
		}

		if dish, ok := p.dishes.Resolve(m[1]); ok {
			d := Descriptor{Dish: dish}
			if m[2] != "" {
				d.Restaurants = []string{p.restaurant(m[2])}
			}
			return d, true
		}

		// the dish name itself may contain "in" or "at"
		if m[2] != "" {
			if dish, ok := p.dishes.Resolve(m[1] + " " + m[2]); ok {
				return Descriptor{Dish: dish}, true
			}
		}
	}

	return Descriptor{}, false
}

// menuLookup also carries any price or dietary qualifier in the question,
// so "vegan dishes at X under 300" narrows the menu.
func (p *Parser) menuLookup(q string) (Descriptor, bool) {
	for _, l := range menuLookupRes {
		loc := l.re.FindStringSubmatchIndex(q)
		if loc == nil {
			continue
		}

		phrase := q[loc[2]:loc[3]]
		c, hasComparison := findComparison(q)
		if hasComparison && c.start >= loc[2] && c.start < loc[3] {
			phrase = q[loc[2]:c.start]
		}

		name, ok := p.restaurants.Resolve(phrase)
		if !ok {
			if !l.open || !nameLike(phrase) {
				continue
			}
			name = trimPhrase(phrase)
		}

		d := Descriptor{Restaurants: []string{name}, Dietary: dietaryLabel(withoutNames(q, name))}
		if hasComparison {
			d.Comparator, d.Threshold = c.cmp, c.threshold
		}
		return d, true
	}

	return Descriptor{}, false
}

// nameLike reports whether an unresolved phrase could be a restaurant
// name: a few words, no numbers, no function words ("dishes for 2 people",
// "dishes at home").
func nameLike(phrase string) bool {
	words := strings.Fields(trimPhrase(phrase))
	if len(words) > 1 && strings.EqualFold(words[0], "the") {
		words = words[1:]
	}
	if len(words) == 0 || len(words) > 4 {
		return false
	}

	for _, w := range words {
		w = strings.ToLower(strings.Trim(w, `"'“”‘’,`))
		if notNameWords[w] || strings.ContainsAny(w, "0123456789") {
			return false
		}
	}

	return true
}

// ratingFilter needs a rating word and a threshold on the five point scale.
func (p *Parser) ratingFilter(q string) (Descriptor, bool) {
	if !ratingWordRe.MatchString(q) {
		return Descriptor{}, false
	}

	for _, re := range ratingFilterRes {
		m := re.FindStringSubmatch(q)
		if m == nil {
			continue
		}
		cmp, ok := lookupComparator(m[1])
		if !ok {
			continue
		}
		v, ok := parseNumber(m[2], "")
		if !ok || v > 5 {
			continue
		}
		return Descriptor{Comparator: cmp, Threshold: v}, true
	}

	if m := ratingAtLeastRe.FindStringSubmatch(q); m != nil {
		if v, ok := parseNumber(m[1], ""); ok && v <= 5 {
			return Descriptor{Comparator: AtLeast, Threshold: v}, true
		}
	}

	return Descriptor{}, false
}

func (p *Parser) priceFilter(q string) (Descriptor, bool) {
	c, ok := findComparison(q)
	if !ok {
		return Descriptor{}, false
	}

	mentioned := p.restaurants.Mentioned(q)

	return Descriptor{
		Comparator:  c.cmp,
		Threshold:   c.threshold,
		Dietary:     dietaryLabel(withoutNames(q, mentioned...)),
		Restaurants: mentioned,
	}, true
}

func (p *Parser) dietaryFilter(q string) (Descriptor, bool) {
	mentioned := p.restaurants.Mentioned(q)
	rest := withoutNames(q, mentioned...)

	if m := containsRe.FindStringSubmatch(rest); m != nil {
		return Descriptor{Keyword: strings.TrimSpace(m[1]), Restaurants: mentioned}, true
	}

	if label := dietaryLabel(rest); label != "" {
		return Descriptor{Dietary: label, Restaurants: mentioned}, true
	}

	return Descriptor{}, false
}

// withoutNames blanks out restaurant names so a name like "Veggie Hut"
// is not read as a dietary qualifier.
func withoutNames(q string, names ...string) string {
	for _, name := range names {
		re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(name))
		if err != nil {
			continue
		}
		q = re.ReplaceAllString(q, " ")
	}

	return q
}

func dietaryLabel(q string) string {
	for _, l := range dietaryLabels {
		if l.re.MatchString(q) {
			return l.label
		}
	}

	return ""
}

// restaurant canonicalises a name phrase. An unknown name is kept as
// written so the caller can report it.
func (p *Parser) restaurant(phrase string) string {
	if name, ok := p.restaurants.Resolve(phrase); ok {
		return name
	}

	return trimPhrase(phrase)
}

func (p *Parser) dish(phrase string) string {
	if name, ok := p.dishes.Resolve(phrase); ok {
		return name
	}

	return trimPhrase(phrase)
}

func trimPhrase(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"'“”‘’,`)
}
