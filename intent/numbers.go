package intent

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	currencyPattern = `(?:rs\.?|inr|₹|rupees)?`
	numberPattern   = `(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?)(?:\s*(k)\b)?`
)

// comparatorWords is the fixed comparator vocabulary. Longer phrases come
// first so "no more than" is not read as "more than".
var comparatorWords = []struct {
	phrase string
	cmp    Comparator
}{
	{"no more than", AtMost},
	{"not more than", AtMost},
	{"less than", Below},
	{"cheaper than", Below},
	{"lower than", Below},
	{"under", Below},
	{"below", Below},
	{"at most", AtMost},
	{"up to", AtMost},
	{"upto", AtMost},
	{"within", AtMost},
	{"maximum", AtMost},
	{"max", AtMost},
	{"more than", Above},
	{"costlier than", Above},
	{"pricier than", Above},
	{"higher than", Above},
	{"greater than", Above},
	{"above", Above},
	{"over", Above},
	{"at least", AtLeast},
	{"minimum", AtLeast},
	{"min", AtLeast},
	{"from", AtLeast},
}

var comparatorPattern = func() string {
	alts := make([]string, len(comparatorWords))
	for i, w := range comparatorWords {
		alts[i] = strings.ReplaceAll(regexp.QuoteMeta(w.phrase), " ", `\s+`)
	}

	return `\b(` + strings.Join(alts, "|") + `)\b`
}()

var (
	// "under ₹200", "at least 150", "within rs. 1,200"
	comparisonRe = regexp.MustCompile(`(?i)` + comparatorPattern + `\s*(?:of\s+)?` + currencyPattern + `\s*` + numberPattern)

	// "₹200 or less", "300 rupees or more"
	suffixComparisonRe = regexp.MustCompile(`(?i)` + currencyPattern + `\s*` + numberPattern +
		`\s*(?:rs|rupees|inr)?\s+or\s+(less|lower|cheaper|below|under|more|higher|above|over)\b`)
)

func lookupComparator(phrase string) (Comparator, bool) {
	phrase = strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
	for _, w := range comparatorWords {
		if w.phrase == phrase {
			return w.cmp, true
		}
	}

	return "", false
}

func parseNumber(digits, thousands string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(digits, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	if thousands != "" {
		v *= 1000
	}

	return v, true
}

// comparison holds a comparator and threshold found in a question, with
// the byte offset where the phrase starts.
type comparison struct {
	cmp       Comparator
	threshold float64
	start     int
}

// findComparison locates the first "<comparator> <number>" phrase, falling
// back to the "<number> or less|more" form.
func findComparison(q string) (comparison, bool) {
	if loc := comparisonRe.FindStringSubmatchIndex(q); loc != nil {
		cmp, ok := lookupComparator(q[loc[2]:loc[3]])
		if ok {
			if v, ok := parseNumber(q[loc[4]:loc[5]], submatch(q, loc, 3)); ok {
				return comparison{cmp: cmp, threshold: v, start: loc[0]}, true
			}
		}
	}

	if loc := suffixComparisonRe.FindStringSubmatchIndex(q); loc != nil {
		v, ok := parseNumber(q[loc[2]:loc[3]], submatch(q, loc, 2))
		if !ok {
			return comparison{}, false
		}
		cmp := AtLeast
		switch strings.ToLower(q[loc[6]:loc[7]]) {
		case "less", "lower", "cheaper", "below", "under":
			cmp = AtMost
		}
		return comparison{cmp: cmp, threshold: v, start: loc[0]}, true
	}

	return comparison{}, false
}

func submatch(s string, loc []int, group int) string {
	if 2*group+1 >= len(loc) || loc[2*group] < 0 {
		return ""
	}

	return s[loc[2*group]:loc[2*group+1]]
}
