package intent

import (
	"strings"

	"github.com/imkonsowa/restaurant-qa/models"
)

// Matcher canonicalises free-text name phrases against a fixed set of
// names. Matching is on normalized text and whole words only.
type Matcher struct {
	names []string
	norms []string
}

func NewMatcher(names []string) *Matcher {
	m := &Matcher{}
	seen := make(map[string]bool, len(names))

	for _, name := range names {
		norm := trimArticle(models.Normalize(name))
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		m.names = append(m.names, name)
		m.norms = append(m.norms, norm)
	}

	return m
}

// Resolve returns the canonical name for phrase. An exact match wins; next
// the longest name the phrase contains ("spice route restaurant"); last a
// name that contains the phrase, if only one does ("bombay").
func (m *Matcher) Resolve(phrase string) (string, bool) {
	p := trimArticle(models.Normalize(phrase))
	if p == "" {
		return "", false
	}

	for i, n := range m.norms {
		if n == p {
			return m.names[i], true
		}
	}

	best := -1
	for i, n := range m.norms {
		if containsWords(p, n) && (best < 0 || len(n) > len(m.norms[best])) {
			best = i
		}
	}
	if best >= 0 {
		return m.names[best], true
	}

	if len(p) < 3 {
		return "", false
	}

	match := -1
	for i, n := range m.norms {
		if !containsWords(n, p) {
			continue
		}
		if match >= 0 {
			return "", false
		}
		match = i
	}
	if match >= 0 {
		return m.names[match], true
	}

	return "", false
}

// Mentioned returns every name that appears in text, in the order the
// names were given.
func (m *Matcher) Mentioned(text string) []string {
	t := models.Normalize(text)

	var found []string
	for i, n := range m.norms {
		if containsWords(t, n) {
			found = append(found, m.names[i])
		}
	}

	return found
}

func containsWords(haystack, needle string) bool {
	return strings.Contains(" "+haystack+" ", " "+needle+" ")
}

func trimArticle(s string) string {
	return strings.TrimPrefix(s, "the ")
}
