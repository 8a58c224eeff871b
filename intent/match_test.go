package intent

import (
	"reflect"
	"testing"
)

func TestMatcherResolve(t *testing.T) {
	m := NewMatcher([]string{"Spice Route", "Spice Garden", "The Bombay Canteen", "Toit"})

	tests := []struct {
		phrase string
		want   string
		ok     bool
	}{
		{phrase: "spice route", want: "Spice Route", ok: true},
		{phrase: "SPICE-ROUTE!", want: "Spice Route", ok: true},
		{phrase: "the bombay canteen", want: "The Bombay Canteen", ok: true},
		{phrase: "bombay canteen", want: "The Bombay Canteen", ok: true},
		{phrase: "Spice Route restaurant", want: "Spice Route", ok: true},
		{phrase: "bombay", want: "The Bombay Canteen", ok: true},
		{phrase: "route", want: "Spice Route", ok: true},
		// two names contain it
		{phrase: "spice", ok: false},
		{phrase: "pizza planet", ok: false},
		{phrase: "  ", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.phrase, func(t *testing.T) {
			got, ok := m.Resolve(tt.phrase)
			if ok != tt.ok || got != tt.want {
				t.Errorf("Resolve(%q) = %q, %v, want %q, %v", tt.phrase, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestMatcherMentioned(t *testing.T) {
	m := NewMatcher([]string{"Spice Route", "Toit", "Green Bowl"})

	got := m.Mentioned("is green bowl cheaper than Spice-Route?")
	want := []string{"Spice Route", "Green Bowl"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Mentioned() = %v, want %v", got, want)
	}
	if got := m.Mentioned("toilet paper"); got != nil {
		t.Errorf("Mentioned() = %v, want no partial-word match", got)
	}
}

func TestComparatorHolds(t *testing.T) {
	tests := []struct {
		cmp   Comparator
		value float64
		want  bool
	}{
		{Below, 150, true},
		{Below, 200, false},
		{AtMost, 200, true},
		{AtMost, 250, false},
		{Above, 200, false},
		{Above, 250, true},
		{AtLeast, 200, true},
		{AtLeast, 150, false},
	}

	for _, tt := range tests {
		if got := tt.cmp.Holds(tt.value, 200); got != tt.want {
			t.Errorf("%s.Holds(%v, 200) = %v, want %v", tt.cmp, tt.value, got, tt.want)
		}
	}
}

func TestComparatorVocabulary(t *testing.T) {
	tests := map[string]Comparator{
		"under 200":          Below,
		"below 200":          Below,
		"less than 200":      Below,
		"cheaper than 200":   Below,
		"at most 200":        AtMost,
		"up to 200":          AtMost,
		"no more than 200":   AtMost,
		"within 200":         AtMost,
		"above 200":          Above,
		"over 200":           Above,
		"more than 200":      Above,
		"costlier than 200":  Above,
		"at least 200":       AtLeast,
		"minimum 200":        AtLeast,
		"200 or less":        AtMost,
		"200 rupees or more": AtLeast,
	}

	for phrase, want := range tests {
		c, ok := findComparison("dishes " + phrase)
		if !ok {
			t.Errorf("findComparison(%q) found nothing", phrase)
			continue
		}
		if c.cmp != want || c.threshold != 200 {
			t.Errorf("findComparison(%q) = %s %v, want %s 200", phrase, c.cmp, c.threshold, want)
		}
	}
}

func TestComparisonNumbers(t *testing.T) {
	tests := map[string]float64{
		"under ₹1,200":   1200,
		"within 2k":      2000,
		"below rs. 99":   99,
		"at most 150.5":  150.5,
		"₹2,500 or less": 2500,
	}

	for in, want := range tests {
		c, ok := findComparison("dishes " + in)
		if !ok || c.threshold != want {
			t.Errorf("findComparison(%q) = %v, %v, want %v", in, c.threshold, ok, want)
		}
	}

	if _, ok := findComparison("dishes under the budget"); ok {
		t.Error("findComparison() found a threshold in text without digits")
	}
}
