package constants

import (
	"strings"
)

type Category string

const (
	Groceries     Category = "Groceries"
	Dining        Category = "Dining"
	Transport     Category = "Transport"
	Utilities     Category = "Utilities"
	Shopping      Category = "Shopping"
	Entertainment Category = "Entertainment"
	Health        Category = "Health"
	Travel        Category = "Travel"
	Home          Category = "Home"
	Other         Category = "Other"

	// Uncategorized is not part of the extraction enum. It marks statement
	// rows whose vendor never went through categorization; extraction output
	// is always coerced into the enum instead.
	Uncategorized Category = "Uncategorized"
)

var allCategories = []Category{
	Groceries,
	Dining,
	Transport,
	Utilities,
	Shopping,
	Entertainment,
	Health,
	Travel,
	Home,
	Other,
}

// AsStringSlice returns the closed category set offered to the extraction
// provider, in stable order.
func AsStringSlice() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

// Canonicalize maps a provider label onto the closed set. Anything that does
// not resolve becomes Other; the second return reports whether the input
// matched (directly or via a synonym).
func Canonicalize(input string) (Category, bool) {
	if input == "" {
		return Other, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	// synonyms map
	synonyms := map[string]Category{
		"food":           Groceries,
		"supermarket":    Groceries,
		"restaurant":     Dining,
		"restaurants":    Dining,
		"meals":          Dining,
		"cafe":           Dining,
		"fuel":           Transport,
		"gas":            Transport,
		"taxi":           Transport,
		"uber":           Transport,
		"public transit": Transport,
		"electricity":    Utilities,
		"internet":       Utilities,
		"phone":          Utilities,
		"clothing":       Shopping,
		"retail":         Shopping,
		"movies":         Entertainment,
		"streaming":      Entertainment,
		"pharmacy":       Health,
		"doctor":         Health,
		"medical":        Health,
		"hotel":          Travel,
		"airline":        Travel,
		"flight":         Travel,
		"rent":           Home,
		"furniture":      Home,
		"household":      Home,
	}

	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}

	// check if it matches any category string
	for _, cat := range allCategories {
		if normalized == strings.ToLower(string(cat)) {
			return cat, true
		}
	}

	return Other, false
}
