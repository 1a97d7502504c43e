package constants

import (
	"strings"
)

type Category string

const (
	Groceries     Category = "Groceries"
	Utilities     Category = "Utilities"
	Dining        Category = "Dining"
	Transport     Category = "Transport"
	Health        Category = "Health"
	Shopping      Category = "Shopping"
	Travel        Category = "Travel"
	Entertainment Category = "Entertainment"
	Education     Category = "Education"
	Other         Category = "Other"
)

var allCategories = []Category{
	Groceries,
	Utilities,
	Dining,
	Transport,
	Health,
	Shopping,
	Travel,
	Entertainment,
	Education,
	Other,
}

var synonyms = map[string]Category{
	"grocery":     Groceries,
	"food":        Dining,
	"restaurant":  Dining,
	"meals":       Dining,
	"utility":     Utilities,
	"electricity": Utilities,
	"internet":    Utilities,
	"fuel":        Transport,
	"taxi":        Transport,
	"medical":     Health,
	"pharmacy":    Health,
	"clothing":    Shopping,
	"hotel":       Travel,
	"airline":     Travel,
}

// Canonicalize maps a free-form category label onto a known category.
func Canonicalize(input string) (Category, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return "", false
	}

	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}

	for _, cat := range allCategories {
		if normalized == strings.ToLower(string(cat)) {
			return cat, true
		}
	}

	return "", false
}
