// Package categorizer defines the abstraction used to enrich discovered
// cookies with a purpose category, plus the lookaside cache and the resilience
// wrapper the scan engine consumes.
package categorizer

import (
	"context"
	"strings"
)

// DefaultCategory is substituted when a predicted category cannot be matched
// against a known category list.
const DefaultCategory = "Others"

// Categorization is the enrichment data for one cookie name.
type Categorization struct {
	// Name is the cookie name the data applies to.
	Name string `json:"name"`
	// Category is the purpose category, e.g. "Analytics".
	Category string `json:"category"`
	// Description explains what the cookie does.
	Description string `json:"description"`
	// Provider names the party operating the cookie.
	Provider string `json:"provider"`
}

// Client resolves cookie names against a categorization backend. The returned
// map may be missing names the backend knows nothing about.
type Client interface {
	Categorize(ctx context.Context, names []string) (map[string]Categorization, error)
}

// NormalizeCategory checks a predicted category against a list of known
// categories. Matching is case-insensitive and returns the known spelling;
// anything unmatched collapses to DefaultCategory.
func NormalizeCategory(predicted string, known []string) string {
	for _, k := range known {
		if strings.EqualFold(k, predicted) {
			return k
		}
	}

	return DefaultCategory
}
