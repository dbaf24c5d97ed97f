// Package match evaluates postings against the user's profile: hard
// keyword filters first, then a soft relevance score from the scoring
// backend.
package match

import "strings"

// ContainsAny returns the first term that appears (case-insensitive
// substring) in the haystack, and whether one was found. Empty terms are
// skipped.
func ContainsAny(haystack string, terms []string) (string, bool) {
	if len(terms) == 0 {
		return "", false
	}
	lowered := strings.ToLower(haystack)
	for _, term := range terms {
		if term == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(term)) {
			return term, true
		}
	}
	return "", false
}

// matchedTerms returns every term present in the haystack.
func matchedTerms(haystack string, terms []string) []string {
	lowered := strings.ToLower(haystack)
	var out []string
	for _, term := range terms {
		if term == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(term)) {
			out = append(out, term)
		}
	}
	return out
}
