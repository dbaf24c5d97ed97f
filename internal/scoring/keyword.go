package scoring

import (
	"context"
	"strings"
	"unicode"
)

// Keyword is the fallback backend: token overlap between the posting
// text and the reference role. No network involved: identical inputs
// always yield the identical score.
type Keyword struct{}

func NewKeyword() *Keyword { return &Keyword{} }

func (k *Keyword) Name() string { return "keyword" }

func (k *Keyword) Available(context.Context) bool { return true }

// Similarity computes the containment overlap |text ∩ reference| over
// |reference| tokens. Containment rather than plain Jaccard: the
// reference is a short role name, and dividing by the union of a long
// description would crush every score toward zero, making thresholds
// meaningless in degraded mode.
func (k *Keyword) Similarity(_ context.Context, text, reference string) (float64, error) {
	refTokens := Tokenize(reference)
	if len(refTokens) == 0 {
		return 0, nil
	}
	textTokens := Tokenize(text)
	if len(textTokens) == 0 {
		return 0, nil
	}

	seen := make(map[string]struct{}, len(textTokens))
	for _, t := range textTokens {
		seen[t] = struct{}{}
	}

	uniqueRef := make(map[string]struct{}, len(refTokens))
	for _, t := range refTokens {
		uniqueRef[t] = struct{}{}
	}

	var hits int
	for t := range uniqueRef {
		if _, ok := seen[t]; ok {
			hits++
		}
	}

	return clamp01(float64(hits) / float64(len(uniqueRef))), nil
}

// Tokenize lowercases and splits on anything that is not a letter or
// digit. Shared by the keyword backend and the matcher's substring
// predicates.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
