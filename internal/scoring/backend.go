// Package scoring computes textual relevance between a posting and a
// desired role. Two backends implement the same contract: a semantic one
// backed by an external embedding service, and a deterministic keyword
// heuristic that is always available and serves as the fallback.
package scoring

import "context"

// Backend turns a (text, reference) pair into a relevance score in [0,1].
type Backend interface {
	// Name identifies the backend in logs and reason strings.
	Name() string

	// Available is probed once per poll cycle, not per posting. If the
	// backend is down at cycle start the whole cycle scores with the
	// fallback so scores stay comparable within the batch.
	Available(ctx context.Context) bool

	// Similarity scores text against reference. Results are
	// deterministic for identical inputs.
	Similarity(ctx context.Context, text, reference string) (float64, error)
}

// clamp01 bounds a score to [0,1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
