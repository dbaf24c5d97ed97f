package match

import (
	"context"
	"fmt"

	"github.com/WutIsHummus/FreshRoles/internal/model"
	"github.com/WutIsHummus/FreshRoles/internal/scoring"
	"github.com/WutIsHummus/FreshRoles/pkg/logging"
)

// Matcher evaluates (Posting, Profile) pairs. Evaluation is read-only
// and side-effect-free, so postings within a batch may be evaluated
// concurrently.
type Matcher struct {
	fallback *scoring.Keyword
	log      *logging.Logger
}

func New(log *logging.Logger) *Matcher {
	return &Matcher{
		fallback: scoring.NewKeyword(),
		log:      log.Component("matcher"),
	}
}

// Evaluate runs the filter pipeline and scores the posting with the
// given backend. It always produces a result: a backend error on an
// individual posting degrades to the keyword heuristic instead of
// failing the posting.
//
// Filter order: must-not → location/remote → must-have → relevance.
func (m *Matcher) Evaluate(ctx context.Context, p model.Posting, profile *model.Profile, backend scoring.Backend) model.MatchResult {
	text := p.SearchableText()

	// 1. Any must-not term is an automatic reject, regardless of score.
	if term, found := ContainsAny(text, profile.MustNotKeywords); found {
		return model.MatchResult{
			Score:               0,
			PassedKeywordFilter: false,
			Reasons:             []string{fmt.Sprintf("excluded: contains %q", term)},
		}
	}

	var reasons []string

	// 2. Location: reject only when the preferred locations miss AND the
	// posting's work mode conflicts with the remote preference.
	if len(profile.PreferredLocations) > 0 {
		loc, locMatch := ContainsAny(p.Location, profile.PreferredLocations)
		if locMatch {
			reasons = append(reasons, fmt.Sprintf("location: %s", loc))
		} else if remoteConflict(profile.RemotePreference, p.Remote) {
			return model.MatchResult{
				Score:               0,
				PassedKeywordFilter: false,
				Reasons: []string{fmt.Sprintf("rejected: location %q not preferred and %s posting conflicts with %s preference",
					p.Location, p.Remote, profile.RemotePreference)},
			}
		}
	}
	if profile.RemotePreference != model.RemoteAny && p.Remote == profile.RemotePreference {
		reasons = append(reasons, fmt.Sprintf("remote: %s", p.Remote))
	}

	// 3. Must-have terms, combined per the profile's knob.
	if len(profile.MustHaveKeywords) > 0 {
		hits := matchedTerms(text, profile.MustHaveKeywords)
		required := 1
		if profile.MustHaveMode == model.MustHaveAll {
			required = len(profile.MustHaveKeywords)
		}
		if len(hits) < required {
			return model.MatchResult{
				Score:               0,
				PassedKeywordFilter: false,
				Reasons: []string{fmt.Sprintf("rejected: %d of %d must-have keywords present, need %d",
					len(hits), len(profile.MustHaveKeywords), required)},
			}
		}
		for _, h := range hits {
			reasons = append(reasons, fmt.Sprintf("keyword: %s", h))
		}
	}

	// 4. Relevance: max similarity against the desired roles. With no
	// roles declared the keyword filters alone decide.
	score, degraded, scoreReasons := m.relevance(ctx, text, p, profile, backend)
	reasons = append(reasons, scoreReasons...)

	return model.MatchResult{
		Score:               score,
		PassedKeywordFilter: true,
		Passed:              score >= profile.MinScoreThreshold,
		Degraded:            degraded,
		Reasons:             reasons,
	}
}

func (m *Matcher) relevance(ctx context.Context, text string, p model.Posting, profile *model.Profile, backend scoring.Backend) (float64, bool, []string) {
	if len(profile.DesiredRoles) == 0 {
		return 1.0, false, nil
	}

	var (
		best     float64
		bestRole string
		degraded bool
		reasons  []string
	)
	for _, role := range profile.DesiredRoles {
		sim, err := backend.Similarity(ctx, text, role)
		if err != nil {
			m.log.Warn("scoring backend error, degrading to keyword heuristic",
				"posting_id", p.ID, "role", role, "err", err)
			degraded = true
			sim, _ = m.fallback.Similarity(ctx, text, role)
		}
		if sim > best {
			best = sim
			bestRole = role
		}
	}

	if best > 1 {
		best = 1
	}
	if bestRole != "" && best > 0 {
		reasons = append(reasons, fmt.Sprintf("best role %q: %.2f", bestRole, best))
	}
	if degraded {
		reasons = append(reasons, "degraded: keyword-overlap scoring")
	}
	return best, degraded, reasons
}

// remoteConflict reports whether a posting's work mode is incompatible
// with the profile preference. Unknown modes never conflict; the
// listing simply did not say.
func remoteConflict(pref, mode model.RemoteMode) bool {
	if pref == model.RemoteAny || pref == "" {
		return false
	}
	if mode == model.RemoteUnknown || mode == "" {
		return false
	}
	return pref != mode
}
