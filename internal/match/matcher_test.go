package match_test

import (
	"context"
	"errors"
	"testing"

	"github.com/WutIsHummus/FreshRoles/internal/match"
	"github.com/WutIsHummus/FreshRoles/internal/model"
	"github.com/WutIsHummus/FreshRoles/pkg/logging"
)

// fixedBackend returns a constant similarity (or error) for every call.
type fixedBackend struct {
	score float64
	err   error
}

func (f fixedBackend) Name() string                   { return "fixed" }
func (f fixedBackend) Available(context.Context) bool { return true }
func (f fixedBackend) Similarity(_ context.Context, _, _ string) (float64, error) {
	return f.score, f.err
}

func testProfile() *model.Profile {
	p := &model.Profile{
		DesiredRoles:      []string{"Software Engineer Intern"},
		MustHaveKeywords:  []string{"intern"},
		MustNotKeywords:   []string{"senior"},
		MinScoreThreshold: 0.15,
	}
	if err := p.Validate(); err != nil {
		panic(err)
	}
	return p
}

func austinPosting() model.Posting {
	return model.Posting{
		ID:          "abc123",
		Title:       "Software Engineer Intern",
		Location:    "Austin, TX",
		Description: "backend intern role",
		Remote:      model.RemoteOnsite,
	}
}

// ── Must-not dominance ─────────────────────────────────────────────────────

func TestEvaluate_MustNotForcesZeroScore(t *testing.T) {
	m := match.New(logging.NewNop())
	profile := testProfile()
	profile.MustNotKeywords = []string{"intern"}

	// Backend would score it perfectly; the must-not filter must win.
	res := m.Evaluate(context.Background(), austinPosting(), profile, fixedBackend{score: 1.0})

	if res.Score != 0 {
		t.Errorf("Score = %v, want 0", res.Score)
	}
	if res.PassedKeywordFilter {
		t.Error("PassedKeywordFilter = true, want false")
	}
	if res.Passed {
		t.Error("Passed = true, want false")
	}
}

func TestEvaluate_MatchingInternPosting(t *testing.T) {
	m := match.New(logging.NewNop())
	res := m.Evaluate(context.Background(), austinPosting(), testProfile(), fixedBackend{score: 0.9})

	if !res.PassedKeywordFilter {
		t.Fatalf("PassedKeywordFilter = false, want true; reasons: %v", res.Reasons)
	}
	if !res.Passed {
		t.Errorf("Passed = false, want true (score %v, threshold 0.15)", res.Score)
	}
}

// ── Location and remote preference ─────────────────────────────────────────

func TestEvaluate_LocationRejectNeedsBothMisses(t *testing.T) {
	m := match.New(logging.NewNop())
	p := austinPosting()

	cases := []struct {
		name      string
		locations []string
		remote    model.RemoteMode
		wantPass  bool
	}{
		{"location matches", []string{"Austin"}, model.RemoteRemote, true},
		{"location misses but remote compatible", []string{"Seattle"}, model.RemoteAny, true},
		{"location misses and remote conflicts", []string{"Seattle"}, model.RemoteRemote, false},
		{"no preferred locations at all", nil, model.RemoteRemote, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			profile := testProfile()
			profile.PreferredLocations = c.locations
			profile.RemotePreference = c.remote

			res := m.Evaluate(context.Background(), p, profile, fixedBackend{score: 0.9})
			if res.PassedKeywordFilter != c.wantPass {
				t.Errorf("PassedKeywordFilter = %v, want %v; reasons: %v",
					res.PassedKeywordFilter, c.wantPass, res.Reasons)
			}
		})
	}
}

func TestEvaluate_UnknownRemoteNeverConflicts(t *testing.T) {
	m := match.New(logging.NewNop())
	p := austinPosting()
	p.Remote = model.RemoteUnknown

	profile := testProfile()
	profile.PreferredLocations = []string{"Seattle"}
	profile.RemotePreference = model.RemoteRemote

	res := m.Evaluate(context.Background(), p, profile, fixedBackend{score: 0.9})
	if !res.PassedKeywordFilter {
		t.Error("unknown remote mode must not trigger the remote-conflict reject")
	}
}

// ── Must-have combination ──────────────────────────────────────────────────

func TestEvaluate_MustHaveAnyVsAll(t *testing.T) {
	m := match.New(logging.NewNop())
	p := austinPosting() // contains "intern" but not "rust"

	anyProfile := testProfile()
	anyProfile.MustHaveKeywords = []string{"intern", "rust"}
	res := m.Evaluate(context.Background(), p, anyProfile, fixedBackend{score: 0.9})
	if !res.PassedKeywordFilter {
		t.Error("any-mode: one matching keyword should be enough")
	}

	allProfile := testProfile()
	allProfile.MustHaveKeywords = []string{"intern", "rust"}
	allProfile.MustHaveMode = model.MustHaveAll
	res = m.Evaluate(context.Background(), p, allProfile, fixedBackend{score: 0.9})
	if res.PassedKeywordFilter {
		t.Error("all-mode: a missing keyword must reject")
	}
}

func TestEvaluate_NoMustHaveTermsAccepts(t *testing.T) {
	m := match.New(logging.NewNop())
	profile := testProfile()
	profile.MustHaveKeywords = nil

	res := m.Evaluate(context.Background(), austinPosting(), profile, fixedBackend{score: 0.9})
	if !res.PassedKeywordFilter {
		t.Error("empty must-have set should not reject")
	}
}

// ── Relevance score ────────────────────────────────────────────────────────

func TestEvaluate_EmptyDesiredRolesScoresOne(t *testing.T) {
	m := match.New(logging.NewNop())
	profile := testProfile()
	profile.DesiredRoles = nil

	res := m.Evaluate(context.Background(), austinPosting(), profile, fixedBackend{score: 0.01})
	if res.Score != 1.0 {
		t.Errorf("Score = %v, want 1.0 when no roles are declared", res.Score)
	}
}

func TestEvaluate_BackendErrorDegradesToKeyword(t *testing.T) {
	m := match.New(logging.NewNop())
	res := m.Evaluate(context.Background(), austinPosting(), testProfile(),
		fixedBackend{err: errors.New("service down")})

	if !res.Degraded {
		t.Error("Degraded = false, want true")
	}
	// Title contains all tokens of "Software Engineer Intern": the
	// keyword fallback scores it 1.0.
	if res.Score != 1.0 {
		t.Errorf("fallback Score = %v, want 1.0", res.Score)
	}
	if !res.Passed {
		t.Error("degraded scoring must still produce a pass/fail decision")
	}
}

func TestEvaluate_ScoreClamped(t *testing.T) {
	m := match.New(logging.NewNop())
	res := m.Evaluate(context.Background(), austinPosting(), testProfile(), fixedBackend{score: 3.5})
	if res.Score > 1 {
		t.Errorf("Score = %v, want clamped to 1", res.Score)
	}
}

// ── Threshold monotonicity ─────────────────────────────────────────────────

func TestEvaluate_ThresholdMonotonic(t *testing.T) {
	m := match.New(logging.NewNop())
	postings := []model.Posting{
		austinPosting(),
		{ID: "x1", Title: "Platform Intern", Description: "kubernetes intern", Location: "Remote", Remote: model.RemoteRemote},
		{ID: "x2", Title: "Sales Associate", Description: "retail", Location: "Austin, TX", Remote: model.RemoteOnsite},
	}

	passing := func(threshold float64) map[string]bool {
		profile := testProfile()
		profile.MustHaveKeywords = nil
		profile.MinScoreThreshold = threshold
		out := make(map[string]bool)
		for _, p := range postings {
			res := m.Evaluate(context.Background(), p, profile, fixedBackend{score: 0.5})
			out[p.ID] = res.Passed
		}
		return out
	}

	low := passing(0.1)
	high := passing(0.9)
	for id, passed := range high {
		if passed && !low[id] {
			t.Errorf("posting %s passes at 0.9 but not at 0.1: raising the threshold grew the passing set", id)
		}
	}
}
