// Package model defines the shared data structures of the discovery
// pipeline: postings, matching profiles, dedup ledger records and match
// results.
package model

import (
	"fmt"
	"strings"
	"time"
)

// RemoteMode classifies how a role is worked, or what a profile accepts.
type RemoteMode string

const (
	RemoteOnsite  RemoteMode = "onsite"
	RemoteHybrid  RemoteMode = "hybrid"
	RemoteRemote  RemoteMode = "remote"
	RemoteAny     RemoteMode = "any"
	RemoteUnknown RemoteMode = "unknown"
)

// ParseRemoteMode validates a remote-mode string from configuration.
// The empty string maps to RemoteAny.
func ParseRemoteMode(s string) (RemoteMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return RemoteAny, nil
	case string(RemoteOnsite):
		return RemoteOnsite, nil
	case string(RemoteHybrid):
		return RemoteHybrid, nil
	case string(RemoteRemote):
		return RemoteRemote, nil
	case string(RemoteAny):
		return RemoteAny, nil
	default:
		return RemoteUnknown, fmt.Errorf("invalid remote mode %q", s)
	}
}

// Posting is a discovered job listing with a stable identity. ID never
// changes across re-scrapes of the same listing, even when surface text
// (applicant counts, view counts) drifts.
type Posting struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Company     string     `json:"company"`
	Location    string     `json:"location"`
	Description string     `json:"description"`
	URL         string     `json:"url"`
	Remote      RemoteMode `json:"remote"`
	PostedAt    *time.Time `json:"postedAt,omitempty"`
	FirstSeenAt time.Time  `json:"firstSeenAt"`
}

// SearchableText returns the text used for matching and scoring.
// An empty description leaves the title standing alone.
func (p Posting) SearchableText() string {
	if p.Description == "" {
		return p.Title
	}
	return p.Title + " " + p.Description
}

// MustHaveAny and MustHaveAll control how must-have keywords combine.
const (
	MustHaveAny = "any"
	MustHaveAll = "all"
)

// Profile is the user's preference declaration, loaded once per run and
// immutable for the run's duration.
type Profile struct {
	Name               string     `yaml:"name"`
	DesiredRoles       []string   `yaml:"desired_roles"`
	MustHaveKeywords   []string   `yaml:"must_have_keywords"`
	MustNotKeywords    []string   `yaml:"must_not_keywords"`
	MustHaveMode       string     `yaml:"must_have_mode"` // "any" (default) or "all"
	PreferredLocations []string   `yaml:"preferred_locations"`
	RemotePreference   RemoteMode `yaml:"remote_preference"`
	MinScoreThreshold  float64    `yaml:"min_score_threshold"`
}

// Validate normalises defaults and rejects out-of-range values.
func (p *Profile) Validate() error {
	switch p.MustHaveMode {
	case "":
		p.MustHaveMode = MustHaveAny
	case MustHaveAny, MustHaveAll:
	default:
		return fmt.Errorf("must_have_mode must be %q or %q, got %q", MustHaveAny, MustHaveAll, p.MustHaveMode)
	}
	if p.RemotePreference == "" {
		p.RemotePreference = RemoteAny
	}
	if _, err := ParseRemoteMode(string(p.RemotePreference)); err != nil {
		return fmt.Errorf("remote_preference: %w", err)
	}
	if p.MinScoreThreshold < 0 || p.MinScoreThreshold > 1 {
		return fmt.Errorf("min_score_threshold must be in [0,1], got %v", p.MinScoreThreshold)
	}
	return nil
}

// FingerprintRecord is one dedup ledger entry. At most one exists per
// posting id; NotifiedAt is set at most once and never cleared.
type FingerprintRecord struct {
	PostingID   string
	FirstSeenAt time.Time
	NotifiedAt  *time.Time
	LastScore   *float64
}

// MatchResult is the outcome of evaluating one (Posting, Profile) pair.
// Reasons are human-readable rationale for logs and notifications, not
// inputs to any decision.
type MatchResult struct {
	Score               float64  `json:"score"`
	PassedKeywordFilter bool     `json:"passedKeywordFilter"`
	Passed              bool     `json:"passed"`
	Degraded            bool     `json:"degraded"`
	Reasons             []string `json:"reasons,omitempty"`
}

// RawPosting is an unnormalised record as produced by the listing source.
type RawPosting struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PostedAt    string `json:"postedAt,omitempty"`
}

// CycleStats summarises one full fetch-score-notify pass.
type CycleStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Fetched     int
	Skipped     int
	New         int
	Matched     int
	Notified    int
	Degraded    bool
	Err         error
}
