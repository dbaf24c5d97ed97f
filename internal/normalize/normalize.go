// Package normalize turns raw listing-source records into canonical
// Postings with stable identities.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/WutIsHummus/FreshRoles/internal/model"
)

// idLen is the number of hex characters kept from the sha256 digest.
const idLen = 16

// Posting converts one raw record. A record without both a URL and a
// title cannot be identified and is rejected; the caller skips it and
// moves on with the rest of the batch.
func Posting(raw model.RawPosting, now time.Time) (model.Posting, error) {
	title := strings.TrimSpace(raw.Title)
	url := strings.TrimSpace(raw.URL)
	if title == "" && url == "" {
		return model.Posting{}, fmt.Errorf("record has neither title nor url")
	}

	p := model.Posting{
		Title:       title,
		Company:     strings.TrimSpace(raw.Company),
		Location:    strings.TrimSpace(raw.Location),
		Description: strings.TrimSpace(raw.Description),
		URL:         url,
		FirstSeenAt: now.UTC(),
	}
	p.PostedAt = parsePostedAt(raw.PostedAt)
	p.Remote = inferRemote(p.Location, p.Description)
	p.ID = StableID(p)

	return p, nil
}

// StableID derives the posting identity. The source URL alone is enough
// when present; otherwise a composite of title, company, location and
// posted date stands in. Surface fields like the description are
// deliberately excluded so content drift never mints a new identity.
func StableID(p model.Posting) string {
	var key string
	if p.URL != "" {
		key = p.URL
	} else {
		posted := ""
		if p.PostedAt != nil {
			posted = p.PostedAt.UTC().Format("2006-01-02")
		}
		key = strings.ToLower(strings.Join([]string{p.Title, p.Company, p.Location, posted}, "|"))
	}
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:idLen]
}

// postedAtLayouts covers the timestamp shapes seen across listing APIs.
var postedAtLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parsePostedAt(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range postedAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// inferRemote classifies the work mode from the location and description
// text. Hybrid wins over remote when both appear, since listings that
// mention hybrid typically describe a partially remote arrangement.
func inferRemote(location, description string) model.RemoteMode {
	loc := strings.ToLower(location)
	desc := strings.ToLower(description)

	switch {
	case strings.Contains(loc, "hybrid") || strings.Contains(desc, "hybrid"):
		return model.RemoteHybrid
	case strings.Contains(loc, "remote") || strings.Contains(desc, "fully remote") ||
		strings.Contains(desc, "100% remote") || strings.Contains(desc, "work from home"):
		return model.RemoteRemote
	case strings.Contains(loc, "on-site") || strings.Contains(loc, "onsite") ||
		strings.Contains(desc, "on-site") || strings.Contains(desc, "onsite"):
		return model.RemoteOnsite
	case loc != "":
		return model.RemoteOnsite
	default:
		return model.RemoteUnknown
	}
}
