// Package notify ships notifications for matched postings over ntfy, a
// plain-HTTP pub-sub service. One Dispatch call makes exactly one
// outbound attempt; retries are the scheduler's business, driven by the
// fingerprint ledger.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/WutIsHummus/FreshRoles/internal/model"
)

const dispatchTimeout = 10 * time.Second

// Dispatcher formats and publishes one notification per matched posting.
type Dispatcher struct {
	server string
	topic  string
	client *http.Client
}

func NewDispatcher(server, topic string) (*Dispatcher, error) {
	if topic == "" {
		return nil, fmt.Errorf("ntfy: topic is required")
	}
	if server == "" {
		server = "https://ntfy.sh"
	}
	return &Dispatcher{
		server: strings.TrimSuffix(server, "/"),
		topic:  topic,
		client: &http.Client{Timeout: dispatchTimeout},
	}, nil
}

// Topic returns the destination identifier, recorded with each delivery.
func (d *Dispatcher) Topic() string { return d.topic }

// Dispatch publishes the posting and returns a notification id on
// success. On transport failure it returns the error without retrying;
// the posting stays un-notified in the ledger and is retried next cycle.
func (d *Dispatcher) Dispatch(ctx context.Context, p model.Posting, res model.MatchResult) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		d.server+"/"+d.topic, strings.NewReader(body(p, res)))
	if err != nil {
		return "", err
	}
	// Headers must stay ASCII; the title is kept plain for that reason.
	req.Header.Set("Title", fmt.Sprintf("NEW: %s @ %s", p.Title, p.Company))
	req.Header.Set("Priority", priority(res.Score))
	req.Header.Set("Tags", strings.Join(tags(p, res), ","))
	if p.URL != "" {
		req.Header.Set("Click", p.URL)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ntfy publish: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	return uuid.NewString(), nil
}

func body(p model.Posting, res model.MatchResult) string {
	lines := []string{
		"Location: " + orNotSpecified(p.Location),
		"Remote: " + string(p.Remote),
		fmt.Sprintf("Score: %.0f%%", res.Score*100),
	}
	if p.PostedAt != nil {
		lines = append(lines, "Posted: "+p.PostedAt.Format("2006-01-02"))
	}
	if len(res.Reasons) > 0 {
		n := len(res.Reasons)
		if n > 3 {
			n = 3
		}
		lines = append(lines, strings.Join(res.Reasons[:n], ", "))
	}
	return strings.Join(lines, "\n")
}

func priority(score float64) string {
	switch {
	case score >= 0.8:
		return "high"
	case score >= 0.6:
		return "default"
	default:
		return "low"
	}
}

func tags(p model.Posting, res model.MatchResult) []string {
	out := []string{"briefcase"}
	if p.Remote == model.RemoteRemote {
		out = append(out, "house")
	}
	if res.Score >= 0.8 {
		out = append(out, "star")
	}
	return out
}

func orNotSpecified(s string) string {
	if s == "" {
		return "Not specified"
	}
	return s
}

// SetServer overrides the ntfy server URL. Used in tests.
func (d *Dispatcher) SetServer(u string) {
	d.server = strings.TrimSuffix(u, "/")
}
