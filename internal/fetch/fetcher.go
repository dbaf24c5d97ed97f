// Package fetch implements the listing-source client. The upstream is an
// Adzuna-compatible search API; it may return fewer results than exist
// (pagination caps, anti-bot limits) and the pipeline tolerates partial
// result sets.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/WutIsHummus/FreshRoles/internal/model"
)

const (
	defaultBaseURL = "https://api.adzuna.com/v1/api/jobs"
	pageSize       = 50
	maxPages       = 3 // max 150 results per query × location pair
	httpTimeout    = 15 * time.Second
)

// Client fetches job postings from the listing source.
type Client struct {
	appID   string
	appKey  string
	country string
	baseURL string
	client  *http.Client
}

// NewClient constructs a listing-source client with a shared HTTP client.
// Credentials are required; a watcher without them cannot discover
// anything and should fail at startup, not silently every cycle.
func NewClient(appID, appKey, country string) (*Client, error) {
	if appID == "" || appKey == "" {
		return nil, fmt.Errorf("listing source: SOURCE_APP_ID and SOURCE_APP_KEY are required")
	}
	if country == "" {
		country = "us"
	}
	return &Client{
		appID:   appID,
		appKey:  appKey,
		country: country,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: httpTimeout},
	}, nil
}

// SetBaseURL overrides the API endpoint. Used in tests.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = strings.TrimSuffix(u, "/")
}

// searchResponse mirrors the top-level search JSON response.
type searchResponse struct {
	Results []searchResult `json:"results"`
	Count   int            `json:"count"`
}

// searchResult mirrors a single listing.
type searchResult struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Company     displayNamed  `json:"company"`
	Location    displayNamed  `json:"location"`
	RedirectURL string        `json:"redirect_url"`
	Created     string        `json:"created"`
}

type displayNamed struct {
	DisplayName string `json:"display_name"`
}

// Search retrieves the available postings for a query and optional
// location filter, iterating pages until the source runs dry or maxPages
// is reached. A mid-pagination failure returns what was gathered so far
// together with the error; the caller decides whether a partial batch is
// usable.
func (c *Client) Search(ctx context.Context, query, location string) ([]model.RawPosting, error) {
	var results []model.RawPosting

	for page := 1; page <= maxPages; page++ {
		batch, err := c.fetchPage(ctx, query, location, page)
		if err != nil {
			return results, fmt.Errorf("page %d: %w", page, err)
		}
		if len(batch) == 0 {
			break
		}
		results = append(results, batch...)
		if len(batch) < pageSize {
			break // last page
		}
	}

	return results, nil
}

func (c *Client) fetchPage(ctx context.Context, query, location string, page int) ([]model.RawPosting, error) {
	endpoint := fmt.Sprintf("%s/%s/search/%d", c.baseURL, c.country, page)

	params := url.Values{}
	params.Set("app_id", c.appID)
	params.Set("app_key", c.appKey)
	params.Set("results_per_page", strconv.Itoa(pageSize))
	params.Set("what", query)
	params.Set("sort_by", "date")
	params.Set("content-type", "application/json")
	if location != "" {
		params.Set("where", location)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing source returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var apiResp searchResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}

	raws := make([]model.RawPosting, 0, len(apiResp.Results))
	for _, r := range apiResp.Results {
		u := r.RedirectURL
		if u == "" && r.ID != "" {
			u = fmt.Sprintf("adzuna:%s", r.ID)
		}
		raws = append(raws, model.RawPosting{
			Title:       r.Title,
			Company:     r.Company.DisplayName,
			Location:    r.Location.DisplayName,
			Description: r.Description,
			URL:         u,
			PostedAt:    r.Created,
		})
	}

	return raws, nil
}
