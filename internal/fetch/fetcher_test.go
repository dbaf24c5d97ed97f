package fetch_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/WutIsHummus/FreshRoles/internal/fetch"
)

func listingJSON(ids ...string) map[string]any {
	results := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		results = append(results, map[string]any{
			"id":           id,
			"title":        "Software Engineer Intern " + id,
			"description":  "backend intern role",
			"company":      map[string]any{"display_name": "TestCo"},
			"location":     map[string]any{"display_name": "Austin, TX"},
			"redirect_url": "https://x.test/jobs/" + id,
			"created":      "2026-08-27T10:00:00Z",
		})
	}
	return map[string]any{"results": results, "count": len(results)}
}

// pagedServer serves canned pages keyed by page number; unknown pages
// come back empty.
func pagedServer(t *testing.T, pages map[int]map[string]any) (*httptest.Server, *[]int) {
	t.Helper()
	var requested []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		page, err := strconv.Atoi(parts[len(parts)-1])
		if err != nil {
			http.Error(w, "bad page", http.StatusBadRequest)
			return
		}
		requested = append(requested, page)
		body, ok := pages[page]
		if !ok {
			body = map[string]any{"results": []any{}, "count": 0}
		}
		json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &requested
}

func newClient(t *testing.T, srv *httptest.Server) *fetch.Client {
	t.Helper()
	c, err := fetch.NewClient("app-id", "app-key", "us")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	c.SetBaseURL(srv.URL)
	return c
}

func TestSearch_StopsOnShortPage(t *testing.T) {
	srv, requested := pagedServer(t, map[int]map[string]any{
		1: listingJSON("a", "b", "c"),
	})
	c := newClient(t, srv)

	raws, err := c.Search(context.Background(), "intern", "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(raws) != 3 {
		t.Errorf("got %d postings, want 3", len(raws))
	}
	// 3 < page size, so no second request.
	if len(*requested) != 1 {
		t.Errorf("requested pages %v, want just [1]", *requested)
	}
	if raws[0].Title != "Software Engineer Intern a" || raws[0].URL != "https://x.test/jobs/a" {
		t.Errorf("first posting mapped wrong: %+v", raws[0])
	}
}

func TestSearch_WalksFullPages(t *testing.T) {
	full := make([]string, 50)
	for i := range full {
		full[i] = fmt.Sprintf("p1-%d", i)
	}
	srv, requested := pagedServer(t, map[int]map[string]any{
		1: listingJSON(full...),
		2: listingJSON("p2-only"),
	})
	c := newClient(t, srv)

	raws, err := c.Search(context.Background(), "intern", "Austin")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(raws) != 51 {
		t.Errorf("got %d postings, want 51 across two pages", len(raws))
	}
	if got := *requested; len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("requested pages %v, want [1 2]", got)
	}
}

func TestSearch_MidPaginationFailureReturnsPartialBatch(t *testing.T) {
	full := make([]string, 50)
	for i := range full {
		full[i] = fmt.Sprintf("p1-%d", i)
	}
	page := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		page++
		if page > 1 {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(listingJSON(full...))
	}))
	t.Cleanup(srv.Close)
	c := newClient(t, srv)

	raws, err := c.Search(context.Background(), "intern", "")
	if err == nil {
		t.Fatal("expected error from failed second page")
	}
	if len(raws) != 50 {
		t.Errorf("got %d postings alongside the error, want the 50 already gathered", len(raws))
	}
}

func TestSearch_ErrorStatusPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"invalid app credentials"}`, http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)
	c := newClient(t, srv)

	if _, err := c.Search(context.Background(), "intern", ""); err == nil {
		t.Error("expected error on 401 response")
	}
}

func TestSearch_FallbackURLWhenRedirectMissing(t *testing.T) {
	body := listingJSON("raw-1")
	body["results"].([]map[string]any)[0]["redirect_url"] = ""
	srv, _ := pagedServer(t, map[int]map[string]any{1: body})
	c := newClient(t, srv)

	raws, err := c.Search(context.Background(), "intern", "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(raws) != 1 || raws[0].URL != "adzuna:raw-1" {
		t.Errorf("fallback URL = %q, want adzuna:raw-1", raws[0].URL)
	}
}

// ── File-based source ──────────────────────────────────────────────────────

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "postings.json")
	content := `[
		{"title": "Software Engineer Intern", "company": "TestCo", "location": "Austin, TX", "url": "https://x.test/jobs/1"},
		{"title": "Backend Intern", "company": "OtherCo"}
	]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write postings: %v", err)
	}

	raws, err := fetch.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(raws) != 2 {
		t.Fatalf("got %d postings, want 2", len(raws))
	}
	if raws[0].URL != "https://x.test/jobs/1" || raws[1].Company != "OtherCo" {
		t.Errorf("postings mapped wrong: %+v", raws)
	}
}

func TestReadFile_Errors(t *testing.T) {
	if _, err := fetch.ReadFile(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte(`{"not": "an array"`), 0o644); err != nil {
		t.Fatalf("write postings: %v", err)
	}
	if _, err := fetch.ReadFile(bad); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	if _, err := fetch.NewClient("", "key", "us"); err == nil {
		t.Error("expected error for missing app id")
	}
	if _, err := fetch.NewClient("id", "", "us"); err == nil {
		t.Error("expected error for missing app key")
	}
}
