package scoring_test

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/WutIsHummus/FreshRoles/internal/scoring"
)

// fakeEmbedServer serves an Ollama-shaped API returning a fixed vector
// per prompt.
func fakeEmbedServer(t *testing.T, models []string, vectors map[string][]float64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, _ *http.Request) {
		type m struct {
			Name string `json:"name"`
		}
		var out struct {
			Models []m `json:"models"`
		}
		for _, name := range models {
			out.Models = append(out.Models, m{Name: name})
		}
		json.NewEncoder(w).Encode(out)
	})
	mux.HandleFunc("/api/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt string `json:"prompt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		vec, ok := vectors[req.Prompt]
		if !ok {
			http.Error(w, "unknown prompt", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"embedding": vec})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// ── Availability probe ─────────────────────────────────────────────────────

func TestSemantic_Available(t *testing.T) {
	srv := fakeEmbedServer(t, []string{"nomic-embed-text:latest"}, nil)
	s := scoring.NewSemantic(srv.URL, "nomic-embed-text")
	if !s.Available(context.Background()) {
		t.Error("expected available when model is listed")
	}
}

func TestSemantic_UnavailableWhenModelMissing(t *testing.T) {
	srv := fakeEmbedServer(t, []string{"llama3:8b"}, nil)
	s := scoring.NewSemantic(srv.URL, "nomic-embed-text")
	if s.Available(context.Background()) {
		t.Error("expected unavailable when model is not listed")
	}
}

func TestSemantic_UnavailableWhenServerDown(t *testing.T) {
	srv := fakeEmbedServer(t, nil, nil)
	url := srv.URL
	srv.Close()
	s := scoring.NewSemantic(url, "nomic-embed-text")
	if s.Available(context.Background()) {
		t.Error("expected unavailable when server is unreachable")
	}
}

// ── Similarity rescaling ───────────────────────────────────────────────────

func TestSemantic_SimilarityRescaled(t *testing.T) {
	vectors := map[string][]float64{
		"identical a": {1, 0, 0},
		"identical b": {1, 0, 0},
		"opposite":    {-1, 0, 0},
		"orthogonal":  {0, 1, 0},
	}
	srv := fakeEmbedServer(t, []string{"nomic-embed-text"}, vectors)
	s := scoring.NewSemantic(srv.URL, "nomic-embed-text")

	cases := []struct {
		name      string
		text, ref string
		want      float64
	}{
		{"cosine 1 maps to 1", "identical a", "identical b", 1.0},
		{"cosine -1 maps to 0", "opposite", "identical a", 0.0},
		{"cosine 0 maps to 0.5", "orthogonal", "identical a", 0.5},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := s.Similarity(context.Background(), c.text, c.ref)
			if err != nil {
				t.Fatalf("Similarity returned error: %v", err)
			}
			if math.Abs(got-c.want) > 1e-9 {
				t.Errorf("Similarity = %v, want %v", got, c.want)
			}
		})
	}
}

func TestSemantic_ErrorOnServiceFailure(t *testing.T) {
	srv := fakeEmbedServer(t, []string{"nomic-embed-text"}, map[string][]float64{})
	s := scoring.NewSemantic(srv.URL, "nomic-embed-text")
	if _, err := s.Similarity(context.Background(), "unknown", "also unknown"); err == nil {
		t.Error("expected error when the embedding call fails")
	}
}
