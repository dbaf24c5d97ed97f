package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	embedTimeout = 20 * time.Second
	probeTimeout = 3 * time.Second
)

// Semantic scores with an Ollama-compatible embedding service: both
// texts are embedded and their cosine similarity, naturally in [-1,1],
// is rescaled to [0,1] via (cos+1)/2.
type Semantic struct {
	baseURL string
	model   string
	client  *http.Client

	mu    sync.Mutex
	cache map[string][]float64 // reference embeddings, reused across a batch
}

func NewSemantic(baseURL, model string) *Semantic {
	return &Semantic{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: embedTimeout},
		cache:   make(map[string][]float64),
	}
}

func (s *Semantic) Name() string { return "semantic" }

// Available checks the service's model list for the configured model.
// Kept cheap: the result is only trusted for the cycle that probed it.
func (s *Semantic) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}

	var payload struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return false
	}
	for _, m := range payload.Models {
		if strings.HasPrefix(m.Name, s.model) {
			return true
		}
	}
	return false
}

func (s *Semantic) Similarity(ctx context.Context, text, reference string) (float64, error) {
	refVec, err := s.embedCached(ctx, reference)
	if err != nil {
		return 0, fmt.Errorf("embed reference: %w", err)
	}
	textVec, err := s.embed(ctx, text)
	if err != nil {
		return 0, fmt.Errorf("embed text: %w", err)
	}

	cos := cosine(textVec, refVec)
	return clamp01((cos + 1) / 2), nil
}

// embedCached memoises reference embeddings. References are the
// profile's desired roles, a handful of short strings asked about once
// per posting; caching them turns N×R embed calls into N+R.
func (s *Semantic) embedCached(ctx context.Context, text string) ([]float64, error) {
	s.mu.Lock()
	vec, ok := s.cache[text]
	s.mu.Unlock()
	if ok {
		return vec, nil
	}

	vec, err := s.embed(ctx, text)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[text] = vec
	s.mu.Unlock()
	return vec, nil
}

func (s *Semantic) embed(ctx context.Context, text string) ([]float64, error) {
	payload, err := json.Marshal(map[string]string{"model": s.model, "prompt": text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http POST: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("embedding service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode embedding: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("embedding service returned empty vector")
	}
	return out.Embedding, nil
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
