package fetch

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/WutIsHummus/FreshRoles/internal/model"
)

// ReadFile loads raw postings from a local JSON array. It backs the
// dry-run `match` command so a batch can be scored without credentials
// or a live fetch.
func ReadFile(path string) ([]model.RawPosting, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read postings %s: %w", path, err)
	}

	var raws []model.RawPosting
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("parse postings %s: %w", path, err)
	}
	return raws, nil
}
