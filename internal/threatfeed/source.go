package threatfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rawblock/txscan-engine/internal/model"
)

// JSONFileSource reads the full exploit-pattern set from a JSON file on
// disk. Stands in for the manual-curation feed leg of a real threat
// intelligence pipeline (alongside an API feed and an RSS feed) without
// pulling in a dependency this module has no other use for.
type JSONFileSource struct {
	path string
}

// NewJSONFileSource builds a JSONFileSource reading from path.
func NewJSONFileSource(path string) *JSONFileSource {
	return &JSONFileSource{path: path}
}

// FetchPatterns reads and decodes the file fresh on every call, so an
// operator can update it in place between scheduler ticks.
func (s *JSONFileSource) FetchPatterns(ctx context.Context) ([]model.ExploitPattern, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("threatfeed: reading %s: %w", s.path, err)
	}
	var patterns []model.ExploitPattern
	if err := json.Unmarshal(raw, &patterns); err != nil {
		return nil, fmt.Errorf("threatfeed: decoding %s: %w", s.path, err)
	}
	return patterns, nil
}
