package trends

import (
	"encoding/json"
	"fmt"
	"strings"
)

type trendCandidate struct {
	Topic             string   `json:"topic"`
	Score             float64  `json:"score"`
	Rationale         string   `json:"rationale"`
	SupportingItemIDs []string `json:"supporting_item_ids"`
}

// parseTrendResponse decodes the model's JSON array, tolerating a
// markdown code fence around it since not every model honors "no fences"
// reliably.
func parseTrendResponse(raw string) ([]trendCandidate, error) {
	text := stripCodeFence(raw)

	var candidates []trendCandidate
	if err := json.Unmarshal([]byte(text), &candidates); err == nil {
		return candidates, nil
	}

	start := strings.IndexByte(text, '[')
	end := strings.LastIndexByte(text, ']')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("trends: no JSON array found in model response")
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &candidates); err != nil {
		return nil, fmt.Errorf("trends: unmarshal model response: %w", err)
	}
	return candidates, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
