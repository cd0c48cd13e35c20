// Package summarizer implements the content summarizer (C7): one LLM call
// per content item, cached by (content_id, summary_type).
package summarizer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/creatorpulse/creatorpulse/internal/llmgateway"
	"github.com/creatorpulse/creatorpulse/internal/persistence"
)

// band describes one of the three summary_type length bands.
type band struct {
	keyPoints  int
	wordBudget int
}

var bands = map[string]band{
	persistence.SummaryTypeBrief:    {keyPoints: 3, wordBudget: 60},
	persistence.SummaryTypeStandard: {keyPoints: 5, wordBudget: 150},
	persistence.SummaryTypeDetailed: {keyPoints: 8, wordBudget: 350},
}

// Summarizer generates and caches per-item summaries through the LLM
// gateway.
type Summarizer struct {
	Content   persistence.ContentItemStore
	Summaries persistence.SummaryStore
	Gateway   *llmgateway.Gateway
	Model     string
}

// Summarize returns the cached summary for (contentID, summaryType) if one
// exists, otherwise generates, persists, and returns a fresh one.
func (s *Summarizer) Summarize(ctx context.Context, userID, contentID, summaryType string) (persistence.ContentSummary, error) {
	if cached, err := s.Summaries.Get(ctx, contentID, summaryType); err == nil {
		return cached, nil
	} else if err != persistence.ErrNotFound {
		return persistence.ContentSummary{}, err
	}

	b, ok := bands[summaryType]
	if !ok {
		return persistence.ContentSummary{}, fmt.Errorf("summarizer: unknown summary_type %q", summaryType)
	}

	item, err := s.Content.Get(ctx, contentID)
	if err != nil {
		return persistence.ContentSummary{}, fmt.Errorf("summarizer: load content item: %w", err)
	}

	resp, err := s.Gateway.Generate(ctx, userID, llmgateway.Request{
		Model:       s.Model,
		System:      systemPrompt(b),
		Prompt:      buildPrompt(item),
		MaxTokens:   1024,
		ServiceName: "content_summarizer",
	})
	if err != nil {
		return persistence.ContentSummary{}, fmt.Errorf("summarizer: llm call: %w", err)
	}

	parsed, err := parseSummaryResponse(resp.Text)
	if err != nil {
		return persistence.ContentSummary{}, fmt.Errorf("summarizer: parse model response: %w", err)
	}

	cs := persistence.ContentSummary{
		ContentID:      contentID,
		SummaryType:    summaryType,
		Title:          parsed.Title,
		KeyPoints:      parsed.KeyPoints,
		Summary:        parsed.Summary,
		Topics:         parsed.Topics,
		Sentiment:      parsed.Sentiment,
		RelevanceScore: parsed.RelevanceScore,
		UpdatedAt:      time.Now().UTC(),
	}
	return s.Summaries.Upsert(ctx, cs)
}

// SummarizeBatch processes ids sequentially, with a single per-call
// rate-limit check inherited from the gateway — no batching shortcut that
// would let one oversized batch skip the per-item rate-limit accounting.
func (s *Summarizer) SummarizeBatch(ctx context.Context, userID string, ids []string, summaryType string) ([]persistence.ContentSummary, error) {
	out := make([]persistence.ContentSummary, 0, len(ids))
	for _, id := range ids {
		cs, err := s.Summarize(ctx, userID, id, summaryType)
		if err != nil {
			return out, fmt.Errorf("summarizer: batch item %s: %w", id, err)
		}
		out = append(out, cs)
	}
	return out, nil
}

// SummarizeRecent finds content items for userID stored (created_at) since
// "since" that have no summary of summaryType yet, and summarizes them.
func (s *Summarizer) SummarizeRecent(ctx context.Context, userID string, since time.Time, summaryType string) ([]persistence.ContentSummary, error) {
	items, err := s.Content.ListByUser(ctx, userID, &since)
	if err != nil {
		return nil, fmt.Errorf("summarizer: list recent content: %w", err)
	}
	var ids []string
	for _, item := range items {
		if _, err := s.Summaries.Get(ctx, item.ID, summaryType); err == persistence.ErrNotFound {
			ids = append(ids, item.ID)
		}
	}
	return s.SummarizeBatch(ctx, userID, ids, summaryType)
}

func systemPrompt(b band) string {
	return fmt.Sprintf(`You summarize a single piece of content for a content creator. Respond with a JSON object only, no prose, no markdown fences. Keys: "title" (string), "key_points" (array of up to %d short strings), "summary" (string, about %d words), "topics" (array of short topic strings), "sentiment" (one of "positive","neutral","negative"), "relevance_score" (number 0-1).`, b.keyPoints, b.wordBudget)
}

func buildPrompt(item persistence.ContentItem) string {
	var bld strings.Builder
	fmt.Fprintf(&bld, "Title: %s\nURL: %s\n\n%s", item.Title, item.URL, item.Content)
	return bld.String()
}

type summaryResponse struct {
	Title          string   `json:"title"`
	KeyPoints      []string `json:"key_points"`
	Summary        string   `json:"summary"`
	Topics         []string `json:"topics"`
	Sentiment      string   `json:"sentiment"`
	RelevanceScore float64  `json:"relevance_score"`
}

func parseSummaryResponse(raw string) (summaryResponse, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var resp summaryResponse
	if err := json.Unmarshal([]byte(text), &resp); err == nil {
		return resp, nil
	}

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return summaryResponse{}, fmt.Errorf("no JSON object found in model response")
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &resp); err != nil {
		return summaryResponse{}, err
	}
	return resp, nil
}
