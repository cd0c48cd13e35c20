// Package trends implements the trend detector (C6): a single LLM call
// over a user's recent content that returns ranked topics, which are
// filtered, persisted, and returned. A response the model doesn't return
// parseable JSON for is treated as "no trends" rather than synthesized.
package trends

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/creatorpulse/creatorpulse/internal/cperrors"
	"github.com/creatorpulse/creatorpulse/internal/llmgateway"
	"github.com/creatorpulse/creatorpulse/internal/persistence"
)

const (
	defaultDaysBack  = 7
	defaultMinScore  = 0.5
	defaultMaxTrends = 10
	maxCandidateItems = 60
)

// Params controls one detection run. Zero values fall back to the spec's
// defaults.
type Params struct {
	UserID    string
	DaysBack  int
	MinScore  float64
	MaxTrends int
}

func (p *Params) applyDefaults() {
	if p.DaysBack <= 0 {
		p.DaysBack = defaultDaysBack
	}
	if p.MinScore <= 0 {
		p.MinScore = defaultMinScore
	}
	if p.MaxTrends <= 0 {
		p.MaxTrends = defaultMaxTrends
	}
}

// Detector reads recent content, optionally enriched by C7 summaries, and
// asks the LLM gateway to rank it into topics.
type Detector struct {
	Content   persistence.ContentItemStore
	Summaries persistence.SummaryStore
	Trends    persistence.TrendStore
	Vectors   persistence.VectorStore
	Gateway   *llmgateway.Gateway
	Model     string
}

// Detect runs one detection pass for params.UserID. An empty content set
// or an unparseable model response both return cperrors.NoTrends and a nil
// slice — callers (C9) must treat that as the "no trends" fallback
// scenario, never as a hard failure to retry.
func (d *Detector) Detect(ctx context.Context, params Params) ([]persistence.Trend, error) {
	params.applyDefaults()

	since := time.Now().UTC().Add(-time.Duration(params.DaysBack) * 24 * time.Hour)
	items, err := d.Content.ListByUser(ctx, params.UserID, &since)
	if err != nil {
		return nil, fmt.Errorf("trends: list content: %w", err)
	}
	if len(items) == 0 {
		return nil, cperrors.NoTrends("trends: no content items in window")
	}

	items = d.collapseDuplicates(ctx, items)
	if len(items) > maxCandidateItems {
		items = items[:maxCandidateItems]
	}

	prompt := d.buildPrompt(ctx, params.UserID, items)
	resp, err := d.Gateway.Generate(ctx, params.UserID, llmgateway.Request{
		Model:       d.Model,
		System:      trendSystemPrompt,
		Prompt:      prompt,
		MaxTokens:   2048,
		ServiceName: "trend_detector",
	})
	if err != nil {
		return nil, fmt.Errorf("trends: llm call: %w", err)
	}

	candidates, err := parseTrendResponse(resp.Text)
	if err != nil || len(candidates) == 0 {
		return nil, cperrors.NoTrends("trends: model returned no parseable trends")
	}

	filtered := make([]trendCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Score >= params.MinScore {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) == 0 {
		return nil, cperrors.NoTrends("trends: no candidate cleared min_score")
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Score > filtered[j].Score })
	if len(filtered) > params.MaxTrends {
		filtered = filtered[:params.MaxTrends]
	}

	out := make([]persistence.Trend, 0, len(filtered))
	now := time.Now().UTC()
	for _, c := range filtered {
		t := persistence.Trend{
			ID:                uuid.NewString(),
			UserID:            params.UserID,
			Topic:             c.Topic,
			Score:             c.Score,
			SupportingItemIDs: c.SupportingItemIDs,
			DetectedAt:        now,
		}
		created, err := d.Trends.Create(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("trends: persist: %w", err)
		}
		out = append(out, created)
	}
	return out, nil
}

// collapseDuplicates uses the vector store (if enabled) to drop content
// items that are near-duplicates of one already kept, so LLM context isn't
// spent on e.g. the same story crossposted to two subreddits. With the
// vector store disabled this is a no-op: every candidate item is sent.
func (d *Detector) collapseDuplicates(ctx context.Context, items []persistence.ContentItem) []persistence.ContentItem {
	if d.Vectors == nil {
		return items
	}
	kept := make([]persistence.ContentItem, 0, len(items))
	for _, item := range items {
		vec, ok := textFingerprint(item, d.Vectors.Dimension())
		if !ok {
			kept = append(kept, item)
			continue
		}
		hits, err := d.Vectors.SimilaritySearch(ctx, vec, 1, map[string]string{"user_id": item.UserID})
		if err == nil && len(hits) > 0 && hits[0].Score >= duplicateScoreThreshold {
			continue
		}
		_ = d.Vectors.Upsert(ctx, item.ID, vec, map[string]string{"user_id": item.UserID, "url": item.URL})
		kept = append(kept, item)
	}
	return kept
}

const trendSystemPrompt = `You identify emerging topics across a list of content items for a single content creator. Respond with a JSON array only, no prose, no markdown fences. Each element must have keys: "topic" (string), "score" (number 0-1), "rationale" (string), "supporting_item_ids" (array of strings).`

func (d *Detector) buildPrompt(ctx context.Context, userID string, items []persistence.ContentItem) string {
	var b strings.Builder
	b.WriteString("Content items:\n")
	for _, item := range items {
		summary := ""
		if d.Summaries != nil {
			if s, err := d.Summaries.Get(ctx, item.ID, persistence.SummaryTypeBrief); err == nil {
				summary = s.Summary
			}
		}
		text := summary
		if text == "" {
			text = truncate(item.Content, 400)
		}
		fmt.Fprintf(&b, "- id=%s title=%q: %s\n", item.ID, item.Title, text)
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
