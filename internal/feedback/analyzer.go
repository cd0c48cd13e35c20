// Package feedback implements the feedback analyzer (C10): synthesizes
// liked/disliked aspects and recommendations from recent draft feedback,
// consumed by the draft generator as an optional prompt addendum.
package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/creatorpulse/creatorpulse/internal/llmgateway"
	"github.com/creatorpulse/creatorpulse/internal/persistence"
)

const (
	defaultWindowDays = 30
	minSignalCount    = 5
	listLimit         = 500
)

const systemPrompt = `You analyze a content creator's feedback history on past newsletter drafts. Respond with a JSON object only, no prose, no markdown fences. Keys: "liked_aspects" (array of short strings), "disliked_aspects" (array of short strings), "recommendations" (array of short strings).`

// Adjustment is the synthesized feedback signal the draft generator may
// fold into its prompt. A zero-value Adjustment (Has == false) means no
// adjustment should be applied — the caller had too few recent signals.
type Adjustment struct {
	Has             bool
	LikedAspects    []string
	DislikedAspects []string
	Recommendations []string
}

// Analyzer reads a user's recent feedback and, when there's enough of it,
// synthesizes an Adjustment via a single LLM call.
type Analyzer struct {
	Feedback persistence.FeedbackStore
	Gateway  *llmgateway.Gateway
	Model    string
}

// Analyze reports Adjustment{} (Has=false) when fewer than minSignalCount
// feedback rows fall within the last windowDays days — no LLM call is made
// in that case. windowDays <= 0 uses the default 30-day window.
func (a *Analyzer) Analyze(ctx context.Context, userID string, windowDays int) (Adjustment, error) {
	if windowDays <= 0 {
		windowDays = defaultWindowDays
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -windowDays)

	all, err := a.Feedback.ListByUser(ctx, userID, listLimit)
	if err != nil {
		return Adjustment{}, fmt.Errorf("feedback: list recent: %w", err)
	}

	recent := make([]persistence.Feedback, 0, len(all))
	for _, f := range all {
		if !f.CreatedAt.Before(cutoff) {
			recent = append(recent, f)
		}
	}
	if len(recent) < minSignalCount {
		return Adjustment{}, nil
	}

	resp, err := a.Gateway.Generate(ctx, userID, llmgateway.Request{
		Model:       a.Model,
		System:      systemPrompt,
		Prompt:      buildPrompt(recent, windowDays),
		MaxTokens:   512,
		ServiceName: "feedback_analyzer",
	})
	if err != nil {
		return Adjustment{}, fmt.Errorf("feedback: llm call: %w", err)
	}

	parsed, err := parseAdjustmentResponse(resp.Text)
	if err != nil {
		return Adjustment{}, fmt.Errorf("feedback: parse model response: %w", err)
	}

	return Adjustment{
		Has:             true,
		LikedAspects:    parsed.LikedAspects,
		DislikedAspects: parsed.DislikedAspects,
		Recommendations: parsed.Recommendations,
	}, nil
}

func buildPrompt(recent []persistence.Feedback, windowDays int) string {
	var bld strings.Builder
	fmt.Fprintf(&bld, "%d feedback signals from the last %d days:\n", len(recent), windowDays)
	for _, f := range recent {
		fmt.Fprintf(&bld, "- %s", f.Type)
		if f.Comment != "" {
			fmt.Fprintf(&bld, ": %s", f.Comment)
		}
		bld.WriteByte('\n')
	}
	return bld.String()
}

type adjustmentResponse struct {
	LikedAspects    []string `json:"liked_aspects"`
	DislikedAspects []string `json:"disliked_aspects"`
	Recommendations []string `json:"recommendations"`
}

func parseAdjustmentResponse(raw string) (adjustmentResponse, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var resp adjustmentResponse
	if err := json.Unmarshal([]byte(text), &resp); err == nil {
		return resp, nil
	}

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return adjustmentResponse{}, fmt.Errorf("feedback: no JSON object found in model response")
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &resp); err != nil {
		return adjustmentResponse{}, err
	}
	return resp, nil
}
