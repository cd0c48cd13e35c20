// Package draft implements the draft generator (C9): the single newsletter
// draft materialized per user per run, driven by trends, summaries, and the
// resolved voice/tone preference.
package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/creatorpulse/creatorpulse/internal/cperrors"
	"github.com/creatorpulse/creatorpulse/internal/eventbus"
	"github.com/creatorpulse/creatorpulse/internal/feedback"
	"github.com/creatorpulse/creatorpulse/internal/llmgateway"
	"github.com/creatorpulse/creatorpulse/internal/persistence"
	"github.com/creatorpulse/creatorpulse/internal/preferences"
	"github.com/creatorpulse/creatorpulse/internal/summarizer"
	"github.com/creatorpulse/creatorpulse/internal/trends"
)

const defaultMinScore = 0.3

const systemPrompt = `You write a newsletter draft for a content creator from a set of trending topics and their supporting material. Respond with a JSON object only, no prose, no markdown fences. Keys: "title" (string), "sections" (array of objects, each with "type" one of "intro","topic","conclusion", optional "title", and "content"). Produce exactly one intro, one topic section per trend given, and one conclusion, in that order.`

// Detector is the subset of trends.Detector's behavior the generator
// depends on — satisfied by *trends.Detector.
type Detector interface {
	Detect(ctx context.Context, params trends.Params) ([]persistence.Trend, error)
}

// Summarizer is the subset of summarizer.Summarizer's behavior the
// generator depends on — satisfied by *summarizer.Summarizer.
type Summarizer interface {
	Summarize(ctx context.Context, userID, contentID, summaryType string) (persistence.ContentSummary, error)
}

// FeedbackAnalyzer is the subset of feedback.Analyzer's behavior the
// generator depends on — satisfied by *feedback.Analyzer.
type FeedbackAnalyzer interface {
	Analyze(ctx context.Context, userID string, windowDays int) (feedback.Adjustment, error)
}

// Generator owns the end-to-end generate_draft operation.
type Generator struct {
	Drafts    persistence.DraftStore
	Voices    persistence.VoiceProfileStore
	Prefs     *preferences.Resolver
	Trends    Detector
	Summaries Summarizer
	Feedback  FeedbackAnalyzer
	Gateway   *llmgateway.Gateway
	Bus       eventbus.Bus
	Model     string
}

// Generate runs the full C9 protocol. It persists a placeholder row with
// status=generating before doing any LLM work, then updates that same row
// in place to ready or failed — it never creates a second row for a given
// generation.
func (g *Generator) Generate(ctx context.Context, userID string, topicCount, daysBack int) (persistence.Draft, error) {
	placeholder, err := g.startPlaceholder(ctx, userID)
	if err != nil {
		return persistence.Draft{}, err
	}

	draft, genErr := g.materialize(ctx, userID, placeholder, topicCount, daysBack)
	if genErr != nil {
		failed := placeholder
		failed.Status = persistence.DraftStatusFailed
		failed.Metadata = map[string]any{
			"error":      genErr.Error(),
			"error_type": errorType(genErr),
		}
		if updated, uerr := g.Drafts.Update(ctx, failed); uerr == nil {
			return updated, genErr
		}
		return failed, genErr
	}
	return draft, nil
}

// startPlaceholder persists (or reuses) the single draft row for userID,
// matching the regeneration invariant: a draft whose status is ready,
// editing, or failed is overwritten in place rather than duplicated.
func (g *Generator) startPlaceholder(ctx context.Context, userID string) (persistence.Draft, error) {
	existing, err := g.Drafts.GetLatestForUser(ctx, userID)
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return g.Drafts.Create(ctx, persistence.Draft{
			ID:          uuid.NewString(),
			UserID:      userID,
			Status:      persistence.DraftStatusGenerating,
			GeneratedAt: time.Now().UTC(),
		})
	case err != nil:
		return persistence.Draft{}, fmt.Errorf("draft: load existing draft: %w", err)
	case existing.Status == persistence.DraftStatusGenerating:
		return existing, nil
	default:
		existing.Status = persistence.DraftStatusGenerating
		existing.GeneratedAt = time.Now().UTC()
		existing.Metadata = nil
		return g.Drafts.Update(ctx, existing)
	}
}

func (g *Generator) materialize(ctx context.Context, userID string, placeholder persistence.Draft, topicCount, daysBack int) (persistence.Draft, error) {
	prefs, err := g.Prefs.Get(ctx, userID)
	if err != nil {
		return persistence.Draft{}, fmt.Errorf("draft: resolve preferences: %w", err)
	}

	foundTrends, err := g.Trends.Detect(ctx, trends.Params{
		UserID:    userID,
		DaysBack:  daysBack,
		MinScore:  defaultMinScore,
		MaxTrends: topicCount,
	})
	if err != nil {
		if isNoTrends(err) {
			return g.finalizeFallback(ctx, placeholder)
		}
		return persistence.Draft{}, fmt.Errorf("draft: detect trends: %w", err)
	}

	voiceUsed := false
	var toneInstruction string
	if voice, ok := g.resolveVoiceProfile(ctx, userID, prefs); ok {
		voiceUsed = true
		toneInstruction = voicePromptSection(voice)
	} else {
		toneInstruction = preferences.ToneInstruction(prefs)
	}

	var adjustment feedback.Adjustment
	if g.Feedback != nil {
		if adj, ferr := g.Feedback.Analyze(ctx, userID, 0); ferr == nil {
			adjustment = adj
		}
	}

	summaries := make([]topicMaterial, 0, len(foundTrends))
	for _, t := range foundTrends {
		material := topicMaterial{trend: t}
		for _, itemID := range t.SupportingItemIDs {
			cs, serr := g.Summaries.Summarize(ctx, userID, itemID, persistence.SummaryTypeStandard)
			if serr == nil {
				material.summaries = append(material.summaries, cs)
			}
		}
		summaries = append(summaries, material)
	}

	resp, err := g.Gateway.Generate(ctx, userID, llmgateway.Request{
		Model:       g.Model,
		System:      systemPrompt,
		Prompt:      buildDraftPrompt(toneInstruction, summaries, adjustment),
		MaxTokens:   4096,
		ServiceName: "draft_generator",
	})
	if err != nil {
		return persistence.Draft{}, fmt.Errorf("draft: llm call: %w", err)
	}

	parsed, err := parseDraftResponse(resp.Text)
	if err != nil {
		return persistence.Draft{}, fmt.Errorf("draft: parse model response: %w", err)
	}

	trendTopics := make([]string, 0, len(foundTrends))
	for _, t := range foundTrends {
		trendTopics = append(trendTopics, t.Topic)
	}

	final := placeholder
	final.Title = parsed.Title
	final.Sections = parsed.sections()
	final.Status = persistence.DraftStatusReady
	final.GeneratedAt = time.Now().UTC()
	final.Metadata = map[string]any{
		"voice_profile_used": voiceUsed,
		"trends_used":        trendTopics,
		"model_used":         g.Model,
	}

	updated, err := g.Drafts.Update(ctx, final)
	if err != nil {
		return persistence.Draft{}, fmt.Errorf("draft: persist ready draft: %w", err)
	}
	g.notifyReady(ctx, userID, updated.ID)
	return updated, nil
}

// finalizeFallback emits the S4 fallback draft: intro+conclusion only,
// status=ready, with metadata flagging the no-trends/fallback condition.
// This is a terminal, valid outcome — never an error returned to the
// caller.
func (g *Generator) finalizeFallback(ctx context.Context, placeholder persistence.Draft) (persistence.Draft, error) {
	final := placeholder
	final.Title = "Nothing new to report"
	final.Sections = []persistence.DraftSection{
		{ID: uuid.NewString(), Type: persistence.DraftSectionIntro, Content: "No notable trends were found in your recent sources this cycle."},
		{ID: uuid.NewString(), Type: persistence.DraftSectionConclusion, Content: "Check back next cycle for fresh material."},
	}
	final.Status = persistence.DraftStatusReady
	final.GeneratedAt = time.Now().UTC()
	final.Metadata = map[string]any{
		"no_trends": true,
		"fallback":  true,
	}
	updated, err := g.Drafts.Update(ctx, final)
	if err != nil {
		return persistence.Draft{}, fmt.Errorf("draft: persist fallback draft: %w", err)
	}
	g.notifyReady(ctx, updated.UserID, updated.ID)
	return updated, nil
}

func (g *Generator) resolveVoiceProfile(ctx context.Context, userID string, prefs map[string]any) (persistence.VoiceProfile, bool) {
	profile, err := g.Voices.Get(ctx, userID)
	if err != nil {
		return persistence.VoiceProfile{}, false
	}
	return preferences.ResolveVoice(prefs, profile)
}

// notifyReady publishes the draft ID keyed by userID, so the consumer can
// resolve NotifyDraftReady's (userID, draftID) pair without a second lookup.
func (g *Generator) notifyReady(ctx context.Context, userID, draftID string) {
	if g.Bus == nil {
		return
	}
	_ = g.Bus.Publish(ctx, eventbus.TopicDraftReady, userID, []byte(draftID))
}

func isNoTrends(err error) bool {
	var cpErr *cperrors.Error
	return errors.As(err, &cpErr) && cpErr.Kind() == cperrors.KindNoTrends
}

func errorType(err error) string {
	var cpErr *cperrors.Error
	if errors.As(err, &cpErr) {
		return string(cpErr.Kind())
	}
	return "unknown_error"
}

func voicePromptSection(v persistence.VoiceProfile) string {
	var bld strings.Builder
	fmt.Fprintf(&bld, "Write in this author's own voice: tone=%s, style=%s, vocabulary=%s.", v.Tone, v.Style, v.VocabularyLevel)
	if len(v.PersonalityTraits) > 0 {
		fmt.Fprintf(&bld, " Personality traits: %s.", strings.Join(v.PersonalityTraits, ", "))
	}
	if len(v.WritingPatterns) > 0 {
		fmt.Fprintf(&bld, " Writing patterns: %s.", strings.Join(v.WritingPatterns, ", "))
	}
	return bld.String()
}

type topicMaterial struct {
	trend     persistence.Trend
	summaries []persistence.ContentSummary
}

func buildDraftPrompt(toneInstruction string, materials []topicMaterial, adjustment feedback.Adjustment) string {
	var bld strings.Builder
	bld.WriteString(toneInstruction)
	bld.WriteString("\n\n")
	for _, m := range materials {
		fmt.Fprintf(&bld, "Topic: %s (score %.2f)\n", m.trend.Topic, m.trend.Score)
		for _, s := range m.summaries {
			fmt.Fprintf(&bld, "- %s: %s\n", s.Title, s.Summary)
		}
		bld.WriteString("\n")
	}
	if adjustment.Has {
		bld.WriteString("Reader feedback to incorporate:\n")
		if len(adjustment.LikedAspects) > 0 {
			fmt.Fprintf(&bld, "Liked: %s\n", strings.Join(adjustment.LikedAspects, ", "))
		}
		if len(adjustment.DislikedAspects) > 0 {
			fmt.Fprintf(&bld, "Disliked: %s\n", strings.Join(adjustment.DislikedAspects, ", "))
		}
		if len(adjustment.Recommendations) > 0 {
			fmt.Fprintf(&bld, "Recommendations: %s\n", strings.Join(adjustment.Recommendations, ", "))
		}
	}
	return bld.String()
}

type draftSectionResponse struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type draftResponse struct {
	Title    string                 `json:"title"`
	Sections []draftSectionResponse `json:"sections"`
}

func (r draftResponse) sections() []persistence.DraftSection {
	out := make([]persistence.DraftSection, 0, len(r.Sections))
	for _, s := range r.Sections {
		out = append(out, persistence.DraftSection{
			ID:      uuid.NewString(),
			Type:    s.Type,
			Title:   s.Title,
			Content: s.Content,
		})
	}
	return out
}

func parseDraftResponse(raw string) (draftResponse, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var resp draftResponse
	if err := json.Unmarshal([]byte(text), &resp); err == nil {
		return resp, nil
	}

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return draftResponse{}, fmt.Errorf("draft: no JSON object found in model response")
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &resp); err != nil {
		return draftResponse{}, err
	}
	return resp, nil
}
