package draft

import (
	"context"
	"testing"
	"time"

	"github.com/creatorpulse/creatorpulse/internal/config"
	"github.com/creatorpulse/creatorpulse/internal/cperrors"
	"github.com/creatorpulse/creatorpulse/internal/eventbus"
	"github.com/creatorpulse/creatorpulse/internal/feedback"
	"github.com/creatorpulse/creatorpulse/internal/llmgateway"
	"github.com/creatorpulse/creatorpulse/internal/persistence"
	"github.com/creatorpulse/creatorpulse/internal/persistence/databases"
	"github.com/creatorpulse/creatorpulse/internal/preferences"
	"github.com/creatorpulse/creatorpulse/internal/trends"
)

type fakeProvider struct {
	text string
	err  error
}

func (f fakeProvider) Generate(ctx context.Context, req llmgateway.Request) (llmgateway.Response, error) {
	if f.err != nil {
		return llmgateway.Response{}, f.err
	}
	return llmgateway.Response{Text: f.text}, nil
}

type fakeDetector struct {
	trendsList []persistence.Trend
	err        error
}

func (f fakeDetector) Detect(ctx context.Context, params trends.Params) ([]persistence.Trend, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.trendsList, nil
}

type fakeSummarizer struct{}

func (fakeSummarizer) Summarize(ctx context.Context, userID, contentID, summaryType string) (persistence.ContentSummary, error) {
	return persistence.ContentSummary{ContentID: contentID, Title: "item " + contentID, Summary: "summary of " + contentID}, nil
}

type fakeFeedbackAnalyzer struct{}

func (fakeFeedbackAnalyzer) Analyze(ctx context.Context, userID string, windowDays int) (feedback.Adjustment, error) {
	return feedback.Adjustment{}, nil
}

const sampleDraftResponse = `{"title":"This Week in Go","sections":[{"type":"intro","content":"Hello!"},{"type":"topic","title":"Generics","content":"Generics are neat."},{"type":"conclusion","content":"See you next week."}]}`

func newTestGenerator(t *testing.T, detector Detector, providerText string, providerErr error) *Generator {
	t.Helper()
	drafts := databases.NewDraftStore(nil)
	voices := databases.NewVoiceProfileStore(nil)
	prefsStore := databases.NewPreferencesStore(nil)
	usage := databases.NewLLMUsageStore(nil)
	gw := llmgateway.New(fakeProvider{text: providerText, err: providerErr}, usage, nil, nil, config.RateLimitDefaults{PerMinute: 1000, PerDay: 1000})
	return &Generator{
		Drafts:    drafts,
		Voices:    voices,
		Prefs:     preferences.NewResolver(prefsStore),
		Trends:    detector,
		Summaries: fakeSummarizer{},
		Feedback:  fakeFeedbackAnalyzer{},
		Gateway:   gw,
		Bus:       eventbus.NewMemoryBus(),
		Model:     "test-model",
	}
}

func TestGenerate_NoTrendsYieldsFallbackDraft(t *testing.T) {
	g := newTestGenerator(t, fakeDetector{err: cperrors.NoTrends("no trends this cycle")}, sampleDraftResponse, nil)

	d, err := g.Generate(context.Background(), "u1", 3, 7)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if d.Status != persistence.DraftStatusReady {
		t.Fatalf("expected ready status, got %q", d.Status)
	}
	if d.Metadata["no_trends"] != true || d.Metadata["fallback"] != true {
		t.Fatalf("expected fallback metadata, got %+v", d.Metadata)
	}
	if len(d.Sections) != 2 {
		t.Fatalf("expected intro+conclusion only, got %d sections", len(d.Sections))
	}
}

func TestGenerate_WithTrendsPersistsReadyDraft(t *testing.T) {
	detector := fakeDetector{trendsList: []persistence.Trend{
		{ID: "t1", UserID: "u1", Topic: "Generics", Score: 0.9, SupportingItemIDs: []string{"i1"}, DetectedAt: time.Now().UTC()},
	}}
	g := newTestGenerator(t, detector, sampleDraftResponse, nil)

	d, err := g.Generate(context.Background(), "u1", 3, 7)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if d.Status != persistence.DraftStatusReady {
		t.Fatalf("expected ready status, got %q", d.Status)
	}
	if d.Title != "This Week in Go" {
		t.Fatalf("unexpected title: %q", d.Title)
	}
	if len(d.Sections) != 3 {
		t.Fatalf("expected 3 sections, got %d: %+v", len(d.Sections), d.Sections)
	}
	if d.Metadata["voice_profile_used"] != false {
		t.Fatalf("expected voice_profile_used=false (no usable profile), got %+v", d.Metadata)
	}
}

func TestGenerate_Regeneration_OverwritesInPlace(t *testing.T) {
	detector := fakeDetector{trendsList: []persistence.Trend{
		{ID: "t1", UserID: "u1", Topic: "Generics", Score: 0.9, SupportingItemIDs: []string{"i1"}, DetectedAt: time.Now().UTC()},
	}}
	g := newTestGenerator(t, detector, sampleDraftResponse, nil)
	ctx := context.Background()

	first, err := g.Generate(ctx, "u1", 3, 7)
	if err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	second, err := g.Generate(ctx, "u1", 3, 7)
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected regeneration to reuse the same draft row, got %s vs %s", first.ID, second.ID)
	}

	all, err := g.Drafts.GetLatestForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetLatestForUser: %v", err)
	}
	if all.ID != first.ID {
		t.Fatalf("expected a single surviving row, got %s", all.ID)
	}
}

func TestGenerate_LLMFailureMarksDraftFailed(t *testing.T) {
	detector := fakeDetector{trendsList: []persistence.Trend{
		{ID: "t1", UserID: "u1", Topic: "Generics", Score: 0.9, SupportingItemIDs: nil, DetectedAt: time.Now().UTC()},
	}}
	g := newTestGenerator(t, detector, "", assertCauseError("boom"))

	d, err := g.Generate(context.Background(), "u1", 3, 7)
	if err == nil {
		t.Fatal("expected error from Generate")
	}
	if d.Status != persistence.DraftStatusFailed {
		t.Fatalf("expected failed status, got %q", d.Status)
	}
	if d.Metadata["error"] == nil || d.Metadata["error_type"] == nil {
		t.Fatalf("expected error metadata, got %+v", d.Metadata)
	}
}

type assertCauseError string

func (e assertCauseError) Error() string { return string(e) }
