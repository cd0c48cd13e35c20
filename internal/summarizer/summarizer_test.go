package summarizer

import (
	"context"
	"testing"
	"time"

	"github.com/creatorpulse/creatorpulse/internal/config"
	"github.com/creatorpulse/creatorpulse/internal/llmgateway"
	"github.com/creatorpulse/creatorpulse/internal/persistence"
	"github.com/creatorpulse/creatorpulse/internal/persistence/databases"
)

type fakeProvider struct {
	text string
	err  error
	n    *int
}

func (f fakeProvider) Generate(ctx context.Context, req llmgateway.Request) (llmgateway.Response, error) {
	if f.n != nil {
		*f.n++
	}
	if f.err != nil {
		return llmgateway.Response{}, f.err
	}
	return llmgateway.Response{Text: f.text}, nil
}

func newTestSummarizer(t *testing.T, providerText string, providerErr error, calls *int) (*Summarizer, persistence.ContentItemStore) {
	t.Helper()
	content := databases.NewContentItemStore(nil)
	summaries := databases.NewSummaryStore(nil)
	usage := databases.NewLLMUsageStore(nil)
	gw := llmgateway.New(fakeProvider{text: providerText, err: providerErr, n: calls}, usage, nil, nil, config.RateLimitDefaults{PerMinute: 1000, PerDay: 1000})
	return &Summarizer{Content: content, Summaries: summaries, Gateway: gw, Model: "test-model"}, content
}

const sampleResponse = `{"title":"A Title","key_points":["one","two"],"summary":"a short summary","topics":["go","testing"],"sentiment":"positive","relevance_score":0.8}`

func TestSummarize_GeneratesAndCaches(t *testing.T) {
	ctx := context.Background()
	calls := 0
	s, content := newTestSummarizer(t, sampleResponse, nil, &calls)

	if _, err := content.Upsert(ctx, persistence.ContentItem{
		ID: "i1", UserID: "u1", SourceID: "s1", URL: "https://example.com/1",
		Title: "a story", Content: "some content", CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed content: %v", err)
	}

	cs, err := s.Summarize(ctx, "u1", "i1", persistence.SummaryTypeBrief)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if cs.Title != "A Title" || cs.Sentiment != "positive" || cs.RelevanceScore != 0.8 {
		t.Fatalf("unexpected summary: %+v", cs)
	}
	if len(cs.Topics) != 2 {
		t.Fatalf("expected 2 topics, got %+v", cs.Topics)
	}

	if _, err := s.Summarize(ctx, "u1", "i1", persistence.SummaryTypeBrief); err != nil {
		t.Fatalf("cached Summarize: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one LLM call (second fetch served from cache), got %d", calls)
	}
}

func TestSummarize_UnknownSummaryTypeIsError(t *testing.T) {
	ctx := context.Background()
	s, content := newTestSummarizer(t, sampleResponse, nil, nil)
	if _, err := content.Upsert(ctx, persistence.ContentItem{
		ID: "i1", UserID: "u1", SourceID: "s1", URL: "https://example.com/1",
		Title: "a story", Content: "some content", CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed content: %v", err)
	}
	if _, err := s.Summarize(ctx, "u1", "i1", "extra-long"); err == nil {
		t.Fatal("expected error for unknown summary_type")
	}
}

func TestSummarizeBatch_ProcessesSequentially(t *testing.T) {
	ctx := context.Background()
	calls := 0
	s, content := newTestSummarizer(t, sampleResponse, nil, &calls)

	ids := []string{"i1", "i2", "i3"}
	for _, id := range ids {
		if _, err := content.Upsert(ctx, persistence.ContentItem{
			ID: id, UserID: "u1", SourceID: "s1", URL: "https://example.com/" + id,
			Title: "story " + id, Content: "content", CreatedAt: time.Now().UTC(),
		}); err != nil {
			t.Fatalf("seed content %s: %v", id, err)
		}
	}

	out, err := s.SummarizeBatch(ctx, "u1", ids, persistence.SummaryTypeStandard)
	if err != nil {
		t.Fatalf("SummarizeBatch: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 summaries, got %d", len(out))
	}
	if calls != 3 {
		t.Fatalf("expected one LLM call per item, got %d", calls)
	}
}

func TestSummarizeRecent_SkipsAlreadySummarized(t *testing.T) {
	ctx := context.Background()
	calls := 0
	s, content := newTestSummarizer(t, sampleResponse, nil, &calls)

	since := time.Now().Add(-24 * time.Hour)
	for _, id := range []string{"i1", "i2"} {
		if _, err := content.Upsert(ctx, persistence.ContentItem{
			ID: id, UserID: "u1", SourceID: "s1", URL: "https://example.com/" + id,
			Title: "story " + id, Content: "content", CreatedAt: time.Now().UTC(),
		}); err != nil {
			t.Fatalf("seed content %s: %v", id, err)
		}
	}

	if _, err := s.Summarize(ctx, "u1", "i1", persistence.SummaryTypeBrief); err != nil {
		t.Fatalf("presummarize i1: %v", err)
	}
	calls = 0

	out, err := s.SummarizeRecent(ctx, "u1", since, persistence.SummaryTypeBrief)
	if err != nil {
		t.Fatalf("SummarizeRecent: %v", err)
	}
	if len(out) != 1 || out[0].ContentID != "i2" {
		t.Fatalf("expected only i2 summarized, got %+v", out)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one LLM call, got %d", calls)
	}
}

func TestParseSummaryResponse_StripsCodeFenceAndSurroundingProse(t *testing.T) {
	raw := "Here is the summary:\n```json\n" + sampleResponse + "\n```"
	resp, err := parseSummaryResponse(raw)
	if err != nil {
		t.Fatalf("parseSummaryResponse: %v", err)
	}
	if resp.Title != "A Title" {
		t.Fatalf("unexpected parsed response: %+v", resp)
	}
}

func TestParseSummaryResponse_NoObjectIsError(t *testing.T) {
	if _, err := parseSummaryResponse("no json here at all"); err == nil {
		t.Fatal("expected error for input with no JSON object")
	}
}
