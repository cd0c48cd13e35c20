package trends

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/creatorpulse/creatorpulse/internal/config"
	"github.com/creatorpulse/creatorpulse/internal/cperrors"
	"github.com/creatorpulse/creatorpulse/internal/llmgateway"
	"github.com/creatorpulse/creatorpulse/internal/persistence"
	"github.com/creatorpulse/creatorpulse/internal/persistence/databases"
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

func newTestDetector(t *testing.T, providerText string, providerErr error) (*Detector, persistence.ContentItemStore) {
	t.Helper()
	content := databases.NewContentItemStore(nil)
	trendStore := databases.NewTrendStore(nil)
	usage := databases.NewLLMUsageStore(nil)
	gw := llmgateway.New(fakeProvider{text: providerText, err: providerErr}, usage, nil, nil, config.RateLimitDefaults{PerMinute: 1000, PerDay: 1000})
	return &Detector{Content: content, Trends: trendStore, Gateway: gw, Model: "test-model"}, content
}

func TestDetect_NoContentReturnsNoTrends(t *testing.T) {
	d, _ := newTestDetector(t, "[]", nil)
	_, err := d.Detect(context.Background(), Params{UserID: "u1"})
	if !errors.Is(err, cperrors.NoTrends("")) {
		t.Fatalf("expected NoTrends, got %v", err)
	}
}

func TestDetect_PersistsFilteredAndRankedTrends(t *testing.T) {
	ctx := context.Background()
	resp := `[{"topic":"low","score":0.1,"supporting_item_ids":[]},
	          {"topic":"high","score":0.9,"supporting_item_ids":["i1"]},
	          {"topic":"mid","score":0.6,"supporting_item_ids":["i2"]}]`
	d, content := newTestDetector(t, resp, nil)

	if _, err := content.Upsert(ctx, persistence.ContentItem{
		ID: "i1", UserID: "u1", SourceID: "s1", URL: "https://example.com/1",
		Title: "a story", Content: "some content", CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed content: %v", err)
	}

	trends, err := d.Detect(ctx, Params{UserID: "u1", MinScore: 0.5, MaxTrends: 5})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(trends) != 2 {
		t.Fatalf("expected 2 trends clearing min_score, got %d: %+v", len(trends), trends)
	}
	if trends[0].Topic != "high" || trends[1].Topic != "mid" {
		t.Errorf("expected trends sorted by score desc, got %+v", trends)
	}
}

func TestDetect_UnparseableResponseReturnsNoTrends(t *testing.T) {
	ctx := context.Background()
	d, content := newTestDetector(t, "I couldn't find anything notable.", nil)
	if _, err := content.Upsert(ctx, persistence.ContentItem{
		ID: "i1", UserID: "u1", SourceID: "s1", URL: "https://example.com/1",
		Title: "a story", Content: "some content", CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed content: %v", err)
	}
	_, err := d.Detect(ctx, Params{UserID: "u1"})
	if !errors.Is(err, cperrors.NoTrends("")) {
		t.Fatalf("expected NoTrends, got %v", err)
	}
}
