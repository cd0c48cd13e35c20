package feedback

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
	n    int
}

func (f *fakeProvider) Generate(ctx context.Context, req llmgateway.Request) (llmgateway.Response, error) {
	f.n++
	if f.err != nil {
		return llmgateway.Response{}, f.err
	}
	return llmgateway.Response{Text: f.text}, nil
}

func newTestAnalyzer(t *testing.T, provider *fakeProvider) (*Analyzer, persistence.FeedbackStore) {
	t.Helper()
	store := databases.NewFeedbackStore(nil)
	usage := databases.NewLLMUsageStore(nil)
	gw := llmgateway.New(provider, usage, nil, nil, config.RateLimitDefaults{PerMinute: 1000, PerDay: 1000})
	return &Analyzer{Feedback: store, Gateway: gw, Model: "test-model"}, store
}

const sampleAdjustmentResponse = `{"liked_aspects":["concise intros"],"disliked_aspects":["too long"],"recommendations":["trim conclusions"]}`

func seedFeedback(t *testing.T, store persistence.FeedbackStore, userID string, n int, createdAt time.Time) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		if _, err := store.Create(ctx, persistence.Feedback{
			DraftID: "d1", UserID: userID, Type: persistence.FeedbackThumbsUp, CreatedAt: createdAt,
		}); err != nil {
			t.Fatalf("seed feedback: %v", err)
		}
	}
}

func TestAnalyze_BelowThresholdYieldsNoAdjustment(t *testing.T) {
	provider := &fakeProvider{text: sampleAdjustmentResponse}
	a, store := newTestAnalyzer(t, provider)
	seedFeedback(t, store, "u1", 4, time.Now().UTC())

	adj, err := a.Analyze(context.Background(), "u1", 0)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if adj.Has {
		t.Fatalf("expected no adjustment below threshold, got %+v", adj)
	}
	if provider.n != 0 {
		t.Fatalf("expected no LLM call below threshold, got %d calls", provider.n)
	}
}

func TestAnalyze_AtThresholdSynthesizesAdjustment(t *testing.T) {
	provider := &fakeProvider{text: sampleAdjustmentResponse}
	a, store := newTestAnalyzer(t, provider)
	seedFeedback(t, store, "u1", 5, time.Now().UTC())

	adj, err := a.Analyze(context.Background(), "u1", 0)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !adj.Has {
		t.Fatal("expected adjustment at threshold")
	}
	if len(adj.Recommendations) != 1 || adj.Recommendations[0] != "trim conclusions" {
		t.Fatalf("unexpected adjustment: %+v", adj)
	}
	if provider.n != 1 {
		t.Fatalf("expected exactly one LLM call, got %d", provider.n)
	}
}

func TestAnalyze_IgnoresSignalsOutsideWindow(t *testing.T) {
	provider := &fakeProvider{text: sampleAdjustmentResponse}
	a, store := newTestAnalyzer(t, provider)
	seedFeedback(t, store, "u1", 5, time.Now().UTC().AddDate(0, 0, -40))

	adj, err := a.Analyze(context.Background(), "u1", 30)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if adj.Has {
		t.Fatalf("expected no adjustment for stale signals, got %+v", adj)
	}
}
