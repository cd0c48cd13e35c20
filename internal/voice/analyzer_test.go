package voice

import (
	"context"
	"strings"
	"testing"

	"github.com/creatorpulse/creatorpulse/internal/config"
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

func newTestAnalyzer(t *testing.T, providerText string, providerErr error) *Analyzer {
	t.Helper()
	blobs, err := databases.NewBlobStore(context.Background(), config.S3Config{})
	if err != nil {
		t.Fatalf("NewBlobStore: %v", err)
	}
	profiles := databases.NewVoiceProfileStore(nil)
	usage := databases.NewLLMUsageStore(nil)
	gw := llmgateway.New(fakeProvider{text: providerText, err: providerErr}, usage, nil, nil, config.RateLimitDefaults{PerMinute: 1000, PerDay: 1000})
	return &Analyzer{Blobs: blobs, Profiles: profiles, Gateway: gw, Model: "test-model"}
}

const sampleProfileResponse = `{"tone":"warm","style":"narrative","vocabulary_level":"advanced","personality_traits":["curious"],"writing_patterns":["short paragraphs"],"formatting_preferences":{"bullets":true},"unique_characteristics":["loves metaphors"]}`

func TestAnalyze_NoSamplesYieldsDefaultWithoutLLMCall(t *testing.T) {
	a := newTestAnalyzer(t, "", errShouldNotBeCalled)
	profile, err := a.Analyze(context.Background(), "u1", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if profile.Source != persistence.VoiceSourceDefault {
		t.Fatalf("expected source=default, got %q", profile.Source)
	}
	if profile.IsUsable() {
		t.Fatal("default profile must not be usable")
	}
}

var errShouldNotBeCalled = providerCallError("provider should not have been called")

type providerCallError string

func (e providerCallError) Error() string { return string(e) }

func TestAnalyze_SuccessYieldsAnalyzedProfile(t *testing.T) {
	ctx := context.Background()
	a := newTestAnalyzer(t, sampleProfileResponse, nil)
	if _, err := a.Blobs.Put(ctx, "sample1", "text/plain", strings.NewReader("sample writing"), 14, nil); err != nil {
		t.Fatalf("seed blob: %v", err)
	}

	profile, err := a.Analyze(ctx, "u1", []string{"sample1"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if profile.Source != persistence.VoiceSourceAnalyzed {
		t.Fatalf("expected source=analyzed, got %q", profile.Source)
	}
	if !profile.IsUsable() {
		t.Fatal("analyzed profile must be usable")
	}
	if profile.Tone != "warm" || profile.SamplesCount != 1 {
		t.Fatalf("unexpected profile: %+v", profile)
	}
}

func TestAnalyze_ProviderErrorYieldsDefaultError(t *testing.T) {
	ctx := context.Background()
	a := newTestAnalyzer(t, "", providerCallError("boom"))
	if _, err := a.Blobs.Put(ctx, "sample1", "text/plain", strings.NewReader("sample writing"), 14, nil); err != nil {
		t.Fatalf("seed blob: %v", err)
	}

	profile, err := a.Analyze(ctx, "u1", []string{"sample1"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if profile.Source != persistence.VoiceSourceDefaultError {
		t.Fatalf("expected source=default_error, got %q", profile.Source)
	}
	if profile.IsUsable() {
		t.Fatal("default_error profile must not be usable")
	}
}

func TestAnalyze_UnparseableResponseYieldsDefaultFallback(t *testing.T) {
	ctx := context.Background()
	a := newTestAnalyzer(t, "not json at all", nil)
	if _, err := a.Blobs.Put(ctx, "sample1", "text/plain", strings.NewReader("sample writing"), 14, nil); err != nil {
		t.Fatalf("seed blob: %v", err)
	}

	profile, err := a.Analyze(ctx, "u1", []string{"sample1"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if profile.Source != persistence.VoiceSourceDefaultFallback {
		t.Fatalf("expected source=default_fallback, got %q", profile.Source)
	}
	if profile.IsUsable() {
		t.Fatal("default_fallback profile must not be usable")
	}
}
