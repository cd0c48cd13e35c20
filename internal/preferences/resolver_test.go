package preferences

import (
	"context"
	"testing"

	"github.com/creatorpulse/creatorpulse/internal/persistence/databases"
)

func TestResolver_GetReturnsDefaultsWhenNoOverrideSaved(t *testing.T) {
	r := NewResolver(databases.NewPreferencesStore(nil))
	doc, err := r.Get(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc["newsletter_frequency"] != "daily" {
		t.Errorf("expected default newsletter_frequency, got %v", doc["newsletter_frequency"])
	}
}

func TestResolver_PatchMergesAndInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(databases.NewPreferencesStore(nil))

	if _, err := r.Get(ctx, "user-1"); err != nil {
		t.Fatalf("warm cache: %v", err)
	}

	updated, err := r.Patch(ctx, "user-1", map[string]any{
		"tone_preferences": map[string]any{"formality": "formal"},
	})
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	tone := updated["tone_preferences"].(map[string]any)
	if tone["formality"] != "formal" {
		t.Errorf("patched field not reflected: %v", tone["formality"])
	}
	if tone["enthusiasm"] != "moderate" {
		t.Errorf("unrelated default dropped by patch: %v", tone["enthusiasm"])
	}

	again, err := r.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get after patch: %v", err)
	}
	toneAgain := again["tone_preferences"].(map[string]any)
	if toneAgain["formality"] != "formal" {
		t.Errorf("cache not invalidated after patch: %v", toneAgain["formality"])
	}
}

func TestResolver_ResetDiscardsOverride(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(databases.NewPreferencesStore(nil))

	if _, err := r.Patch(ctx, "user-1", map[string]any{"newsletter_frequency": "weekly"}); err != nil {
		t.Fatalf("Patch: %v", err)
	}
	doc, err := r.Reset(ctx, "user-1")
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if doc["newsletter_frequency"] != "daily" {
		t.Errorf("expected reset to defaults, got %v", doc["newsletter_frequency"])
	}
}
