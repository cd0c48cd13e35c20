package preferences

import (
	"strings"
	"testing"

	"github.com/creatorpulse/creatorpulse/internal/persistence"
)

func TestResolveVoice_UsableOnlyWhenEnabledAndAnalyzed(t *testing.T) {
	analyzed := persistence.VoiceProfile{Source: persistence.VoiceSourceAnalyzed}
	fallback := persistence.VoiceProfile{Source: persistence.VoiceSourceDefault}

	cases := []struct {
		name    string
		prefs   map[string]any
		profile persistence.VoiceProfile
		wantOK  bool
	}{
		{"enabled+analyzed", map[string]any{"use_voice_profile": true}, analyzed, true},
		{"disabled+analyzed", map[string]any{"use_voice_profile": false}, analyzed, false},
		{"enabled+default", map[string]any{"use_voice_profile": true}, fallback, false},
		{"missing key", map[string]any{}, analyzed, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, ok := ResolveVoice(c.prefs, c.profile)
			if ok != c.wantOK {
				t.Errorf("ResolveVoice() ok = %v, want %v", ok, c.wantOK)
			}
		})
	}
}

func TestToneInstruction_UsesPhraseBanksAndEmojiFlag(t *testing.T) {
	prefs := map[string]any{
		"tone_preferences": map[string]any{
			"formality":         "casual",
			"enthusiasm":        "high",
			"length_preference": "short",
			"use_emojis":        true,
		},
	}
	got := ToneInstruction(prefs)
	if !strings.Contains(got, "friendly, conversational") {
		t.Errorf("expected casual phrase, got %q", got)
	}
	if !strings.Contains(got, "200-300 words") {
		t.Errorf("expected short length phrase, got %q", got)
	}
	if !strings.Contains(got, "Use emojis") {
		t.Errorf("expected emoji instruction, got %q", got)
	}
}

func TestToneInstruction_FallsBackOnUnrecognizedEnum(t *testing.T) {
	prefs := map[string]any{
		"tone_preferences": map[string]any{"formality": "shouting"},
	}
	got := ToneInstruction(prefs)
	if !strings.Contains(got, "clear, approachable") {
		t.Errorf("expected balanced fallback phrase, got %q", got)
	}
}
