package preferences

import (
	"fmt"
	"strings"

	"github.com/creatorpulse/creatorpulse/internal/persistence"
)

// ResolveVoice returns the stored voice profile only when use_voice_profile
// is true in prefs and the profile's discriminant is "analyzed". Any other
// combination means C9 must fall back to a tone instruction built from
// tone_preferences instead of the profile.
func ResolveVoice(prefs map[string]any, profile persistence.VoiceProfile) (persistence.VoiceProfile, bool) {
	if boolField(prefs, "use_voice_profile") && profile.IsUsable() {
		return profile, true
	}
	return persistence.VoiceProfile{}, false
}

var formalityPhrases = map[string]string{
	"casual":  "a friendly, conversational tone",
	"balanced": "a clear, approachable tone",
	"formal":  "a polished, professional tone",
}

var enthusiasmPhrases = map[string]string{
	"low":      "measured and understated",
	"moderate": "warm but not over-the-top",
	"high":     "energetic and enthusiastic",
}

var lengthPhrases = map[string]string{
	"short":  "200-300 words",
	"medium": "400-600 words",
	"long":   "800-1200 words",
}

// ToneInstruction builds the fallback tone instruction from tone_preferences
// when ResolveVoice reports no usable voice profile, using fixed phrase
// banks keyed on each recognized enum value.
func ToneInstruction(prefs map[string]any) string {
	tone, _ := prefs["tone_preferences"].(map[string]any)
	if tone == nil {
		tone = map[string]any{}
	}

	formality := phraseFor(formalityPhrases, stringField(tone, "formality"), formalityPhrases["balanced"])
	enthusiasm := phraseFor(enthusiasmPhrases, stringField(tone, "enthusiasm"), enthusiasmPhrases["moderate"])
	length := phraseFor(lengthPhrases, stringField(tone, "length_preference"), lengthPhrases["medium"])

	instruction := fmt.Sprintf("Write in %s, %s. Target length: %s.", formality, enthusiasm, length)
	if boolField(tone, "use_emojis") {
		instruction += " Use emojis sparingly where they fit naturally."
	} else {
		instruction += " Do not use emojis."
	}
	return instruction
}

func phraseFor(bank map[string]string, key, fallback string) string {
	if p, ok := bank[strings.ToLower(key)]; ok {
		return p
	}
	return fallback
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func boolField(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}
