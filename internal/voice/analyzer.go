// Package voice implements the voice analyzer (C8): derives a style
// profile from user-uploaded writing samples via a single LLM call.
package voice

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/creatorpulse/creatorpulse/internal/llmgateway"
	"github.com/creatorpulse/creatorpulse/internal/persistence"
)

const systemPrompt = `You analyze writing samples to characterize an author's voice. Respond with a JSON object only, no prose, no markdown fences. Keys: "tone" (string), "style" (string), "vocabulary_level" (string), "personality_traits" (array of strings), "writing_patterns" (array of strings), "formatting_preferences" (object), "unique_characteristics" (array of strings).`

// Analyzer derives and persists a VoiceProfile from blobs a user has
// uploaded as writing samples.
type Analyzer struct {
	Blobs    persistence.BlobStore
	Profiles persistence.VoiceProfileStore
	Gateway  *llmgateway.Gateway
	Model    string
}

// Analyze reads every sampleKeys blob (plain text), invokes the LLM gateway
// once, and persists the resulting profile. Fewer than one sample yields
// source=default without an LLM call. A provider error or unparseable
// response still persists a default document (source default_error or
// default_fallback, which IsUsable reports as false) — downstream code must
// never observe a missing profile for a user who has one stored.
func (a *Analyzer) Analyze(ctx context.Context, userID string, sampleKeys []string) (persistence.VoiceProfile, error) {
	if len(sampleKeys) < 1 {
		return a.Profiles.Upsert(ctx, defaultProfile(userID, persistence.VoiceSourceDefault, 0))
	}

	samples, err := a.readSamples(ctx, sampleKeys)
	if err != nil {
		return persistence.VoiceProfile{}, err
	}

	resp, err := a.Gateway.Generate(ctx, userID, llmgateway.Request{
		Model:       a.Model,
		System:      systemPrompt,
		Prompt:      buildPrompt(samples),
		MaxTokens:   1024,
		ServiceName: "voice_analyzer",
	})
	if err != nil {
		return a.Profiles.Upsert(ctx, defaultProfile(userID, persistence.VoiceSourceDefaultError, len(samples)))
	}

	parsed, err := parseProfileResponse(resp.Text)
	if err != nil {
		return a.Profiles.Upsert(ctx, defaultProfile(userID, persistence.VoiceSourceDefaultFallback, len(samples)))
	}

	profile := persistence.VoiceProfile{
		UserID:                userID,
		Tone:                  parsed.Tone,
		Style:                 parsed.Style,
		VocabularyLevel:       parsed.VocabularyLevel,
		PersonalityTraits:     parsed.PersonalityTraits,
		WritingPatterns:       parsed.WritingPatterns,
		FormattingPreferences: parsed.FormattingPreferences,
		UniqueCharacteristics: parsed.UniqueCharacteristics,
		SamplesCount:          len(samples),
		Source:                persistence.VoiceSourceAnalyzed,
		UpdatedAt:             time.Now().UTC(),
	}
	return a.Profiles.Upsert(ctx, profile)
}

func (a *Analyzer) readSamples(ctx context.Context, keys []string) ([]string, error) {
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		rc, _, err := a.Blobs.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		body, err := io.ReadAll(rc)
		closeErr := rc.Close()
		if err != nil {
			return nil, err
		}
		if closeErr != nil {
			return nil, closeErr
		}
		out = append(out, string(body))
	}
	return out, nil
}

func buildPrompt(samples []string) string {
	var bld strings.Builder
	for i, s := range samples {
		if i > 0 {
			bld.WriteString("\n\n---\n\n")
		}
		bld.WriteString(s)
	}
	return bld.String()
}

func defaultProfile(userID, source string, samplesCount int) persistence.VoiceProfile {
	return persistence.VoiceProfile{
		UserID:          userID,
		Tone:            "neutral",
		Style:           "balanced",
		VocabularyLevel: "moderate",
		SamplesCount:    samplesCount,
		Source:          source,
		UpdatedAt:       time.Now().UTC(),
	}
}

type profileResponse struct {
	Tone                  string         `json:"tone"`
	Style                 string         `json:"style"`
	VocabularyLevel       string         `json:"vocabulary_level"`
	PersonalityTraits     []string       `json:"personality_traits"`
	WritingPatterns       []string       `json:"writing_patterns"`
	FormattingPreferences map[string]any `json:"formatting_preferences"`
	UniqueCharacteristics []string       `json:"unique_characteristics"`
}

func parseProfileResponse(raw string) (profileResponse, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var resp profileResponse
	if err := json.Unmarshal([]byte(text), &resp); err == nil {
		return resp, nil
	}

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return profileResponse{}, errNoObject
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &resp); err != nil {
		return profileResponse{}, err
	}
	return resp, nil
}

var errNoObject = jsonObjectError("voice: no JSON object found in model response")

type jsonObjectError string

func (e jsonObjectError) Error() string { return string(e) }
