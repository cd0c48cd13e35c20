// Package preferences resolves the per-user preferences document: a partial
// JSON override deep-merged against a fixed defaults document on every
// read, plus the voice/tone decision C9 depends on.
package preferences

// Defaults returns a fresh copy of the full defaults document. Callers
// must not mutate the returned map in place — deepMerge always produces a
// new map tree rather than writing into its inputs, but a caller holding
// this value directly (bypassing Resolver) should still treat it as
// read-only.
func Defaults() map[string]any {
	return map[string]any{
		"draft_schedule_time":  "08:00",
		"newsletter_frequency": "daily",
		"use_voice_profile":    true,
		"tone_preferences": map[string]any{
			"formality":         "balanced",
			"enthusiasm":        "moderate",
			"length_preference": "medium",
			"use_emojis":        false,
		},
		"notification_preferences": map[string]any{
			"email_on_draft_ready":      true,
			"email_on_publish_success":  false,
			"email_on_errors":           true,
			"weekly_summary":            false,
		},
		"email_preferences": map[string]any{
			"default_subject_template": "Your newsletter draft: {title}",
			"include_preview_text":     true,
			"track_opens":              true,
			"track_clicks":             true,
			"workspace_tier":           false,
		},
	}
}
