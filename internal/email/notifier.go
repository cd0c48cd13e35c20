package email

import (
	"context"
	"fmt"

	"github.com/creatorpulse/creatorpulse/internal/persistence"
	"github.com/creatorpulse/creatorpulse/internal/preferences"
)

// Notifier sends the draft-ready notification (C12).
type Notifier struct {
	Users  persistence.UserStore
	Prefs  *preferences.Resolver
	Sender Sender
	From   string
	// ReviewURL builds the draft review link for the notification body.
	ReviewURL func(draftID string) string
}

const draftReadySubject = "Your newsletter draft is ready to review"

// NotifyDraftReady sends the fixed-template draft-ready notification,
// gated by notification_preferences.email_on_draft_ready. A user with the
// preference off, or whose record has an empty email, is silently skipped —
// this is not a delivery failure. A failure to load the user is returned.
func (n *Notifier) NotifyDraftReady(ctx context.Context, userID, draftID string) error {
	prefs, err := n.Prefs.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("email: resolve preferences: %w", err)
	}
	notif, _ := prefs["notification_preferences"].(map[string]any)
	if !boolPref(notif, "email_on_draft_ready", true) {
		return nil
	}

	user, err := n.Users.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("email: load user: %w", err)
	}
	if user.Email == "" {
		return nil
	}

	reviewURL := ""
	if n.ReviewURL != nil {
		reviewURL = n.ReviewURL(draftID)
	}
	msg := Message{
		To:      user.Email,
		Subject: draftReadySubject,
		HTML:    fmt.Sprintf(`<p>Your newsletter draft is ready. <a href="%s">Review it here</a>.</p>`, reviewURL),
		Text:    fmt.Sprintf("Your newsletter draft is ready. Review it here: %s", reviewURL),
	}
	return n.Sender.Send(ctx, n.From, msg)
}
