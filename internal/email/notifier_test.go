package email

import (
	"context"
	"testing"

	"github.com/creatorpulse/creatorpulse/internal/persistence"
	"github.com/creatorpulse/creatorpulse/internal/persistence/databases"
	"github.com/creatorpulse/creatorpulse/internal/preferences"
)

func newTestNotifier(t *testing.T, sender Sender) (*Notifier, persistence.UserStore) {
	t.Helper()
	users := databases.NewUserStore(nil)
	prefsStore := databases.NewPreferencesStore(nil)
	n := &Notifier{
		Users:     users,
		Prefs:     preferences.NewResolver(prefsStore),
		Sender:    sender,
		From:      "news@creatorpulse.test",
		ReviewURL: func(draftID string) string { return "https://creatorpulse.test/drafts/" + draftID },
	}
	return n, users
}

func TestNotifyDraftReady_SendsWhenPreferenceEnabled(t *testing.T) {
	ctx := context.Background()
	sender := &fakeSender{}
	n, users := newTestNotifier(t, sender)
	if _, err := users.Create(ctx, persistence.User{ID: "u1", Email: "creator@example.com"}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	if err := n.NotifyDraftReady(ctx, "u1", "d1"); err != nil {
		t.Fatalf("NotifyDraftReady: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 notification sent, got %d", len(sender.sent))
	}
	if sender.sent[0].To != "creator@example.com" {
		t.Fatalf("unexpected recipient: %+v", sender.sent[0])
	}
}

func TestNotifyDraftReady_SkipsWhenPreferenceDisabled(t *testing.T) {
	ctx := context.Background()
	sender := &fakeSender{}
	n, users := newTestNotifier(t, sender)
	if _, err := users.Create(ctx, persistence.User{ID: "u1", Email: "creator@example.com"}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if _, err := n.Prefs.Patch(ctx, "u1", map[string]any{
		"notification_preferences": map[string]any{"email_on_draft_ready": false},
	}); err != nil {
		t.Fatalf("Patch: %v", err)
	}

	if err := n.NotifyDraftReady(ctx, "u1", "d1"); err != nil {
		t.Fatalf("NotifyDraftReady: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("expected no notification sent, got %d", len(sender.sent))
	}
}
