package email

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// RecipientToken returns a deterministic, signed token scoping a
// tracking/unsubscribe link to one (draftID, recipientID) pair. The same
// inputs always produce the same token, so a link rendered once keeps
// working for the lifetime of the secret.
func RecipientToken(secret, draftID, recipientID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(draftID))
	mac.Write([]byte{0})
	mac.Write([]byte(recipientID))
	return hex.EncodeToString(mac.Sum(nil))
}

// ValidToken reports whether token was produced by RecipientToken for the
// given inputs, using a constant-time comparison.
func ValidToken(secret, draftID, recipientID, token string) bool {
	want := RecipientToken(secret, draftID, recipientID)
	return subtle.ConstantTimeCompare([]byte(want), []byte(token)) == 1
}
