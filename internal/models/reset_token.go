package models

import (
	"time"
)

// ResetToken is a single-use bearer value authorizing one password reset.
type ResetToken struct {
	ID           string    `json:"id"`
	CredentialID string    `json:"credential_id"`
	Token        string    `json:"-"` // Never expose the token value
	ExpiresAt    time.Time `json:"expires_at"`
	Used         bool      `json:"used"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsExpired checks if the token has expired
func (t *ResetToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// IsLive checks if the token can still be redeemed (not expired and not used)
func (t *ResetToken) IsLive() bool {
	return !t.Used && !t.IsExpired()
}
