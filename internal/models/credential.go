package models

import (
	"time"
)

// Credential is the stored login identity for an account.
// PasswordDigest is always the HMAC of some password keyed by exactly Salt;
// the pair is only ever written together. The salt is generated once at
// registration and never rotated, so the history check can compare digests
// directly.
type Credential struct {
	ID             string
	Username       string // unique
	Email          string // unique
	PasswordDigest string // 40 hex chars (HMAC-SHA1)
	Salt           string // 32 hex chars
	FailedAttempts int
	LockedUntil    *time.Time // lock expiry, nil when not locked
	CreatedAt      time.Time
}

// PasswordHistoryEntry records one digest a credential has used.
// Entries are append-only; only the most recent HistoryCount are consulted.
type PasswordHistoryEntry struct {
	ID             string
	CredentialID   string
	PasswordDigest string
	CreatedAt      time.Time
}
