package models

import (
	"errors"
	"strings"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrBadRequest     = errors.New("bad request")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInternalServer = errors.New("internal server error")

	// ErrInvalidCredentials covers both unknown-user and wrong-password so
	// callers cannot tell which check failed.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrAccountLocked is returned while the lockout window is active.
	ErrAccountLocked = errors.New("account is temporarily locked")
)

// ValidationError carries every policy rule the candidate password violated.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	if len(e.Reasons) == 0 {
		return "password validation failed"
	}
	return "password policy: " + strings.Join(e.Reasons, ", ")
}

// TokenErrorReason classifies why a reset token could not be redeemed.
type TokenErrorReason string

const (
	TokenNotFound    TokenErrorReason = "not_found"
	TokenExpired     TokenErrorReason = "expired"
	TokenAlreadyUsed TokenErrorReason = "already_used"
)

// TokenError is the internal redemption failure. Handlers collapse all
// reasons into one generic message so callers cannot probe token state.
type TokenError struct {
	Reason TokenErrorReason
}

func (e *TokenError) Error() string {
	return "invalid reset token: " + string(e.Reason)
}

// AsTokenError unwraps err into a *TokenError if it is one.
func AsTokenError(err error) (*TokenError, bool) {
	var te *TokenError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
