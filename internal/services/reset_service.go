package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/comunication-ltd/credcore/internal/models"
	"github.com/comunication-ltd/credcore/pkg/hashing"
)

// ResetTokenStore is the slice of the credential store the token manager
// needs.
type ResetTokenStore interface {
	CreateResetToken(ctx context.Context, credentialID, token string, expiresAt time.Time) (*models.ResetToken, error)
	FindLiveResetToken(ctx context.Context, token string) (*models.ResetToken, error)
	FindResetToken(ctx context.Context, token string) (*models.ResetToken, error)
	MarkResetTokenUsed(ctx context.Context, token string) error
}

// ResetTokenManager issues and redeems single-use password reset tokens.
type ResetTokenManager struct {
	store  ResetTokenStore
	ttl    time.Duration
	logger *slog.Logger
}

func NewResetTokenManager(store ResetTokenStore, ttl time.Duration, logger *slog.Logger) *ResetTokenManager {
	return &ResetTokenManager{
		store:  store,
		ttl:    ttl,
		logger: logger,
	}
}

// Issue generates a fresh token for the credential and persists it with the
// configured expiry.
func (m *ResetTokenManager) Issue(ctx context.Context, credentialID string) (string, error) {
	token, err := hashing.GenerateResetToken()
	if err != nil {
		return "", err
	}

	if _, err := m.store.CreateResetToken(ctx, credentialID, token, time.Now().Add(m.ttl)); err != nil {
		m.logger.Error("failed to persist reset token",
			slog.String("credential_id", credentialID),
			slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	m.logger.Info("reset token issued", slog.String("credential_id", credentialID))
	return token, nil
}

// Resolve classifies the token and returns the owning credential id without
// claiming it. Failures are *models.TokenError.
func (m *ResetTokenManager) Resolve(ctx context.Context, token string) (string, error) {
	rec, err := m.store.FindLiveResetToken(ctx, token)
	if err == nil {
		return rec.CredentialID, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		m.logger.Error("reset token lookup failed", slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	// Not live: distinguish why for the audit trail. Callers surface all
	// three reasons as one generic message.
	raw, rawErr := m.store.FindResetToken(ctx, token)
	switch {
	case errors.Is(rawErr, models.ErrNotFound):
		return "", &models.TokenError{Reason: models.TokenNotFound}
	case rawErr != nil:
		m.logger.Error("reset token lookup failed", slog.Any("error", rawErr))
		return "", models.ErrInternalServer
	case raw.Used:
		return "", &models.TokenError{Reason: models.TokenAlreadyUsed}
	default:
		return "", &models.TokenError{Reason: models.TokenExpired}
	}
}

// Redeem atomically claims the token and returns the owning credential id.
// Of two concurrent redemptions exactly one succeeds; the loser gets
// TokenError(AlreadyUsed).
func (m *ResetTokenManager) Redeem(ctx context.Context, token string) (string, error) {
	credentialID, err := m.Resolve(ctx, token)
	if err != nil {
		return "", err
	}

	if err := m.store.MarkResetTokenUsed(ctx, token); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Lost the race to a concurrent redeemer.
			return "", &models.TokenError{Reason: models.TokenAlreadyUsed}
		}
		m.logger.Error("failed to mark reset token used", slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	m.logger.Info("reset token redeemed", slog.String("credential_id", credentialID))
	return credentialID, nil
}
