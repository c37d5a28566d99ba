// Package lockout throttles brute-force login attempts by counting failures
// per credential and locking the account for a configured window.
package lockout

import (
	"context"
	"log/slog"
	"time"

	"github.com/comunication-ltd/credcore/internal/config"
	"github.com/comunication-ltd/credcore/internal/models"
)

// FailureStore is the slice of the credential store the guard mutates.
// Both operations are atomic per credential row.
type FailureStore interface {
	IncrementFailedAttempts(ctx context.Context, username string, threshold int, window time.Duration) error
	ResetFailedAttempts(ctx context.Context, username string) error
}

// Guard decides lock state and records login outcomes.
type Guard struct {
	store  FailureStore
	cfg    config.SecurityConfig
	logger *slog.Logger

	// Now is the clock used for lock expiry checks, overridable in tests.
	Now func() time.Time
}

func NewGuard(store FailureStore, cfg config.SecurityConfig, logger *slog.Logger) *Guard {
	return &Guard{
		store:  store,
		cfg:    cfg,
		logger: logger,
		Now:    time.Now,
	}
}

// IsLocked reports whether the credential is inside an active lockout
// window. A failure count below threshold never locks, whatever the
// timestamps say.
func (g *Guard) IsLocked(cred *models.Credential) bool {
	if cred == nil {
		return false
	}
	if cred.FailedAttempts < g.cfg.LockoutThreshold {
		return false
	}
	if cred.LockedUntil == nil {
		return false
	}
	return g.Now().Before(*cred.LockedUntil)
}

// RecordFailure bumps the failure counter; reaching the threshold starts a
// lockout window of the configured length.
func (g *Guard) RecordFailure(ctx context.Context, username string) error {
	err := g.store.IncrementFailedAttempts(ctx, username, g.cfg.LockoutThreshold, g.cfg.LockoutWindow)
	if err != nil {
		g.logger.Error("failed to record login failure",
			slog.String("username", username),
			slog.Any("error", err))
		return err
	}
	return nil
}

// RecordSuccess zeroes the counter and clears any lock.
func (g *Guard) RecordSuccess(ctx context.Context, username string) error {
	err := g.store.ResetFailedAttempts(ctx, username)
	if err != nil {
		g.logger.Error("failed to reset login failures",
			slog.String("username", username),
			slog.Any("error", err))
		return err
	}
	return nil
}
