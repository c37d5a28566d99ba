package lockout

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/comunication-ltd/credcore/internal/config"
	"github.com/comunication-ltd/credcore/internal/models"
	"github.com/comunication-ltd/credcore/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGuardConfig() config.SecurityConfig {
	return config.SecurityConfig{
		LockoutThreshold: 3,
		LockoutWindow:    15 * time.Minute,
	}
}

func TestIsLocked_BelowThresholdNeverLocks(t *testing.T) {
	g := NewGuard(repositories.NewMemoryStore(), testGuardConfig(), slog.Default())

	future := time.Now().Add(time.Hour)
	cred := &models.Credential{FailedAttempts: 2, LockedUntil: &future}

	// Stale lock timestamp with a sub-threshold counter must not lock.
	assert.False(t, g.IsLocked(cred))
}

func TestIsLocked_AtThresholdInsideWindow(t *testing.T) {
	g := NewGuard(repositories.NewMemoryStore(), testGuardConfig(), slog.Default())

	until := time.Now().Add(10 * time.Minute)
	cred := &models.Credential{FailedAttempts: 3, LockedUntil: &until}

	assert.True(t, g.IsLocked(cred))
}

func TestIsLocked_WindowElapsed(t *testing.T) {
	g := NewGuard(repositories.NewMemoryStore(), testGuardConfig(), slog.Default())

	until := time.Now().Add(10 * time.Minute)
	cred := &models.Credential{FailedAttempts: 3, LockedUntil: &until}
	g.Now = func() time.Time { return until.Add(time.Second) }

	assert.False(t, g.IsLocked(cred))
}

func TestIsLocked_NilCredentialOrMissingExpiry(t *testing.T) {
	g := NewGuard(repositories.NewMemoryStore(), testGuardConfig(), slog.Default())

	assert.False(t, g.IsLocked(nil))
	assert.False(t, g.IsLocked(&models.Credential{FailedAttempts: 5, LockedUntil: nil}))
}

func TestRecordFailure_LocksAtThreshold(t *testing.T) {
	store := repositories.NewMemoryStore()
	g := NewGuard(store, testGuardConfig(), slog.Default())
	ctx := context.Background()

	_, err := store.CreateCredential(ctx, &models.Credential{
		Username: "alice", Email: "alice@example.com",
	})
	require.NoError(t, err)

	require.NoError(t, g.RecordFailure(ctx, "alice"))
	require.NoError(t, g.RecordFailure(ctx, "alice"))

	cred, err := store.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, g.IsLocked(cred))

	require.NoError(t, g.RecordFailure(ctx, "alice"))

	cred, err = store.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, g.IsLocked(cred))
}

func TestRecordSuccess_ClearsCounterAndLock(t *testing.T) {
	store := repositories.NewMemoryStore()
	g := NewGuard(store, testGuardConfig(), slog.Default())
	ctx := context.Background()

	_, err := store.CreateCredential(ctx, &models.Credential{
		Username: "alice", Email: "alice@example.com",
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, g.RecordFailure(ctx, "alice"))
	}
	require.NoError(t, g.RecordSuccess(ctx, "alice"))

	cred, err := store.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, cred.FailedAttempts)
	assert.False(t, g.IsLocked(cred))
}
