package integration

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comunication-ltd/credcore/internal/config"
	"github.com/comunication-ltd/credcore/internal/models"
	"github.com/comunication-ltd/credcore/internal/repositories"
	"github.com/comunication-ltd/credcore/pkg/hashing"
)

func setupStores(t *testing.T) (repositories.CredentialStore, repositories.CredentialStore, *TestDB) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	testDB, err := SetupTestDatabase(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { testDB.Teardown(context.Background()) })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	secure, err := repositories.NewPostgresStore(testDB.DB, config.StoreModeSecure, logger)
	require.NoError(t, err)
	vulnerable, err := repositories.NewPostgresStore(testDB.DB, config.StoreModeVulnerable, logger)
	require.NoError(t, err)

	return secure, vulnerable, testDB
}

// The two query strategies must agree on benign input and diverge on
// adversarial input: the parameterized store treats an injection payload as
// literal data, the interpolating store executes it as SQL.
func TestStoreStrategies_Divergence(t *testing.T) {
	secure, vulnerable, testDB := setupStores(t)
	ctx := context.Background()

	_, err := SeedCredential(ctx, testDB.Pool, "alice", "alice@example.com", "Sup3r-Secret!")
	require.NoError(t, err)

	t.Run("benign input agrees", func(t *testing.T) {
		fromSecure, err := secure.FindByUsername(ctx, "alice")
		require.NoError(t, err)
		fromVulnerable, err := vulnerable.FindByUsername(ctx, "alice")
		require.NoError(t, err)

		assert.Equal(t, fromSecure.ID, fromVulnerable.ID)
		assert.Equal(t, fromSecure.PasswordDigest, fromVulnerable.PasswordDigest)
	})

	t.Run("adversarial input diverges", func(t *testing.T) {
		payload := "x' OR '1'='1"

		_, err := secure.FindByUsername(ctx, payload)
		assert.ErrorIs(t, err, models.ErrNotFound)

		cred, err := vulnerable.FindByUsername(ctx, payload)
		require.NoError(t, err)
		assert.Equal(t, "alice", cred.Username)
	})
}

func TestPostgresStore_CredentialLifecycle(t *testing.T) {
	secure, _, _ := setupStores(t)
	ctx := context.Background()

	salt, err := hashing.NewSalt()
	require.NoError(t, err)
	digest := hashing.ComputeDigest("Sup3r-Secret!", salt)

	created, err := secure.CreateCredential(ctx, &models.Credential{
		Username:       "bob",
		Email:          "bob@example.com",
		PasswordDigest: digest,
		Salt:           salt,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	_, err = secure.CreateCredential(ctx, &models.Credential{
		Username:       "bob",
		Email:          "bob2@example.com",
		PasswordDigest: digest,
		Salt:           salt,
	})
	assert.ErrorIs(t, err, models.ErrConflict)

	newDigest := hashing.ComputeDigest("An0ther-Secret!", salt)
	require.NoError(t, secure.UpdatePassword(ctx, created.ID, newDigest))
	require.NoError(t, secure.AddPasswordHistory(ctx, created.ID, digest))
	require.NoError(t, secure.AddPasswordHistory(ctx, created.ID, newDigest))

	recent, err := secure.GetRecentHistory(ctx, created.ID, 3)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, newDigest, recent[0])
}

func TestPostgresStore_LockoutCounters(t *testing.T) {
	secure, _, testDB := setupStores(t)
	ctx := context.Background()

	_, err := SeedCredential(ctx, testDB.Pool, "carol", "carol@example.com", "Sup3r-Secret!")
	require.NoError(t, err)

	// Concurrent failures must not lose increments.
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = secure.IncrementFailedAttempts(ctx, "carol", 3, 15*time.Minute)
		}()
	}
	wg.Wait()

	cred, err := secure.FindByUsername(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, 5, cred.FailedAttempts)
	require.NotNil(t, cred.LockedUntil)
	assert.True(t, cred.LockedUntil.After(time.Now()))

	require.NoError(t, secure.ResetFailedAttempts(ctx, "carol"))
	cred, err = secure.FindByUsername(ctx, "carol")
	require.NoError(t, err)
	assert.Zero(t, cred.FailedAttempts)
	assert.Nil(t, cred.LockedUntil)

	// Counter ops on an unknown username report not-found, matching the
	// in-memory store.
	err = secure.IncrementFailedAttempts(ctx, "nobody", 3, 15*time.Minute)
	assert.ErrorIs(t, err, models.ErrNotFound)
	err = secure.ResetFailedAttempts(ctx, "nobody")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestPostgresStore_ResetTokenSingleWinner(t *testing.T) {
	secure, _, testDB := setupStores(t)
	ctx := context.Background()

	cred, err := SeedCredential(ctx, testDB.Pool, "dave", "dave@example.com", "Sup3r-Secret!")
	require.NoError(t, err)

	token, err := hashing.GenerateResetToken()
	require.NoError(t, err)
	_, err = secure.CreateResetToken(ctx, cred.ID, token, time.Now().Add(15*time.Minute))
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := secure.MarkResetTokenUsed(ctx, token); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			} else if !errors.Is(err, models.ErrNotFound) {
				t.Errorf("unexpected claim error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
}
