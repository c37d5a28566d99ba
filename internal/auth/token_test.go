package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_GenerateAndValidate(t *testing.T) {
	tm := NewTokenManager("test-secret-key", 15*time.Minute)

	token, err := tm.GenerateToken("cred-123", "alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "cred-123", claims.CredentialID)
	assert.Equal(t, "alice", claims.Username)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenManager_ValidateToken_WrongSecret(t *testing.T) {
	tm := NewTokenManager("test-secret-key", 15*time.Minute)
	other := NewTokenManager("different-secret", 15*time.Minute)

	token, err := tm.GenerateToken("cred-123", "alice")
	require.NoError(t, err)

	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenManager_ValidateToken_Expired(t *testing.T) {
	tm := NewTokenManager("test-secret-key", -1*time.Minute)

	token, err := tm.GenerateToken("cred-123", "alice")
	require.NoError(t, err)

	_, err = tm.ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenManager_ValidateToken_Garbage(t *testing.T) {
	tm := NewTokenManager("test-secret-key", 15*time.Minute)

	_, err := tm.ValidateToken("not-a-jwt")
	assert.Error(t, err)
}

func TestTokenManager_UniqueTokenIDs(t *testing.T) {
	tm := NewTokenManager("test-secret-key", 15*time.Minute)

	first, err := tm.GenerateToken("cred-123", "alice")
	require.NoError(t, err)
	second, err := tm.GenerateToken("cred-123", "alice")
	require.NoError(t, err)

	firstClaims, err := tm.ValidateToken(first)
	require.NoError(t, err)
	secondClaims, err := tm.ValidateToken(second)
	require.NoError(t, err)

	assert.NotEqual(t, firstClaims.ID, secondClaims.ID)
}
