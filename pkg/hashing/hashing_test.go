package hashing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSalt_DefaultLength(t *testing.T) {
	salt, err := NewSalt()

	require.NoError(t, err)
	assert.Len(t, salt, 2*SaltByteLength)
	assert.Regexp(t, "^[0-9a-f]+$", salt)
}

func TestGenerateSalt_CustomLength(t *testing.T) {
	salt, err := GenerateSalt(8)

	require.NoError(t, err)
	assert.Len(t, salt, 16)
}

func TestGenerateSalt_NonPositiveLengthFallsBackToDefault(t *testing.T) {
	salt, err := GenerateSalt(0)

	require.NoError(t, err)
	assert.Len(t, salt, 2*SaltByteLength)
}

func TestGenerateSalt_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		salt, err := NewSalt()
		require.NoError(t, err)
		assert.False(t, seen[salt], "salt collision")
		seen[salt] = true
	}
}

func TestComputeDigest_Deterministic(t *testing.T) {
	d1 := ComputeDigest("Str0ng!Pass", "aabbccdd")
	d2 := ComputeDigest("Str0ng!Pass", "aabbccdd")

	assert.Equal(t, d1, d2)
	assert.Len(t, d1, DigestHexLength)
	assert.Regexp(t, "^[0-9a-f]+$", d1)
}

func TestComputeDigest_KnownVector(t *testing.T) {
	// HMAC-SHA1("password", key="salt")
	assert.Equal(t, "c1d0e06998305903ac76f589bbd6d4b61a670ba6", ComputeDigest("password", "salt"))
}

func TestComputeDigest_DifferentSaltsDiffer(t *testing.T) {
	d1 := ComputeDigest("Str0ng!Pass", "salt-one")
	d2 := ComputeDigest("Str0ng!Pass", "salt-two")

	assert.NotEqual(t, d1, d2)
}

func TestComputeDigest_DifferentPasswordsDiffer(t *testing.T) {
	salt, err := NewSalt()
	require.NoError(t, err)

	assert.NotEqual(t, ComputeDigest("password-a", salt), ComputeDigest("password-b", salt))
}

func TestComputeDigest_EmptyPassword(t *testing.T) {
	// Empty input still digests; policy rejects it upstream.
	d := ComputeDigest("", "somesalt")
	assert.Len(t, d, DigestHexLength)
}

func TestGenerateResetToken(t *testing.T) {
	t1, err := GenerateResetToken()
	require.NoError(t, err)
	t2, err := GenerateResetToken()
	require.NoError(t, err)

	assert.Len(t, t1, DigestHexLength)
	assert.Regexp(t, "^[0-9a-f]+$", t1)
	assert.NotEqual(t, t1, t2)
}
