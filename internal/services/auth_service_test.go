package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/comunication-ltd/credcore/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	clientIP        = "203.0.113.10"
	validPassword   = "Sup3r-Secret!"
	anotherPassword = "An0ther-Secret!"
	thirdPassword   = "Th1rd-Secret!!"
	fourthPassword  = "F0urth-Secret!"
)

func registerAlice(t *testing.T, f *testFixture) *CredentialResponse {
	t.Helper()
	cred, err := f.svc.Register(context.Background(), "alice", "alice@example.com", validPassword, clientIP)
	require.NoError(t, err)
	return cred
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("creates credential and seeds history", func(t *testing.T) {
		f := newTestFixture()
		cred := registerAlice(t, f)

		assert.NotEmpty(t, cred.ID)
		assert.Equal(t, "alice", cred.Username)
		assert.Equal(t, "alice@example.com", cred.Email)

		recent, err := f.store.GetRecentHistory(ctx, cred.ID, 3)
		require.NoError(t, err)
		assert.Len(t, recent, 1)
	})

	t.Run("duplicate username rejected", func(t *testing.T) {
		f := newTestFixture()
		registerAlice(t, f)

		_, err := f.svc.Register(ctx, "alice", "other@example.com", validPassword, clientIP)
		assert.ErrorIs(t, err, models.ErrConflict)
	})

	t.Run("duplicate email rejected", func(t *testing.T) {
		f := newTestFixture()
		registerAlice(t, f)

		_, err := f.svc.Register(ctx, "bob", "alice@example.com", validPassword, clientIP)
		assert.ErrorIs(t, err, models.ErrConflict)
	})

	t.Run("email is normalized to lowercase", func(t *testing.T) {
		f := newTestFixture()
		cred, err := f.svc.Register(ctx, "alice", "Alice@Example.COM", validPassword, clientIP)
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", cred.Email)
	})

	t.Run("weak password returns every violated rule", func(t *testing.T) {
		f := newTestFixture()

		_, err := f.svc.Register(ctx, "alice", "alice@example.com", "short", clientIP)
		var ve *models.ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Contains(t, ve.Reasons, "too short")
		assert.Contains(t, ve.Reasons, "missing uppercase")
	})

	t.Run("password containing username rejected", func(t *testing.T) {
		f := newTestFixture()

		_, err := f.svc.Register(ctx, "alice", "alice@example.com", "Xalice-123!ZZ", clientIP)
		var ve *models.ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Contains(t, ve.Reasons, "contains username")
	})
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("correct password returns token", func(t *testing.T) {
		f := newTestFixture()
		cred := registerAlice(t, f)

		resp, err := f.svc.Login(ctx, "alice", validPassword, clientIP)
		require.NoError(t, err)
		assert.NotEmpty(t, resp.AccessToken)
		assert.Equal(t, cred.ID, resp.Credential.ID)
	})

	t.Run("unknown user and wrong password are indistinguishable", func(t *testing.T) {
		f := newTestFixture()
		registerAlice(t, f)

		_, unknownErr := f.svc.Login(ctx, "nobody", validPassword, clientIP)
		_, wrongErr := f.svc.Login(ctx, "alice", "Wrong-Passw0rd!", clientIP)

		assert.ErrorIs(t, unknownErr, models.ErrInvalidCredentials)
		assert.ErrorIs(t, wrongErr, models.ErrInvalidCredentials)
		assert.Equal(t, unknownErr.Error(), wrongErr.Error())
	})
}

func TestAuthService_Lockout(t *testing.T) {
	ctx := context.Background()
	f := newTestFixture()
	registerAlice(t, f)

	// Three consecutive failures trip the lock.
	for i := 0; i < 3; i++ {
		_, err := f.svc.Login(ctx, "alice", "Wrong-Passw0rd!", clientIP)
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	}

	// Even the correct password is refused while locked.
	_, err := f.svc.Login(ctx, "alice", validPassword, clientIP)
	assert.ErrorIs(t, err, models.ErrAccountLocked)

	// After the window expires the login succeeds and the counter resets.
	f.advanceClock(16 * time.Minute)

	resp, err := f.svc.Login(ctx, "alice", validPassword, clientIP)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)

	cred, err := f.store.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, cred.FailedAttempts)
	assert.Nil(t, cred.LockedUntil)
}

func TestAuthService_FailureBelowThresholdDoesNotLock(t *testing.T) {
	ctx := context.Background()
	f := newTestFixture()
	registerAlice(t, f)

	for i := 0; i < 2; i++ {
		_, err := f.svc.Login(ctx, "alice", "Wrong-Passw0rd!", clientIP)
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	}

	resp, err := f.svc.Login(ctx, "alice", validPassword, clientIP)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
}

func TestAuthService_ChangePassword(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path keeps salt and rotates digest", func(t *testing.T) {
		f := newTestFixture()
		cred := registerAlice(t, f)

		before, err := f.store.FindByID(ctx, cred.ID)
		require.NoError(t, err)

		require.NoError(t, f.svc.ChangePassword(ctx, cred.ID, validPassword, anotherPassword, clientIP))

		after, err := f.store.FindByID(ctx, cred.ID)
		require.NoError(t, err)
		assert.Equal(t, before.Salt, after.Salt)
		assert.NotEqual(t, before.PasswordDigest, after.PasswordDigest)

		_, err = f.svc.Login(ctx, "alice", anotherPassword, clientIP)
		assert.NoError(t, err)
		_, err = f.svc.Login(ctx, "alice", validPassword, clientIP)
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	})

	t.Run("wrong old password rejected", func(t *testing.T) {
		f := newTestFixture()
		cred := registerAlice(t, f)

		err := f.svc.ChangePassword(ctx, cred.ID, "Wrong-Passw0rd!", anotherPassword, clientIP)
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	})

	t.Run("reusing a recent password rejected", func(t *testing.T) {
		f := newTestFixture()
		cred := registerAlice(t, f)

		err := f.svc.ChangePassword(ctx, cred.ID, validPassword, validPassword, clientIP)
		var ve *models.ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Contains(t, ve.Reasons, "matches one of the last passwords")
	})

	t.Run("password outside the history window is allowed again", func(t *testing.T) {
		f := newTestFixture()
		cred := registerAlice(t, f)

		require.NoError(t, f.svc.ChangePassword(ctx, cred.ID, validPassword, anotherPassword, clientIP))
		require.NoError(t, f.svc.ChangePassword(ctx, cred.ID, anotherPassword, thirdPassword, clientIP))
		require.NoError(t, f.svc.ChangePassword(ctx, cred.ID, thirdPassword, fourthPassword, clientIP))

		// The original password has aged out of the three-entry window.
		require.NoError(t, f.svc.ChangePassword(ctx, cred.ID, fourthPassword, validPassword, clientIP))
	})

	t.Run("failed policy check leaves password unchanged", func(t *testing.T) {
		f := newTestFixture()
		cred := registerAlice(t, f)

		err := f.svc.ChangePassword(ctx, cred.ID, validPassword, "weak", clientIP)
		var ve *models.ValidationError
		require.True(t, errors.As(err, &ve))

		_, err = f.svc.Login(ctx, "alice", validPassword, clientIP)
		assert.NoError(t, err)
	})
}

func TestAuthService_ForgotPassword(t *testing.T) {
	ctx := context.Background()

	t.Run("sends token to registered email", func(t *testing.T) {
		f := newTestFixture()
		registerAlice(t, f)

		require.NoError(t, f.svc.ForgotPassword(ctx, "alice@example.com", clientIP))
		assert.Equal(t, []string{"alice@example.com"}, f.email.SentEmails)
		assert.Len(t, f.email.LastToken(), 40)
	})

	t.Run("unknown email reported", func(t *testing.T) {
		f := newTestFixture()

		err := f.svc.ForgotPassword(ctx, "nobody@example.com", clientIP)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("delivery failure surfaces as internal error", func(t *testing.T) {
		f := newTestFixture()
		registerAlice(t, f)
		f.email.SendFunc = func(ctx context.Context, email, token string) error {
			return errors.New("ses unavailable")
		}

		err := f.svc.ForgotPassword(ctx, "alice@example.com", clientIP)
		assert.ErrorIs(t, err, models.ErrInternalServer)
	})
}

func TestAuthService_ResetPassword(t *testing.T) {
	ctx := context.Background()

	t.Run("full flow", func(t *testing.T) {
		f := newTestFixture()
		registerAlice(t, f)

		require.NoError(t, f.svc.ForgotPassword(ctx, "alice@example.com", clientIP))
		token := f.email.LastToken()

		require.NoError(t, f.svc.ResetPassword(ctx, token, anotherPassword, clientIP))

		_, err := f.svc.Login(ctx, "alice", anotherPassword, clientIP)
		assert.NoError(t, err)
	})

	t.Run("token is single use", func(t *testing.T) {
		f := newTestFixture()
		registerAlice(t, f)

		require.NoError(t, f.svc.ForgotPassword(ctx, "alice@example.com", clientIP))
		token := f.email.LastToken()

		require.NoError(t, f.svc.ResetPassword(ctx, token, anotherPassword, clientIP))

		err := f.svc.ResetPassword(ctx, token, thirdPassword, clientIP)
		te, ok := models.AsTokenError(err)
		require.True(t, ok)
		assert.Equal(t, models.TokenAlreadyUsed, te.Reason)
	})

	t.Run("failed policy check does not consume the token", func(t *testing.T) {
		f := newTestFixture()
		registerAlice(t, f)

		require.NoError(t, f.svc.ForgotPassword(ctx, "alice@example.com", clientIP))
		token := f.email.LastToken()

		err := f.svc.ResetPassword(ctx, token, "weak", clientIP)
		var ve *models.ValidationError
		require.True(t, errors.As(err, &ve))

		// Token still live; a compliant retry succeeds.
		require.NoError(t, f.svc.ResetPassword(ctx, token, anotherPassword, clientIP))
	})

	t.Run("expired token rejected", func(t *testing.T) {
		f := newTestFixture()
		registerAlice(t, f)

		require.NoError(t, f.svc.ForgotPassword(ctx, "alice@example.com", clientIP))
		token := f.email.LastToken()

		f.store.Now = func() time.Time { return time.Now().Add(16 * time.Minute) }

		err := f.svc.ResetPassword(ctx, token, anotherPassword, clientIP)
		te, ok := models.AsTokenError(err)
		require.True(t, ok)
		assert.Equal(t, models.TokenExpired, te.Reason)
	})

	t.Run("reset counts against password history", func(t *testing.T) {
		f := newTestFixture()
		registerAlice(t, f)

		require.NoError(t, f.svc.ForgotPassword(ctx, "alice@example.com", clientIP))
		token := f.email.LastToken()

		err := f.svc.ResetPassword(ctx, token, validPassword, clientIP)
		var ve *models.ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Contains(t, ve.Reasons, "matches one of the last passwords")
	})
}

func TestAuthService_Customers(t *testing.T) {
	ctx := context.Background()
	f := newTestFixture()

	email := "acme@example.com"
	first, err := f.svc.AddCustomer(ctx, "Acme Corp", &email, nil)
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", first.Name)

	_, err = f.svc.AddCustomer(ctx, "Globex", nil, nil)
	require.NoError(t, err)

	_, err = f.svc.AddCustomer(ctx, "   ", nil, nil)
	assert.ErrorIs(t, err, models.ErrBadRequest)

	customers, err := f.svc.ListCustomers(ctx)
	require.NoError(t, err)
	require.Len(t, customers, 2)
	assert.Equal(t, "Globex", customers[0].Name)
}
