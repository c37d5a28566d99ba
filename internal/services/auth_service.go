package services

import (
	"context"
	"crypto/hmac"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/comunication-ltd/credcore/internal/auth"
	"github.com/comunication-ltd/credcore/internal/config"
	"github.com/comunication-ltd/credcore/internal/lockout"
	"github.com/comunication-ltd/credcore/internal/models"
	"github.com/comunication-ltd/credcore/internal/policy"
	"github.com/comunication-ltd/credcore/internal/repositories"
	"github.com/comunication-ltd/credcore/pkg/hashing"
	pkglogger "github.com/comunication-ltd/credcore/pkg/logger"
)

// AuthService sequences the credential-security flows: register, login,
// change-password, forgot-password and reset-password. Every flow runs
// existence checks, then policy checks, then store mutations, so a failed
// check never leaves partial state behind.
type AuthService struct {
	store  repositories.CredentialStore
	policy *policy.Engine
	guard  *lockout.Guard
	resets *ResetTokenManager
	email  EmailService
	tm     *auth.TokenManager
	timing *auth.TimingDelay
	logger *slog.Logger
	audit  *pkglogger.AuditLogger
	secCfg config.SecurityConfig
}

func NewAuthService(
	store repositories.CredentialStore,
	policyEngine *policy.Engine,
	guard *lockout.Guard,
	resets *ResetTokenManager,
	email EmailService,
	tm *auth.TokenManager,
	timing *auth.TimingDelay,
	logger *slog.Logger,
	audit *pkglogger.AuditLogger,
	secCfg config.SecurityConfig,
) *AuthService {
	return &AuthService{
		store:  store,
		policy: policyEngine,
		guard:  guard,
		resets: resets,
		email:  email,
		tm:     tm,
		timing: timing,
		logger: logger,
		audit:  audit,
		secCfg: secCfg,
	}
}

// CredentialResponse represents a credential in HTTP responses.
type CredentialResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

// LoginResponse is the result of a successful login.
type LoginResponse struct {
	AccessToken string              `json:"access_token"`
	Credential  *CredentialResponse `json:"credential"`
}

// Register creates a new credential. Uniqueness failures disclose which
// field collided; that tradeoff is accepted for registration only.
func (s *AuthService) Register(ctx context.Context, username, email, password, ipAddress string) (*CredentialResponse, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if username == "" || email == "" {
		return nil, models.ErrBadRequest
	}

	if _, err := s.store.FindByUsername(ctx, username); err == nil {
		s.logger.Info("registration failed: username taken")
		return nil, fmt.Errorf("username already exists: %w", models.ErrConflict)
	} else if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check username", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if _, err := s.store.FindByEmail(ctx, email); err == nil {
		s.logger.Info("registration failed: email taken")
		return nil, fmt.Errorf("email already in use: %w", models.ErrConflict)
	} else if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.checkPasswordPolicy(password, username, nil); err != nil {
		return nil, err
	}

	salt, err := hashing.NewSalt()
	if err != nil {
		s.logger.Error("failed to generate salt", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	digest := hashing.ComputeDigest(password, salt)

	created, err := s.store.CreateCredential(ctx, &models.Credential{
		Username:       username,
		Email:          email,
		PasswordDigest: digest,
		Salt:           salt,
	})
	if err != nil {
		s.logger.Error("failed to create credential", slog.Any("error", err))
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		return nil, models.ErrInternalServer
	}

	if err := s.store.AddPasswordHistory(ctx, created.ID, digest); err != nil {
		s.logger.Error("failed to append password history",
			slog.String("credential_id", created.ID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("credential registered", slog.String("credential_id", created.ID))
	s.audit.LogAuthEvent(pkglogger.AuditEvent{
		EventType:    "register",
		CredentialID: created.ID,
		IPAddress:    ipAddress,
		Success:      true,
	})

	return credentialToResponse(created), nil
}

// Login authenticates a credential. Unknown usernames and wrong passwords
// are indistinguishable to the caller; locked accounts are reported as
// locked.
func (s *AuthService) Login(ctx context.Context, username, password, ipAddress string) (*LoginResponse, error) {
	username = strings.TrimSpace(username)

	cred, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("login failed: invalid credentials")
			s.audit.LogAuthEvent(pkglogger.AuditEvent{
				EventType:     "login_failed",
				IPAddress:     ipAddress,
				FailureReason: "invalid_credentials",
			})
			s.timing.Wait(false)
			return nil, models.ErrInvalidCredentials
		}
		s.logger.Error("failed to look up credential", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if s.guard.IsLocked(cred) {
		s.logger.Info("login blocked: account locked", slog.String("credential_id", cred.ID))
		s.audit.LogAuthEvent(pkglogger.AuditEvent{
			EventType:     "login_failed",
			CredentialID:  cred.ID,
			IPAddress:     ipAddress,
			FailureReason: "locked",
		})
		return nil, models.ErrAccountLocked
	}

	digest := hashing.ComputeDigest(password, cred.Salt)
	if !hmac.Equal([]byte(digest), []byte(cred.PasswordDigest)) {
		if err := s.guard.RecordFailure(ctx, username); err != nil {
			return nil, models.ErrInternalServer
		}
		s.logger.Info("login failed: invalid credentials")
		s.audit.LogAuthEvent(pkglogger.AuditEvent{
			EventType:     "login_failed",
			CredentialID:  cred.ID,
			IPAddress:     ipAddress,
			FailureReason: "invalid_credentials",
		})
		s.timing.Wait(false)
		return nil, models.ErrInvalidCredentials
	}

	if err := s.guard.RecordSuccess(ctx, username); err != nil {
		return nil, models.ErrInternalServer
	}

	accessToken, err := s.tm.GenerateToken(cred.ID, cred.Username)
	if err != nil {
		s.logger.Error("failed to generate access token",
			slog.String("credential_id", cred.ID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("login succeeded", slog.String("credential_id", cred.ID))
	s.audit.LogAuthEvent(pkglogger.AuditEvent{
		EventType:    "login_success",
		CredentialID: cred.ID,
		IPAddress:    ipAddress,
		Success:      true,
	})

	return &LoginResponse{
		AccessToken: accessToken,
		Credential:  credentialToResponse(cred),
	}, nil
}

// ChangePassword verifies the old password and applies the full policy to
// the new one before persisting.
func (s *AuthService) ChangePassword(ctx context.Context, credentialID, oldPassword, newPassword, ipAddress string) error {
	cred, err := s.store.FindByID(ctx, credentialID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to look up credential", slog.Any("error", err))
		return models.ErrInternalServer
	}

	oldDigest := hashing.ComputeDigest(oldPassword, cred.Salt)
	if !hmac.Equal([]byte(oldDigest), []byte(cred.PasswordDigest)) {
		s.audit.LogAuthEvent(pkglogger.AuditEvent{
			EventType:     "password_change_failed",
			CredentialID:  cred.ID,
			IPAddress:     ipAddress,
			FailureReason: "invalid_credentials",
		})
		return models.ErrInvalidCredentials
	}

	newDigest := hashing.ComputeDigest(newPassword, cred.Salt)
	if err := s.checkPasswordPolicy(newPassword, cred.Username, func() (string, []string, error) {
		recent, err := s.store.GetRecentHistory(ctx, cred.ID, s.secCfg.HistoryCount)
		return newDigest, recent, err
	}); err != nil {
		return err
	}

	if err := s.persistNewDigest(ctx, cred.ID, newDigest); err != nil {
		return err
	}

	s.logger.Info("password changed", slog.String("credential_id", cred.ID))
	s.audit.LogAuthEvent(pkglogger.AuditEvent{
		EventType:    "password_changed",
		CredentialID: cred.ID,
		IPAddress:    ipAddress,
		Success:      true,
	})
	return nil
}

// ForgotPassword issues a reset token and hands it to the delivery
// collaborator.
func (s *AuthService) ForgotPassword(ctx context.Context, email, ipAddress string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	// Addresses are masked before they reach the logs.
	s.logger.Info("password reset requested",
		slog.String("email", pkglogger.SanitizedEmail(email)))

	cred, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to look up credential", slog.Any("error", err))
		return models.ErrInternalServer
	}

	token, err := s.resets.Issue(ctx, cred.ID)
	if err != nil {
		return models.ErrInternalServer
	}

	if err := s.email.SendResetToken(ctx, cred.Email, token); err != nil {
		s.logger.Error("reset token delivery failed",
			slog.String("credential_id", cred.ID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.audit.LogAuthEvent(pkglogger.AuditEvent{
		EventType:    "reset_requested",
		CredentialID: cred.ID,
		IPAddress:    ipAddress,
		Success:      true,
	})
	return nil
}

// ResetPassword redeems a token and sets a new password. The token is
// claimed only after every policy check passes, and the claim is atomic, so
// concurrent resets with the same token produce exactly one winner.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword, ipAddress string) error {
	credentialID, err := s.resets.Resolve(ctx, token)
	if err != nil {
		s.audit.LogAuthEvent(pkglogger.AuditEvent{
			EventType:     "password_reset_failed",
			IPAddress:     ipAddress,
			FailureReason: "invalid_token",
		})
		return err
	}

	cred, err := s.store.FindByID(ctx, credentialID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to look up credential", slog.Any("error", err))
		return models.ErrInternalServer
	}

	newDigest := hashing.ComputeDigest(newPassword, cred.Salt)
	if err := s.checkPasswordPolicy(newPassword, cred.Username, func() (string, []string, error) {
		recent, err := s.store.GetRecentHistory(ctx, cred.ID, s.secCfg.HistoryCount)
		return newDigest, recent, err
	}); err != nil {
		return err
	}

	if _, err := s.resets.Redeem(ctx, token); err != nil {
		return err
	}

	if err := s.persistNewDigest(ctx, cred.ID, newDigest); err != nil {
		return err
	}

	s.logger.Info("password reset", slog.String("credential_id", cred.ID))
	s.audit.LogAuthEvent(pkglogger.AuditEvent{
		EventType:    "password_reset",
		CredentialID: cred.ID,
		IPAddress:    ipAddress,
		Success:      true,
	})
	return nil
}

// AddCustomer creates a customer record through the configured store
// strategy.
func (s *AuthService) AddCustomer(ctx context.Context, name string, email, phone *string) (*models.Customer, error) {
	if strings.TrimSpace(name) == "" {
		return nil, models.ErrBadRequest
	}

	customer, err := s.store.CreateCustomer(ctx, &models.Customer{
		Name:  name,
		Email: email,
		Phone: phone,
	})
	if err != nil {
		s.logger.Error("failed to create customer", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return customer, nil
}

// ListCustomers returns customer records, newest first.
func (s *AuthService) ListCustomers(ctx context.Context) ([]*models.Customer, error) {
	customers, err := s.store.ListCustomers(ctx)
	if err != nil {
		s.logger.Error("failed to list customers", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return customers, nil
}

// checkPasswordPolicy runs complexity, dictionary and (when historyFetch is
// non-nil) history checks in that order, mapping failures to
// ValidationError.
func (s *AuthService) checkPasswordPolicy(password, username string, historyFetch func() (string, []string, error)) error {
	if cx := s.policy.ValidateComplexity(password, username); !cx.OK {
		return &models.ValidationError{Reasons: cx.Reasons}
	}

	if dict := s.policy.CheckDictionary(password); !dict.OK {
		return &models.ValidationError{Reasons: []string{dict.Reason}}
	}

	if historyFetch != nil {
		newDigest, recent, err := historyFetch()
		if err != nil {
			s.logger.Error("failed to load password history", slog.Any("error", err))
			return models.ErrInternalServer
		}
		if hist := s.policy.CheckHistory(newDigest, recent); !hist.OK {
			return &models.ValidationError{Reasons: []string{hist.Reason}}
		}
	}

	return nil
}

// persistNewDigest writes the digest and appends the history entry. The
// salt is untouched: it is fixed for the credential's lifetime.
func (s *AuthService) persistNewDigest(ctx context.Context, credentialID, digest string) error {
	if err := s.store.UpdatePassword(ctx, credentialID, digest); err != nil {
		s.logger.Error("failed to update password",
			slog.String("credential_id", credentialID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.store.AddPasswordHistory(ctx, credentialID, digest); err != nil {
		s.logger.Error("failed to append password history",
			slog.String("credential_id", credentialID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	return nil
}

func credentialToResponse(cred *models.Credential) *CredentialResponse {
	return &CredentialResponse{
		ID:        cred.ID,
		Username:  cred.Username,
		Email:     cred.Email,
		CreatedAt: cred.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
