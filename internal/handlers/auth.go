package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/comunication-ltd/credcore/internal/auth"
	"github.com/comunication-ltd/credcore/internal/models"
	"github.com/comunication-ltd/credcore/internal/services"
	pkghttp "github.com/comunication-ltd/credcore/pkg/http"
)

// AuthServiceInterface defines the interface for the credential flows.
type AuthServiceInterface interface {
	Register(ctx context.Context, username, email, password, ipAddress string) (*services.CredentialResponse, error)
	Login(ctx context.Context, username, password, ipAddress string) (*services.LoginResponse, error)
	ChangePassword(ctx context.Context, credentialID, oldPassword, newPassword, ipAddress string) error
	ForgotPassword(ctx context.Context, email, ipAddress string) error
	ResetPassword(ctx context.Context, token, newPassword, ipAddress string) error
}

// AuthHandler handles authentication-related HTTP requests.
type AuthHandler struct {
	service  AuthServiceInterface
	ipConfig *pkghttp.IPConfig
}

func NewAuthHandler(service AuthServiceInterface, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		ipConfig: ipConfig,
	}
}

// Request DTOs

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required,len=40"`
	NewPassword string `json:"new_password" validate:"required"`
}

// Register handles credential registration. Uniqueness conflicts disclose
// which field collided; that tradeoff is accepted for this flow.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)

	cred, err := h.service.Register(r.Context(), req.Username, req.Email, req.Password, ipAddress)
	if err != nil {
		var ve *models.ValidationError
		switch {
		case errors.As(err, &ve):
			pkghttp.WriteBadRequest(w, ve.Error())
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, err.Error())
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Invalid request")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, cred)
}

// Login authenticates a credential and returns an access token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)

	resp, err := h.service.Login(r.Context(), req.Username, req.Password, ipAddress)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidCredentials):
			pkghttp.WriteUnauthorized(w, "Invalid username or password")
		case errors.Is(err, models.ErrAccountLocked):
			pkghttp.WriteLocked(w, "Account is temporarily locked. Please try again later.")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// ChangePassword rotates the authenticated credential's password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)

	err := h.service.ChangePassword(r.Context(), claims.CredentialID, req.OldPassword, req.NewPassword, ipAddress)
	if err != nil {
		var ve *models.ValidationError
		switch {
		case errors.As(err, &ve):
			pkghttp.WriteBadRequest(w, ve.Error())
		case errors.Is(err, models.ErrInvalidCredentials):
			pkghttp.WriteUnauthorized(w, "Invalid username or password")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteUnauthorized(w, "Authentication required")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Password changed successfully",
	})
}

// ForgotPassword issues a reset token and delivers it by email.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)

	if err := h.service.ForgotPassword(r.Context(), req.Email, ipAddress); err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Email not registered")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Reset token sent",
	})
}

// ResetPassword redeems a token and sets a new password. Every token
// failure renders the same message so callers cannot probe token state.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)

	if err := h.service.ResetPassword(r.Context(), req.Token, req.NewPassword, ipAddress); err != nil {
		var ve *models.ValidationError
		switch {
		case errors.As(err, &ve):
			pkghttp.WriteBadRequest(w, ve.Error())
		default:
			if _, ok := models.AsTokenError(err); ok {
				pkghttp.WriteBadRequest(w, "Invalid or expired reset token")
				return
			}
			if errors.Is(err, models.ErrNotFound) {
				pkghttp.WriteBadRequest(w, "Invalid or expired reset token")
				return
			}
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Password reset successfully",
	})
}
