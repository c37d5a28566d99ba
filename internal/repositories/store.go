package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/comunication-ltd/credcore/internal/config"
	"github.com/comunication-ltd/credcore/internal/database"
	"github.com/comunication-ltd/credcore/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// CredentialStore is the persistence boundary for credentials, password
// history, reset tokens, and customer records. Two query-construction
// strategies implement it with byte-for-byte identical signatures; the
// strategy is fixed at construction by the store mode flag.
type CredentialStore interface {
	FindByUsername(ctx context.Context, username string) (*models.Credential, error)
	FindByEmail(ctx context.Context, email string) (*models.Credential, error)
	FindByID(ctx context.Context, id string) (*models.Credential, error)
	CreateCredential(ctx context.Context, cred *models.Credential) (*models.Credential, error)

	// UpdatePassword replaces the digest only; the salt is fixed for the
	// lifetime of the credential.
	UpdatePassword(ctx context.Context, credentialID, digest string) error

	AddPasswordHistory(ctx context.Context, credentialID, digest string) error
	// GetRecentHistory returns up to limit digests, newest first.
	GetRecentHistory(ctx context.Context, credentialID string, limit int) ([]string, error)

	// IncrementFailedAttempts bumps the failure counter in a single atomic
	// statement; crossing threshold sets the lock expiry to now + window.
	IncrementFailedAttempts(ctx context.Context, username string, threshold int, window time.Duration) error
	ResetFailedAttempts(ctx context.Context, username string) error

	CreateResetToken(ctx context.Context, credentialID, token string, expiresAt time.Time) (*models.ResetToken, error)
	// FindLiveResetToken matches only tokens that are unused and unexpired.
	FindLiveResetToken(ctx context.Context, token string) (*models.ResetToken, error)
	// FindResetToken matches the token regardless of state, for error
	// classification.
	FindResetToken(ctx context.Context, token string) (*models.ResetToken, error)
	// MarkResetTokenUsed claims the token; returns ErrNotFound when it was
	// already used or never existed, so concurrent redeemers cannot both win.
	MarkResetTokenUsed(ctx context.Context, token string) error

	DeleteExpiredResetTokens(ctx context.Context) (int64, error)

	CreateCustomer(ctx context.Context, customer *models.Customer) (*models.Customer, error)
	ListCustomers(ctx context.Context) ([]*models.Customer, error)
}

// Querier is the subset of pgxpool.Pool the store strategies need. The seam
// exists so query construction is testable without a live server.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// NewPostgresStore builds a CredentialStore over the pool, selecting the
// query-construction strategy once from mode.
func NewPostgresStore(db *database.DB, mode string, logger *slog.Logger) (CredentialStore, error) {
	switch mode {
	case config.StoreModeSecure:
		return newSecureStore(db.Pool), nil
	case config.StoreModeVulnerable:
		logger.Warn("credential store running in vulnerable query mode",
			slog.String("mode", mode))
		return newVulnerableStore(db.Pool, logger), nil
	default:
		return nil, fmt.Errorf("unknown store mode: %q", mode)
	}
}
