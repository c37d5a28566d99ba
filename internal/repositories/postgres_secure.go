package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/comunication-ltd/credcore/internal/database"
	"github.com/comunication-ltd/credcore/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const credentialColumns = "id, username, email, password_digest, salt, failed_attempts, locked_until, created_at"
const resetTokenColumns = "id, credential_id, reset_token, expires_at, used, created_at"

// secureStore binds every user-supplied value as a query parameter.
type secureStore struct {
	q Querier
}

func newSecureStore(q Querier) *secureStore {
	return &secureStore{q: q}
}

// rowScanner supports both single-row and multi-row scans.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCredentialRow(scanner rowScanner) (*models.Credential, error) {
	var cred models.Credential
	var lockedUntil *time.Time

	err := scanner.Scan(
		&cred.ID, &cred.Username, &cred.Email, &cred.PasswordDigest,
		&cred.Salt, &cred.FailedAttempts, &lockedUntil, &cred.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	cred.LockedUntil = lockedUntil
	return &cred, nil
}

func scanResetTokenRow(scanner rowScanner) (*models.ResetToken, error) {
	var token models.ResetToken

	err := scanner.Scan(
		&token.ID, &token.CredentialID, &token.Token,
		&token.ExpiresAt, &token.Used, &token.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &token, nil
}

func scanCustomerRows(rows pgx.Rows) ([]*models.Customer, error) {
	defer rows.Close()

	customers := make([]*models.Customer, 0)

	for rows.Next() {
		var c models.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return customers, nil
}

func (s *secureStore) FindByUsername(ctx context.Context, username string) (*models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE username = $1`
	return scanCredentialRow(s.q.QueryRow(ctx, query, username))
}

func (s *secureStore) FindByEmail(ctx context.Context, email string) (*models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE email = $1`
	return scanCredentialRow(s.q.QueryRow(ctx, query, email))
}

func (s *secureStore) FindByID(ctx context.Context, id string) (*models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE id = $1`
	return scanCredentialRow(s.q.QueryRow(ctx, query, id))
}

func (s *secureStore) CreateCredential(ctx context.Context, cred *models.Credential) (*models.Credential, error) {
	cred.ID = uuid.New().String()
	cred.CreatedAt = time.Now()

	query := `
		INSERT INTO credentials (id, username, email, password_digest, salt, failed_attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6)
		RETURNING ` + credentialColumns

	return scanCredentialRow(s.q.QueryRow(ctx, query,
		cred.ID, cred.Username, cred.Email, cred.PasswordDigest, cred.Salt, cred.CreatedAt,
	))
}

func (s *secureStore) UpdatePassword(ctx context.Context, credentialID, digest string) error {
	query := `UPDATE credentials SET password_digest = $1 WHERE id = $2`

	result, err := s.q.Exec(ctx, query, digest, credentialID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *secureStore) AddPasswordHistory(ctx context.Context, credentialID, digest string) error {
	query := `
		INSERT INTO password_history (id, credential_id, password_digest, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := s.q.Exec(ctx, query, uuid.New().String(), credentialID, digest, time.Now())
	return database.MapPostgresError(err)
}

func (s *secureStore) GetRecentHistory(ctx context.Context, credentialID string, limit int) ([]string, error) {
	query := `
		SELECT password_digest FROM password_history
		WHERE credential_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.q.Query(ctx, query, credentialID, limit)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	digests := make([]string, 0, limit)
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		digests = append(digests, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return digests, nil
}

func (s *secureStore) IncrementFailedAttempts(ctx context.Context, username string, threshold int, window time.Duration) error {
	// Single statement so concurrent failures never lose an increment.
	// Postgres evaluates SET expressions against the old row, hence +1 in
	// the threshold comparison.
	query := `
		UPDATE credentials SET
			failed_attempts = failed_attempts + 1,
			locked_until = CASE
				WHEN failed_attempts + 1 >= $2 THEN NOW() + make_interval(secs => $3)
				ELSE locked_until
			END
		WHERE username = $1
	`

	result, err := s.q.Exec(ctx, query, username, threshold, window.Seconds())
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *secureStore) ResetFailedAttempts(ctx context.Context, username string) error {
	query := `UPDATE credentials SET failed_attempts = 0, locked_until = NULL WHERE username = $1`

	result, err := s.q.Exec(ctx, query, username)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *secureStore) CreateResetToken(ctx context.Context, credentialID, token string, expiresAt time.Time) (*models.ResetToken, error) {
	query := `
		INSERT INTO password_resets (id, credential_id, reset_token, expires_at, used, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)
		RETURNING ` + resetTokenColumns

	return scanResetTokenRow(s.q.QueryRow(ctx, query,
		uuid.New().String(), credentialID, token, expiresAt, time.Now(),
	))
}

func (s *secureStore) FindLiveResetToken(ctx context.Context, token string) (*models.ResetToken, error) {
	query := `
		SELECT ` + resetTokenColumns + ` FROM password_resets
		WHERE reset_token = $1 AND used = FALSE AND expires_at > NOW()
	`
	return scanResetTokenRow(s.q.QueryRow(ctx, query, token))
}

func (s *secureStore) FindResetToken(ctx context.Context, token string) (*models.ResetToken, error) {
	query := `SELECT ` + resetTokenColumns + ` FROM password_resets WHERE reset_token = $1`
	return scanResetTokenRow(s.q.QueryRow(ctx, query, token))
}

func (s *secureStore) MarkResetTokenUsed(ctx context.Context, token string) error {
	// The used-flag guard makes the claim atomic: of two concurrent
	// redeemers exactly one sees a row affected.
	query := `UPDATE password_resets SET used = TRUE WHERE reset_token = $1 AND used = FALSE`

	result, err := s.q.Exec(ctx, query, token)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *secureStore) DeleteExpiredResetTokens(ctx context.Context) (int64, error) {
	query := `DELETE FROM password_resets WHERE expires_at <= NOW()`

	result, err := s.q.Exec(ctx, query)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}

func (s *secureStore) CreateCustomer(ctx context.Context, customer *models.Customer) (*models.Customer, error) {
	customer.ID = uuid.New().String()
	customer.CreatedAt = time.Now()

	query := `
		INSERT INTO customers (id, name, email, phone, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, name, email, phone, created_at
	`

	var c models.Customer
	err := s.q.QueryRow(ctx, query,
		customer.ID, customer.Name, customer.Email, customer.Phone, customer.CreatedAt,
	).Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &c, nil
}

func (s *secureStore) ListCustomers(ctx context.Context) ([]*models.Customer, error) {
	query := `SELECT id, name, email, phone, created_at FROM customers ORDER BY created_at DESC`

	rows, err := s.q.Query(ctx, query)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return scanCustomerRows(rows)
}
