package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/comunication-ltd/credcore/internal/database"
	"github.com/comunication-ltd/credcore/internal/models"
	"github.com/google/uuid"
)

// vulnerableStore intentionally reproduces an injection weakness for
// demonstration and regression testing: operations that take user-supplied
// strings interpolate them straight into the query text with no escaping.
// Every other operation is inherited from the secure strategy, so the two
// expose identical signatures and return shapes.
//
// Never select this strategy outside a demonstration environment; config
// refuses it in production.
type vulnerableStore struct {
	*secureStore
	logger *slog.Logger
}

func newVulnerableStore(q Querier, logger *slog.Logger) *vulnerableStore {
	return &vulnerableStore{
		secureStore: newSecureStore(q),
		logger:      logger,
	}
}

// logQuery mirrors the demonstration rig: interpolated SQL is logged so the
// injected structure is visible.
func (s *vulnerableStore) logQuery(op, query string) {
	s.logger.Warn("executing interpolated query",
		slog.String("op", op),
		slog.String("sql", query))
}

func (s *vulnerableStore) FindByUsername(ctx context.Context, username string) (*models.Credential, error) {
	query := fmt.Sprintf(
		`SELECT `+credentialColumns+` FROM credentials WHERE username = '%s'`,
		username,
	)
	s.logQuery("FindByUsername", query)

	return scanCredentialRow(s.q.QueryRow(ctx, query))
}

func (s *vulnerableStore) FindByEmail(ctx context.Context, email string) (*models.Credential, error) {
	query := fmt.Sprintf(
		`SELECT `+credentialColumns+` FROM credentials WHERE email = '%s'`,
		email,
	)
	s.logQuery("FindByEmail", query)

	return scanCredentialRow(s.q.QueryRow(ctx, query))
}

func (s *vulnerableStore) CreateCredential(ctx context.Context, cred *models.Credential) (*models.Credential, error) {
	cred.ID = uuid.New().String()
	cred.CreatedAt = time.Now()

	query := fmt.Sprintf(
		`INSERT INTO credentials (id, username, email, password_digest, salt, failed_attempts, created_at)
		 VALUES ('%s', '%s', '%s', '%s', '%s', 0, NOW())
		 RETURNING `+credentialColumns,
		cred.ID, cred.Username, cred.Email, cred.PasswordDigest, cred.Salt,
	)
	s.logQuery("CreateCredential", query)

	return scanCredentialRow(s.q.QueryRow(ctx, query))
}

func (s *vulnerableStore) CreateCustomer(ctx context.Context, customer *models.Customer) (*models.Customer, error) {
	customer.ID = uuid.New().String()
	customer.CreatedAt = time.Now()

	email := ""
	if customer.Email != nil {
		email = *customer.Email
	}
	phone := ""
	if customer.Phone != nil {
		phone = *customer.Phone
	}

	query := fmt.Sprintf(
		`INSERT INTO customers (id, name, email, phone, created_at)
		 VALUES ('%s', '%s', '%s', '%s', NOW())
		 RETURNING id, name, email, phone, created_at`,
		customer.ID, customer.Name, email, phone,
	)
	s.logQuery("CreateCustomer", query)

	var c models.Customer
	err := s.q.QueryRow(ctx, query).Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &c, nil
}
