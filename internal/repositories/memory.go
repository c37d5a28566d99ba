package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/comunication-ltd/credcore/internal/models"
	"github.com/google/uuid"
)

// MemoryStore is an in-process CredentialStore for development and tests.
// All access is serialized by a single mutex, which satisfies the
// per-entity atomicity the counter and token updates require.
type MemoryStore struct {
	mu sync.Mutex

	credentials map[string]*models.Credential // by id
	history     []*models.PasswordHistoryEntry
	resets      map[string]*models.ResetToken // by token value
	customers   []*models.Customer

	// Now is the clock; tests override it to move through lockout and
	// expiry windows.
	Now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		credentials: make(map[string]*models.Credential),
		resets:      make(map[string]*models.ResetToken),
		Now:         time.Now,
	}
}

func copyCredential(c *models.Credential) *models.Credential {
	dup := *c
	if c.LockedUntil != nil {
		t := *c.LockedUntil
		dup.LockedUntil = &t
	}
	return &dup
}

func (s *MemoryStore) findByUsernameLocked(username string) *models.Credential {
	for _, c := range s.credentials {
		if c.Username == username {
			return c
		}
	}
	return nil
}

func (s *MemoryStore) FindByUsername(ctx context.Context, username string) (*models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c := s.findByUsernameLocked(username); c != nil {
		return copyCredential(c), nil
	}
	return nil, models.ErrNotFound
}

func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (*models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.credentials {
		if c.Email == email {
			return copyCredential(c), nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *MemoryStore) FindByID(ctx context.Context, id string) (*models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.credentials[id]; ok {
		return copyCredential(c), nil
	}
	return nil, models.ErrNotFound
}

func (s *MemoryStore) CreateCredential(ctx context.Context, cred *models.Credential) (*models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.credentials {
		if c.Username == cred.Username || c.Email == cred.Email {
			return nil, models.ErrConflict
		}
	}

	stored := copyCredential(cred)
	stored.ID = uuid.New().String()
	stored.FailedAttempts = 0
	stored.LockedUntil = nil
	stored.CreatedAt = s.Now()

	s.credentials[stored.ID] = stored
	return copyCredential(stored), nil
}

func (s *MemoryStore) UpdatePassword(ctx context.Context, credentialID, digest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.credentials[credentialID]
	if !ok {
		return models.ErrNotFound
	}
	c.PasswordDigest = digest
	return nil
}

func (s *MemoryStore) AddPasswordHistory(ctx context.Context, credentialID, digest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, &models.PasswordHistoryEntry{
		ID:             uuid.New().String(),
		CredentialID:   credentialID,
		PasswordDigest: digest,
		CreatedAt:      s.Now(),
	})
	return nil
}

func (s *MemoryStore) GetRecentHistory(ctx context.Context, credentialID string, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]*models.PasswordHistoryEntry, 0)
	for _, e := range s.history {
		if e.CredentialID == credentialID {
			entries = append(entries, e)
		}
	}

	// Newest first; insertion order breaks creation-time ties.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})

	digests := make([]string, 0, limit)
	for _, e := range entries {
		if len(digests) == limit {
			break
		}
		digests = append(digests, e.PasswordDigest)
	}
	return digests, nil
}

func (s *MemoryStore) IncrementFailedAttempts(ctx context.Context, username string, threshold int, window time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.findByUsernameLocked(username)
	if c == nil {
		return models.ErrNotFound
	}

	c.FailedAttempts++
	if c.FailedAttempts >= threshold {
		until := s.Now().Add(window)
		c.LockedUntil = &until
	}
	return nil
}

func (s *MemoryStore) ResetFailedAttempts(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.findByUsernameLocked(username)
	if c == nil {
		return models.ErrNotFound
	}

	c.FailedAttempts = 0
	c.LockedUntil = nil
	return nil
}

func (s *MemoryStore) CreateResetToken(ctx context.Context, credentialID, token string, expiresAt time.Time) (*models.ResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &models.ResetToken{
		ID:           uuid.New().String(),
		CredentialID: credentialID,
		Token:        token,
		ExpiresAt:    expiresAt,
		Used:         false,
		CreatedAt:    s.Now(),
	}
	s.resets[token] = rec

	dup := *rec
	return &dup, nil
}

func (s *MemoryStore) FindLiveResetToken(ctx context.Context, token string) (*models.ResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.resets[token]
	if !ok || rec.Used || !s.Now().Before(rec.ExpiresAt) {
		return nil, models.ErrNotFound
	}

	dup := *rec
	return &dup, nil
}

func (s *MemoryStore) FindResetToken(ctx context.Context, token string) (*models.ResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.resets[token]
	if !ok {
		return nil, models.ErrNotFound
	}

	dup := *rec
	return &dup, nil
}

func (s *MemoryStore) MarkResetTokenUsed(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.resets[token]
	if !ok || rec.Used {
		return models.ErrNotFound
	}

	rec.Used = true
	return nil
}

func (s *MemoryStore) DeleteExpiredResetTokens(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	now := s.Now()
	for token, rec := range s.resets {
		if !now.Before(rec.ExpiresAt) {
			delete(s.resets, token)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStore) CreateCustomer(ctx context.Context, customer *models.Customer) (*models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *customer
	stored.ID = uuid.New().String()
	stored.CreatedAt = s.Now()
	s.customers = append(s.customers, &stored)

	dup := stored
	return &dup, nil
}

func (s *MemoryStore) ListCustomers(ctx context.Context) ([]*models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Customer, 0, len(s.customers))
	for i := len(s.customers) - 1; i >= 0; i-- {
		dup := *s.customers[i]
		out = append(out, &dup)
	}
	return out, nil
}
