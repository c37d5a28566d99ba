package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/comunication-ltd/credcore/internal/auth"
	"github.com/comunication-ltd/credcore/internal/config"
	"github.com/comunication-ltd/credcore/internal/lockout"
	"github.com/comunication-ltd/credcore/internal/policy"
	"github.com/comunication-ltd/credcore/internal/repositories"
	pkglogger "github.com/comunication-ltd/credcore/pkg/logger"
)

// MockEmailService records sent reset tokens instead of delivering them.
type MockEmailService struct {
	mu         sync.Mutex
	SendFunc   func(ctx context.Context, email, token string) error
	SentEmails []string
	SentTokens []string
}

func (m *MockEmailService) SendResetToken(ctx context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendFunc != nil {
		if err := m.SendFunc(ctx, email, token); err != nil {
			return err
		}
	}
	m.SentEmails = append(m.SentEmails, email)
	m.SentTokens = append(m.SentTokens, token)
	return nil
}

// LastToken returns the most recently sent token, or "".
func (m *MockEmailService) LastToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.SentTokens) == 0 {
		return ""
	}
	return m.SentTokens[len(m.SentTokens)-1]
}

func testSecurityConfig() config.SecurityConfig {
	return config.SecurityConfig{
		MinLength:        10,
		RequireUpper:     true,
		RequireLower:     true,
		RequireDigit:     true,
		RequireSymbol:    true,
		HistoryCount:     3,
		LockoutThreshold: 3,
		LockoutWindow:    15 * time.Minute,
		ResetTokenTTL:    15 * time.Minute,
	}
}

// testFixture wires an AuthService over an in-memory store with delivery
// mocked out.
type testFixture struct {
	svc   *AuthService
	store *repositories.MemoryStore
	email *MockEmailService
	guard *lockout.Guard
}

// advanceClock moves both the store's and the guard's notion of now.
func (f *testFixture) advanceClock(d time.Duration) {
	f.store.Now = func() time.Time { return time.Now().Add(d) }
	f.guard.Now = func() time.Time { return time.Now().Add(d) }
}

func newTestFixture() *testFixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testSecurityConfig()

	store := repositories.NewMemoryStore()
	email := &MockEmailService{}
	engine := policy.NewEngine(cfg, logger)
	guard := lockout.NewGuard(store, cfg, logger)
	resets := NewResetTokenManager(store, cfg.ResetTokenTTL, logger)
	tm := auth.NewTokenManager("test-secret-key", 15*time.Minute)
	timing := auth.NewTimingDelay(auth.TimingConfig{})
	audit := pkglogger.NewAuditLogger(logger)

	svc := NewAuthService(store, engine, guard, resets, email, tm, timing, logger, audit, cfg)
	return &testFixture{svc: svc, store: store, email: email, guard: guard}
}
