package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/comunication-ltd/credcore/internal/models"
	"github.com/comunication-ltd/credcore/internal/services"
)

// NewTestRequest creates an HTTP request with a JSON body for testing.
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// MockAuthService implements AuthServiceInterface with function fields so
// tests can script each flow.
type MockAuthService struct {
	RegisterFunc       func(ctx context.Context, username, email, password, ipAddress string) (*services.CredentialResponse, error)
	LoginFunc          func(ctx context.Context, username, password, ipAddress string) (*services.LoginResponse, error)
	ChangePasswordFunc func(ctx context.Context, credentialID, oldPassword, newPassword, ipAddress string) error
	ForgotPasswordFunc func(ctx context.Context, email, ipAddress string) error
	ResetPasswordFunc  func(ctx context.Context, token, newPassword, ipAddress string) error
}

func (m *MockAuthService) Register(ctx context.Context, username, email, password, ipAddress string) (*services.CredentialResponse, error) {
	return m.RegisterFunc(ctx, username, email, password, ipAddress)
}

func (m *MockAuthService) Login(ctx context.Context, username, password, ipAddress string) (*services.LoginResponse, error) {
	return m.LoginFunc(ctx, username, password, ipAddress)
}

func (m *MockAuthService) ChangePassword(ctx context.Context, credentialID, oldPassword, newPassword, ipAddress string) error {
	return m.ChangePasswordFunc(ctx, credentialID, oldPassword, newPassword, ipAddress)
}

func (m *MockAuthService) ForgotPassword(ctx context.Context, email, ipAddress string) error {
	return m.ForgotPasswordFunc(ctx, email, ipAddress)
}

func (m *MockAuthService) ResetPassword(ctx context.Context, token, newPassword, ipAddress string) error {
	return m.ResetPasswordFunc(ctx, token, newPassword, ipAddress)
}

// MockCustomerService implements CustomerServiceInterface.
type MockCustomerService struct {
	AddCustomerFunc   func(ctx context.Context, name string, email, phone *string) (*models.Customer, error)
	ListCustomersFunc func(ctx context.Context) ([]*models.Customer, error)
}

func (m *MockCustomerService) AddCustomer(ctx context.Context, name string, email, phone *string) (*models.Customer, error) {
	return m.AddCustomerFunc(ctx, name, email, phone)
}

func (m *MockCustomerService) ListCustomers(ctx context.Context) ([]*models.Customer, error) {
	return m.ListCustomersFunc(ctx)
}
