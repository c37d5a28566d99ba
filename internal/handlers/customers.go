package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/comunication-ltd/credcore/internal/models"
	pkghttp "github.com/comunication-ltd/credcore/pkg/http"
)

// CustomerServiceInterface defines the interface for customer records.
type CustomerServiceInterface interface {
	AddCustomer(ctx context.Context, name string, email, phone *string) (*models.Customer, error)
	ListCustomers(ctx context.Context) ([]*models.Customer, error)
}

// CustomerHandler handles customer record HTTP requests.
type CustomerHandler struct {
	service CustomerServiceInterface
}

func NewCustomerHandler(service CustomerServiceInterface) *CustomerHandler {
	return &CustomerHandler{
		service: service,
	}
}

type CreateCustomerRequest struct {
	Name  string  `json:"name" validate:"required,min=1,max=128"`
	Email *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone *string `json:"phone,omitempty" validate:"omitempty,max=32"`
}

// Create adds a customer record.
func (h *CustomerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	customer, err := h.service.AddCustomer(r.Context(), req.Name, req.Email, req.Phone)
	if err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteBadRequest(w, "Invalid request")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, customer)
}

// List returns customer records, newest first.
func (h *CustomerHandler) List(w http.ResponseWriter, r *http.Request) {
	customers, err := h.service.ListCustomers(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"customers": customers,
	})
}
