package customer

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"loan-engine/internal/pkg/apperrors"
)

type Customer struct {
	ID        int64
	Name      string
	Email     string
	Phone     string
	Address   string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CreateCustomerRequest struct {
	Name    string
	Email   string
	Phone   string
	Address string
}

func (r CreateCustomerRequest) normalize() CreateCustomerRequest {
	return CreateCustomerRequest{
		Name:    strings.TrimSpace(r.Name),
		Email:   strings.ToLower(strings.TrimSpace(r.Email)),
		Phone:   strings.TrimSpace(r.Phone),
		Address: strings.TrimSpace(r.Address),
	}
}

func (r CreateCustomerRequest) Validate() error {
	if r.Name == "" {
		return apperrors.NewValidationError("name", "cannot be empty")
	}
	if r.Address == "" {
		return apperrors.NewValidationError("address", "cannot be empty")
	}
	if r.Email != "" {
		if _, err := mail.ParseAddress(r.Email); err != nil {
			return apperrors.NewValidationError("email", fmt.Sprintf("%q is not a valid address", r.Email))
		}
	}
	return nil
}

func NewCustomer(req CreateCustomerRequest) *Customer {
	now := time.Now()
	return &Customer{
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Address:   req.Address,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (c *Customer) Deactivate() {
	if c.Active {
		c.Active = false
		c.UpdatedAt = time.Now()
	}
}

func (c *Customer) Reactivate() {
	if !c.Active {
		c.Active = true
		c.UpdatedAt = time.Now()
	}
}
