package dto

import (
	"time"

	"loan-engine/internal/domain/customer"
	"loan-engine/internal/pkg/apperrors"
)

type CreateCustomerRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address"`
}

func (r *CreateCustomerRequest) ToDomain() customer.CreateCustomerRequest {
	return customer.CreateCustomerRequest{
		Name:    r.Name,
		Email:   r.Email,
		Phone:   r.Phone,
		Address: r.Address,
	}
}

type UpdateCustomerAddressRequest struct {
	Address string `json:"address"`
}

func (r *UpdateCustomerAddressRequest) Validate() error {
	if r.Address == "" {
		return apperrors.NewValidationError("address", "cannot be empty")
	}
	return nil
}

type CustomerResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func NewCustomerResponse(c *customer.Customer) CustomerResponse {
	if c == nil {
		return CustomerResponse{}
	}
	return CustomerResponse{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		Address:   c.Address,
		Active:    c.Active,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func NewCustomerListResponse(customers []*customer.Customer) []CustomerResponse {
	resp := make([]CustomerResponse, 0, len(customers))
	for _, c := range customers {
		resp = append(resp, NewCustomerResponse(c))
	}
	return resp
}
