package handler_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"loan-engine/internal/api/handler"
	"loan-engine/internal/api/handler/dto"
	"loan-engine/internal/domain/customer"
	"loan-engine/internal/pkg/apperrors"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func customerRouter(svc customer.CustomerService) http.Handler {
	h := handler.NewCustomerHandler(svc, testLogger())
	r := chi.NewRouter()
	r.Post("/customers", h.CreateCustomer)
	r.Get("/customers", h.ListCustomers)
	r.Get("/customers/{customerID}", h.GetCustomer)
	r.Put("/customers/{customerID}/address", h.UpdateCustomerAddress)
	r.Delete("/customers/{customerID}", h.DeactivateCustomer)
	r.Put("/customers/{customerID}/reactivate", h.ReactivateCustomer)
	return r
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) dto.ErrorDetail {
	t.Helper()
	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func sampleCustomer() *customer.Customer {
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	return &customer.Customer{
		ID:        4,
		Name:      "Ada Obi",
		Email:     "ada@example.com",
		Address:   "12 Marina Rd",
		Active:    true,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestCreateCustomer(t *testing.T) {
	svc := new(MockCustomerService)
	svc.On("CreateCustomer", mock.Anything, customer.CreateCustomerRequest{
		Name: "Ada Obi", Email: "ada@example.com", Address: "12 Marina Rd",
	}).Return(sampleCustomer(), nil)

	rec := do(customerRouter(svc), http.MethodPost, "/customers",
		`{"name":"Ada Obi","email":"ada@example.com","address":"12 Marina Rd"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp dto.CustomerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(4), resp.ID)
	assert.True(t, resp.Active)
	svc.AssertExpectations(t)
}

func TestCreateCustomerErrors(t *testing.T) {
	t.Run("unknown field is rejected", func(t *testing.T) {
		svc := new(MockCustomerService)
		rec := do(customerRouter(svc), http.MethodPost, "/customers", `{"name":"x","address":"y","loanId":3}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "CreateCustomer", mock.Anything, mock.Anything)
	})

	t.Run("empty body", func(t *testing.T) {
		rec := do(customerRouter(new(MockCustomerService)), http.MethodPost, "/customers", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("validation error carries field", func(t *testing.T) {
		svc := new(MockCustomerService)
		svc.On("CreateCustomer", mock.Anything, mock.Anything).
			Return(nil, customer.CreateCustomerRequest{Name: "x"}.Validate())

		rec := do(customerRouter(svc), http.MethodPost, "/customers", `{"name":"x","address":""}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "address", decodeError(t, rec).Field)
	})

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		svc := new(MockCustomerService)
		svc.On("CreateCustomer", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("%w: customers_email_key", apperrors.ErrAlreadyExists))

		rec := do(customerRouter(svc), http.MethodPost, "/customers", `{"name":"x","address":"y"}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestGetCustomer(t *testing.T) {
	svc := new(MockCustomerService)
	svc.On("GetCustomer", mock.Anything, int64(4)).Return(sampleCustomer(), nil)
	svc.On("GetCustomer", mock.Anything, int64(9)).Return(nil, customer.ErrNotFound)
	svc.On("GetCustomer", mock.Anything, int64(10)).Return(nil, errors.New("db gone"))
	router := customerRouter(svc)

	rec := do(router, http.MethodGet, "/customers/4", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Ada Obi"`)

	assert.Equal(t, http.StatusNotFound, do(router, http.MethodGet, "/customers/9", "").Code)

	rec = do(router, http.MethodGet, "/customers/10", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "An unexpected error occurred.", decodeError(t, rec).Message, "internal details are not leaked")

	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodGet, "/customers/abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodGet, "/customers/-1", "").Code)
}

func TestListCustomers(t *testing.T) {
	svc := new(MockCustomerService)
	svc.On("ListCustomers", mock.Anything, true).Return([]*customer.Customer{sampleCustomer()}, nil)
	svc.On("ListCustomers", mock.Anything, false).Return([]*customer.Customer{}, nil)
	router := customerRouter(svc)

	rec := do(router, http.MethodGet, "/customers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []dto.CustomerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = do(router, http.MethodGet, "/customers?active=false", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(router, http.MethodGet, "/customers?active=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "active", decodeError(t, rec).Field)
}

func TestUpdateCustomerAddress(t *testing.T) {
	svc := new(MockCustomerService)
	svc.On("UpdateCustomerAddress", mock.Anything, int64(4), "1 New St").Return(nil)
	router := customerRouter(svc)

	assert.Equal(t, http.StatusNoContent, do(router, http.MethodPut, "/customers/4/address", `{"address":"1 New St"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodPut, "/customers/4/address", `{"address":""}`).Code)
	svc.AssertNumberOfCalls(t, "UpdateCustomerAddress", 1)
}

func TestDeactivateAndReactivateCustomer(t *testing.T) {
	svc := new(MockCustomerService)
	svc.On("DeactivateCustomer", mock.Anything, int64(4)).Return(customer.ErrCannotDeactivateOpenLoans)
	svc.On("DeactivateCustomer", mock.Anything, int64(5)).Return(nil)
	svc.On("ReactivateCustomer", mock.Anything, int64(5)).Return(nil)
	router := customerRouter(svc)

	assert.Equal(t, http.StatusConflict, do(router, http.MethodDelete, "/customers/4", "").Code)
	assert.Equal(t, http.StatusNoContent, do(router, http.MethodDelete, "/customers/5", "").Code)
	assert.Equal(t, http.StatusNoContent, do(router, http.MethodPut, "/customers/5/reactivate", "").Code)
	svc.AssertExpectations(t)
}
