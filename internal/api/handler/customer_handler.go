package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"loan-engine/internal/api/handler/dto"
	"loan-engine/internal/domain/customer"
	"loan-engine/internal/pkg/apperrors"
)

type CustomerHandler struct {
	service customer.CustomerService
	logger  *slog.Logger
}

func NewCustomerHandler(s customer.CustomerService, l *slog.Logger) *CustomerHandler {
	if s == nil {
		panic("customer service cannot be nil")
	}
	if l == nil {
		panic("logger cannot be nil")
	}
	return &CustomerHandler{
		service: s,
		logger:  l.With("component", "CustomerHandler"),
	}
}

// CreateCustomer handles POST /customers
// @Summary Create a new customer
// @Description Creates a customer record. Email is optional but must be unique when given.
// @Tags Customers
// @Accept json
// @Produce json
// @Param request body dto.CreateCustomerRequest true "Customer creation request"
// @Success 201 {object} dto.CustomerResponse "Customer successfully created"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload"
// @Failure 409 {object} dto.ErrorResponse "Email already registered"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /customers [post]
// @Security BearerAuth
func (h *CustomerHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateCustomerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request body", slog.Any("error", err))
		respondError(w, err)
		return
	}

	created, err := h.service.CreateCustomer(r.Context(), req.ToDomain())
	if err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Service failed to create customer", slog.Any("error", err))
		respondError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Customer created", slog.Int64("customerID", created.ID))
	respondJSON(w, http.StatusCreated, dto.NewCustomerResponse(created))
}

// GetCustomer handles GET /customers/{customerID}
// @Summary Retrieve customer details
// @Tags Customers
// @Produce json
// @Param customerID path int true "Customer ID" Minimum(1)
// @Success 200 {object} dto.CustomerResponse "Customer details retrieved"
// @Failure 400 {object} dto.ErrorResponse "Invalid customer ID format"
// @Failure 404 {object} dto.ErrorResponse "Customer not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /customers/{customerID} [get]
// @Security BearerAuth
func (h *CustomerHandler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	customerID, err := idFromURL(r, "customerID")
	if err != nil {
		respondError(w, err)
		return
	}

	c, err := h.service.GetCustomer(r.Context(), customerID)
	if err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Service failed to get customer", slog.Int64("customerID", customerID), slog.Any("error", err))
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewCustomerResponse(c))
}

// ListCustomers handles GET /customers
// @Summary List customers
// @Description Lists customers, active ones only unless active=false is given.
// @Tags Customers
// @Produce json
// @Param active query bool false "Only active customers (default true)"
// @Success 200 {array} dto.CustomerResponse "List of customers"
// @Failure 400 {object} dto.ErrorResponse "Invalid query parameter"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /customers [get]
// @Security BearerAuth
func (h *CustomerHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	activeOnly := true
	if raw := r.URL.Query().Get("active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(w, apperrors.NewValidationError("active", "must be true or false"))
			return
		}
		activeOnly = v
	}

	customers, err := h.service.ListCustomers(r.Context(), activeOnly)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Service failed to list customers", slog.Any("error", err))
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewCustomerListResponse(customers))
}

// UpdateCustomerAddress handles PUT /customers/{customerID}/address
// @Summary Update customer address
// @Tags Customers
// @Accept json
// @Produce json
// @Param customerID path int true "Customer ID" Minimum(1)
// @Param request body dto.UpdateCustomerAddressRequest true "New address payload"
// @Success 204 "Address successfully updated"
// @Failure 400 {object} dto.ErrorResponse "Invalid customer ID or request payload"
// @Failure 404 {object} dto.ErrorResponse "Customer not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /customers/{customerID}/address [put]
// @Security BearerAuth
func (h *CustomerHandler) UpdateCustomerAddress(w http.ResponseWriter, r *http.Request) {
	customerID, err := idFromURL(r, "customerID")
	if err != nil {
		respondError(w, err)
		return
	}

	var req dto.UpdateCustomerAddressRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, err)
		return
	}

	if err := h.service.UpdateCustomerAddress(r.Context(), customerID, req.Address); err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Service failed to update address", slog.Int64("customerID", customerID), slog.Any("error", err))
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeactivateCustomer handles DELETE /customers/{customerID}
// @Summary Deactivate a customer
// @Description Marks a customer inactive. Fails while the customer has loans that are not closed.
// @Tags Customers
// @Produce json
// @Param customerID path int true "Customer ID" Minimum(1)
// @Success 204 "Customer successfully deactivated"
// @Failure 400 {object} dto.ErrorResponse "Invalid customer ID"
// @Failure 404 {object} dto.ErrorResponse "Customer not found"
// @Failure 409 {object} dto.ErrorResponse "Customer has open loans"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /customers/{customerID} [delete]
// @Security BearerAuth
func (h *CustomerHandler) DeactivateCustomer(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

// ReactivateCustomer handles PUT /customers/{customerID}/reactivate
// @Summary Reactivate a customer
// @Tags Customers
// @Produce json
// @Param customerID path int true "Customer ID" Minimum(1)
// @Success 204 "Customer successfully reactivated"
// @Failure 400 {object} dto.ErrorResponse "Invalid customer ID"
// @Failure 404 {object} dto.ErrorResponse "Customer not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /customers/{customerID}/reactivate [put]
// @Security BearerAuth
func (h *CustomerHandler) ReactivateCustomer(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *CustomerHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	customerID, err := idFromURL(r, "customerID")
	if err != nil {
		respondError(w, err)
		return
	}

	if active {
		err = h.service.ReactivateCustomer(r.Context(), customerID)
	} else {
		err = h.service.DeactivateCustomer(r.Context(), customerID)
	}
	if err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Service failed to change customer status",
			slog.Int64("customerID", customerID), slog.Bool("active", active), slog.Any("error", err))
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
