package handler

import (
	"log/slog"
	"net/http"
	"time"

	"loan-engine/internal/api/handler/dto"
	mw "loan-engine/internal/api/middleware"
	"loan-engine/internal/domain/loan"

	"cloud.google.com/go/civil"
)

type LoanHandler struct {
	service loan.LoanService
	logger  *slog.Logger
	now     func() time.Time
}

func NewLoanHandler(s loan.LoanService, l *slog.Logger) *LoanHandler {
	if s == nil {
		panic("loan service cannot be nil")
	}
	return &LoanHandler{
		service: s,
		logger:  l.With("component", "LoanHandler"),
		now:     time.Now,
	}
}

// PreviewSchedule handles POST /loans/preview
// @Summary Preview a repayment schedule
// @Description Generates the amortization schedule for the given terms without saving anything.
// @Tags Loans
// @Accept json
// @Produce json
// @Param request body dto.LoanTermsRequest true "Loan terms"
// @Success 200 {object} dto.ScheduleResponse "Generated schedule"
// @Failure 400 {object} dto.ErrorResponse "Invalid terms"
// @Router /loans/preview [post]
// @Security BearerAuth
func (h *LoanHandler) PreviewSchedule(w http.ResponseWriter, r *http.Request) {
	var req dto.LoanTermsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err)
		return
	}
	terms, err := req.ToDomain()
	if err != nil {
		respondError(w, err)
		return
	}

	schedule, err := h.service.PreviewSchedule(r.Context(), terms)
	if err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Schedule preview failed", slog.Any("error", err))
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewScheduleResponse(schedule))
}

// CreateLoan handles POST /loans
// @Summary Create a new loan
// @Description Creates a pending loan for an active customer and stores its generated schedule.
// @Tags Loans
// @Accept json
// @Produce json
// @Param request body dto.CreateLoanRequest true "Loan creation request"
// @Success 201 {object} dto.LoanResponse "Loan successfully created"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload or terms"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans [post]
// @Security BearerAuth
func (h *LoanHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateLoanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err)
		return
	}
	domainReq, err := req.ToDomain(mw.Actor(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}

	created, err := h.service.CreateLoan(r.Context(), domainReq)
	if err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Service failed to create loan", slog.Any("error", err))
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, dto.NewLoanResponse(created, true))
}

// GetLoan handles GET /loans/{loanID}
// @Summary Retrieve loan details
// @Description Returns the loan with its balances and delinquency. Add include=schedule for the installments.
// @Tags Loans
// @Produce json
// @Param loanID path int true "Loan ID"
// @Param include query string false "Use 'schedule' to include installments"
// @Success 200 {object} dto.LoanResponse "Loan details"
// @Failure 400 {object} dto.ErrorResponse "Invalid loan ID"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans/{loanID} [get]
// @Security BearerAuth
func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	loanID, err := idFromURL(r, "loanID")
	if err != nil {
		respondError(w, err)
		return
	}

	ln, err := h.service.GetLoan(r.Context(), loanID)
	if err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Service failed to get loan", slog.Int64("loanID", loanID), slog.Any("error", err))
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewLoanResponse(ln, r.URL.Query().Get("include") == "schedule"))
}

// GetSchedule handles GET /loans/{loanID}/schedule
// @Summary Retrieve a loan's repayment schedule
// @Tags Loans
// @Produce json
// @Param loanID path int true "Loan ID"
// @Success 200 {object} dto.ScheduleResponse "Schedule with payment progress"
// @Failure 400 {object} dto.ErrorResponse "Invalid loan ID"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans/{loanID}/schedule [get]
// @Security BearerAuth
func (h *LoanHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	loanID, err := idFromURL(r, "loanID")
	if err != nil {
		respondError(w, err)
		return
	}

	schedule, err := h.service.GetLoanSchedule(r.Context(), loanID)
	if err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Service failed to get schedule", slog.Int64("loanID", loanID), slog.Any("error", err))
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewScheduleResponse(schedule))
}

// DisburseLoan handles POST /loans/{loanID}/disburse
// @Summary Disburse a pending loan
// @Tags Loans
// @Produce json
// @Param loanID path int true "Loan ID"
// @Success 200 {object} dto.LoanResponse "Disbursed loan"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 409 {object} dto.ErrorResponse "Loan is not pending"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans/{loanID}/disburse [post]
// @Security BearerAuth
func (h *LoanHandler) DisburseLoan(w http.ResponseWriter, r *http.Request) {
	loanID, err := idFromURL(r, "loanID")
	if err != nil {
		respondError(w, err)
		return
	}

	ln, err := h.service.DisburseLoan(r.Context(), loanID, mw.Actor(r.Context()))
	if err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Service failed to disburse loan", slog.Int64("loanID", loanID), slog.Any("error", err))
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewLoanResponse(ln, false))
}

// GetBalances handles GET /loans/{loanID}/balances
// @Summary Outstanding balances by bucket
// @Tags Loans
// @Produce json
// @Param loanID path int true "Loan ID"
// @Success 200 {object} dto.BalancesResponse "Outstanding balances"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans/{loanID}/balances [get]
// @Security BearerAuth
func (h *LoanHandler) GetBalances(w http.ResponseWriter, r *http.Request) {
	loanID, err := idFromURL(r, "loanID")
	if err != nil {
		respondError(w, err)
		return
	}

	balances, err := h.service.GetBalances(r.Context(), loanID)
	if err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Service failed to get balances", slog.Int64("loanID", loanID), slog.Any("error", err))
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewBalancesResponse(balances))
}

// AssessCharge handles POST /loans/{loanID}/charges
// @Summary Assess a fee or penalty
// @Tags Loans
// @Accept json
// @Produce json
// @Param loanID path int true "Loan ID"
// @Param request body dto.AssessChargeRequest true "Charge"
// @Success 201 {object} dto.BalancesResponse "Balances after the charge"
// @Failure 400 {object} dto.ErrorResponse "Invalid charge"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 409 {object} dto.ErrorResponse "Loan does not accept charges"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans/{loanID}/charges [post]
// @Security BearerAuth
func (h *LoanHandler) AssessCharge(w http.ResponseWriter, r *http.Request) {
	loanID, err := idFromURL(r, "loanID")
	if err != nil {
		respondError(w, err)
		return
	}

	var req dto.AssessChargeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err)
		return
	}
	charge, err := req.ToDomain()
	if err != nil {
		respondError(w, err)
		return
	}

	balances, err := h.service.AssessCharge(r.Context(), loanID, charge, mw.Actor(r.Context()))
	if err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Service failed to assess charge", slog.Int64("loanID", loanID), slog.Any("error", err))
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, dto.NewBalancesResponse(balances))
}

// RecordPayment handles POST /loans/{loanID}/payments
// @Summary Record a payment
// @Description Allocates the payment penalty, then fees, then interest, then principal. Any excess is reported as unallocated.
// @Tags Loans
// @Accept json
// @Produce json
// @Param loanID path int true "Loan ID"
// @Param Idempotency-Key header string false "Rejects a repeated submission with 409"
// @Param request body dto.RecordPaymentRequest true "Payment"
// @Success 201 {object} dto.PaymentReceiptResponse "Payment receipt"
// @Failure 400 {object} dto.ErrorResponse "Invalid amount or method"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 409 {object} dto.ErrorResponse "Loan closed, not disbursed, or duplicate request"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans/{loanID}/payments [post]
// @Security BearerAuth
func (h *LoanHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	loanID, err := idFromURL(r, "loanID")
	if err != nil {
		respondError(w, err)
		return
	}

	var req dto.RecordPaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err)
		return
	}
	domainReq, err := req.ToDomain(loanID, mw.Actor(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}

	receipt, err := h.service.RecordPayment(r.Context(), domainReq)
	if err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Service failed to record payment", slog.Int64("loanID", loanID), slog.Any("error", err))
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, dto.NewPaymentReceiptResponse(receipt))
}

// ListPayments handles GET /loans/{loanID}/payments
// @Summary List payments on a loan
// @Tags Loans
// @Produce json
// @Param loanID path int true "Loan ID"
// @Success 200 {array} dto.PaymentResponse "Payments, oldest first"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans/{loanID}/payments [get]
// @Security BearerAuth
func (h *LoanHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	loanID, err := idFromURL(r, "loanID")
	if err != nil {
		respondError(w, err)
		return
	}

	payments, err := h.service.ListPayments(r.Context(), loanID)
	if err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Service failed to list payments", slog.Int64("loanID", loanID), slog.Any("error", err))
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewPaymentListResponse(payments))
}

// RefreshDelinquency handles GET /loans/{loanID}/delinquency
// @Summary Current delinquency
// @Description Reclassifies the loan as of today and returns the previous and current state.
// @Tags Loans
// @Produce json
// @Param loanID path int true "Loan ID"
// @Success 200 {object} dto.DelinquencyRefreshResponse "Delinquency state"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans/{loanID}/delinquency [get]
// @Security BearerAuth
func (h *LoanHandler) RefreshDelinquency(w http.ResponseWriter, r *http.Request) {
	loanID, err := idFromURL(r, "loanID")
	if err != nil {
		respondError(w, err)
		return
	}

	asOf := civil.DateOf(h.now().UTC())
	change, err := h.service.RefreshDelinquency(r.Context(), loanID, asOf)
	if err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Service failed to refresh delinquency", slog.Int64("loanID", loanID), slog.Any("error", err))
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.DelinquencyRefreshResponse{
		LoanID:   loanID,
		AsOf:     asOf.String(),
		Previous: dto.NewDelinquencyResponse(change.Previous),
		Current:  dto.NewDelinquencyResponse(change.Current),
		Changed:  change.Changed(),
	})
}

// ListCustomerLoans handles GET /customers/{customerID}/loans
// @Summary List a customer's loans
// @Tags Customers
// @Produce json
// @Param customerID path int true "Customer ID" Minimum(1)
// @Success 200 {array} dto.LoanResponse "Loans in creation order"
// @Failure 404 {object} dto.ErrorResponse "Customer not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /customers/{customerID}/loans [get]
// @Security BearerAuth
func (h *LoanHandler) ListCustomerLoans(w http.ResponseWriter, r *http.Request) {
	customerID, err := idFromURL(r, "customerID")
	if err != nil {
		respondError(w, err)
		return
	}

	loans, err := h.service.ListLoansByCustomer(r.Context(), customerID)
	if err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Service failed to list customer loans", slog.Int64("customerID", customerID), slog.Any("error", err))
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewLoanListResponse(loans))
}
