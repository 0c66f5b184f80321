package loan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"loan-engine/internal/domain/customer"
	"loan-engine/internal/event"
	"loan-engine/internal/infrastructure/monitoring"
	"loan-engine/internal/pkg/apperrors"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type LoanService interface {
	PreviewSchedule(ctx context.Context, terms LoanTerms) ([]Installment, error)

	CreateLoan(ctx context.Context, req CreateLoanRequest) (*Loan, error)

	DisburseLoan(ctx context.Context, loanID int64, disbursedBy string) (*Loan, error)

	GetLoan(ctx context.Context, loanID int64) (*Loan, error)

	GetLoanSchedule(ctx context.Context, loanID int64) ([]Installment, error)

	ListLoansByCustomer(ctx context.Context, customerID int64) ([]*Loan, error)

	GetBalances(ctx context.Context, loanID int64) (LoanBalances, error)

	RecordPayment(ctx context.Context, req RecordPaymentRequest) (*PaymentReceipt, error)

	ListPayments(ctx context.Context, loanID int64) ([]Payment, error)

	AssessCharge(ctx context.Context, loanID int64, charge Charge, assessedBy string) (LoanBalances, error)

	RefreshDelinquency(ctx context.Context, loanID int64, asOf civil.Date) (*DelinquencyChange, error)
}

// CustomerFinder is the slice of the customer service loans depend on.
type CustomerFinder interface {
	GetCustomer(ctx context.Context, customerID int64) (*customer.Customer, error)
}

type Config struct {
	UpfrontFeePercent decimal.Decimal
}

type CreateLoanRequest struct {
	CustomerID int64
	Terms      LoanTerms
	CreatedBy  string
}

type RecordPaymentRequest struct {
	LoanID     int64
	Amount     decimal.Decimal
	Method     PaymentMethod
	Reference  string
	PaidAt     time.Time
	RecordedBy string
}

func (r RecordPaymentRequest) Validate() error {
	if !r.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero, got %s", apperrors.ErrInvalidPaymentAmount, r.Amount.String())
	}
	if !r.Amount.Equal(truncate(r.Amount)) {
		return fmt.Errorf("%w: amount %s has more than %d decimal places", apperrors.ErrInvalidPaymentAmount, r.Amount.String(), moneyPlaces)
	}
	if !r.Method.Valid() {
		return apperrors.NewValidationError("method", fmt.Sprintf("%q is not a supported payment method", string(r.Method)))
	}
	if strings.TrimSpace(r.RecordedBy) == "" {
		return apperrors.NewValidationError("recordedBy", "cannot be empty")
	}
	return nil
}

type PaymentReceipt struct {
	Payment      Payment
	Balances     LoanBalances
	LoanStatus   LoanStatus
	Installments []Installment
}

type DelinquencyChange struct {
	LoanID   int64
	Previous DelinquencyState
	Current  DelinquencyState
}

func (c DelinquencyChange) Changed() bool {
	return c.Previous.Status != c.Current.Status
}

type loanServiceImpl struct {
	repo      Repository
	customers CustomerFinder
	pub       event.EventPublisher
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
}

func NewLoanService(r Repository, customers CustomerFinder, pub event.EventPublisher, cfg Config, logger *slog.Logger) LoanService {
	if pub == nil {
		pub = event.NoopPublisher{}
	}
	return &loanServiceImpl{
		repo:      r,
		customers: customers,
		pub:       pub,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "loanService")),
		now:       time.Now,
	}
}

func (s *loanServiceImpl) PreviewSchedule(ctx context.Context, terms LoanTerms) ([]Installment, error) {
	schedule, err := GenerateSchedule(terms)
	if err != nil {
		s.logger.WarnContext(ctx, "Rejected loan terms for preview", slog.Any("error", err))
		return nil, err
	}
	return schedule, nil
}

func (s *loanServiceImpl) upfrontFee(principal decimal.Decimal) decimal.Decimal {
	if !s.cfg.UpfrontFeePercent.IsPositive() {
		return decimal.Zero
	}
	return round(principal.Mul(s.cfg.UpfrontFeePercent).Div(decimal.NewFromInt(100)))
}

func (s *loanServiceImpl) CreateLoan(ctx context.Context, req CreateLoanRequest) (*Loan, error) {
	log := s.logger.With(slog.Int64("customerID", req.CustomerID))
	log.InfoContext(ctx, "Creating new loan")

	cust, err := s.customers.GetCustomer(ctx, req.CustomerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			log.WarnContext(ctx, "Customer not found", slog.Any("error", err))
			return nil, fmt.Errorf("%w: customer %d not found", apperrors.ErrValidation, req.CustomerID)
		}
		log.ErrorContext(ctx, "Failed to get customer details", slog.Any("error", err))
		return nil, fmt.Errorf("failed to verify customer status: %w", err)
	}
	if !cust.Active {
		log.WarnContext(ctx, "Attempted to create loan for inactive customer")
		return nil, fmt.Errorf("%w: customer %d", customer.ErrInactive, req.CustomerID)
	}

	ln, err := NewLoan(req.CustomerID, req.Terms, s.upfrontFee(req.Terms.Principal))
	if err != nil {
		log.WarnContext(ctx, "Rejected loan terms", slog.Any("error", err))
		return nil, err
	}

	created, err := s.repo.CreateLoan(ctx, ln)
	if err != nil {
		log.ErrorContext(ctx, "Failed to save loan and schedule", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to save loan and schedule: %v", apperrors.ErrInternalServer, err)
	}
	monitoring.RecordScheduleGenerated(string(req.Terms.AmortizationMethod))

	summary := Summarize(created.Schedule)
	evt := event.LoanCreatedEvent{
		LoanID:       created.ID,
		CustomerID:   created.CustomerID,
		Principal:    created.Terms.Principal,
		TotalDue:     summary.TotalDue,
		Installments: summary.Installments,
		FirstDueDate: summary.FirstDueDate.String(),
		MaturityDate: summary.MaturityDate.String(),
		CreatedBy:    req.CreatedBy,
		Timestamp:    s.now(),
	}
	if err := s.pub.PublishLoanCreated(ctx, evt); err != nil {
		log.ErrorContext(ctx, "Loan created, but FAILED to publish creation event", slog.Any("error", err))
	}

	log.InfoContext(ctx, "Loan created successfully", slog.Int64("loanID", created.ID), slog.Int("installments", summary.Installments))
	return created, nil
}

func (s *loanServiceImpl) DisburseLoan(ctx context.Context, loanID int64, disbursedBy string) (*Loan, error) {
	log := s.logger.With(slog.Int64("loanID", loanID))

	var ln *Loan
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		ln, err = s.repo.GetLoanForUpdate(ctx, tx, loanID)
		if err != nil {
			return s.repoError(ctx, err, loanID, "load loan for disbursement")
		}
		if err := ln.Disburse(s.now()); err != nil {
			log.WarnContext(ctx, "Refused disbursement", slog.Any("error", err))
			return err
		}
		if err := s.repo.UpdateLoanStateInTx(ctx, tx, ln); err != nil {
			return s.repoError(ctx, err, loanID, "update loan status")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	evt := event.LoanDisbursedEvent{
		LoanID:      ln.ID,
		CustomerID:  ln.CustomerID,
		DisbursedBy: disbursedBy,
		Timestamp:   s.now(),
	}
	if err := s.pub.PublishLoanDisbursed(ctx, evt); err != nil {
		log.ErrorContext(ctx, "Loan disbursed, but FAILED to publish event", slog.Any("error", err))
	}

	log.InfoContext(ctx, "Loan disbursed", slog.String("disbursedBy", disbursedBy))
	return ln, nil
}

func (s *loanServiceImpl) GetLoan(ctx context.Context, loanID int64) (*Loan, error) {
	ln, err := s.repo.GetLoanByID(ctx, loanID)
	if err != nil {
		return nil, s.repoError(ctx, err, loanID, "get loan")
	}

	schedule, err := s.repo.GetScheduleByLoanID(ctx, loanID)
	if err != nil {
		return nil, s.repoError(ctx, err, loanID, "get loan schedule")
	}
	ln.Schedule = schedule
	return ln, nil
}

func (s *loanServiceImpl) GetLoanSchedule(ctx context.Context, loanID int64) ([]Installment, error) {
	schedule, err := s.repo.GetScheduleByLoanID(ctx, loanID)
	if err != nil {
		return nil, s.repoError(ctx, err, loanID, "get loan schedule")
	}
	if len(schedule) == 0 {
		if _, err := s.repo.GetLoanByID(ctx, loanID); err != nil {
			return nil, s.repoError(ctx, err, loanID, "get loan")
		}
	}
	return schedule, nil
}

func (s *loanServiceImpl) ListLoansByCustomer(ctx context.Context, customerID int64) ([]*Loan, error) {
	if _, err := s.customers.GetCustomer(ctx, customerID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: customer %d not found", apperrors.ErrNotFound, customerID)
		}
		return nil, fmt.Errorf("failed to verify customer: %w", err)
	}

	loans, err := s.repo.ListLoansByCustomer(ctx, customerID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list loans", slog.Int64("customerID", customerID), slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to list loans for customer %d: %v", apperrors.ErrInternalServer, customerID, err)
	}
	return loans, nil
}

func (s *loanServiceImpl) GetBalances(ctx context.Context, loanID int64) (LoanBalances, error) {
	ln, err := s.repo.GetLoanByID(ctx, loanID)
	if err != nil {
		return LoanBalances{}, s.repoError(ctx, err, loanID, "get loan balances")
	}
	return ln.Balances, nil
}

func paymentOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, apperrors.ErrInvalidPaymentAmount):
		return "failure_amount"
	case errors.Is(err, apperrors.ErrLoanFullyPaid):
		return "failure_fully_paid"
	case errors.Is(err, apperrors.ErrLoanNotPayable):
		return "failure_not_payable"
	case errors.Is(err, apperrors.ErrNotFound):
		return "failure_not_found"
	case errors.Is(err, apperrors.ErrValidation):
		return "failure_validation"
	}
	return "failure_internal"
}

func (s *loanServiceImpl) RecordPayment(ctx context.Context, req RecordPaymentRequest) (receipt *PaymentReceipt, err error) {
	log := s.logger.With(slog.Int64("loanID", req.LoanID), slog.String("amount", req.Amount.String()))
	defer func() {
		monitoring.RecordPayment(paymentOutcome(err))
	}()

	if err = req.Validate(); err != nil {
		log.WarnContext(ctx, "Rejected payment", slog.Any("error", err))
		return nil, err
	}

	now := s.now()
	paidAt := req.PaidAt
	if paidAt.IsZero() {
		paidAt = now
	}

	err = s.inTx(ctx, func(tx pgx.Tx) error {
		ln, err := s.repo.GetLoanForUpdate(ctx, tx, req.LoanID)
		if err != nil {
			return s.repoError(ctx, err, req.LoanID, "load loan for payment")
		}
		switch {
		case ln.Status == StatusClosed:
			return fmt.Errorf("%w: loan %d", apperrors.ErrLoanFullyPaid, ln.ID)
		case !ln.Status.AcceptsPayments():
			return fmt.Errorf("%w: loan %d is %s", apperrors.ErrLoanNotPayable, ln.ID, ln.Status)
		}

		schedule, err := s.repo.GetScheduleInTx(ctx, tx, req.LoanID)
		if err != nil {
			return s.repoError(ctx, err, req.LoanID, "load schedule for payment")
		}

		alloc, err := Allocate(req.Amount, ln.Balances)
		if err != nil {
			return err
		}
		touched := ApplyToSchedule(schedule, alloc.Scheduled())

		ln.Balances = ln.Balances.Apply(alloc)
		ln.Status = NextStatus(ln.Status, ln.Balances, alloc)
		if ln.Status == StatusClosed {
			ln.ClosedAt = &now
		}
		ln.Delinquency = Classify(DaysPastDue(schedule, civil.DateOf(now)))

		changed := make([]Installment, 0, len(touched))
		for _, i := range touched {
			changed = append(changed, schedule[i])
		}
		if len(changed) > 0 {
			if err := s.repo.UpdateInstallmentsInTx(ctx, tx, changed); err != nil {
				return s.repoError(ctx, err, req.LoanID, "update installments")
			}
		}
		if err := s.repo.UpdateLoanStateInTx(ctx, tx, ln); err != nil {
			return s.repoError(ctx, err, req.LoanID, "update loan balances")
		}

		payment := Payment{
			ID:          uuid.New(),
			LoanID:      ln.ID,
			Amount:      req.Amount,
			Allocation:  alloc,
			Unallocated: Unallocated(req.Amount, alloc),
			Method:      req.Method,
			Reference:   strings.TrimSpace(req.Reference),
			RecordedBy:  req.RecordedBy,
			PaidAt:      paidAt,
			CreatedAt:   now,
		}
		if err := s.repo.InsertPaymentInTx(ctx, tx, &payment); err != nil {
			return s.repoError(ctx, err, req.LoanID, "insert payment")
		}

		receipt = &PaymentReceipt{
			Payment:      payment,
			Balances:     ln.Balances,
			LoanStatus:   ln.Status,
			Installments: changed,
		}
		return nil
	})
	if err != nil {
		log.WarnContext(ctx, "Payment not recorded", slog.Any("error", err))
		return nil, err
	}

	alloc := receipt.Payment.Allocation
	monitoring.RecordAllocation(
		alloc.Penalty.InexactFloat64(),
		alloc.Fees.InexactFloat64(),
		alloc.Interest.InexactFloat64(),
		alloc.Principal.InexactFloat64(),
		receipt.Payment.Unallocated.InexactFloat64(),
	)
	if receipt.Payment.Unallocated.IsPositive() {
		log.WarnContext(ctx, "Payment exceeded outstanding balance", slog.String("unallocated", receipt.Payment.Unallocated.String()))
	}

	evt := event.PaymentRecordedEvent{
		PaymentID:   receipt.Payment.ID.String(),
		LoanID:      req.LoanID,
		Amount:      receipt.Payment.Amount,
		Penalty:     alloc.Penalty,
		Fees:        alloc.Fees,
		Interest:    alloc.Interest,
		Principal:   alloc.Principal,
		Unallocated: receipt.Payment.Unallocated,
		LoanStatus:  string(receipt.LoanStatus),
		RecordedBy:  req.RecordedBy,
		Timestamp:   now,
	}
	if pubErr := s.pub.PublishPaymentRecorded(ctx, evt); pubErr != nil {
		log.ErrorContext(ctx, "Payment recorded, but FAILED to publish event", slog.Any("error", pubErr))
	}

	log.InfoContext(ctx, "Payment processed successfully",
		slog.String("paymentID", receipt.Payment.ID.String()),
		slog.String("loanStatus", string(receipt.LoanStatus)),
	)
	return receipt, nil
}

func (s *loanServiceImpl) ListPayments(ctx context.Context, loanID int64) ([]Payment, error) {
	if _, err := s.repo.GetLoanByID(ctx, loanID); err != nil {
		return nil, s.repoError(ctx, err, loanID, "get loan")
	}
	payments, err := s.repo.ListPayments(ctx, loanID)
	if err != nil {
		return nil, s.repoError(ctx, err, loanID, "list payments")
	}
	return payments, nil
}

func (s *loanServiceImpl) AssessCharge(ctx context.Context, loanID int64, charge Charge, assessedBy string) (LoanBalances, error) {
	log := s.logger.With(slog.Int64("loanID", loanID), slog.String("kind", string(charge.Kind)))

	if err := charge.Validate(); err != nil {
		return LoanBalances{}, err
	}
	charge.Amount = round(charge.Amount)

	var balances LoanBalances
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		ln, err := s.repo.GetLoanForUpdate(ctx, tx, loanID)
		if err != nil {
			return s.repoError(ctx, err, loanID, "load loan for charge")
		}
		if !ln.Status.AcceptsPayments() {
			return fmt.Errorf("%w: loan %d is %s", apperrors.ErrLoanNotPayable, ln.ID, ln.Status)
		}

		ln.Balances = ln.Balances.Charge(charge)
		if err := s.repo.UpdateLoanStateInTx(ctx, tx, ln); err != nil {
			return s.repoError(ctx, err, loanID, "update loan balances")
		}
		if err := s.repo.InsertChargeInTx(ctx, tx, loanID, charge, assessedBy); err != nil {
			return s.repoError(ctx, err, loanID, "insert charge")
		}
		balances = ln.Balances
		return nil
	})
	if err != nil {
		log.WarnContext(ctx, "Charge not assessed", slog.Any("error", err))
		return LoanBalances{}, err
	}

	log.InfoContext(ctx, "Charge assessed", slog.String("amount", charge.Amount.String()), slog.String("assessedBy", assessedBy))
	return balances, nil
}

func (s *loanServiceImpl) RefreshDelinquency(ctx context.Context, loanID int64, asOf civil.Date) (*DelinquencyChange, error) {
	log := s.logger.With(slog.Int64("loanID", loanID), slog.String("asOf", asOf.String()))

	var (
		change     DelinquencyChange
		customerID int64
	)
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		ln, err := s.repo.GetLoanForUpdate(ctx, tx, loanID)
		if err != nil {
			return s.repoError(ctx, err, loanID, "load loan for delinquency")
		}
		schedule, err := s.repo.GetScheduleInTx(ctx, tx, loanID)
		if err != nil {
			return s.repoError(ctx, err, loanID, "load schedule for delinquency")
		}
		ln.Schedule = schedule
		customerID = ln.CustomerID

		change = DelinquencyChange{LoanID: loanID, Previous: ln.Delinquency}
		var touched []int
		if ln.Status.AcceptsPayments() {
			touched = ln.RefreshDelinquency(asOf)
		} else {
			ln.Delinquency = Classify(0)
		}
		change.Current = ln.Delinquency

		if len(touched) > 0 {
			overdue := make([]Installment, 0, len(touched))
			for _, i := range touched {
				overdue = append(overdue, ln.Schedule[i])
			}
			if err := s.repo.UpdateInstallmentsInTx(ctx, tx, overdue); err != nil {
				return s.repoError(ctx, err, loanID, "mark installments overdue")
			}
		}
		if err := s.repo.UpdateLoanStateInTx(ctx, tx, ln); err != nil {
			return s.repoError(ctx, err, loanID, "update delinquency")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if change.Changed() {
		evt := event.LoanDelinquencyChangedEvent{
			LoanID:         loanID,
			CustomerID:     customerID,
			OldStatus:      string(change.Previous.Status),
			NewStatus:      string(change.Current.Status),
			DaysPastDue:    change.Current.DaysPastDue,
			MissedPayments: change.Current.MissedPayments,
			Timestamp:      s.now(),
		}
		if err := s.pub.PublishLoanDelinquencyChanged(ctx, evt); err != nil {
			log.ErrorContext(ctx, "Delinquency changed, but FAILED to publish event", slog.Any("error", err))
		}
		log.InfoContext(ctx, "Loan delinquency changed",
			slog.String("from", string(change.Previous.Status)),
			slog.String("to", string(change.Current.Status)),
		)
	}
	return &change, nil
}

func (s *loanServiceImpl) inTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction", slog.Any("error", err))
		return fmt.Errorf("%w: could not begin transaction: %v", apperrors.ErrInternalServer, err)
	}

	defer func() {
		if p := recover(); p != nil {
			s.logger.ErrorContext(ctx, "Panic inside transaction", slog.Any("panic", p))
			_ = s.repo.RollbackTx(ctx, tx)
			panic(p)
		} else if err != nil {
			_ = s.repo.RollbackTx(ctx, tx)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = s.repo.CommitTx(ctx, tx); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction", slog.Any("error", err))
		return fmt.Errorf("%w: could not commit transaction: %v", apperrors.ErrInternalServer, err)
	}
	return nil
}

func (s *loanServiceImpl) repoError(ctx context.Context, err error, loanID int64, action string) error {
	if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, pgx.ErrNoRows) {
		s.logger.WarnContext(ctx, "Loan not found", slog.Int64("loanID", loanID), slog.String("action", action))
		return fmt.Errorf("%w: loan with ID %d not found", apperrors.ErrNotFound, loanID)
	}
	s.logger.ErrorContext(ctx, "Repository call failed", slog.Int64("loanID", loanID), slog.String("action", action), slog.Any("error", err))
	return fmt.Errorf("%w: failed to %s for loan %d: %v", apperrors.ErrInternalServer, action, loanID, err)
}
