package loan

import (
	"fmt"
	"time"

	"loan-engine/internal/pkg/apperrors"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type LoanStatus string

const (
	StatusPending   LoanStatus = "pending"
	StatusDisbursed LoanStatus = "disbursed"
	StatusActive    LoanStatus = "active"
	StatusClosed    LoanStatus = "closed"
)

func (s LoanStatus) Valid() bool {
	switch s {
	case StatusPending, StatusDisbursed, StatusActive, StatusClosed:
		return true
	}
	return false
}

// AcceptsPayments reports whether payments and charges can be booked.
func (s LoanStatus) AcceptsPayments() bool {
	switch s {
	case StatusDisbursed, StatusActive:
		return true
	case StatusPending, StatusClosed:
		return false
	}
	return false
}

type Loan struct {
	ID          int64
	CustomerID  int64
	Terms       LoanTerms
	Status      LoanStatus
	Balances    LoanBalances
	Delinquency DelinquencyState
	Schedule    []Installment
	DisbursedAt *time.Time
	ClosedAt    *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewLoan builds a pending loan with its schedule and opening balances.
func NewLoan(customerID int64, terms LoanTerms, upfrontFee decimal.Decimal) (*Loan, error) {
	schedule, err := GenerateSchedule(terms)
	if err != nil {
		return nil, err
	}
	return &Loan{
		CustomerID:  customerID,
		Terms:       terms,
		Status:      StatusPending,
		Balances:    InitialBalances(schedule, upfrontFee),
		Delinquency: Classify(0),
		Schedule:    schedule,
	}, nil
}

// Disburse moves a pending loan to disbursed.
func (l *Loan) Disburse(at time.Time) error {
	if l.Status != StatusPending {
		return fmt.Errorf("%w: loan %d is %s, only pending loans can be disbursed", apperrors.ErrInvalidTransition, l.ID, l.Status)
	}
	l.Status = StatusDisbursed
	l.DisbursedAt = &at
	return nil
}

// NextStatus derives the loan status after an allocation has been applied.
func NextStatus(current LoanStatus, balances LoanBalances, alloc PaymentAllocation) LoanStatus {
	if !balances.Total.IsPositive() {
		return StatusClosed
	}
	if current == StatusDisbursed && alloc.Total().IsPositive() {
		return StatusActive
	}
	return current
}

// RefreshDelinquency marks overdue installments and reclassifies the loan as of asOf.
func (l *Loan) RefreshDelinquency(asOf civil.Date) []int {
	touched := MarkOverdue(l.Schedule, asOf)
	l.Delinquency = Classify(DaysPastDue(l.Schedule, asOf))
	return touched
}

type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodMobileMoney  PaymentMethod = "mobile_money"
	MethodCard         PaymentMethod = "card"
	MethodCheque       PaymentMethod = "cheque"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodBankTransfer, MethodMobileMoney, MethodCard, MethodCheque:
		return true
	}
	return false
}

type Payment struct {
	ID          uuid.UUID
	LoanID      int64
	Amount      decimal.Decimal
	Allocation  PaymentAllocation
	Unallocated decimal.Decimal
	Method      PaymentMethod
	Reference   string
	RecordedBy  string
	PaidAt      time.Time
	CreatedAt   time.Time
}
