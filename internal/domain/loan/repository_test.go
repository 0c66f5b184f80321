package loan

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

type TxMock struct {
	pgx.Tx
}

func (m *MockRepository) CreateLoan(ctx context.Context, loan *Loan) (*Loan, error) {
	args := m.Called(ctx, loan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Loan), args.Error(1)
}

func (m *MockRepository) GetLoanByID(ctx context.Context, loanID int64) (*Loan, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Loan), args.Error(1)
}

func (m *MockRepository) GetScheduleByLoanID(ctx context.Context, loanID int64) ([]Installment, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Installment), args.Error(1)
}

func (m *MockRepository) ListLoansByCustomer(ctx context.Context, customerID int64) ([]*Loan, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Loan), args.Error(1)
}

func (m *MockRepository) ListOpenLoanIDs(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockRepository) ListPayments(ctx context.Context, loanID int64) ([]Payment, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Payment), args.Error(1)
}

func (m *MockRepository) GetLoanForUpdate(ctx context.Context, tx pgx.Tx, loanID int64) (*Loan, error) {
	args := m.Called(ctx, tx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Loan), args.Error(1)
}

func (m *MockRepository) GetScheduleInTx(ctx context.Context, tx pgx.Tx, loanID int64) ([]Installment, error) {
	args := m.Called(ctx, tx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Installment), args.Error(1)
}

func (m *MockRepository) UpdateInstallmentsInTx(ctx context.Context, tx pgx.Tx, installments []Installment) error {
	return m.Called(ctx, tx, installments).Error(0)
}

func (m *MockRepository) UpdateLoanStateInTx(ctx context.Context, tx pgx.Tx, loan *Loan) error {
	return m.Called(ctx, tx, loan).Error(0)
}

func (m *MockRepository) InsertPaymentInTx(ctx context.Context, tx pgx.Tx, payment *Payment) error {
	return m.Called(ctx, tx, payment).Error(0)
}

func (m *MockRepository) InsertChargeInTx(ctx context.Context, tx pgx.Tx, loanID int64, charge Charge, assessedBy string) error {
	return m.Called(ctx, tx, loanID, charge, assessedBy).Error(0)
}

func (m *MockRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(pgx.Tx), args.Error(1)
}

func (m *MockRepository) CommitTx(ctx context.Context, tx pgx.Tx) error {
	return m.Called(ctx, tx).Error(0)
}

func (m *MockRepository) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	return m.Called(ctx, tx).Error(0)
}

var _ Repository = (*MockRepository)(nil)
