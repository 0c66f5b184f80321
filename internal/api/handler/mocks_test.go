package handler_test

import (
	"context"
	"io"
	"log/slog"

	"loan-engine/internal/domain/customer"
	"loan-engine/internal/domain/loan"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/mock"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type MockCustomerService struct {
	mock.Mock
}

func (m *MockCustomerService) CreateCustomer(ctx context.Context, req customer.CreateCustomerRequest) (*customer.Customer, error) {
	args := m.Called(ctx, req)
	if c, ok := args.Get(0).(*customer.Customer); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCustomerService) GetCustomer(ctx context.Context, customerID int64) (*customer.Customer, error) {
	args := m.Called(ctx, customerID)
	if c, ok := args.Get(0).(*customer.Customer); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCustomerService) ListCustomers(ctx context.Context, activeOnly bool) ([]*customer.Customer, error) {
	args := m.Called(ctx, activeOnly)
	if cs, ok := args.Get(0).([]*customer.Customer); ok {
		return cs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCustomerService) UpdateCustomerAddress(ctx context.Context, customerID int64, newAddress string) error {
	return m.Called(ctx, customerID, newAddress).Error(0)
}

func (m *MockCustomerService) DeactivateCustomer(ctx context.Context, customerID int64) error {
	return m.Called(ctx, customerID).Error(0)
}

func (m *MockCustomerService) ReactivateCustomer(ctx context.Context, customerID int64) error {
	return m.Called(ctx, customerID).Error(0)
}

var _ customer.CustomerService = (*MockCustomerService)(nil)

type MockLoanService struct {
	mock.Mock
}

func (m *MockLoanService) PreviewSchedule(ctx context.Context, terms loan.LoanTerms) ([]loan.Installment, error) {
	args := m.Called(ctx, terms)
	if s, ok := args.Get(0).([]loan.Installment); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) CreateLoan(ctx context.Context, req loan.CreateLoanRequest) (*loan.Loan, error) {
	args := m.Called(ctx, req)
	if ln, ok := args.Get(0).(*loan.Loan); ok {
		return ln, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) DisburseLoan(ctx context.Context, loanID int64, disbursedBy string) (*loan.Loan, error) {
	args := m.Called(ctx, loanID, disbursedBy)
	if ln, ok := args.Get(0).(*loan.Loan); ok {
		return ln, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) GetLoan(ctx context.Context, loanID int64) (*loan.Loan, error) {
	args := m.Called(ctx, loanID)
	if ln, ok := args.Get(0).(*loan.Loan); ok {
		return ln, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) GetLoanSchedule(ctx context.Context, loanID int64) ([]loan.Installment, error) {
	args := m.Called(ctx, loanID)
	if s, ok := args.Get(0).([]loan.Installment); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) ListLoansByCustomer(ctx context.Context, customerID int64) ([]*loan.Loan, error) {
	args := m.Called(ctx, customerID)
	if ls, ok := args.Get(0).([]*loan.Loan); ok {
		return ls, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) GetBalances(ctx context.Context, loanID int64) (loan.LoanBalances, error) {
	args := m.Called(ctx, loanID)
	return args.Get(0).(loan.LoanBalances), args.Error(1)
}

func (m *MockLoanService) RecordPayment(ctx context.Context, req loan.RecordPaymentRequest) (*loan.PaymentReceipt, error) {
	args := m.Called(ctx, req)
	if r, ok := args.Get(0).(*loan.PaymentReceipt); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) ListPayments(ctx context.Context, loanID int64) ([]loan.Payment, error) {
	args := m.Called(ctx, loanID)
	if ps, ok := args.Get(0).([]loan.Payment); ok {
		return ps, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) AssessCharge(ctx context.Context, loanID int64, charge loan.Charge, assessedBy string) (loan.LoanBalances, error) {
	args := m.Called(ctx, loanID, charge, assessedBy)
	return args.Get(0).(loan.LoanBalances), args.Error(1)
}

func (m *MockLoanService) RefreshDelinquency(ctx context.Context, loanID int64, asOf civil.Date) (*loan.DelinquencyChange, error) {
	args := m.Called(ctx, loanID, asOf)
	if c, ok := args.Get(0).(*loan.DelinquencyChange); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

var _ loan.LoanService = (*MockLoanService)(nil)
