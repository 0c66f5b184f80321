package loan

import (
	"context"

	"github.com/jackc/pgx/v5"
)

type Repository interface {
	CreateLoan(ctx context.Context, loan *Loan) (*Loan, error)

	GetLoanByID(ctx context.Context, loanID int64) (*Loan, error)

	GetScheduleByLoanID(ctx context.Context, loanID int64) ([]Installment, error)

	ListLoansByCustomer(ctx context.Context, customerID int64) ([]*Loan, error)

	ListOpenLoanIDs(ctx context.Context) ([]int64, error)

	ListPayments(ctx context.Context, loanID int64) ([]Payment, error)

	GetLoanForUpdate(ctx context.Context, tx pgx.Tx, loanID int64) (*Loan, error)

	GetScheduleInTx(ctx context.Context, tx pgx.Tx, loanID int64) ([]Installment, error)

	UpdateInstallmentsInTx(ctx context.Context, tx pgx.Tx, installments []Installment) error

	UpdateLoanStateInTx(ctx context.Context, tx pgx.Tx, loan *Loan) error

	InsertPaymentInTx(ctx context.Context, tx pgx.Tx, payment *Payment) error

	InsertChargeInTx(ctx context.Context, tx pgx.Tx, loanID int64, charge Charge, assessedBy string) error

	BeginTx(ctx context.Context) (pgx.Tx, error)

	CommitTx(ctx context.Context, tx pgx.Tx) error

	RollbackTx(ctx context.Context, tx pgx.Tx) error
}
