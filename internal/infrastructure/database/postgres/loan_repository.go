package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"loan-engine/internal/domain/loan"
	"loan-engine/internal/pkg/apperrors"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5"
)

const loanColumns = `id, customer_id, principal, annual_rate_percent, interest_type, term_value, term_unit,
        repayment_frequency, amortization_method, grace_period_days, start_date, status,
        principal_outstanding, interest_outstanding, fees_outstanding, penalty_outstanding,
        days_past_due, delinquency_status, missed_payments, disbursed_at, closed_at, created_at, updated_at`

const installmentColumns = `id, loan_id, installment_number, due_date, principal_due, interest_due, total_due,
        principal_paid, interest_paid, total_paid, balance, status`

const paymentColumns = `id, loan_id, amount, penalty_paid, fees_paid, interest_paid, principal_paid, unallocated,
        method, reference, recorded_by, paid_at, created_at`

type LoanRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ loan.Repository = (*LoanRepository)(nil)

func NewLoanRepository(db DBPool, logger *slog.Logger) *LoanRepository {
	return &LoanRepository{db: db, logger: logger.With("component", "LoanRepository")}
}

func (r *LoanRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return beginTx(ctx, r.db, r.logger)
}

func (r *LoanRepository) CommitTx(ctx context.Context, tx pgx.Tx) error {
	return commitTx(ctx, tx, r.logger)
}

func (r *LoanRepository) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	return rollbackTx(ctx, tx, r.logger)
}

func scanLoan(row pgx.Row) (*loan.Loan, error) {
	var (
		l                                                      loan.Loan
		interestType, termUnit, frequency, method, status, dlq string
		startDate                                              time.Time
	)
	err := row.Scan(
		&l.ID, &l.CustomerID, &l.Terms.Principal, &l.Terms.AnnualRatePercent, &interestType,
		&l.Terms.TermValue, &termUnit, &frequency, &method, &l.Terms.GracePeriodDays, &startDate, &status,
		&l.Balances.Principal, &l.Balances.Interest, &l.Balances.Fees, &l.Balances.Penalty,
		&l.Delinquency.DaysPastDue, &dlq, &l.Delinquency.MissedPayments,
		&l.DisbursedAt, &l.ClosedAt, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.Terms.InterestType = loan.InterestType(interestType)
	l.Terms.TermUnit = loan.TermUnit(termUnit)
	l.Terms.RepaymentFrequency = loan.Frequency(frequency)
	l.Terms.AmortizationMethod = loan.AmortizationMethod(method)
	l.Terms.StartDate = civil.DateOf(startDate)
	l.Status = loan.LoanStatus(status)
	l.Delinquency.Status = loan.DelinquencyStatus(dlq)
	l.Balances = loan.NewBalances(l.Balances.Principal, l.Balances.Interest, l.Balances.Fees, l.Balances.Penalty)
	return &l, nil
}

func scanInstallment(rows pgx.Rows) (loan.Installment, error) {
	var (
		in      loan.Installment
		dueDate time.Time
		status  string
	)
	err := rows.Scan(
		&in.ID, &in.LoanID, &in.Number, &dueDate, &in.PrincipalDue, &in.InterestDue, &in.TotalDue,
		&in.PrincipalPaid, &in.InterestPaid, &in.TotalPaid, &in.Balance, &status,
	)
	if err != nil {
		return loan.Installment{}, err
	}
	in.DueDate = civil.DateOf(dueDate)
	in.Status = loan.InstallmentStatus(status)
	return in, nil
}

func (r *LoanRepository) CreateLoan(ctx context.Context, newLoan *loan.Loan) (created *loan.Loan, err error) {
	start := time.Now()
	defer func() { observe("CreateLoan", start, err) }()

	tx, err := r.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = r.RollbackTx(ctx, tx)
		}
	}()

	loanSQL := `
        INSERT INTO loans (customer_id, principal, annual_rate_percent, interest_type, term_value, term_unit,
            repayment_frequency, amortization_method, grace_period_days, start_date, status,
            principal_outstanding, interest_outstanding, fees_outstanding, penalty_outstanding,
            days_past_due, delinquency_status, missed_payments, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, NOW(), NOW())
        RETURNING id, created_at, updated_at`

	t := newLoan.Terms
	out := *newLoan
	err = tx.QueryRow(ctx, loanSQL,
		newLoan.CustomerID, t.Principal, t.AnnualRatePercent, string(t.InterestType), t.TermValue, string(t.TermUnit),
		string(t.RepaymentFrequency), string(t.AmortizationMethod), t.GracePeriodDays, toDate(t.StartDate), string(newLoan.Status),
		newLoan.Balances.Principal, newLoan.Balances.Interest, newLoan.Balances.Fees, newLoan.Balances.Penalty,
		newLoan.Delinquency.DaysPastDue, string(newLoan.Delinquency.Status), newLoan.Delinquency.MissedPayments,
	).Scan(&out.ID, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert loan", "error", err)
		return nil, fmt.Errorf("%w: failed to insert loan: %w", apperrors.ErrDatabase, err)
	}

	if len(newLoan.Schedule) > 0 {
		scheduleSQL := `
            INSERT INTO loan_installments (loan_id, installment_number, due_date, principal_due, interest_due, total_due,
                principal_paid, interest_paid, total_paid, balance, status, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())`

		batch := &pgx.Batch{}
		out.Schedule = make([]loan.Installment, len(newLoan.Schedule))
		for i, in := range newLoan.Schedule {
			in.LoanID = out.ID
			out.Schedule[i] = in
			batch.Queue(scheduleSQL, out.ID, in.Number, toDate(in.DueDate), in.PrincipalDue, in.InterestDue, in.TotalDue,
				in.PrincipalPaid, in.InterestPaid, in.TotalPaid, in.Balance, string(in.Status))
		}

		results := tx.SendBatch(ctx, batch)
		for i := range newLoan.Schedule {
			if _, err = results.Exec(); err != nil {
				_ = results.Close()
				r.logger.ErrorContext(ctx, "Failed executing schedule batch insert", "error", err, "entry_index", i, "loan_id", out.ID)
				return nil, fmt.Errorf("%w: failed inserting installment %d: %w", apperrors.ErrDatabase, i+1, err)
			}
		}
		if err = results.Close(); err != nil {
			r.logger.ErrorContext(ctx, "Failed closing schedule batch results", "error", err, "loan_id", out.ID)
			return nil, fmt.Errorf("%w: closing batch results failed: %w", apperrors.ErrDatabase, err)
		}
	}

	if err = r.CommitTx(ctx, tx); err != nil {
		return nil, err
	}

	r.logger.InfoContext(ctx, "Loan and schedule created in DB", "loan_id", out.ID, "num_entries", len(out.Schedule))
	return &out, nil
}

func (r *LoanRepository) GetLoanByID(ctx context.Context, loanID int64) (l *loan.Loan, err error) {
	start := time.Now()
	defer func() { observe("GetLoanByID", start, err) }()

	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1`
	l, err = scanLoan(r.db.QueryRow(ctx, query, loanID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Loan not found", "loan_id", loanID)
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get loan by ID", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return l, nil
}

func (r *LoanRepository) GetLoanForUpdate(ctx context.Context, tx pgx.Tx, loanID int64) (*loan.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1 FOR UPDATE`
	l, err := scanLoan(tx.QueryRow(ctx, query, loanID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Loan not found for update", "loan_id", loanID)
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to lock loan", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return l, nil
}

func (r *LoanRepository) ListLoansByCustomer(ctx context.Context, customerID int64) (loans []*loan.Loan, err error) {
	start := time.Now()
	defer func() { observe("ListLoansByCustomer", start, err) }()

	query := `SELECT ` + loanColumns + ` FROM loans WHERE customer_id = $1 ORDER BY id ASC`
	rows, err := r.db.Query(ctx, query, customerID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query loans for customer", "customer_id", customerID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	loans = make([]*loan.Loan, 0)
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan loan row", "customer_id", customerID, "error", err)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		loans = append(loans, l)
	}
	if err = rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating loan rows", "customer_id", customerID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return loans, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *LoanRepository) querySchedule(ctx context.Context, q querier, loanID int64, lock bool) ([]loan.Installment, error) {
	query := `SELECT ` + installmentColumns + ` FROM loan_installments WHERE loan_id = $1 ORDER BY installment_number ASC`
	if lock {
		query += ` FOR UPDATE`
	}

	rows, err := q.Query(ctx, query, loanID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query loan schedule", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	schedule := make([]loan.Installment, 0)
	for rows.Next() {
		in, err := scanInstallment(rows)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan installment row", "loan_id", loanID, "error", err)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		schedule = append(schedule, in)
	}
	if err = rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating installment rows", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return schedule, nil
}

func (r *LoanRepository) GetScheduleByLoanID(ctx context.Context, loanID int64) (schedule []loan.Installment, err error) {
	start := time.Now()
	defer func() { observe("GetScheduleByLoanID", start, err) }()
	return r.querySchedule(ctx, r.db, loanID, false)
}

func (r *LoanRepository) GetScheduleInTx(ctx context.Context, tx pgx.Tx, loanID int64) ([]loan.Installment, error) {
	return r.querySchedule(ctx, tx, loanID, true)
}

func (r *LoanRepository) ListOpenLoanIDs(ctx context.Context) (loanIDs []int64, err error) {
	start := time.Now()
	defer func() { observe("ListOpenLoanIDs", start, err) }()

	logCtx := r.logger.With(slog.String("operation", "ListOpenLoanIDs"))
	query := `SELECT id FROM loans WHERE status IN ($1, $2) ORDER BY id`

	rows, err := r.db.Query(ctx, query, string(loan.StatusDisbursed), string(loan.StatusActive))
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to query open loan IDs", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to query open loans: %w", apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	loanIDs = make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			logCtx.ErrorContext(ctx, "Failed to scan open loan ID row", slog.Any("error", err))
			return nil, fmt.Errorf("%w: failed scanning open loan ID: %w", apperrors.ErrDatabase, err)
		}
		loanIDs = append(loanIDs, id)
	}
	if err = rows.Err(); err != nil {
		logCtx.ErrorContext(ctx, "Error iterating open loan ID rows", slog.Any("error", err))
		return nil, fmt.Errorf("%w: error iterating open loan IDs: %w", apperrors.ErrDatabase, err)
	}

	logCtx.DebugContext(ctx, "Finished getting open loan IDs", slog.Int("count", len(loanIDs)))
	return loanIDs, nil
}

func (r *LoanRepository) UpdateInstallmentsInTx(ctx context.Context, tx pgx.Tx, installments []loan.Installment) error {
	sql := `
        UPDATE loan_installments
        SET principal_paid = $1, interest_paid = $2, total_paid = $3, status = $4, updated_at = NOW()
        WHERE loan_id = $5 AND installment_number = $6`

	for _, in := range installments {
		cmdTag, err := tx.Exec(ctx, sql, in.PrincipalPaid, in.InterestPaid, in.TotalPaid, string(in.Status), in.LoanID, in.Number)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to update installment", "loan_id", in.LoanID, "number", in.Number, "error", err)
			return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		if cmdTag.RowsAffected() != 1 {
			r.logger.ErrorContext(ctx, "Installment update affected zero rows", "loan_id", in.LoanID, "number", in.Number)
			return fmt.Errorf("%w: installment %d of loan %d not updated", apperrors.ErrDatabase, in.Number, in.LoanID)
		}
	}
	return nil
}

func (r *LoanRepository) UpdateLoanStateInTx(ctx context.Context, tx pgx.Tx, l *loan.Loan) error {
	sql := `
        UPDATE loans
        SET status = $1, principal_outstanding = $2, interest_outstanding = $3, fees_outstanding = $4,
            penalty_outstanding = $5, days_past_due = $6, delinquency_status = $7, missed_payments = $8,
            disbursed_at = $9, closed_at = $10, updated_at = NOW()
        WHERE id = $11`

	cmdTag, err := tx.Exec(ctx, sql,
		string(l.Status), l.Balances.Principal, l.Balances.Interest, l.Balances.Fees, l.Balances.Penalty,
		l.Delinquency.DaysPastDue, string(l.Delinquency.Status), l.Delinquency.MissedPayments,
		l.DisbursedAt, l.ClosedAt, l.ID,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update loan state", "loan_id", l.ID, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() != 1 {
		r.logger.ErrorContext(ctx, "Loan state update affected zero rows", "loan_id", l.ID)
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *LoanRepository) InsertPaymentInTx(ctx context.Context, tx pgx.Tx, p *loan.Payment) error {
	sql := `
        INSERT INTO payments (id, loan_id, amount, penalty_paid, fees_paid, interest_paid, principal_paid, unallocated,
            method, reference, recorded_by, paid_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := tx.Exec(ctx, sql,
		p.ID, p.LoanID, p.Amount, p.Allocation.Penalty, p.Allocation.Fees, p.Allocation.Interest, p.Allocation.Principal,
		p.Unallocated, string(p.Method), nullIfEmpty(p.Reference), p.RecordedBy, p.PaidAt, p.CreatedAt,
	)
	if err != nil {
		translated := translateDBError(err, r.logger)
		r.logger.ErrorContext(ctx, "Failed to insert payment", "loan_id", p.LoanID, "payment_id", p.ID.String(), "error", err)
		return translated
	}
	return nil
}

func (r *LoanRepository) InsertChargeInTx(ctx context.Context, tx pgx.Tx, loanID int64, charge loan.Charge, assessedBy string) error {
	sql := `
        INSERT INTO loan_charges (loan_id, kind, amount, reason, assessed_by, created_at)
        VALUES ($1, $2, $3, $4, $5, NOW())`

	if _, err := tx.Exec(ctx, sql, loanID, string(charge.Kind), charge.Amount, nullIfEmpty(charge.Reason), assessedBy); err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert charge", "loan_id", loanID, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

func (r *LoanRepository) ListPayments(ctx context.Context, loanID int64) (payments []loan.Payment, err error) {
	start := time.Now()
	defer func() { observe("ListPayments", start, err) }()

	query := `SELECT ` + paymentColumns + ` FROM payments WHERE loan_id = $1 ORDER BY paid_at ASC, created_at ASC`
	rows, err := r.db.Query(ctx, query, loanID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query payments", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	payments = make([]loan.Payment, 0)
	for rows.Next() {
		var (
			p         loan.Payment
			method    string
			reference *string
		)
		err := rows.Scan(
			&p.ID, &p.LoanID, &p.Amount, &p.Allocation.Penalty, &p.Allocation.Fees, &p.Allocation.Interest,
			&p.Allocation.Principal, &p.Unallocated, &method, &reference, &p.RecordedBy, &p.PaidAt, &p.CreatedAt,
		)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan payment row", "loan_id", loanID, "error", err)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		p.Method = loan.PaymentMethod(method)
		p.Reference = deref(reference)
		payments = append(payments, p)
	}
	if err = rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating payment rows", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return payments, nil
}
