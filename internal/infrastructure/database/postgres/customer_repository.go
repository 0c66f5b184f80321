package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"loan-engine/internal/domain/customer"
	"loan-engine/internal/domain/loan"
	"loan-engine/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
)

const customerColumns = `id, name, email, phone, address, active, created_at, updated_at`

type CustomerRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ customer.CustomerRepository = (*CustomerRepository)(nil)

func NewCustomerRepository(db DBPool, logger *slog.Logger) *CustomerRepository {
	if db == nil {
		panic("DBPool cannot be nil for CustomerRepository")
	}
	return &CustomerRepository{
		db:     db,
		logger: logger.With("component", "CustomerRepository"),
	}
}

func scanCustomer(row pgx.Row) (*customer.Customer, error) {
	var (
		cust         customer.Customer
		email, phone *string
	)
	err := row.Scan(&cust.ID, &cust.Name, &email, &phone, &cust.Address, &cust.Active, &cust.CreatedAt, &cust.UpdatedAt)
	if err != nil {
		return nil, err
	}
	cust.Email = deref(email)
	cust.Phone = deref(phone)
	return &cust, nil
}

func (r *CustomerRepository) Save(ctx context.Context, cust *customer.Customer) error {
	if cust == nil {
		return fmt.Errorf("%w: customer cannot be nil", apperrors.ErrInvalidArgument)
	}
	if cust.ID == 0 {
		return r.createCustomer(ctx, cust)
	}
	return r.updateCustomer(ctx, cust)
}

func (r *CustomerRepository) createCustomer(ctx context.Context, cust *customer.Customer) (err error) {
	start := time.Now()
	defer func() { observe("CreateCustomer", start, err) }()

	query := `
        INSERT INTO customers (name, email, phone, address, active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
        RETURNING id, created_at, updated_at`

	err = r.db.QueryRow(ctx, query,
		cust.Name,
		nullIfEmpty(cust.Email),
		nullIfEmpty(cust.Phone),
		cust.Address,
		cust.Active,
	).Scan(&cust.ID, &cust.CreatedAt, &cust.UpdatedAt)
	if err != nil {
		translated := translateDBError(err, r.logger)
		if errors.Is(translated, apperrors.ErrAlreadyExists) {
			r.logger.WarnContext(ctx, "Customer already exists", slog.String("email", cust.Email))
			return translated
		}
		r.logger.ErrorContext(ctx, "Failed to insert customer", slog.Any("error", err))
		return fmt.Errorf("%w: failed to insert customer: %w", apperrors.ErrDatabase, err)
	}

	r.logger.InfoContext(ctx, "Customer inserted successfully", slog.Int64("customerID", cust.ID))
	return nil
}

func (r *CustomerRepository) updateCustomer(ctx context.Context, cust *customer.Customer) (err error) {
	start := time.Now()
	defer func() { observe("UpdateCustomer", start, err) }()

	query := `
        UPDATE customers
        SET name = $1,
            email = $2,
            phone = $3,
            address = $4,
            active = $5,
            updated_at = NOW()
        WHERE id = $6`

	cmdTag, err := r.db.Exec(ctx, query,
		cust.Name,
		nullIfEmpty(cust.Email),
		nullIfEmpty(cust.Phone),
		cust.Address,
		cust.Active,
		cust.ID,
	)
	if err != nil {
		translated := translateDBError(err, r.logger)
		if errors.Is(translated, apperrors.ErrAlreadyExists) {
			r.logger.WarnContext(ctx, "Customer update violates a unique constraint", slog.Int64("customerID", cust.ID))
			return translated
		}
		r.logger.ErrorContext(ctx, "Failed to update customer", slog.Any("error", err))
		return fmt.Errorf("%w: failed to update customer: %w", apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() == 0 {
		r.logger.WarnContext(ctx, "Update affected zero rows, customer likely not found", slog.Int64("customerID", cust.ID))
		return customer.ErrNotFound
	}
	return nil
}

func (r *CustomerRepository) FindByID(ctx context.Context, customerID int64) (cust *customer.Customer, err error) {
	start := time.Now()
	defer func() { observe("FindCustomerByID", start, err) }()

	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`
	cust, err = scanCustomer(r.db.QueryRow(ctx, query, customerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Customer not found", slog.Int64("customerID", customerID))
			return nil, customer.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to query/scan customer by ID", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to get customer by ID: %w", apperrors.ErrDatabase, err)
	}
	return cust, nil
}

func (r *CustomerRepository) FindAll(ctx context.Context, activeOnly bool) (customers []*customer.Customer, err error) {
	start := time.Now()
	defer func() { observe("FindAllCustomers", start, err) }()

	query := `SELECT ` + customerColumns + ` FROM customers`
	args := []any{}
	if activeOnly {
		query += " WHERE active = $1"
		args = append(args, true)
	}
	query += " ORDER BY id ASC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query customers", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to query customers: %w", apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	customers = make([]*customer.Customer, 0)
	for rows.Next() {
		cust, err := scanCustomer(rows)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan customer row", slog.Any("error", err))
			return nil, fmt.Errorf("%w: failed to scan customer row: %w", apperrors.ErrDatabase, err)
		}
		customers = append(customers, cust)
	}
	if err = rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating customer rows", slog.Any("error", err))
		return nil, fmt.Errorf("%w: error iterating customer rows: %w", apperrors.ErrDatabase, err)
	}

	r.logger.DebugContext(ctx, "Finished finding customers", slog.Int("count", len(customers)))
	return customers, nil
}

func (r *CustomerRepository) SetActiveStatus(ctx context.Context, customerID int64, isActive bool) error {
	query := `UPDATE customers SET active = $1, updated_at = NOW() WHERE id = $2`

	cmdTag, err := r.db.Exec(ctx, query, isActive, customerID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to execute update active status", slog.Any("error", err))
		return fmt.Errorf("%w: failed to update active status: %w", apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() == 0 {
		r.logger.WarnContext(ctx, "Update active status affected zero rows, customer likely not found", slog.Int64("customerID", customerID))
		return customer.ErrNotFound
	}

	r.logger.InfoContext(ctx, "Customer active status updated successfully", slog.Int64("customerID", customerID), slog.Bool("active", isActive))
	return nil
}

func (r *CustomerRepository) HasOpenLoans(ctx context.Context, customerID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM loans WHERE customer_id = $1 AND status <> $2)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, customerID, string(loan.StatusClosed)).Scan(&exists); err != nil {
		r.logger.ErrorContext(ctx, "Failed to check open loans", slog.Int64("customerID", customerID), slog.Any("error", err))
		return false, fmt.Errorf("%w: failed to check open loans: %w", apperrors.ErrDatabase, err)
	}
	return exists, nil
}
