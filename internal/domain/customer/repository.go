package customer

import (
	"context"
	"errors"
	"fmt"

	"loan-engine/internal/pkg/apperrors"
)

var (
	ErrNotFound = fmt.Errorf("customer %w", apperrors.ErrNotFound)

	ErrUpdateConflict = errors.New("update conflict detected")

	ErrCannotDeactivateOpenLoans = fmt.Errorf("%w: customer has loans that are not closed", apperrors.ErrConflict)

	ErrInactive = fmt.Errorf("%w: customer is not active", apperrors.ErrValidation)
)

type CustomerRepository interface {
	Save(ctx context.Context, customer *Customer) error

	FindByID(ctx context.Context, customerID int64) (*Customer, error)

	FindAll(ctx context.Context, activeOnly bool) ([]*Customer, error)

	SetActiveStatus(ctx context.Context, customerID int64, isActive bool) error

	HasOpenLoans(ctx context.Context, customerID int64) (bool, error)
}
