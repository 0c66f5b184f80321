package dto

import (
	"fmt"
	"strings"

	"loan-engine/internal/pkg/apperrors"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

type ErrorDetail struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type TokenRequest struct {
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
}

func (r *TokenRequest) Validate() error {
	if strings.TrimSpace(r.Username) == "" {
		return apperrors.NewValidationError("username", "is required")
	}
	return nil
}

type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
}

// Money renders an amount with exactly two decimal places.
func Money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func parseMoney(field, s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, apperrors.NewValidationError(field, "is required")
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, apperrors.NewValidationError(field, fmt.Sprintf("%q is not a decimal number", s))
	}
	return d, nil
}

func parseDate(field, s string) (civil.Date, error) {
	d, err := civil.ParseDate(strings.TrimSpace(s))
	if err != nil {
		return civil.Date{}, apperrors.NewValidationError(field, "must be a date formatted YYYY-MM-DD")
	}
	return d, nil
}
