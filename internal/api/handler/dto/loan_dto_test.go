package dto

import (
	"testing"
	"time"

	"loan-engine/internal/domain/loan"
	"loan-engine/internal/pkg/apperrors"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTermsRequest() LoanTermsRequest {
	return LoanTermsRequest{
		Principal:          "5000.50",
		AnnualRatePercent:  "18",
		InterestType:       "flat",
		TermValue:          26,
		TermUnit:           "weeks",
		RepaymentFrequency: "weekly",
		AmortizationMethod: "equal_installments",
		GracePeriodDays:    7,
		StartDate:          "2025-03-03",
	}
}

func TestLoanTermsRequestToDomain(t *testing.T) {
	req := validTermsRequest()

	terms, err := req.ToDomain()
	require.NoError(t, err)

	assert.True(t, terms.Principal.Equal(decimal.RequireFromString("5000.50")))
	assert.True(t, terms.AnnualRatePercent.Equal(decimal.NewFromInt(18)))
	assert.Equal(t, loan.InterestFlat, terms.InterestType)
	assert.Equal(t, loan.TermWeeks, terms.TermUnit)
	assert.Equal(t, loan.FrequencyWeekly, terms.RepaymentFrequency)
	assert.Equal(t, 7, terms.GracePeriodDays)
	assert.Equal(t, civil.Date{Year: 2025, Month: time.March, Day: 3}, terms.StartDate)
	assert.NoError(t, terms.Validate())
}

func TestLoanTermsRequestToDomainErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*LoanTermsRequest)
		field  string
	}{
		{"empty principal", func(r *LoanTermsRequest) { r.Principal = "" }, "principal"},
		{"float-ish principal", func(r *LoanTermsRequest) { r.Principal = "1e3x" }, "principal"},
		{"bad rate", func(r *LoanTermsRequest) { r.AnnualRatePercent = "twelve" }, "annualRatePercent"},
		{"bad date", func(r *LoanTermsRequest) { r.StartDate = "2025-02-30x" }, "startDate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validTermsRequest()
			tt.mutate(&req)

			_, err := req.ToDomain()

			require.ErrorIs(t, err, apperrors.ErrValidation)
			var vErr *apperrors.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestRecordPaymentRequestToDomain(t *testing.T) {
	paidAt := time.Date(2025, 4, 1, 8, 30, 0, 0, time.UTC)
	req := RecordPaymentRequest{Amount: " 250.75 ", Method: "mobile_money", Reference: " MM-1 ", PaidAt: &paidAt}

	got, err := req.ToDomain(9, "teller-2")
	require.NoError(t, err)

	assert.Equal(t, int64(9), got.LoanID)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("250.75")))
	assert.Equal(t, loan.MethodMobileMoney, got.Method)
	assert.Equal(t, "MM-1", got.Reference)
	assert.Equal(t, "teller-2", got.RecordedBy)
	assert.Equal(t, paidAt, got.PaidAt)

	req.PaidAt = nil
	got, err = req.ToDomain(9, "teller-2")
	require.NoError(t, err)
	assert.True(t, got.PaidAt.IsZero(), "service fills in the time when absent")
}

func TestNewLoanResponseFormatsMoney(t *testing.T) {
	terms := validTermsRequest()
	domainTerms, err := terms.ToDomain()
	require.NoError(t, err)
	ln, err := loan.NewLoan(3, domainTerms, decimal.RequireFromString("50"))
	require.NoError(t, err)

	resp := NewLoanResponse(ln, false)

	assert.Equal(t, "5000.50", resp.Terms.Principal)
	assert.Equal(t, "18", resp.Terms.AnnualRatePercent)
	assert.Equal(t, "2025-03-03", resp.Terms.StartDate)
	assert.Equal(t, "50.00", resp.Balances.Fees)
	assert.Nil(t, resp.Schedule)
	require.NotNil(t, resp.Summary)
	assert.Equal(t, 26, resp.Summary.Installments)
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "0.00", Money(decimal.Decimal{}))
	assert.Equal(t, "10.50", Money(decimal.RequireFromString("10.5")))
	assert.Equal(t, "-3.00", Money(decimal.NewFromInt(-3)))
}
