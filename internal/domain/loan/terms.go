package loan

import (
	"fmt"

	"loan-engine/internal/pkg/apperrors"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

type InterestType string

const (
	InterestFlat            InterestType = "flat"
	InterestReducingBalance InterestType = "reducing_balance"
	InterestCompound        InterestType = "compound"
)

func (t InterestType) Valid() bool {
	switch t {
	case InterestFlat, InterestReducingBalance, InterestCompound:
		return true
	}
	return false
}

type TermUnit string

const (
	TermDays   TermUnit = "days"
	TermWeeks  TermUnit = "weeks"
	TermMonths TermUnit = "months"
	TermYears  TermUnit = "years"
)

func (u TermUnit) Valid() bool {
	switch u {
	case TermDays, TermWeeks, TermMonths, TermYears:
		return true
	}
	return false
}

// unitsPerYear is how many of this unit make up one year.
func (u TermUnit) unitsPerYear() decimal.Decimal {
	switch u {
	case TermDays:
		return decimal.NewFromInt(365)
	case TermWeeks:
		return decimal.NewFromInt(52)
	case TermMonths:
		return decimal.NewFromInt(12)
	case TermYears:
		return decimal.NewFromInt(1)
	}
	panic(fmt.Sprintf("loan: unhandled term unit %q", string(u)))
}

type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyBiweekly  Frequency = "biweekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyBullet    Frequency = "bullet"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly, FrequencyQuarterly, FrequencyBullet:
		return true
	}
	return false
}

// periodsPerYear is zero for bullet, which has no recurring period.
func (f Frequency) periodsPerYear() decimal.Decimal {
	switch f {
	case FrequencyDaily:
		return decimal.NewFromInt(365)
	case FrequencyWeekly:
		return decimal.NewFromInt(52)
	case FrequencyBiweekly:
		return decimal.NewFromInt(26)
	case FrequencyMonthly:
		return decimal.NewFromInt(12)
	case FrequencyQuarterly:
		return decimal.NewFromInt(4)
	case FrequencyBullet:
		return decimal.Zero
	}
	panic(fmt.Sprintf("loan: unhandled repayment frequency %q", string(f)))
}

type AmortizationMethod string

const (
	AmortizationEqualInstallments AmortizationMethod = "equal_installments"
	AmortizationEqualPrincipal    AmortizationMethod = "equal_principal"
	AmortizationBullet            AmortizationMethod = "bullet"
)

func (m AmortizationMethod) Valid() bool {
	switch m {
	case AmortizationEqualInstallments, AmortizationEqualPrincipal, AmortizationBullet:
		return true
	}
	return false
}

// LoanTerms are fixed when a loan is created and never change afterwards.
type LoanTerms struct {
	Principal          decimal.Decimal
	AnnualRatePercent  decimal.Decimal
	InterestType       InterestType
	TermValue          int
	TermUnit           TermUnit
	RepaymentFrequency Frequency
	AmortizationMethod AmortizationMethod
	GracePeriodDays    int
	StartDate          civil.Date
}

// InvalidTermsError reports the first structural problem found in LoanTerms.
type InvalidTermsError struct {
	Field  string
	Reason string
}

func (e *InvalidTermsError) Error() string {
	return fmt.Sprintf("invalid loan terms: %s %s", e.Field, e.Reason)
}

func (e *InvalidTermsError) Unwrap() error {
	return apperrors.ErrInvalidArgument
}

func invalidTerms(field, reason string) error {
	return &InvalidTermsError{Field: field, Reason: reason}
}

var (
	maxAnnualRatePercent = decimal.NewFromInt(100)
	maxTermYears         = decimal.NewFromInt(50)
)

func (t LoanTerms) Validate() error {
	if t.TermValue == 0 || t.TermUnit == "" {
		return invalidTerms("term", "requires both a value and a unit")
	}
	if t.TermValue < 0 {
		return invalidTerms("termValue", "must be at least 1")
	}
	if !t.TermUnit.Valid() {
		return invalidTerms("termUnit", fmt.Sprintf("%q is not one of days, weeks, months, years", string(t.TermUnit)))
	}
	if t.termYears().GreaterThan(maxTermYears) {
		return invalidTerms("termValue", fmt.Sprintf("term cannot exceed %s years", maxTermYears))
	}
	if !t.Principal.IsPositive() {
		return invalidTerms("principal", "must be greater than zero")
	}
	if t.AnnualRatePercent.IsNegative() || t.AnnualRatePercent.GreaterThan(maxAnnualRatePercent) {
		return invalidTerms("annualRatePercent", "must be between 0 and 100")
	}
	if !t.InterestType.Valid() {
		return invalidTerms("interestType", fmt.Sprintf("%q is not supported", string(t.InterestType)))
	}
	if !t.RepaymentFrequency.Valid() {
		return invalidTerms("repaymentFrequency", fmt.Sprintf("%q is not supported", string(t.RepaymentFrequency)))
	}
	if !t.AmortizationMethod.Valid() {
		return invalidTerms("amortizationMethod", fmt.Sprintf("%q is not supported", string(t.AmortizationMethod)))
	}
	if t.GracePeriodDays < 0 {
		return invalidTerms("gracePeriodDays", "cannot be negative")
	}
	if t.StartDate.IsZero() || !t.StartDate.IsValid() {
		return invalidTerms("startDate", "must be a valid calendar date")
	}
	return nil
}

func (t LoanTerms) isBullet() bool {
	return t.RepaymentFrequency == FrequencyBullet || t.AmortizationMethod == AmortizationBullet
}

// termYears is the term length expressed in years, exact to decimal precision.
func (t LoanTerms) termYears() decimal.Decimal {
	return decimal.NewFromInt(int64(t.TermValue)).Div(t.TermUnit.unitsPerYear())
}

// TermMonths is the term length in (possibly fractional) months.
func (t LoanTerms) TermMonths() decimal.Decimal {
	return decimal.NewFromInt(int64(t.TermValue)).Mul(decimal.NewFromInt(12)).Div(t.TermUnit.unitsPerYear())
}

// NumberOfInstallments reconciles the term length against the repayment frequency.
func (t LoanTerms) NumberOfInstallments() int {
	if t.isBullet() {
		return 1
	}
	periods := decimal.NewFromInt(int64(t.TermValue)).
		Mul(t.RepaymentFrequency.periodsPerYear()).
		Div(t.TermUnit.unitsPerYear())
	return int(periods.Ceil().IntPart())
}

func (t LoanTerms) annualRate() decimal.Decimal {
	return t.AnnualRatePercent.Div(decimal.NewFromInt(100))
}

// PeriodicRate is the interest rate applied per installment period. Bullet
// repayment uses the whole term-adjusted rate.
func (t LoanTerms) PeriodicRate() decimal.Decimal {
	if t.isBullet() {
		return t.annualRate().Mul(t.termYears())
	}
	return t.annualRate().Div(t.RepaymentFrequency.periodsPerYear())
}
