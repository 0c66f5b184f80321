package loan

import (
	"fmt"

	"loan-engine/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
)

// LoanBalances is the outstanding amount per bucket. Total is always the sum
// of the other four and nothing here goes below zero.
type LoanBalances struct {
	Principal decimal.Decimal
	Interest  decimal.Decimal
	Fees      decimal.Decimal
	Penalty   decimal.Decimal
	Total     decimal.Decimal
}

func NewBalances(principal, interest, fees, penalty decimal.Decimal) LoanBalances {
	b := LoanBalances{
		Principal: round(floorZero(principal)),
		Interest:  round(floorZero(interest)),
		Fees:      round(floorZero(fees)),
		Penalty:   round(floorZero(penalty)),
	}
	b.Total = b.sum()
	return b
}

// InitialBalances seeds a new loan's balances from its schedule totals plus
// any upfront fee.
func InitialBalances(schedule []Installment, upfrontFee decimal.Decimal) LoanBalances {
	summary := Summarize(schedule)
	return NewBalances(summary.TotalPrincipal, summary.TotalInterest, upfrontFee, decimal.Zero)
}

func (b LoanBalances) sum() decimal.Decimal {
	return b.Principal.Add(b.Interest).Add(b.Fees).Add(b.Penalty)
}

// Apply subtracts an allocation bucket by bucket, flooring each at zero.
func (b LoanBalances) Apply(a PaymentAllocation) LoanBalances {
	return NewBalances(
		b.Principal.Sub(a.Principal),
		b.Interest.Sub(a.Interest),
		b.Fees.Sub(a.Fees),
		b.Penalty.Sub(a.Penalty),
	)
}

type ChargeKind string

const (
	ChargeFee     ChargeKind = "fee"
	ChargePenalty ChargeKind = "penalty"
)

func (k ChargeKind) Valid() bool {
	switch k {
	case ChargeFee, ChargePenalty:
		return true
	}
	return false
}

type Charge struct {
	Kind   ChargeKind
	Amount decimal.Decimal
	Reason string
}

func (c Charge) Validate() error {
	if !c.Kind.Valid() {
		return apperrors.NewValidationError("kind", fmt.Sprintf("%q is not one of fee, penalty", string(c.Kind)))
	}
	if !c.Amount.IsPositive() {
		return apperrors.NewValidationError("amount", "must be greater than zero")
	}
	return nil
}

// Charge adds a fee or penalty to the matching bucket.
func (b LoanBalances) Charge(c Charge) LoanBalances {
	switch c.Kind {
	case ChargeFee:
		return NewBalances(b.Principal, b.Interest, b.Fees.Add(c.Amount), b.Penalty)
	case ChargePenalty:
		return NewBalances(b.Principal, b.Interest, b.Fees, b.Penalty.Add(c.Amount))
	}
	panic(fmt.Sprintf("loan: unhandled charge kind %q", string(c.Kind)))
}

type PaymentAllocation struct {
	Penalty   decimal.Decimal
	Fees      decimal.Decimal
	Interest  decimal.Decimal
	Principal decimal.Decimal
}

func (a PaymentAllocation) Total() decimal.Decimal {
	return a.Penalty.Add(a.Fees).Add(a.Interest).Add(a.Principal)
}

// Scheduled is the part of the allocation that settles installment amounts.
func (a PaymentAllocation) Scheduled() decimal.Decimal {
	return a.Interest.Add(a.Principal)
}

// Allocate splits amount over the balances in the fixed order penalty, fees,
// interest, principal. Whatever exceeds the total balance stays unallocated.
// Sub-cent digits are dropped, never rounded up.
func Allocate(amount decimal.Decimal, balances LoanBalances) (PaymentAllocation, error) {
	if amount.IsNegative() {
		return PaymentAllocation{}, fmt.Errorf("%w: amount %s is negative", apperrors.ErrInvalidPaymentAmount, amount.StringFixed(moneyPlaces))
	}

	remaining := truncate(amount)
	take := func(bucket decimal.Decimal) decimal.Decimal {
		portion := minDecimal(remaining, floorZero(bucket))
		remaining = remaining.Sub(portion)
		return portion
	}

	alloc := PaymentAllocation{}
	alloc.Penalty = take(balances.Penalty)
	alloc.Fees = take(balances.Fees)
	alloc.Interest = take(balances.Interest)
	alloc.Principal = take(balances.Principal)
	return alloc, nil
}

// Unallocated is the part of amount the allocation did not place.
func Unallocated(amount decimal.Decimal, alloc PaymentAllocation) decimal.Decimal {
	return floorZero(truncate(amount).Sub(alloc.Total()))
}

// ApplyToSchedule pays installments in order, interest before principal, until
// amount runs out. It returns the indexes of installments it changed.
func ApplyToSchedule(schedule []Installment, amount decimal.Decimal) []int {
	remaining := round(amount)
	var touched []int
	for i := range schedule {
		if !remaining.IsPositive() {
			break
		}
		in := &schedule[i]
		if in.IsPaid() {
			continue
		}

		interest := minDecimal(remaining, in.OutstandingInterest())
		remaining = remaining.Sub(interest)
		principal := minDecimal(remaining, in.OutstandingPrincipal())
		remaining = remaining.Sub(principal)
		if interest.IsZero() && principal.IsZero() {
			continue
		}

		in.InterestPaid = in.InterestPaid.Add(interest)
		in.PrincipalPaid = in.PrincipalPaid.Add(principal)
		in.TotalPaid = in.InterestPaid.Add(in.PrincipalPaid)
		switch {
		case in.TotalPaid.GreaterThanOrEqual(in.TotalDue):
			in.Status = InstallmentPaid
		case in.TotalPaid.IsPositive():
			in.Status = InstallmentPartial
		}
		touched = append(touched, i)
	}
	return touched
}
