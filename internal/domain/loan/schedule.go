package loan

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

type InstallmentStatus string

const (
	InstallmentPending InstallmentStatus = "pending"
	InstallmentPartial InstallmentStatus = "partial"
	InstallmentPaid    InstallmentStatus = "paid"
	InstallmentOverdue InstallmentStatus = "overdue"
)

func (s InstallmentStatus) Valid() bool {
	switch s {
	case InstallmentPending, InstallmentPartial, InstallmentPaid, InstallmentOverdue:
		return true
	}
	return false
}

// Installment is one scheduled due date. The *Due fields and Balance are
// fixed at generation; the *Paid fields only ever grow.
type Installment struct {
	ID            int64
	LoanID        int64
	Number        int
	DueDate       civil.Date
	PrincipalDue  decimal.Decimal
	InterestDue   decimal.Decimal
	TotalDue      decimal.Decimal
	PrincipalPaid decimal.Decimal
	InterestPaid  decimal.Decimal
	TotalPaid     decimal.Decimal
	Balance       decimal.Decimal
	Status        InstallmentStatus
}

func (in Installment) IsPaid() bool {
	return in.Status == InstallmentPaid || in.TotalPaid.GreaterThanOrEqual(in.TotalDue)
}

func (in Installment) OutstandingInterest() decimal.Decimal {
	return floorZero(in.InterestDue.Sub(in.InterestPaid))
}

func (in Installment) OutstandingPrincipal() decimal.Decimal {
	return floorZero(in.PrincipalDue.Sub(in.PrincipalPaid))
}

type split struct {
	principal decimal.Decimal
	interest  decimal.Decimal
}

// GenerateSchedule turns loan terms into an ordered, 1-indexed installment plan.
func GenerateSchedule(terms LoanTerms) ([]Installment, error) {
	if err := terms.Validate(); err != nil {
		return nil, err
	}
	n := terms.NumberOfInstallments()
	if n < 1 {
		return nil, invalidTerms("numberOfInstallments", "must be at least 1")
	}

	var splits []split
	switch {
	case terms.isBullet():
		splits = bulletSplits(terms)
	case terms.AmortizationMethod == AmortizationEqualPrincipal:
		splits = equalPrincipalSplits(terms, n)
	case terms.InterestType == InterestFlat:
		splits = flatSplits(terms, n)
	default:
		splits = annuitySplits(terms, n)
	}

	schedule := make([]Installment, 0, len(splits))
	balance := round(terms.Principal)
	for i, s := range splits {
		balance = floorZero(balance.Sub(s.principal))
		schedule = append(schedule, Installment{
			Number:        i + 1,
			DueDate:       terms.dueDate(i + 1),
			PrincipalDue:  s.principal,
			InterestDue:   s.interest,
			TotalDue:      s.principal.Add(s.interest),
			PrincipalPaid: decimal.Zero,
			InterestPaid:  decimal.Zero,
			TotalPaid:     decimal.Zero,
			Balance:       balance,
			Status:        InstallmentPending,
		})
	}
	return schedule, nil
}

// EMI is the level periodic payment for an amortizing loan, rounded to cents.
func EMI(principal, periodicRate decimal.Decimal, n int) decimal.Decimal {
	if n < 1 {
		return decimal.Zero
	}
	count := decimal.NewFromInt(int64(n))
	if periodicRate.IsZero() {
		return round(principal.Div(count))
	}
	factor := compoundFactor(periodicRate, n)
	return round(principal.Mul(periodicRate).Mul(factor).Div(factor.Sub(decimal.NewFromInt(1))))
}

func annuitySplits(terms LoanTerms, n int) []split {
	r := terms.PeriodicRate()
	balance := round(terms.Principal)
	emi := EMI(balance, r, n)

	splits := make([]split, n)
	for i := 0; i < n; i++ {
		interest := round(balance.Mul(r))
		principal := minDecimal(floorZero(emi.Sub(interest)), balance)
		if i == n-1 {
			principal = balance
		}
		balance = balance.Sub(principal)
		splits[i] = split{principal: principal, interest: interest}
	}
	return splits
}

func flatSplits(terms LoanTerms, n int) []split {
	principal := round(terms.Principal)
	principals := evenShares(principal, n)
	interests := evenShares(flatInterest(terms), n)

	splits := make([]split, n)
	for i := range splits {
		splits[i] = split{principal: principals[i], interest: interests[i]}
	}
	return splits
}

func equalPrincipalSplits(terms LoanTerms, n int) []split {
	principals := evenShares(round(terms.Principal), n)

	var flat []decimal.Decimal
	if terms.InterestType == InterestFlat {
		flat = evenShares(flatInterest(terms), n)
	}

	r := terms.PeriodicRate()
	balance := round(terms.Principal)
	splits := make([]split, n)
	for i := range splits {
		interest := round(balance.Mul(r))
		if flat != nil {
			interest = flat[i]
		}
		splits[i] = split{principal: principals[i], interest: interest}
		balance = balance.Sub(principals[i])
	}
	return splits
}

func bulletSplits(terms LoanTerms) []split {
	principal := round(terms.Principal)
	interest := flatInterest(terms)
	if terms.InterestType == InterestCompound {
		monthly := terms.annualRate().Div(decimal.NewFromInt(12))
		months := int(terms.TermMonths().Ceil().IntPart())
		interest = round(principal.Mul(compoundFactor(monthly, months).Sub(decimal.NewFromInt(1))))
	}
	return []split{{principal: principal, interest: interest}}
}

// flatInterest is P × rate × termMonths/12, charged on the original principal.
func flatInterest(terms LoanTerms) decimal.Decimal {
	return round(round(terms.Principal).Mul(terms.annualRate()).Mul(terms.termYears()))
}

// evenShares splits total into n cent-rounded parts; the last part absorbs
// the rounding remainder and no part goes negative.
func evenShares(total decimal.Decimal, n int) []decimal.Decimal {
	share := round(total.Div(decimal.NewFromInt(int64(n))))
	shares := make([]decimal.Decimal, n)
	remaining := total
	for i := 0; i < n-1; i++ {
		shares[i] = minDecimal(share, remaining)
		remaining = remaining.Sub(shares[i])
	}
	shares[n-1] = remaining
	return shares
}

type ScheduleSummary struct {
	Installments   int
	TotalPrincipal decimal.Decimal
	TotalInterest  decimal.Decimal
	TotalDue       decimal.Decimal
	FirstDueDate   civil.Date
	MaturityDate   civil.Date
}

func Summarize(schedule []Installment) ScheduleSummary {
	summary := ScheduleSummary{
		Installments:   len(schedule),
		TotalPrincipal: decimal.Zero,
		TotalInterest:  decimal.Zero,
		TotalDue:       decimal.Zero,
	}
	for _, in := range schedule {
		summary.TotalPrincipal = summary.TotalPrincipal.Add(in.PrincipalDue)
		summary.TotalInterest = summary.TotalInterest.Add(in.InterestDue)
		summary.TotalDue = summary.TotalDue.Add(in.TotalDue)
	}
	if len(schedule) > 0 {
		summary.FirstDueDate = schedule[0].DueDate
		summary.MaturityDate = schedule[len(schedule)-1].DueDate
	}
	return summary
}
