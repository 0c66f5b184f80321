package loan

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

// addMonths moves d forward by n calendar months, clamping the day to the
// last day of the target month (Jan 31 + 1 month = Feb 28/29).
func addMonths(d civil.Date, n int) civil.Date {
	total := int(d.Month) - 1 + n
	year := d.Year + total/12
	month := time.Month(total%12 + 1)
	day := d.Day
	if last := daysIn(year, month); day > last {
		day = last
	}
	return civil.Date{Year: year, Month: month, Day: day}
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// advance returns the date i periods after base. Monthly steps are always taken
// from base so a clamped February does not drag later months to the 28th.
func (f Frequency) advance(base civil.Date, i int) civil.Date {
	switch f {
	case FrequencyDaily:
		return base.AddDays(i)
	case FrequencyWeekly:
		return base.AddDays(7 * i)
	case FrequencyBiweekly:
		return base.AddDays(14 * i)
	case FrequencyMonthly:
		return addMonths(base, i)
	case FrequencyQuarterly:
		return addMonths(base, 3*i)
	case FrequencyBullet:
		return base
	}
	panic(fmt.Sprintf("loan: unhandled repayment frequency %q", string(f)))
}

// addTerm moves base forward by n units of the term's own unit.
func (u TermUnit) addTerm(base civil.Date, n int) civil.Date {
	switch u {
	case TermDays:
		return base.AddDays(n)
	case TermWeeks:
		return base.AddDays(7 * n)
	case TermMonths:
		return addMonths(base, n)
	case TermYears:
		return addMonths(base, 12*n)
	}
	panic(fmt.Sprintf("loan: unhandled term unit %q", string(u)))
}

// FirstDueBase is the anchor date from which installment due dates are counted.
func (t LoanTerms) FirstDueBase() civil.Date {
	return t.StartDate.AddDays(t.GracePeriodDays)
}

func (t LoanTerms) dueDate(number int) civil.Date {
	base := t.FirstDueBase()
	if t.isBullet() {
		return t.TermUnit.addTerm(base, t.TermValue)
	}
	return t.RepaymentFrequency.advance(base, number)
}
