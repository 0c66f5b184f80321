package loan

import (
	"cloud.google.com/go/civil"
)

type DelinquencyStatus string

const (
	DelinquencyCurrent      DelinquencyStatus = "current"
	DelinquencyEarlyArrears DelinquencyStatus = "early_arrears"
	DelinquencyLateArrears  DelinquencyStatus = "late_arrears"
	DelinquencyDefault      DelinquencyStatus = "default"
)

// DelinquencyStatuses lists every bucket from least to most severe.
var DelinquencyStatuses = []DelinquencyStatus{
	DelinquencyCurrent,
	DelinquencyEarlyArrears,
	DelinquencyLateArrears,
	DelinquencyDefault,
}

func (s DelinquencyStatus) Valid() bool {
	switch s {
	case DelinquencyCurrent, DelinquencyEarlyArrears, DelinquencyLateArrears, DelinquencyDefault:
		return true
	}
	return false
}

type DelinquencyState struct {
	DaysPastDue    int
	Status         DelinquencyStatus
	MissedPayments int
}

const (
	earlyArrearsMaxDays = 30
	lateArrearsMaxDays  = 90
	daysPerMissed       = 30
)

// Classify buckets days past due. It keeps no state; callers overwrite what
// they stored previously with the result.
func Classify(daysPastDue int) DelinquencyState {
	if daysPastDue <= 0 {
		return DelinquencyState{Status: DelinquencyCurrent}
	}

	state := DelinquencyState{
		DaysPastDue:    daysPastDue,
		MissedPayments: (daysPastDue + daysPerMissed - 1) / daysPerMissed,
	}
	switch {
	case daysPastDue <= earlyArrearsMaxDays:
		state.Status = DelinquencyEarlyArrears
		state.MissedPayments = 1
	case daysPastDue <= lateArrearsMaxDays:
		state.Status = DelinquencyLateArrears
	default:
		state.Status = DelinquencyDefault
	}
	return state
}

// DaysPastDue counts days from the oldest unpaid installment's due date to asOf.
func DaysPastDue(schedule []Installment, asOf civil.Date) int {
	for _, in := range schedule {
		if in.IsPaid() {
			continue
		}
		if in.DueDate.Before(asOf) {
			return asOf.DaysSince(in.DueDate)
		}
		return 0
	}
	return 0
}

// MarkOverdue flags unpaid installments whose due date is before asOf.
func MarkOverdue(schedule []Installment, asOf civil.Date) []int {
	var touched []int
	for i := range schedule {
		in := &schedule[i]
		if in.IsPaid() || in.Status == InstallmentOverdue || !in.DueDate.Before(asOf) {
			continue
		}
		in.Status = InstallmentOverdue
		touched = append(touched, i)
	}
	return touched
}
