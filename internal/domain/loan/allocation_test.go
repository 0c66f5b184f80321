package loan

import (
	"testing"

	"loan-engine/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateWaterfall(t *testing.T) {
	balances := NewBalances(dec("100000"), dec("5000"), decimal.Zero, decimal.Zero)

	alloc, err := Allocate(dec("7000"), balances)
	require.NoError(t, err)

	assertDecimal(t, "0", alloc.Penalty)
	assertDecimal(t, "0", alloc.Fees)
	assertDecimal(t, "5000", alloc.Interest)
	assertDecimal(t, "2000", alloc.Principal)

	after := balances.Apply(alloc)
	assertDecimal(t, "0", after.Interest)
	assertDecimal(t, "98000", after.Principal)
	assertDecimal(t, "98000", after.Total)
}

func TestAllocatePenaltyFirst(t *testing.T) {
	balances := NewBalances(dec("1000"), dec("100"), dec("50"), dec("300"))

	alloc, err := Allocate(dec("120"), balances)
	require.NoError(t, err)

	assertDecimal(t, "120", alloc.Penalty)
	assert.True(t, alloc.Fees.IsZero())
	assert.True(t, alloc.Interest.IsZero())
	assert.True(t, alloc.Principal.IsZero())
}

func TestAllocateOrderAcrossBuckets(t *testing.T) {
	balances := NewBalances(dec("1000"), dec("100"), dec("50"), dec("300"))

	alloc, err := Allocate(dec("420.50"), balances)
	require.NoError(t, err)

	assertDecimal(t, "300", alloc.Penalty)
	assertDecimal(t, "50", alloc.Fees)
	assertDecimal(t, "70.50", alloc.Interest)
	assertDecimal(t, "0", alloc.Principal)
}

func TestAllocateConservation(t *testing.T) {
	balances := NewBalances(dec("1000"), dec("100"), dec("50"), dec("300"))
	amounts := []string{"0", "0.01", "299.99", "350", "1449.99", "1450", "1450.01", "5000"}

	for _, amount := range amounts {
		alloc, err := Allocate(dec(amount), balances)
		require.NoError(t, err)

		assert.True(t, alloc.Total().LessThanOrEqual(dec(amount)), "amount %s", amount)
		if dec(amount).LessThanOrEqual(balances.Total) {
			assert.True(t, alloc.Total().Equal(dec(amount)), "amount %s fully allocated", amount)
		} else {
			assert.True(t, alloc.Total().Equal(balances.Total), "amount %s capped at balance", amount)
		}
	}
}

func TestAllocateOverpaymentLeavesExcess(t *testing.T) {
	balances := NewBalances(dec("200"), dec("20"), decimal.Zero, decimal.Zero)

	alloc, err := Allocate(dec("250"), balances)
	require.NoError(t, err)

	assertDecimal(t, "220", alloc.Total())
	assertDecimal(t, "30", Unallocated(dec("250"), alloc))
	assert.True(t, balances.Apply(alloc).Total.IsZero())
}

func TestAllocateRejectsNegativeAmount(t *testing.T) {
	_, err := Allocate(dec("-1"), NewBalances(dec("10"), decimal.Zero, decimal.Zero, decimal.Zero))
	assert.ErrorIs(t, err, apperrors.ErrInvalidPaymentAmount)
}

func TestAllocateDropsSubCentDigits(t *testing.T) {
	amount := dec("10.005")

	alloc, err := Allocate(amount, NewBalances(dec("1000"), decimal.Zero, decimal.Zero, decimal.Zero))

	require.NoError(t, err)
	assertDecimal(t, "10.00", alloc.Principal)
	assert.True(t, alloc.Total().LessThanOrEqual(amount), "allocated %s of %s", alloc.Total(), amount)
	assertDecimal(t, "0", Unallocated(amount, alloc))
}

func TestBalancesApplyFloorsAtZero(t *testing.T) {
	balances := NewBalances(dec("10"), dec("5"), dec("1"), dec("2"))

	after := balances.Apply(PaymentAllocation{
		Penalty:   dec("3"),
		Fees:      dec("1"),
		Interest:  dec("9"),
		Principal: dec("4"),
	})

	assertDecimal(t, "0", after.Penalty)
	assertDecimal(t, "0", after.Fees)
	assertDecimal(t, "0", after.Interest)
	assertDecimal(t, "6", after.Principal)
	assertDecimal(t, "6", after.Total)
}

func TestBalancesCharge(t *testing.T) {
	balances := NewBalances(dec("1000"), dec("100"), decimal.Zero, decimal.Zero)

	balances = balances.Charge(Charge{Kind: ChargePenalty, Amount: dec("25.50")})
	balances = balances.Charge(Charge{Kind: ChargeFee, Amount: dec("10")})

	assertDecimal(t, "25.50", balances.Penalty)
	assertDecimal(t, "10", balances.Fees)
	assertDecimal(t, "1135.50", balances.Total)
}

func TestChargeValidate(t *testing.T) {
	assert.NoError(t, Charge{Kind: ChargeFee, Amount: dec("1")}.Validate())
	assert.ErrorIs(t, Charge{Kind: "rebate", Amount: dec("1")}.Validate(), apperrors.ErrValidation)
	assert.ErrorIs(t, Charge{Kind: ChargePenalty, Amount: decimal.Zero}.Validate(), apperrors.ErrValidation)
}

func threeInstallments() []Installment {
	schedule := make([]Installment, 3)
	for i := range schedule {
		schedule[i] = Installment{
			Number:        i + 1,
			DueDate:       date(2025, i+2, 1),
			PrincipalDue:  dec("100"),
			InterestDue:   dec("10"),
			TotalDue:      dec("110"),
			PrincipalPaid: decimal.Zero,
			InterestPaid:  decimal.Zero,
			TotalPaid:     decimal.Zero,
			Status:        InstallmentPending,
		}
	}
	return schedule
}

func TestApplyToSchedule(t *testing.T) {
	schedule := threeInstallments()

	touched := ApplyToSchedule(schedule, dec("150"))

	assert.Equal(t, []int{0, 1}, touched)
	assert.Equal(t, InstallmentPaid, schedule[0].Status)
	assertDecimal(t, "110", schedule[0].TotalPaid)

	assert.Equal(t, InstallmentPartial, schedule[1].Status)
	assertDecimal(t, "10", schedule[1].InterestPaid)
	assertDecimal(t, "30", schedule[1].PrincipalPaid)
	assertDecimal(t, "40", schedule[1].TotalPaid)

	assert.Equal(t, InstallmentPending, schedule[2].Status)

	touched = ApplyToSchedule(schedule, dec("70"))
	assert.Equal(t, []int{1}, touched)
	assert.Equal(t, InstallmentPaid, schedule[1].Status)
	assertDecimal(t, "110", schedule[1].TotalPaid)
}

func TestApplyToScheduleNeverOverpaysInstallments(t *testing.T) {
	schedule := threeInstallments()

	touched := ApplyToSchedule(schedule, dec("1000"))

	assert.Equal(t, []int{0, 1, 2}, touched)
	for _, in := range schedule {
		assert.Equal(t, InstallmentPaid, in.Status)
		assert.True(t, in.TotalPaid.Equal(in.TotalDue))
	}
	assert.Empty(t, ApplyToSchedule(schedule, dec("5")))
}

func TestApplyToScheduleInterestBeforePrincipal(t *testing.T) {
	schedule := threeInstallments()

	ApplyToSchedule(schedule, dec("6"))

	assertDecimal(t, "6", schedule[0].InterestPaid)
	assertDecimal(t, "0", schedule[0].PrincipalPaid)
	assert.Equal(t, InstallmentPartial, schedule[0].Status)
}

func TestNextStatus(t *testing.T) {
	open := NewBalances(dec("100"), decimal.Zero, decimal.Zero, decimal.Zero)
	settled := NewBalances(decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero)
	paid := PaymentAllocation{Principal: dec("10")}

	assert.Equal(t, StatusActive, NextStatus(StatusDisbursed, open, paid))
	assert.Equal(t, StatusDisbursed, NextStatus(StatusDisbursed, open, PaymentAllocation{}))
	assert.Equal(t, StatusActive, NextStatus(StatusActive, open, paid))
	assert.Equal(t, StatusClosed, NextStatus(StatusActive, settled, paid))
	assert.Equal(t, StatusClosed, NextStatus(StatusDisbursed, settled, paid))
}
