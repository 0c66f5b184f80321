package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordPayment(t *testing.T) {
	Loans.PaymentsTotal.Reset()

	RecordPayment("success")
	RecordPayment("success")
	RecordPayment("failure_amount")

	assert.Equal(t, 2.0, testutil.ToFloat64(Loans.PaymentsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(Loans.PaymentsTotal.WithLabelValues("failure_amount")))
}

func TestRecordAllocation(t *testing.T) {
	Loans.AllocatedAmount.Reset()
	before := testutil.ToFloat64(Loans.UnallocatedAmount)

	RecordAllocation(0, 10, 5000, 2000, 0)
	RecordAllocation(0, 0, 0, 150, 25.5)

	assert.Equal(t, 5000.0, testutil.ToFloat64(Loans.AllocatedAmount.WithLabelValues("interest")))
	assert.Equal(t, 2150.0, testutil.ToFloat64(Loans.AllocatedAmount.WithLabelValues("principal")))
	assert.Equal(t, 10.0, testutil.ToFloat64(Loans.AllocatedAmount.WithLabelValues("fees")))
	assert.Equal(t, before+25.5, testutil.ToFloat64(Loans.UnallocatedAmount))
}

func TestSetLoansByDelinquency(t *testing.T) {
	Loans.LoansByDelinquency.Reset()

	SetLoansByDelinquency(map[string]int{"current": 7, "default": 2})

	assert.Equal(t, 7.0, testutil.ToFloat64(Loans.LoansByDelinquency.WithLabelValues("current")))
	assert.Equal(t, 2.0, testutil.ToFloat64(Loans.LoansByDelinquency.WithLabelValues("default")))
}

func TestRecordDBQuery(t *testing.T) {
	DB.QueryDuration.Reset()

	RecordDBQuery("get_loan", "success", 20*time.Millisecond)

	assert.Equal(t, 1, testutil.CollectAndCount(DB.QueryDuration))
}
