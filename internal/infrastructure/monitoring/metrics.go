package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type HTTPMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

type DBMetrics struct {
	QueryDuration *prometheus.HistogramVec
}

type LoanMetrics struct {
	PaymentsTotal       *prometheus.CounterVec
	AllocatedAmount     *prometheus.CounterVec
	UnallocatedAmount   prometheus.Counter
	SchedulesGenerated  *prometheus.CounterVec
	LoansByDelinquency  *prometheus.GaugeVec
	DelinquencyRunTotal *prometheus.CounterVec
}

var (
	HTTP = HTTPMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loan_engine_http_requests_total",
				Help: "Total number of HTTP requests received.",
			},
			[]string{"method", "path", "code"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loan_engine_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "code"},
		),
	}

	DB = DBMetrics{
		QueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loan_engine_db_query_duration_seconds",
				Help:    "Histogram of database query latencies.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"query_name", "status"},
		),
	}

	Loans = LoanMetrics{
		PaymentsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loan_engine_payments_total",
				Help: "Payments processed, by outcome.",
			},
			[]string{"status"},
		),
		AllocatedAmount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loan_engine_payment_allocated_amount_total",
				Help: "Money allocated from payments, by balance bucket.",
			},
			[]string{"bucket"},
		),
		UnallocatedAmount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "loan_engine_payment_unallocated_amount_total",
				Help: "Money received above the outstanding balance and left unallocated.",
			},
		),
		SchedulesGenerated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loan_engine_schedules_generated_total",
				Help: "Repayment schedules generated, by amortization method.",
			},
			[]string{"method"},
		),
		LoansByDelinquency: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "loan_engine_loans_by_delinquency",
				Help: "Open loans per delinquency bucket as of the last batch run.",
			},
			[]string{"status"},
		),
		DelinquencyRunTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loan_engine_delinquency_refresh_total",
				Help: "Loans processed by the delinquency batch job, by outcome.",
			},
			[]string{"outcome"},
		),
	}
)

func RecordHTTPRequest(method, path, code string, duration time.Duration) {
	HTTP.RequestsTotal.WithLabelValues(method, path, code).Inc()
	HTTP.RequestDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
}

func RecordDBQuery(queryName, status string, duration time.Duration) {
	DB.QueryDuration.WithLabelValues(queryName, status).Observe(duration.Seconds())
}

func RecordPayment(status string) {
	Loans.PaymentsTotal.WithLabelValues(status).Inc()
}

// RecordAllocation takes amounts as float64; metrics do not need cent precision.
func RecordAllocation(penalty, fees, interest, principal, unallocated float64) {
	Loans.AllocatedAmount.WithLabelValues("penalty").Add(penalty)
	Loans.AllocatedAmount.WithLabelValues("fees").Add(fees)
	Loans.AllocatedAmount.WithLabelValues("interest").Add(interest)
	Loans.AllocatedAmount.WithLabelValues("principal").Add(principal)
	if unallocated > 0 {
		Loans.UnallocatedAmount.Add(unallocated)
	}
}

func RecordScheduleGenerated(method string) {
	Loans.SchedulesGenerated.WithLabelValues(method).Inc()
}

func SetLoansByDelinquency(counts map[string]int) {
	for status, n := range counts {
		Loans.LoansByDelinquency.WithLabelValues(status).Set(float64(n))
	}
}

func RecordDelinquencyRefresh(outcome string, n int) {
	Loans.DelinquencyRunTotal.WithLabelValues(outcome).Add(float64(n))
}
