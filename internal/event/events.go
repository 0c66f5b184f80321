package event

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoutingKeyCustomerCreated        = "customer.created"
	RoutingKeyCustomerUpdated        = "customer.updated"
	RoutingKeyLoanCreated            = "loan.created"
	RoutingKeyLoanDisbursed          = "loan.disbursed"
	RoutingKeyPaymentRecorded        = "payment.recorded"
	RoutingKeyLoanDelinquencyChanged = "loan.delinquency.changed"
	publisherAppID                   = "loan-engine"
)

type EventPublisher interface {
	PublishCustomerCreated(ctx context.Context, event CustomerCreatedEvent) error
	PublishCustomerUpdated(ctx context.Context, event CustomerUpdatedEvent) error
	PublishLoanCreated(ctx context.Context, event LoanCreatedEvent) error
	PublishLoanDisbursed(ctx context.Context, event LoanDisbursedEvent) error
	PublishPaymentRecorded(ctx context.Context, event PaymentRecordedEvent) error
	PublishLoanDelinquencyChanged(ctx context.Context, event LoanDelinquencyChangedEvent) error
}

type CustomerEventPayload struct {
	CustomerID int64     `json:"customerId"`
	Name       string    `json:"name"`
	Email      string    `json:"email,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Address    string    `json:"address"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type CustomerCreatedEvent struct {
	Timestamp time.Time            `json:"timestamp"`
	Payload   CustomerEventPayload `json:"payload"`
}

type CustomerUpdatedEvent struct {
	Timestamp time.Time            `json:"timestamp"`
	Payload   CustomerEventPayload `json:"payload"`
}

type LoanCreatedEvent struct {
	LoanID       int64           `json:"loanId"`
	CustomerID   int64           `json:"customerId"`
	Principal    decimal.Decimal `json:"principal"`
	TotalDue     decimal.Decimal `json:"totalDue"`
	Installments int             `json:"installments"`
	FirstDueDate string          `json:"firstDueDate"`
	MaturityDate string          `json:"maturityDate"`
	CreatedBy    string          `json:"createdBy"`
	Timestamp    time.Time       `json:"timestamp"`
}

type LoanDisbursedEvent struct {
	LoanID      int64     `json:"loanId"`
	CustomerID  int64     `json:"customerId"`
	DisbursedBy string    `json:"disbursedBy"`
	Timestamp   time.Time `json:"timestamp"`
}

type PaymentRecordedEvent struct {
	PaymentID   string          `json:"paymentId"`
	LoanID      int64           `json:"loanId"`
	Amount      decimal.Decimal `json:"amount"`
	Penalty     decimal.Decimal `json:"penalty"`
	Fees        decimal.Decimal `json:"fees"`
	Interest    decimal.Decimal `json:"interest"`
	Principal   decimal.Decimal `json:"principal"`
	Unallocated decimal.Decimal `json:"unallocated"`
	LoanStatus  string          `json:"loanStatus"`
	RecordedBy  string          `json:"recordedBy"`
	Timestamp   time.Time       `json:"timestamp"`
}

type LoanDelinquencyChangedEvent struct {
	LoanID         int64     `json:"loanId"`
	CustomerID     int64     `json:"customerId"`
	OldStatus      string    `json:"oldStatus"`
	NewStatus      string    `json:"newStatus"`
	DaysPastDue    int       `json:"daysPastDue"`
	MissedPayments int       `json:"missedPayments"`
	Timestamp      time.Time `json:"timestamp"`
}

// NoopPublisher drops every event. It stands in when RabbitMQ is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishCustomerCreated(context.Context, CustomerCreatedEvent) error { return nil }

func (NoopPublisher) PublishCustomerUpdated(context.Context, CustomerUpdatedEvent) error { return nil }

func (NoopPublisher) PublishLoanCreated(context.Context, LoanCreatedEvent) error { return nil }

func (NoopPublisher) PublishLoanDisbursed(context.Context, LoanDisbursedEvent) error { return nil }

func (NoopPublisher) PublishPaymentRecorded(context.Context, PaymentRecordedEvent) error { return nil }

func (NoopPublisher) PublishLoanDelinquencyChanged(context.Context, LoanDelinquencyChangedEvent) error {
	return nil
}

var _ EventPublisher = NoopPublisher{}
