// Package eventtest provides a testify mock of event.EventPublisher.
package eventtest

import (
	"context"

	"loan-engine/internal/event"

	"github.com/stretchr/testify/mock"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishCustomerCreated(ctx context.Context, evt event.CustomerCreatedEvent) error {
	return m.Called(ctx, evt).Error(0)
}

func (m *MockPublisher) PublishCustomerUpdated(ctx context.Context, evt event.CustomerUpdatedEvent) error {
	return m.Called(ctx, evt).Error(0)
}

func (m *MockPublisher) PublishLoanCreated(ctx context.Context, evt event.LoanCreatedEvent) error {
	return m.Called(ctx, evt).Error(0)
}

func (m *MockPublisher) PublishLoanDisbursed(ctx context.Context, evt event.LoanDisbursedEvent) error {
	return m.Called(ctx, evt).Error(0)
}

func (m *MockPublisher) PublishPaymentRecorded(ctx context.Context, evt event.PaymentRecordedEvent) error {
	return m.Called(ctx, evt).Error(0)
}

func (m *MockPublisher) PublishLoanDelinquencyChanged(ctx context.Context, evt event.LoanDelinquencyChangedEvent) error {
	return m.Called(ctx, evt).Error(0)
}

var _ event.EventPublisher = (*MockPublisher)(nil)
