package customer

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockCustomerRepository struct {
	mock.Mock
}

func (_m *MockCustomerRepository) Save(ctx context.Context, customer *Customer) error {
	ret := _m.Called(ctx, customer)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, *Customer) error); ok {
		r0 = rf(ctx, customer)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

func (_m *MockCustomerRepository) FindByID(ctx context.Context, customerID int64) (*Customer, error) {
	ret := _m.Called(ctx, customerID)

	var r0 *Customer
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*Customer)
	}

	return r0, ret.Error(1)
}

func (_m *MockCustomerRepository) FindAll(ctx context.Context, activeOnly bool) ([]*Customer, error) {
	ret := _m.Called(ctx, activeOnly)

	var r0 []*Customer
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]*Customer)
	}

	return r0, ret.Error(1)
}

func (_m *MockCustomerRepository) SetActiveStatus(ctx context.Context, customerID int64, isActive bool) error {
	ret := _m.Called(ctx, customerID, isActive)
	return ret.Error(0)
}

func (_m *MockCustomerRepository) HasOpenLoans(ctx context.Context, customerID int64) (bool, error) {
	ret := _m.Called(ctx, customerID)
	return ret.Bool(0), ret.Error(1)
}

var _ CustomerRepository = (*MockCustomerRepository)(nil)
