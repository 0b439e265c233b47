// Package mocks provides test doubles for the ipapi client.
package mocks

import (
	"context"

	ipapi "github.com/sells-group/mailcheck/pkg/ipapi"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// Lookup provides a mock function with given fields: ctx
func (_m *MockClient) Lookup(ctx context.Context) (*ipapi.Location, error) {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for Lookup")
	}

	var r0 *ipapi.Location
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context) (*ipapi.Location, error)); ok {
		return rf(ctx)
	}
	if rf, ok := ret.Get(0).(func(context.Context) *ipapi.Location); ok {
		r0 = rf(ctx)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*ipapi.Location)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context) error); ok {
		r1 = rf(ctx)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockClient creates a new instance of MockClient.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	mock := &MockClient{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
