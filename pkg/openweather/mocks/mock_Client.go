// Package mocks provides test doubles for the openweather client.
package mocks

import (
	"context"

	openweather "github.com/sells-group/mailcheck/pkg/openweather"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// Current provides a mock function with given fields: ctx, city
func (_m *MockClient) Current(ctx context.Context, city string) (*openweather.Current, error) {
	ret := _m.Called(ctx, city)

	if len(ret) == 0 {
		panic("no return value specified for Current")
	}

	var r0 *openweather.Current
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*openweather.Current, error)); ok {
		return rf(ctx, city)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *openweather.Current); ok {
		r0 = rf(ctx, city)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*openweather.Current)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, city)
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
