// Package mocks provides test doubles for the riskscore client.
package mocks

import (
	"context"

	riskscore "github.com/sells-group/mailcheck/pkg/riskscore"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// Analyze provides a mock function with given fields: ctx, req
func (_m *MockClient) Analyze(ctx context.Context, req riskscore.AnalyzeRequest) (*riskscore.Result, error) {
	ret := _m.Called(ctx, req)

	if len(ret) == 0 {
		panic("no return value specified for Analyze")
	}

	var r0 *riskscore.Result
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, riskscore.AnalyzeRequest) (*riskscore.Result, error)); ok {
		return rf(ctx, req)
	}
	if rf, ok := ret.Get(0).(func(context.Context, riskscore.AnalyzeRequest) *riskscore.Result); ok {
		r0 = rf(ctx, req)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*riskscore.Result)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, riskscore.AnalyzeRequest) error); ok {
		r1 = rf(ctx, req)
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
