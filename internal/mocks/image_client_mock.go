package mocks

import (
	"context"

	"github.com/Krisp140/sebi/internal/gateway"

	"github.com/stretchr/testify/mock"
)

// MockImageClient is a mock type for the gateway.ImageClient type
type MockImageClient struct {
	mock.Mock
}

// GenerateImage provides a mock function with given fields: ctx, prompt, opts
func (_m *MockImageClient) GenerateImage(ctx context.Context, prompt string, opts gateway.ImageOptions) (string, error) {
	ret := _m.Called(ctx, prompt, opts)

	var r0 string
	if rf, ok := ret.Get(0).(func(context.Context, string, gateway.ImageOptions) string); ok {
		r0 = rf(ctx, prompt, opts)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(string)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, string, gateway.ImageOptions) error); ok {
		r1 = rf(ctx, prompt, opts)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockImageClient creates a new instance of MockImageClient and registers the testing interface on the mock.
func NewMockImageClient(t interface {
	mock.TestingT
	Helper()
}) *MockImageClient {
	m := &MockImageClient{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ gateway.ImageClient = (*MockImageClient)(nil)
