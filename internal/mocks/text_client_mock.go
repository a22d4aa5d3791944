package mocks

import (
	"context"

	"github.com/Krisp140/sebi/internal/gateway"

	"github.com/stretchr/testify/mock"
)

// MockTextClient is a mock type for the gateway.TextClient type
type MockTextClient struct {
	mock.Mock
}

// GenerateStory provides a mock function with given fields: ctx, systemPrompt, userPrompt
func (_m *MockTextClient) GenerateStory(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
	ret := _m.Called(ctx, systemPrompt, userPrompt)

	var r0 string
	if rf, ok := ret.Get(0).(func(context.Context, string, string) string); ok {
		r0 = rf(ctx, systemPrompt, userPrompt)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(string)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, string, string) error); ok {
		r1 = rf(ctx, systemPrompt, userPrompt)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockTextClient creates a new instance of MockTextClient and registers the testing interface on the mock.
func NewMockTextClient(t interface {
	mock.TestingT
	Helper()
}) *MockTextClient {
	m := &MockTextClient{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ gateway.TextClient = (*MockTextClient)(nil)
