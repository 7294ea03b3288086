package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"flow-stream/backend/internal/llm"
)

// MockLLMProvider is a mock type for the LLMProvider type
type MockLLMProvider struct {
	mock.Mock
}

// Generate provides a mock function with given fields: ctx, req
func (_m *MockLLMProvider) Generate(ctx context.Context, req *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	ret := _m.Called(ctx, req)

	var r0 *llm.GenerateResponse
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, *llm.GenerateRequest) (*llm.GenerateResponse, error)); ok {
		return rf(ctx, req)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*llm.GenerateResponse)
	}
	if rf, ok := ret.Get(1).(func(context.Context, *llm.GenerateRequest) error); ok {
		r1 = rf(ctx, req)
	} else {
		r1 = ret.Error(1)
	}
	return r0, r1
}

// GenerateStream provides a mock function with given fields: ctx, req, ch
func (_m *MockLLMProvider) GenerateStream(ctx context.Context, req *llm.GenerateRequest, ch chan<- llm.StreamResponse) error {
	ret := _m.Called(ctx, req, ch)

	if rf, ok := ret.Get(0).(func(context.Context, *llm.GenerateRequest, chan<- llm.StreamResponse) error); ok {
		return rf(ctx, req, ch)
	}
	return ret.Error(0)
}

// NewMockLLMProvider creates a new instance of MockLLMProvider. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockLLMProvider(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockLLMProvider {
	m := &MockLLMProvider{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
