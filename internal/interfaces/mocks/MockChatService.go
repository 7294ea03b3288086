package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"flow-stream/backend/internal/model"
	"flow-stream/backend/internal/service"
)

// MockChatService is a mock type for the ChatService type
type MockChatService struct {
	mock.Mock
}

// ListThreads provides a mock function with given fields: ctx, userID
func (_m *MockChatService) ListThreads(ctx context.Context, userID string) ([]*model.Thread, error) {
	ret := _m.Called(ctx, userID)

	var r0 []*model.Thread
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) ([]*model.Thread, error)); ok {
		return rf(ctx, userID)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) []*model.Thread); ok {
		r0 = rf(ctx, userID)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).([]*model.Thread)
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, userID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// GetThread provides a mock function with given fields: ctx, threadID, userID
func (_m *MockChatService) GetThread(ctx context.Context, threadID string, userID string) (*model.FullThread, error) {
	ret := _m.Called(ctx, threadID, userID)

	var r0 *model.FullThread
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string) (*model.FullThread, error)); ok {
		return rf(ctx, threadID, userID)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, string) *model.FullThread); ok {
		r0 = rf(ctx, threadID, userID)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.FullThread)
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, string) error); ok {
		r1 = rf(ctx, threadID, userID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// GetMessages provides a mock function with given fields: ctx, threadID, userID
func (_m *MockChatService) GetMessages(ctx context.Context, threadID string, userID string) ([]model.Message, error) {
	ret := _m.Called(ctx, threadID, userID)

	var r0 []model.Message
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string) ([]model.Message, error)); ok {
		return rf(ctx, threadID, userID)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, string) []model.Message); ok {
		r0 = rf(ctx, threadID, userID)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.Message)
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, string) error); ok {
		r1 = rf(ctx, threadID, userID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// UpdateThreadTitle provides a mock function with given fields: ctx, threadID, userID, newTitle
func (_m *MockChatService) UpdateThreadTitle(ctx context.Context, threadID string, userID string, newTitle string) error {
	ret := _m.Called(ctx, threadID, userID, newTitle)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string, string) error); ok {
		r0 = rf(ctx, threadID, userID, newTitle)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// DeleteThread provides a mock function with given fields: ctx, threadID, userID
func (_m *MockChatService) DeleteThread(ctx context.Context, threadID string, userID string) error {
	ret := _m.Called(ctx, threadID, userID)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string) error); ok {
		r0 = rf(ctx, threadID, userID)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// StartChat provides a mock function with given fields: ctx, req
func (_m *MockChatService) StartChat(ctx context.Context, req *service.ChatRequest) (*service.ChatSession, error) {
	ret := _m.Called(ctx, req)

	var r0 *service.ChatSession
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, *service.ChatRequest) (*service.ChatSession, error)); ok {
		return rf(ctx, req)
	}
	if rf, ok := ret.Get(0).(func(context.Context, *service.ChatRequest) *service.ChatSession); ok {
		r0 = rf(ctx, req)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*service.ChatSession)
	}

	if rf, ok := ret.Get(1).(func(context.Context, *service.ChatRequest) error); ok {
		r1 = rf(ctx, req)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Resume provides a mock function with given fields: ctx, threadID, userID
func (_m *MockChatService) Resume(ctx context.Context, threadID string, userID string) (*service.ChatSession, error) {
	ret := _m.Called(ctx, threadID, userID)

	var r0 *service.ChatSession
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string) (*service.ChatSession, error)); ok {
		return rf(ctx, threadID, userID)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, string) *service.ChatSession); ok {
		r0 = rf(ctx, threadID, userID)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*service.ChatSession)
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, string) error); ok {
		r1 = rf(ctx, threadID, userID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Stop provides a mock function with given fields: ctx, userID, req
func (_m *MockChatService) Stop(ctx context.Context, userID string, req *service.StopRequest) error {
	ret := _m.Called(ctx, userID, req)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, *service.StopRequest) error); ok {
		r0 = rf(ctx, userID, req)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// Truncate provides a mock function with given fields: ctx, threadID, userID, req
func (_m *MockChatService) Truncate(ctx context.Context, threadID string, userID string, req *service.TruncateRequest) (int64, error) {
	ret := _m.Called(ctx, threadID, userID, req)

	var r0 int64
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string, *service.TruncateRequest) (int64, error)); ok {
		return rf(ctx, threadID, userID, req)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, string, *service.TruncateRequest) int64); ok {
		r0 = rf(ctx, threadID, userID, req)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(int64)
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, string, *service.TruncateRequest) error); ok {
		r1 = rf(ctx, threadID, userID, req)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Branch provides a mock function with given fields: ctx, threadID, userID, messageID
func (_m *MockChatService) Branch(ctx context.Context, threadID string, userID string, messageID string) (*model.Thread, error) {
	ret := _m.Called(ctx, threadID, userID, messageID)

	var r0 *model.Thread
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string, string) (*model.Thread, error)); ok {
		return rf(ctx, threadID, userID, messageID)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, string, string) *model.Thread); ok {
		r0 = rf(ctx, threadID, userID, messageID)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Thread)
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, string, string) error); ok {
		r1 = rf(ctx, threadID, userID, messageID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockChatService creates a new instance of MockChatService. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockChatService(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockChatService {
	m := &MockChatService{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
