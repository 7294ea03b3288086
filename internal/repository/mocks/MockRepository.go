package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"flow-stream/backend/internal/model"
)

// MockRepository is a mock type for the Repository type
type MockRepository struct {
	mock.Mock
}

// CreateThread provides a mock function with given fields: ctx, thread
func (_m *MockRepository) CreateThread(ctx context.Context, thread *model.Thread) error {
	ret := _m.Called(ctx, thread)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, *model.Thread) error); ok {
		r0 = rf(ctx, thread)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// GetThread provides a mock function with given fields: ctx, threadID
func (_m *MockRepository) GetThread(ctx context.Context, threadID string) (*model.Thread, error) {
	ret := _m.Called(ctx, threadID)

	var r0 *model.Thread
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*model.Thread, error)); ok {
		return rf(ctx, threadID)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *model.Thread); ok {
		r0 = rf(ctx, threadID)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Thread)
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, threadID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// ListThreads provides a mock function with given fields: ctx, userID
func (_m *MockRepository) ListThreads(ctx context.Context, userID string) ([]*model.Thread, error) {
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

// UpdateThreadTitle provides a mock function with given fields: ctx, threadID, newTitle
func (_m *MockRepository) UpdateThreadTitle(ctx context.Context, threadID string, newTitle string) error {
	ret := _m.Called(ctx, threadID, newTitle)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string) error); ok {
		r0 = rf(ctx, threadID, newTitle)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// DeleteThread provides a mock function with given fields: ctx, threadID
func (_m *MockRepository) DeleteThread(ctx context.Context, threadID string) error {
	ret := _m.Called(ctx, threadID)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string) error); ok {
		r0 = rf(ctx, threadID)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// RefreshThreadStatus provides a mock function with given fields: ctx, threadID
func (_m *MockRepository) RefreshThreadStatus(ctx context.Context, threadID string) error {
	ret := _m.Called(ctx, threadID)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string) error); ok {
		r0 = rf(ctx, threadID)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// CreateUserMessage provides a mock function with given fields: ctx, threadID, content, clientID, attachments
func (_m *MockRepository) CreateUserMessage(ctx context.Context, threadID string, content string, clientID string, attachments []model.Attachment) (*model.Message, error) {
	ret := _m.Called(ctx, threadID, content, clientID, attachments)

	var r0 *model.Message
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string, string, []model.Attachment) (*model.Message, error)); ok {
		return rf(ctx, threadID, content, clientID, attachments)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, string, string, []model.Attachment) *model.Message); ok {
		r0 = rf(ctx, threadID, content, clientID, attachments)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Message)
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, string, string, []model.Attachment) error); ok {
		r1 = rf(ctx, threadID, content, clientID, attachments)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// CreateExchange provides a mock function with given fields: ctx, ex
func (_m *MockRepository) CreateExchange(ctx context.Context, ex *model.Exchange) (*model.Message, *model.Message, error) {
	ret := _m.Called(ctx, ex)

	var r0 *model.Message
	var r1 *model.Message
	var r2 error
	if rf, ok := ret.Get(0).(func(context.Context, *model.Exchange) (*model.Message, *model.Message, error)); ok {
		return rf(ctx, ex)
	}
	if rf, ok := ret.Get(0).(func(context.Context, *model.Exchange) *model.Message); ok {
		r0 = rf(ctx, ex)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Message)
	}

	if rf, ok := ret.Get(1).(func(context.Context, *model.Exchange) *model.Message); ok {
		r1 = rf(ctx, ex)
	} else if ret.Get(1) != nil {
		r1 = ret.Get(1).(*model.Message)
	}

	if rf, ok := ret.Get(2).(func(context.Context, *model.Exchange) error); ok {
		r2 = rf(ctx, ex)
	} else {
		r2 = ret.Error(2)
	}

	return r0, r1, r2
}

// UpsertAssistantMessage provides a mock function with given fields: ctx, streamID, threadID, patch
func (_m *MockRepository) UpsertAssistantMessage(ctx context.Context, streamID string, threadID string, patch model.MessagePatch) (*model.Message, error) {
	ret := _m.Called(ctx, streamID, threadID, patch)

	var r0 *model.Message
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string, model.MessagePatch) (*model.Message, error)); ok {
		return rf(ctx, streamID, threadID, patch)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, string, model.MessagePatch) *model.Message); ok {
		r0 = rf(ctx, streamID, threadID, patch)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Message)
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, string, model.MessagePatch) error); ok {
		r1 = rf(ctx, streamID, threadID, patch)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// TruncateFrom provides a mock function with given fields: ctx, threadID, messageID, inclusive, preserveAfter
func (_m *MockRepository) TruncateFrom(ctx context.Context, threadID string, messageID string, inclusive bool, preserveAfter *time.Time) (int64, error) {
	ret := _m.Called(ctx, threadID, messageID, inclusive, preserveAfter)

	var r0 int64
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string, bool, *time.Time) (int64, error)); ok {
		return rf(ctx, threadID, messageID, inclusive, preserveAfter)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, string, bool, *time.Time) int64); ok {
		r0 = rf(ctx, threadID, messageID, inclusive, preserveAfter)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(int64)
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, string, bool, *time.Time) error); ok {
		r1 = rf(ctx, threadID, messageID, inclusive, preserveAfter)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// CopyMessages provides a mock function with given fields: ctx, srcThreadID, uptoMessageID, dst
func (_m *MockRepository) CopyMessages(ctx context.Context, srcThreadID string, uptoMessageID string, dst *model.Thread) (int, error) {
	ret := _m.Called(ctx, srcThreadID, uptoMessageID, dst)

	var r0 int
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string, *model.Thread) (int, error)); ok {
		return rf(ctx, srcThreadID, uptoMessageID, dst)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, string, *model.Thread) int); ok {
		r0 = rf(ctx, srcThreadID, uptoMessageID, dst)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(int)
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, string, *model.Thread) error); ok {
		r1 = rf(ctx, srcThreadID, uptoMessageID, dst)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// GetMessages provides a mock function with given fields: ctx, threadID
func (_m *MockRepository) GetMessages(ctx context.Context, threadID string) ([]model.Message, error) {
	ret := _m.Called(ctx, threadID)

	var r0 []model.Message
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) ([]model.Message, error)); ok {
		return rf(ctx, threadID)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) []model.Message); ok {
		r0 = rf(ctx, threadID)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.Message)
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, threadID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// GetMessage provides a mock function with given fields: ctx, messageID
func (_m *MockRepository) GetMessage(ctx context.Context, messageID string) (*model.Message, error) {
	ret := _m.Called(ctx, messageID)

	var r0 *model.Message
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*model.Message, error)); ok {
		return rf(ctx, messageID)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *model.Message); ok {
		r0 = rf(ctx, messageID)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Message)
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, messageID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// GetMessageByStreamID provides a mock function with given fields: ctx, streamID
func (_m *MockRepository) GetMessageByStreamID(ctx context.Context, streamID string) (*model.Message, error) {
	ret := _m.Called(ctx, streamID)

	var r0 *model.Message
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*model.Message, error)); ok {
		return rf(ctx, streamID)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *model.Message); ok {
		r0 = rf(ctx, streamID)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Message)
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, streamID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// GetStreamingMessage provides a mock function with given fields: ctx, threadID
func (_m *MockRepository) GetStreamingMessage(ctx context.Context, threadID string) (*model.Message, error) {
	ret := _m.Called(ctx, threadID)

	var r0 *model.Message
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*model.Message, error)); ok {
		return rf(ctx, threadID)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *model.Message); ok {
		r0 = rf(ctx, threadID)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Message)
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, threadID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// ListStaleStreaming provides a mock function with given fields: ctx, updatedBefore
func (_m *MockRepository) ListStaleStreaming(ctx context.Context, updatedBefore time.Time) ([]model.Message, error) {
	ret := _m.Called(ctx, updatedBefore)

	var r0 []model.Message
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, time.Time) ([]model.Message, error)); ok {
		return rf(ctx, updatedBefore)
	}
	if rf, ok := ret.Get(0).(func(context.Context, time.Time) []model.Message); ok {
		r0 = rf(ctx, updatedBefore)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.Message)
	}

	if rf, ok := ret.Get(1).(func(context.Context, time.Time) error); ok {
		r1 = rf(ctx, updatedBefore)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockRepository creates a new instance of MockRepository. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockRepository {
	m := &MockRepository{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
