package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	app_errors "flow-stream/backend/internal/errors"
	mock_llm "flow-stream/backend/internal/llm/mocks"
	"flow-stream/backend/internal/model"
	"flow-stream/backend/internal/repository"
	mock_repo "flow-stream/backend/internal/repository/mocks"
	"flow-stream/backend/internal/service"
	"flow-stream/backend/internal/stream"
)

const userID = "default-user"

type Mocks struct {
	repo     *mock_repo.MockRepository
	llm      *mock_llm.MockLLMProvider
	registry *stream.MemoryRegistry
}

func setupChatService(t *testing.T) (*service.ChatService, Mocks) {
	mocks := Mocks{
		repo:     mock_repo.NewMockRepository(t),
		llm:      mock_llm.NewMockLLMProvider(t),
		registry: stream.NewMemoryRegistry(time.Minute, time.Hour),
	}
	chatService := service.NewChatService(
		mocks.repo,
		mocks.llm,
		mocks.registry,
		service.OwnerChecker{Repo: mocks.repo},
		service.BaseURLResolver{BaseURL: "/files"},
		service.Options{DefaultModel: "llama", StopGrace: time.Second},
	)
	return chatService, mocks
}

func ownedThread(id string) *model.Thread {
	return &model.Thread{ID: id, UserID: userID, Status: model.ThreadIdle}
}

func TestChatService_UpdateThreadTitle(t *testing.T) {
	ctx := context.Background()
	threadID := "thread123"
	newTitle := "New Title"

	t.Run("Success", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		mocks.repo.On("GetThread", ctx, threadID).Return(ownedThread(threadID), nil).Once()
		mocks.repo.On("UpdateThreadTitle", ctx, threadID, newTitle).Return(nil).Once()

		err := chatService.UpdateThreadTitle(ctx, threadID, userID, newTitle)
		assert.NoError(t, err)
	})

	t.Run("Failure - Empty title", func(t *testing.T) {
		chatService, _ := setupChatService(t)
		err := chatService.UpdateThreadTitle(ctx, threadID, userID, "   ")
		assert.ErrorIs(t, err, app_errors.ErrValidation)
	})

	t.Run("Failure - Thread not found", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		mocks.repo.On("GetThread", ctx, threadID).Return(nil, repository.ErrNotFound).Once()

		err := chatService.UpdateThreadTitle(ctx, threadID, userID, newTitle)
		assert.ErrorIs(t, err, app_errors.ErrNotFound)
	})

	t.Run("Failure - Thread owned by someone else", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		mocks.repo.On("GetThread", ctx, threadID).Return(&model.Thread{ID: threadID, UserID: "other"}, nil).Once()

		err := chatService.UpdateThreadTitle(ctx, threadID, userID, newTitle)
		assert.ErrorIs(t, err, app_errors.ErrPermission)
	})
}

func TestChatService_ListThreads(t *testing.T) {
	ctx := context.Background()
	chatService, mocks := setupChatService(t)

	expected := []*model.Thread{{ID: "thread1"}}
	mocks.repo.On("ListThreads", ctx, userID).Return(expected, nil).Once()

	threads, err := chatService.ListThreads(ctx, userID)
	assert.NoError(t, err)
	assert.Equal(t, expected, threads)
}

func TestChatService_GetThread(t *testing.T) {
	ctx := context.Background()
	threadID := "thread123"

	t.Run("Success", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		thread := ownedThread(threadID)
		messages := []model.Message{{ID: "msg1"}}
		mocks.repo.On("GetThread", ctx, threadID).Return(thread, nil).Twice()
		mocks.repo.On("GetMessages", ctx, threadID).Return(messages, nil).Once()

		full, err := chatService.GetThread(ctx, threadID, userID)
		require.NoError(t, err)
		assert.Equal(t, *thread, full.Thread)
		assert.Equal(t, messages, full.Messages)
	})

	t.Run("Failure - GetMessages returns error", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		mocks.repo.On("GetThread", ctx, threadID).Return(ownedThread(threadID), nil).Twice()
		mocks.repo.On("GetMessages", ctx, threadID).Return(nil, errors.New("db error")).Once()

		_, err := chatService.GetThread(ctx, threadID, userID)
		assert.ErrorContains(t, err, "db error")
	})
}

func TestChatService_StartChat(t *testing.T) {
	ctx := context.Background()
	threadID := "thread123"

	t.Run("Failure - Empty message", func(t *testing.T) {
		chatService, _ := setupChatService(t)
		_, err := chatService.StartChat(ctx, &service.ChatRequest{UserID: userID, Message: "  "})
		assert.ErrorIs(t, err, app_errors.ErrValidation)
	})

	t.Run("Failure - Thread already generating", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		mocks.repo.On("GetThread", ctx, threadID).Return(ownedThread(threadID), nil).Twice()
		mocks.repo.On("CreateExchange", ctx, mock.MatchedBy(func(ex *model.Exchange) bool {
			return ex.ThreadID == threadID && ex.NewThread == nil && ex.Content == "Hi" && ex.Model == "llama"
		})).Return(nil, nil, app_errors.ErrConflict).Once()

		_, err := chatService.StartChat(ctx, &service.ChatRequest{UserID: userID, ThreadID: threadID, Message: "Hi"})
		assert.ErrorIs(t, err, app_errors.ErrConflict)
		mocks.repo.AssertNotCalled(t, "CreateUserMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Failure - Invalid attachment", func(t *testing.T) {
		chatService, _ := setupChatService(t)
		_, err := chatService.StartChat(ctx, &service.ChatRequest{UserID: userID, Message: "Hi", AttachmentIDs: []string{"../etc/passwd"}})
		assert.ErrorIs(t, err, app_errors.ErrValidation)
	})

	t.Run("Failure - New thread is not created on its own", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		mocks.repo.On("CreateExchange", ctx, mock.MatchedBy(func(ex *model.Exchange) bool {
			return ex.NewThread != nil && ex.NewThread.UserID == userID && ex.ThreadID == ex.NewThread.ID &&
				ex.ClientID == "local-1" && ex.StreamID != ""
		})).Return(nil, nil, errors.New("disk full")).Once()

		_, err := chatService.StartChat(ctx, &service.ChatRequest{UserID: userID, Message: "Hi", ClientID: "local-1"})
		assert.ErrorContains(t, err, "disk full")
		mocks.repo.AssertNotCalled(t, "CreateThread", mock.Anything, mock.Anything)
	})

	t.Run("Failure - Thread of another user", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		mocks.repo.On("GetThread", ctx, threadID).Return(&model.Thread{ID: threadID, UserID: "someone-else"}, nil).Once()

		_, err := chatService.StartChat(ctx, &service.ChatRequest{UserID: userID, ThreadID: threadID, Message: "Hi"})
		assert.ErrorIs(t, err, app_errors.ErrPermission)
		mocks.repo.AssertNotCalled(t, "CreateExchange", mock.Anything, mock.Anything)
	})
}

func TestChatService_Stop(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - Persists client content first", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		msg := &model.Message{ID: "a1", ThreadID: "thread1", StreamID: "s1", Status: model.StatusStreaming, CreatedAt: time.Now()}
		mocks.repo.On("GetMessageByStreamID", ctx, "s1").Return(msg, nil).Once()
		mocks.repo.On("GetThread", ctx, "thread1").Return(ownedThread("thread1"), nil).Once()
		mocks.repo.On("UpsertAssistantMessage", ctx, "s1", "", mock.MatchedBy(func(p model.MessagePatch) bool {
			return p.Status != nil && *p.Status == model.StatusError &&
				p.Content != nil && *p.Content == "partial text" &&
				p.Metadata != nil && p.Metadata.StopReason == "stopped by user"
		})).Return(&model.Message{ID: "a1", Status: model.StatusError}, nil).Once()

		// The stream is already gone from the registry; stopping is still fine.
		err := chatService.Stop(ctx, userID, &service.StopRequest{StreamID: "s1", Content: "partial text"})
		assert.NoError(t, err)
	})

	t.Run("Failure - Unknown stream", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		mocks.repo.On("GetMessageByStreamID", ctx, "missing").Return(nil, repository.ErrNotFound).Once()

		err := chatService.Stop(ctx, userID, &service.StopRequest{StreamID: "missing"})
		assert.ErrorIs(t, err, app_errors.ErrNotFound)
	})
}

func TestChatService_Truncate(t *testing.T) {
	ctx := context.Background()

	t.Run("Failure - Target already gone", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		mocks.repo.On("GetThread", ctx, "thread1").Return(ownedThread("thread1"), nil).Once()
		mocks.repo.On("GetStreamingMessage", ctx, "thread1").Return(nil, repository.ErrNotFound).Once()
		mocks.repo.On("TruncateFrom", ctx, "thread1", "m1", true, (*time.Time)(nil)).Return(int64(0), repository.ErrNotFound).Once()

		_, err := chatService.Truncate(ctx, "thread1", userID, &service.TruncateRequest{MessageID: "m1", Inclusive: true})
		assert.ErrorIs(t, err, app_errors.ErrNotFound)
	})

	t.Run("Success - Stops a generation whose message was removed", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		pub, err := mocks.registry.Open(ctx, "s1")
		require.NoError(t, err)

		mocks.repo.On("GetThread", ctx, "thread1").Return(ownedThread("thread1"), nil).Once()
		mocks.repo.On("GetStreamingMessage", ctx, "thread1").Return(&model.Message{ID: "a1", StreamID: "s1"}, nil).Once()
		mocks.repo.On("TruncateFrom", ctx, "thread1", "u1", true, (*time.Time)(nil)).Return(int64(2), nil).Once()
		mocks.repo.On("GetMessage", ctx, "a1").Return(nil, repository.ErrNotFound).Once()

		deleted, err := chatService.Truncate(ctx, "thread1", userID, &service.TruncateRequest{MessageID: "u1", Inclusive: true})
		require.NoError(t, err)
		assert.EqualValues(t, 2, deleted)

		select {
		case <-pub.Stopped():
		case <-time.After(time.Second):
			t.Fatal("generation was not stopped")
		}
	})
}

func TestChatService_Branch(t *testing.T) {
	ctx := context.Background()
	chatService, mocks := setupChatService(t)

	mocks.repo.On("GetThread", ctx, "thread1").Return(&model.Thread{ID: "thread1", UserID: userID, Title: "Trip plans"}, nil).Twice()
	mocks.repo.On("CopyMessages", ctx, "thread1", "a1", mock.AnythingOfType("*model.Thread")).Return(2, nil).Once()

	branch, err := chatService.Branch(ctx, "thread1", userID, "a1")
	require.NoError(t, err)
	assert.NotEqual(t, "thread1", branch.ID)
	assert.Equal(t, "Trip plans (branch)", branch.Title)
	assert.Equal(t, userID, branch.UserID)
}
