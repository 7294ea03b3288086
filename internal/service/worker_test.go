package service_test

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"flow-stream/backend/internal/database"
	app_errors "flow-stream/backend/internal/errors"
	"flow-stream/backend/internal/llm"
	mock_llm "flow-stream/backend/internal/llm/mocks"
	"flow-stream/backend/internal/model"
	"flow-stream/backend/internal/repository"
	"flow-stream/backend/internal/service"
	"flow-stream/backend/internal/stream"
)

type streamFunc = func(ctx context.Context, req *llm.GenerateRequest, ch chan<- llm.StreamResponse) error

// harness wires the service to a real SQLite store and an in-memory registry.
type harness struct {
	svc  *service.ChatService
	repo repository.Repository
	llm  *mock_llm.MockLLMProvider
}

func setupHarness(t *testing.T, opts service.Options) *harness {
	t.Helper()
	db, err := database.InitDB(filepath.Join(t.TempDir(), "flow.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := repository.NewSQLiteRepository(db)
	provider := mock_llm.NewMockLLMProvider(t)
	if opts.DefaultModel == "" {
		opts.DefaultModel = "llama"
	}
	if opts.StopGrace == 0 {
		opts.StopGrace = time.Second
	}
	if opts.PersistInterval == 0 {
		opts.PersistInterval = 10 * time.Millisecond
	}
	svc := service.NewChatService(
		repo,
		provider,
		stream.NewMemoryRegistry(time.Minute, time.Hour),
		service.OwnerChecker{Repo: repo},
		service.BaseURLResolver{BaseURL: "/files"},
		opts,
	)
	return &harness{svc: svc, repo: repo, llm: provider}
}

// wait lets every worker finish its final writes.
func (h *harness) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.svc.Shutdown(ctx))
}

func drain(t *testing.T, ch <-chan model.StreamEvent) []model.StreamEvent {
	t.Helper()
	var events []model.StreamEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("stream did not finish, got %d events", len(events))
			return events
		}
	}
}

func deltas(events []model.StreamEvent, typ model.StreamEventType) string {
	var sb strings.Builder
	for _, ev := range events {
		if ev.Type == typ {
			sb.WriteString(ev.Delta)
		}
	}
	return sb.String()
}

// scripted streams the given chunks, then a final chunk with stats.
func scripted(parts ...string) streamFunc {
	return func(ctx context.Context, req *llm.GenerateRequest, ch chan<- llm.StreamResponse) error {
		defer close(ch)
		for _, p := range parts {
			ch <- llm.StreamResponse{Content: p}
		}
		ch <- llm.StreamResponse{Done: true, Stats: &llm.GenerationStats{PromptEvalCount: 5, EvalCount: len(parts), DoneReason: "stop"}}
		return nil
	}
}

// blocking streams parts, signals started, then waits for cancellation.
func blocking(started chan<- struct{}, parts ...string) streamFunc {
	return func(ctx context.Context, req *llm.GenerateRequest, ch chan<- llm.StreamResponse) error {
		defer close(ch)
		for _, p := range parts {
			select {
			case ch <- llm.StreamResponse{Content: p}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}
}

func TestWorker_RoundTrip(t *testing.T) {
	ctx := context.Background()
	h := setupHarness(t, service.Options{SupportModel: "tiny", SystemPrompt: "Be brief."})

	var captured *llm.GenerateRequest
	h.llm.On("GenerateStream", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(1).(*llm.GenerateRequest) }).
		Return(scripted("Hel", "lo")).Once()
	h.llm.On("Generate", mock.Anything, mock.MatchedBy(func(r *llm.GenerateRequest) bool { return r.Model == "tiny" })).
		Return(&llm.GenerateResponse{Response: `"Greeting"`}, nil).Once()

	session, err := h.svc.StartChat(ctx, &service.ChatRequest{UserID: userID, Message: "Hi", ClientID: "local-1"})
	require.NoError(t, err)
	assert.True(t, session.IsNewThread)

	events := drain(t, session.Events)
	require.GreaterOrEqual(t, len(events), 2)
	start := events[0]
	assert.Equal(t, model.EventStart, start.Type)
	assert.Equal(t, session.Thread.ID, start.ThreadID)
	assert.Equal(t, session.MessageID, start.MessageID)
	assert.Equal(t, session.UserMessageID, start.UserMessageID)
	assert.Equal(t, session.StreamID, start.StreamID)
	assert.Equal(t, "Hello", deltas(events, model.EventContent))
	last := events[len(events)-1]
	assert.Equal(t, model.EventFinish, last.Type)
	assert.Equal(t, 7, last.Usage.TotalTokens)

	h.wait(t)

	require.NotNil(t, captured)
	assert.Equal(t, []llm.Message{{Role: "system", Content: "Be brief."}, {Role: "user", Content: "Hi"}}, captured.Messages)

	messages, err := h.repo.GetMessages(ctx, session.Thread.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, model.RoleUser, messages[0].Role)
	assert.Equal(t, "local-1", messages[0].ClientID)
	assistant := messages[1]
	assert.Equal(t, model.StatusCompleted, assistant.Status)
	assert.Equal(t, "Hello", assistant.Content)
	assert.Equal(t, session.StreamID, assistant.StreamID)
	assert.Equal(t, "llama", assistant.Model)
	require.NotNil(t, assistant.Metadata)
	assert.Equal(t, 7, assistant.Metadata.Usage.TotalTokens)

	thread, err := h.repo.GetThread(ctx, session.Thread.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ThreadIdle, thread.Status)
	assert.Equal(t, "Greeting", thread.Title)
}

func TestWorker_StopMidStream(t *testing.T) {
	ctx := context.Background()
	h := setupHarness(t, service.Options{})
	started := make(chan struct{})
	h.llm.On("GenerateStream", mock.Anything, mock.Anything, mock.Anything).
		Return(blocking(started, "partial ", "text", " never rendered")).Once()

	thread := &model.Thread{ID: "t1", UserID: userID, Title: "Test"}
	require.NoError(t, h.repo.CreateThread(ctx, thread))

	session, err := h.svc.StartChat(ctx, &service.ChatRequest{UserID: userID, ThreadID: "t1", Message: "Hi"})
	require.NoError(t, err)
	assert.False(t, session.IsNewThread)
	<-started

	require.NoError(t, h.svc.Stop(ctx, userID, &service.StopRequest{StreamID: session.StreamID, Content: "partial text"}))

	events := drain(t, session.Events)
	last := events[len(events)-1]
	assert.Equal(t, model.EventError, last.Type)
	assert.Equal(t, "stopped by user", last.Error)
	h.wait(t)

	msg, err := h.repo.GetMessageByStreamID(ctx, session.StreamID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, msg.Status)
	assert.Equal(t, "partial text", msg.Content)
	assert.Equal(t, "stopped by user", msg.Metadata.StopReason)

	got, err := h.repo.GetThread(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, model.ThreadError, got.Status)
}

func TestWorker_StubbornProviderIsFinalizedAfterGrace(t *testing.T) {
	ctx := context.Background()
	h := setupHarness(t, service.Options{StopGrace: 50 * time.Millisecond})
	release := make(chan struct{})
	started := make(chan struct{})
	h.llm.On("GenerateStream", mock.Anything, mock.Anything, mock.Anything).
		Return(func(ctx context.Context, req *llm.GenerateRequest, ch chan<- llm.StreamResponse) error {
			defer close(ch)
			ch <- llm.StreamResponse{Content: "stuck"}
			close(started)
			// Ignores ctx entirely.
			<-release
			return nil
		}).Once()
	defer close(release)

	require.NoError(t, h.repo.CreateThread(ctx, &model.Thread{ID: "t1", UserID: userID}))
	session, err := h.svc.StartChat(ctx, &service.ChatRequest{UserID: userID, ThreadID: "t1", Message: "Hi"})
	require.NoError(t, err)
	<-started

	require.NoError(t, h.svc.Stop(ctx, userID, &service.StopRequest{StreamID: session.StreamID, Content: "stuck"}))
	events := drain(t, session.Events)
	assert.Equal(t, model.EventError, events[len(events)-1].Type)
	h.wait(t)

	msg, err := h.repo.GetMessageByStreamID(ctx, session.StreamID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, msg.Status)
}

func TestWorker_ProviderError(t *testing.T) {
	ctx := context.Background()
	h := setupHarness(t, service.Options{})
	h.llm.On("GenerateStream", mock.Anything, mock.Anything, mock.Anything).
		Return(func(ctx context.Context, req *llm.GenerateRequest, ch chan<- llm.StreamResponse) error {
			defer close(ch)
			ch <- llm.StreamResponse{Content: "Hel"}
			ch <- llm.StreamResponse{Error: "out of memory"}
			return nil
		}).Once()

	require.NoError(t, h.repo.CreateThread(ctx, &model.Thread{ID: "t1", UserID: userID}))
	session, err := h.svc.StartChat(ctx, &service.ChatRequest{UserID: userID, ThreadID: "t1", Message: "Hi"})
	require.NoError(t, err)

	events := drain(t, session.Events)
	last := events[len(events)-1]
	assert.Equal(t, model.EventError, last.Type)
	assert.Contains(t, last.Error, "out of memory")
	h.wait(t)

	msg, err := h.repo.GetMessageByStreamID(ctx, session.StreamID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, msg.Status)
	assert.Equal(t, "Hel", msg.Content)
	assert.Contains(t, msg.Metadata.Error, app_errors.ErrProvider.Error())

	thread, err := h.repo.GetThread(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, model.ThreadError, thread.Status)
}

func TestWorker_ResumeAndConflict(t *testing.T) {
	ctx := context.Background()
	h := setupHarness(t, service.Options{})
	started := make(chan struct{})
	h.llm.On("GenerateStream", mock.Anything, mock.Anything, mock.Anything).
		Return(blocking(started, "Hello", " world")).Once()

	require.NoError(t, h.repo.CreateThread(ctx, &model.Thread{ID: "t1", UserID: userID}))

	// The first subscriber goes away as soon as the generation starts.
	reqCtx, disconnect := context.WithCancel(ctx)
	session, err := h.svc.StartChat(reqCtx, &service.ChatRequest{UserID: userID, ThreadID: "t1", Message: "Hi"})
	require.NoError(t, err)
	disconnect()
	<-started

	_, err = h.svc.StartChat(ctx, &service.ChatRequest{UserID: userID, ThreadID: "t1", Message: "Again"})
	assert.ErrorIs(t, err, app_errors.ErrConflict)

	resumed, err := h.svc.Resume(ctx, "t1", userID)
	require.NoError(t, err)
	assert.Equal(t, session.StreamID, resumed.StreamID)

	require.NoError(t, h.svc.Stop(ctx, userID, &service.StopRequest{StreamID: session.StreamID, Content: "Hello world"}))
	events := drain(t, resumed.Events)
	assert.Equal(t, model.EventStart, events[0].Type)
	assert.Equal(t, "Hello world", deltas(events, model.EventContent))
	h.wait(t)

	messages, err := h.repo.GetMessages(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, messages, 2)

	_, err = h.svc.Resume(ctx, "t1", userID)
	assert.ErrorIs(t, err, app_errors.ErrNotFound)
}

func TestWorker_ResubmissionSurvivesDelayedTruncate(t *testing.T) {
	ctx := context.Background()
	h := setupHarness(t, service.Options{})

	var mu sync.Mutex
	var requests []*llm.GenerateRequest
	h.llm.On("GenerateStream", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			mu.Lock()
			defer mu.Unlock()
			requests = append(requests, args.Get(1).(*llm.GenerateRequest))
		}).
		Return(scripted("Answer")).Twice()

	require.NoError(t, h.repo.CreateThread(ctx, &model.Thread{ID: "t1", UserID: userID}))
	first, err := h.svc.StartChat(ctx, &service.ChatRequest{UserID: userID, ThreadID: "t1", Message: "Question"})
	require.NoError(t, err)
	drain(t, first.Events)
	require.Eventually(t, func() bool {
		thread, err := h.repo.GetThread(ctx, "t1")
		return err == nil && thread.Status == model.ThreadIdle
	}, 2*time.Second, 10*time.Millisecond)

	// Retry: capture T, resubmit, then truncate with preserveAfter=T.
	preserveAfter := time.Now().UTC()
	time.Sleep(2 * time.Millisecond)
	second, err := h.svc.StartChat(ctx, &service.ChatRequest{
		UserID: userID, ThreadID: "t1", Message: "Question", CutoffMessageID: first.UserMessageID,
	})
	require.NoError(t, err)
	drain(t, second.Events)

	deleted, err := h.svc.Truncate(ctx, "t1", userID, &service.TruncateRequest{
		MessageID: first.UserMessageID, Inclusive: true, PreserveAfter: &preserveAfter,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)
	h.wait(t)

	messages, err := h.repo.GetMessages(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, second.UserMessageID, messages[0].ID)
	assert.Equal(t, second.MessageID, messages[1].ID)

	// The resubmission's prompt never saw the superseded exchange.
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, requests, 2)
	assert.Equal(t, []llm.Message{{Role: "user", Content: "Question"}}, requests[1].Messages)
}

func TestWorker_ConcurrentSubmissionsLeaveOneExchange(t *testing.T) {
	ctx := context.Background()
	h := setupHarness(t, service.Options{})
	started := make(chan struct{})
	h.llm.On("GenerateStream", mock.Anything, mock.Anything, mock.Anything).
		Return(blocking(started, "Hello")).Once()

	require.NoError(t, h.repo.CreateThread(ctx, &model.Thread{ID: "t1", UserID: userID}))

	const submitters = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		sessions []*service.ChatSession
		rejected int
	)
	for i := 0; i < submitters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			session, err := h.svc.StartChat(ctx, &service.ChatRequest{UserID: userID, ThreadID: "t1", Message: "Hi"})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				assert.ErrorIs(t, err, app_errors.ErrConflict)
				rejected++
				return
			}
			sessions = append(sessions, session)
		}()
	}
	wg.Wait()
	require.Len(t, sessions, 1)
	assert.Equal(t, submitters-1, rejected)

	<-started
	require.NoError(t, h.svc.Stop(ctx, userID, &service.StopRequest{StreamID: sessions[0].StreamID, Content: "Hello"}))
	drain(t, sessions[0].Events)
	h.wait(t)

	messages, err := h.repo.GetMessages(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, sessions[0].UserMessageID, messages[0].ID)
	assert.Equal(t, sessions[0].MessageID, messages[1].ID)
}
