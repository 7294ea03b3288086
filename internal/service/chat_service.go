package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	app_errors "flow-stream/backend/internal/errors"
	"flow-stream/backend/internal/llm"
	"flow-stream/backend/internal/model"
	"flow-stream/backend/internal/repository"
	"flow-stream/backend/internal/stream"
)

const stoppedByUser = "stopped by user"

// Options tunes chat generation.
type Options struct {
	DefaultModel    string
	SupportModel    string
	SystemPrompt    string
	PersistInterval time.Duration
	StopGrace       time.Duration
	MaxLifetime     time.Duration
}

type ChatService struct {
	repo        repository.Repository
	llm         llm.LLMProvider
	registry    stream.Registry
	access      AccessChecker
	attachments AttachmentResolver
	opts        Options
	now         func() time.Time

	// workerCtx outlives requests; it is cancelled by Shutdown.
	workerCtx    context.Context
	cancelWorker context.CancelFunc
	workers      sync.WaitGroup
}

// ChatRequest is a new user submission.
type ChatRequest struct {
	UserID          string                 `json:"-"`
	ThreadID        string                 `json:"threadId,omitempty"`
	Message         string                 `json:"message" validate:"required,min=1"`
	ModelID         string                 `json:"modelId,omitempty"`
	ModelParams     map[string]interface{} `json:"modelParams,omitempty"`
	AttachmentIDs   []string               `json:"attachmentIds,omitempty" validate:"max=16,dive,required"`
	ClientID        string                 `json:"clientId,omitempty" validate:"max=128"`
	CutoffMessageID string                 `json:"cutoffMessageId,omitempty"`
}

// StopRequest carries the content the client had rendered when it stopped.
type StopRequest struct {
	StreamID  string `json:"streamId" validate:"required"`
	Content   string `json:"content"`
	Reasoning string `json:"reasoning,omitempty"`
}

// TruncateRequest removes a message range from a thread.
type TruncateRequest struct {
	MessageID     string     `json:"messageId" validate:"required"`
	Inclusive     bool       `json:"inclusive"`
	PreserveAfter *time.Time `json:"preserveAfter,omitempty"`
}

// ChatSession is a live subscription to one generation.
type ChatSession struct {
	Thread        *model.Thread
	IsNewThread   bool
	UserMessageID string
	MessageID     string
	StreamID      string
	Events        <-chan model.StreamEvent
}

func NewChatService(
	repo repository.Repository,
	provider llm.LLMProvider,
	registry stream.Registry,
	access AccessChecker,
	attachments AttachmentResolver,
	opts Options,
) *ChatService {
	ctx, cancel := context.WithCancel(context.Background())
	return &ChatService{
		repo:         repo,
		llm:          provider,
		registry:     registry,
		access:       access,
		attachments:  attachments,
		opts:         opts,
		now:          time.Now,
		workerCtx:    ctx,
		cancelWorker: cancel,
	}
}

// Shutdown cancels running generations and waits for their final writes.
func (s *ChatService) Shutdown(ctx context.Context) error {
	s.cancelWorker()
	done := make(chan struct{})
	go func() {
		s.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// --- Threads ---

// ListThreads retrieves all threads for a specific user.
func (s *ChatService) ListThreads(ctx context.Context, userID string) ([]*model.Thread, error) {
	return s.repo.ListThreads(ctx, userID)
}

// GetThread retrieves a thread's metadata and all its messages.
func (s *ChatService) GetThread(ctx context.Context, threadID, userID string) (*model.FullThread, error) {
	if _, err := s.access.Check(ctx, threadID, userID); err != nil {
		return nil, err
	}
	thread, err := s.repo.GetThread(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("could not get thread: %w", translate(err))
	}
	messages, err := s.repo.GetMessages(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("could not get messages: %w", err)
	}
	return &model.FullThread{Thread: *thread, Messages: messages}, nil
}

// GetMessages returns the persisted messages of a thread in creation order.
func (s *ChatService) GetMessages(ctx context.Context, threadID, userID string) ([]model.Message, error) {
	if _, err := s.access.Check(ctx, threadID, userID); err != nil {
		return nil, err
	}
	return s.repo.GetMessages(ctx, threadID)
}

// UpdateThreadTitle handles the logic for manually updating a thread's title.
func (s *ChatService) UpdateThreadTitle(ctx context.Context, threadID, userID, newTitle string) error {
	newTitle = strings.TrimSpace(newTitle)
	if newTitle == "" {
		return fmt.Errorf("%w: title cannot be empty", app_errors.ErrValidation)
	}
	if _, err := s.access.Check(ctx, threadID, userID); err != nil {
		return err
	}
	slog.Info("Updating thread title", "thread_id", threadID)
	return translate(s.repo.UpdateThreadTitle(ctx, threadID, newTitle))
}

// DeleteThread stops any running generation and deletes the thread with its messages.
func (s *ChatService) DeleteThread(ctx context.Context, threadID, userID string) error {
	if _, err := s.access.Check(ctx, threadID, userID); err != nil {
		return err
	}
	if msg, err := s.repo.GetStreamingMessage(ctx, threadID); err == nil {
		s.stopStream(ctx, msg.StreamID)
	}
	slog.Info("Deleting thread", "thread_id", threadID)
	return s.repo.DeleteThread(ctx, threadID)
}

// --- Generation ---

// StartChat persists the user message and an empty streaming assistant
// message, starts a detached generation and subscribes to it. The returned
// session stays valid even if the caller stops reading: the generation keeps
// running and can be resumed.
func (s *ChatService) StartChat(ctx context.Context, req *ChatRequest) (*ChatSession, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("%w: message cannot be empty", app_errors.ErrValidation)
	}
	modelName := req.ModelID
	if modelName == "" {
		modelName = s.opts.DefaultModel
	}

	attachments, err := s.resolveAttachments(ctx, req.AttachmentIDs)
	if err != nil {
		return nil, err
	}

	thread, isNew, err := s.openThread(ctx, req)
	if err != nil {
		return nil, err
	}
	log := slog.With("thread_id", thread.ID)

	streamID := uuid.NewString()
	exchange := &model.Exchange{
		ThreadID:    thread.ID,
		Content:     req.Message,
		ClientID:    req.ClientID,
		Attachments: attachments,
		StreamID:    streamID,
		Model:       modelName,
	}
	if isNew {
		exchange.NewThread = thread
	}
	// A rejected submission leaves no trace: the thread, the user message and
	// the assistant message are written together or not at all.
	userMsg, assistant, err := s.repo.CreateExchange(ctx, exchange)
	if err != nil {
		return nil, fmt.Errorf("could not save submission: %w", translate(err))
	}
	log = log.With("stream_id", streamID)

	pub, err := s.registry.Open(ctx, streamID)
	if err != nil {
		s.abandon(streamID, "could not open stream")
		return nil, fmt.Errorf("could not open stream: %w", err)
	}
	start := model.StreamEvent{
		Type:          model.EventStart,
		ThreadID:      thread.ID,
		MessageID:     assistant.ID,
		UserMessageID: userMsg.ID,
	}
	if err := pub.Publish(ctx, start); err != nil {
		_ = pub.Close()
		s.abandon(streamID, "could not publish start event")
		return nil, fmt.Errorf("could not start stream: %w", err)
	}

	history, err := s.promptHistory(ctx, thread.ID, assistant.ID, userMsg, req.CutoffMessageID)
	if err != nil {
		_ = pub.Fail(ctx, "could not load conversation history")
		_ = pub.Close()
		s.abandon(streamID, "could not load conversation history")
		return nil, err
	}

	// Subscribe before the worker produces anything; the log replays from the
	// start either way.
	events, err := s.registry.Attach(ctx, streamID)
	if err != nil {
		_ = pub.Close()
		s.abandon(streamID, "could not attach to stream")
		return nil, fmt.Errorf("could not attach to stream: %w", err)
	}

	g := &generation{
		threadID:    thread.ID,
		streamID:    streamID,
		publisher:   pub,
		isNewThread: isNew,
		userContent: req.Message,
		request: &llm.GenerateRequest{
			Model:    modelName,
			Messages: history,
			Options:  req.ModelParams,
		},
	}
	s.workers.Add(1)
	go s.runWorker(g)

	log.Info("Started generation", "model", modelName, "new_thread", isNew)
	return &ChatSession{
		Thread:        thread,
		IsNewThread:   isNew,
		UserMessageID: userMsg.ID,
		MessageID:     assistant.ID,
		StreamID:      streamID,
		Events:        events,
	}, nil
}

// Resume attaches to the generation currently streaming in a thread. It fails
// with ErrNotFound when nothing is streaming or the stream handle is gone.
func (s *ChatService) Resume(ctx context.Context, threadID, userID string) (*ChatSession, error) {
	if _, err := s.access.Check(ctx, threadID, userID); err != nil {
		return nil, err
	}
	msg, err := s.repo.GetStreamingMessage(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("no active generation: %w", translate(err))
	}
	events, err := s.registry.Attach(ctx, msg.StreamID)
	if err != nil {
		return nil, fmt.Errorf("could not resume stream: %w", err)
	}
	slog.Info("Resumed generation", "thread_id", threadID, "stream_id", msg.StreamID)
	return &ChatSession{
		MessageID: msg.ID,
		StreamID:  msg.StreamID,
		Events:    events,
	}, nil
}

// Stop freezes the message with the content the client had rendered, then
// asks the worker to stop. The first terminal write wins, so the worker's
// own final write becomes a no-op.
func (s *ChatService) Stop(ctx context.Context, userID string, req *StopRequest) error {
	msg, err := s.repo.GetMessageByStreamID(ctx, req.StreamID)
	if err != nil {
		return fmt.Errorf("could not find stream: %w", translate(err))
	}
	if _, err := s.access.Check(ctx, msg.ThreadID, userID); err != nil {
		return err
	}

	status := model.StatusError
	patch := model.MessagePatch{
		Status:   &status,
		Content:  &req.Content,
		Metadata: &model.Metadata{StopReason: stoppedByUser, DurationMs: s.now().Sub(msg.CreatedAt).Milliseconds()},
	}
	if req.Reasoning != "" {
		patch.Reasoning = &req.Reasoning
	}
	if _, err := s.repo.UpsertAssistantMessage(ctx, req.StreamID, "", patch); err != nil {
		return fmt.Errorf("could not save stopped message: %w", err)
	}
	s.stopStream(ctx, req.StreamID)
	slog.Info("Stopped generation", "thread_id", msg.ThreadID, "stream_id", req.StreamID)
	return nil
}

// Truncate deletes a message range. A generation whose message is removed is
// stopped.
func (s *ChatService) Truncate(ctx context.Context, threadID, userID string, req *TruncateRequest) (int64, error) {
	if _, err := s.access.Check(ctx, threadID, userID); err != nil {
		return 0, err
	}
	streaming, streamErr := s.repo.GetStreamingMessage(ctx, threadID)

	deleted, err := s.repo.TruncateFrom(ctx, threadID, req.MessageID, req.Inclusive, req.PreserveAfter)
	if err != nil {
		return 0, fmt.Errorf("could not truncate thread: %w", translate(err))
	}

	if streamErr == nil {
		if _, err := s.repo.GetMessage(ctx, streaming.ID); errors.Is(err, repository.ErrNotFound) {
			s.stopStream(ctx, streaming.StreamID)
		}
	}
	slog.Info("Truncated thread", "thread_id", threadID, "from", req.MessageID, "inclusive", req.Inclusive, "deleted", deleted)
	return deleted, nil
}

// Branch copies a thread up to and including messageID into a new thread.
func (s *ChatService) Branch(ctx context.Context, threadID, userID, messageID string) (*model.Thread, error) {
	if _, err := s.access.Check(ctx, threadID, userID); err != nil {
		return nil, err
	}
	src, err := s.repo.GetThread(ctx, threadID)
	if err != nil {
		return nil, translate(err)
	}
	now := s.now().UTC()
	dst := &model.Thread{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     truncate(src.Title, 90) + " (branch)",
		CreatedAt: now,
	}
	n, err := s.repo.CopyMessages(ctx, threadID, messageID, dst)
	if err != nil {
		return nil, fmt.Errorf("could not branch thread: %w", translate(err))
	}
	slog.Info("Branched thread", "thread_id", threadID, "branch_id", dst.ID, "messages", n)
	return dst, nil
}

// --- Helpers ---

// openThread returns the thread a submission goes to. A new thread is only
// built here; CreateExchange inserts it with the first messages.
func (s *ChatService) openThread(ctx context.Context, req *ChatRequest) (*model.Thread, bool, error) {
	if req.ThreadID == "" {
		now := s.now().UTC()
		return &model.Thread{
			ID:        uuid.NewString(),
			UserID:    req.UserID,
			Title:     truncate(req.Message, 50),
			CreatedAt: now,
			UpdatedAt: now,
		}, true, nil
	}

	if _, err := s.access.Check(ctx, req.ThreadID, req.UserID); err != nil {
		return nil, false, err
	}
	thread, err := s.repo.GetThread(ctx, req.ThreadID)
	if err != nil {
		return nil, false, translate(err)
	}
	return thread, false, nil
}

func (s *ChatService) resolveAttachments(ctx context.Context, ids []string) ([]model.Attachment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	attachments := make([]model.Attachment, 0, len(ids))
	for _, id := range ids {
		url, err := s.attachments.Resolve(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("could not resolve attachment %s: %w", id, err)
		}
		attachments = append(attachments, model.Attachment{ID: id, URL: url})
	}
	return attachments, nil
}

// promptHistory builds the provider conversation. Messages between the cutoff
// and the new user message belong to a superseded branch of the conversation
// that is about to be truncated, so they are left out.
func (s *ChatService) promptHistory(ctx context.Context, threadID, assistantID string, userMsg *model.Message, cutoffID string) ([]llm.Message, error) {
	messages, err := s.repo.GetMessages(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("could not get message history: %w", err)
	}

	history := []llm.Message{}
	if s.opts.SystemPrompt != "" {
		history = append(history, llm.Message{Role: string(model.RoleSystem), Content: s.opts.SystemPrompt})
	}
	skipping := false
	for _, msg := range messages {
		if cutoffID != "" && msg.ID == cutoffID {
			skipping = true
		}
		if msg.ID == userMsg.ID {
			skipping = false
		}
		if skipping || msg.ID == assistantID || msg.Status == model.StatusStreaming {
			continue
		}
		if msg.Role == model.RoleAssistant && msg.Content == "" {
			continue
		}
		history = append(history, llm.Message{Role: string(msg.Role), Content: msg.Content})
	}
	return history, nil
}

// abandon marks a freshly created assistant message as failed when its
// generation could not be started.
func (s *ChatService) abandon(streamID, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), finalWriteTimeout)
	defer cancel()
	status := model.StatusError
	_, err := s.repo.UpsertAssistantMessage(ctx, streamID, "", model.MessagePatch{
		Status:   &status,
		Metadata: &model.Metadata{Error: reason},
	})
	if err != nil {
		slog.Error("Failed to mark abandoned generation", "stream_id", streamID, "error", err)
	}
}

func (s *ChatService) stopStream(ctx context.Context, streamID string) {
	if err := s.registry.Stop(ctx, streamID); err != nil && !errors.Is(err, app_errors.ErrNotFound) {
		slog.Warn("Failed to signal stream stop", "stream_id", streamID, "error", err)
	}
}

// generateTitle creates a title for a new thread based on the initial conversation.
func (s *ChatService) generateTitle(ctx context.Context, threadID, userQuery, assistantResponse string) {
	messages := []llm.Message{
		{
			Role:    "system",
			Content: "You are an expert at creating short, concise titles for conversations. Respond with only the title, and nothing else.",
		},
		{
			Role: "user",
			Content: fmt.Sprintf("Based on the following conversation, what would be a good title?\n\n---\nUser: %s\n\nAssistant: %s\n---",
				truncate(userQuery, 150),
				truncate(assistantResponse, 200),
			),
		},
	}
	resp, err := s.llm.Generate(ctx, &llm.GenerateRequest{Model: s.opts.SupportModel, Messages: messages})
	if err != nil {
		slog.Warn("Failed to generate title", "thread_id", threadID, "error", err)
		return
	}

	newTitle := strings.TrimSpace(resp.Response)
	newTitle = strings.Trim(newTitle, `"'`)
	if newTitle == "" {
		slog.Debug("Generated title was empty after cleaning", "thread_id", threadID)
		return
	}
	if err := s.repo.UpdateThreadTitle(ctx, threadID, truncate(newTitle, 100)); err != nil {
		slog.Warn("Failed to update thread title", "thread_id", threadID, "error", err)
		return
	}
	slog.Info("Generated thread title", "thread_id", threadID, "title", newTitle)
}

// translate maps repository sentinels onto application errors.
func translate(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %v", app_errors.ErrNotFound, err)
	}
	return err
}

// truncate shortens a string to a specified number of runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
