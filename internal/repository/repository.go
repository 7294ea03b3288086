package repository

import (
	"context"
	"time"

	"flow-stream/backend/internal/model"
)

// Repository is the Message Store: the durable, authoritative record of every
// thread and message. All writes refresh the owning thread's status.
type Repository interface {
	CreateThread(ctx context.Context, thread *model.Thread) error
	GetThread(ctx context.Context, threadID string) (*model.Thread, error)
	ListThreads(ctx context.Context, userID string) ([]*model.Thread, error)
	UpdateThreadTitle(ctx context.Context, threadID, newTitle string) error
	DeleteThread(ctx context.Context, threadID string) error
	// RefreshThreadStatus recomputes a thread's status from its last message.
	RefreshThreadStatus(ctx context.Context, threadID string) error

	// CreateUserMessage stores a completed user message and marks the thread streaming.
	CreateUserMessage(ctx context.Context, threadID, content, clientID string, attachments []model.Attachment) (*model.Message, error)

	// CreateExchange stores a submission in one transaction: the new thread
	// when ex.NewThread is set, the user message and a streaming assistant
	// message owning ex.StreamID. It writes nothing and fails with
	// ErrConflict when the thread is already generating.
	CreateExchange(ctx context.Context, ex *model.Exchange) (user, assistant *model.Message, err error)

	// UpsertAssistantMessage merges patch into the message owning streamID, or
	// creates a streaming assistant message in threadID when none exists.
	// Terminal messages are frozen, so repeating an upsert is a no-op.
	UpsertAssistantMessage(ctx context.Context, streamID, threadID string, patch model.MessagePatch) (*model.Message, error)

	// TruncateFrom deletes messages at or after messageID's position, sparing
	// messages created strictly after preserveAfter when it is set.
	TruncateFrom(ctx context.Context, threadID, messageID string, inclusive bool, preserveAfter *time.Time) (int64, error)

	// CopyMessages copies srcThreadID's messages up to and including
	// uptoMessageID into the newly created dst thread.
	CopyMessages(ctx context.Context, srcThreadID, uptoMessageID string, dst *model.Thread) (int, error)

	GetMessages(ctx context.Context, threadID string) ([]model.Message, error)
	GetMessage(ctx context.Context, messageID string) (*model.Message, error)
	GetMessageByStreamID(ctx context.Context, streamID string) (*model.Message, error)
	GetStreamingMessage(ctx context.Context, threadID string) (*model.Message, error)
	ListStaleStreaming(ctx context.Context, updatedBefore time.Time) ([]model.Message, error)
}
