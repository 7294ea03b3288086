package interfaces

import (
	"context"

	"flow-stream/backend/internal/model"
	"flow-stream/backend/internal/service"
)

// This file defines the interfaces for our core services.
// The API layer depends on these contracts, not on concrete implementations,
// and tests substitute mocks generated from them.

// ChatService defines the contract for thread management and resumable generations.
type ChatService interface {
	ListThreads(ctx context.Context, userID string) ([]*model.Thread, error)
	GetThread(ctx context.Context, threadID, userID string) (*model.FullThread, error)
	GetMessages(ctx context.Context, threadID, userID string) ([]model.Message, error)
	UpdateThreadTitle(ctx context.Context, threadID, userID, newTitle string) error
	DeleteThread(ctx context.Context, threadID, userID string) error

	StartChat(ctx context.Context, req *service.ChatRequest) (*service.ChatSession, error)
	Resume(ctx context.Context, threadID, userID string) (*service.ChatSession, error)
	Stop(ctx context.Context, userID string, req *service.StopRequest) error
	Truncate(ctx context.Context, threadID, userID string, req *service.TruncateRequest) (int64, error)
	Branch(ctx context.Context, threadID, userID, messageID string) (*model.Thread, error)
}
