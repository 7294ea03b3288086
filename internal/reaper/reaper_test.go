package reaper

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flow-stream/backend/internal/database"
	"flow-stream/backend/internal/model"
	"flow-stream/backend/internal/repository"
	"flow-stream/backend/internal/stream"
)

func TestNew_InvalidCron(t *testing.T) {
	_, err := New(nil, nil, "every five minutes", time.Minute)
	assert.ErrorContains(t, err, "invalid reaper cron expression")
}

func TestReaper_RunOnce(t *testing.T) {
	ctx := context.Background()
	db, err := database.InitDB(filepath.Join(t.TempDir(), "flow.db"))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	past := time.Now().Add(-time.Hour)
	oldRepo := repository.NewSQLiteRepository(db, repository.WithClock(func() time.Time { return past }))
	repo := repository.NewSQLiteRepository(db)
	registry := stream.NewMemoryRegistry(time.Minute, 2*time.Hour)

	for _, id := range []string{"orphaned", "alive", "fresh"} {
		require.NoError(t, repo.CreateThread(ctx, &model.Thread{ID: id, UserID: "default-user"}))
	}
	_, err = oldRepo.UpsertAssistantMessage(ctx, "s-orphaned", "orphaned", model.MessagePatch{Model: "llama"})
	require.NoError(t, err)
	_, err = oldRepo.UpsertAssistantMessage(ctx, "s-alive", "alive", model.MessagePatch{Model: "llama"})
	require.NoError(t, err)
	_, err = registry.Open(ctx, "s-alive")
	require.NoError(t, err)
	_, err = repo.UpsertAssistantMessage(ctx, "s-fresh", "fresh", model.MessagePatch{Model: "llama"})
	require.NoError(t, err)

	r, err := New(repo, registry, "*/5 * * * *", 30*time.Minute)
	require.NoError(t, err)

	n, err := r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	orphaned, err := repo.GetMessageByStreamID(ctx, "s-orphaned")
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, orphaned.Status)
	assert.Equal(t, interruptedReason, orphaned.Metadata.Error)
	thread, err := repo.GetThread(ctx, "orphaned")
	require.NoError(t, err)
	assert.Equal(t, model.ThreadError, thread.Status)

	for _, id := range []string{"s-alive", "s-fresh"} {
		msg, err := repo.GetMessageByStreamID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.StatusStreaming, msg.Status, id)
	}

	// A second run finds nothing left to do.
	n, err = r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
