package reaper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"

	"flow-stream/backend/internal/metrics"
	"flow-stream/backend/internal/model"
	"flow-stream/backend/internal/repository"
	"flow-stream/backend/internal/stream"
)

const interruptedReason = "generation interrupted"

// Reaper marks streaming messages whose generation no longer exists as
// failed, so a crashed worker never leaves a thread stuck in streaming.
type Reaper struct {
	repo     repository.Repository
	registry stream.Registry
	cron     string
	maxAge   time.Duration
	now      func() time.Time
}

// New validates cronExpr and returns a reaper for messages that have not been
// updated for maxAge.
func New(repo repository.Repository, registry stream.Registry, cronExpr string, maxAge time.Duration) (*Reaper, error) {
	if !gronx.IsValid(cronExpr) {
		return nil, fmt.Errorf("invalid reaper cron expression: %s", cronExpr)
	}
	return &Reaper{
		repo:     repo,
		registry: registry,
		cron:     cronExpr,
		maxAge:   maxAge,
		now:      time.Now,
	}, nil
}

// Start runs the reaper on its cron schedule until the returned cancel func
// is called or ctx ends.
func (r *Reaper) Start(ctx context.Context) context.CancelFunc {
	ctx, cancel := context.WithCancel(ctx)
	slog.Info("Stale stream reaper started", "cron", r.cron, "max_age", r.maxAge)
	go r.scheduleLoop(ctx)
	return cancel
}

func (r *Reaper) scheduleLoop(ctx context.Context) {
	for {
		next, err := gronx.NextTickAfter(r.cron, r.now().UTC(), false)
		if err != nil {
			slog.Error("Failed to compute next reaper tick", "cron", r.cron, "error", err)
			next = r.now().Add(time.Minute)
		}

		select {
		case <-ctx.Done():
			slog.Info("Stale stream reaper stopping")
			return
		case <-time.After(time.Until(next)):
		}

		if n, err := r.RunOnce(ctx); err != nil {
			slog.Error("Reaper run failed", "error", err)
		} else if n > 0 {
			slog.Info("Reaped stale streaming messages", "count", n)
		}
	}
}

// RunOnce reaps every eligible message and returns how many were marked.
func (r *Reaper) RunOnce(ctx context.Context) (int, error) {
	stale, err := r.repo.ListStaleStreaming(ctx, r.now().Add(-r.maxAge))
	if err != nil {
		return 0, fmt.Errorf("could not list stale messages: %w", err)
	}

	reaped := 0
	for _, msg := range stale {
		alive, err := r.registry.Exists(ctx, msg.StreamID)
		if err != nil {
			slog.Warn("Could not check stream, skipping", "stream_id", msg.StreamID, "error", err)
			continue
		}
		if alive {
			continue
		}

		status := model.StatusError
		_, err = r.repo.UpsertAssistantMessage(ctx, msg.StreamID, "", model.MessagePatch{
			Status:   &status,
			Metadata: &model.Metadata{Error: interruptedReason},
		})
		if err != nil {
			slog.Error("Failed to reap message", "message_id", msg.ID, "stream_id", msg.StreamID, "error", err)
			continue
		}
		slog.Warn("Reaped stale streaming message", "thread_id", msg.ThreadID, "message_id", msg.ID, "stream_id", msg.StreamID)
		metrics.ReapedMessages.Inc()
		reaped++
	}
	return reaped, nil
}
