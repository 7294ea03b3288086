package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	app_errors "flow-stream/backend/internal/errors"
	"flow-stream/backend/internal/llm"
	"flow-stream/backend/internal/metrics"
	"flow-stream/backend/internal/model"
	"flow-stream/backend/internal/stream"
)

const (
	finalWriteTimeout = 10 * time.Second
	titleTimeout      = 30 * time.Second
)

// generation is the state one worker owns.
type generation struct {
	threadID    string
	streamID    string
	publisher   stream.Publisher
	isNewThread bool
	userContent string
	request     *llm.GenerateRequest
}

// outcome is how a generation ended.
type outcome struct {
	status    model.MessageStatus
	usage     *model.Usage
	stop      string
	errReason string
}

// runWorker drives one generation from the provider into the stream registry
// and the message store. It never uses a request context: a client going away
// does not end the generation.
func (s *ChatService) runWorker(g *generation) {
	defer s.workers.Done()
	defer g.publisher.Close()
	log := slog.With("thread_id", g.threadID, "stream_id", g.streamID)

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if s.opts.MaxLifetime > 0 {
		ctx, cancel = context.WithTimeout(s.workerCtx, s.opts.MaxLifetime)
	} else {
		ctx, cancel = context.WithCancel(s.workerCtx)
	}
	defer cancel()

	started := s.now()
	chunks := make(chan llm.StreamResponse)
	providerDone := make(chan error, 1)
	go func() { providerDone <- s.llm.GenerateStream(ctx, g.request, chunks) }()

	var content, reasoning strings.Builder
	var (
		stats            *llm.GenerationStats
		failure          string
		finished, closed bool
		stopped, dirty   bool
	)

	persist := time.NewTicker(s.persistInterval())
	defer persist.Stop()
	stopCh := g.publisher.Stopped()
	var grace <-chan time.Time

loop:
	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				closed = true
				break loop
			}
			if chunk.Error != "" {
				failure = chunk.Error
				break loop
			}
			if chunk.Reasoning != "" {
				reasoning.WriteString(chunk.Reasoning)
				dirty = true
				s.publish(g, model.EventReasoning, chunk.Reasoning)
			}
			if chunk.Content != "" {
				content.WriteString(chunk.Content)
				dirty = true
				s.publish(g, model.EventContent, chunk.Content)
			}
			if chunk.Done {
				stats = chunk.Stats
				finished = true
				break loop
			}
		case <-persist.C:
			if dirty {
				s.snapshot(g, content.String(), reasoning.String())
				dirty = false
			}
		case <-stopCh:
			log.Info("Stop requested")
			stopCh = nil
			stopped = true
			cancel()
			grace = time.After(s.opts.StopGrace)
		case <-grace:
			log.Warn("Provider did not honor cancellation, finalizing anyway")
			break loop
		}
	}
	cancel()

	var providerErr error
	if closed {
		providerErr = <-providerDone
	}

	out := s.classify(stopped, finished, failure, providerErr, stats)
	if out.status == model.StatusError {
		log.Warn("Generation ended with an error", "reason", out.errReason, "stop_reason", out.stop)
	}
	s.finalize(g, out, content.String(), reasoning.String(), s.now().Sub(started))

	if out.status == model.StatusCompleted && g.isNewThread && s.opts.SupportModel != "" {
		tctx, tcancel := context.WithTimeout(context.Background(), titleTimeout)
		s.generateTitle(tctx, g.threadID, g.userContent, content.String())
		tcancel()
	}
}

// classify decides the terminal status of a generation.
func (s *ChatService) classify(stopped, finished bool, failure string, providerErr error, stats *llm.GenerationStats) outcome {
	switch {
	case stopped:
		return outcome{status: model.StatusError, stop: stoppedByUser}
	case failure != "":
		return outcome{status: model.StatusError, errReason: providerReason(failure)}
	case finished:
		out := outcome{status: model.StatusCompleted}
		if stats != nil {
			out.usage = &model.Usage{
				PromptTokens:     stats.PromptEvalCount,
				CompletionTokens: stats.EvalCount,
				TotalTokens:      stats.PromptEvalCount + stats.EvalCount,
			}
			out.stop = stats.DoneReason
		}
		return out
	case s.workerCtx.Err() != nil:
		return outcome{status: model.StatusError, errReason: "generation interrupted by server shutdown"}
	case errors.Is(providerErr, context.DeadlineExceeded):
		return outcome{status: model.StatusError, errReason: "generation exceeded its maximum lifetime"}
	case providerErr != nil:
		return outcome{status: model.StatusError, errReason: providerReason(providerErr.Error())}
	default:
		return outcome{status: model.StatusError, errReason: providerReason("stream ended without a final chunk")}
	}
}

func providerReason(reason string) string {
	return fmt.Errorf("%w: %s", app_errors.ErrProvider, reason).Error()
}

// finalize writes the terminal message before the terminal stream event, so a
// reader that sees the event can refetch the final message.
func (s *ChatService) finalize(g *generation, out outcome, content, reasoning string, elapsed time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), finalWriteTimeout)
	defer cancel()
	log := slog.With("thread_id", g.threadID, "stream_id", g.streamID)

	md := &model.Metadata{
		Usage:      out.usage,
		DurationMs: elapsed.Milliseconds(),
		StopReason: out.stop,
		Error:      out.errReason,
	}
	status := out.status
	patch := model.MessagePatch{Status: &status, Content: &content, Metadata: md}
	if reasoning != "" {
		patch.Reasoning = &reasoning
	}
	if _, err := s.repo.UpsertAssistantMessage(ctx, g.streamID, "", patch); err != nil {
		if errors.Is(err, app_errors.ErrValidation) {
			log.Info("Message was removed before the generation finished")
		} else {
			log.Error("CRITICAL: Failed to save final assistant message", "error", err)
		}
	}

	var err error
	switch {
	case status == model.StatusCompleted:
		err = g.publisher.Complete(ctx, stream.Final{Usage: out.usage, Metadata: md})
		metrics.GenerationsTotal.WithLabelValues(metrics.OutcomeCompleted).Inc()
	case out.stop == stoppedByUser:
		err = g.publisher.Fail(ctx, stoppedByUser)
		metrics.GenerationsTotal.WithLabelValues(metrics.OutcomeStopped).Inc()
	default:
		err = g.publisher.Fail(ctx, out.errReason)
		metrics.GenerationsTotal.WithLabelValues(metrics.OutcomeError).Inc()
	}
	if err != nil {
		log.Error("Failed to publish terminal event", "error", err)
	}
	metrics.GenerationDuration.Observe(elapsed.Seconds())
	log.Info("Generation finished", "status", status, "duration_ms", md.DurationMs)
}

func (s *ChatService) publish(g *generation, typ model.StreamEventType, delta string) {
	if err := g.publisher.Publish(context.Background(), model.StreamEvent{Type: typ, Delta: delta}); err != nil {
		slog.Warn("Failed to publish stream event", "stream_id", g.streamID, "error", err)
	}
}

// snapshot persists in-flight content so that a reload shows recent text even
// without the stream.
func (s *ChatService) snapshot(g *generation, content, reasoning string) {
	ctx, cancel := context.WithTimeout(context.Background(), finalWriteTimeout)
	defer cancel()
	patch := model.MessagePatch{Content: &content}
	if reasoning != "" {
		patch.Reasoning = &reasoning
	}
	if _, err := s.repo.UpsertAssistantMessage(ctx, g.streamID, "", patch); err != nil {
		slog.Debug("Skipped content snapshot", "stream_id", g.streamID, "error", err)
		return
	}
	metrics.SnapshotWrites.Inc()
}

func (s *ChatService) persistInterval() time.Duration {
	if s.opts.PersistInterval > 0 {
		return s.opts.PersistInterval
	}
	return time.Second
}
