package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	app_errors "flow-stream/backend/internal/errors"
	"flow-stream/backend/internal/model"
	"flow-stream/backend/internal/reconcile"
	"flow-stream/backend/internal/service"
)

const stoppedByUser = "stopped by user"

// Coordinator drives one thread view: it submits, resumes, stops and
// resubmits generations and feeds every outcome into a Reconciler.
// It is not safe for concurrent use.
type Coordinator struct {
	api      *Client
	threadID string
	rec      *reconcile.Reconciler
	seq      *reconcile.Sequence
	now      func() time.Time

	// pending is a truncate that failed after its resubmission had already
	// started; Refresh retries it.
	pending *service.TruncateRequest
}

// NewCoordinator returns a coordinator for threadID; an empty id starts a new
// thread on the first Send.
func NewCoordinator(api *Client, threadID string) *Coordinator {
	return &Coordinator{
		api:      api,
		threadID: threadID,
		rec:      reconcile.New(),
		seq:      reconcile.NewSequence(""),
		now:      time.Now,
	}
}

// ThreadID returns the thread this coordinator works on.
func (c *Coordinator) ThreadID() string { return c.threadID }

// View returns the reconciled messages.
func (c *Coordinator) View() []model.Message { return c.rec.View() }

// Reconciler exposes the underlying state, e.g. for rendering pending counts.
func (c *Coordinator) Reconciler() *reconcile.Reconciler { return c.rec }

// Refresh loads the persisted messages of the thread, first retrying a
// truncate left over from a resubmission. The snapshot is loaded even when
// that retry fails again.
func (c *Coordinator) Refresh(ctx context.Context) error {
	if c.threadID == "" {
		return nil
	}
	var truncErr error
	if c.pending != nil {
		if truncErr = c.truncate(ctx, c.pending); truncErr == nil {
			c.pending = nil
		}
	}
	messages, err := c.api.Messages(ctx, c.threadID)
	if err != nil {
		return fmt.Errorf("could not refresh thread %s: %w", c.threadID, err)
	}
	c.rec.SetPersisted(messages)
	return truncErr
}

// PendingTruncate reports whether stale messages of a resubmission still
// wait to be deleted on the server.
func (c *Coordinator) PendingTruncate() bool { return c.pending != nil }

// Send submits a new user message.
func (c *Coordinator) Send(ctx context.Context, content, modelID string, attachmentIDs []string) (*Generation, error) {
	return c.submit(ctx, content, modelID, attachmentIDs, "")
}

// Retry regenerates the answer to the user message at or before messageID.
func (c *Coordinator) Retry(ctx context.Context, messageID, modelID string) (*Generation, error) {
	user, err := c.userMessageFor(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if modelID == "" {
		modelID = c.modelAfter(user.ID)
	}
	return c.resubmit(ctx, user, user.Content, modelID, attachmentIDsOf(user))
}

// Edit replaces the user message at or before messageID with new content and
// regenerates from there. Nil attachmentIDs keep the original attachments.
func (c *Coordinator) Edit(ctx context.Context, messageID, content string, attachmentIDs []string, modelID string) (*Generation, error) {
	user, err := c.userMessageFor(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if attachmentIDs == nil {
		attachmentIDs = attachmentIDsOf(user)
	}
	return c.resubmit(ctx, user, content, modelID, attachmentIDs)
}

// Branch copies the thread up to and including messageID into a new thread.
// The current thread is not touched.
func (c *Coordinator) Branch(ctx context.Context, messageID string) (*model.Thread, error) {
	if c.threadID == "" {
		return nil, fmt.Errorf("%w: nothing to branch from", app_errors.ErrValidation)
	}
	return c.api.Branch(ctx, c.threadID, messageID)
}

// Resume re-attaches to the generation streaming in the thread. The server
// replays the stream from its first frame.
func (c *Coordinator) Resume(ctx context.Context) (*Generation, error) {
	if c.threadID == "" {
		return nil, fmt.Errorf("%w: no thread to resume", app_errors.ErrValidation)
	}
	if err := c.Refresh(ctx); err != nil {
		return nil, err
	}
	stream, err := c.api.Resume(ctx, c.threadID)
	if err != nil {
		return nil, err
	}
	return &Generation{coord: c, stream: stream}, nil
}

// Stop marks the generation stopped in the view at once, then asks the server
// to persist the content shown so far.
func (c *Coordinator) Stop(ctx context.Context, g *Generation) error {
	if g.StreamID == "" {
		return fmt.Errorf("%w: generation has not started", app_errors.ErrValidation)
	}
	var content, reasoning string
	for _, m := range c.rec.View() {
		if m.StreamID == g.StreamID || (g.MessageID != "" && m.ID == g.MessageID) {
			content, reasoning = m.Content, m.Reasoning
			break
		}
	}

	status := model.StatusError
	c.rec.Patch(g.MessageID, reconcile.Patch{
		Status:   &status,
		Content:  &content,
		Metadata: &model.Metadata{StopReason: stoppedByUser},
	})
	return c.api.Stop(ctx, &service.StopRequest{StreamID: g.StreamID, Content: content, Reasoning: reasoning})
}

// resubmit hides the stale tail first, starts the new generation, and only
// then truncates. Messages created after the captured instant survive a
// truncate that arrives late. A failed truncate does not fail the
// resubmission: the generation is already running, so the truncate is kept
// and retried by the next Refresh.
func (c *Coordinator) resubmit(ctx context.Context, from model.Message, content, modelID string, attachments []string) (*Generation, error) {
	c.rec.SetCutoff(from.ID)

	preserveAfter := c.now().UTC()
	g, err := c.submit(ctx, content, modelID, attachments, from.ID)
	if err != nil {
		c.rec.ClearCutoff()
		return nil, err
	}

	req := &service.TruncateRequest{
		MessageID:     from.ID,
		Inclusive:     true,
		PreserveAfter: &preserveAfter,
	}
	if err := c.truncate(ctx, req); err != nil {
		slog.Warn("Truncate failed, retrying on next refresh", "thread_id", c.threadID, "message_id", from.ID, "error", err)
		c.pending = req
	}
	return g, nil
}

// truncate deletes a superseded tail. A target that is already gone counts
// as done.
func (c *Coordinator) truncate(ctx context.Context, req *service.TruncateRequest) error {
	deleted, err := c.api.Truncate(ctx, c.threadID, req)
	switch {
	case errors.Is(err, app_errors.ErrNotFound):
		// Already gone, e.g. a concurrent resubmission truncated it.
		slog.Debug("Truncate target already removed", "thread_id", c.threadID, "message_id", req.MessageID)
		return nil
	case err != nil:
		return fmt.Errorf("could not truncate thread: %w", err)
	}
	slog.Debug("Truncated stale messages", "thread_id", c.threadID, "deleted", deleted)
	return nil
}

func (c *Coordinator) submit(ctx context.Context, content, modelID string, attachments []string, cutoffID string) (*Generation, error) {
	created := c.now().UTC()
	userLocal := model.Message{
		ID:        c.seq.Next(),
		ThreadID:  c.threadID,
		Role:      model.RoleUser,
		Content:   content,
		Status:    model.StatusCompleted,
		CreatedAt: created,
	}
	userLocal.ClientID = userLocal.ID
	for _, id := range attachments {
		userLocal.Attachments = append(userLocal.Attachments, model.Attachment{ID: id})
	}
	assistantLocal := model.Message{
		ID:        c.seq.Next(),
		ThreadID:  c.threadID,
		Role:      model.RoleAssistant,
		Status:    model.StatusStreaming,
		Model:     modelID,
		CreatedAt: created.Add(time.Microsecond),
	}
	c.rec.AddLocal(userLocal)
	c.rec.AddLocal(assistantLocal)

	stream, err := c.api.Chat(ctx, &service.ChatRequest{
		ThreadID:        c.threadID,
		Message:         content,
		ModelID:         modelID,
		AttachmentIDs:   attachments,
		ClientID:        userLocal.ClientID,
		CutoffMessageID: cutoffID,
	})
	if err != nil {
		c.rec.DropLocal(userLocal.ID)
		c.rec.DropLocal(assistantLocal.ID)
		return nil, err
	}
	return &Generation{
		coord:       c,
		stream:      stream,
		userLocalID: userLocal.ID,
		localID:     assistantLocal.ID,
	}, nil
}

// userMessageFor finds the user message at or before messageID.
func (c *Coordinator) userMessageFor(ctx context.Context, messageID string) (model.Message, error) {
	if err := c.Refresh(ctx); err != nil {
		return model.Message{}, err
	}
	view := c.rec.View()
	at := -1
	for i, m := range view {
		if m.ID == messageID {
			at = i
			break
		}
	}
	if at < 0 {
		return model.Message{}, fmt.Errorf("%w: message %s is not in thread %s", app_errors.ErrNotFound, messageID, c.threadID)
	}
	for i := at; i >= 0; i-- {
		if view[i].Role == model.RoleUser {
			return view[i], nil
		}
	}
	return model.Message{}, fmt.Errorf("%w: no user message before %s", app_errors.ErrValidation, messageID)
}

// modelAfter returns the model of the first assistant reply after a user message.
func (c *Coordinator) modelAfter(userID string) string {
	view := c.rec.View()
	for i, m := range view {
		if m.ID != userID {
			continue
		}
		for _, next := range view[i+1:] {
			if next.Role == model.RoleAssistant {
				return next.Model
			}
			if next.Role == model.RoleUser {
				break
			}
		}
		break
	}
	return ""
}

func attachmentIDsOf(m model.Message) []string {
	if len(m.Attachments) == 0 {
		return nil
	}
	ids := make([]string, len(m.Attachments))
	for i, a := range m.Attachments {
		ids[i] = a.ID
	}
	return ids
}

// Generation is one streaming response being applied to the view.
type Generation struct {
	coord  *Coordinator
	stream *Stream

	userLocalID string
	localID     string

	StreamID  string
	MessageID string
	// Final is the terminal frame, once seen.
	Final *model.StreamEvent
}

// Next reads one frame, applies it to the view and returns it. It returns
// io.EOF after the stream ended.
func (g *Generation) Next() (model.StreamEvent, error) {
	ev, err := g.stream.Next()
	if err != nil {
		return ev, err
	}
	g.apply(ev)
	return ev, nil
}

// Wait consumes the stream to its end, then refreshes the persisted view so
// the local echo can be reconciled away.
func (g *Generation) Wait(ctx context.Context) error {
	defer func() { _ = g.Close() }()
	for {
		if _, err := g.Next(); err != nil {
			if !errors.Is(err, io.EOF) {
				return err
			}
			break
		}
	}
	if g.Final == nil {
		return fmt.Errorf("stream for %s ended without a terminal frame", g.StreamID)
	}
	return g.coord.Refresh(ctx)
}

// Close detaches from the stream; the server-side generation keeps running.
func (g *Generation) Close() error {
	return g.stream.Close()
}

func (g *Generation) apply(ev model.StreamEvent) {
	rec := g.coord.rec
	switch ev.Type {
	case model.EventThreadCreated:
		g.coord.threadID = ev.ID
	case model.EventStart:
		g.StreamID, g.MessageID = ev.StreamID, ev.MessageID
		if ev.ThreadID != "" {
			g.coord.threadID = ev.ThreadID
		}
		if g.userLocalID != "" && ev.UserMessageID != "" {
			rec.UpdateLocal(g.userLocalID, func(m *model.Message) {
				m.ID, m.ThreadID = ev.UserMessageID, ev.ThreadID
			})
			g.userLocalID = ev.UserMessageID
		}
		if g.localID == "" {
			// Resumed stream: the replay rebuilds the content from scratch.
			rec.AddLocal(model.Message{
				ID:       ev.MessageID,
				ThreadID: ev.ThreadID,
				Role:     model.RoleAssistant,
				Status:   model.StatusStreaming,
				StreamID: ev.StreamID,
			})
		} else {
			rec.UpdateLocal(g.localID, func(m *model.Message) {
				m.ID, m.StreamID, m.ThreadID = ev.MessageID, ev.StreamID, ev.ThreadID
			})
		}
		g.localID = ev.MessageID
	case model.EventContent:
		rec.AppendLocal(g.localID, ev.Delta)
	case model.EventReasoning:
		rec.AppendLocalReasoning(g.localID, ev.Delta)
	case model.EventFinish:
		g.Final = &ev
		rec.UpdateLocal(g.localID, func(m *model.Message) {
			m.Status = model.StatusCompleted
			meta := model.Metadata{Usage: ev.Usage}
			if ev.Metadata != nil {
				meta = *ev.Metadata
				if meta.Usage == nil {
					meta.Usage = ev.Usage
				}
			}
			m.Metadata = &meta
		})
	case model.EventError:
		g.Final = &ev
		rec.UpdateLocal(g.localID, func(m *model.Message) {
			m.Status = model.StatusError
			meta := model.Metadata{Error: ev.Error}
			if ev.Metadata != nil {
				meta = *ev.Metadata
			}
			m.Metadata = &meta
		})
	}
}
