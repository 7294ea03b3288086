package stream

import (
	"context"
	"errors"
	"time"

	"flow-stream/backend/internal/model"
)

// ErrClosed is returned when a publisher writes after its stream reached a
// terminal event.
var ErrClosed = errors.New("stream: closed")

// IDRetention is how long a registry remembers a stream id after Open, so
// that the id is never handed out twice.
const IDRetention = 7 * 24 * time.Hour

// Registry tracks in-flight generations so that any number of readers can
// attach to a stream, replay what was produced so far and follow it live.
type Registry interface {
	// Open creates the handle for streamID. A stream id can be opened once;
	// a second Open fails with app_errors.ErrConflict, also after the first
	// stream expired, for as long as IDRetention.
	Open(ctx context.Context, streamID string) (Publisher, error)

	// Attach returns a channel that first replays every event from the start
	// of the stream, then delivers live events and the terminal event, and is
	// closed afterwards or when ctx ends. Unknown streams fail with
	// app_errors.ErrNotFound.
	Attach(ctx context.Context, streamID string) (<-chan model.StreamEvent, error)

	// Stop asks the producer of streamID to stop. It does not wait.
	Stop(ctx context.Context, streamID string) error

	// Exists reports whether the registry still holds streamID.
	Exists(ctx context.Context, streamID string) (bool, error)
}

// Publisher is the single writer of one stream.
type Publisher interface {
	// Publish appends a non-terminal event.
	Publish(ctx context.Context, ev model.StreamEvent) error
	// Complete appends the finish event. No event can follow it.
	Complete(ctx context.Context, final Final) error
	// Fail appends an error event. No event can follow it.
	Fail(ctx context.Context, reason string) error
	// Stopped is closed once a stop was requested through the registry.
	Stopped() <-chan struct{}
	// Close releases the publisher. A stream that never reached a terminal
	// event is failed so that readers do not wait forever.
	Close() error
}

// Final is the accounting attached to a finish event.
type Final struct {
	Usage    *model.Usage
	Metadata *model.Metadata
}

// finishEvent builds the terminal event for a completed stream.
func finishEvent(final Final) model.StreamEvent {
	return model.StreamEvent{Type: model.EventFinish, Usage: final.Usage, Metadata: final.Metadata}
}

// errorEvent builds the terminal event for a failed stream.
func errorEvent(reason string) model.StreamEvent {
	return model.StreamEvent{Type: model.EventError, Error: reason}
}

// closedReason is recorded when a publisher is closed before any terminal event.
const closedReason = "generation ended unexpectedly"
