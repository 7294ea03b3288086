package model

// StreamEventType names one frame of a chat response stream.
type StreamEventType string

const (
	EventThreadCreated StreamEventType = "thread-created"
	EventStart         StreamEventType = "start"
	EventContent       StreamEventType = "content"
	EventReasoning     StreamEventType = "reasoning"
	EventFinish        StreamEventType = "finish"
	EventError         StreamEventType = "error"
)

// IsTerminal reports whether t ends a stream.
func (t StreamEventType) IsTerminal() bool {
	return t == EventFinish || t == EventError
}

// StreamEvent is the structure for a single frame in a streaming response.
// The same value is stored in the stream registry and written to SSE clients.
type StreamEvent struct {
	Type StreamEventType `json:"type"`
	// Seq is the 1-based position of the event in its stream log.
	Seq int64 `json:"seq,omitempty"`
	// ID carries the new thread id on thread-created frames.
	ID            string    `json:"id,omitempty"`
	ThreadID      string    `json:"threadId,omitempty"`
	MessageID     string    `json:"messageId,omitempty"`
	UserMessageID string    `json:"userMessageId,omitempty"`
	StreamID      string    `json:"streamId,omitempty"`
	Delta         string    `json:"delta,omitempty"`
	Usage         *Usage    `json:"usage,omitempty"`
	Metadata      *Metadata `json:"metadata,omitempty"`
	Error         string    `json:"error,omitempty"`
}
