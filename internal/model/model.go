package model

import (
	"slices"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// MessageStatus is the lifecycle state of a single message.
type MessageStatus string

const (
	StatusStreaming MessageStatus = "streaming"
	StatusCompleted MessageStatus = "completed"
	StatusError     MessageStatus = "error"
)

// IsTerminal reports whether no further transition can occur from s.
func (s MessageStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// CanTransitionTo reports whether moving from s to next keeps the lifecycle
// monotonic: streaming may end in completed or error, terminal states are final.
func (s MessageStatus) CanTransitionTo(next MessageStatus) bool {
	if s == next {
		return true
	}
	return s == StatusStreaming && next.IsTerminal()
}

// ThreadStatus mirrors the lifecycle of the most recent message of a thread.
type ThreadStatus string

const (
	ThreadIdle      ThreadStatus = "idle"
	ThreadStreaming ThreadStatus = "streaming"
	ThreadError     ThreadStatus = "error"
)

// ThreadStatusFor maps a message status to the thread status it implies.
func ThreadStatusFor(s MessageStatus) ThreadStatus {
	switch s {
	case StatusStreaming:
		return ThreadStreaming
	case StatusError:
		return ThreadError
	default:
		return ThreadIdle
	}
}

// Thread stores metadata about a conversation.
type Thread struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	UserID    string       `json:"userId"`
	Status    ThreadStatus `json:"status"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Attachment is a reference to a stored file, resolved to a URL on write.
type Attachment struct {
	ID  string `json:"id"`
	URL string `json:"url,omitempty"`
}

// Usage reports token accounting for one generation.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Metadata is the structured side-channel stored with an assistant message.
type Metadata struct {
	Usage      *Usage `json:"usage,omitempty"`
	DurationMs int64  `json:"durationMs,omitempty"`
	StopReason string `json:"stopReason,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Message stores a single message in a thread.
type Message struct {
	ID          string        `json:"id"`
	ThreadID    string        `json:"threadId"`
	Role        Role          `json:"role"`
	Content     string        `json:"content"`
	Status      MessageStatus `json:"status"`
	StreamID    string        `json:"streamId,omitempty"` // Assistant messages only.
	ClientID    string        `json:"clientId,omitempty"`
	Model       string        `json:"model,omitempty"`
	Metadata    *Metadata     `json:"metadata,omitempty"`
	Reasoning   string        `json:"reasoning,omitempty"`
	Attachments []Attachment  `json:"attachments,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// Clone returns a copy of m that shares no metadata or attachments with it.
func (m Message) Clone() Message {
	if m.Metadata != nil {
		md := *m.Metadata
		if md.Usage != nil {
			usage := *md.Usage
			md.Usage = &usage
		}
		m.Metadata = &md
	}
	m.Attachments = slices.Clone(m.Attachments)
	return m
}

// MessagePatch is a partial update applied by upsert-by-streamId.
// Nil fields are left untouched.
type MessagePatch struct {
	Status    *MessageStatus
	Content   *string
	Reasoning *string
	Metadata  *Metadata
	Model     string
	ClientID  string
}

// Exchange is one submission: a user message and the streaming assistant
// message that answers it. NewThread is created alongside them when set.
type Exchange struct {
	NewThread   *Thread
	ThreadID    string
	Content     string
	ClientID    string
	Attachments []Attachment
	StreamID    string
	Model       string
}

// FullThread includes the thread metadata and all its messages.
type FullThread struct {
	Thread
	Messages []Message `json:"messages"`
}
