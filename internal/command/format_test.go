package command

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"flow-stream/backend/internal/model"
)

func TestFormatMetadata(t *testing.T) {
	testCases := []struct {
		name string
		md   *model.Metadata
		want string
	}{
		{name: "nil", md: nil, want: ""},
		{name: "duration only", md: &model.Metadata{DurationMs: 250}, want: "250ms"},
		{
			name: "stopped",
			md:   &model.Metadata{DurationMs: 12300, StopReason: "stopped by user"},
			want: "12.3s, stopped by user",
		},
		{
			name: "usage and error",
			md: &model.Metadata{
				Usage: &model.Usage{PromptTokens: 12000, CompletionTokens: 5, TotalTokens: 12005},
				Error: "provider error: boom",
			},
			want: "12,005 tokens (12,000 prompt, 5 completion), error: provider error: boom",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, formatMetadata(tc.md))
		})
	}
}

func TestFormatMessage(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	msg := model.Message{
		ID:        "m2",
		Role:      model.RoleAssistant,
		Model:     "llama",
		Content:   "line one\nline two",
		Status:    model.StatusStreaming,
		CreatedAt: now.Add(-3 * time.Minute),
	}

	assert.Equal(t, "assistant m2 (llama) 3 minutes ago [streaming]\n  line one\n  line two\n", formatMessage(msg, now))
}

func TestFormatThread(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	thread := &model.Thread{ID: "t1", Title: "Plans", Status: model.ThreadIdle, UpdatedAt: now.Add(-2 * time.Hour)}

	assert.Equal(t, "t1  Plans  (2 hours ago)", formatThread(thread, now))
}
