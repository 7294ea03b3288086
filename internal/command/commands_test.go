package command

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flow-stream/backend/internal/model"
	"flow-stream/backend/internal/service"
)

// fakeServer serves canned responses for one thread.
type fakeServer struct {
	*httptest.Server
	messages []model.Message
	frames   []model.StreamEvent
	stops    []service.StopRequest
	users    []string
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	f := &fakeServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/threads", func(w http.ResponseWriter, r *http.Request) {
		f.users = append(f.users, r.Header.Get("X-User-ID"))
		_ = json.NewEncoder(w).Encode([]*model.Thread{{ID: "t1", Title: "Greetings", Status: model.ThreadStreaming, UpdatedAt: time.Now()}})
	})
	mux.HandleFunc("GET /api/v1/threads/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "t1" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"The requested resource was not found."}`))
			return
		}
		_ = json.NewEncoder(w).Encode(f.messages)
	})
	mux.HandleFunc("POST /api/v1/chat/stop", func(w http.ResponseWriter, r *http.Request) {
		var req service.StopRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.stops = append(f.stops, req)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("POST /api/v1/chat", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, ev := range f.frames {
			data, _ := json.Marshal(ev)
			_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
		}
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func runCmd(t *testing.T, f *fakeServer, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--server", f.URL, "--user", "alice"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestThreadsCmd(t *testing.T) {
	f := newFakeServer(t)

	out, err := runCmd(t, f, "threads")
	require.NoError(t, err)
	assert.Contains(t, out, "t1  Greetings [streaming]")
	assert.Equal(t, []string{"alice"}, f.users)
}

func TestMessagesCmd(t *testing.T) {
	f := newFakeServer(t)
	f.messages = []model.Message{
		{ID: "m1", Role: model.RoleUser, Content: "Hi", Status: model.StatusCompleted},
		{ID: "m2", Role: model.RoleAssistant, Content: "Hello", Status: model.StatusCompleted, Model: "llama",
			Metadata: &model.Metadata{Usage: &model.Usage{PromptTokens: 1000, CompletionTokens: 234, TotalTokens: 1234}}},
	}

	out, err := runCmd(t, f, "messages", "t1")
	require.NoError(t, err)
	assert.Contains(t, out, "you m1\n  Hi\n")
	assert.Contains(t, out, "assistant m2 (llama)\n  Hello\n")
	assert.Contains(t, out, "1,234 tokens (1,000 prompt, 234 completion)")

	out, err = runCmd(t, f, "--json", "messages", "t1")
	require.NoError(t, err)
	var decoded []model.Message
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Len(t, decoded, 2)

	_, err = runCmd(t, f, "messages", "missing")
	assert.ErrorContains(t, err, "status 404")
}

func TestStopCmd(t *testing.T) {
	f := newFakeServer(t)
	f.messages = []model.Message{
		{ID: "m1", Role: model.RoleUser, Content: "Hi", Status: model.StatusCompleted},
		{ID: "m2", Role: model.RoleAssistant, Content: "partial", Status: model.StatusStreaming, StreamID: "s1"},
	}

	out, err := runCmd(t, f, "stop", "t1")
	require.NoError(t, err)
	assert.Equal(t, "Stopped m2\n", out)
	require.Len(t, f.stops, 1)
	assert.Equal(t, service.StopRequest{StreamID: "s1", Content: "partial"}, f.stops[0])

	f.messages[1].Status = model.StatusError
	_, err = runCmd(t, f, "stop", "t1")
	assert.ErrorContains(t, err, "nothing is generating")
}

func TestChatCmd(t *testing.T) {
	f := newFakeServer(t)
	f.frames = []model.StreamEvent{
		{Type: model.EventThreadCreated, ID: "t1"},
		{Type: model.EventStart, ThreadID: "t1", MessageID: "m2", UserMessageID: "m1", StreamID: "s1"},
		{Type: model.EventContent, Delta: "Hel"},
		{Type: model.EventContent, Delta: "lo"},
		{Type: model.EventFinish, Metadata: &model.Metadata{DurationMs: 1500}},
	}
	f.messages = []model.Message{
		{ID: "m1", ThreadID: "t1", Role: model.RoleUser, Content: "Hi", Status: model.StatusCompleted},
		{ID: "m2", ThreadID: "t1", Role: model.RoleAssistant, Content: "Hello", Status: model.StatusCompleted, StreamID: "s1"},
	}

	out, err := runCmd(t, f, "chat", "Hi")
	require.NoError(t, err)
	assert.Equal(t, "thread t1\nHello\n-- 1.5s\n", out)
}

func TestChatCmd_StreamWithoutResult(t *testing.T) {
	f := newFakeServer(t)
	f.frames = []model.StreamEvent{
		{Type: model.EventThreadCreated, ID: "t1"},
		{Type: model.EventStart, ThreadID: "t1", MessageID: "m2", UserMessageID: "m1", StreamID: "s1"},
	}

	_, err := runCmd(t, f, "chat", "Hi")
	assert.ErrorContains(t, err, "stream ended without a result")
}
