package stream

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app_errors "flow-stream/backend/internal/errors"
	"flow-stream/backend/internal/model"
)

// collect drains ch until it is closed, failing the test after a timeout.
func collect(t *testing.T, ch <-chan model.StreamEvent) []model.StreamEvent {
	t.Helper()
	var events []model.StreamEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("stream did not close, received %d events", len(events))
			return events
		}
	}
}

func contentOf(events []model.StreamEvent) string {
	var sb strings.Builder
	for _, ev := range events {
		if ev.Type == model.EventContent {
			sb.WriteString(ev.Delta)
		}
	}
	return sb.String()
}

func publishAll(t *testing.T, pub Publisher, deltas ...string) {
	t.Helper()
	for _, d := range deltas {
		require.NoError(t, pub.Publish(context.Background(), model.StreamEvent{Type: model.EventContent, Delta: d}))
	}
}

func TestMemoryRegistry_OpenConflict(t *testing.T) {
	reg := NewMemoryRegistry(time.Minute, time.Hour)
	_, err := reg.Open(context.Background(), "s1")
	require.NoError(t, err)

	_, err = reg.Open(context.Background(), "s1")
	assert.ErrorIs(t, err, app_errors.ErrConflict)
}

func TestMemoryRegistry_AttachUnknown(t *testing.T) {
	reg := NewMemoryRegistry(time.Minute, time.Hour)
	_, err := reg.Attach(context.Background(), "missing")
	assert.ErrorIs(t, err, app_errors.ErrNotFound)
	assert.ErrorIs(t, reg.Stop(context.Background(), "missing"), app_errors.ErrNotFound)
}

func TestMemoryRegistry_ResumeFidelity(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry(time.Minute, time.Hour)
	pub, err := reg.Open(ctx, "s1")
	require.NoError(t, err)

	early, err := reg.Attach(ctx, "s1")
	require.NoError(t, err)

	publishAll(t, pub, "Hel", "lo")
	late, err := reg.Attach(ctx, "s1")
	require.NoError(t, err)

	publishAll(t, pub, " world")
	require.NoError(t, pub.Complete(ctx, Final{Usage: &model.Usage{TotalTokens: 3}}))

	for _, ch := range []<-chan model.StreamEvent{early, late} {
		events := collect(t, ch)
		require.Len(t, events, 4)
		assert.Equal(t, "Hello world", contentOf(events))
		for i, ev := range events {
			assert.Equal(t, int64(i+1), ev.Seq)
			assert.Equal(t, "s1", ev.StreamID)
		}
		last := events[len(events)-1]
		assert.Equal(t, model.EventFinish, last.Type)
		assert.Equal(t, 3, last.Usage.TotalTokens)
	}

	// Attaching after the end still replays the whole log.
	after, err := reg.Attach(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Hello world", contentOf(collect(t, after)))
}

func TestMemoryRegistry_ConcurrentReaders(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry(time.Minute, time.Hour)
	pub, err := reg.Open(ctx, "s1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		ch, err := reg.Attach(ctx, "s1")
		require.NoError(t, err)
		wg.Add(1)
		go func(i int, ch <-chan model.StreamEvent) {
			defer wg.Done()
			var events []model.StreamEvent
			for ev := range ch {
				events = append(events, ev)
			}
			results[i] = contentOf(events)
		}(i, ch)
	}

	var want strings.Builder
	for i := 0; i < 200; i++ {
		want.WriteString("x")
		require.NoError(t, pub.Publish(ctx, model.StreamEvent{Type: model.EventContent, Delta: "x"}))
	}
	require.NoError(t, pub.Complete(ctx, Final{}))
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, want.String(), got)
	}
}

func TestMemoryRegistry_TerminalEvents(t *testing.T) {
	ctx := context.Background()

	t.Run("Nothing follows a terminal event", func(t *testing.T) {
		reg := NewMemoryRegistry(time.Minute, time.Hour)
		pub, err := reg.Open(ctx, "s1")
		require.NoError(t, err)

		require.NoError(t, pub.Fail(ctx, "provider failed"))
		assert.ErrorIs(t, pub.Publish(ctx, model.StreamEvent{Type: model.EventContent, Delta: "x"}), ErrClosed)
		assert.ErrorIs(t, pub.Complete(ctx, Final{}), ErrClosed)
	})

	t.Run("Publish rejects terminal types", func(t *testing.T) {
		reg := NewMemoryRegistry(time.Minute, time.Hour)
		pub, err := reg.Open(ctx, "s1")
		require.NoError(t, err)
		err = pub.Publish(ctx, model.StreamEvent{Type: model.EventFinish})
		assert.ErrorIs(t, err, app_errors.ErrValidation)
	})

	t.Run("Close fails an unfinished stream", func(t *testing.T) {
		reg := NewMemoryRegistry(time.Minute, time.Hour)
		pub, err := reg.Open(ctx, "s1")
		require.NoError(t, err)
		publishAll(t, pub, "partial")
		require.NoError(t, pub.Close())

		ch, err := reg.Attach(ctx, "s1")
		require.NoError(t, err)
		events := collect(t, ch)
		require.Len(t, events, 2)
		assert.Equal(t, model.EventError, events[1].Type)
		assert.Equal(t, closedReason, events[1].Error)
	})
}

func TestMemoryRegistry_Stop(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry(time.Minute, time.Hour)
	pub, err := reg.Open(ctx, "s1")
	require.NoError(t, err)

	select {
	case <-pub.Stopped():
		t.Fatal("stream stopped before Stop was called")
	default:
	}

	require.NoError(t, reg.Stop(ctx, "s1"))
	require.NoError(t, reg.Stop(ctx, "s1"))
	select {
	case <-pub.Stopped():
	case <-time.After(time.Second):
		t.Fatal("Stopped was not signalled")
	}
}

func TestMemoryRegistry_AttachCancel(t *testing.T) {
	reg := NewMemoryRegistry(time.Minute, time.Hour)
	_, err := reg.Open(context.Background(), "s1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := reg.Attach(ctx, "s1")
	require.NoError(t, err)
	cancel()
	assert.Empty(t, collect(t, ch))
}

func TestMemoryRegistry_Sweep(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	reg := NewMemoryRegistry(time.Minute, time.Hour)
	reg.now = func() time.Time { return now }

	finished, err := reg.Open(ctx, "finished")
	require.NoError(t, err)
	require.NoError(t, finished.Complete(ctx, Final{}))
	live, err := reg.Open(ctx, "live")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, reg.Sweep())
	exists, _ := reg.Exists(ctx, "finished")
	assert.False(t, exists)
	exists, _ = reg.Exists(ctx, "live")
	assert.True(t, exists)

	ch, err := reg.Attach(ctx, "live")
	require.NoError(t, err)
	now = now.Add(time.Hour)
	assert.Equal(t, 1, reg.Sweep())

	events := collect(t, ch)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventError, events[0].Type)
	assert.ErrorIs(t, live.Publish(ctx, model.StreamEvent{Type: model.EventContent}), ErrClosed)
}

func TestMemoryRegistry_SweptIDCannotBeReopened(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	reg := NewMemoryRegistry(time.Minute, time.Hour)
	reg.now = func() time.Time { return now }

	pub, err := reg.Open(ctx, "s1")
	require.NoError(t, err)
	require.NoError(t, pub.Complete(ctx, Final{}))

	now = now.Add(2 * time.Minute)
	require.Equal(t, 1, reg.Sweep())
	exists, _ := reg.Exists(ctx, "s1")
	require.False(t, exists)

	_, err = reg.Open(ctx, "s1")
	assert.ErrorIs(t, err, app_errors.ErrConflict)

	// The id is forgotten once the retention is over.
	now = now.Add(IDRetention)
	reg.Sweep()
	_, err = reg.Open(ctx, "s1")
	assert.NoError(t, err)
}
