package stream

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app_errors "flow-stream/backend/internal/errors"
	"flow-stream/backend/internal/model"
)

func setupRedisRegistry(t *testing.T) (*RedisRegistry, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	reg := NewRedisRegistry(client, "test-owner", time.Minute, time.Hour)
	reg.block = 100 * time.Millisecond
	return reg, mr
}

func TestRedisRegistry_OpenConflict(t *testing.T) {
	ctx := context.Background()
	reg, mr := setupRedisRegistry(t)

	pub, err := reg.Open(ctx, "s1")
	require.NoError(t, err)
	defer pub.Close()

	owner, err := mr.Get(ownerKey("s1"))
	require.NoError(t, err)
	assert.Equal(t, "test-owner", owner)

	_, err = reg.Open(ctx, "s1")
	assert.ErrorIs(t, err, app_errors.ErrConflict)
}

func TestRedisRegistry_ExpiredIDCannotBeReopened(t *testing.T) {
	ctx := context.Background()
	reg, mr := setupRedisRegistry(t)

	pub, err := reg.Open(ctx, "s1")
	require.NoError(t, err)
	require.NoError(t, pub.Complete(ctx, Final{}))
	require.NoError(t, pub.Close())

	// Owner and events keys are gone; the used marker is not.
	mr.FastForward(2 * time.Hour)
	exists, err := reg.Exists(ctx, "s1")
	require.NoError(t, err)
	require.False(t, exists)

	_, err = reg.Open(ctx, "s1")
	assert.ErrorIs(t, err, app_errors.ErrConflict)
	assert.True(t, mr.Exists(usedKey("s1")))
}

func TestRedisRegistry_AttachUnknown(t *testing.T) {
	reg, _ := setupRedisRegistry(t)
	_, err := reg.Attach(context.Background(), "missing")
	assert.ErrorIs(t, err, app_errors.ErrNotFound)
	assert.ErrorIs(t, reg.Stop(context.Background(), "missing"), app_errors.ErrNotFound)
}

func TestRedisRegistry_ResumeFidelity(t *testing.T) {
	ctx := context.Background()
	reg, mr := setupRedisRegistry(t)

	pub, err := reg.Open(ctx, "s1")
	require.NoError(t, err)
	defer pub.Close()

	early, err := reg.Attach(ctx, "s1")
	require.NoError(t, err)

	publishAll(t, pub, "Hel", "lo")
	late, err := reg.Attach(ctx, "s1")
	require.NoError(t, err)
	publishAll(t, pub, " world")
	require.NoError(t, pub.Complete(ctx, Final{Metadata: &model.Metadata{DurationMs: 42}}))

	for _, ch := range []<-chan model.StreamEvent{early, late} {
		events := collect(t, ch)
		require.Len(t, events, 4)
		assert.Equal(t, "Hello world", contentOf(events))
		assert.Equal(t, int64(4), events[3].Seq)
		assert.Equal(t, model.EventFinish, events[3].Type)
		assert.EqualValues(t, 42, events[3].Metadata.DurationMs)
	}

	assert.True(t, mr.TTL(eventsKey("s1")) <= time.Minute)
	assert.ErrorIs(t, pub.Publish(ctx, model.StreamEvent{Type: model.EventContent, Delta: "x"}), ErrClosed)
}

func TestRedisRegistry_Stop(t *testing.T) {
	ctx := context.Background()
	reg, _ := setupRedisRegistry(t)

	pub, err := reg.Open(ctx, "s1")
	require.NoError(t, err)
	defer pub.Close()

	require.NoError(t, reg.Stop(ctx, "s1"))
	select {
	case <-pub.Stopped():
	case <-time.After(2 * time.Second):
		t.Fatal("Stopped was not signalled")
	}
}

func TestRedisRegistry_CloseFailsUnfinishedStream(t *testing.T) {
	ctx := context.Background()
	reg, _ := setupRedisRegistry(t)

	pub, err := reg.Open(ctx, "s1")
	require.NoError(t, err)
	publishAll(t, pub, "partial")
	require.NoError(t, pub.Close())

	ch, err := reg.Attach(ctx, "s1")
	require.NoError(t, err)
	events := collect(t, ch)
	require.Len(t, events, 2)
	assert.Equal(t, "partial", events[0].Delta)
	assert.Equal(t, model.EventError, events[1].Type)
}

func TestRedisRegistry_AttachEndsWhenStreamExpires(t *testing.T) {
	ctx := context.Background()
	reg, mr := setupRedisRegistry(t)

	_, err := reg.Open(ctx, "s1")
	require.NoError(t, err)
	ch, err := reg.Attach(ctx, "s1")
	require.NoError(t, err)

	// The owning process died without a terminal event.
	mr.Del(ownerKey("s1"))
	assert.Empty(t, collect(t, ch))
}
