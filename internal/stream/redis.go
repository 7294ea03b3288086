package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	app_errors "flow-stream/backend/internal/errors"
	"flow-stream/backend/internal/metrics"
	"flow-stream/backend/internal/model"
)

const (
	redisReadCount = 128
	stopMessage    = "stop"
)

func eventsKey(streamID string) string { return "flow:stream:" + streamID + ":events" }
func ownerKey(streamID string) string { return "flow:stream:" + streamID + ":owner" }
func usedKey(streamID string) string  { return "flow:stream:" + streamID + ":used" }
func stopChannel(streamID string) string { return "flow:stream:" + streamID + ":stop" }

// RedisRegistry stores stream logs in Redis Streams so that any process
// sharing the Redis instance can attach to a generation, whichever process
// runs it.
type RedisRegistry struct {
	client      redis.UniversalClient
	owner       string
	ttl         time.Duration
	maxLifetime time.Duration
	block       time.Duration
}

// NewRedisRegistry creates a registry on client. owner identifies this process
// in ownership keys.
func NewRedisRegistry(client redis.UniversalClient, owner string, ttl, maxLifetime time.Duration) *RedisRegistry {
	return &RedisRegistry{
		client:      client,
		owner:       owner,
		ttl:         ttl,
		maxLifetime: maxLifetime,
		block:       2 * time.Second,
	}
}

func (r *RedisRegistry) Open(ctx context.Context, streamID string) (Publisher, error) {
	// The used marker outlives the owner and events keys, so an expired id
	// cannot be opened again.
	fresh, err := r.client.SetNX(ctx, usedKey(streamID), r.owner, IDRetention).Result()
	if err != nil {
		return nil, fmt.Errorf("could not claim stream %s: %w", streamID, err)
	}
	if !fresh {
		return nil, fmt.Errorf("%w: stream %s was already opened", app_errors.ErrConflict, streamID)
	}
	ok, err := r.client.SetNX(ctx, ownerKey(streamID), r.owner, r.maxLifetime).Result()
	if err != nil {
		r.client.Del(context.Background(), usedKey(streamID))
		return nil, fmt.Errorf("could not claim stream %s: %w", streamID, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: stream %s is already open", app_errors.ErrConflict, streamID)
	}

	pubsub := r.client.Subscribe(ctx, stopChannel(streamID))
	// Wait for the subscription so that a Stop issued right after Open is seen.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		r.client.Del(context.Background(), ownerKey(streamID), usedKey(streamID))
		return nil, fmt.Errorf("could not subscribe to stop channel: %w", err)
	}

	p := &redisPublisher{
		registry: r,
		streamID: streamID,
		pubsub:   pubsub,
		stop:     make(chan struct{}),
	}
	go p.watchStop()
	metrics.StreamsActive.WithLabelValues("redis").Inc()
	return p, nil
}

func (r *RedisRegistry) Attach(ctx context.Context, streamID string) (<-chan model.StreamEvent, error) {
	exists, err := r.Exists(ctx, streamID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: stream %s", app_errors.ErrNotFound, streamID)
	}
	metrics.StreamAttaches.Inc()

	out := make(chan model.StreamEvent, attachBuffer)
	go func() {
		defer close(out)
		lastID := "0"
		for {
			streams, err := r.client.XRead(ctx, &redis.XReadArgs{
				Streams: []string{eventsKey(streamID), lastID},
				Count:   redisReadCount,
				Block:   r.block,
			}).Result()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if errors.Is(err, redis.Nil) {
					// No new events within the block window. Give up once the
					// stream has expired without a terminal event.
					if exists, err := r.Exists(ctx, streamID); err == nil && !exists {
						return
					}
					continue
				}
				slog.Error("Failed to read stream events", "stream_id", streamID, "error", err)
				return
			}

			for _, xs := range streams {
				for _, msg := range xs.Messages {
					lastID = msg.ID
					ev, err := decodeEvent(msg)
					if err != nil {
						slog.Error("Skipping undecodable stream event", "stream_id", streamID, "entry", msg.ID, "error", err)
						continue
					}
					select {
					case out <- ev:
					case <-ctx.Done():
						return
					}
					if ev.Type.IsTerminal() {
						return
					}
				}
			}
		}
	}()
	return out, nil
}

func (r *RedisRegistry) Stop(ctx context.Context, streamID string) error {
	exists, err := r.Exists(ctx, streamID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: stream %s", app_errors.ErrNotFound, streamID)
	}
	if err := r.client.Publish(ctx, stopChannel(streamID), stopMessage).Err(); err != nil {
		return fmt.Errorf("could not publish stop for stream %s: %w", streamID, err)
	}
	return nil
}

func (r *RedisRegistry) Exists(ctx context.Context, streamID string) (bool, error) {
	n, err := r.client.Exists(ctx, ownerKey(streamID), eventsKey(streamID)).Result()
	if err != nil {
		return false, fmt.Errorf("could not look up stream %s: %w", streamID, err)
	}
	return n > 0, nil
}

func decodeEvent(msg redis.XMessage) (model.StreamEvent, error) {
	var ev model.StreamEvent
	raw, ok := msg.Values["data"].(string)
	if !ok {
		return ev, fmt.Errorf("entry has no data field")
	}
	err := json.Unmarshal([]byte(raw), &ev)
	return ev, err
}

type redisPublisher struct {
	registry *RedisRegistry
	streamID string
	pubsub   *redis.PubSub

	mu   sync.Mutex
	seq  int64
	done bool

	stop     chan struct{}
	stopOnce sync.Once
}

func (p *redisPublisher) watchStop() {
	for msg := range p.pubsub.Channel() {
		if msg.Payload == stopMessage {
			p.stopOnce.Do(func() { close(p.stop) })
		}
	}
}

func (p *redisPublisher) append(ctx context.Context, ev model.StreamEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return ErrClosed
	}

	ev.Seq = p.seq + 1
	ev.StreamID = p.streamID
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("could not encode stream event: %w", err)
	}

	r := p.registry
	key := eventsKey(p.streamID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.XAdd(ctx, &redis.XAddArgs{Stream: key, Values: map[string]interface{}{"data": string(payload)}})
		switch {
		case ev.Type.IsTerminal():
			pipe.Expire(ctx, key, r.ttl)
			pipe.Expire(ctx, ownerKey(p.streamID), r.ttl)
		case ev.Seq == 1:
			pipe.Expire(ctx, key, r.maxLifetime)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("could not append to stream %s: %w", p.streamID, err)
	}

	p.seq = ev.Seq
	metrics.StreamEvents.WithLabelValues(string(ev.Type)).Inc()
	if ev.Type.IsTerminal() {
		p.done = true
		metrics.StreamsActive.WithLabelValues("redis").Dec()
	}
	return nil
}

func (p *redisPublisher) Publish(ctx context.Context, ev model.StreamEvent) error {
	if ev.Type.IsTerminal() {
		return fmt.Errorf("%w: %s events end a stream, use Complete or Fail", app_errors.ErrValidation, ev.Type)
	}
	return p.append(ctx, ev)
}

func (p *redisPublisher) Complete(ctx context.Context, final Final) error {
	return p.append(ctx, finishEvent(final))
}

func (p *redisPublisher) Fail(ctx context.Context, reason string) error {
	return p.append(ctx, errorEvent(reason))
}

func (p *redisPublisher) Stopped() <-chan struct{} {
	return p.stop
}

func (p *redisPublisher) Close() error {
	if err := p.append(context.Background(), errorEvent(closedReason)); err == nil {
		slog.Warn("Publisher closed before a terminal event", "stream_id", p.streamID)
	}
	return p.pubsub.Close()
}
