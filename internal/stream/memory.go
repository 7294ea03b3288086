package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	app_errors "flow-stream/backend/internal/errors"
	"flow-stream/backend/internal/metrics"
	"flow-stream/backend/internal/model"
)

const attachBuffer = 64

// MemoryRegistry keeps stream logs in process memory. Streams do not survive
// a restart of the process that owns them.
type MemoryRegistry struct {
	ttl         time.Duration
	maxLifetime time.Duration
	now         func() time.Time

	mu      sync.Mutex
	streams map[string]*memoryStream
	// retired maps swept stream ids to when they were opened.
	retired map[string]time.Time
}

type memoryStream struct {
	id      string
	created time.Time

	mu       sync.Mutex
	events   []model.StreamEvent
	done     bool
	finished time.Time
	// notify is closed and replaced on every append.
	notify chan struct{}

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryRegistry creates an in-process registry. Finished streams are kept
// for ttl; any stream is dropped once older than maxLifetime.
func NewMemoryRegistry(ttl, maxLifetime time.Duration) *MemoryRegistry {
	return &MemoryRegistry{
		ttl:         ttl,
		maxLifetime: maxLifetime,
		now:         time.Now,
		streams:     make(map[string]*memoryStream),
		retired:     make(map[string]time.Time),
	}
}

func (r *MemoryRegistry) Open(_ context.Context, streamID string) (Publisher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.streams[streamID]; ok {
		return nil, fmt.Errorf("%w: stream %s is already open", app_errors.ErrConflict, streamID)
	}
	if _, ok := r.retired[streamID]; ok {
		return nil, fmt.Errorf("%w: stream %s was already used", app_errors.ErrConflict, streamID)
	}
	s := &memoryStream{
		id:      streamID,
		created: r.now(),
		notify:  make(chan struct{}),
		stop:    make(chan struct{}),
	}
	r.streams[streamID] = s
	metrics.StreamsActive.WithLabelValues("memory").Inc()
	return &memoryPublisher{registry: r, stream: s}, nil
}

func (r *MemoryRegistry) Attach(ctx context.Context, streamID string) (<-chan model.StreamEvent, error) {
	s, ok := r.lookup(streamID)
	if !ok {
		return nil, fmt.Errorf("%w: stream %s", app_errors.ErrNotFound, streamID)
	}
	metrics.StreamAttaches.Inc()

	out := make(chan model.StreamEvent, attachBuffer)
	go func() {
		defer close(out)
		next := 0
		for {
			s.mu.Lock()
			pending := s.events[next:]
			done := s.done
			notify := s.notify
			s.mu.Unlock()

			for _, ev := range pending {
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
			next += len(pending)
			if done {
				return
			}

			select {
			case <-notify:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (r *MemoryRegistry) Stop(_ context.Context, streamID string) error {
	s, ok := r.lookup(streamID)
	if !ok {
		return fmt.Errorf("%w: stream %s", app_errors.ErrNotFound, streamID)
	}
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

func (r *MemoryRegistry) Exists(_ context.Context, streamID string) (bool, error) {
	_, ok := r.lookup(streamID)
	return ok, nil
}

// Run sweeps expired streams until ctx is cancelled.
func (r *MemoryRegistry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				slog.Debug("Swept expired streams", "count", n)
			}
		}
	}
}

// Sweep drops finished streams older than the TTL and streams that outlived
// the maximum lifetime. A stream dropped while still live is failed first.
// Dropped ids stay refused by Open for IDRetention.
func (r *MemoryRegistry) Sweep() int {
	now := r.now()
	var expired []*memoryStream

	r.mu.Lock()
	for id, s := range r.streams {
		s.mu.Lock()
		finishedExpired := s.done && now.Sub(s.finished) >= r.ttl
		s.mu.Unlock()
		if finishedExpired || now.Sub(s.created) >= r.maxLifetime {
			delete(r.streams, id)
			r.retired[id] = s.created
			expired = append(expired, s)
		}
	}
	for id, opened := range r.retired {
		if now.Sub(opened) >= IDRetention {
			delete(r.retired, id)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		if err := r.append(s, errorEvent("stream expired")); err == nil {
			slog.Warn("Expired a live stream", "stream_id", s.id)
		}
	}
	return len(expired)
}

func (r *MemoryRegistry) lookup(streamID string) (*memoryStream, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.streams[streamID]
	return s, ok
}

func (r *MemoryRegistry) append(s *memoryStream, ev model.StreamEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return ErrClosed
	}
	ev.Seq = int64(len(s.events) + 1)
	ev.StreamID = s.id
	s.events = append(s.events, ev)
	if ev.Type.IsTerminal() {
		s.done = true
		s.finished = r.now()
		metrics.StreamsActive.WithLabelValues("memory").Dec()
	}
	metrics.StreamEvents.WithLabelValues(string(ev.Type)).Inc()
	close(s.notify)
	s.notify = make(chan struct{})
	return nil
}

type memoryPublisher struct {
	registry *MemoryRegistry
	stream   *memoryStream
}

func (p *memoryPublisher) Publish(_ context.Context, ev model.StreamEvent) error {
	if ev.Type.IsTerminal() {
		return fmt.Errorf("%w: %s events end a stream, use Complete or Fail", app_errors.ErrValidation, ev.Type)
	}
	return p.registry.append(p.stream, ev)
}

func (p *memoryPublisher) Complete(_ context.Context, final Final) error {
	return p.registry.append(p.stream, finishEvent(final))
}

func (p *memoryPublisher) Fail(_ context.Context, reason string) error {
	return p.registry.append(p.stream, errorEvent(reason))
}

func (p *memoryPublisher) Stopped() <-chan struct{} {
	return p.stream.stop
}

func (p *memoryPublisher) Close() error {
	if err := p.registry.append(p.stream, errorEvent(closedReason)); err == nil {
		slog.Warn("Publisher closed before a terminal event", "stream_id", p.stream.id)
	}
	return nil
}
