// Package events carries pipeline notifications between processes over
// Redis pub/sub, or within one process when Redis is not configured.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/pipeline"
)

// Event types double as Redis channel names.
const (
	JobAdsLoaded   = "EVENT_JOBADS_LOADED"
	MartsRefreshed = "EVENT_MARTS_REFRESHED"
)

// Event is the JSON payload published on a channel.
type Event struct {
	Type    string    `json:"type"`
	LoadID  string    `json:"loadId,omitempty"`
	Records int       `json:"records,omitempty"`
	At      time.Time `json:"at"`
}

// Bus publishes and subscribes to events.
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	// Subscribe delivers events of the given types until cancel is called or
	// ctx ends. The channel is closed afterwards.
	Subscribe(ctx context.Context, types ...string) (<-chan Event, func(), error)
}

// ─── Redis ──────────────────────────────────────────────────────────────────

// RedisBus uses one Redis channel per event type.
type RedisBus struct {
	rdb *redis.Client
}

func NewRedisBus(rdb *redis.Client) *RedisBus { return &RedisBus{rdb: rdb} }

func (b *RedisBus) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, ev.Type, payload).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, types ...string) (<-chan Event, func(), error) {
	ps := b.rdb.Subscribe(ctx, types...)
	// Wait for the subscription confirmation so no event published after
	// Subscribe returns is missed.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, nil, err
	}

	out := make(chan Event, 16)
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					slog.Warn("dropping undecodable event", "channel", msg.Channel, "err", err)
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, cancel, nil
}

// ─── In-process ─────────────────────────────────────────────────────────────

// LocalBus fans events out to subscribers in the same process. Slow
// subscribers lose events rather than block publishers.
type LocalBus struct {
	mu   sync.Mutex
	subs map[*localSub]struct{}
}

type localSub struct {
	types map[string]bool
	ch    chan Event
}

func NewLocalBus() *LocalBus { return &LocalBus{subs: map[*localSub]struct{}{}} }

func (b *LocalBus) Publish(_ context.Context, ev Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		if !s.types[ev.Type] {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			slog.Warn("subscriber buffer full, dropping event", "type", ev.Type)
		}
	}
	return nil
}

func (b *LocalBus) Subscribe(ctx context.Context, types ...string) (<-chan Event, func(), error) {
	s := &localSub{types: map[string]bool{}, ch: make(chan Event, 16)}
	for _, t := range types {
		s.types[t] = true
	}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	done := make(chan struct{})
	cancel := func() {
		once.Do(func() {
			close(done)
			b.mu.Lock()
			delete(b.subs, s)
			b.mu.Unlock()
			close(s.ch)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return s.ch, cancel, nil
}

// ─── Pipeline adapter ───────────────────────────────────────────────────────

// LoadNotifier publishes JobAdsLoaded after every successful load.
type LoadNotifier struct {
	Bus Bus
}

func (n LoadNotifier) LoadCompleted(ctx context.Context, info pipeline.LoadInfo) error {
	return n.Bus.Publish(ctx, Event{
		Type:    JobAdsLoaded,
		LoadID:  info.LoadID,
		Records: info.Records,
		At:      time.Now().UTC(),
	})
}
