package relay

import (
	"context"
	"errors"
	"sync"

	"school_messaging_service/pkg/logger"

	"go.uber.org/zap"
)

// ErrClosed returned after the relay is closed
var ErrClosed = errors.New("relay: closed")

const defaultMemoryBuffer = 64

// MemoryRelay is an in-process relay for single node deployments and tests.
// A subscriber that falls behind by more than the buffer loses events.
type MemoryRelay struct {
	mu     sync.RWMutex
	subs   map[string]map[*memorySub]struct{}
	buffer int
	closed bool
}

type memorySub struct {
	*subscription
	ch chan Event
}

var _ Relay = (*MemoryRelay)(nil)

// NewMemoryRelay buffer <= 0 uses the default of 64 events per subscriber.
func NewMemoryRelay(buffer int) *MemoryRelay {
	if buffer <= 0 {
		buffer = defaultMemoryBuffer
	}
	return &MemoryRelay{
		subs:   make(map[string]map[*memorySub]struct{}),
		buffer: buffer,
	}
}

// Publish never blocks on slow subscribers.
func (r *MemoryRelay) Publish(ctx context.Context, channel, event string, payload interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ev, err := NewEvent(channel, event, payload)
	if err != nil {
		return err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrClosed
	}

	for sub := range r.subs[channel] {
		select {
		case sub.ch <- ev:
		default:
			logger.Log.Warn("relay subscriber full, event dropped",
				zap.String("channel", channel), zap.String("event", event))
		}
	}
	return nil
}

// Subscribe registers a subscriber on channel until Unsubscribe or ctx is done.
func (r *MemoryRelay) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}

	sub := &memorySub{ch: make(chan Event, r.buffer)}
	sub.subscription = newSubscription(channel, func() error {
		r.remove(channel, sub)
		return nil
	})

	if r.subs[channel] == nil {
		r.subs[channel] = make(map[*memorySub]struct{})
	}
	r.subs[channel][sub] = struct{}{}

	go sub.loop(ctx)
	return sub, nil
}

func (s *memorySub) loop(ctx context.Context) {
	for {
		select {
		case ev := <-s.ch:
			s.dispatch(ev)
		case <-ctx.Done():
			s.Unsubscribe()
			return
		case <-s.done:
			return
		}
	}
}

func (r *MemoryRelay) remove(channel string, sub *memorySub) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if set, ok := r.subs[channel]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(r.subs, channel)
		}
	}
}

// Subscribers number of live subscriptions on channel
func (r *MemoryRelay) Subscribers(channel string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs[channel])
}

// Close stops every subscription. Publish and Subscribe fail afterwards.
func (r *MemoryRelay) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	var subs []*memorySub
	for _, set := range r.subs {
		for sub := range set {
			subs = append(subs, sub)
		}
	}
	r.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
	return nil
}
