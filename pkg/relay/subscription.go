package relay

import (
	"sync"
)

// subscription is shared by the relay adapters; the adapter feeds
// dispatch from a single goroutine so handlers never run concurrently.
type subscription struct {
	channel string

	mu       sync.RWMutex
	handlers map[string]Handler

	done    chan struct{}
	once    sync.Once
	closeFn func() error
	err     error
}

func newSubscription(channel string, closeFn func() error) *subscription {
	return &subscription{
		channel:  channel,
		handlers: make(map[string]Handler),
		done:     make(chan struct{}),
		closeFn:  closeFn,
	}
}

func (s *subscription) Channel() string {
	return s.channel
}

// Bind replaces any handler already bound to event.
func (s *subscription) Bind(event string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[event] = h
}

func (s *subscription) Unbind(event string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handlers, event)
}

func (s *subscription) Unsubscribe() error {
	s.once.Do(func() {
		close(s.done)
		if s.closeFn != nil {
			s.err = s.closeFn()
		}
	})
	return s.err
}

func (s *subscription) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *subscription) dispatch(e Event) {
	if s.closed() {
		return
	}
	s.mu.RLock()
	h := s.handlers[e.Name]
	all := s.handlers[AllEvents]
	s.mu.RUnlock()

	if h != nil {
		h(e)
	}
	if all != nil {
		all(e)
	}
}
