package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"school_messaging_service/internal/presence/domain"
	"school_messaging_service/pkg/logger"
	"school_messaging_service/pkg/relay"

	"go.uber.org/zap"
)

// Tracker keeps the set of users heard from recently on the presence
// channel. Last seen is the local receive time, so sender clock skew does
// not matter.
type Tracker struct {
	sub     relay.Subscriber
	timeout time.Duration
	now     func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time

	subscription relay.Subscription
}

// NewTracker users expire after two heartbeat intervals of silence
func NewTracker(sub relay.Subscriber, interval time.Duration) *Tracker {
	if interval <= 0 {
		interval = domain.DefaultHeartbeatInterval
	}
	return &Tracker{
		sub:     sub,
		timeout: 2 * interval,
		now:     time.Now,
		seen:    make(map[string]time.Time),
	}
}

// Start subscribes to the presence channel until ctx is done or Stop.
func (t *Tracker) Start(ctx context.Context) error {
	s, err := t.sub.Subscribe(ctx, relay.PresenceChannel)
	if err != nil {
		return err
	}
	s.Bind(domain.EventOnline, func(e relay.Event) {
		if a, ok := decode(e); ok {
			t.MarkOnline(a.UserID)
		}
	})
	s.Bind(domain.EventOffline, func(e relay.Event) {
		if a, ok := decode(e); ok {
			t.MarkOffline(a.UserID)
		}
	})

	t.mu.Lock()
	t.subscription = s
	t.mu.Unlock()
	return nil
}

func decode(e relay.Event) (domain.Announcement, bool) {
	var a domain.Announcement
	if err := e.Decode(&a); err != nil || a.UserID == "" {
		logger.Log.Warn("presence: bad announcement", zap.String("event", e.Name), zap.Error(err))
		return a, false
	}
	return a, true
}

// Stop releases the subscription.
func (t *Tracker) Stop() error {
	t.mu.Lock()
	s := t.subscription
	t.subscription = nil
	t.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.Unsubscribe()
}

// MarkOnline records a heartbeat of userID now
func (t *Tracker) MarkOnline(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seen[userID] = t.now()
}

// MarkOffline forgets userID
func (t *Tracker) MarkOffline(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.seen, userID)
}

// IsOnline heard from userID within the timeout
func (t *Tracker) IsOnline(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	last, ok := t.seen[userID]
	return ok && t.now().Sub(last) <= t.timeout
}

// Online sorted ids of online users; expired entries are dropped.
func (t *Tracker) Online() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	out := make([]string, 0, len(t.seen))
	for id, last := range t.seen {
		if now.Sub(last) > t.timeout {
			delete(t.seen, id)
			continue
		}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
