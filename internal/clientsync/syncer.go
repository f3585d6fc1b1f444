package clientsync

import (
	"context"
	"errors"
	"sync"
	"time"

	"school_messaging_service/internal/messaging/domain"
	"school_messaging_service/pkg/logger"
	"school_messaging_service/pkg/relay"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultRefreshInterval periodic full re-fetch
const DefaultRefreshInterval = 60 * time.Second

// ErrClosed the syncer was closed
var ErrClosed = errors.New("clientsync: closed")

// Option Syncer option
type Option func(*Syncer)

// WithRefreshInterval d <= 0 disables the periodic re-fetch
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Syncer) { s.refresh = d }
}

// WithOnChange fn receives a snapshot after every applied change
func WithOnChange(fn func([]domain.ConversationSummary)) Option {
	return func(s *Syncer) { s.onChange = fn }
}

// Syncer keeps a State in step with the server
type Syncer struct {
	api      API
	sub      relay.Subscriber
	state    *State
	refresh  time.Duration
	onChange func([]domain.ConversationSummary)

	mu      sync.Mutex
	userID  string
	closed  bool
	started bool
	// gen counts changes applied from events; a fetch that started
	// before the latest one is stale
	gen          uint64
	ctx          context.Context
	cancel       context.CancelFunc
	subscription relay.Subscription
	wg           sync.WaitGroup
}

// NewSyncer create Syncer
func NewSyncer(api API, sub relay.Subscriber, opts ...Option) *Syncer {
	s := &Syncer{
		api:     api,
		sub:     sub,
		state:   NewState(),
		refresh: DefaultRefreshInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the user and the list concurrently, then subscribes to the
// user's channel. Start once.
func (s *Syncer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.started {
		s.mu.Unlock()
		return errors.New("clientsync: already started")
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	var (
		userID string
		list   []domain.ConversationSummary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		userID, err = s.api.CurrentUser(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		list, err = s.api.ListConversations(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	subscription, err := s.sub.Subscribe(s.ctx, relay.UserChannel(userID))
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = subscription.Unsubscribe()
		return ErrClosed
	}
	s.userID = userID
	s.subscription = subscription
	s.state.Replace(list)
	s.mu.Unlock()

	subscription.Bind(domain.EventConversationUpdated, s.onConversationUpdated)
	subscription.Bind(domain.EventUnreadCountUpdated, s.onUnreadCountUpdated)
	subscription.Bind(domain.EventNewConversation, s.onRefetch)
	subscription.Bind(domain.EventMessageDeleted, s.onRefetch)
	subscription.Bind(domain.EventParticipantLeft, s.onRefetch)

	// events published before the handlers were bound are gone; catch up
	// with a fetch taken after binding
	if !s.fetchAll(s.ctx) {
		s.changed()
	}

	if s.refresh > 0 {
		s.wg.Add(1)
		go s.refreshLoop()
	}
	logger.Log.Debug("clientsync started", zap.String("userID", userID), zap.Int("conversations", len(list)))
	return nil
}

// Conversations current local list
func (s *Syncer) Conversations() []domain.ConversationSummary {
	return s.state.Snapshot()
}

// TotalUnread sum of unread counts
func (s *Syncer) TotalUnread() int {
	return s.state.TotalUnread()
}

// UserID resolved at Start
func (s *Syncer) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Refetch full list re-fetch now
func (s *Syncer) Refetch() {
	s.goFetch(s.fetchAll)
}

// Close unsubscribes and stops the refresh loop. Fetches still in flight
// are discarded.
func (s *Syncer) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	sub := s.subscription
	cancel := s.cancel
	s.mu.Unlock()

	var err error
	if sub != nil {
		err = sub.Unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	return err
}

func (s *Syncer) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Syncer) onConversationUpdated(e relay.Event) {
	var ev domain.ConversationUpdated
	if err := e.Decode(&ev); err != nil {
		logger.Log.Warn("clientsync bad conversation-updated", zap.Error(err))
		return
	}
	if !s.state.ApplyConversationUpdated(ev, s.UserID()) {
		s.goFetch(s.fetchAll)
		return
	}
	s.bump()
	s.changed()
	// optimistic count first, then the server's
	s.goFetch(s.fetchUnread)
}

func (s *Syncer) onUnreadCountUpdated(e relay.Event) {
	var ev domain.UnreadCountUpdated
	if err := e.Decode(&ev); err != nil {
		logger.Log.Warn("clientsync bad unread-count-updated", zap.Error(err))
		return
	}
	if s.state.SetUnread(ev.ConversationID, ev.UnreadCount) {
		s.bump()
		s.changed()
		return
	}
	s.goFetch(s.fetchAll)
}

func (s *Syncer) onRefetch(relay.Event) {
	s.goFetch(s.fetchAll)
}

// goFetch runs fn aside so relay dispatch never waits on the network
func (s *Syncer) goFetch(fn func(ctx context.Context) bool) {
	s.mu.Lock()
	if s.closed || s.ctx == nil {
		s.mu.Unlock()
		return
	}
	ctx := s.ctx
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		_ = fn(ctx)
	}()
}

func (s *Syncer) bump() {
	s.mu.Lock()
	s.gen++
	s.mu.Unlock()
}

func (s *Syncer) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// fetchAll replaces the list; false when nothing was applied
func (s *Syncer) fetchAll(ctx context.Context) bool {
	start := s.generation()
	list, err := s.api.ListConversations(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Log.Warn("clientsync refetch failed", zap.Error(err))
		}
		return false
	}
	if !s.apply(start, s.fetchAll, func() { s.state.Replace(list) }) {
		return false
	}
	s.changed()
	return true
}

func (s *Syncer) fetchUnread(ctx context.Context) bool {
	start := s.generation()
	counts, err := s.api.UnreadCounts(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Log.Warn("clientsync unread fetch failed", zap.Error(err))
		}
		return false
	}
	if !s.apply(start, s.fetchUnread, func() { s.state.ReplaceUnread(counts) }) {
		return false
	}
	s.changed()
	return true
}

// apply runs fn unless closed or an event landed after the fetch began;
// an overtaken fetch is dropped and run again.
func (s *Syncer) apply(start uint64, again func(context.Context) bool, fn func()) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	if s.gen != start {
		s.mu.Unlock()
		logger.Log.Debug("clientsync fetch overtaken by an event, retrying")
		s.goFetch(again)
		return false
	}
	fn()
	s.mu.Unlock()
	return true
}

func (s *Syncer) refreshLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			_ = s.fetchAll(s.ctx)
		}
	}
}

func (s *Syncer) changed() {
	if s.onChange == nil || s.isClosed() {
		return
	}
	s.onChange(s.state.Snapshot())
}
