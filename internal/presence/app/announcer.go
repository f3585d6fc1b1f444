package app

import (
	"context"
	"time"

	"school_messaging_service/internal/presence/domain"
	errprocess "school_messaging_service/pkg/err"
	"school_messaging_service/pkg/logger"
	"school_messaging_service/pkg/relay"

	"go.uber.org/zap"
)

// Announcer publishes presence announcements. Nothing is persisted.
type Announcer struct {
	pub      relay.Publisher
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
}

// NewAnnouncer interval <= 0 uses DefaultHeartbeatInterval
func NewAnnouncer(pub relay.Publisher, interval time.Duration) *Announcer {
	if interval <= 0 {
		interval = domain.DefaultHeartbeatInterval
	}
	return &Announcer{
		pub:      pub,
		interval: interval,
		timeout:  2 * time.Second,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Interval heartbeat cadence
func (a *Announcer) Interval() time.Duration {
	return a.interval
}

// Online announce userID online now
func (a *Announcer) Online(ctx context.Context, userID string) error {
	return a.announce(ctx, domain.EventOnline, userID)
}

// Offline announce userID offline now
func (a *Announcer) Offline(ctx context.Context, userID string) error {
	return a.announce(ctx, domain.EventOffline, userID)
}

func (a *Announcer) announce(ctx context.Context, event, userID string) error {
	if userID == "" {
		return errprocess.New(errprocess.InvalidArgument, "user id is required")
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	err := a.pub.Publish(ctx, relay.PresenceChannel, event, domain.Announcement{UserID: userID, At: a.now()})
	if err != nil {
		return errprocess.Wrap(errprocess.RelayPublishFailure, "presence "+event, err)
	}
	return nil
}

// Heartbeat announces online immediately and every interval until ctx is
// done, then announces offline. Blocks.
func (a *Announcer) Heartbeat(ctx context.Context, userID string) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.logFailure(a.Online(ctx, userID), userID)
	for {
		select {
		case <-ticker.C:
			a.logFailure(a.Online(ctx, userID), userID)
		case <-ctx.Done():
			a.logFailure(a.Offline(context.WithoutCancel(ctx), userID), userID)
			return
		}
	}
}

func (a *Announcer) logFailure(err error, userID string) {
	if err != nil {
		logger.Log.Warn("presence announce failed", zap.String("user_id", userID), zap.Error(err))
	}
}
