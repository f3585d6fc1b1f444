package app

import (
	"context"
	"time"

	errprocess "school_messaging_service/pkg/err"
	"school_messaging_service/pkg/logger"
	"school_messaging_service/pkg/relay"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultPublishTimeout bound of one fan-out, however many recipients
	DefaultPublishTimeout = 2 * time.Second

	maxConcurrentPublishes = 32
)

// Notifier pushes post-commit events to personal channels. Failures are
// logged and swallowed: the store is the source of truth and clients
// reconcile by re-fetching.
type Notifier struct {
	pub     relay.Publisher
	timeout time.Duration
}

// NewNotifier timeout <= 0 uses DefaultPublishTimeout
func NewNotifier(pub relay.Publisher, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	return &Notifier{pub: pub, timeout: timeout}
}

// Timeout bound of one Notify call
func (n *Notifier) Timeout() time.Duration {
	if n == nil {
		return DefaultPublishTimeout
	}
	return n.timeout
}

// Notify publishes event to user-{id} of every user, concurrently and
// under one deadline, so a stalled relay holds the caller for at most one
// timeout. A cancelled request does not cancel the fan-out.
func (n *Notifier) Notify(ctx context.Context, userIDs []string, event string, payload interface{}) {
	if n == nil || n.pub == nil || len(userIDs) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	var g errgroup.Group
	g.SetLimit(maxConcurrentPublishes)
	for _, id := range userIDs {
		channel := relay.UserChannel(id)
		g.Go(func() error {
			n.publish(ctx, channel, event, payload)
			return nil
		})
	}
	_ = g.Wait()
}

func (n *Notifier) publish(ctx context.Context, channel, event string, payload interface{}) {
	if err := n.pub.Publish(ctx, channel, event, payload); err != nil {
		logger.Log.Error("relay publish failed",
			zap.String("channel", channel),
			zap.String("event", event),
			zap.Error(errprocess.Wrap(errprocess.RelayPublishFailure, "publish", err)),
		)
		return
	}
	logger.Log.Debug("relay publish", zap.String("channel", channel), zap.String("event", event))
}
