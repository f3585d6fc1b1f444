package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"school_messaging_service/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisRelay relays events through redis PUBLISH / SUBSCRIBE so every
// service instance sees every event.
type RedisRelay struct {
	client *redis.Client
}

var _ Relay = (*RedisRelay)(nil)

// NewRedisRelay create RedisRelay
func NewRedisRelay(client *redis.Client) *RedisRelay {
	return &RedisRelay{client: client}
}

// Publish 將 event 序列化後，發布到指定 channel
func (r *RedisRelay) Publish(ctx context.Context, channel, event string, payload interface{}) error {
	ev, err := NewEvent(channel, event, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, channel, data).Err()
}

// Subscribe waits for redis to confirm the subscription before returning,
// so events published after Subscribe returns are not missed.
func (r *RedisRelay) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	ps := r.client.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	sub := newSubscription(channel, ps.Close)
	msgs := ps.Channel()

	go func() {
		for {
			select {
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					logger.Log.Error("relay: bad event frame", zap.String("channel", m.Channel), zap.Error(err))
					continue
				}
				sub.dispatch(ev)
			case <-ctx.Done():
				logger.Log.Debug("relay: subscription context done", zap.String("channel", channel))
				sub.Unsubscribe()
				return
			case <-sub.done:
				return
			}
		}
	}()

	return sub, nil
}

// Close closes the redis client.
func (r *RedisRelay) Close() error {
	return r.client.Close()
}
