// Package relay is the channel based broadcast used to push events to
// connected clients. Delivery is best effort: no persistence, no replay.
package relay

import (
	"context"
	"encoding/json"
	"time"
)

const (
	// PresenceChannel shared channel for online / offline announcements
	PresenceChannel = "presence"
	// AllEvents binds a handler to every event on a subscription
	AllEvents = "*"

	userChannelPrefix = "user-"
)

// UserChannel personal channel of one user
func UserChannel(userID string) string {
	return userChannelPrefix + userID
}

// Event is the envelope published on a channel. It is also the frame
// the websocket gateway forwards to clients.
type Event struct {
	Channel string          `json:"channel"`
	Name    string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
	SentAt  time.Time       `json:"sent_at"`
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// Handler receives events of a subscription, one at a time and in
// publish order.
type Handler func(Event)

// Publisher sends one event to a channel.
type Publisher interface {
	Publish(ctx context.Context, channel, event string, payload interface{}) error
}

// Subscriber opens subscriptions.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}

// Relay publish + subscribe
type Relay interface {
	Publisher
	Subscriber
	Close() error
}

// Subscription is the handle of one Subscribe call. Handlers are bound by
// event name; Unsubscribe releases the handle and is safe to call twice.
// Cancelling the ctx given to Subscribe also unsubscribes.
type Subscription interface {
	Channel() string
	Bind(event string, h Handler)
	Unbind(event string)
	Unsubscribe() error
}

// NewEvent builds the envelope for payload.
func NewEvent(channel, event string, payload interface{}) (Event, error) {
	var raw json.RawMessage
	switch p := payload.(type) {
	case nil:
	case json.RawMessage:
		raw = p
	case []byte:
		raw = p
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			return Event{}, err
		}
		raw = b
	}
	return Event{Channel: channel, Name: event, Payload: raw, SentAt: time.Now().UTC()}, nil
}
