package clientsync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"school_messaging_service/internal/messaging/domain"
	"school_messaging_service/pkg/logger"
	"school_messaging_service/pkg/relay"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSRelay receives the events the gateway forwards on /ws and replays them
// into a local relay, so the syncer subscribes the same way it would
// against the server's relay.
type WSRelay struct {
	conn  *websocket.Conn
	local *relay.MemoryRelay
	mu    sync.Mutex
	done  chan struct{}
}

var _ relay.Subscriber = (*WSRelay)(nil)

// DialWSRelay connects to baseURL (http(s) or ws(s)) /ws with token
func DialWSRelay(ctx context.Context, baseURL, token string) (*WSRelay, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/ws")
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	q := u.Query()
	q.Set("auth", token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.Host, err)
	}

	r := &WSRelay{
		conn:  conn,
		local: relay.NewMemoryRelay(0),
		done:  make(chan struct{}),
	}
	go r.readLoop()
	return r, nil
}

func (r *WSRelay) readLoop() {
	defer close(r.done)
	for {
		_, raw, err := r.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Log.Debug("ws relay read stopped", zap.Error(err))
			}
			return
		}
		var ev relay.Event
		if err := json.Unmarshal(raw, &ev); err != nil || ev.Channel == "" {
			// action replies carry no channel
			continue
		}
		if err := r.local.Publish(context.Background(), ev.Channel, ev.Name, ev.Payload); err != nil {
			return
		}
	}
}

// Subscribe subscribes to events forwarded for channel
func (r *WSRelay) Subscribe(ctx context.Context, channel string) (relay.Subscription, error) {
	return r.local.Subscribe(ctx, channel)
}

// Send one gateway action (heartbeat, away, mark_read)
func (r *WSRelay) Send(req domain.WSRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conn.WriteJSON(req)
}

// Done closed when the connection is gone
func (r *WSRelay) Done() <-chan struct{} {
	return r.done
}

// Close closes the socket and every local subscription
func (r *WSRelay) Close() error {
	r.mu.Lock()
	_ = r.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	r.mu.Unlock()
	err := r.conn.Close()
	_ = r.local.Close()
	return err
}
