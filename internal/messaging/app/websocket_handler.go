package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"school_messaging_service/internal/messaging/domain"
	errprocess "school_messaging_service/pkg/err"
	"school_messaging_service/pkg/logger"
	"school_messaging_service/pkg/middlewares"
	"school_messaging_service/pkg/relay"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// PresenceBeacon presence side of a connection
type PresenceBeacon interface {
	Heartbeat(ctx context.Context, userID string)
	Online(ctx context.Context, userID string) error
	Offline(ctx context.Context, userID string) error
}

// DefaultPingInterval server ping cadence
const DefaultPingInterval = 30 * time.Second

// MessagingWebsocketHandler bridges one socket to the caller's personal
// channel and the presence channel. Events are forwarded as relay.Event
// frames; replies to client actions are domain.WSResponse frames.
type MessagingWebsocketHandler struct {
	sub          relay.Subscriber
	messageUC    *MessageUseCase
	presence     PresenceBeacon
	pingInterval time.Duration
}

// NewMessagingWebsocketHandler create MessagingWebsocketHandler
func NewMessagingWebsocketHandler(sub relay.Subscriber, messageUC *MessageUseCase, presence PresenceBeacon) *MessagingWebsocketHandler {
	return &MessagingWebsocketHandler{
		sub:          sub,
		messageUC:    messageUC,
		presence:     presence,
		pingInterval: DefaultPingInterval,
	}
}

// wsConn serializes writes; the socket allows one writer at a time
type wsConn struct {
	*websocket.Conn
	mu sync.Mutex
}

func (c *wsConn) writeJSON(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.WriteMessage(websocket.TextMessage, b)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(time.Second))
}

// HandleConnection 是 WebSocket 連線的進入點
func (h *MessagingWebsocketHandler) HandleConnection(ctx context.Context, c *websocket.Conn) {
	conn := &wsConn{Conn: c}
	memberID, _ := c.Locals(middlewares.TokenMemberID).(string)
	if memberID == "" {
		logger.Log.Warn("websocket connection without member id")
		closeWebSocketConnection(conn, websocket.ClosePolicyViolation, "unauthorized")
		return
	}
	logger.Log.Info("websocket open", zap.String("userID", memberID))

	ctxClose, cancel := context.WithCancel(ctx)
	var subs []relay.Subscription
	defer func() {
		cancel()
		for _, s := range subs {
			s.Unsubscribe()
		}
		logger.Log.Info("websocket close", zap.String("userID", memberID))
		conn.Close()
	}()

	forward := func(e relay.Event) {
		if err := conn.writeJSON(e); err != nil {
			logger.Log.Warn("websocket forward failed", zap.String("userID", memberID), zap.Error(err))
		}
	}
	for _, channel := range []string{relay.UserChannel(memberID), relay.PresenceChannel} {
		s, err := h.sub.Subscribe(ctxClose, channel)
		if err != nil {
			logger.Log.Error("websocket subscribe failed", zap.String("channel", channel), zap.Error(err))
			closeWebSocketConnection(conn, websocket.CloseInternalServerErr, "relay unavailable")
			return
		}
		s.Bind(relay.AllEvents, forward)
		subs = append(subs, s)
	}

	// 在線心跳，連線關閉時會自動送出 offline
	if h.presence != nil {
		go h.presence.Heartbeat(ctxClose, memberID)
	}

	go func() {
		ticker := time.NewTicker(h.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.ping(); err != nil {
					logger.Log.Debug("websocket ping failed", zap.String("userID", memberID), zap.Error(err))
					return
				}
			case <-ctxClose.Done():
				return
			}
		}
	}()

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Log.Debug("websocket closed by client", zap.String("userID", memberID))
			} else {
				logger.Log.Warn("websocket read error", zap.String("userID", memberID), zap.Error(err))
			}
			return
		}
		if mt != websocket.TextMessage {
			h.sendError(conn, "unsupported frame type")
			continue
		}
		h.textMessageAction(ctxClose, conn, memberID, message)
	}
}

func (h *MessagingWebsocketHandler) textMessageAction(ctx context.Context, conn *wsConn, memberID string, msg []byte) {
	var req domain.WSRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		h.sendError(conn, "invalid json")
		return
	}

	resp := domain.WSResponse{Action: req.Action}
	var err error
	switch domain.Action(req.Action) {
	case domain.Heartbeat:
		if h.presence != nil {
			err = h.presence.Online(ctx, memberID)
		}
	case domain.Away:
		if h.presence != nil {
			err = h.presence.Offline(ctx, memberID)
		}
	case domain.MarkRead:
		err = h.messageUC.MarkRead(ctx, req.ConversationID, memberID)
		resp.Payload = map[string]interface{}{"conversation_id": req.ConversationID}
	default:
		h.sendError(conn, "unknown action")
		return
	}

	if err != nil {
		resp.Error = errprocess.Message(err)
		logger.Log.Error("websocket action failed",
			zap.String("MemberID", memberID), zap.String("Action", req.Action), zap.Error(err))
	} else {
		resp.Success = true
	}
	if err := conn.writeJSON(resp); err != nil {
		logger.Log.Warn("websocket write failed", zap.String("userID", memberID), zap.Error(err))
	}
}

func (h *MessagingWebsocketHandler) sendError(conn *wsConn, errorMsg string) {
	resp := domain.WSResponse{Action: "error", Error: errorMsg}
	if err := conn.writeJSON(resp); err != nil {
		logger.Log.Warn("websocket write failed", zap.Error(err))
	}
}

func closeWebSocketConnection(conn *wsConn, code int, reason string) {
	conn.mu.Lock()
	err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	conn.mu.Unlock()
	if err != nil {
		logger.Log.Debug("Failed to send CloseMessage", zap.Error(err))
	}
}
