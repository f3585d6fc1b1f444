package domain

// Action websocket request action
type Action string

const (
	// Heartbeat client is active, announce online now
	Heartbeat Action = "heartbeat"
	// Away tab hidden, announce offline
	Away Action = "away"
	// MarkRead mark a conversation read
	MarkRead Action = "mark_read"
)

// WSRequest websocket Request
type WSRequest struct {
	Action         string `json:"action"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// WSResponse websocket Response
type WSResponse struct {
	Action  string                 `json:"action"`
	Success bool                   `json:"success"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	Error   string                 `json:"error,omitempty"`
}
