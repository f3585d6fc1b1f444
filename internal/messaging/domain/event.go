package domain

import "time"

// Events pushed on a user's personal channel
const (
	EventConversationUpdated = "conversation-updated"
	EventUnreadCountUpdated  = "unread-count-updated"
	EventNewConversation     = "new-conversation"
	EventMessageDeleted      = "message-deleted"
	EventParticipantLeft     = "participant-left"
)

// ConversationUpdated a new message landed in a conversation
type ConversationUpdated struct {
	ConversationID string      `json:"conversation_id"`
	LastMessage    MessageView `json:"last_message"`
}

// UnreadCountUpdated authoritative unread count of one conversation
type UnreadCountUpdated struct {
	ConversationID string `json:"conversation_id"`
	UnreadCount    int    `json:"unread_count"`
}

// NewConversation the user was added to a conversation
type NewConversation struct {
	ConversationID string `json:"conversation_id"`
}

// MessageDeleted a message was retracted
type MessageDeleted struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

// ParticipantLeft someone left; Archived when the conversation got archived
type ParticipantLeft struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Archived       bool   `json:"archived"`
}

// MessageSent downstream record for the notification pipeline
type MessageSent struct {
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	RecipientIDs   []string  `json:"recipient_ids"`
	HasBody        bool      `json:"has_body"`
	Attachments    int       `json:"attachments"`
	CreatedAt      time.Time `json:"created_at"`
}
