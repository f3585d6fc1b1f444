package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ConversationType DIRECT or GROUP
type ConversationType string

const (
	// Direct one to one conversation, exactly two participants
	Direct ConversationType = "DIRECT"
	// Group named conversation, two or more participants at creation
	Group ConversationType = "GROUP"
)

// Conversation is archived, never hard deleted.
type Conversation struct {
	ID   string           `gorm:"type:varchar(36);primaryKey" json:"id"`
	Type ConversationType `gorm:"type:varchar(10);not null" json:"type"`
	Name *string          `gorm:"type:varchar(120)" json:"name,omitempty"`
	// DirectKey sorted user pair of a DIRECT conversation, NULL for groups.
	// The unique index is what makes lookup-or-create race free.
	DirectKey     *string   `gorm:"type:varchar(200);uniqueIndex" json:"-"`
	IsArchived    bool      `gorm:"not null;default:false" json:"is_archived"`
	LastMessageAt time.Time `gorm:"not null;index" json:"last_message_at"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
}

// TableName gorm table
func (Conversation) TableName() string { return "conversations" }

// ConversationParticipant membership row, identity (ConversationID, UserID)
type ConversationParticipant struct {
	ConversationID string     `gorm:"type:varchar(36);primaryKey" json:"conversation_id"`
	UserID         string     `gorm:"type:varchar(64);primaryKey;index" json:"user_id"`
	UnreadCount    int        `gorm:"not null;default:0" json:"unread_count"`
	JoinedAt       time.Time  `gorm:"not null" json:"joined_at"`
	LastReadAt     *time.Time `json:"last_read_at,omitempty"`
}

// TableName gorm table
func (ConversationParticipant) TableName() string { return "conversation_participants" }

// ConversationWithUnread a conversation row joined with the caller's participant row
type ConversationWithUnread struct {
	Conversation `gorm:"embedded"`
	UnreadCount  int
}

// ConversationSummary one entry of a user's conversation list
type ConversationSummary struct {
	ID             string           `json:"id"`
	Type           ConversationType `json:"type"`
	Name           *string          `json:"name,omitempty"`
	ParticipantIDs []string         `json:"participant_ids"`
	UnreadCount    int              `json:"unread_count"`
	LastMessageAt  time.Time        `json:"last_message_at"`
	LastMessage    *MessageView     `json:"last_message,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// DirectKey key of the unordered pair {a, b}
func DirectKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, ":")
}

// NewDirectConversation builds the conversation and its two participant rows.
func NewDirectConversation(a, b string, now time.Time) (*Conversation, []ConversationParticipant) {
	key := DirectKey(a, b)
	c := &Conversation{
		ID:            uuid.NewString(),
		Type:          Direct,
		DirectKey:     &key,
		LastMessageAt: now,
		CreatedAt:     now,
	}
	return c, participantsOf(c.ID, []string{a, b}, now)
}

// NewGroupConversation builds a group and its participant rows; members must
// already be deduplicated.
func NewGroupConversation(name string, members []string, now time.Time) (*Conversation, []ConversationParticipant) {
	c := &Conversation{
		ID:            uuid.NewString(),
		Type:          Group,
		Name:          &name,
		LastMessageAt: now,
		CreatedAt:     now,
	}
	return c, participantsOf(c.ID, members, now)
}

func participantsOf(conversationID string, users []string, now time.Time) []ConversationParticipant {
	out := make([]ConversationParticipant, 0, len(users))
	for _, u := range users {
		out = append(out, ConversationParticipant{
			ConversationID: conversationID,
			UserID:         u,
			JoinedAt:       now,
		})
	}
	return out
}
