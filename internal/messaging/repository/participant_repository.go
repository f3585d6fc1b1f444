package repository

import (
	"context"
	"time"

	"school_messaging_service/internal/messaging/domain"

	"gorm.io/gorm"
)

// ParticipantRepository conversation_participants table
type ParticipantRepository interface {
	Create(ctx context.Context, ps []domain.ConversationParticipant) error
	Find(ctx context.Context, conversationID, userID string) (*domain.ConversationParticipant, error)
	ListByConversation(ctx context.Context, conversationID string) ([]domain.ConversationParticipant, error)
	ListByConversations(ctx context.Context, conversationIDs []string) ([]domain.ConversationParticipant, error)
	// IncrementUnreadExcept +1 for every participant but userID
	IncrementUnreadExcept(ctx context.Context, conversationID, userID string) error
	// MarkRead unread_count = 0, last_read_at = at
	MarkRead(ctx context.Context, conversationID, userID string, at time.Time) error
	// DecrementUnreadFor -1 (floor 0) for participants other than senderID
	// that had not read up to sentAt
	DecrementUnreadFor(ctx context.Context, conversationID, senderID string, sentAt time.Time) error
	Delete(ctx context.Context, conversationID, userID string) error
	Count(ctx context.Context, conversationID string) (int64, error)
	// UnreadCounts per non archived conversation of userID
	UnreadCounts(ctx context.Context, userID string) (map[string]int, error)
}

type participantRepository struct {
	*Store
}

// NewParticipantRepository create ParticipantRepository
func NewParticipantRepository(s *Store) ParticipantRepository {
	return &participantRepository{Store: s}
}

func (r *participantRepository) Create(ctx context.Context, ps []domain.ConversationParticipant) error {
	if len(ps) == 0 {
		return nil
	}
	return storeErr("create participants", r.conn(ctx).Create(&ps).Error)
}

func (r *participantRepository) Find(ctx context.Context, conversationID, userID string) (*domain.ConversationParticipant, error) {
	var p domain.ConversationParticipant
	err := r.conn(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Take(&p).Error
	if err != nil {
		return nil, storeErr("find participant", err)
	}
	return &p, nil
}

func (r *participantRepository) ListByConversation(ctx context.Context, conversationID string) ([]domain.ConversationParticipant, error) {
	return r.ListByConversations(ctx, []string{conversationID})
}

func (r *participantRepository) ListByConversations(ctx context.Context, conversationIDs []string) ([]domain.ConversationParticipant, error) {
	var ps []domain.ConversationParticipant
	if len(conversationIDs) == 0 {
		return ps, nil
	}
	err := r.conn(ctx).
		Where("conversation_id IN ?", conversationIDs).
		Order("conversation_id, joined_at, user_id").
		Find(&ps).Error
	if err != nil {
		return nil, storeErr("list participants", err)
	}
	return ps, nil
}

func (r *participantRepository) IncrementUnreadExcept(ctx context.Context, conversationID, userID string) error {
	err := r.conn(ctx).Model(&domain.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id <> ?", conversationID, userID).
		UpdateColumn("unread_count", gorm.Expr("unread_count + 1")).Error
	return storeErr("increment unread", err)
}

func (r *participantRepository) MarkRead(ctx context.Context, conversationID, userID string, at time.Time) error {
	err := r.conn(ctx).Model(&domain.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		UpdateColumns(map[string]interface{}{
			"unread_count": 0,
			"last_read_at": at,
		}).Error
	return storeErr("mark read", err)
}

func (r *participantRepository) DecrementUnreadFor(ctx context.Context, conversationID, senderID string, sentAt time.Time) error {
	err := r.conn(ctx).Model(&domain.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id <> ? AND unread_count > 0", conversationID, senderID).
		Where("(last_read_at IS NULL OR last_read_at < ?)", sentAt).
		UpdateColumn("unread_count", gorm.Expr("unread_count - 1")).Error
	return storeErr("decrement unread", err)
}

func (r *participantRepository) Delete(ctx context.Context, conversationID, userID string) error {
	err := r.conn(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Delete(&domain.ConversationParticipant{}).Error
	return storeErr("delete participant", err)
}

func (r *participantRepository) Count(ctx context.Context, conversationID string) (int64, error) {
	var n int64
	err := r.conn(ctx).Model(&domain.ConversationParticipant{}).
		Where("conversation_id = ?", conversationID).
		Count(&n).Error
	return n, storeErr("count participants", err)
}

func (r *participantRepository) UnreadCounts(ctx context.Context, userID string) (map[string]int, error) {
	var rows []struct {
		ConversationID string
		UnreadCount    int
	}
	err := r.conn(ctx).Model(&domain.ConversationParticipant{}).
		Select("conversation_participants.conversation_id, conversation_participants.unread_count").
		Joins("JOIN conversations c ON c.id = conversation_participants.conversation_id").
		Where("conversation_participants.user_id = ? AND c.is_archived = ?", userID, false).
		Scan(&rows).Error
	if err != nil {
		return nil, storeErr("unread counts", err)
	}

	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.ConversationID] = row.UnreadCount
	}
	return out, nil
}
