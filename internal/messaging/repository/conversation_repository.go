package repository

import (
	"context"
	"time"

	"school_messaging_service/internal/messaging/domain"

	"gorm.io/gorm/clause"
)

// ConversationRepository conversations table
type ConversationRepository interface {
	// Create inserts c unless a DIRECT conversation with the same pair
	// exists; created is false in that case and c is left untouched.
	Create(ctx context.Context, c *domain.Conversation) (created bool, err error)
	FindByID(ctx context.Context, id string) (*domain.Conversation, error)
	FindDirectByKey(ctx context.Context, key string) (*domain.Conversation, error)
	// TouchLastMessageAt moves last_message_at forward, never back.
	TouchLastMessageAt(ctx context.Context, id string, at time.Time) error
	SetArchived(ctx context.Context, id string, archived bool) error
	// ListForUser non archived conversations of userID, most recent first.
	ListForUser(ctx context.Context, userID string) ([]domain.ConversationWithUnread, error)
}

type conversationRepository struct {
	*Store
}

// NewConversationRepository create ConversationRepository
func NewConversationRepository(s *Store) ConversationRepository {
	return &conversationRepository{Store: s}
}

func (r *conversationRepository) Create(ctx context.Context, c *domain.Conversation) (bool, error) {
	res := r.conn(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "direct_key"}}, DoNothing: true}).
		Create(c)
	if res.Error != nil {
		return false, storeErr("create conversation", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *conversationRepository) FindByID(ctx context.Context, id string) (*domain.Conversation, error) {
	var c domain.Conversation
	if err := r.conn(ctx).Where("id = ?", id).Take(&c).Error; err != nil {
		return nil, storeErr("find conversation", err)
	}
	return &c, nil
}

func (r *conversationRepository) FindDirectByKey(ctx context.Context, key string) (*domain.Conversation, error) {
	var c domain.Conversation
	if err := r.conn(ctx).Where("direct_key = ?", key).Take(&c).Error; err != nil {
		return nil, storeErr("find direct conversation", err)
	}
	return &c, nil
}

func (r *conversationRepository) TouchLastMessageAt(ctx context.Context, id string, at time.Time) error {
	err := r.conn(ctx).Model(&domain.Conversation{}).
		Where("id = ? AND last_message_at < ?", id, at).
		UpdateColumn("last_message_at", at).Error
	return storeErr("touch last_message_at", err)
}

func (r *conversationRepository) SetArchived(ctx context.Context, id string, archived bool) error {
	err := r.conn(ctx).Model(&domain.Conversation{}).
		Where("id = ?", id).
		UpdateColumn("is_archived", archived).Error
	return storeErr("set archived", err)
}

func (r *conversationRepository) ListForUser(ctx context.Context, userID string) ([]domain.ConversationWithUnread, error) {
	var rows []domain.ConversationWithUnread
	err := r.conn(ctx).Model(&domain.Conversation{}).
		Select("conversations.*, p.unread_count AS unread_count").
		Joins("JOIN conversation_participants p ON p.conversation_id = conversations.id").
		Where("p.user_id = ? AND conversations.is_archived = ?", userID, false).
		Order("conversations.last_message_at DESC, conversations.id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, storeErr("list conversations", err)
	}
	return rows, nil
}
