package repository

import (
	"context"

	"school_messaging_service/internal/messaging/domain"
)

// MessageRepository messages table
type MessageRepository interface {
	Create(ctx context.Context, m *domain.Message) error
	FindByID(ctx context.Context, id string) (*domain.Message, error)
	// Page newest first, strictly older than before when set. hasMore
	// reports whether older messages exist past the page.
	Page(ctx context.Context, conversationID string, before *domain.Cursor, limit int) (msgs []domain.Message, hasMore bool, err error)
	// SoftDelete marks the message deleted and clears its content; false
	// when it already was deleted.
	SoftDelete(ctx context.Context, id string) (bool, error)
	// LatestByConversations newest message per conversation
	LatestByConversations(ctx context.Context, conversationIDs []string) (map[string]domain.Message, error)
}

type messageRepository struct {
	*Store
}

// NewMessageRepository create MessageRepository
func NewMessageRepository(s *Store) MessageRepository {
	return &messageRepository{Store: s}
}

func (r *messageRepository) Create(ctx context.Context, m *domain.Message) error {
	return storeErr("create message", r.conn(ctx).Create(m).Error)
}

func (r *messageRepository) FindByID(ctx context.Context, id string) (*domain.Message, error) {
	var m domain.Message
	if err := r.conn(ctx).Where("id = ?", id).Take(&m).Error; err != nil {
		return nil, storeErr("find message", err)
	}
	return &m, nil
}

func (r *messageRepository) Page(ctx context.Context, conversationID string, before *domain.Cursor, limit int) ([]domain.Message, bool, error) {
	q := r.conn(ctx).Where("conversation_id = ?", conversationID)
	if before != nil {
		q = q.Where("(created_at < ? OR (created_at = ? AND id < ?))", before.CreatedAt, before.CreatedAt, before.ID)
	}

	var msgs []domain.Message
	// 多拿一筆判斷是否還有更舊的訊息
	if err := q.Order("created_at DESC, id DESC").Limit(limit + 1).Find(&msgs).Error; err != nil {
		return nil, false, storeErr("page messages", err)
	}

	hasMore := len(msgs) > limit
	if hasMore {
		msgs = msgs[:limit]
	}
	return msgs, hasMore, nil
}

func (r *messageRepository) SoftDelete(ctx context.Context, id string) (bool, error) {
	res := r.conn(ctx).Model(&domain.Message{}).
		Where("id = ? AND is_deleted = ?", id, false).
		UpdateColumns(map[string]interface{}{
			"is_deleted":  true,
			"body":        nil,
			"attachments": domain.Attachments{},
		})
	if res.Error != nil {
		return false, storeErr("soft delete message", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *messageRepository) LatestByConversations(ctx context.Context, conversationIDs []string) (map[string]domain.Message, error) {
	out := make(map[string]domain.Message, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return out, nil
	}

	var msgs []domain.Message
	err := r.conn(ctx).Table("messages AS m").
		Select("m.*").
		Where("m.conversation_id IN ?", conversationIDs).
		Where(`NOT EXISTS (
			SELECT 1 FROM messages n
			WHERE n.conversation_id = m.conversation_id
			AND (n.created_at > m.created_at OR (n.created_at = m.created_at AND n.id > m.id)))`).
		Find(&msgs).Error
	if err != nil {
		return nil, storeErr("latest messages", err)
	}

	for _, m := range msgs {
		out[m.ConversationID] = m
	}
	return out, nil
}
