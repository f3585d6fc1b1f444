package app

import (
	"context"
	"sync/atomic"
	"time"

	"school_messaging_service/internal/messaging/domain"

	"github.com/stretchr/testify/mock"
)

// passTx runs fn inline
type passTx struct{}

func (passTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// MockConversationRepository Mock ConversationRepository
type MockConversationRepository struct {
	mock.Mock
}

func (m *MockConversationRepository) Create(ctx context.Context, c *domain.Conversation) (bool, error) {
	args := m.Called(ctx, c)
	return args.Bool(0), args.Error(1)
}

func (m *MockConversationRepository) FindByID(ctx context.Context, id string) (*domain.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockConversationRepository) FindDirectByKey(ctx context.Context, key string) (*domain.Conversation, error) {
	args := m.Called(ctx, key)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockConversationRepository) TouchLastMessageAt(ctx context.Context, id string, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *MockConversationRepository) SetArchived(ctx context.Context, id string, archived bool) error {
	return m.Called(ctx, id, archived).Error(0)
}

func (m *MockConversationRepository) ListForUser(ctx context.Context, userID string) ([]domain.ConversationWithUnread, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.ConversationWithUnread), args.Error(1)
}

// MockParticipantRepository Mock ParticipantRepository
type MockParticipantRepository struct {
	mock.Mock
}

func (m *MockParticipantRepository) Create(ctx context.Context, ps []domain.ConversationParticipant) error {
	return m.Called(ctx, ps).Error(0)
}

func (m *MockParticipantRepository) Find(ctx context.Context, conversationID, userID string) (*domain.ConversationParticipant, error) {
	args := m.Called(ctx, conversationID, userID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.ConversationParticipant), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockParticipantRepository) ListByConversation(ctx context.Context, conversationID string) ([]domain.ConversationParticipant, error) {
	args := m.Called(ctx, conversationID)
	return args.Get(0).([]domain.ConversationParticipant), args.Error(1)
}

func (m *MockParticipantRepository) ListByConversations(ctx context.Context, conversationIDs []string) ([]domain.ConversationParticipant, error) {
	args := m.Called(ctx, conversationIDs)
	return args.Get(0).([]domain.ConversationParticipant), args.Error(1)
}

func (m *MockParticipantRepository) IncrementUnreadExcept(ctx context.Context, conversationID, userID string) error {
	return m.Called(ctx, conversationID, userID).Error(0)
}

func (m *MockParticipantRepository) MarkRead(ctx context.Context, conversationID, userID string, at time.Time) error {
	return m.Called(ctx, conversationID, userID, at).Error(0)
}

func (m *MockParticipantRepository) DecrementUnreadFor(ctx context.Context, conversationID, senderID string, sentAt time.Time) error {
	return m.Called(ctx, conversationID, senderID, sentAt).Error(0)
}

func (m *MockParticipantRepository) Delete(ctx context.Context, conversationID, userID string) error {
	return m.Called(ctx, conversationID, userID).Error(0)
}

func (m *MockParticipantRepository) Count(ctx context.Context, conversationID string) (int64, error) {
	args := m.Called(ctx, conversationID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockParticipantRepository) UnreadCounts(ctx context.Context, userID string) (map[string]int, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(map[string]int), args.Error(1)
}

// MockMessageRepository Mock MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *MockMessageRepository) FindByID(ctx context.Context, id string) (*domain.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockMessageRepository) Page(ctx context.Context, conversationID string, before *domain.Cursor, limit int) ([]domain.Message, bool, error) {
	args := m.Called(ctx, conversationID, before, limit)
	return args.Get(0).([]domain.Message), args.Bool(1), args.Error(2)
}

func (m *MockMessageRepository) SoftDelete(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockMessageRepository) LatestByConversations(ctx context.Context, conversationIDs []string) (map[string]domain.Message, error) {
	args := m.Called(ctx, conversationIDs)
	return args.Get(0).(map[string]domain.Message), args.Error(1)
}

// MockUserDirectory Mock UserDirectory
type MockUserDirectory struct {
	mock.Mock
}

func (m *MockUserDirectory) Exists(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

// MockPublisher Mock relay.Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, channel, event string, payload interface{}) error {
	return m.Called(channel, event, payload).Error(0)
}

// MockMessageSink Mock MessageSink
type MockMessageSink struct {
	mock.Mock
}

func (m *MockMessageSink) MessageSent(ctx context.Context, rec domain.MessageSent) error {
	return m.Called(rec).Error(0)
}

// stalledPublisher never delivers; each call waits for its ctx
type stalledPublisher struct {
	calls int32
}

func (p *stalledPublisher) Publish(ctx context.Context, _, _ string, _ interface{}) error {
	atomic.AddInt32(&p.calls, 1)
	<-ctx.Done()
	return ctx.Err()
}

// stalledSink like stalledPublisher, for the downstream sink
type stalledSink struct{}

func (stalledSink) MessageSent(ctx context.Context, _ domain.MessageSent) error {
	<-ctx.Done()
	return ctx.Err()
}
