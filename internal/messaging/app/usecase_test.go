package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"school_messaging_service/internal/messaging/domain"
	errprocess "school_messaging_service/pkg/err"
	"school_messaging_service/pkg/logger"
	"school_messaging_service/pkg/relay"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.SetNewNop()
	os.Exit(m.Run())
}

var fixedNow = time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)

type mocks struct {
	conv  *MockConversationRepository
	part  *MockParticipantRepository
	msg   *MockMessageRepository
	users *MockUserDirectory
	pub   *MockPublisher
	sink  *MockMessageSink
}

func newMocks() mocks {
	return mocks{
		conv:  new(MockConversationRepository),
		part:  new(MockParticipantRepository),
		msg:   new(MockMessageRepository),
		users: new(MockUserDirectory),
		pub:   new(MockPublisher),
		sink:  new(MockMessageSink),
	}
}

func (m mocks) conversationUC() *ConversationUseCase {
	uc := NewConversationUseCase(passTx{}, m.conv, m.part, m.msg, m.users, NewNotifier(m.pub, time.Second))
	uc.now = func() time.Time { return fixedNow }
	return uc
}

func (m mocks) messageUC() *MessageUseCase {
	uc := NewMessageUseCase(passTx{}, m.conv, m.part, m.msg, NewNotifier(m.pub, time.Second), m.sink)
	uc.now = func() time.Time { return fixedNow }
	uc.newID = func() (string, error) { return "msg-1", nil }
	return uc
}

func strPtr(s string) *string { return &s }

func notFound() error { return errprocess.New(errprocess.NotFound, "not found") }

// 測試 CreateOrGetDirect 參數檢查
func TestCreateOrGetDirect_RejectsSelfAndEmpty(t *testing.T) {
	m := newMocks()
	uc := m.conversationUC()

	_, err := uc.CreateOrGetDirect(context.Background(), "alice", "alice")
	assert.True(t, errprocess.Is(err, errprocess.InvalidArgument))

	_, err = uc.CreateOrGetDirect(context.Background(), "alice", "")
	assert.True(t, errprocess.Is(err, errprocess.InvalidArgument))

	m.users.AssertNotCalled(t, "Exists", mock.Anything, mock.Anything)
	m.conv.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateOrGetDirect_UnknownUser(t *testing.T) {
	m := newMocks()
	m.users.On("Exists", mock.Anything, "ghost").Return(false, nil)

	_, err := m.conversationUC().CreateOrGetDirect(context.Background(), "alice", "ghost")
	assert.True(t, errprocess.Is(err, errprocess.NotFound))
	m.conv.AssertNotCalled(t, "FindDirectByKey", mock.Anything, mock.Anything)
}

func TestCreateOrGetDirect_CreatesAndNotifies(t *testing.T) {
	m := newMocks()
	key := domain.DirectKey("alice", "bob")
	m.users.On("Exists", mock.Anything, "bob").Return(true, nil)
	m.conv.On("FindDirectByKey", mock.Anything, key).Return(nil, notFound())
	m.conv.On("Create", mock.Anything, mock.AnythingOfType("*domain.Conversation")).Return(true, nil)
	m.part.On("Create", mock.Anything, mock.MatchedBy(func(ps []domain.ConversationParticipant) bool {
		return len(ps) == 2
	})).Return(nil)
	m.pub.On("Publish", relay.UserChannel("bob"), domain.EventNewConversation, mock.Anything).Return(nil)

	conv, err := m.conversationUC().CreateOrGetDirect(context.Background(), "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.Direct, conv.Type)
	assert.Equal(t, fixedNow, conv.CreatedAt)

	m.conv.AssertExpectations(t)
	m.part.AssertExpectations(t)
	m.pub.AssertExpectations(t)
}

// 同時建立時 Create 回傳 false，要讀回對方建立的那一筆
func TestCreateOrGetDirect_LostRaceReReads(t *testing.T) {
	m := newMocks()
	key := domain.DirectKey("alice", "bob")
	winner := &domain.Conversation{ID: "conv-winner", Type: domain.Direct, DirectKey: &key}

	m.users.On("Exists", mock.Anything, "bob").Return(true, nil)
	m.conv.On("FindDirectByKey", mock.Anything, key).Return(nil, notFound()).Once()
	m.conv.On("Create", mock.Anything, mock.Anything).Return(false, nil)
	m.conv.On("FindDirectByKey", mock.Anything, key).Return(winner, nil).Once()

	conv, err := m.conversationUC().CreateOrGetDirect(context.Background(), "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, "conv-winner", conv.ID)

	m.part.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	m.pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateOrGetDirect_UnarchivesExisting(t *testing.T) {
	m := newMocks()
	key := domain.DirectKey("alice", "bob")
	existing := &domain.Conversation{ID: "conv-1", Type: domain.Direct, IsArchived: true}

	m.users.On("Exists", mock.Anything, "bob").Return(true, nil)
	m.conv.On("FindDirectByKey", mock.Anything, key).Return(existing, nil)
	m.conv.On("SetArchived", mock.Anything, "conv-1", false).Return(nil)

	conv, err := m.conversationUC().CreateOrGetDirect(context.Background(), "alice", "bob")
	require.NoError(t, err)
	assert.False(t, conv.IsArchived)
	m.conv.AssertExpectations(t)
}

func TestCreateGroup_Validation(t *testing.T) {
	m := newMocks()
	uc := m.conversationUC()

	_, err := uc.CreateGroup(context.Background(), "alice", "   ", []string{"bob"})
	assert.True(t, errprocess.Is(err, errprocess.InvalidArgument))

	_, err = uc.CreateGroup(context.Background(), "alice", "Class 3B", []string{"alice"})
	assert.True(t, errprocess.Is(err, errprocess.InvalidArgument))

	m.users.On("Exists", mock.Anything, "bob").Return(false, nil)
	_, err = uc.CreateGroup(context.Background(), "alice", "Class 3B", []string{"bob"})
	assert.True(t, errprocess.Is(err, errprocess.NotFound))
}

func TestLeave_GroupArchivesBelowTwo(t *testing.T) {
	m := newMocks()
	conv := &domain.Conversation{ID: "g1", Type: domain.Group}
	m.conv.On("FindByID", mock.Anything, "g1").Return(conv, nil)
	m.part.On("Find", mock.Anything, "g1", "alice").Return(&domain.ConversationParticipant{ConversationID: "g1", UserID: "alice"}, nil)
	m.part.On("Delete", mock.Anything, "g1", "alice").Return(nil)
	m.part.On("ListByConversation", mock.Anything, "g1").Return([]domain.ConversationParticipant{{ConversationID: "g1", UserID: "bob"}}, nil)
	m.conv.On("SetArchived", mock.Anything, "g1", true).Return(nil)
	m.pub.On("Publish", relay.UserChannel("bob"), domain.EventParticipantLeft, domain.ParticipantLeft{
		ConversationID: "g1", UserID: "alice", Archived: true,
	}).Return(nil)

	require.NoError(t, m.conversationUC().Leave(context.Background(), "g1", "alice"))
	m.conv.AssertExpectations(t)
	m.part.AssertExpectations(t)
	m.pub.AssertExpectations(t)
}

func TestLeave_NotParticipant(t *testing.T) {
	m := newMocks()
	m.conv.On("FindByID", mock.Anything, "g1").Return(&domain.Conversation{ID: "g1", Type: domain.Group}, nil)
	m.part.On("Find", mock.Anything, "g1", "mallory").Return(nil, notFound())

	err := m.conversationUC().Leave(context.Background(), "g1", "mallory")
	assert.True(t, errprocess.Is(err, errprocess.Forbidden))
	m.part.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}

// 測試 Send 成功：對方收到 conversation-updated，下游收到 message.sent
func TestSend_NotifiesOthersAndSink(t *testing.T) {
	m := newMocks()
	conv := &domain.Conversation{ID: "c1", Type: domain.Direct}
	m.conv.On("FindByID", mock.Anything, "c1").Return(conv, nil)
	m.part.On("Find", mock.Anything, "c1", "alice").Return(&domain.ConversationParticipant{}, nil)
	m.msg.On("Create", mock.Anything, mock.AnythingOfType("*domain.Message")).Return(nil)
	m.conv.On("TouchLastMessageAt", mock.Anything, "c1", fixedNow).Return(nil)
	m.part.On("IncrementUnreadExcept", mock.Anything, "c1", "alice").Return(nil)
	m.part.On("ListByConversation", mock.Anything, "c1").Return([]domain.ConversationParticipant{
		{ConversationID: "c1", UserID: "alice"}, {ConversationID: "c1", UserID: "bob"},
	}, nil)
	m.pub.On("Publish", relay.UserChannel("bob"), domain.EventConversationUpdated, mock.MatchedBy(func(p domain.ConversationUpdated) bool {
		return p.ConversationID == "c1" && p.LastMessage.ID == "msg-1" && *p.LastMessage.Body == "hello"
	})).Return(nil)
	m.sink.On("MessageSent", mock.MatchedBy(func(r domain.MessageSent) bool {
		return r.MessageID == "msg-1" && len(r.RecipientIDs) == 1 && r.RecipientIDs[0] == "bob" && r.HasBody
	})).Return(nil)

	msg, err := m.messageUC().Send(context.Background(), SendMessageInput{
		ConversationID: "c1", SenderID: "alice", Body: strPtr("  hello "),
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", *msg.Body)
	assert.Equal(t, domain.Attachments{}, msg.Attachments)

	m.msg.AssertExpectations(t)
	m.part.AssertExpectations(t)
	m.pub.AssertExpectations(t)
	m.sink.AssertExpectations(t)
}

// relay / kafka 失敗不影響已提交的訊息
func TestSend_DeliveryFailuresAreSwallowed(t *testing.T) {
	m := newMocks()
	m.conv.On("FindByID", mock.Anything, "c1").Return(&domain.Conversation{ID: "c1"}, nil)
	m.part.On("Find", mock.Anything, "c1", "alice").Return(&domain.ConversationParticipant{}, nil)
	m.msg.On("Create", mock.Anything, mock.Anything).Return(nil)
	m.conv.On("TouchLastMessageAt", mock.Anything, "c1", fixedNow).Return(nil)
	m.part.On("IncrementUnreadExcept", mock.Anything, "c1", "alice").Return(nil)
	m.part.On("ListByConversation", mock.Anything, "c1").Return([]domain.ConversationParticipant{
		{UserID: "alice"}, {UserID: "bob"},
	}, nil)
	m.pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("redis down"))
	m.sink.On("MessageSent", mock.Anything).Return(errors.New("kafka down"))

	msg, err := m.messageUC().Send(context.Background(), SendMessageInput{
		ConversationID: "c1", SenderID: "alice", Body: strPtr("hi"),
	})
	require.NoError(t, err)
	assert.Equal(t, "msg-1", msg.ID)
}

// relay 卡住時，一次 fan-out 只等一個 timeout，不因人數累加
func TestFanOut_StalledRelayCostsOneTimeout(t *testing.T) {
	const (
		timeout = 100 * time.Millisecond
		class   = 20
	)
	students := make([]string, 0, class)
	rows := []domain.ConversationParticipant{{ConversationID: "g1", UserID: "teacher-lee"}}
	for i := 0; i < class; i++ {
		id := fmt.Sprintf("student-%02d", i)
		students = append(students, id)
		rows = append(rows, domain.ConversationParticipant{ConversationID: "g1", UserID: id})
	}

	newUseCases := func() (mocks, *stalledPublisher, *ConversationUseCase, *MessageUseCase) {
		m := newMocks()
		pub := &stalledPublisher{}
		notifier := NewNotifier(pub, timeout)
		convUC := NewConversationUseCase(passTx{}, m.conv, m.part, m.msg, m.users, notifier)
		convUC.now = func() time.Time { return fixedNow }
		msgUC := NewMessageUseCase(passTx{}, m.conv, m.part, m.msg, notifier, stalledSink{})
		msgUC.now = func() time.Time { return fixedNow }
		msgUC.newID = func() (string, error) { return "msg-1", nil }
		return m, pub, convUC, msgUC
	}
	within := func(t *testing.T, fn func()) time.Duration {
		start := time.Now()
		fn()
		elapsed := time.Since(start)
		assert.Less(t, elapsed, 5*timeout, "took %s", elapsed)
		return elapsed
	}

	t.Run("create group", func(t *testing.T) {
		m, pub, convUC, _ := newUseCases()
		m.users.On("Exists", mock.Anything, mock.Anything).Return(true, nil)
		m.conv.On("Create", mock.Anything, mock.AnythingOfType("*domain.Conversation")).Return(true, nil)
		m.part.On("Create", mock.Anything, mock.Anything).Return(nil)

		within(t, func() {
			_, err := convUC.CreateGroup(context.Background(), "teacher-lee", "Class 3B", students)
			require.NoError(t, err)
		})
		assert.Equal(t, int32(class), atomic.LoadInt32(&pub.calls))
	})

	t.Run("send", func(t *testing.T) {
		m, pub, _, msgUC := newUseCases()
		m.conv.On("FindByID", mock.Anything, "g1").Return(&domain.Conversation{ID: "g1", Type: domain.Group}, nil)
		m.part.On("Find", mock.Anything, "g1", "teacher-lee").Return(&domain.ConversationParticipant{}, nil)
		m.msg.On("Create", mock.Anything, mock.Anything).Return(nil)
		m.conv.On("TouchLastMessageAt", mock.Anything, "g1", fixedNow).Return(nil)
		m.part.On("IncrementUnreadExcept", mock.Anything, "g1", "teacher-lee").Return(nil)
		m.part.On("ListByConversation", mock.Anything, "g1").Return(rows, nil)

		within(t, func() {
			msg, err := msgUC.Send(context.Background(), SendMessageInput{
				ConversationID: "g1", SenderID: "teacher-lee", Body: strPtr("No school on Monday"),
			})
			require.NoError(t, err)
			assert.Equal(t, "msg-1", msg.ID)
		})
		assert.Equal(t, int32(class), atomic.LoadInt32(&pub.calls))
	})

	t.Run("leave", func(t *testing.T) {
		m, pub, convUC, _ := newUseCases()
		m.conv.On("FindByID", mock.Anything, "g1").Return(&domain.Conversation{ID: "g1", Type: domain.Group}, nil)
		m.part.On("Find", mock.Anything, "g1", "teacher-lee").Return(&domain.ConversationParticipant{}, nil)
		m.part.On("Delete", mock.Anything, "g1", "teacher-lee").Return(nil)
		m.part.On("ListByConversation", mock.Anything, "g1").Return(rows[1:], nil)

		within(t, func() {
			require.NoError(t, convUC.Leave(context.Background(), "g1", "teacher-lee"))
		})
		assert.Equal(t, int32(class), atomic.LoadInt32(&pub.calls))
	})
}

func TestSend_Rejections(t *testing.T) {
	t.Run("empty content", func(t *testing.T) {
		m := newMocks()
		_, err := m.messageUC().Send(context.Background(), SendMessageInput{ConversationID: "c1", SenderID: "alice", Body: strPtr("   ")})
		assert.True(t, errprocess.Is(err, errprocess.InvalidArgument))
		m.conv.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	})

	t.Run("not a participant", func(t *testing.T) {
		m := newMocks()
		m.conv.On("FindByID", mock.Anything, "c1").Return(&domain.Conversation{ID: "c1"}, nil)
		m.part.On("Find", mock.Anything, "c1", "mallory").Return(nil, notFound())
		_, err := m.messageUC().Send(context.Background(), SendMessageInput{ConversationID: "c1", SenderID: "mallory", Body: strPtr("hi")})
		assert.True(t, errprocess.Is(err, errprocess.Forbidden))
		m.msg.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("archived", func(t *testing.T) {
		m := newMocks()
		m.conv.On("FindByID", mock.Anything, "c1").Return(&domain.Conversation{ID: "c1", IsArchived: true}, nil)
		m.part.On("Find", mock.Anything, "c1", "alice").Return(&domain.ConversationParticipant{}, nil)
		_, err := m.messageUC().Send(context.Background(), SendMessageInput{ConversationID: "c1", SenderID: "alice", Body: strPtr("hi")})
		assert.True(t, errprocess.Is(err, errprocess.Forbidden))
		m.msg.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("unknown conversation", func(t *testing.T) {
		m := newMocks()
		m.conv.On("FindByID", mock.Anything, "nope").Return(nil, notFound())
		_, err := m.messageUC().Send(context.Background(), SendMessageInput{ConversationID: "nope", SenderID: "alice", Body: strPtr("hi")})
		assert.True(t, errprocess.Is(err, errprocess.NotFound))
	})

	t.Run("store failure", func(t *testing.T) {
		m := newMocks()
		m.conv.On("FindByID", mock.Anything, "c1").Return(nil, errprocess.Wrap(errprocess.TransientStoreFailure, "find", errors.New("conn reset")))
		_, err := m.messageUC().Send(context.Background(), SendMessageInput{ConversationID: "c1", SenderID: "alice", Body: strPtr("hi")})
		assert.True(t, errprocess.Is(err, errprocess.TransientStoreFailure))
		m.pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestHistory_CursorOfAnotherConversation(t *testing.T) {
	m := newMocks()
	cursor := domain.CursorOf(domain.Message{ID: "m1", ConversationID: "other", CreatedAt: fixedNow}).Encode()

	_, err := m.messageUC().History(context.Background(), "c1", "alice", 10, cursor)
	assert.True(t, errprocess.Is(err, errprocess.InvalidArgument))

	_, err = m.messageUC().History(context.Background(), "c1", "alice", 10, "%%%")
	assert.True(t, errprocess.Is(err, errprocess.InvalidArgument))
}

func TestHistory_ClampsAndBuildsCursor(t *testing.T) {
	m := newMocks()
	msgs := []domain.Message{
		{ID: "m2", ConversationID: "c1", CreatedAt: fixedNow.Add(time.Second)},
		{ID: "m1", ConversationID: "c1", CreatedAt: fixedNow, IsDeleted: true},
	}
	m.conv.On("FindByID", mock.Anything, "c1").Return(&domain.Conversation{ID: "c1"}, nil)
	m.part.On("Find", mock.Anything, "c1", "alice").Return(&domain.ConversationParticipant{}, nil)
	m.msg.On("Page", mock.Anything, "c1", (*domain.Cursor)(nil), domain.MaxPageSize).Return(msgs, true, nil)

	page, err := m.messageUC().History(context.Background(), "c1", "alice", 1000, "")
	require.NoError(t, err)
	assert.Len(t, page.Messages, 2)
	assert.True(t, page.HasMore)
	assert.Nil(t, page.Messages[1].Body)

	next, err := domain.DecodeCursor(page.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, "m1", next.ID)
}

func TestMarkRead_NotifiesOwnDevices(t *testing.T) {
	m := newMocks()
	m.conv.On("FindByID", mock.Anything, "c1").Return(&domain.Conversation{ID: "c1"}, nil)
	m.part.On("Find", mock.Anything, "c1", "bob").Return(&domain.ConversationParticipant{}, nil)
	m.part.On("MarkRead", mock.Anything, "c1", "bob", fixedNow).Return(nil)
	m.pub.On("Publish", relay.UserChannel("bob"), domain.EventUnreadCountUpdated, domain.UnreadCountUpdated{ConversationID: "c1"}).Return(nil)

	require.NoError(t, m.messageUC().MarkRead(context.Background(), "c1", "bob"))
	m.part.AssertExpectations(t)
	m.pub.AssertExpectations(t)
}

func TestRetract(t *testing.T) {
	sent := &domain.Message{ID: "m1", ConversationID: "c1", SenderID: "alice", CreatedAt: fixedNow}

	t.Run("sender retracts", func(t *testing.T) {
		m := newMocks()
		m.msg.On("FindByID", mock.Anything, "m1").Return(sent, nil)
		m.part.On("Find", mock.Anything, "c1", "alice").Return(&domain.ConversationParticipant{}, nil)
		m.msg.On("SoftDelete", mock.Anything, "m1").Return(true, nil)
		m.part.On("DecrementUnreadFor", mock.Anything, "c1", "alice", fixedNow).Return(nil)
		m.part.On("ListByConversation", mock.Anything, "c1").Return([]domain.ConversationParticipant{{UserID: "alice"}, {UserID: "bob"}}, nil)
		m.pub.On("Publish", relay.UserChannel("alice"), domain.EventMessageDeleted, mock.Anything).Return(nil)
		m.pub.On("Publish", relay.UserChannel("bob"), domain.EventMessageDeleted, mock.Anything).Return(nil)

		require.NoError(t, m.messageUC().Retract(context.Background(), "c1", "m1", "alice"))
		m.part.AssertExpectations(t)
		m.pub.AssertExpectations(t)
	})

	t.Run("already retracted is a no-op", func(t *testing.T) {
		m := newMocks()
		m.msg.On("FindByID", mock.Anything, "m1").Return(sent, nil)
		m.part.On("Find", mock.Anything, "c1", "alice").Return(&domain.ConversationParticipant{}, nil)
		m.msg.On("SoftDelete", mock.Anything, "m1").Return(false, nil)

		require.NoError(t, m.messageUC().Retract(context.Background(), "c1", "m1", "alice"))
		m.part.AssertNotCalled(t, "DecrementUnreadFor", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		m.pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("someone else's message", func(t *testing.T) {
		m := newMocks()
		m.msg.On("FindByID", mock.Anything, "m1").Return(sent, nil)
		m.part.On("Find", mock.Anything, "c1", "bob").Return(&domain.ConversationParticipant{}, nil)

		err := m.messageUC().Retract(context.Background(), "c1", "m1", "bob")
		assert.True(t, errprocess.Is(err, errprocess.Forbidden))
	})

	t.Run("message of another conversation", func(t *testing.T) {
		m := newMocks()
		m.msg.On("FindByID", mock.Anything, "m1").Return(sent, nil)

		err := m.messageUC().Retract(context.Background(), "c2", "m1", "alice")
		assert.True(t, errprocess.Is(err, errprocess.NotFound))
	})
}

func TestStatusOf(t *testing.T) {
	cases := map[errprocess.Kind]int{
		errprocess.Unauthorized:          401,
		errprocess.Forbidden:             403,
		errprocess.NotFound:              404,
		errprocess.InvalidArgument:       400,
		errprocess.TransientStoreFailure: 503,
		errprocess.Internal:              500,
	}
	for kind, status := range cases {
		assert.Equal(t, status, StatusOf(errprocess.New(kind, "x")), string(kind))
	}
	assert.Equal(t, 500, StatusOf(errors.New("plain")))
}
