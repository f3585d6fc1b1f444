package app

import (
	"context"
	"time"

	"school_messaging_service/internal/messaging/domain"
	"school_messaging_service/internal/messaging/repository"
	errprocess "school_messaging_service/pkg/err"
	"school_messaging_service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SendMessageInput sendMessage arguments
type SendMessageInput struct {
	ConversationID string
	SenderID       string
	Body           *string
	Attachments    domain.Attachments
}

// MessageUseCase message send / history / read receipts / retraction
type MessageUseCase struct {
	tx       repository.Transactor
	convRepo repository.ConversationRepository
	partRepo repository.ParticipantRepository
	msgRepo  repository.MessageRepository
	notify   *Notifier
	sink     repository.MessageSink
	now      func() time.Time
	newID    func() (string, error)
}

// NewMessageUseCase create MessageUseCase; sink may be nil
func NewMessageUseCase(
	tx repository.Transactor,
	convRepo repository.ConversationRepository,
	partRepo repository.ParticipantRepository,
	msgRepo repository.MessageRepository,
	notify *Notifier,
	sink repository.MessageSink,
) *MessageUseCase {
	if sink == nil {
		sink = repository.NopMessageSink{}
	}
	return &MessageUseCase{
		tx:       tx,
		convRepo: convRepo,
		partRepo: partRepo,
		msgRepo:  msgRepo,
		notify:   notify,
		sink:     sink,
		now:      utcNow,
		newID:    newMessageID,
	}
}

func newMessageID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Send stores the message, bumps last_message_at and the unread count of
// every other participant in one transaction, then notifies them.
func (uc *MessageUseCase) Send(ctx context.Context, in SendMessageInput) (*domain.Message, error) {
	body := domain.NormalizeBody(in.Body)
	if err := domain.ValidateContent(body, in.Attachments); err != nil {
		return nil, err
	}

	id, err := uc.newID()
	if err != nil {
		return nil, errprocess.Wrap(errprocess.Internal, "message id", err)
	}
	msg := &domain.Message{
		ID:             id,
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		Body:           body,
		Attachments:    in.Attachments,
		CreatedAt:      uc.now(),
	}
	if msg.Attachments == nil {
		msg.Attachments = domain.Attachments{}
	}

	var recipients []string
	err = uc.tx.RunInTx(ctx, func(ctx context.Context) error {
		conv, err := uc.convRepo.FindByID(ctx, in.ConversationID)
		if err != nil {
			return err
		}
		if _, err := requireParticipant(ctx, uc.partRepo, conv.ID, in.SenderID); err != nil {
			return err
		}
		if conv.IsArchived {
			return errprocess.New(errprocess.Forbidden, "conversation is archived")
		}

		if err := uc.msgRepo.Create(ctx, msg); err != nil {
			return err
		}
		if err := uc.convRepo.TouchLastMessageAt(ctx, conv.ID, msg.CreatedAt); err != nil {
			return err
		}
		if err := uc.partRepo.IncrementUnreadExcept(ctx, conv.ID, in.SenderID); err != nil {
			return err
		}

		ps, err := uc.partRepo.ListByConversation(ctx, conv.ID)
		if err != nil {
			return err
		}
		recipients = othersOf(ps, in.SenderID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// relay 與 kafka 同時送出，整體最多等一個 timeout
	var g errgroup.Group
	g.Go(func() error {
		uc.notify.Notify(ctx, recipients, domain.EventConversationUpdated, domain.ConversationUpdated{
			ConversationID: msg.ConversationID,
			LastMessage:    msg.View(),
		})
		return nil
	})
	g.Go(func() error {
		uc.emit(ctx, msg, recipients)
		return nil
	})
	_ = g.Wait()
	return msg, nil
}

func (uc *MessageUseCase) emit(ctx context.Context, msg *domain.Message, recipients []string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.notify.Timeout())
	defer cancel()

	rec := domain.MessageSent{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		RecipientIDs:   recipients,
		HasBody:        msg.Body != nil,
		Attachments:    len(msg.Attachments),
		CreatedAt:      msg.CreatedAt,
	}
	if err := uc.sink.MessageSent(ctx, rec); err != nil {
		logger.Log.Error("message sink failed", zap.String("message_id", msg.ID), zap.Error(err))
	}
}

func othersOf(ps []domain.ConversationParticipant, userID string) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		if p.UserID != userID {
			out = append(out, p.UserID)
		}
	}
	return out
}

// History newest first page of a conversation. cursor is the NextCursor of
// the previous page, "" for the newest page.
func (uc *MessageUseCase) History(ctx context.Context, conversationID, callerID string, limit int, cursor string) (*domain.MessagePage, error) {
	limit = domain.ClampLimit(limit)

	var before *domain.Cursor
	if cursor != "" {
		c, err := domain.DecodeCursor(cursor)
		if err != nil {
			return nil, err
		}
		if c.ConversationID != conversationID {
			return nil, errprocess.New(errprocess.InvalidArgument, "cursor belongs to another conversation")
		}
		before = &c
	}

	var (
		msgs    []domain.Message
		hasMore bool
	)
	err := uc.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := uc.convRepo.FindByID(ctx, conversationID); err != nil {
			return err
		}
		if _, err := requireParticipant(ctx, uc.partRepo, conversationID, callerID); err != nil {
			return err
		}
		var err error
		msgs, hasMore, err = uc.msgRepo.Page(ctx, conversationID, before, limit)
		return err
	})
	if err != nil {
		return nil, err
	}

	page := &domain.MessagePage{
		Messages: make([]domain.MessageView, 0, len(msgs)),
		HasMore:  hasMore,
	}
	for _, m := range msgs {
		page.Messages = append(page.Messages, m.View())
	}
	if hasMore && len(msgs) > 0 {
		page.NextCursor = domain.CursorOf(msgs[len(msgs)-1]).Encode()
	}
	return page, nil
}

// MarkRead zeroes the caller's unread count and tells the caller's other
// devices. Idempotent.
func (uc *MessageUseCase) MarkRead(ctx context.Context, conversationID, userID string) error {
	err := uc.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := uc.convRepo.FindByID(ctx, conversationID); err != nil {
			return err
		}
		if _, err := requireParticipant(ctx, uc.partRepo, conversationID, userID); err != nil {
			return err
		}
		return uc.partRepo.MarkRead(ctx, conversationID, userID, uc.now())
	})
	if err != nil {
		return err
	}

	uc.notify.Notify(ctx, []string{userID}, domain.EventUnreadCountUpdated, domain.UnreadCountUpdated{
		ConversationID: conversationID,
		UnreadCount:    0,
	})
	return nil
}

// Retract soft deletes a message of the caller. The message keeps its
// position in history as a tombstone.
func (uc *MessageUseCase) Retract(ctx context.Context, conversationID, messageID, userID string) error {
	var (
		changed      bool
		participants []string
	)
	err := uc.tx.RunInTx(ctx, func(ctx context.Context) error {
		msg, err := uc.msgRepo.FindByID(ctx, messageID)
		if err != nil {
			return err
		}
		if msg.ConversationID != conversationID {
			return errprocess.New(errprocess.NotFound, "message not found")
		}
		if _, err := requireParticipant(ctx, uc.partRepo, conversationID, userID); err != nil {
			return err
		}
		if msg.SenderID != userID {
			return errprocess.New(errprocess.Forbidden, "only the sender can retract a message")
		}

		if changed, err = uc.msgRepo.SoftDelete(ctx, messageID); err != nil || !changed {
			return err
		}
		if err := uc.partRepo.DecrementUnreadFor(ctx, conversationID, userID, msg.CreatedAt); err != nil {
			return err
		}

		ps, err := uc.partRepo.ListByConversation(ctx, conversationID)
		if err != nil {
			return err
		}
		for _, p := range ps {
			participants = append(participants, p.UserID)
		}
		return nil
	})
	if err != nil || !changed {
		return err
	}

	uc.notify.Notify(ctx, participants, domain.EventMessageDeleted, domain.MessageDeleted{
		ConversationID: conversationID,
		MessageID:      messageID,
	})
	return nil
}
