package app

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"school_messaging_service/internal/messaging/domain"
	"school_messaging_service/internal/messaging/repository"
	"school_messaging_service/pkg"
	errprocess "school_messaging_service/pkg/err"
	"school_messaging_service/pkg/logger"

	"go.uber.org/zap"
)

// ConversationUseCase conversation lifecycle and listing
type ConversationUseCase struct {
	tx       repository.Transactor
	convRepo repository.ConversationRepository
	partRepo repository.ParticipantRepository
	msgRepo  repository.MessageRepository
	users    repository.UserDirectory
	notify   *Notifier
	now      func() time.Time
}

// NewConversationUseCase create ConversationUseCase
func NewConversationUseCase(
	tx repository.Transactor,
	convRepo repository.ConversationRepository,
	partRepo repository.ParticipantRepository,
	msgRepo repository.MessageRepository,
	users repository.UserDirectory,
	notify *Notifier,
) *ConversationUseCase {
	return &ConversationUseCase{
		tx:       tx,
		convRepo: convRepo,
		partRepo: partRepo,
		msgRepo:  msgRepo,
		users:    users,
		notify:   notify,
		now:      utcNow,
	}
}

func utcNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// CreateOrGetDirect returns the DIRECT conversation of the pair, creating
// it on first contact. Concurrent callers for the same pair converge on one
// conversation.
func (uc *ConversationUseCase) CreateOrGetDirect(ctx context.Context, requesterID, otherUserID string) (*domain.Conversation, error) {
	if requesterID == "" || otherUserID == "" {
		return nil, errprocess.New(errprocess.InvalidArgument, "user id is required")
	}
	if requesterID == otherUserID {
		return nil, errprocess.New(errprocess.InvalidArgument, "cannot start a conversation with yourself")
	}
	if err := uc.ensureUser(ctx, otherUserID); err != nil {
		return nil, err
	}

	key := domain.DirectKey(requesterID, otherUserID)
	var (
		conv    *domain.Conversation
		created bool
	)
	err := uc.tx.RunInTx(ctx, func(ctx context.Context) error {
		existing, err := uc.convRepo.FindDirectByKey(ctx, key)
		if err == nil {
			conv = existing
			return uc.unarchive(ctx, conv)
		}
		if !errprocess.Is(err, errprocess.NotFound) {
			return err
		}

		c, participants := domain.NewDirectConversation(requesterID, otherUserID, uc.now())
		created, err = uc.convRepo.Create(ctx, c)
		if err != nil {
			return err
		}
		if !created {
			// 同時有人建立了同一組 pair
			if conv, err = uc.convRepo.FindDirectByKey(ctx, key); err != nil {
				return err
			}
			return uc.unarchive(ctx, conv)
		}
		conv = c
		return uc.partRepo.Create(ctx, participants)
	})
	if err != nil {
		return nil, err
	}

	if created {
		logger.Log.Info("direct conversation created", zap.String("conversation_id", conv.ID))
		uc.notify.Notify(ctx, []string{otherUserID}, domain.EventNewConversation, domain.NewConversation{ConversationID: conv.ID})
	}
	return conv, nil
}

func (uc *ConversationUseCase) unarchive(ctx context.Context, c *domain.Conversation) error {
	if !c.IsArchived {
		return nil
	}
	if err := uc.convRepo.SetArchived(ctx, c.ID, false); err != nil {
		return err
	}
	c.IsArchived = false
	return nil
}

func (uc *ConversationUseCase) ensureUser(ctx context.Context, userID string) error {
	ok, err := uc.users.Exists(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return errprocess.Newf(errprocess.NotFound, "user %s not found", userID)
	}
	return nil
}

// CreateGroup creates a named group of the creator and memberIDs.
func (uc *ConversationUseCase) CreateGroup(ctx context.Context, creatorID, name string, memberIDs []string) (*domain.Conversation, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > domain.MaxGroupNameRunes {
		return nil, errprocess.Newf(errprocess.InvalidArgument, "group name must be 1-%d characters", domain.MaxGroupNameRunes)
	}
	if creatorID == "" {
		return nil, errprocess.New(errprocess.InvalidArgument, "creator is required")
	}

	members := pkg.Unique(append([]string{creatorID}, memberIDs...))
	if len(members) < 2 {
		return nil, errprocess.New(errprocess.InvalidArgument, "a group needs at least two participants")
	}
	for _, m := range members[1:] {
		if err := uc.ensureUser(ctx, m); err != nil {
			return nil, err
		}
	}

	conv, participants := domain.NewGroupConversation(name, members, uc.now())
	err := uc.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := uc.convRepo.Create(ctx, conv); err != nil {
			return err
		}
		return uc.partRepo.Create(ctx, participants)
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("group conversation created",
		zap.String("conversation_id", conv.ID), zap.Int("participants", len(members)))
	uc.notify.Notify(ctx, members[1:], domain.EventNewConversation, domain.NewConversation{ConversationID: conv.ID})
	return conv, nil
}

// Leave removes userID from a GROUP, archiving it once fewer than two
// participants remain. Leaving a DIRECT conversation archives it and keeps
// both participant rows.
func (uc *ConversationUseCase) Leave(ctx context.Context, conversationID, userID string) error {
	var (
		archived  bool
		remaining []string
	)
	err := uc.tx.RunInTx(ctx, func(ctx context.Context) error {
		conv, err := uc.convRepo.FindByID(ctx, conversationID)
		if err != nil {
			return err
		}
		if _, err := requireParticipant(ctx, uc.partRepo, conversationID, userID); err != nil {
			return err
		}

		if conv.Type == domain.Group {
			if err := uc.partRepo.Delete(ctx, conversationID, userID); err != nil {
				return err
			}
		}

		ps, err := uc.partRepo.ListByConversation(ctx, conversationID)
		if err != nil {
			return err
		}
		for _, p := range ps {
			if p.UserID != userID {
				remaining = append(remaining, p.UserID)
			}
		}

		if conv.Type == domain.Direct || len(ps) < 2 {
			archived = true
			return uc.convRepo.SetArchived(ctx, conversationID, true)
		}
		return nil
	})
	if err != nil {
		return err
	}

	uc.notify.Notify(ctx, remaining, domain.EventParticipantLeft, domain.ParticipantLeft{
		ConversationID: conversationID,
		UserID:         userID,
		Archived:       archived,
	})
	return nil
}

// requireParticipant turns a missing participant row into Forbidden.
func requireParticipant(ctx context.Context, partRepo repository.ParticipantRepository, conversationID, userID string) (*domain.ConversationParticipant, error) {
	p, err := partRepo.Find(ctx, conversationID, userID)
	if errprocess.Is(err, errprocess.NotFound) {
		return nil, errprocess.New(errprocess.Forbidden, "not a participant of this conversation")
	}
	return p, err
}

// ListForUser non archived conversations of userID, most recent activity
// first, with unread counts and a redacted last message preview.
func (uc *ConversationUseCase) ListForUser(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	var (
		rows   []domain.ConversationWithUnread
		latest map[string]domain.Message
		parts  []domain.ConversationParticipant
	)
	err := uc.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		if rows, err = uc.convRepo.ListForUser(ctx, userID); err != nil {
			return err
		}
		ids := make([]string, 0, len(rows))
		for _, r := range rows {
			ids = append(ids, r.ID)
		}
		if latest, err = uc.msgRepo.LatestByConversations(ctx, ids); err != nil {
			return err
		}
		parts, err = uc.partRepo.ListByConversations(ctx, ids)
		return err
	})
	if err != nil {
		return nil, err
	}

	members := make(map[string][]string, len(rows))
	for _, p := range parts {
		members[p.ConversationID] = append(members[p.ConversationID], p.UserID)
	}

	out := make([]domain.ConversationSummary, 0, len(rows))
	for _, r := range rows {
		s := domain.ConversationSummary{
			ID:             r.ID,
			Type:           r.Type,
			Name:           r.Name,
			ParticipantIDs: members[r.ID],
			UnreadCount:    r.UnreadCount,
			LastMessageAt:  r.LastMessageAt,
			CreatedAt:      r.CreatedAt,
		}
		if m, ok := latest[r.ID]; ok {
			v := m.View()
			s.LastMessage = &v
		}
		out = append(out, s)
	}
	return out, nil
}

// UnreadCounts conversation id -> unread count for userID
func (uc *ConversationUseCase) UnreadCounts(ctx context.Context, userID string) (map[string]int, error) {
	return uc.partRepo.UnreadCounts(ctx, userID)
}
