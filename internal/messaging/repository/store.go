package repository

import (
	"context"
	"errors"

	"school_messaging_service/internal/messaging/domain"
	errprocess "school_messaging_service/pkg/err"

	"gorm.io/gorm"
)

// Transactor runs fn in one store transaction. Repositories called with
// the ctx handed to fn take part in that transaction.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

// Store gorm handle shared by the messaging repositories
type Store struct {
	db *gorm.DB
}

var _ Transactor = (*Store)(nil)

// NewStore create Store
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates / updates conversations, conversation_participants and messages.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(
		&domain.Conversation{},
		&domain.ConversationParticipant{},
		&domain.Message{},
	)
}

// RunInTx joins the transaction already carried by ctx, if any.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
	if err != nil && errprocess.KindOf(err) == errprocess.Internal {
		return errprocess.Wrap(errprocess.TransientStoreFailure, "transaction failed", err)
	}
	return err
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return s.db.WithContext(ctx)
}

// storeErr maps gorm errors onto the error kinds.
func storeErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errprocess.Wrap(errprocess.NotFound, op+": not found", err)
	case errprocess.KindOf(err) != errprocess.Internal:
		return err
	}
	return errprocess.Wrap(errprocess.TransientStoreFailure, op, err)
}
