// Package clientsync keeps a client's conversation list and unread counts
// in step with the server: an initial load, relay events applied
// optimistically, and periodic full re-fetches to repair missed events.
package clientsync

import (
	"context"

	"school_messaging_service/internal/messaging/domain"
)

// API the server calls the syncer needs
type API interface {
	CurrentUser(ctx context.Context) (string, error)
	ListConversations(ctx context.Context) ([]domain.ConversationSummary, error)
	UnreadCounts(ctx context.Context) (map[string]int, error)
}
