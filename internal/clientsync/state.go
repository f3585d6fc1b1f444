package clientsync

import (
	"sort"
	"sync"

	"school_messaging_service/internal/messaging/domain"
)

// State local conversation list, ordered like the server orders it:
// last_message_at desc, then id desc.
type State struct {
	mu    sync.RWMutex
	convs []domain.ConversationSummary
}

// NewState empty state
func NewState() *State {
	return &State{}
}

// Replace swaps in a freshly fetched list
func (s *State) Replace(list []domain.ConversationSummary) {
	cp := make([]domain.ConversationSummary, len(list))
	copy(cp, list)
	sortSummaries(cp)

	s.mu.Lock()
	s.convs = cp
	s.mu.Unlock()
}

// ApplyConversationUpdated sets the preview and, for messages from
// someone other than selfID, bumps the unread count. false when the
// conversation is not in the local list.
func (s *State) ApplyConversationUpdated(ev domain.ConversationUpdated, selfID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(ev.ConversationID)
	if i < 0 {
		return false
	}
	c := &s.convs[i]
	last := ev.LastMessage
	c.LastMessage = &last
	if last.CreatedAt.After(c.LastMessageAt) {
		c.LastMessageAt = last.CreatedAt
	}
	if last.SenderID != selfID {
		c.UnreadCount++
	}
	sortSummaries(s.convs)
	return true
}

// SetUnread overwrites one conversation's count; false when unknown
func (s *State) SetUnread(conversationID string, n int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(conversationID)
	if i < 0 {
		return false
	}
	s.convs[i].UnreadCount = n
	return true
}

// ReplaceUnread applies authoritative counts to the conversations it names
func (s *State) ReplaceUnread(counts map[string]int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.convs {
		if n, ok := counts[s.convs[i].ID]; ok {
			s.convs[i].UnreadCount = n
		}
	}
}

// Snapshot copy of the list
func (s *State) Snapshot() []domain.ConversationSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ConversationSummary, len(s.convs))
	copy(out, s.convs)
	return out
}

// TotalUnread sum over all conversations
func (s *State) TotalUnread() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, c := range s.convs {
		total += c.UnreadCount
	}
	return total
}

func (s *State) indexOf(id string) int {
	for i := range s.convs {
		if s.convs[i].ID == id {
			return i
		}
	}
	return -1
}

func sortSummaries(list []domain.ConversationSummary) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].LastMessageAt.Equal(list[j].LastMessageAt) {
			return list[i].LastMessageAt.After(list[j].LastMessageAt)
		}
		return list[i].ID > list[j].ID
	})
}
