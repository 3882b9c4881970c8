package registry

import (
	"context"
	"log/slog"
	"sync"

	"novahub/internal/core/domain"
	"novahub/pkg/logging"
)

// ChatLister is the slice of the persistence collaborator the cache needs.
type ChatLister interface {
	FindChatsForUser(ctx context.Context, userID string) ([]string, error)
}

// MembershipCache mirrors chat membership for connected users only. Entries are
// loaded on connect and dropped on disconnect; they are never refreshed in
// between except through Join.
type MembershipCache struct {
	mu      sync.RWMutex
	entries map[string]domain.ChatSet // user_id → chats
	store   ChatLister
	log     *slog.Logger
}

func NewMembershipCache(log *slog.Logger, store ChatLister) *MembershipCache {
	return &MembershipCache{
		entries: make(map[string]domain.ChatSet),
		store:   store,
		log:     log,
	}
}

// Load replaces the user's entry with a fresh read. A store failure degrades
// to an empty set so the connection stays usable.
func (m *MembershipCache) Load(ctx context.Context, userID string) domain.ChatSet {
	set := domain.NewChatSet()
	ids, err := m.store.FindChatsForUser(ctx, userID)
	if err != nil {
		m.log.WarnContext(ctx, "membership - load - find chats failed, using empty set", logging.User(userID), logging.Err(err))
	} else {
		set = domain.NewChatSet(ids...)
		m.log.DebugContext(ctx, "membership - load - success", logging.User(userID), slog.Int("chats", len(set)))
	}
	m.mu.Lock()
	m.entries[userID] = set
	m.mu.Unlock()
	return set.Clone()
}

func (m *MembershipCache) Get(userID string) domain.ChatSet {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if set, ok := m.entries[userID]; ok {
		return set.Clone()
	}
	return domain.NewChatSet()
}

func (m *MembershipCache) Has(userID, chatID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entries[userID].Has(chatID)
}

func (m *MembershipCache) Drop(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, userID)
}

func (m *MembershipCache) Join(userID, chatID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.entries[userID]
	if !ok {
		return false
	}
	set[chatID] = struct{}{}
	return true
}

// ChatCount returns the number of distinct chats across all cached users.
func (m *MembershipCache) ChatCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, set := range m.entries {
		for id := range set {
			seen[id] = struct{}{}
		}
	}
	return len(seen)
}
