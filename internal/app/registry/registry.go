package registry

import (
	"sort"
	"sync"

	"novahub/internal/core/contracts"
)

type Registry struct {
	mu      sync.RWMutex
	clients map[string]contracts.Client // user_id → client
}

func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]contracts.Client),
	}
}

func (h *Registry) Register(c contracts.Client) {
	h.mu.Lock()
	prev := h.clients[c.UserID()]
	h.clients[c.UserID()] = c
	h.mu.Unlock()
	// last connect wins; the superseded socket must not linger
	if prev != nil && prev != c {
		prev.Close()
	}
}

func (h *Registry) Unregister(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, userID)
}

func (h *Registry) Release(c contracts.Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.clients[c.UserID()]; ok && cur == c {
		delete(h.clients, c.UserID())
		return true
	}
	return false
}

func (h *Registry) Lookup(userID string) (contracts.Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[userID]
	return c, ok
}

func (h *Registry) Stats() contracts.RegistryStats {
	h.mu.RLock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	h.mu.RUnlock()
	sort.Strings(ids)
	return contracts.RegistryStats{Count: len(ids), UserIDs: ids}
}

// Clients returns the live clients without removing them, so each one can
// still be released through its own close path.
func (h *Registry) Clients() []contracts.Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients := make([]contracts.Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	return clients
}
