package contracts

import (
	"context"

	"novahub/internal/core/domain"
)

// Client represents the minimal interface required for the Registry to
// communicate with an individual WebSocket connection.
type Client interface {
	ID() string
	UserID() string
	// Send enqueues data for delivery without waiting on the network.
	Send(ctx context.Context, data []byte) error
	Close()
}

// RegistryStats is a read-only snapshot of the connection registry.
type RegistryStats struct {
	Count   int
	UserIDs []string
}

// Registry indexes live connections by user. At most one client per user.
type Registry interface {
	// Register stores the client under its user id, closing any client it replaces.
	Register(c Client)
	// Unregister removes whatever client is stored for the user.
	Unregister(userID string)
	// Release removes the entry only if it still points at c.
	Release(c Client) bool
	Lookup(userID string) (Client, bool)
	Stats() RegistryStats
	// Clients snapshots the live clients; the registry keeps its entries.
	Clients() []Client
}

// MembershipCache is the per-user, possibly stale mirror of chat membership.
type MembershipCache interface {
	Load(ctx context.Context, userID string) domain.ChatSet
	Get(userID string) domain.ChatSet
	Has(userID, chatID string) bool
	Drop(userID string)
	// Join adds chatID to an already cached user; uncached users are ignored.
	Join(userID, chatID string) bool
	ChatCount() int
}
