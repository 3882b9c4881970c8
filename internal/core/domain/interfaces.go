package domain

import (
	"context"
	"time"
)

// ChatStore is the persistence collaborator boundary. Chats, members and
// messages are written by the REST layer; the hub reads membership and
// writes receipts and last-seen timestamps.
type ChatStore interface {
	// FindChatsForUser lists every chat the user is a member of.
	FindChatsForUser(ctx context.Context, userID string) ([]string, error)
	// FindChatMembers lists the user ids of every member of the chat.
	FindChatMembers(ctx context.Context, chatID string) ([]string, error)
	IsMember(ctx context.Context, chatID, userID string) (bool, error)
	// UpsertReadReceipt creates or refreshes the (messageID, userID) receipt as READ at the given time.
	UpsertReadReceipt(ctx context.Context, messageID, userID string, at time.Time) error
	UpdateLastSeen(ctx context.Context, userID string, at time.Time) error
	Close() error
}
