package domain

import (
	"sort"
	"time"
)

// ReceiptStatus is the delivery state of a message for one recipient.
type ReceiptStatus string

const (
	ReceiptSent      ReceiptStatus = "SENT"
	ReceiptDelivered ReceiptStatus = "DELIVERED"
	ReceiptRead      ReceiptStatus = "READ"
)

// ReadReceipt is owned by the persistence collaborator; the hub only upserts it.
type ReadReceipt struct {
	MessageID string
	UserID    string
	Status    ReceiptStatus
	UpdatedAt time.Time
}

// UserStatus is the presence value a client may announce.
type UserStatus string

const (
	StatusOnline  UserStatus = "online"
	StatusOffline UserStatus = "offline"
	StatusAway    UserStatus = "away"
)

func ParseUserStatus(s string) (UserStatus, error) {
	switch st := UserStatus(s); st {
	case StatusOnline, StatusOffline, StatusAway:
		return st, nil
	}
	return "", ErrUnknownStatus
}

// ChatSet is a set of chat identifiers.
type ChatSet map[string]struct{}

func NewChatSet(ids ...string) ChatSet {
	s := make(ChatSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s ChatSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s ChatSet) Clone() ChatSet {
	out := make(ChatSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Sorted returns the ids in lexical order.
func (s ChatSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// HubStats is the operational snapshot exposed on /stats.
type HubStats struct {
	TotalConnections int      `json:"totalConnections"`
	ConnectedUserIDs []string `json:"connectedUserIds"`
	TotalChats       int      `json:"totalChats"`
}
