package domain

import (
	"encoding/json"
	"time"
)

// Inbound event kinds (client → server).
const (
	TypeTypingStart = "typing_start"
	TypeTypingStop  = "typing_stop"
	TypeMessageRead = "message_read"
	TypeUserStatus  = "user_status"
)

// Outbound-only payload kinds (server → client).
const (
	TypeConnectionEstablished = "connection_established"
	TypeNewMessage            = "new_message"
	TypeNewChat               = "new_chat"
	TypeUserAdded             = "user_added"
	TypeError                 = "error"
)

// TimestampLayout is ISO-8601 in UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Envelope is the frame every client sends.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// TypingData is the payload of typing_start and typing_stop.
type TypingData struct {
	ChatID string `json:"chatId"`
}

type MessageReadData struct {
	MessageID string `json:"messageId"`
	ChatID    string `json:"chatId"`
}

type UserStatusData struct {
	Status string `json:"status"`
}

// ConnectionEstablished is sent once after a successful handshake.
type ConnectionEstablished struct {
	Type      string `json:"type"` // "connection_established"
	UserID    string `json:"userId"`
	Timestamp string `json:"timestamp"`
}

// TypingEvent is broadcast for typing_start and typing_stop.
type TypingEvent struct {
	Type      string `json:"type"`
	UserID    string `json:"userId"`
	ChatID    string `json:"chatId"`
	Timestamp string `json:"timestamp"`
}

type MessageReadEvent struct {
	Type      string `json:"type"` // "message_read"
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
	ChatID    string `json:"chatId"`
	Timestamp string `json:"timestamp"`
}

type UserStatusEvent struct {
	Type      string     `json:"type"` // "user_status"
	UserID    string     `json:"userId"`
	Status    UserStatus `json:"status"`
	Timestamp string     `json:"timestamp"`
}

// DataEvent carries an opaque REST-layer object (new_message, new_chat).
type DataEvent struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

type UserAddedEvent struct {
	Type      string `json:"type"` // "user_added"
	ChatID    string `json:"chatId"`
	UserID    string `json:"userId"`
	AddedBy   string `json:"addedBy"`
	Timestamp string `json:"timestamp"`
}

// ErrorMessage is WS-safe error, sent only to the originating connection.
type ErrorMessage struct {
	Type      string `json:"type"` // "error"
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}
