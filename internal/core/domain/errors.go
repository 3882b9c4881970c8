package domain

import "errors"

var (
	ErrTokenMissing     = errors.New("token missing")
	ErrTokenInvalid     = errors.New("token invalid")
	ErrMalformedEvent   = errors.New("malformed event")
	ErrUnknownStatus    = errors.New("unknown user status")
	ErrNotChatMember    = errors.New("user is not a member of chat")
	ErrClientClosed     = errors.New("client closed")
	ErrSendBufferFull   = errors.New("client send buffer full")
	ErrInvalidUserID    = errors.New("invalid user id")
	ErrInvalidChatID    = errors.New("invalid chat id")
	ErrInvalidMessageID = errors.New("invalid message id")
	ErrUserNotFound     = errors.New("user not found")
)
