package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"novahub/internal/core/contracts"
	"novahub/internal/core/domain"
	"novahub/pkg/logging"
)

// SignalService handles the ephemeral client signals: typing indicators,
// read receipts and status announcements.
type SignalService struct {
	log         *slog.Logger
	store       domain.ChatStore
	cache       contracts.MembershipCache
	presence    contracts.PresenceStore // nil when redis is not configured
	broadcaster *Broadcaster
	statusTTL   time.Duration
	now         func() time.Time
}

func NewSignalService(
	log *slog.Logger,
	store domain.ChatStore,
	cache contracts.MembershipCache,
	presence contracts.PresenceStore,
	broadcaster *Broadcaster,
	statusTTL time.Duration,
) *SignalService {
	return &SignalService{
		log:         log,
		store:       store,
		cache:       cache,
		presence:    presence,
		broadcaster: broadcaster,
		statusTTL:   statusTTL,
		now:         time.Now,
	}
}

// HandleTyping relays typing_start or typing_stop to the chat. The sender's
// cached membership gates the relay; a miss returns domain.ErrNotChatMember.
func (s *SignalService) HandleTyping(ctx context.Context, userID, kind, chatID string) error {
	ctx, span := tracer.Start(ctx, "SignalService.HandleTyping", trace.WithAttributes(
		attribute.String("user_id", userID),
		attribute.String("chat_id", chatID),
		attribute.String("event_type", kind),
	))
	defer span.End()

	if !s.cache.Has(userID, chatID) {
		span.SetStatus(codes.Error, "not a member")
		return domain.ErrNotChatMember
	}
	_, err := s.broadcaster.BroadcastToChat(ctx, chatID, domain.TypingEvent{
		Type:      kind,
		UserID:    userID,
		ChatID:    chatID,
		Timestamp: domain.FormatTimestamp(s.now()),
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("broadcast typing: %w", err)
	}
	return nil
}

// HandleMessageRead records a READ receipt and tells the chat about it.
// Membership is checked against the store, not the cache.
func (s *SignalService) HandleMessageRead(ctx context.Context, userID, messageID, chatID string) error {
	ctx, span := tracer.Start(ctx, "SignalService.HandleMessageRead", trace.WithAttributes(
		attribute.String("user_id", userID),
		attribute.String("chat_id", chatID),
		attribute.String("message_id", messageID),
	))
	defer span.End()

	ok, err := s.store.IsMember(ctx, chatID, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "membership check failed")
		return fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		span.SetStatus(codes.Error, "not a member")
		return domain.ErrNotChatMember
	}
	now := s.now()
	if err := s.store.UpsertReadReceipt(ctx, messageID, userID, now); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upsert receipt failed")
		return fmt.Errorf("upsert read receipt: %w", err)
	}
	delivered, err := s.broadcaster.BroadcastToChat(ctx, chatID, domain.MessageReadEvent{
		Type:      domain.TypeMessageRead,
		MessageID: messageID,
		UserID:    userID,
		ChatID:    chatID,
		Timestamp: domain.FormatTimestamp(now),
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("broadcast read receipt: %w", err)
	}
	s.log.DebugContext(ctx, "signals - message read - receipt recorded",
		logging.User(userID), logging.Chat(chatID), logging.Message(messageID), slog.Int("recipients", delivered))
	return nil
}

// HandleUserStatus persists last-seen, records the status in the presence
// store when one is configured and announces it to every chat in the
// sender's cached membership.
func (s *SignalService) HandleUserStatus(ctx context.Context, userID string, status domain.UserStatus) error {
	ctx, span := tracer.Start(ctx, "SignalService.HandleUserStatus", trace.WithAttributes(
		attribute.String("user_id", userID),
		attribute.String("status", string(status)),
	))
	defer span.End()

	now := s.now()
	if err := s.store.UpdateLastSeen(ctx, userID, now); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update last seen failed")
		return fmt.Errorf("update last seen: %w", err)
	}
	if s.presence != nil {
		if err := s.presence.SetStatus(ctx, userID, status, s.statusTTL); err != nil {
			s.log.WarnContext(ctx, "signals - user status - presence update failed", logging.User(userID), logging.Err(err))
		}
	}

	event := domain.UserStatusEvent{
		Type:      domain.TypeUserStatus,
		UserID:    userID,
		Status:    status,
		Timestamp: domain.FormatTimestamp(now),
	}
	chats := s.cache.Get(userID).Sorted()
	for _, chatID := range chats {
		if _, err := s.broadcaster.BroadcastToChat(ctx, chatID, event); err != nil {
			span.RecordError(err)
			s.log.WarnContext(ctx, "signals - user status - broadcast failed", logging.User(userID), logging.Chat(chatID), logging.Err(err))
		}
	}
	span.SetAttributes(attribute.Int("chats", len(chats)))
	return nil
}
