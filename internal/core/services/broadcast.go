package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"novahub/internal/core/contracts"
	"novahub/internal/core/domain"
	"novahub/pkg/logging"
)

var tracer = otel.Tracer("hub-service")

// MemberResolver is the slice of the store the broadcaster reads.
type MemberResolver interface {
	FindChatMembers(ctx context.Context, chatID string) ([]string, error)
}

// Broadcaster fans a payload out to every connected member of a chat.
type Broadcaster struct {
	log      *slog.Logger
	members  MemberResolver
	registry contracts.Registry
	cache    contracts.MembershipCache
	now      func() time.Time
}

func NewBroadcaster(
	log *slog.Logger,
	members MemberResolver,
	registry contracts.Registry,
	cache contracts.MembershipCache,
) *Broadcaster {
	return &Broadcaster{
		log:      log,
		members:  members,
		registry: registry,
		cache:    cache,
		now:      time.Now,
	}
}

// BroadcastToChat resolves the chat's members from the store and delivers
// payload to those currently connected. It returns the number of clients
// that accepted the frame.
func (b *Broadcaster) BroadcastToChat(ctx context.Context, chatID string, payload any) (int, error) {
	ctx, span := tracer.Start(ctx, "Broadcaster.BroadcastToChat", trace.WithAttributes(
		attribute.String("chat_id", chatID),
	))
	defer span.End()

	members, err := b.members.FindChatMembers(ctx, chatID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "find members failed")
		b.log.ErrorContext(ctx, "broadcaster - broadcast - find members failed", logging.Chat(chatID), logging.Err(err))
		return 0, fmt.Errorf("find chat members: %w", err)
	}
	return b.deliver(ctx, span, chatID, members, payload)
}

// BroadcastToMembers delivers payload to the given members without a store read.
func (b *Broadcaster) BroadcastToMembers(ctx context.Context, chatID string, members []string, payload any) (int, error) {
	ctx, span := tracer.Start(ctx, "Broadcaster.BroadcastToMembers", trace.WithAttributes(
		attribute.String("chat_id", chatID),
	))
	defer span.End()
	return b.deliver(ctx, span, chatID, members, payload)
}

func (b *Broadcaster) deliver(ctx context.Context, span trace.Span, chatID string, members []string, payload any) (int, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("marshal payload: %w", err)
	}
	delivered := 0
	for _, userID := range members {
		client, ok := b.registry.Lookup(userID)
		if !ok {
			continue
		}
		if err := client.Send(ctx, data); err != nil {
			// A failed recipient never aborts delivery to the rest.
			b.log.WarnContext(ctx, "broadcaster - deliver - send failed",
				logging.Chat(chatID), logging.User(userID), logging.Connection(client.ID()), logging.Err(err))
			if errors.Is(err, domain.ErrSendBufferFull) {
				client.Close()
			}
			continue
		}
		delivered++
	}
	span.SetAttributes(
		attribute.Int("members", len(members)),
		attribute.Int("delivered", delivered),
	)
	b.log.DebugContext(ctx, "broadcaster - deliver - done",
		logging.Chat(chatID), slog.Int("members", len(members)), slog.Int("delivered", delivered))
	return delivered, nil
}

// BroadcastNewMessage relays a message persisted by the REST layer.
func (b *Broadcaster) BroadcastNewMessage(ctx context.Context, chatID string, message json.RawMessage) (int, error) {
	return b.BroadcastToChat(ctx, chatID, domain.DataEvent{
		Type:      domain.TypeNewMessage,
		Data:      message,
		Timestamp: domain.FormatTimestamp(b.now()),
	})
}

// BroadcastNewChat relays a freshly created chat and adds it to the cached
// membership of every connected member.
func (b *Broadcaster) BroadcastNewChat(ctx context.Context, chatID string, chat json.RawMessage) (int, error) {
	members, err := b.members.FindChatMembers(ctx, chatID)
	if err != nil {
		b.log.ErrorContext(ctx, "broadcaster - new chat - find members failed", logging.Chat(chatID), logging.Err(err))
		return 0, fmt.Errorf("find chat members: %w", err)
	}
	for _, userID := range members {
		b.cache.Join(userID, chatID)
	}
	return b.BroadcastToMembers(ctx, chatID, members, domain.DataEvent{
		Type:      domain.TypeNewChat,
		Data:      chat,
		Timestamp: domain.FormatTimestamp(b.now()),
	})
}

// BroadcastUserAddedToChat tells the chat about a new member. The member's
// cached membership learns about the chat before the frame goes out.
func (b *Broadcaster) BroadcastUserAddedToChat(ctx context.Context, chatID, userID, addedBy string) (int, error) {
	b.cache.Join(userID, chatID)
	return b.BroadcastToChat(ctx, chatID, domain.UserAddedEvent{
		Type:      domain.TypeUserAdded,
		ChatID:    chatID,
		UserID:    userID,
		AddedBy:   addedBy,
		Timestamp: domain.FormatTimestamp(b.now()),
	})
}
