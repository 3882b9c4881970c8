package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"novahub/internal/core/contracts"
	"novahub/internal/core/domain"
	"novahub/pkg/logging"
)

// Dispatcher decodes inbound frames and routes them to the signal handlers.
// Frames from one connection are dispatched sequentially by the caller.
type Dispatcher struct {
	log     *slog.Logger
	signals *SignalService
	now     func() time.Time
}

func NewDispatcher(log *slog.Logger, signals *SignalService) *Dispatcher {
	return &Dispatcher{log: log, signals: signals, now: time.Now}
}

// Dispatch handles one raw frame from client. Decode failures are answered
// with an error frame to client only; membership denials are dropped
// silently; store failures are logged.
func (d *Dispatcher) Dispatch(ctx context.Context, client contracts.Client, raw []byte) {
	userID := client.UserID()
	ctx, span := tracer.Start(ctx, "Dispatcher.Dispatch", trace.WithAttributes(
		attribute.String("user_id", userID),
		attribute.Int("payload_size", len(raw)),
	))
	defer span.End()

	var env domain.Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Type == "" {
		d.reject(ctx, client, "invalid message format")
		return
	}
	span.SetAttributes(attribute.String("event_type", env.Type))
	log := d.log.With(logging.User(userID), logging.EventType(env.Type))

	var err error
	switch env.Type {
	case domain.TypeTypingStart, domain.TypeTypingStop:
		var data domain.TypingData
		if err = decodeData(env.Data, &data); err == nil {
			err = requireID(data.ChatID, domain.ErrInvalidChatID)
		}
		if err == nil {
			err = d.signals.HandleTyping(ctx, userID, env.Type, data.ChatID)
		}
	case domain.TypeMessageRead:
		var data domain.MessageReadData
		if err = decodeData(env.Data, &data); err == nil {
			err = errors.Join(
				requireID(data.MessageID, domain.ErrInvalidMessageID),
				requireID(data.ChatID, domain.ErrInvalidChatID),
			)
		}
		if err == nil {
			err = d.signals.HandleMessageRead(ctx, userID, data.MessageID, data.ChatID)
		}
	case domain.TypeUserStatus:
		var data domain.UserStatusData
		var status domain.UserStatus
		if err = decodeData(env.Data, &data); err == nil {
			if status, err = domain.ParseUserStatus(data.Status); err != nil {
				err = fmt.Errorf("%w: %w", domain.ErrMalformedEvent, err)
			}
		}
		if err == nil {
			err = d.signals.HandleUserStatus(ctx, userID, status)
		}
	default:
		log.InfoContext(ctx, "dispatcher - dispatch - unknown event type dropped")
		return
	}

	switch {
	case err == nil:
		log.DebugContext(ctx, "dispatcher - dispatch - handled")
	case errors.Is(err, domain.ErrMalformedEvent):
		log.InfoContext(ctx, "dispatcher - dispatch - malformed payload", logging.Err(err))
		d.reject(ctx, client, rejectReason(err))
	case errors.Is(err, domain.ErrNotChatMember):
		log.DebugContext(ctx, "dispatcher - dispatch - not a member, dropped")
	default:
		span.RecordError(err)
		log.ErrorContext(ctx, "dispatcher - dispatch - handler failed", logging.Err(err))
	}
}

func (d *Dispatcher) reject(ctx context.Context, client contracts.Client, reason string) {
	frame, err := json.Marshal(domain.ErrorMessage{
		Type:      domain.TypeError,
		Error:     reason,
		Timestamp: domain.FormatTimestamp(d.now()),
	})
	if err != nil {
		return
	}
	if err := client.Send(ctx, frame); err != nil {
		d.log.WarnContext(ctx, "dispatcher - reject - send error frame failed",
			logging.User(client.UserID()), logging.Connection(client.ID()), logging.Err(err))
	}
}

// rejectReason maps a malformed-event error to the fixed text sent to the
// client. Decoder details stay in the log.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnknownStatus):
		return "invalid status"
	case errors.Is(err, domain.ErrInvalidMessageID):
		return "messageId is required"
	case errors.Is(err, domain.ErrInvalidChatID):
		return "chatId is required"
	}
	return "invalid message format"
}

func decodeData(raw json.RawMessage, v any) error {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return fmt.Errorf("%w: missing data", domain.ErrMalformedEvent)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
	}
	return nil
}

func requireID(id string, kind error) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: %w", domain.ErrMalformedEvent, kind)
	}
	return nil
}
