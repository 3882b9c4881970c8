package postgres

import (
	"context"
	"time"

	"novahub/internal/core/domain"
)

// UpsertReadReceipt creates the receipt as READ or refreshes an existing one.
func (s *ChatStore) UpsertReadReceipt(ctx context.Context, messageID, userID string, at time.Time) error {
	if messageID == "" {
		return domain.ErrInvalidMessageID
	}
	if userID == "" {
		return domain.ErrInvalidUserID
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO message_receipts (message_id, user_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (message_id, user_id)
		DO UPDATE SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
	`, messageID, userID, string(domain.ReceiptRead), at.UTC())
	return err
}
