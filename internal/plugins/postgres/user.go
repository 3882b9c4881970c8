package postgres

import (
	"context"
	"time"

	"novahub/internal/core/domain"
)

func (s *ChatStore) UpdateLastSeen(ctx context.Context, userID string, at time.Time) error {
	if userID == "" {
		return domain.ErrInvalidUserID
	}
	result, err := s.db.ExecContext(ctx, `UPDATE users SET last_seen_at = $2 WHERE id = $1`, userID, at.UTC())
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
