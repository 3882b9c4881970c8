package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"novahub/internal/core/domain"
)

// The writes below belong to the REST service in production. They exist so
// local setups and tests can populate the store.

// CreateUser inserts the user if it does not exist yet.
func (s *Store) CreateUser(ctx context.Context, id, username string) error {
	if id == "" {
		return domain.ErrInvalidUserID
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO users (id, username, created_at) VALUES (?, ?, ?) ON CONFLICT (id) DO NOTHING`,
		id, username, toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// CreateChat inserts the chat and its initial members.
func (s *Store) CreateChat(ctx context.Context, id, name string, members ...string) error {
	if id == "" {
		return domain.ErrInvalidChatID
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create chat: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := toMillis(time.Now())
	if _, err := tx.ExecContext(ctx, `INSERT INTO chats (id, name, created_at) VALUES (?, ?, ?)`, id, name, now); err != nil {
		return fmt.Errorf("create chat: %w", err)
	}
	for _, userID := range members {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chat_members (chat_id, user_id, joined_at) VALUES (?, ?, ?)`, id, userID, now,
		); err != nil {
			return mapConstraint(fmt.Errorf("add member %s: %w", userID, err))
		}
	}
	return tx.Commit()
}

// AddMember adds userID to chatID; adding an existing member is a no-op.
func (s *Store) AddMember(ctx context.Context, chatID, userID string) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO chat_members (chat_id, user_id, joined_at) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`,
		chatID, userID, toMillis(time.Now()),
	)
	if err != nil {
		return mapConstraint(fmt.Errorf("add member: %w", err))
	}
	return nil
}

// GetReadReceipt returns the stored receipt or sql.ErrNoRows.
func (s *Store) GetReadReceipt(ctx context.Context, messageID, userID string) (domain.ReadReceipt, error) {
	var (
		status    string
		updatedAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT status, updated_at FROM message_receipts WHERE message_id = ? AND user_id = ?`, messageID, userID,
	).Scan(&status, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ReadReceipt{}, err
		}
		return domain.ReadReceipt{}, fmt.Errorf("get read receipt: %w", err)
	}
	return domain.ReadReceipt{
		MessageID: messageID,
		UserID:    userID,
		Status:    domain.ReceiptStatus(status),
		UpdatedAt: fromMillis(updatedAt),
	}, nil
}

// LastSeen returns the user's last-seen time, zero if never set.
func (s *Store) LastSeen(ctx context.Context, userID string) (time.Time, error) {
	var ms sql.NullInt64
	err := s.sqlDB.QueryRowContext(ctx, `SELECT last_seen_at FROM users WHERE id = ?`, userID).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, domain.ErrUserNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get last seen: %w", err)
	}
	if !ms.Valid {
		return time.Time{}, nil
	}
	return fromMillis(ms.Int64), nil
}
