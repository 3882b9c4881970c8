package postgres

import (
	"context"
	"database/sql"

	"novahub/internal/core/domain"
)

func (s *ChatStore) FindChatsForUser(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, domain.ErrInvalidUserID
	}
	return s.queryIDs(ctx, `SELECT chat_id FROM chat_members WHERE user_id = $1 ORDER BY chat_id`, userID)
}

func (s *ChatStore) FindChatMembers(ctx context.Context, chatID string) ([]string, error) {
	if chatID == "" {
		return nil, domain.ErrInvalidChatID
	}
	return s.queryIDs(ctx, `SELECT user_id FROM chat_members WHERE chat_id = $1 ORDER BY user_id`, chatID)
}

func (s *ChatStore) IsMember(ctx context.Context, chatID, userID string) (bool, error) {
	if chatID == "" {
		return false, domain.ErrInvalidChatID
	}
	if userID == "" {
		return false, domain.ErrInvalidUserID
	}
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM chat_members
		WHERE chat_id = $1 AND user_id = $2
	`, chatID, userID).Scan(&one)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *ChatStore) queryIDs(ctx context.Context, query string, arg string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
