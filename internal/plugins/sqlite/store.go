// Package sqlite provides a SQLite-backed chat store for local development
// and tests.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"novahub/internal/core/domain"
	"novahub/internal/plugins/sqlite/migrations"
)

// ErrUnknownReference is returned when a row points at a missing user or chat.
var ErrUnknownReference = errors.New("unknown user or chat")

var _ domain.ChatStore = (*Store)(nil)

// Store persists chat membership, receipts and last-seen in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the database at path (":memory:" for a private in-memory
// database) and applies the embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		// Every connection would otherwise get its own empty database.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) FindChatsForUser(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, domain.ErrInvalidUserID
	}
	return s.queryIDs(ctx, `SELECT chat_id FROM chat_members WHERE user_id = ? ORDER BY chat_id`, userID)
}

func (s *Store) FindChatMembers(ctx context.Context, chatID string) ([]string, error) {
	if chatID == "" {
		return nil, domain.ErrInvalidChatID
	}
	return s.queryIDs(ctx, `SELECT user_id FROM chat_members WHERE chat_id = ? ORDER BY user_id`, chatID)
}

func (s *Store) IsMember(ctx context.Context, chatID, userID string) (bool, error) {
	if chatID == "" {
		return false, domain.ErrInvalidChatID
	}
	if userID == "" {
		return false, domain.ErrInvalidUserID
	}
	var one int
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT 1 FROM chat_members WHERE chat_id = ? AND user_id = ?`, chatID, userID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query membership: %w", err)
	}
	return true, nil
}

func (s *Store) UpsertReadReceipt(ctx context.Context, messageID, userID string, at time.Time) error {
	if messageID == "" {
		return domain.ErrInvalidMessageID
	}
	if userID == "" {
		return domain.ErrInvalidUserID
	}
	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO message_receipts (message_id, user_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (message_id, user_id)
		DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at`,
		messageID, userID, string(domain.ReceiptRead), toMillis(at), toMillis(at),
	)
	if err != nil {
		return mapConstraint(fmt.Errorf("upsert read receipt: %w", err))
	}
	return nil
}

func (s *Store) UpdateLastSeen(ctx context.Context, userID string, at time.Time) error {
	if userID == "" {
		return domain.ErrInvalidUserID
	}
	res, err := s.sqlDB.ExecContext(ctx, `UPDATE users SET last_seen_at = ? WHERE id = ?`, toMillis(at), userID)
	if err != nil {
		return fmt.Errorf("update last seen: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update last seen: %w", err)
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (s *Store) queryIDs(ctx context.Context, query, arg string) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query ids: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func mapConstraint(err error) error {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY {
		return fmt.Errorf("%w: %w", ErrUnknownReference, err)
	}
	if strings.Contains(strings.ToLower(err.Error()), "foreign key constraint failed") {
		return fmt.Errorf("%w: %w", ErrUnknownReference, err)
	}
	return err
}
