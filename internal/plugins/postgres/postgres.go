package postgres

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"

	"novahub/internal/config"
	"novahub/internal/core/domain"
)

/*
	Tables are owned by the REST service; the hub reads membership and writes
	receipts and last-seen.

	users            (id TEXT PK, username TEXT, last_seen_at TIMESTAMPTZ, created_at TIMESTAMPTZ)
	chats            (id TEXT PK, name TEXT, created_at TIMESTAMPTZ)
	chat_members     (chat_id TEXT FK chats, user_id TEXT FK users, joined_at TIMESTAMPTZ,
	                  PRIMARY KEY (chat_id, user_id))
	message_receipts (message_id TEXT, user_id TEXT FK users, status TEXT, created_at TIMESTAMPTZ,
	                  updated_at TIMESTAMPTZ, PRIMARY KEY (message_id, user_id))
*/

func New(ctx context.Context, cfg config.StoreConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, err
	}
	// Pool tuning
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	// Health check
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

var _ domain.ChatStore = (*ChatStore)(nil)

// ChatStore implements domain.ChatStore on top of a pgx-backed *sql.DB.
type ChatStore struct {
	db *sql.DB
}

func NewChatStore(db *sql.DB) *ChatStore {
	return &ChatStore{db: db}
}

func (s *ChatStore) Close() error {
	return s.db.Close()
}
