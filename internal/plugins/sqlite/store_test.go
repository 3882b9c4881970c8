package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novahub/internal/core/domain"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "hub.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seed(t *testing.T, store *Store) {
	t.Helper()
	ctx := context.Background()
	for _, id := range []string{"A", "B", "D"} {
		require.NoError(t, store.CreateUser(ctx, id, "user-"+id))
	}
	require.NoError(t, store.CreateChat(ctx, "C1", "general", "A", "B", "D"))
	require.NoError(t, store.CreateChat(ctx, "C2", "pair", "A", "B"))
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(context.Background(), " ")
	assert.Error(t, err)
}

func TestOpenInMemory(t *testing.T) {
	store, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	defer store.Close()

	seed(t, store)
	chats, err := store.FindChatsForUser(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"C1", "C2"}, chats)
}

func TestReopenSkipsAppliedMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hub.db")
	store, err := Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, store.CreateUser(context.Background(), "A", "ann"))
	require.NoError(t, store.Close())

	store, err = Open(context.Background(), path)
	require.NoError(t, err)
	defer store.Close()
	_, err = store.LastSeen(context.Background(), "A")
	assert.NoError(t, err)
}

func TestMembershipQueries(t *testing.T) {
	store := openTempStore(t)
	seed(t, store)
	ctx := context.Background()

	members, err := store.FindChatMembers(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "D"}, members)

	chats, err := store.FindChatsForUser(ctx, "D")
	require.NoError(t, err)
	assert.Equal(t, []string{"C1"}, chats)

	ok, err := store.IsMember(ctx, "C2", "B")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.IsMember(ctx, "C2", "D")
	require.NoError(t, err)
	assert.False(t, ok)

	empty, err := store.FindChatMembers(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestInvalidIdentifiers(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	_, err := store.FindChatsForUser(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidUserID)
	_, err = store.FindChatMembers(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidChatID)
	_, err = store.IsMember(ctx, "", "A")
	assert.ErrorIs(t, err, domain.ErrInvalidChatID)
	assert.ErrorIs(t, store.UpsertReadReceipt(ctx, "", "A", time.Now()), domain.ErrInvalidMessageID)
	assert.ErrorIs(t, store.UpdateLastSeen(ctx, "", time.Now()), domain.ErrInvalidUserID)
}

func TestUpsertReadReceiptIsIdempotent(t *testing.T) {
	store := openTempStore(t)
	seed(t, store)
	ctx := context.Background()
	first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	later := first.Add(90 * time.Second)

	require.NoError(t, store.UpsertReadReceipt(ctx, "M1", "A", first))
	require.NoError(t, store.UpsertReadReceipt(ctx, "M1", "A", later))

	got, err := store.GetReadReceipt(ctx, "M1", "A")
	require.NoError(t, err)
	assert.Equal(t, domain.ReceiptRead, got.Status)
	assert.Equal(t, later, got.UpdatedAt)

	var rows int
	require.NoError(t, store.sqlDB.QueryRow(`SELECT COUNT(*) FROM message_receipts`).Scan(&rows))
	assert.Equal(t, 1, rows)

	_, err = store.GetReadReceipt(ctx, "M1", "B")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestUpsertReadReceiptUnknownUser(t *testing.T) {
	store := openTempStore(t)
	err := store.UpsertReadReceipt(context.Background(), "M1", "ghost", time.Now())
	assert.ErrorIs(t, err, ErrUnknownReference)
}

func TestUpdateLastSeen(t *testing.T) {
	store := openTempStore(t)
	seed(t, store)
	ctx := context.Background()

	zero, err := store.LastSeen(ctx, "A")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	at := time.Date(2026, 3, 1, 12, 30, 0, 123_000_000, time.UTC)
	require.NoError(t, store.UpdateLastSeen(ctx, "A", at))
	got, err := store.LastSeen(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, at, got)

	assert.ErrorIs(t, store.UpdateLastSeen(ctx, "ghost", at), domain.ErrUserNotFound)
}

func TestAddMember(t *testing.T) {
	store := openTempStore(t)
	seed(t, store)
	ctx := context.Background()

	require.NoError(t, store.AddMember(ctx, "C2", "D"))
	require.NoError(t, store.AddMember(ctx, "C2", "D"))
	members, err := store.FindChatMembers(ctx, "C2")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "D"}, members)

	assert.ErrorIs(t, store.AddMember(ctx, "C2", "ghost"), ErrUnknownReference)
	assert.ErrorIs(t, store.AddMember(ctx, "nochat", "A"), ErrUnknownReference)
}
