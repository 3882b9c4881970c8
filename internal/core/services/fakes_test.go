package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"novahub/internal/app/registry"
	"novahub/internal/core/domain"
)

type fakeStore struct {
	mu        sync.Mutex
	members   map[string][]string // chat_id → user ids
	receipts  map[[2]string]time.Time
	lastSeen  map[string]time.Time
	upserts   int
	failReads error
	failWrite error
}

func newFakeStore(members map[string][]string) *fakeStore {
	return &fakeStore{
		members:  members,
		receipts: make(map[[2]string]time.Time),
		lastSeen: make(map[string]time.Time),
	}
}

func (s *fakeStore) FindChatsForUser(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReads != nil {
		return nil, s.failReads
	}
	var out []string
	for chatID, users := range s.members {
		if slices.Contains(users, userID) {
			out = append(out, chatID)
		}
	}
	return out, nil
}

func (s *fakeStore) FindChatMembers(_ context.Context, chatID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReads != nil {
		return nil, s.failReads
	}
	return slices.Clone(s.members[chatID]), nil
}

func (s *fakeStore) IsMember(_ context.Context, chatID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReads != nil {
		return false, s.failReads
	}
	return slices.Contains(s.members[chatID], userID), nil
}

func (s *fakeStore) UpsertReadReceipt(_ context.Context, messageID, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrite != nil {
		return s.failWrite
	}
	s.receipts[[2]string{messageID, userID}] = at
	s.upserts++
	return nil
}

func (s *fakeStore) UpdateLastSeen(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrite != nil {
		return s.failWrite
	}
	s.lastSeen[userID] = at
	return nil
}

func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) addMember(chatID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[chatID] = append(s.members[chatID], userID)
}

type fakeClient struct {
	id      string
	userID  string
	mu      sync.Mutex
	frames  [][]byte
	sendErr error
	closed  int
}

func newFakeClient(userID string) *fakeClient {
	return &fakeClient{id: userID + "-conn", userID: userID}
}

func (c *fakeClient) ID() string     { return c.id }
func (c *fakeClient) UserID() string { return c.userID }

func (c *fakeClient) Send(_ context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.frames = append(c.frames, data)
	return nil
}

func (c *fakeClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
}

func (c *fakeClient) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// received decodes every frame seen so far.
func (c *fakeClient) received(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.frames))
	for _, f := range c.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(f, &m))
		out = append(out, m)
	}
	return out
}

func (c *fakeClient) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

type fakePresence struct {
	mu       sync.Mutex
	touched  map[string]int
	statuses map[string]domain.UserStatus
	cleared  []string
	err      error
}

func newFakePresence() *fakePresence {
	return &fakePresence{touched: map[string]int{}, statuses: map[string]domain.UserStatus{}}
}

func (p *fakePresence) Touch(_ context.Context, userID string, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.touched[userID]++
	return p.err
}

func (p *fakePresence) SetStatus(_ context.Context, userID string, status domain.UserStatus, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.statuses[userID] = status
	return nil
}

func (p *fakePresence) Clear(_ context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cleared = append(p.cleared, userID)
	return p.err
}

type testHub struct {
	store       *fakeStore
	presence    *fakePresence
	registry    *registry.Registry
	cache       *registry.MembershipCache
	broadcaster *Broadcaster
	signals     *SignalService
	dispatcher  *Dispatcher
	manager     *ManagerService
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHub(members map[string][]string) *testHub {
	log := discardLogger()
	store := newFakeStore(members)
	presence := newFakePresence()
	reg := registry.NewRegistry()
	cache := registry.NewMembershipCache(log, store)

	b := NewBroadcaster(log, store, reg, cache)
	b.now = func() time.Time { return fixedNow }
	sig := NewSignalService(log, store, cache, presence, b, time.Minute)
	sig.now = func() time.Time { return fixedNow }
	d := NewDispatcher(log, sig)
	d.now = func() time.Time { return fixedNow }
	m := NewManagerService(log, store, reg, cache, presence, d, time.Second, 3*time.Second)
	m.now = func() time.Time { return fixedNow }

	return &testHub{
		store:       store,
		presence:    presence,
		registry:    reg,
		cache:       cache,
		broadcaster: b,
		signals:     sig,
		dispatcher:  d,
		manager:     m,
	}
}

// connect runs the connect path and discards the greeting frame.
func (h *testHub) connect(t *testing.T, userID string) *fakeClient {
	t.Helper()
	c := newFakeClient(userID)
	require.NoError(t, h.manager.HandleConnect(context.Background(), c))
	c.reset()
	return c
}

func (h *testHub) send(c *fakeClient, frame string) {
	h.manager.HandleMessage(context.Background(), c, []byte(frame))
}
