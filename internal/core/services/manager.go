package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"novahub/internal/core/contracts"
	"novahub/internal/core/domain"
	"novahub/pkg/logging"
)

type IManagerService interface {
	// HandleConnect announces, registers and caches a freshly authenticated client.
	HandleConnect(ctx context.Context, client contracts.Client) error
	// HandleDisconnect releases the client and, if it was still current, the user's state.
	HandleDisconnect(ctx context.Context, client contracts.Client)
	// HandleHeartbeat refreshes the presence marker until ctx is done.
	HandleHeartbeat(ctx context.Context, userID string)
	HandleMessage(ctx context.Context, client contracts.Client, raw []byte)
	Stats() domain.HubStats
	// Shutdown disconnects every live client.
	Shutdown(ctx context.Context)
}

type ManagerService struct {
	log        *slog.Logger
	store      domain.ChatStore
	registry   contracts.Registry
	cache      contracts.MembershipCache
	presence   contracts.PresenceStore // optional
	dispatcher *Dispatcher
	heartbeat  time.Duration
	presTTL    time.Duration
	locks      *userLocks
	now        func() time.Time
}

func NewManagerService(
	log *slog.Logger,
	store domain.ChatStore,
	registry contracts.Registry,
	cache contracts.MembershipCache,
	presence contracts.PresenceStore,
	dispatcher *Dispatcher,
	heartbeat, presTTL time.Duration,
) *ManagerService {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	if presTTL <= heartbeat {
		presTTL = 3 * heartbeat
	}
	return &ManagerService{
		log:        log,
		store:      store,
		registry:   registry,
		cache:      cache,
		presence:   presence,
		dispatcher: dispatcher,
		heartbeat:  heartbeat,
		presTTL:    presTTL,
		locks:      newUserLocks(),
		now:        time.Now,
	}
}

// HandleConnect queues connection_established on the client, registers it
// (evicting any older connection of the same user) and loads the user's
// membership. The client must not be writing yet so that the greeting is
// the first frame on the wire.
func (m *ManagerService) HandleConnect(ctx context.Context, client contracts.Client) error {
	userID := client.UserID()
	ctx, span := tracer.Start(ctx, "ManagerService.HandleConnect", trace.WithAttributes(
		attribute.String("user_id", userID),
		attribute.String("conn_id", client.ID()),
	))
	defer span.End()

	greeting, err := json.Marshal(domain.ConnectionEstablished{
		Type:      domain.TypeConnectionEstablished,
		UserID:    userID,
		Timestamp: domain.FormatTimestamp(m.now()),
	})
	if err != nil {
		span.RecordError(err)
		return err
	}
	if err := client.Send(ctx, greeting); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "greeting failed")
		m.log.ErrorContext(ctx, "manager - handle connect - queue greeting failed", logging.User(userID), logging.Err(err))
		return err
	}

	unlock := m.locks.Lock(userID)
	m.registry.Register(client)
	chats := m.cache.Load(ctx, userID)
	unlock()

	if m.presence != nil {
		if err := m.presence.Touch(ctx, userID, m.presTTL); err != nil {
			m.log.WarnContext(ctx, "manager - handle connect - presence touch failed", logging.User(userID), logging.Err(err))
		}
	}
	span.SetAttributes(attribute.Int("chats", len(chats)))
	span.SetStatus(codes.Ok, "connected")
	m.log.InfoContext(ctx, "manager - handle connect - registered",
		logging.User(userID), logging.Connection(client.ID()), slog.Int("chats", len(chats)))
	return nil
}

// HandleDisconnect runs on every close path. State is only torn down when
// client is still the user's current connection; a superseded connection
// leaves its successor untouched.
func (m *ManagerService) HandleDisconnect(ctx context.Context, client contracts.Client) {
	userID := client.UserID()
	ctx, span := tracer.Start(ctx, "ManagerService.HandleDisconnect", trace.WithAttributes(
		attribute.String("user_id", userID),
		attribute.String("conn_id", client.ID()),
	))
	defer span.End()

	unlock := m.locks.Lock(userID)
	released := m.registry.Release(client)
	if released {
		m.cache.Drop(userID)
	}
	unlock()
	client.Close()

	if !released {
		span.SetAttributes(attribute.Bool("released", false))
		m.log.InfoContext(ctx, "manager - handle disconnect - connection no longer current",
			logging.User(userID), logging.Connection(client.ID()))
		return
	}
	if m.presence != nil {
		if err := m.presence.Clear(ctx, userID); err != nil {
			m.log.WarnContext(ctx, "manager - handle disconnect - presence clear failed", logging.User(userID), logging.Err(err))
		}
	}
	if err := m.store.UpdateLastSeen(ctx, userID, m.now()); err != nil {
		span.RecordError(err)
		m.log.ErrorContext(ctx, "manager - handle disconnect - update last seen failed", logging.User(userID), logging.Err(err))
	}
	m.log.InfoContext(ctx, "manager - handle disconnect - unregistered", logging.User(userID), logging.Connection(client.ID()))
}

func (m *ManagerService) HandleHeartbeat(ctx context.Context, userID string) {
	if m.presence == nil {
		return
	}
	ticker := time.NewTicker(m.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.log.Debug("manager - handle heartbeat - stopped", logging.User(userID))
			return
		case <-ticker.C:
			_, span := tracer.Start(ctx, "Heartbeat.Touch")
			if err := m.presence.Touch(ctx, userID, m.presTTL); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "redis update failed")
				m.log.WarnContext(ctx, "manager - handle heartbeat - touch failed", logging.User(userID), logging.Err(err))
			}
			span.End()
		}
	}
}

func (m *ManagerService) HandleMessage(ctx context.Context, client contracts.Client, raw []byte) {
	m.dispatcher.Dispatch(ctx, client, raw)
}

// IsMember asks the store, not the cache.
func (m *ManagerService) IsMember(ctx context.Context, chatID, userID string) (bool, error) {
	return m.store.IsMember(ctx, chatID, userID)
}

func (m *ManagerService) Stats() domain.HubStats {
	rs := m.registry.Stats()
	return domain.HubStats{
		TotalConnections: rs.Count,
		ConnectedUserIDs: rs.UserIDs,
		TotalChats:       m.cache.ChatCount(),
	}
}

// Shutdown runs the full disconnect path for every live connection: release,
// cache drop, presence clear and last-seen. The sessions' own close paths
// then find nothing left to release.
func (m *ManagerService) Shutdown(ctx context.Context) {
	clients := m.registry.Clients()
	m.log.InfoContext(ctx, "manager - shutdown - closing connections", slog.Int("count", len(clients)))
	for _, c := range clients {
		m.HandleDisconnect(ctx, c)
	}
}

// userLocks serializes registry and cache bookkeeping per user so that a
// closing connection cannot drop the cache entry of its successor.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*userLock)}
}

func (l *userLocks) Lock(userID string) (unlock func()) {
	l.mu.Lock()
	ul, ok := l.locks[userID]
	if !ok {
		ul = &userLock{}
		l.locks[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()
	return func() {
		ul.mu.Unlock()
		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}
