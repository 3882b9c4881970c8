package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"novahub/internal/app/server/ws"
	"novahub/internal/core/domain"
	"novahub/internal/core/services"
	"novahub/pkg/logging"
	"novahub/pkg/middleware"
)

type WSOptions struct {
	Socket         ws.Options
	SendBuffer     int
	AllowedOrigins []string
}

type WSHandler struct {
	manager  *services.ManagerService
	tokens   middleware.TokenValidator
	upgrader websocket.Upgrader
	opts     WSOptions
	sessions *sync.WaitGroup
}

func NewWSHandler(
	manager *services.ManagerService,
	tokens middleware.TokenValidator,
	opts WSOptions,
	sessions *sync.WaitGroup,
) *WSHandler {
	return &WSHandler{
		manager: manager,
		tokens:  tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
		opts:     opts,
		sessions: sessions,
	}
}

// originChecker allows requests without an Origin header (non-browser
// clients) and those whose origin is listed. "*" allows everything.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		o = strings.ToLower(strings.TrimSpace(o))
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		if o != "" {
			set[o] = struct{}{}
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.ToLower(origin)]
		return ok
	}
}

func (s *WSHandler) Handler(w http.ResponseWriter, r *http.Request) {
	s.sessions.Add(1)
	defer s.sessions.Done()

	log := logging.FromContext(r.Context())
	span := trace.SpanFromContext(r.Context())

	userID, authErr := s.tokens.ValidateToken(r.URL.Query().Get("token"))
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered with an HTTP error.
		log.WarnContext(r.Context(), "ws handler - upgrade - failed", logging.Err(err))
		return
	}
	// The session outlives the request's cancellation but keeps its values.
	ctx := context.WithoutCancel(r.Context())

	if authErr != nil {
		code, reason := ws.CloseTokenInvalid, "token invalid"
		if errors.Is(authErr, domain.ErrTokenMissing) {
			code, reason = ws.CloseTokenMissing, "token missing"
		}
		log.InfoContext(ctx, "ws handler - handshake - rejected", slog.Int("close_code", code), logging.Err(authErr))
		ws.NewWebSocket(ctx, log, conn, s.opts.Socket).CloseWith(code, reason)
		return
	}

	span.SetAttributes(attribute.String("user.id", userID))
	ctx, log = logging.WithAttrs(ctx, logging.User(userID))

	socket := ws.NewWebSocket(ctx, log, conn, s.opts.Socket)
	client := ws.NewClient(ctx, log, socket, userID, s.opts.SendBuffer)
	log = log.With(logging.Connection(client.ID()))

	if err := s.manager.HandleConnect(ctx, client); err != nil {
		log.ErrorContext(ctx, "ws handler - handle connect - failed", logging.Err(err))
		client.CloseWith(websocket.CloseInternalServerErr, "connect failed")
		return
	}
	defer s.manager.HandleDisconnect(ctx, client)
	client.Start()
	log.InfoContext(ctx, "ws handler - ws connection established")

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go s.manager.HandleHeartbeat(hbCtx, userID)

	// Frames are handled one at a time so their effects keep arrival order.
	socket.ReadLoop(func(data []byte) {
		s.dispatch(ctx, client, data)
	})
	log.InfoContext(ctx, "ws handler - ws connection closed")
}

// dispatch turns a handler panic into a closed connection.
func (s *WSHandler) dispatch(ctx context.Context, client *ws.RuntimeClient, data []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.FromContext(ctx).ErrorContext(ctx, "ws handler - dispatch - panic recovered",
				slog.Any("panic", rec), slog.String("stack", string(debug.Stack())))
			client.CloseWith(websocket.CloseInternalServerErr, "internal error")
		}
	}()
	s.manager.HandleMessage(ctx, client, data)
}
