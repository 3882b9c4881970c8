package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"novahub/internal/app/server/handlers"
	"novahub/internal/app/server/ws"
	"novahub/internal/config"
	"novahub/internal/core/services"
	"novahub/pkg/middleware"
)

type Server struct {
	mux           *http.ServeMux
	http          *http.Server
	log           *slog.Logger
	name          string
	manager       *services.ManagerService
	tokenSvc      *services.TokenService
	wsHandler     *handlers.WSHandler
	notifyHandler *handlers.NotifyHandler
	statsHandler  *handlers.StatsHandler
	healthHandler *handlers.HealthHandler
	sessions      sync.WaitGroup
}

func NewServer(
	log *slog.Logger,
	cfg config.Config,
	tokenSvc *services.TokenService,
	managerSvc *services.ManagerService,
	broadcaster *services.Broadcaster,
) *Server {
	s := &Server{
		mux:      http.NewServeMux(),
		log:      log,
		name:     cfg.Service.Name,
		manager:  managerSvc,
		tokenSvc: tokenSvc,
	}
	s.wsHandler = handlers.NewWSHandler(managerSvc, tokenSvc, handlers.WSOptions{
		Socket: ws.Options{
			ReadLimit:    cfg.WS.ReadLimit,
			WriteWait:    cfg.WS.WriteWait,
			PongWait:     cfg.WS.PongWait,
			PingInterval: cfg.WS.PingInterval,
		},
		SendBuffer:     cfg.WS.SendBuffer,
		AllowedOrigins: cfg.WS.AllowedOrigins,
	}, &s.sessions)
	s.notifyHandler = handlers.NewNotifyHandler(managerSvc, broadcaster)
	s.statsHandler = handlers.NewStatsHandler(managerSvc)
	s.healthHandler = handlers.NewHealthHandler(cfg.Service.Name)

	s.routes()
	s.http = &http.Server{
		Addr:              cfg.Service.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		ErrorLog:          slog.NewLogLogger(log.Handler(), slog.LevelWarn),
	}
	return s
}

func (s *Server) routes() {
	auth := middleware.AuthMiddleware(s.tokenSvc)

	// Public routes. /ws authenticates through its query token so it can
	// answer with websocket close codes.
	s.mux.HandleFunc("GET /health", s.healthHandler.Health)
	s.mux.HandleFunc("GET /ws", s.wsHandler.Handler)

	// Protected routes
	s.mux.Handle("GET /stats", auth(http.HandlerFunc(s.statsHandler.Stats)))
	s.mux.Handle("POST /notify/messages", auth(http.HandlerFunc(s.notifyHandler.NewMessage)))
	s.mux.Handle("POST /notify/chats", auth(http.HandlerFunc(s.notifyHandler.NewChat)))
	s.mux.Handle("POST /notify/members", auth(http.HandlerFunc(s.notifyHandler.MemberAdded)))
}

// Handler is the full middleware chain in front of the routes.
func (s *Server) Handler() http.Handler {
	return middleware.TracerMiddleware(s.name)(middleware.RequestLogger(s.log)(s.mux))
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("server - start - listening", slog.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, closes every live connection and waits
// for the sessions to run their close path, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	s.manager.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("server - shutdown - all sessions closed")
	case <-ctx.Done():
		s.log.Warn("server - shutdown - sessions still open at deadline")
		err = errors.Join(err, ctx.Err())
	}
	return err
}
