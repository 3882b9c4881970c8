package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"novahub/internal/app/registry"
	"novahub/internal/app/server"
	"novahub/internal/config"
	"novahub/internal/core/contracts"
	"novahub/internal/core/domain"
	"novahub/internal/core/services"
	"novahub/internal/platform/logger"
	"novahub/internal/platform/telemetry"
	"novahub/internal/plugins/postgres"
	redisPlugin "novahub/internal/plugins/redis"
	"novahub/internal/plugins/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Logger
	log := logger.NewLogger(*cfg)
	log.Info("starting application")

	otelShutdown, err := telemetry.InitTelemetry(ctx, *cfg)
	if err != nil {
		log.Error("failed to initialize telemetry", "err", err)
		otelShutdown = func(context.Context) error { return nil }
	}
	defer func() {
		log.Info("flushing telemetry...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Error("telemetry shutdown failed", "err", err)
		}
	}()

	// Infra
	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		log.Error("store connection failed", slog.String("driver", cfg.Store.Driver), "err", err)
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("store close failed", "err", err)
		}
	}()
	log.Info("store connected", slog.String("driver", cfg.Store.Driver))

	var presence contracts.PresenceStore
	if cfg.Redis.URL != "" {
		var rdb *goredis.Client
		if rdb, err = redisPlugin.NewRedisClient(ctx, cfg.Redis); err != nil {
			log.Error("redis connection failed", "err", err)
			return err
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Error("redis close failed", "err", err)
			}
		}()
		presence = redisPlugin.NewRedisPresenceStore(rdb)
		log.Info("redis connected")
	} else {
		log.Info("redis not configured, presence tracking disabled")
	}

	// Core Services
	hub := registry.NewRegistry()
	cache := registry.NewMembershipCache(log, store)
	tokenSvc := services.NewTokenService(cfg.SecretToken)
	broadcaster := services.NewBroadcaster(log, store, hub, cache)
	signals := services.NewSignalService(log, store, cache, presence, broadcaster, cfg.Presence.TTL)
	dispatcher := services.NewDispatcher(log, signals)
	managerSvc := services.NewManagerService(log, store, hub, cache, presence, dispatcher, cfg.Presence.Heartbeat, cfg.Presence.TTL)

	// Server
	srv := server.NewServer(log, *cfg, tokenSvc, managerSvc, broadcaster)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("server failed", "err", err)
			return err
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Service.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown incomplete", "err", err)
	}
	log.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg config.StoreConfig) (domain.ChatStore, error) {
	switch cfg.Driver {
	case "sqlite":
		store, err := sqlite.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		db, err := postgres.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return postgres.NewChatStore(db), nil
	}
}
