// Kiroku - Anime Journal Engagement and Recommendation Engine
// Copyright 2026 Rin S. (rin-sakamoto)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kiroku-project/kiroku

// Command server runs the engagement and recommendation service.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/kiroku-project/kiroku/internal/api"
	"github.com/kiroku-project/kiroku/internal/auth"
	"github.com/kiroku-project/kiroku/internal/cache"
	"github.com/kiroku-project/kiroku/internal/config"
	"github.com/kiroku-project/kiroku/internal/database"
	"github.com/kiroku-project/kiroku/internal/engagement"
	"github.com/kiroku-project/kiroku/internal/events"
	"github.com/kiroku-project/kiroku/internal/logging"
	"github.com/kiroku-project/kiroku/internal/recommend"
	"github.com/kiroku-project/kiroku/internal/supervisor"
	"github.com/kiroku-project/kiroku/internal/supervisor/services"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Caller: cfg.Log.Caller,
	})
	logger := logging.Logger()

	logger.Info().
		Str("addr", cfg.Server.Addr()).
		Str("database", cfg.Database.Path).
		Msg("starting kiroku engagement service")

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error().Err(err).Msg("database close failed")
		}
	}()

	recCache := cache.New(cfg.Cache.DefaultTTL)

	engine, err := recommend.NewEngine(&cfg.Recommend, db, recCache, cfg.Cache.TTLs(), logger)
	if err != nil {
		return fmt.Errorf("build recommendation engine: %w", err)
	}

	bus, err := events.NewBus(logger)
	if err != nil {
		return fmt.Errorf("build event bus: %w", err)
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logger.Error().Err(err).Msg("event bus close failed")
		}
	}()

	svc := engagement.NewService(db, engine, bus, logger)

	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		// Without a configured secret the service still runs, but issued
		// tokens die with the process. Fine for local development, loud
		// enough to catch in production.
		jwtSecret = randomSecret()
		logger.Warn().Msg("KIROKU_AUTH_JWT_SECRET not set, using an ephemeral secret")
	}
	jwtManager, err := auth.NewJWTManager(jwtSecret)
	if err != nil {
		return fmt.Errorf("build jwt manager: %w", err)
	}

	handlers := api.NewHandlers(svc, engine, db, logger)
	router := api.NewRouter(cfg, handlers, jwtManager)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddMessagingService(services.NewBusService(bus))
	tree.AddMaintenanceService(services.NewJanitorService(recCache, cfg.Cache.JanitorInterval))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor tree: %w", err)
	}

	if unstopped, reportErr := tree.UnstoppedServiceReport(); reportErr == nil && len(unstopped) > 0 {
		for _, s := range unstopped {
			logger.Warn().Str("service", fmt.Sprint(s.Service)).Msg("service missed shutdown timeout")
		}
	}

	logger.Info().Msg("shutdown complete")
	return nil
}

// randomSecret returns a 64-hex-char HMAC secret.
func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform is broken.
		panic(err)
	}
	return hex.EncodeToString(buf)
}
