// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/crmrec/internal/api"
	"github.com/tomtom215/crmrec/internal/auth"
	"github.com/tomtom215/crmrec/internal/config"
	"github.com/tomtom215/crmrec/internal/database"
	"github.com/tomtom215/crmrec/internal/events"
	"github.com/tomtom215/crmrec/internal/logging"
	"github.com/tomtom215/crmrec/internal/messaging"
	"github.com/tomtom215/crmrec/internal/supervisor"
	"github.com/tomtom215/crmrec/internal/supervisor/services"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Server failed")
	}
}

//nolint:gocyclo // sequential setup steps
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	logger := logging.WithComponent("main")

	logger.Info().
		Str("db_path", cfg.Database.Path).
		Str("model_path", cfg.Registry.ModelPath).
		Str("auth_mode", cfg.Security.AuthMode).
		Msg("Configuration loaded")

	db, err := database.New(&cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error().Err(err).Msg("Error closing database")
		}
	}()

	if cfg.Database.SeedDemoData {
		logger.Info().Msg("Demo data seeding enabled (SEED_DEMO_DATA=true)")
		if err := db.SeedDemoData(context.Background()); err != nil {
			return err
		}
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return err
	}

	bus := events.NewBus()
	tree.AddDataService(services.NewEventBusService(bus, logging.WithComponent("events")))

	rec, err := initRecommend(cfg, db, bus, tree, logging.WithComponent("recommend"))
	if err != nil {
		return err
	}
	defer func() {
		if err := rec.Close(); err != nil {
			logger.Error().Err(err).Msg("Error closing model registry")
		}
	}()

	var jwtManager *auth.JWTManager
	if cfg.Security.AuthMode == auth.ModeJWT {
		if jwtManager, err = auth.NewJWTManager(&cfg.Security); err != nil {
			return err
		}
	}
	authMW, err := auth.NewMiddleware(cfg.Security.AuthMode, jwtManager)
	if err != nil {
		return err
	}

	handler, err := api.NewHandler(api.Deps{
		Store:      db,
		Engine:     rec.Engine,
		Bus:        bus,
		Generator:  messaging.NewGenerator(db),
		Dispatcher: messaging.NewDispatcher(db, cfg.Messaging.SendRate, cfg.Messaging.SendBurst),
	})
	if err != nil {
		return err
	}
	router := api.NewRouter(handler, authMW, api.RouterConfigFromSecurity(&cfg.Security))

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.Handler(),
		ReadTimeout:       cfg.Server.Timeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logger.Info().Str("addr", server.Addr).Msg("HTTP server added to supervisor tree")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().Msg("Starting supervisor tree")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logger.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logger.Info().Msg("Server stopped gracefully")
	return nil
}
