// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

// Package main runs one model training pass against the configured
// database and model registry, prints the report as JSON, and exits.
// It exits non-zero when any model fails to train.
//
// Configuration is shared with the server (DUCKDB_PATH, MODEL_PATH,
// REGISTRY_INDEX_PATH, RECOMMEND_* variables). The server must not hold the
// same DuckDB file or registry index open while this runs.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"

	"github.com/tomtom215/crmrec/internal/config"
	"github.com/tomtom215/crmrec/internal/database"
	"github.com/tomtom215/crmrec/internal/logging"
	"github.com/tomtom215/crmrec/internal/recommend"
	"github.com/tomtom215/crmrec/internal/recommend/registry"
	"github.com/tomtom215/crmrec/internal/recommend/storage"
)

var errModelsFailed = errors.New("one or more models failed to train")

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("Training failed")
		os.Exit(1)
	}
}

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(&cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Database.SeedDemoData {
		if err := db.SeedDemoData(ctx); err != nil {
			return err
		}
	}

	store, err := storage.NewStore(cfg.Registry.ModelPath)
	if err != nil {
		return fmt.Errorf("open model store: %w", err)
	}
	reg, err := registry.Open(cfg.Registry.IndexPath, store)
	if err != nil {
		return fmt.Errorf("open model registry: %w", err)
	}
	defer reg.Close()

	// The fact table is not needed to train.
	engine, err := recommend.NewEngine(db, nil, reg, recommend.OptionsFromConfig(&cfg.Recommend, &cfg.Registry))
	if err != nil {
		return err
	}
	defer engine.Close()

	report, err := engine.Train(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if report.Failed() {
		return errModelsFailed
	}
	logging.Info().Dur("duration", report.Duration).Msg("Training complete")
	return nil
}
