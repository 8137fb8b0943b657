// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

package main

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tomtom215/crmrec/internal/config"
	"github.com/tomtom215/crmrec/internal/database"
	"github.com/tomtom215/crmrec/internal/events"
	"github.com/tomtom215/crmrec/internal/recommend"
	"github.com/tomtom215/crmrec/internal/recommend/registry"
	"github.com/tomtom215/crmrec/internal/recommend/storage"
	"github.com/tomtom215/crmrec/internal/supervisor"
	"github.com/tomtom215/crmrec/internal/supervisor/services"
)

// RecommendComponents holds the recommendation stack.
type RecommendComponents struct {
	Engine   *recommend.Engine
	Registry *registry.Registry
	Service  *services.RecommendService
}

// Close releases the engine and the registry index.
func (c *RecommendComponents) Close() error {
	c.Engine.Close()
	return c.Registry.Close()
}

// initRecommend opens the model registry and builds the engine. The
// retraining service joins the tree only when recommend.enabled is set;
// recommenders lazy-train on first use either way.
//
//nolint:gocritic // hugeParam: logger passed by value for zerolog chaining
func initRecommend(cfg *config.Config, db *database.DB, bus *events.Bus, tree *supervisor.SupervisorTree, logger zerolog.Logger) (*RecommendComponents, error) {
	store, err := storage.NewStore(cfg.Registry.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("open model store: %w", err)
	}
	reg, err := registry.Open(cfg.Registry.IndexPath, store)
	if err != nil {
		return nil, fmt.Errorf("open model registry: %w", err)
	}

	engine, err := recommend.NewEngine(db, db, reg, recommend.OptionsFromConfig(&cfg.Recommend, &cfg.Registry))
	if err != nil {
		_ = reg.Close()
		return nil, fmt.Errorf("create recommend engine: %w", err)
	}

	logger.Info().
		Strs("strategies", engine.Strategies()).
		Str("model_path", cfg.Registry.ModelPath).
		Msg("Recommendation engine initialized")

	c := &RecommendComponents{Engine: engine, Registry: reg}
	if !cfg.Recommend.Enabled {
		logger.Info().Msg("Retraining service disabled (RECOMMEND_ENABLED=false)")
		return c, nil
	}

	c.Service = services.NewRecommendService(engine, bus, services.RecommendServiceConfig{
		TrainOnStartup: cfg.Recommend.TrainOnStartup,
		TrainInterval:  cfg.Recommend.TrainInterval,
	}, logger)
	tree.AddRecommendService(c.Service)
	logger.Info().
		Dur("train_interval", cfg.Recommend.TrainInterval).
		Bool("train_on_startup", cfg.Recommend.TrainOnStartup).
		Msg("Retraining service added to supervisor tree")
	return c, nil
}
