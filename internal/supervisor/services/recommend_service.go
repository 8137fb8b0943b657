// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/crmrec/internal/events"
	"github.com/tomtom215/crmrec/internal/recommend"
)

// Trainer runs one training pass. Satisfied by *recommend.Engine.
type Trainer interface {
	Train(ctx context.Context) (*recommend.TrainReport, error)
}

// RetrainSubscriber delivers on-demand retraining requests. Satisfied by
// *events.Bus.
type RetrainSubscriber interface {
	SubscribeRetrain(ctx context.Context) (<-chan *events.RetrainRequested, error)
}

// RecommendServiceConfig holds configuration for the recommend service.
type RecommendServiceConfig struct {
	// TrainOnStartup triggers training when the service starts.
	TrainOnStartup bool

	// TrainInterval is how often to retrain models.
	// Default: 24h
	TrainInterval time.Duration
}

// RecommendService owns the training lifecycle: an optional pass on
// startup, periodic retraining, and passes requested over the event bus.
type RecommendService struct {
	engine     Trainer
	subscriber RetrainSubscriber
	config     RecommendServiceConfig
	logger     zerolog.Logger
	name       string
}

// NewRecommendService creates a recommend service. subscriber may be nil,
// in which case only startup and scheduled training run.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRecommendService(engine Trainer, subscriber RetrainSubscriber, cfg RecommendServiceConfig, logger zerolog.Logger) *RecommendService {
	if cfg.TrainInterval <= 0 {
		cfg.TrainInterval = 24 * time.Hour
	}
	return &RecommendService{
		engine:     engine,
		subscriber: subscriber,
		config:     cfg,
		logger:     logger.With().Str("service", "recommend").Logger(),
		name:       "recommend-service",
	}
}

// Serve implements suture.Service.
func (s *RecommendService) Serve(ctx context.Context) error {
	s.logger.Info().
		Bool("train_on_startup", s.config.TrainOnStartup).
		Dur("train_interval", s.config.TrainInterval).
		Msg("Recommend service starting")

	// A nil channel blocks forever in select.
	var requests <-chan *events.RetrainRequested
	if s.subscriber != nil {
		ch, err := s.subscriber.SubscribeRetrain(ctx)
		if err != nil {
			return fmt.Errorf("subscribe retrain: %w", err)
		}
		requests = ch
	}

	if s.config.TrainOnStartup {
		s.train(ctx, events.SourceScheduler, "")
	}

	ticker := time.NewTicker(s.config.TrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Recommend service shutting down")
			return ctx.Err()

		case <-ticker.C:
			s.train(ctx, events.SourceScheduler, "")

		case req, ok := <-requests:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errors.New("retrain subscription closed")
			}
			s.train(ctx, req.Source, req.EventID)
		}
	}
}

// train runs one pass and logs the outcome. Failures are logged, never
// returned: a bad pass must not restart the service.
func (s *RecommendService) train(ctx context.Context, source, eventID string) {
	log := s.logger.With().Str("source", source).Str("event_id", eventID).Logger()
	log.Info().Msg("Starting model training")

	report, err := s.engine.Train(ctx)
	switch {
	case errors.Is(err, recommend.ErrTrainingInProgress):
		log.Info().Msg("Training already in progress, request skipped")
		return
	case err != nil:
		log.Warn().Err(err).Msg("Model training failed")
		return
	}

	level := zerolog.InfoLevel
	if report.Failed() {
		level = zerolog.WarnLevel
	}
	event := log.WithLevel(level)
	for _, m := range report.Models {
		event = event.Str(m.Model, m.Result)
	}
	event.Dur("duration", report.Duration).Msg("Model training complete")
}

// String returns the service name for logging.
func (s *RecommendService) String() string {
	return s.name
}
