// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

package recommend

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/crmrec/internal/logging"
	"github.com/tomtom215/crmrec/internal/metrics"
	"github.com/tomtom215/crmrec/internal/recommend/algorithms"
	"github.com/tomtom215/crmrec/internal/recommend/registry"
)

// Training results recorded in metrics and reports.
const (
	ResultPublished = "published"
	ResultNoData    = "no_data"
	ResultError     = "error"
)

// ModelResult is the outcome of training one model.
type ModelResult struct {
	Model      string `json:"model"`
	Result     string `json:"result"`
	Version    int64  `json:"version,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// TrainReport summarises one training pass.
type TrainReport struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Models    []ModelResult `json:"models"`
}

// Failed reports whether any model failed to train.
func (r *TrainReport) Failed() bool {
	for _, m := range r.Models {
		if m.Result == ResultError {
			return true
		}
	}
	return false
}

// Trainer builds model artifacts from the interaction store and publishes
// them to the registry.
type Trainer struct {
	data   DataStore
	reg    *registry.Registry
	opts   Options
	logger zerolog.Logger
}

// NewTrainer creates a trainer.
func NewTrainer(data DataStore, reg *registry.Registry, opts Options) *Trainer {
	return &Trainer{
		data:   data,
		reg:    reg,
		opts:   opts,
		logger: logging.WithComponent("trainer"),
	}
}

// contentFunc loads every item and fits the TF-IDF model.
func (t *Trainer) contentFunc() registry.TrainFunc[algorithms.ContentModel] {
	return func(ctx context.Context) (*algorithms.ContentModel, registry.Shape, error) {
		items, err := t.data.ListItems(ctx)
		if err != nil {
			return nil, registry.Shape{}, fmt.Errorf("list items: %w", err)
		}
		m, err := algorithms.TrainContent(ctx, items, t.opts.MaxFeatures)
		if err != nil || m == nil {
			return nil, registry.Shape{}, err
		}
		rows, cols := m.Shape()
		return m, registry.Shape{Rows: rows, Cols: cols}, nil
	}
}

// collaborativeFunc loads every rating and factorises the rating matrix.
func (t *Trainer) collaborativeFunc() registry.TrainFunc[algorithms.CollaborativeModel] {
	return func(ctx context.Context) (*algorithms.CollaborativeModel, registry.Shape, error) {
		ratings, err := t.data.ListRatings(ctx)
		if err != nil {
			return nil, registry.Shape{}, fmt.Errorf("list ratings: %w", err)
		}
		m, err := algorithms.TrainCollaborative(ctx, ratings, t.opts.Components)
		if err != nil || m == nil {
			return nil, registry.Shape{}, err
		}
		rows, cols := m.Shape()
		return m, registry.Shape{Rows: rows, Cols: cols}, nil
	}
}

// similarityFunc loads every rating and builds the item-item matrix.
func (t *Trainer) similarityFunc() registry.TrainFunc[algorithms.SimilarityModel] {
	return func(ctx context.Context) (*algorithms.SimilarityModel, registry.Shape, error) {
		ratings, err := t.data.ListRatings(ctx)
		if err != nil {
			return nil, registry.Shape{}, fmt.Errorf("list ratings: %w", err)
		}
		m, err := algorithms.TrainItemSimilarity(ctx, ratings)
		if err != nil || m == nil {
			return nil, registry.Shape{}, err
		}
		rows, cols := m.Shape()
		return m, registry.Shape{Rows: rows, Cols: cols}, nil
	}
}

// trainAndPublish runs fn and publishes its artifact. No data leaves the
// registry untouched.
func trainAndPublish[T any](ctx context.Context, t *Trainer, name string, fn registry.TrainFunc[T]) ModelResult {
	start := time.Now()
	res := ModelResult{Model: name}

	art, shape, err := fn(ctx)
	switch {
	case err != nil:
		res.Result = ResultError
		res.Error = err.Error()
		t.logger.Error().Err(err).Str("model", name).Msg("Model training failed")
	case art == nil:
		res.Result = ResultNoData
		t.logger.Info().Str("model", name).Msg("No training data, keeping current model")
	default:
		h, perr := registry.Publish(ctx, t.reg, name, art, shape)
		if perr != nil {
			res.Result = ResultError
			res.Error = perr.Error()
			t.logger.Error().Err(perr).Str("model", name).Msg("Model publish failed")
			break
		}
		res.Result = ResultPublished
		res.Version = h.Entry().Version
		metrics.SetModelVersion(name, res.Version)
		if n, perr := t.reg.Prune(ctx, name, t.opts.KeepVersions); perr != nil {
			t.logger.Warn().Err(perr).Str("model", name).Msg("Model prune failed")
		} else if n > 0 {
			t.logger.Debug().Str("model", name).Int("pruned", n).Msg("Pruned old model versions")
		}
	}

	d := time.Since(start)
	res.DurationMS = d.Milliseconds()
	metrics.RecordTraining(name, res.Result, d)
	return res
}

// TrainContent trains and publishes content_tfidf.
func (t *Trainer) TrainContent(ctx context.Context) ModelResult {
	return trainAndPublish(ctx, t, ModelContent, t.contentFunc())
}

// TrainCollaborative trains and publishes cf_svd.
func (t *Trainer) TrainCollaborative(ctx context.Context) ModelResult {
	return trainAndPublish(ctx, t, ModelCollaborative, t.collaborativeFunc())
}

// TrainSimilarity trains and publishes recommender_similarity.
func (t *Trainer) TrainSimilarity(ctx context.Context) ModelResult {
	return trainAndPublish(ctx, t, ModelSimilarity, t.similarityFunc())
}

// TrainAll trains every model in turn. A failure in one model is recorded
// in the report and does not stop the others.
func (t *Trainer) TrainAll(ctx context.Context) *TrainReport {
	report := &TrainReport{StartedAt: time.Now()}

	if t.opts.TrainTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.TrainTimeout)
		defer cancel()
	}

	t.logger.Info().Msg("Starting model training")
	report.Models = append(report.Models,
		t.TrainContent(ctx),
		t.TrainCollaborative(ctx),
		t.TrainSimilarity(ctx),
	)
	report.Duration = time.Since(report.StartedAt)

	t.logger.Info().
		Dur("duration", report.Duration).
		Bool("failed", report.Failed()).
		Msg("Model training complete")
	return report
}
