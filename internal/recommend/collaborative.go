// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

package recommend

import (
	"context"
	"fmt"

	"github.com/tomtom215/crmrec/internal/metrics"
	"github.com/tomtom215/crmrec/internal/recommend/registry"
)

// CollaborativeRecommender serves per-user recommendations from the cf_svd
// model. Users the model has never seen get the population's top-rated
// items instead.
type CollaborativeRecommender struct {
	data         DataStore
	reg          *registry.Registry
	trainer      *Trainer
	excludeRated bool
}

// NewCollaborativeRecommender creates the collaborative strategy.
func NewCollaborativeRecommender(data DataStore, reg *registry.Registry, trainer *Trainer, excludeRated bool) *CollaborativeRecommender {
	return &CollaborativeRecommender{data: data, reg: reg, trainer: trainer, excludeRated: excludeRated}
}

// Name implements Recommender.
func (r *CollaborativeRecommender) Name() string { return StrategyCollaborative }

// Recommend ranks items for user subject.ID by the dot product of the
// user's and items' latent factors.
func (r *CollaborativeRecommender) Recommend(ctx context.Context, subject Subject, k int) ([]Recommendation, error) {
	h, err := registry.LoadOrTrain(ctx, r.reg, ModelCollaborative, r.trainer.collaborativeFunc())
	if err != nil {
		return nil, fmt.Errorf("load collaborative model: %w", err)
	}

	if h == nil || !h.Artifact().HasUser(subject.ID) {
		metrics.RecordFallback(StrategyCollaborative, fallbackUnknownUser)
		return topRatedItems(ctx, r.data, k)
	}

	var exclude map[int64]bool
	if r.excludeRated {
		ratings, err := r.data.UserRatings(ctx, subject.ID)
		if err != nil {
			return nil, fmt.Errorf("user ratings: %w", err)
		}
		exclude = ratedSet(ratings)
	}

	return hydrate(ctx, r.data, h.Artifact().Recommend(subject.ID, k, exclude))
}

// ratedSet returns the items with a rating above zero. Zero means unrated.
func ratedSet(ratings map[int64]float64) map[int64]bool {
	out := make(map[int64]bool, len(ratings))
	for id, v := range ratings {
		if v > 0 {
			out[id] = true
		}
	}
	return out
}
