// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

package recommend

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/crmrec/internal/logging"
	"github.com/tomtom215/crmrec/internal/metrics"
	"github.com/tomtom215/crmrec/internal/recommend/algorithms"
	"github.com/tomtom215/crmrec/internal/recommend/registry"
)

// Fallback reasons, recorded in metrics.
const (
	fallbackNoRatings   = "no_ratings"
	fallbackColdUser    = "cold_user"
	fallbackNoModel     = "no_model"
	fallbackEmptyScores = "empty_scores"
	fallbackUnknownUser = "unknown_user"
)

// PersonalizedRecommender walks a fallback ladder ending in item-item
// similarity scoring:
//
//	no ratings in the store  -> first N items by ID
//	user has no ratings      -> top N by mean rating
//	no similarity model      -> top N by mean rating
//	otherwise                -> similarity · user vector over unrated items
//	                            (top N by mean rating if that is empty)
//
// The similarity model is never trained on demand; only the retraining
// task publishes it.
type PersonalizedRecommender struct {
	data DataStore
	reg  *registry.Registry
	topN int
}

// NewPersonalizedRecommender creates the personalized strategy. topN is
// used when the caller passes k <= 0.
func NewPersonalizedRecommender(data DataStore, reg *registry.Registry, topN int) *PersonalizedRecommender {
	if topN <= 0 {
		topN = 5
	}
	return &PersonalizedRecommender{data: data, reg: reg, topN: topN}
}

// Name implements Recommender.
func (r *PersonalizedRecommender) Name() string { return StrategyPersonalized }

// Recommend implements Recommender for user subject.ID.
func (r *PersonalizedRecommender) Recommend(ctx context.Context, subject Subject, k int) ([]Recommendation, error) {
	n := k
	if n <= 0 {
		n = r.topN
	}
	log := logging.Ctx(ctx).With().Str("component", "personalized").Int64("user_id", subject.ID).Logger()

	total, err := r.data.CountRatings(ctx)
	if err != nil {
		return nil, fmt.Errorf("count ratings: %w", err)
	}
	if total == 0 {
		metrics.RecordFallback(StrategyPersonalized, fallbackNoRatings)
		items, err := r.data.FirstItems(ctx, n)
		if err != nil {
			return nil, fmt.Errorf("first items: %w", err)
		}
		out := make([]Recommendation, 0, len(items))
		for i := range items {
			item := items[i]
			out = append(out, Recommendation{ID: item.ID, Title: item.Title, Item: &item})
		}
		return out, nil
	}

	ratings, err := r.data.UserRatings(ctx, subject.ID)
	if err != nil {
		return nil, fmt.Errorf("user ratings: %w", err)
	}
	if len(ratings) == 0 {
		return r.topRated(ctx, n, fallbackColdUser)
	}

	h, err := registry.Latest[algorithms.SimilarityModel](ctx, r.reg, ModelSimilarity)
	if errors.Is(err, registry.ErrNotFound) {
		log.Debug().Msg("No similarity model published, using top rated")
		return r.topRated(ctx, n, fallbackNoModel)
	}
	if err != nil {
		return nil, fmt.Errorf("load similarity model: %w", err)
	}

	scored := h.Artifact().Score(ratings, n)
	if len(scored) == 0 {
		return r.topRated(ctx, n, fallbackEmptyScores)
	}
	return hydrate(ctx, r.data, scored)
}

func (r *PersonalizedRecommender) topRated(ctx context.Context, n int, reason string) ([]Recommendation, error) {
	metrics.RecordFallback(StrategyPersonalized, reason)
	return topRatedItems(ctx, r.data, n)
}

// topRatedItems returns the n items with the highest mean rating.
func topRatedItems(ctx context.Context, data DataStore, n int) ([]Recommendation, error) {
	ratings, err := data.ListRatings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	pop, err := algorithms.NewPopularity(ctx, ratings)
	if err != nil {
		return nil, fmt.Errorf("rank by mean rating: %w", err)
	}
	return hydrateIDs(ctx, data, pop.TopK(n))
}
