// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

package recommend

import (
	"context"
	"fmt"

	"github.com/tomtom215/crmrec/internal/recommend/algorithms"
	"github.com/tomtom215/crmrec/internal/recommend/registry"
)

// ContentRecommender serves "more like this item" from the content_tfidf
// model. A missing model is trained on demand.
type ContentRecommender struct {
	data    DataStore
	reg     *registry.Registry
	trainer *Trainer
}

// NewContentRecommender creates the content strategy.
func NewContentRecommender(data DataStore, reg *registry.Registry, trainer *Trainer) *ContentRecommender {
	return &ContentRecommender{data: data, reg: reg, trainer: trainer}
}

// Name implements Recommender.
func (r *ContentRecommender) Name() string { return StrategyContent }

// Recommend returns the k items most similar to subject.ID, excluding the
// item itself. Unknown items and an empty catalogue yield an empty slice.
func (r *ContentRecommender) Recommend(ctx context.Context, subject Subject, k int) ([]Recommendation, error) {
	h, err := registry.LoadOrTrain(ctx, r.reg, ModelContent, r.trainer.contentFunc())
	if err != nil {
		return nil, fmt.Errorf("load content model: %w", err)
	}
	if h == nil {
		return []Recommendation{}, nil
	}

	scored := h.Artifact().SimilarItems(subject.ID, k)
	return hydrate(ctx, r.data, scored)
}

// hydrate replaces scored IDs with canonical items, keeping rank order.
// IDs no longer in the store are dropped.
func hydrate(ctx context.Context, data DataStore, scored []algorithms.Scored) ([]Recommendation, error) {
	out := make([]Recommendation, 0, len(scored))
	if len(scored) == 0 {
		return out, nil
	}

	ids := make([]int64, len(scored))
	for i, s := range scored {
		ids[i] = s.ItemID
	}
	items, err := data.GetItemsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}

	for _, s := range scored {
		it, ok := items[s.ItemID]
		if !ok {
			continue
		}
		item := it
		out = append(out, Recommendation{ID: s.ItemID, Title: item.Title, Score: s.Score, Item: &item})
	}
	return out, nil
}

// hydrateIDs is hydrate for unscored fallback lists.
func hydrateIDs(ctx context.Context, data DataStore, ids []int64) ([]Recommendation, error) {
	scored := make([]algorithms.Scored, len(ids))
	for i, id := range ids {
		scored[i] = algorithms.Scored{ItemID: id}
	}
	return hydrate(ctx, data, scored)
}
