// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

package algorithms

import (
	"context"
	"sort"

	"github.com/tomtom215/crmrec/internal/models"
)

// Popularity ranks items by mean rating. It is the baseline used for
// cold-start users and whenever a model has nothing to offer.
//
//	score(item) = sum(rating) / count(rating)
//
// Ties go to the lower item ID. Zero ratings count toward the mean.
type Popularity struct {
	sorted []int64
}

// NewPopularity computes mean ratings over ratings.
func NewPopularity(ctx context.Context, ratings []models.Rating) (*Popularity, error) {
	sums := make(map[int64]float64)
	counts := make(map[int64]int)
	for i := range ratings {
		if i%1024 == 0 && ContextCancelled(ctx) {
			return nil, ctx.Err()
		}
		sums[ratings[i].ItemID] += ratings[i].Rating
		counts[ratings[i].ItemID]++
	}

	means := make(map[int64]float64, len(sums))
	sorted := make([]int64, 0, len(sums))
	for id, sum := range sums {
		means[id] = sum / float64(counts[id])
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if means[a] != means[b] {
			return means[a] > means[b]
		}
		return a < b
	})
	return &Popularity{sorted: sorted}, nil
}

// TopK returns up to k item IDs, best first.
func (p *Popularity) TopK(k int) []int64 {
	if k <= 0 || len(p.sorted) == 0 {
		return nil
	}
	k = min(k, len(p.sorted))
	out := make([]int64, k)
	copy(out, p.sorted[:k])
	return out
}
