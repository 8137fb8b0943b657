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

// SimilarityModel is the recommender_similarity artifact: item×item cosine
// similarity over the columns of the user×item rating pivot. ItemIDs are
// ascending.
type SimilarityModel struct {
	ItemIDs []int64
	Matrix  [][]float64
}

// TrainItemSimilarity builds the item-item cosine matrix. Zero ratings
// yields a nil model and a nil error.
func TrainItemSimilarity(ctx context.Context, ratings []models.Rating) (*SimilarityModel, error) {
	if len(ratings) == 0 {
		return nil, nil
	}

	rm := buildRatingMatrix(ratings)

	// Pivot columns are ordered by item ID.
	itemIDs := append([]int64(nil), rm.itemIDs...)
	sort.Slice(itemIDs, func(i, j int) bool { return itemIDs[i] < itemIDs[j] })

	n := len(itemIDs)
	cols := make([][]float64, n)
	norms := make([]float64, n)
	for c, id := range itemIDs {
		src := rm.itemIndex[id]
		col := make([]float64, len(rm.userIDs))
		for u := range rm.values {
			col[u] = rm.values[u][src]
		}
		cols[c] = col
		norms[c] = norm(col)
	}

	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		if ContextCancelled(ctx) {
			return nil, ctx.Err()
		}
		for j := i; j < n; j++ {
			var s float64
			if norms[i] > 0 && norms[j] > 0 {
				s = dot(cols[i], cols[j]) / (norms[i] * norms[j])
			}
			matrix[i][j], matrix[j][i] = s, s
		}
	}

	return &SimilarityModel{ItemIDs: itemIDs, Matrix: matrix}, nil
}

// Shape returns (items, items).
func (m *SimilarityModel) Shape() (rows, cols int) {
	return len(m.ItemIDs), len(m.ItemIDs)
}

// Score predicts scores for the user's unrated items as similarity ·
// user vector, aligned by item ID. An item counts as rated when its rating
// is above zero; ratings for items outside the model are ignored.
func (m *SimilarityModel) Score(userRatings map[int64]float64, k int) []Scored {
	vec := make([]float64, len(m.ItemIDs))
	for i, id := range m.ItemIDs {
		vec[i] = userRatings[id]
	}

	scores := make([]Scored, 0, len(m.ItemIDs))
	for i, id := range m.ItemIDs {
		if userRatings[id] > 0 {
			continue
		}
		scores = append(scores, Scored{ItemID: id, Score: dot(m.Matrix[i], vec)})
	}
	return rankTopK(scores, k)
}
