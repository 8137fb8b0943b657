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

// DefaultComponents is the requested number of latent factors.
const DefaultComponents = 50

// CollaborativeModel is the cf_svd artifact.
type CollaborativeModel struct {
	UserIDs     []int64
	ItemIDs     []int64
	UserIndex   map[int64]int
	ItemIndex   map[int64]int
	UserFactors [][]float64 // m×k, R·Vₖ
	ItemFactors [][]float64 // n×k, Vₖ
	Singular    []float64
}

// ratingMatrix is a dense user×item pivot of ratings with 0 for missing.
type ratingMatrix struct {
	userIDs   []int64
	itemIDs   []int64
	userIndex map[int64]int
	itemIndex map[int64]int
	values    [][]float64
}

// buildRatingMatrix indexes users and items in first-seen order of the
// ratings sorted by (user, item).
func buildRatingMatrix(ratings []models.Rating) *ratingMatrix {
	sorted := append([]models.Rating(nil), ratings...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].UserID != sorted[j].UserID {
			return sorted[i].UserID < sorted[j].UserID
		}
		return sorted[i].ItemID < sorted[j].ItemID
	})

	rm := &ratingMatrix{
		userIndex: make(map[int64]int),
		itemIndex: make(map[int64]int),
	}
	for _, r := range sorted {
		if _, ok := rm.userIndex[r.UserID]; !ok {
			rm.userIndex[r.UserID] = len(rm.userIDs)
			rm.userIDs = append(rm.userIDs, r.UserID)
		}
		if _, ok := rm.itemIndex[r.ItemID]; !ok {
			rm.itemIndex[r.ItemID] = len(rm.itemIDs)
			rm.itemIDs = append(rm.itemIDs, r.ItemID)
		}
	}

	rm.values = make([][]float64, len(rm.userIDs))
	for i := range rm.values {
		rm.values[i] = make([]float64, len(rm.itemIDs))
	}
	for _, r := range sorted {
		rm.values[rm.userIndex[r.UserID]][rm.itemIndex[r.ItemID]] = r.Rating
	}
	return rm
}

// componentCount returns min(requested, min(m,n)-1), never below 1.
func componentCount(requested, m, n int) int {
	if requested <= 0 {
		requested = DefaultComponents
	}
	k := m
	if n < k {
		k = n
	}
	k--
	if requested < k {
		k = requested
	}
	if k < 1 {
		k = 1
	}
	return k
}

// TrainCollaborative factorises the rating matrix. Zero ratings yields a
// nil model and a nil error.
func TrainCollaborative(ctx context.Context, ratings []models.Rating, components int) (*CollaborativeModel, error) {
	if len(ratings) == 0 {
		return nil, nil
	}

	rm := buildRatingMatrix(ratings)
	m, n := len(rm.userIDs), len(rm.itemIDs)
	k := componentCount(components, m, n)

	if ContextCancelled(ctx) {
		return nil, ctx.Err()
	}
	svd, err := TruncatedSVD(rm.values, k)
	if err != nil {
		return nil, err
	}

	userFactors := make([][]float64, m)
	for u := 0; u < m; u++ {
		userFactors[u] = make([]float64, k)
		for c := 0; c < k; c++ {
			var s float64
			for i := 0; i < n; i++ {
				s += rm.values[u][i] * svd.V[i][c]
			}
			userFactors[u][c] = s
		}
	}

	return &CollaborativeModel{
		UserIDs:     rm.userIDs,
		ItemIDs:     rm.itemIDs,
		UserIndex:   rm.userIndex,
		ItemIndex:   rm.itemIndex,
		UserFactors: userFactors,
		ItemFactors: svd.V,
		Singular:    svd.Singular,
	}, nil
}

// Shape returns (users, items).
func (m *CollaborativeModel) Shape() (rows, cols int) {
	return len(m.UserIDs), len(m.ItemIDs)
}

// HasUser reports whether userID was in the training data.
func (m *CollaborativeModel) HasUser(userID int64) bool {
	_, ok := m.UserIndex[userID]
	return ok
}

// Recommend scores every item for a known user by factor dot product.
// Items in exclude are skipped. An unknown user yields nil.
func (m *CollaborativeModel) Recommend(userID int64, k int, exclude map[int64]bool) []Scored {
	u, ok := m.UserIndex[userID]
	if !ok {
		return nil
	}
	uf := m.UserFactors[u]

	scores := make([]Scored, 0, len(m.ItemIDs))
	for i, id := range m.ItemIDs {
		if exclude[id] {
			continue
		}
		scores = append(scores, Scored{ItemID: id, Score: dot(uf, m.ItemFactors[i])})
	}
	return rankTopK(scores, k)
}
