// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

package algorithms

import (
	"context"
	"encoding/gob"
	"math"
	"sort"
)

// Scored is an item ID with its model score.
type Scored struct {
	ItemID int64
	Score  float64
}

// rankTopK sorts scores descending with ties by ascending item ID and
// truncates to k. k <= 0 keeps everything.
func rankTopK(scores []Scored, k int) []Scored {
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].ItemID < scores[j].ItemID
	})
	if k > 0 && len(scores) > k {
		scores = scores[:k]
	}
	return scores
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func norm(a []float64) float64 {
	return math.Sqrt(dot(a, a))
}

// ContextCancelled reports whether ctx is done without blocking.
func ContextCancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

//nolint:gochecknoinits // gob.Register must run before any artifact is decoded
func init() {
	gob.Register(&ContentModel{})
	gob.Register(&CollaborativeModel{})
	gob.Register(&SimilarityModel{})
}
