// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

package algorithms

import (
	"context"

	"github.com/tomtom215/crmrec/internal/models"
)

// ContentModel is the content_tfidf artifact: one normalised TF-IDF row per
// item, aligned with ItemIDs.
type ContentModel struct {
	Vectorizer *Vectorizer
	Rows       []SparseVector
	ItemIDs    []int64
	Index      map[int64]int
}

// TrainContent vectorizes each item's content blob. Items whose blob has no
// tokens left after stopword removal are not part of the model. No such
// items yields a nil model and a nil error.
func TrainContent(ctx context.Context, items []models.Item, maxFeatures int) (*ContentModel, error) {
	kept := make([]models.Item, 0, len(items))
	docs := make([]string, 0, len(items))
	for i := range items {
		blob := items[i].ContentBlob()
		if len(Tokenize(blob)) == 0 {
			continue
		}
		kept = append(kept, items[i])
		docs = append(docs, blob)
	}
	if len(kept) == 0 {
		return nil, nil
	}
	items = kept

	vec := FitVectorizer(docs, maxFeatures)

	m := &ContentModel{
		Vectorizer: vec,
		Rows:       make([]SparseVector, len(items)),
		ItemIDs:    make([]int64, len(items)),
		Index:      make(map[int64]int, len(items)),
	}
	for i := range items {
		if ContextCancelled(ctx) {
			return nil, ctx.Err()
		}
		m.Rows[i] = vec.Transform(docs[i])
		m.ItemIDs[i] = items[i].ID
		m.Index[items[i].ID] = i
	}
	return m, nil
}

// Shape returns (items, vocabulary size).
func (m *ContentModel) Shape() (rows, cols int) {
	return len(m.Rows), len(m.Vectorizer.Terms)
}

// SimilarItems ranks every other item by cosine similarity to itemID.
// An unknown item yields nil.
func (m *ContentModel) SimilarItems(itemID int64, k int) []Scored {
	idx, ok := m.Index[itemID]
	if !ok {
		return nil
	}
	query := m.Rows[idx]

	scores := make([]Scored, 0, len(m.Rows))
	for i, row := range m.Rows {
		if m.ItemIDs[i] == itemID {
			continue
		}
		// Rows are unit length, so the dot product is the cosine.
		scores = append(scores, Scored{ItemID: m.ItemIDs[i], Score: query.Dot(row)})
	}
	return rankTopK(scores, k)
}
