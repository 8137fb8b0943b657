// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

package algorithms

import (
	"math"
	"sort"
)

// DefaultMaxFeatures caps the TF-IDF vocabulary.
const DefaultMaxFeatures = 5000

// SparseVector holds the non-zero entries of a row, indices ascending.
type SparseVector struct {
	Indices []int
	Values  []float64
}

// Dot returns the inner product of two sparse vectors.
func (v SparseVector) Dot(o SparseVector) float64 {
	var s float64
	i, j := 0, 0
	for i < len(v.Indices) && j < len(o.Indices) {
		switch {
		case v.Indices[i] == o.Indices[j]:
			s += v.Values[i] * o.Values[j]
			i++
			j++
		case v.Indices[i] < o.Indices[j]:
			i++
		default:
			j++
		}
	}
	return s
}

// Norm returns the L2 norm.
func (v SparseVector) Norm() float64 {
	return norm(v.Values)
}

// Vectorizer is a fitted TF-IDF vocabulary. Terms are sorted alphabetically
// and Vocabulary maps each term to its column.
type Vectorizer struct {
	Terms      []string
	Vocabulary map[string]int
	IDF        []float64
}

// FitVectorizer learns a vocabulary and smoothed IDF weights from docs.
// When the vocabulary exceeds maxFeatures the most frequent terms by corpus
// count are kept, ties broken alphabetically.
func FitVectorizer(docs []string, maxFeatures int) *Vectorizer {
	if maxFeatures <= 0 {
		maxFeatures = DefaultMaxFeatures
	}

	termCount := make(map[string]int)
	docFreq := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]struct{})
		for _, tok := range Tokenize(doc) {
			termCount[tok]++
			if _, ok := seen[tok]; !ok {
				seen[tok] = struct{}{}
				docFreq[tok]++
			}
		}
	}

	terms := make([]string, 0, len(termCount))
	for t := range termCount {
		terms = append(terms, t)
	}
	if len(terms) > maxFeatures {
		sort.Slice(terms, func(i, j int) bool {
			if termCount[terms[i]] != termCount[terms[j]] {
				return termCount[terms[i]] > termCount[terms[j]]
			}
			return terms[i] < terms[j]
		})
		terms = terms[:maxFeatures]
	}
	sort.Strings(terms)

	n := float64(len(docs))
	v := &Vectorizer{
		Terms:      terms,
		Vocabulary: make(map[string]int, len(terms)),
		IDF:        make([]float64, len(terms)),
	}
	for i, t := range terms {
		v.Vocabulary[t] = i
		v.IDF[i] = math.Log((1+n)/(1+float64(docFreq[t]))) + 1
	}
	return v
}

// Transform returns the L2-normalised TF-IDF vector of doc. Terms outside
// the vocabulary are ignored; a document with none yields an empty vector.
func (v *Vectorizer) Transform(doc string) SparseVector {
	counts := make(map[int]float64)
	for _, tok := range Tokenize(doc) {
		if col, ok := v.Vocabulary[tok]; ok {
			counts[col]++
		}
	}

	out := SparseVector{
		Indices: make([]int, 0, len(counts)),
		Values:  make([]float64, 0, len(counts)),
	}
	for col := range counts {
		out.Indices = append(out.Indices, col)
	}
	sort.Ints(out.Indices)
	for _, col := range out.Indices {
		out.Values = append(out.Values, counts[col]*v.IDF[col])
	}

	if n := out.Norm(); n > 0 {
		for i := range out.Values {
			out.Values[i] /= n
		}
	}
	return out
}
