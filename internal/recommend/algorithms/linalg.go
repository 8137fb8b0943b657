// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

package algorithms

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

// ErrFactorization is returned when the SVD does not converge.
var ErrFactorization = errors.New("singular value decomposition failed")

// SVDResult holds the leading k singular triplets of a matrix R (m×n).
type SVDResult struct {
	Singular []float64   // length k, descending
	V        [][]float64 // n×k right singular vectors
}

// TruncatedSVD computes the top k right singular vectors of r with a thin
// SVD and keeps the first k columns.
func TruncatedSVD(r [][]float64, k int) (SVDResult, error) {
	rows := len(r)
	if rows == 0 || len(r[0]) == 0 {
		return SVDResult{}, nil
	}
	cols := len(r[0])
	k = min(k, rows, cols)

	data := make([]float64, 0, rows*cols)
	for _, row := range r {
		data = append(data, row...)
	}

	var svd mat.SVD
	if ok := svd.Factorize(mat.NewDense(rows, cols, data), mat.SVDThin); !ok {
		return SVDResult{}, ErrFactorization
	}

	values := svd.Values(nil)
	var vt mat.Dense
	svd.VTo(&vt)

	v := make([][]float64, cols)
	for i := range v {
		v[i] = make([]float64, k)
		for c := 0; c < k; c++ {
			v[i][c] = vt.At(i, c)
		}
	}
	return SVDResult{Singular: append([]float64(nil), values[:k]...), V: v}, nil
}
