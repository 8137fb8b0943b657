// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

// Package algorithms holds the pure model code behind the recommenders.
//
// It has no I/O: trainers take items or ratings already loaded from the
// interaction store and return gob-encodable artifacts, and the artifact
// methods score candidates. Persistence and versioning live in the
// registry package.
//
// # Models
//
//   - ContentModel: TF-IDF vectors over item text, ranked by cosine similarity.
//   - CollaborativeModel: truncated SVD latent factors of the rating matrix.
//   - SimilarityModel: item-item cosine similarity over rating columns.
//
// # Determinism
//
// Every ranking orders by score descending and breaks ties by ascending
// item ID, so identical inputs always produce identical output.
package algorithms
