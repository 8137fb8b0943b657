// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

/*
Package models defines the data structures shared across crmrec.

Interaction store rows:
  - Item: a catalogue entry whose text fields feed the content model
  - Rating: one score per (user, item) pair, the collaborative model's input
  - Interaction: typed user/item events kept for future trainers

Precomputed recommendation facts:
  - RecommendationRecord: one row of the pest_recommendations fact table
  - DashboardRow, SimilarCustomer, CrossSellCount: shapes returned by the fact queries

Messaging:
  - MessageTemplate, SentMessage

API:
  - APIResponse, Metadata, APIError: the response envelope
*/
package models
