// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

// Package recommend ties the trained models, the registry and the
// fact-table queries together behind one Recommender interface.
//
// Every strategy is registered with an Engine by name. The engine caches
// responses for a short TTL, records metrics, and drops the cache whenever
// a training pass finishes.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/crmrec/internal/models"
)

// Strategy names.
const (
	StrategyContent          = "content"
	StrategyCollaborative    = "collaborative"
	StrategyPersonalized     = "personalized"
	StrategySQLContent       = "sql-content"
	StrategySQLCollaborative = "sql-collaborative"
	StrategySQLUpsell        = "sql-upsell"
	StrategySQLCrossSell     = "sql-crosssell"
)

// Model names in the registry.
const (
	ModelContent       = "content_tfidf"
	ModelCollaborative = "cf_svd"
	ModelSimilarity    = "recommender_similarity"
)

// ErrUnknownStrategy is returned for a strategy name the engine does not know.
var ErrUnknownStrategy = errors.New("unknown recommendation strategy")

// ErrTrainingInProgress is returned when a training pass is already running.
var ErrTrainingInProgress = errors.New("training already in progress")

// ErrInvalidSubject is returned when a subject does not fit its strategy.
var ErrInvalidSubject = errors.New("invalid recommendation subject")

// Subject is what a recommendation is computed for. Numeric strategies read
// ID (an item, user, customer or product ID); sql-content reads Query.
type Subject struct {
	ID    int64  `json:"id,omitempty"`
	Query string `json:"query,omitempty"`
}

// ParseSubject reads a path segment the way strategy expects it. sql-content
// takes the raw segment as a product-name query, digits included. Every
// other strategy needs a positive integer ID.
func ParseSubject(strategy, raw string) (Subject, error) {
	if strategy == StrategySQLContent {
		if strings.TrimSpace(raw) == "" {
			return Subject{}, fmt.Errorf("%w: empty product query", ErrInvalidSubject)
		}
		return Subject{Query: raw}, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return Subject{}, fmt.Errorf("%w: %s needs a positive integer id, got %q", ErrInvalidSubject, strategy, raw)
	}
	return Subject{ID: id}, nil
}

// String returns a stable representation for cache keys and logs.
func (s Subject) String() string {
	if s.Query != "" {
		return "q:" + s.Query
	}
	return strconv.FormatInt(s.ID, 10)
}

// Recommendation is one ranked result. Model strategies fill Item and ID;
// fact-table strategies fill Title and, for counts, Score.
type Recommendation struct {
	ID    int64        `json:"id,omitempty"`
	Title string       `json:"title"`
	Score float64      `json:"score"`
	Item  *models.Item `json:"item,omitempty"`
}

// Recommender is one named recommendation strategy.
type Recommender interface {
	Name() string
	Recommend(ctx context.Context, subject Subject, k int) ([]Recommendation, error)
}

// DataStore is the interaction-store access the trainers and model
// recommenders need. *database.DB implements it.
type DataStore interface {
	ListItems(ctx context.Context) ([]models.Item, error)
	ListRatings(ctx context.Context) ([]models.Rating, error)
	GetItemsByIDs(ctx context.Context, ids []int64) (map[int64]models.Item, error)
	FirstItems(ctx context.Context, limit int) ([]models.Item, error)
	UserRatings(ctx context.Context, userID int64) (map[int64]float64, error)
	CountRatings(ctx context.Context) (int64, error)
}

// FactStore is the precomputed fact-table access. *database.DB implements it.
type FactStore interface {
	ContentRecommendations(ctx context.Context, productName string) ([]string, error)
	SimilarCustomers(ctx context.Context, customerID int64) ([]models.SimilarCustomer, error)
	UpsellRecommendations(ctx context.Context, productID int64) ([]string, error)
	CrossSellRecommendations(ctx context.Context, customerID int64) ([]models.CrossSellCount, error)
}

// ModelStatus describes the latest registry entry of one model.
type ModelStatus struct {
	Name      string    `json:"name"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Rows      int       `json:"rows"`
	Cols      int       `json:"cols"`
	Available bool      `json:"available"`
}

// TrainingStatus describes the engine's training state.
type TrainingStatus struct {
	IsTraining     bool          `json:"is_training"`
	LastTrainedAt  time.Time     `json:"last_trained_at,omitempty"`
	LastDurationMS int64         `json:"last_duration_ms"`
	LastError      string        `json:"last_error,omitempty"`
	Runs           int64         `json:"runs"`
	Models         []ModelStatus `json:"models"`
	Strategies     []string      `json:"strategies"`
	CacheEntries   int           `json:"cache_entries"`
	CacheHitRate   float64       `json:"cache_hit_rate"`
}
