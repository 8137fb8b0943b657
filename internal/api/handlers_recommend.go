// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/crmrec/internal/auth"
	"github.com/tomtom215/crmrec/internal/events"
	"github.com/tomtom215/crmrec/internal/logging"
	"github.com/tomtom215/crmrec/internal/recommend"
)

type personalizedResult struct {
	ProductTitle    string  `json:"product_title"`
	ConfidenceScore float64 `json:"confidence_score"`
	ItemID          int64   `json:"item_id"`
}

// AIPersonalized handles GET /api/v1/ai-personalized?customer_id=
func (h *Handler) AIPersonalized(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	raw := r.URL.Query().Get("customer_id")
	if raw == "" {
		respondError(w, http.StatusBadRequest, CodeValidation, "Customer ID is required.", nil)
		return
	}
	customerID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || customerID <= 0 {
		respondError(w, http.StatusBadRequest, CodeValidation, "customer_id must be a positive integer", nil)
		return
	}

	recs, err := h.engine.Recommend(r.Context(), recommend.StrategyPersonalized, recommend.Subject{ID: customerID}, 0)
	if err != nil {
		respondServiceError(w, err, "Failed to generate personalized recommendations")
		return
	}

	results := make([]personalizedResult, 0, len(recs))
	for _, rec := range recs {
		results = append(results, personalizedResult{ProductTitle: rec.Title, ConfidenceScore: rec.Score, ItemID: rec.ID})
	}

	ev := logging.Ctx(r.Context()).Debug().Int64("customer_id", customerID).Int("returned", len(results))
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		ev = ev.Str("username", claims.Username)
	}
	ev.Msg("Personalized recommendations served")

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"customer_id":     customerID,
		"recommendations": results,
	}, start)
}

// SimilarItems handles GET /api/v1/items/{itemID}/similar?k=
func (h *Handler) SimilarItems(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "itemID")
	if err != nil {
		respondError(w, http.StatusBadRequest, CodeValidation, err.Error(), nil)
		return
	}
	h.serveStrategy(w, r, recommend.StrategyContent, recommend.Subject{ID: itemID})
}

// UserRecommendations handles GET /api/v1/users/{userID}/recommendations?k=
func (h *Handler) UserRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		respondError(w, http.StatusBadRequest, CodeValidation, err.Error(), nil)
		return
	}
	h.serveStrategy(w, r, recommend.StrategyCollaborative, recommend.Subject{ID: userID})
}

// Recommend handles GET /api/v1/recommend/{strategy}/{subject}?k=
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	strategy := chi.URLParam(r, "strategy")
	subject, err := recommend.ParseSubject(strategy, chi.URLParam(r, "subject"))
	if err != nil {
		respondServiceError(w, err, "Invalid subject")
		return
	}
	h.serveStrategy(w, r, strategy, subject)
}

func (h *Handler) serveStrategy(w http.ResponseWriter, r *http.Request, strategy string, subject recommend.Subject) {
	start := time.Now()
	k, err := queryK(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, CodeValidation, err.Error(), nil)
		return
	}

	recs, err := h.engine.Recommend(r.Context(), strategy, subject, k)
	if err != nil {
		respondServiceError(w, err, "Failed to generate recommendations")
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"strategy":        strategy,
		"subject":         subject,
		"recommendations": recs,
		"count":           len(recs),
	}, start)
}

// TriggerTraining handles POST /api/v1/recommendations/train. Training runs
// asynchronously on the retrain service.
func (h *Handler) TriggerTraining(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ev, err := h.bus.PublishRetrain(r.Context(), events.SourceAPI)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, CodeUnavailable, "Failed to queue training", err)
		return
	}

	respondSuccess(w, http.StatusAccepted, map[string]interface{}{
		"event_id":     ev.EventID,
		"requested_at": ev.RequestedAt,
		"message":      "training queued",
	}, start)
}

// TrainingStatus handles GET /api/v1/recommendations/status
func (h *Handler) TrainingStatus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	st, err := h.engine.Status(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, CodeInternal, "Failed to read training status", err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"training":      st,
		"breaker_state": h.engine.BreakerState(),
	}, start)
}
