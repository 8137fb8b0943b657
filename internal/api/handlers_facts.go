// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/crmrec/internal/database"
	"github.com/tomtom215/crmrec/internal/models"
	"github.com/tomtom215/crmrec/internal/recommend"
)

// factLimit is the row cap every fact-table query applies.
const factLimit = 5

// ContentRecommendations handles GET /api/v1/recommendations?product=
func (h *Handler) ContentRecommendations(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	product := strings.TrimSpace(r.URL.Query().Get("product"))
	if product == "" {
		respondError(w, http.StatusBadRequest, CodeValidation, "Please provide a product name.", nil)
		return
	}

	recs, err := h.engine.Recommend(r.Context(), recommend.StrategySQLContent, recommend.Subject{Query: product}, factLimit)
	if err != nil {
		respondServiceError(w, err, "Failed to load recommendations")
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"recommended_products": recTitles(recs),
	}, start)
}

// SimilarCustomers handles GET /api/v1/collaborative/{customerID}
func (h *Handler) SimilarCustomers(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	customerID, err := pathID(r, "customerID")
	if err != nil {
		respondError(w, http.StatusBadRequest, CodeValidation, err.Error(), nil)
		return
	}

	recs, err := h.engine.Recommend(r.Context(), recommend.StrategySQLCollaborative, recommend.Subject{ID: customerID}, factLimit)
	if err != nil {
		respondServiceError(w, err, "Failed to load similar customers")
		return
	}

	similar := make([]models.SimilarCustomer, 0, len(recs))
	for _, rec := range recs {
		similar = append(similar, models.SimilarCustomer{CustomerID: rec.ID, CommonCount: int64(rec.Score)})
	}
	respondSuccess(w, http.StatusOK, map[string]interface{}{"similar_customers": similar}, start)
}

// UpsellSuggestions handles GET /api/v1/upsell/{productID}
func (h *Handler) UpsellSuggestions(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	productID, err := pathID(r, "productID")
	if err != nil {
		respondError(w, http.StatusBadRequest, CodeValidation, err.Error(), nil)
		return
	}

	recs, err := h.engine.Recommend(r.Context(), recommend.StrategySQLUpsell, recommend.Subject{ID: productID}, factLimit)
	if err != nil {
		respondServiceError(w, err, "Failed to load upsell suggestions")
		return
	}
	respondSuccess(w, http.StatusOK, map[string]interface{}{"upsell_suggestions": recTitles(recs)}, start)
}

// CrossSellSuggestions handles GET /api/v1/crosssell/{customerID}
func (h *Handler) CrossSellSuggestions(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	customerID, err := pathID(r, "customerID")
	if err != nil {
		respondError(w, http.StatusBadRequest, CodeValidation, err.Error(), nil)
		return
	}

	recs, err := h.engine.Recommend(r.Context(), recommend.StrategySQLCrossSell, recommend.Subject{ID: customerID}, factLimit)
	if err != nil {
		respondServiceError(w, err, "Failed to load cross-sell suggestions")
		return
	}

	counts := make([]models.CrossSellCount, 0, len(recs))
	for _, rec := range recs {
		counts = append(counts, models.CrossSellCount{ProductName: rec.Title, Count: int64(rec.Score)})
	}
	respondSuccess(w, http.StatusOK, map[string]interface{}{"cross_sell_suggestions": counts}, start)
}

// Products handles GET /api/v1/products
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	names, err := h.store.ProductNames(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, CodeDatabase, "Failed to list products", err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]interface{}{"products": names}, start)
}

// Dashboard handles GET /api/v1/dashboard with optional customer_id and
// type filters.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var filter database.DashboardFilter

	if raw := r.URL.Query().Get("customer_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			respondError(w, http.StatusBadRequest, CodeValidation, "customer_id must be a positive integer", nil)
			return
		}
		filter.CustomerID = id
	}
	if t := r.URL.Query().Get("type"); t != "" {
		if t != models.RecommendationUpsell && t != models.RecommendationCrossSell {
			respondError(w, http.StatusBadRequest, CodeValidation, "type must be one of: Upsell Cross-Sell", nil)
			return
		}
		filter.RecommendationType = t
	}

	rows, err := h.store.Dashboard(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, CodeDatabase, "Failed to load dashboard", err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"recommendations": rows,
		"count":           len(rows),
	}, start)
}

func recTitles(recs []recommend.Recommendation) []string {
	out := make([]string, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.Title)
	}
	return out
}
