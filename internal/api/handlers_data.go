// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/crmrec/internal/logging"
	"github.com/tomtom215/crmrec/internal/models"
	"github.com/tomtom215/crmrec/internal/validation"
)

// UpsertRating handles POST /api/v1/ratings. A new or changed rating drops
// cached recommendations; models pick it up on the next training pass.
func (h *Handler) UpsertRating(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var rating models.Rating
	if err := decodeJSON(r, &rating); err != nil {
		respondError(w, http.StatusBadRequest, CodeValidation, err.Error(), nil)
		return
	}
	if verr := validation.ValidateStruct(&rating); verr != nil {
		respondValidation(w, verr)
		return
	}

	if err := h.store.UpsertRating(r.Context(), &rating); err != nil {
		respondError(w, http.StatusInternalServerError, CodeDatabase, "Failed to store rating", err)
		return
	}
	h.engine.InvalidateCache()

	logging.Ctx(r.Context()).Debug().
		Int64("user_id", rating.UserID).
		Int64("item_id", rating.ItemID).
		Float64("rating", rating.Rating).
		Msg("Rating stored")
	respondSuccess(w, http.StatusOK, rating, start)
}

// UpsertInteraction handles POST /api/v1/interactions.
func (h *Handler) UpsertInteraction(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var in models.Interaction
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, CodeValidation, err.Error(), nil)
		return
	}
	if verr := validation.ValidateStruct(&in); verr != nil {
		respondValidation(w, verr)
		return
	}

	if err := h.store.UpsertInteraction(r.Context(), &in); err != nil {
		respondError(w, http.StatusInternalServerError, CodeDatabase, "Failed to store interaction", err)
		return
	}
	respondSuccess(w, http.StatusOK, in, start)
}

// UserInteractions handles GET /api/v1/users/{userID}/interactions
func (h *Handler) UserInteractions(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	userID, err := pathID(r, "userID")
	if err != nil {
		respondError(w, http.StatusBadRequest, CodeValidation, err.Error(), nil)
		return
	}

	list, err := h.store.ListUserInteractions(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, CodeDatabase, "Failed to list interactions", err)
		return
	}
	if list == nil {
		list = []models.Interaction{}
	}
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"user_id":      userID,
		"interactions": list,
		"count":        len(list),
	}, start)
}
