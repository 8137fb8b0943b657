// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/crmrec/internal/messaging"
	"github.com/tomtom215/crmrec/internal/models"
	"github.com/tomtom215/crmrec/internal/validation"
)

type sendMessageRequest struct {
	CustomerID int64  `json:"customer_id"`
	Message    string `json:"message"`
}

// MessageTemplates handles GET /api/v1/message-templates
func (h *Handler) MessageTemplates(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	templates, err := h.generator.Templates(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, CodeDatabase, "Failed to list message templates", err)
		return
	}
	if templates == nil {
		templates = []models.MessageTemplate{}
	}
	respondSuccess(w, http.StatusOK, templates, start)
}

// GenerateMessage handles POST /api/v1/messages/generate
func (h *Handler) GenerateMessage(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req messaging.GenerateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, CodeValidation, err.Error(), nil)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidation(w, verr)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]string{"message": messaging.GenerateMessage(req)}, start)
}

// SendMessage handles POST /api/v1/messages/send
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, CodeValidation, err.Error(), nil)
		return
	}

	sent, err := h.dispatcher.Send(r.Context(), req.CustomerID, req.Message)
	if err != nil {
		respondServiceError(w, err, "Failed to send message")
		return
	}
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"message": "Message sent successfully!",
		"sent":    sent,
	}, start)
}

// SentMessages handles GET /api/v1/messages/sent/{customerID}
func (h *Handler) SentMessages(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	customerID, err := pathID(r, "customerID")
	if err != nil {
		respondError(w, http.StatusBadRequest, CodeValidation, err.Error(), nil)
		return
	}

	sent, err := h.store.ListSentMessages(r.Context(), customerID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, CodeDatabase, "Failed to list sent messages", err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]interface{}{"messages": sent, "count": len(sent)}, start)
}

// PersonalizedMessage handles
// GET /api/v1/messages/personalized/{customerID}/{productID}
func (h *Handler) PersonalizedMessage(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	customerID, err := pathID(r, "customerID")
	if err != nil {
		respondError(w, http.StatusBadRequest, CodeValidation, err.Error(), nil)
		return
	}
	productID, err := pathID(r, "productID")
	if err != nil {
		respondError(w, http.StatusBadRequest, CodeValidation, err.Error(), nil)
		return
	}

	msg, err := h.generator.Personalized(r.Context(), customerID, productID)
	if err != nil {
		respondServiceError(w, err, "Failed to build personalized message")
		return
	}
	respondSuccess(w, http.StatusOK, msg, start)
}
