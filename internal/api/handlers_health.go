// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

package api

import (
	"context"
	"net/http"
	"time"
)

// HealthStatus is the /health payload.
type HealthStatus struct {
	Status            string  `json:"status"`
	DatabaseConnected bool    `json:"database_connected"`
	BreakerState      string  `json:"breaker_state,omitempty"`
	ModelsAvailable   int     `json:"models_available"`
	Uptime            float64 `json:"uptime_seconds"`
}

// Health handles GET /health. It reports "degraded" with 503 when the
// database is unreachable or the fact-store circuit is open.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	health := HealthStatus{
		Status:            "healthy",
		DatabaseConnected: h.store.Ping(ctx) == nil,
		BreakerState:      h.engine.BreakerState(),
		Uptime:            time.Since(h.startTime).Seconds(),
	}
	if st, err := h.engine.Status(ctx); err == nil {
		for _, m := range st.Models {
			if m.Available {
				health.ModelsAvailable++
			}
		}
	}

	status := http.StatusOK
	if !health.DatabaseConnected || health.BreakerState == "open" {
		health.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	respondSuccess(w, status, health, start)
}
