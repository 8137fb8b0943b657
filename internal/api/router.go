// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/crmrec/internal/auth"
	"github.com/tomtom215/crmrec/internal/config"
	"github.com/tomtom215/crmrec/internal/middleware"
)

// Endpoint-specific limits, per client IP.
var (
	rateLimitHealth = RateLimitConfig{Requests: 1000, Window: time.Minute}
	rateLimitWrite  = RateLimitConfig{Requests: 30, Window: time.Minute}
	rateLimitTrain  = RateLimitConfig{Requests: 5, Window: time.Minute}
)

// RateLimitConfig is a request budget over a window.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// RouterConfig holds the HTTP-layer settings.
type RouterConfig struct {
	CORSOrigins       []string
	RateLimit         RateLimitConfig
	RateLimitDisabled bool
}

// RouterConfigFromSecurity maps the security section onto RouterConfig.
func RouterConfigFromSecurity(sec *config.SecurityConfig) RouterConfig {
	return RouterConfig{
		CORSOrigins:       sec.CORSOrigins,
		RateLimit:         RateLimitConfig{Requests: sec.RateLimitReqs, Window: sec.RateLimitWindow},
		RateLimitDisabled: sec.RateLimitDisabled,
	}
}

// Router wires handlers and middleware onto chi.
type Router struct {
	handler *Handler
	auth    *auth.Middleware
	config  RouterConfig
}

// NewRouter creates a router. authMW guards the personalized endpoint.
func NewRouter(handler *Handler, authMW *auth.Middleware, cfg RouterConfig) *Router {
	return &Router{handler: handler, auth: authMW, config: cfg}
}

func (rt *Router) limit(c RateLimitConfig) func(http.Handler) http.Handler {
	if rt.config.RateLimitDisabled || c.Requests <= 0 || c.Window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(c.Requests, c.Window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			respondError(w, http.StatusTooManyRequests, CodeRateLimited, "Too many requests", nil)
		}),
	)
}

// Handler builds the full route tree.
func (rt *Router) Handler() http.Handler {
	h := rt.handler
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: rt.config.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", middleware.HeaderRequestID},
		ExposedHeaders: []string{middleware.HeaderRequestID},
		MaxAge:         86400,
	}))
	r.Use(middleware.PrometheusMetrics)

	r.Group(func(r chi.Router) {
		r.Use(rt.limit(rateLimitHealth))
		r.Get("/health", h.Health)
		r.Handle("/metrics", promhttp.Handler())
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.limit(rt.config.RateLimit))
		r.Use(APISecurityHeaders())
		r.Use(middleware.Compression)

		// Fact-table endpoints
		r.Get("/recommendations", h.ContentRecommendations)
		r.Get("/collaborative/{customerID}", h.SimilarCustomers)
		r.Get("/upsell/{productID}", h.UpsellSuggestions)
		r.Get("/crosssell/{customerID}", h.CrossSellSuggestions)
		r.Get("/products", h.Products)
		r.Get("/dashboard", h.Dashboard)

		// Model endpoints
		r.With(rt.auth.Authenticate).Get("/ai-personalized", h.AIPersonalized)
		r.Get("/items/{itemID}/similar", h.SimilarItems)
		r.Get("/users/{userID}/recommendations", h.UserRecommendations)
		r.Get("/users/{userID}/interactions", h.UserInteractions)
		r.Get("/recommend/{strategy}/{subject}", h.Recommend)
		r.Get("/recommendations/status", h.TrainingStatus)
		r.With(rt.limit(rateLimitTrain)).Post("/recommendations/train", h.TriggerTraining)

		r.Group(func(r chi.Router) {
			r.Use(rt.limit(rateLimitWrite))
			r.Post("/ratings", h.UpsertRating)
			r.Post("/interactions", h.UpsertInteraction)
			r.Post("/messages/generate", h.GenerateMessage)
			r.Post("/messages/send", h.SendMessage)
		})

		r.Get("/message-templates", h.MessageTemplates)
		r.Get("/messages/sent/{customerID}", h.SentMessages)
		r.Get("/messages/personalized/{customerID}/{productID}", h.PersonalizedMessage)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, CodeNotFound, "Endpoint not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	return r
}

// APISecurityHeaders sets the headers every API response carries. HSTS is
// added only when the request arrived over TLS.
func APISecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Cache-Control", "no-store")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}
