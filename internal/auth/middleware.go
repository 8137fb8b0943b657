// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/crmrec/internal/logging"
)

type contextKey string

// ClaimsContextKey holds the authenticated *Claims in a request context.
const ClaimsContextKey contextKey = "claims"

// ClaimsFromContext returns the claims set by Authenticate, if any.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(ClaimsContextKey).(*Claims)
	return c, ok
}

// Middleware enforces the configured auth mode on protected routes.
type Middleware struct {
	mode string
	jwt  *JWTManager
}

// NewMiddleware creates auth middleware. jwtManager may be nil when mode
// is "none".
func NewMiddleware(mode string, jwtManager *JWTManager) (*Middleware, error) {
	switch mode {
	case "", ModeNone:
		return &Middleware{mode: ModeNone}, nil
	case ModeJWT:
		if jwtManager == nil {
			return nil, errors.New("jwt auth mode requires a JWT manager")
		}
		return &Middleware{mode: ModeJWT, jwt: jwtManager}, nil
	default:
		return nil, errors.New("invalid auth mode: " + mode)
	}
}

// Mode returns the active auth mode.
func (m *Middleware) Mode() string { return m.mode }

// Authenticate requires a valid bearer token when the mode is jwt. The
// token may also come from a "token" cookie.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.mode == ModeNone {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := extractToken(r)
		if !ok {
			writeUnauthorized(w, "missing or malformed bearer token")
			return
		}
		claims, err := m.jwt.ValidateToken(token)
		if err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("Token validation failed")
			writeUnauthorized(w, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		cookie, err := r.Cookie("token")
		if err != nil || cookie.Value == "" {
			return "", false
		}
		return cookie.Value, true
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// writeUnauthorized writes a 401 in the API's envelope shape.
func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="crmrec"`)
	w.WriteHeader(http.StatusUnauthorized)
	body := map[string]interface{}{
		"status": "error",
		"error": map[string]string{
			"code":    "UNAUTHORIZED",
			"message": message,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().UTC(),
		},
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("Failed to write auth error")
	}
}
