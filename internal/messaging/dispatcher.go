// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

package messaging

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/tomtom215/crmrec/internal/logging"
	"github.com/tomtom215/crmrec/internal/metrics"
	"github.com/tomtom215/crmrec/internal/models"
)

// Dispatcher records outbound messages, throttled to a sustained rate.
type Dispatcher struct {
	store   Store
	limiter *rate.Limiter
	now     func() time.Time
}

// NewDispatcher creates a dispatcher allowing perSecond messages per second
// with the given burst. perSecond <= 0 disables throttling.
func NewDispatcher(store Store, perSecond float64, burst int) *Dispatcher {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst < 1 {
		burst = 1
	}
	return &Dispatcher{
		store:   store,
		limiter: rate.NewLimiter(limit, burst),
		now:     time.Now,
	}
}

// Send records message for customerID. It waits for a send slot while ctx
// allows; a deadline too short for the next slot yields ErrRateLimited.
func (d *Dispatcher) Send(ctx context.Context, customerID int64, message string) (*models.SentMessage, error) {
	message = strings.TrimSpace(message)
	if customerID <= 0 || message == "" {
		metrics.RecordMessage("rejected")
		return nil, ErrInvalidMessage
	}

	if err := d.limiter.Wait(ctx); err != nil {
		metrics.RecordMessage("rejected")
		return nil, fmt.Errorf("%w: %v", ErrRateLimited, err)
	}

	sent := &models.SentMessage{
		ID:         uuid.New().String(),
		CustomerID: customerID,
		Message:    message,
		SentAt:     d.now().UTC(),
	}
	if err := d.store.InsertSentMessage(ctx, sent); err != nil {
		metrics.RecordMessage("error")
		return nil, fmt.Errorf("record sent message: %w", err)
	}

	metrics.RecordMessage("sent")
	logging.Ctx(ctx).Info().
		Str("message_id", sent.ID).
		Int64("customer_id", customerID).
		Msg("Message sent to customer")
	return sent, nil
}
