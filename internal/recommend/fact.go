// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/crmrec/internal/logging"
	"github.com/tomtom215/crmrec/internal/metrics"
	"github.com/tomtom215/crmrec/internal/models"
)

// ErrUnavailable is returned while the fact-table circuit is open.
var ErrUnavailable = errors.New("recommendation facts temporarily unavailable")

const factBreakerName = "fact-store"

// BreakerFactStore wraps a FactStore with a circuit breaker. Once the
// store keeps failing, calls are rejected with ErrUnavailable until the
// breaker's timeout elapses.
type BreakerFactStore struct {
	store FactStore
	cb    *gobreaker.CircuitBreaker[any]
	name  string
}

// NewBreakerFactStore wraps store. timeout is how long the circuit stays
// open before a half-open probe.
func NewBreakerFactStore(store FactStore, timeout time.Duration) *BreakerFactStore {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	metrics.CircuitBreakerState.WithLabelValues(factBreakerName).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        factBreakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     timeout,

		// Five consecutive failures, or 60% of at least 10 requests.
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= 5 {
				return true
			}
			if counts.Requests < 10 {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= 0.6 {
				logging.Warn().Uint32("failures", counts.TotalFailures).Float64("failure_rate", ratio*100).Msg("[CIRCUIT BREAKER] Opening circuit")
				return true
			}
			return false
		},

		// A caller giving up is not a store failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateToString(from), stateToString(to)
			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &BreakerFactStore{store: store, cb: cb, name: factBreakerName}
}

// State returns the breaker state as a string.
func (b *BreakerFactStore) State() string {
	return stateToString(b.cb.State())
}

func (b *BreakerFactStore) execute(fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
		return nil, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	return result, nil
}

// castResult type-asserts a breaker result.
func castResult[T any](result any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

// ContentRecommendations implements FactStore.
func (b *BreakerFactStore) ContentRecommendations(ctx context.Context, productName string) ([]string, error) {
	return castResult[[]string](b.execute(func() (any, error) {
		return b.store.ContentRecommendations(ctx, productName)
	}))
}

// SimilarCustomers implements FactStore.
func (b *BreakerFactStore) SimilarCustomers(ctx context.Context, customerID int64) ([]models.SimilarCustomer, error) {
	return castResult[[]models.SimilarCustomer](b.execute(func() (any, error) {
		return b.store.SimilarCustomers(ctx, customerID)
	}))
}

// UpsellRecommendations implements FactStore.
func (b *BreakerFactStore) UpsellRecommendations(ctx context.Context, productID int64) ([]string, error) {
	return castResult[[]string](b.execute(func() (any, error) {
		return b.store.UpsellRecommendations(ctx, productID)
	}))
}

// CrossSellRecommendations implements FactStore.
func (b *BreakerFactStore) CrossSellRecommendations(ctx context.Context, customerID int64) ([]models.CrossSellCount, error) {
	return castResult[[]models.CrossSellCount](b.execute(func() (any, error) {
		return b.store.CrossSellRecommendations(ctx, customerID)
	}))
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// FactRecommender serves one of the precomputed fact-table queries.
type FactRecommender struct {
	name  string
	facts FactStore
}

// NewFactRecommenders returns the four sql-* strategies over facts.
func NewFactRecommenders(facts FactStore) []*FactRecommender {
	return []*FactRecommender{
		{name: StrategySQLContent, facts: facts},
		{name: StrategySQLCollaborative, facts: facts},
		{name: StrategySQLUpsell, facts: facts},
		{name: StrategySQLCrossSell, facts: facts},
	}
}

// Name implements Recommender.
func (r *FactRecommender) Name() string { return r.name }

// Recommend runs the strategy's query. The fact queries carry their own
// limit of five rows; k trims further when smaller.
func (r *FactRecommender) Recommend(ctx context.Context, subject Subject, k int) ([]Recommendation, error) {
	var out []Recommendation

	switch r.name {
	case StrategySQLContent:
		if strings.TrimSpace(subject.Query) == "" {
			return nil, fmt.Errorf("%w: empty product query", ErrInvalidSubject)
		}
		names, err := r.facts.ContentRecommendations(ctx, subject.Query)
		if err != nil {
			return nil, err
		}
		out = titles(names)
	case StrategySQLUpsell:
		names, err := r.facts.UpsellRecommendations(ctx, subject.ID)
		if err != nil {
			return nil, err
		}
		out = titles(names)
	case StrategySQLCollaborative:
		similar, err := r.facts.SimilarCustomers(ctx, subject.ID)
		if err != nil {
			return nil, err
		}
		out = make([]Recommendation, 0, len(similar))
		for _, s := range similar {
			out = append(out, Recommendation{
				ID:    s.CustomerID,
				Title: fmt.Sprintf("customer %d", s.CustomerID),
				Score: float64(s.CommonCount),
			})
		}
	case StrategySQLCrossSell:
		counts, err := r.facts.CrossSellRecommendations(ctx, subject.ID)
		if err != nil {
			return nil, err
		}
		out = make([]Recommendation, 0, len(counts))
		for _, c := range counts {
			out = append(out, Recommendation{Title: c.ProductName, Score: float64(c.Count)})
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, r.name)
	}

	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func titles(names []string) []Recommendation {
	out := make([]Recommendation, 0, len(names))
	for _, n := range names {
		out = append(out, Recommendation{Title: n})
	}
	return out
}
