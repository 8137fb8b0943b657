// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/crmrec/internal/cache"
	"github.com/tomtom215/crmrec/internal/logging"
	"github.com/tomtom215/crmrec/internal/metrics"
	"github.com/tomtom215/crmrec/internal/recommend/registry"
)

// Engine dispatches recommendation requests to named strategies and owns
// the training lifecycle. It is safe for concurrent use.
type Engine struct {
	opts    Options
	logger  zerolog.Logger
	reg     *registry.Registry
	trainer *Trainer
	breaker *BreakerFactStore

	stratMu    sync.RWMutex
	strategies map[string]Recommender

	cache *cache.Cache[[]Recommendation]

	// trainMu serialises training passes; statusMu guards status.
	trainMu  sync.Mutex
	statusMu sync.RWMutex
	status   TrainingStatus
}

// NewEngine creates an engine with the model strategies over data and, when
// facts is non-nil, the sql-* strategies behind a circuit breaker.
func NewEngine(data DataStore, facts FactStore, reg *registry.Registry, opts Options) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid recommend options: %w", err)
	}

	trainer := NewTrainer(data, reg, opts)
	reg.SetTrainTimeout(opts.TrainTimeout)
	e := &Engine{
		opts:       opts,
		logger:     logging.WithComponent("recommend"),
		reg:        reg,
		trainer:    trainer,
		strategies: make(map[string]Recommender),
		cache:      cache.New[[]Recommendation](opts.CacheTTL, opts.CacheMaxEntries),
	}

	e.Register(NewContentRecommender(data, reg, trainer))
	e.Register(NewCollaborativeRecommender(data, reg, trainer, opts.ExcludeRated))
	e.Register(NewPersonalizedRecommender(data, reg, opts.PersonalizedTopN))

	if facts != nil {
		e.breaker = NewBreakerFactStore(facts, opts.FactBreakerTimeout)
		for _, r := range NewFactRecommenders(e.breaker) {
			e.Register(r)
		}
	}
	return e, nil
}

// Register adds or replaces a strategy.
func (e *Engine) Register(r Recommender) {
	e.stratMu.Lock()
	defer e.stratMu.Unlock()
	e.strategies[r.Name()] = r
	e.logger.Debug().Str("strategy", r.Name()).Msg("registered strategy")
}

// Strategies returns the registered strategy names in sorted order.
func (e *Engine) Strategies() []string {
	e.stratMu.RLock()
	defer e.stratMu.RUnlock()
	names := make([]string, 0, len(e.strategies))
	for n := range e.strategies {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Trainer returns the engine's trainer.
func (e *Engine) Trainer() *Trainer { return e.trainer }

// Options returns the resolved settings.
func (e *Engine) Options() Options { return e.opts }

func (e *Engine) resolveK(strategy string, k int) int {
	if strategy == StrategyPersonalized && k <= 0 {
		return e.opts.PersonalizedTopN
	}
	return e.opts.clampK(k)
}

// Recommend runs the named strategy for subject. Results are cached until
// the TTL expires or the next training pass completes.
func (e *Engine) Recommend(ctx context.Context, strategy string, subject Subject, k int) ([]Recommendation, error) {
	start := time.Now()

	e.stratMu.RLock()
	r, ok := e.strategies[strategy]
	e.stratMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}

	k = e.resolveK(strategy, k)
	key := cache.GenerateKey(strategy, map[string]interface{}{"subject": subject.String(), "k": k})
	if recs, hit := e.cache.Get(key); hit {
		metrics.RecordRecommendation(strategy, "cache_hit", time.Since(start))
		return recs, nil
	}

	recs, err := r.Recommend(ctx, subject, k)
	if err != nil {
		metrics.RecordRecommendation(strategy, "error", time.Since(start))
		logging.Ctx(ctx).Error().Err(err).Str("strategy", strategy).Str("subject", subject.String()).Msg("recommendation failed")
		return nil, err
	}
	if recs == nil {
		recs = []Recommendation{}
	}

	e.cache.Set(key, recs)
	metrics.RecordRecommendation(strategy, "ok", time.Since(start))
	logging.Ctx(ctx).Debug().
		Str("strategy", strategy).
		Str("subject", subject.String()).
		Int("returned", len(recs)).
		Msg("recommendation complete")
	return recs, nil
}

// Train runs one training pass over every model and clears the response
// cache. It returns ErrTrainingInProgress if a pass is already running.
func (e *Engine) Train(ctx context.Context) (*TrainReport, error) {
	if !e.trainMu.TryLock() {
		return nil, ErrTrainingInProgress
	}
	defer e.trainMu.Unlock()

	e.statusMu.Lock()
	e.status.IsTraining = true
	e.statusMu.Unlock()

	report := e.trainer.TrainAll(ctx)
	e.cache.Clear()

	e.statusMu.Lock()
	e.status.IsTraining = false
	e.status.Runs++
	e.status.LastTrainedAt = report.StartedAt.Add(report.Duration)
	e.status.LastDurationMS = report.Duration.Milliseconds()
	e.status.LastError = ""
	for _, m := range report.Models {
		if m.Error != "" {
			e.status.LastError = m.Model + ": " + m.Error
		}
	}
	e.statusMu.Unlock()

	return report, nil
}

// Status reports the training state and the latest version of each model.
func (e *Engine) Status(ctx context.Context) (TrainingStatus, error) {
	e.statusMu.RLock()
	st := e.status
	e.statusMu.RUnlock()

	st.Models = make([]ModelStatus, 0, 3)
	for _, name := range []string{ModelContent, ModelCollaborative, ModelSimilarity} {
		entry, err := e.reg.LatestEntry(ctx, name)
		if errors.Is(err, registry.ErrNotFound) {
			st.Models = append(st.Models, ModelStatus{Name: name})
			continue
		}
		if err != nil {
			return TrainingStatus{}, err
		}
		st.Models = append(st.Models, ModelStatus{
			Name:      name,
			Version:   entry.Version,
			CreatedAt: entry.CreatedAt,
			Rows:      entry.Rows,
			Cols:      entry.Cols,
			Available: true,
		})
	}

	st.Strategies = e.Strategies()
	st.CacheEntries = e.cache.Len()
	st.CacheHitRate = e.cache.HitRate()
	return st, nil
}

// BreakerState returns the fact-store circuit state, or "" when no fact
// store is configured.
func (e *Engine) BreakerState() string {
	if e.breaker == nil {
		return ""
	}
	return e.breaker.State()
}

// InvalidateCache drops every cached response.
func (e *Engine) InvalidateCache() {
	e.cache.Clear()
}

// Close stops the response cache.
func (e *Engine) Close() {
	e.cache.Close()
}
