// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

package recommend

import (
	"fmt"
	"time"

	"github.com/tomtom215/crmrec/internal/config"
	"github.com/tomtom215/crmrec/internal/recommend/algorithms"
)

// Options are the engine's resolved settings.
type Options struct {
	MaxFeatures        int
	Components         int
	DefaultK           int
	MaxK               int
	PersonalizedTopN   int
	ExcludeRated       bool
	CacheTTL           time.Duration
	CacheMaxEntries    int
	TrainTimeout       time.Duration
	KeepVersions       int
	FactBreakerTimeout time.Duration
}

// DefaultOptions returns the settings used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		MaxFeatures:        algorithms.DefaultMaxFeatures,
		Components:         algorithms.DefaultComponents,
		DefaultK:           10,
		MaxK:               100,
		PersonalizedTopN:   5,
		CacheTTL:           5 * time.Minute,
		CacheMaxEntries:    10000,
		TrainTimeout:       30 * time.Minute,
		KeepVersions:       3,
		FactBreakerTimeout: 30 * time.Second,
	}
}

// OptionsFromConfig resolves Options from the loaded configuration. Zero
// values fall back to DefaultOptions.
func OptionsFromConfig(rc *config.RecommendConfig, reg *config.RegistryConfig) Options {
	o := DefaultOptions()
	if rc != nil {
		if rc.MaxFeatures > 0 {
			o.MaxFeatures = rc.MaxFeatures
		}
		if rc.Components > 0 {
			o.Components = rc.Components
		}
		if rc.DefaultK > 0 {
			o.DefaultK = rc.DefaultK
		}
		if rc.MaxK > 0 {
			o.MaxK = rc.MaxK
		}
		if rc.PersonalizedTopN > 0 {
			o.PersonalizedTopN = rc.PersonalizedTopN
		}
		if rc.CacheTTL > 0 {
			o.CacheTTL = rc.CacheTTL
		}
		if rc.TrainTimeout > 0 {
			o.TrainTimeout = rc.TrainTimeout
		}
		if rc.FactBreakerTimeout > 0 {
			o.FactBreakerTimeout = rc.FactBreakerTimeout
		}
		o.ExcludeRated = rc.ExcludeRated
	}
	if reg != nil && reg.KeepVersions > 0 {
		o.KeepVersions = reg.KeepVersions
	}
	return o
}

// Validate checks the options for consistency.
func (o Options) Validate() error {
	if o.DefaultK < 1 {
		return fmt.Errorf("default_k must be at least 1, got %d", o.DefaultK)
	}
	if o.MaxK < o.DefaultK {
		return fmt.Errorf("max_k (%d) must be >= default_k (%d)", o.MaxK, o.DefaultK)
	}
	if o.PersonalizedTopN < 1 {
		return fmt.Errorf("personalized_top_n must be at least 1, got %d", o.PersonalizedTopN)
	}
	if o.KeepVersions < 1 {
		return fmt.Errorf("keep_versions must be at least 1, got %d", o.KeepVersions)
	}
	return nil
}

// clampK applies the default for k <= 0 and caps it at MaxK.
func (o Options) clampK(k int) int {
	if k <= 0 {
		return o.DefaultK
	}
	if k > o.MaxK {
		return o.MaxK
	}
	return k
}
