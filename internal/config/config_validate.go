// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateRecommend(); err != nil {
		return err
	}
	if err := c.validateRegistry(); err != nil {
		return err
	}
	if err := c.validateMessaging(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %v", c.Server.Timeout)
	}
	switch c.Server.Environment {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("ENVIRONMENT must be development, staging or production, got %q", c.Server.Environment)
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("DUCKDB_PATH is required")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("DUCKDB_THREADS must be >= 0, got %d", c.Database.Threads)
	}
	if c.Database.QueryTimeout <= 0 {
		return fmt.Errorf("DUCKDB_QUERY_TIMEOUT must be positive, got %v", c.Database.QueryTimeout)
	}
	return nil
}

func (c *Config) validateRecommend() error {
	r := &c.Recommend
	if r.Enabled && r.TrainInterval < time.Minute {
		return fmt.Errorf("RECOMMEND_TRAIN_INTERVAL must be at least 1m, got %v", r.TrainInterval)
	}
	if r.TrainTimeout <= 0 {
		return fmt.Errorf("RECOMMEND_TRAIN_TIMEOUT must be positive, got %v", r.TrainTimeout)
	}
	if r.MaxFeatures < 1 {
		return fmt.Errorf("RECOMMEND_MAX_FEATURES must be >= 1, got %d", r.MaxFeatures)
	}
	if r.Components < 1 {
		return fmt.Errorf("RECOMMEND_COMPONENTS must be >= 1, got %d", r.Components)
	}
	if r.DefaultK < 1 || r.MaxK < r.DefaultK {
		return fmt.Errorf("RECOMMEND_DEFAULT_K (%d) must be >= 1 and <= RECOMMEND_MAX_K (%d)", r.DefaultK, r.MaxK)
	}
	if r.PersonalizedTopN < 1 {
		return fmt.Errorf("RECOMMEND_PERSONALIZED_TOP_N must be >= 1, got %d", r.PersonalizedTopN)
	}
	if r.CacheTTL < 0 {
		return fmt.Errorf("RECOMMEND_CACHE_TTL must be >= 0, got %v", r.CacheTTL)
	}
	return nil
}

func (c *Config) validateRegistry() error {
	if strings.TrimSpace(c.Registry.ModelPath) == "" {
		return fmt.Errorf("MODEL_PATH is required")
	}
	if c.Registry.KeepVersions < 1 {
		return fmt.Errorf("REGISTRY_KEEP_VERSIONS must be >= 1, got %d", c.Registry.KeepVersions)
	}
	return nil
}

func (c *Config) validateMessaging() error {
	if c.Messaging.SendRate <= 0 {
		return fmt.Errorf("MESSAGE_SEND_RATE must be positive, got %v", c.Messaging.SendRate)
	}
	if c.Messaging.SendBurst < 1 {
		return fmt.Errorf("MESSAGE_SEND_BURST must be >= 1, got %d", c.Messaging.SendBurst)
	}
	return nil
}

func (c *Config) validateSecurity() error {
	switch c.Security.AuthMode {
	case "none":
	case "jwt":
		if len(c.Security.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters when AUTH_MODE=jwt")
		}
	default:
		return fmt.Errorf("AUTH_MODE must be none or jwt, got %q", c.Security.AuthMode)
	}
	if c.Server.IsProduction() && c.Security.AuthMode == "none" {
		return fmt.Errorf("AUTH_MODE=none is not allowed when ENVIRONMENT=production")
	}
	if !c.Security.RateLimitDisabled {
		if c.Security.RateLimitReqs < 1 {
			return fmt.Errorf("RATE_LIMIT_REQUESTS must be >= 1, got %d", c.Security.RateLimitReqs)
		}
		if c.Security.RateLimitWindow <= 0 {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %v", c.Security.RateLimitWindow)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be trace, debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
