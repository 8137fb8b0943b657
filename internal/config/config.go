// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

// Package config loads crmrec configuration from defaults, an optional YAML
// file, and environment variables (highest priority) using koanf.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Recommend RecommendConfig `koanf:"recommend"`
	Registry  RegistryConfig  `koanf:"registry"`
	Messaging MessagingConfig `koanf:"messaging"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"` // development, staging, production
}

// DatabaseConfig holds DuckDB settings for the interaction store and the
// precomputed recommendation fact table.
type DatabaseConfig struct {
	Path         string        `koanf:"path"` // ":memory:" for an ephemeral database
	MaxMemory    string        `koanf:"max_memory"`
	Threads      int           `koanf:"threads"` // 0 = runtime.NumCPU()
	QueryTimeout time.Duration `koanf:"query_timeout"`
	SeedDemoData bool          `koanf:"seed_demo_data"`
}

// RecommendConfig controls model training and inference.
type RecommendConfig struct {
	// Enabled turns the retraining service on. Recommenders still lazy-train
	// on first use when it is off.
	Enabled bool `koanf:"enabled"`

	// TrainInterval is the period between scheduled retraining runs.
	// Default: 24h
	TrainInterval time.Duration `koanf:"train_interval"`

	// TrainOnStartup runs one training pass as soon as the service starts.
	TrainOnStartup bool `koanf:"train_on_startup"`

	// TrainTimeout bounds a single training pass.
	// Default: 30m
	TrainTimeout time.Duration `koanf:"train_timeout"`

	// MaxFeatures caps the TF-IDF vocabulary.
	// Default: 5000
	MaxFeatures int `koanf:"max_features"`

	// Components is the requested SVD rank before clamping to min(dims)-1.
	// Default: 50
	Components int `koanf:"components"`

	DefaultK         int `koanf:"default_k"`
	MaxK             int `koanf:"max_k"`
	PersonalizedTopN int `koanf:"personalized_top_n"`

	// ExcludeRated drops items the user already rated from collaborative
	// results. The personalized path always excludes them.
	// Default: false
	ExcludeRated bool `koanf:"exclude_rated"`

	// CacheTTL is how long served results are cached. Training clears the cache.
	// Default: 5m
	CacheTTL time.Duration `koanf:"cache_ttl"`

	// FactBreakerTimeout is how long the fact-table circuit stays open.
	FactBreakerTimeout time.Duration `koanf:"fact_breaker_timeout"`
}

// RegistryConfig holds model artifact storage settings.
type RegistryConfig struct {
	// ModelPath is the directory holding gob+gzip artifacts.
	ModelPath string `koanf:"model_path"`

	// IndexPath is the BadgerDB directory holding the registry index.
	// Empty runs the index in memory.
	IndexPath string `koanf:"index_path"`

	// KeepVersions is how many versions per model survive a prune.
	// Default: 3
	KeepVersions int `koanf:"keep_versions"`
}

// MessagingConfig controls outbound customer messages.
type MessagingConfig struct {
	// SendRate is the sustained number of messages per second.
	SendRate float64 `koanf:"send_rate"`
	SendBurst int    `koanf:"send_burst"`
}

// SecurityConfig holds authentication and request limiting settings.
type SecurityConfig struct {
	AuthMode          string        `koanf:"auth_mode"` // none, jwt
	JWTSecret         string        `koanf:"jwt_secret"`
	SessionTimeout    time.Duration `koanf:"session_timeout"`
	RateLimitReqs     int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig holds zerolog settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load reads configuration in order of increasing priority:
//  1. Built-in defaults
//  2. Config file (CONFIG_PATH or one of DefaultConfigPaths)
//  3. Environment variables
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// Addr returns the host:port listen address.
func (s *ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// IsProduction reports whether the server runs in production mode.
func (s *ServerConfig) IsProduction() bool {
	return s.Environment == "production"
}
