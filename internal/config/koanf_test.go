// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Recommend.MaxFeatures != 5000 {
		t.Errorf("Recommend.MaxFeatures = %d, want 5000", cfg.Recommend.MaxFeatures)
	}
	if cfg.Recommend.Components != 50 {
		t.Errorf("Recommend.Components = %d, want 50", cfg.Recommend.Components)
	}
	if cfg.Recommend.DefaultK != 10 {
		t.Errorf("Recommend.DefaultK = %d, want 10", cfg.Recommend.DefaultK)
	}
	if cfg.Recommend.PersonalizedTopN != 5 {
		t.Errorf("Recommend.PersonalizedTopN = %d, want 5", cfg.Recommend.PersonalizedTopN)
	}
	if cfg.Recommend.TrainInterval != 24*time.Hour {
		t.Errorf("Recommend.TrainInterval = %v, want 24h", cfg.Recommend.TrainInterval)
	}
	if cfg.Recommend.ExcludeRated {
		t.Error("Recommend.ExcludeRated should default to false")
	}
	if cfg.Security.AuthMode != "none" {
		t.Errorf("Security.AuthMode = %q, want none", cfg.Security.AuthMode)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig().Validate() = %v", err)
	}
}

func TestLoadWithKoanf_EnvOverrides(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("RECOMMEND_TRAIN_INTERVAL", "6h")
	t.Setenv("RECOMMEND_EXCLUDE_RATED", "true")
	t.Setenv("CORS_ORIGINS", "https://crm.example.com, https://admin.example.com")
	t.Setenv("SOME_UNRELATED_VAR", "ignored")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Recommend.TrainInterval != 6*time.Hour {
		t.Errorf("Recommend.TrainInterval = %v, want 6h", cfg.Recommend.TrainInterval)
	}
	if !cfg.Recommend.ExcludeRated {
		t.Error("Recommend.ExcludeRated = false, want true")
	}
	if len(cfg.Security.CORSOrigins) != 2 || cfg.Security.CORSOrigins[1] != "https://admin.example.com" {
		t.Errorf("Security.CORSOrigins = %v", cfg.Security.CORSOrigins)
	}
}

func TestLoadWithKoanf_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
database:
  path: ":memory:"
recommend:
  components: 20
  default_k: 5
registry:
  model_path: /tmp/models
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Database.Path != ":memory:" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Recommend.Components != 20 {
		t.Errorf("Recommend.Components = %d, want 20", cfg.Recommend.Components)
	}
	if cfg.Recommend.MaxFeatures != 5000 {
		t.Errorf("Recommend.MaxFeatures = %d, default lost", cfg.Recommend.MaxFeatures)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, env should win over file", cfg.Logging.Level)
	}
}

func TestLoadWithKoanf_Invalid(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("AUTH_MODE", "jwt")
	t.Setenv("JWT_SECRET", "short")

	if _, err := LoadWithKoanf(); err == nil {
		t.Fatal("LoadWithKoanf() expected error for short JWT secret")
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"HTTP_PORT", "server.port"},
		{"MODEL_PATH", "registry.model_path"},
		{"recommend_max_features", "recommend.max_features"},
		{"PATH", ""},
	}
	for _, tt := range tests {
		if got := envTransformFunc(tt.in); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
