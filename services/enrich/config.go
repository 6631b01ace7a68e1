// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package enrich

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Service Configuration
// =============================================================================

// ServiceConfig holds the enrichment service's configuration.
//
// Description:
//
//	Loaded from an optional YAML file, then overridden by environment
//	variables. A missing config file is not an error: defaults plus the
//	environment are enough to run the service.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type ServiceConfig struct {
	// PrimaryModel is the model used for first-pass enrichment calls.
	// Empty means the provider client's own default model.
	PrimaryModel string `yaml:"primary_model"`

	// FallbackModel is the model used for escalation calls. Empty means
	// escalation reuses the primary model.
	FallbackModel string `yaml:"fallback_model"`

	// BatchSize is the number of items per completion call.
	BatchSize int `yaml:"batch_size"`

	// BatchConcurrency bounds how many batches run at once.
	BatchConcurrency int `yaml:"batch_concurrency"`

	// CallTimeoutSeconds is the per-call deadline for completion calls.
	CallTimeoutSeconds int `yaml:"call_timeout_seconds"`

	// MaxTokens limits each completion's length.
	MaxTokens int `yaml:"max_tokens"`

	// Temperature for completion calls.
	Temperature float32 `yaml:"temperature"`

	// RateLimitRPS throttles outbound completion calls. Zero disables
	// throttling.
	RateLimitRPS float64 `yaml:"rate_limit_rps"`

	// ReferencePath is the YAML file holding the grounding dataset.
	// Empty disables file-backed grounding.
	ReferencePath string `yaml:"reference_path"`

	// CacheDir is the on-disk completion cache location. Empty disables
	// caching.
	CacheDir string `yaml:"cache_dir"`

	// CacheTTLHours is the completion cache entry lifetime.
	CacheTTLHours int `yaml:"cache_ttl_hours"`
}

// DefaultServiceConfig returns the service defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		BatchSize:          DefaultBatchSize,
		BatchConcurrency:   1,
		CallTimeoutSeconds: 60,
		MaxTokens:          2048,
		Temperature:        0,
		CacheTTLHours:      24,
	}
}

// LoadServiceConfig loads configuration from a YAML file plus environment.
//
// Description:
//
//	Starts from defaults, overlays the YAML file if it exists, then
//	applies environment variable overrides. Only an unreadable or
//	malformed existing file is an error.
//
// Inputs:
//   - path: The config file path. Empty skips file loading entirely.
//
// Outputs:
//   - ServiceConfig: The resolved configuration.
//   - error: Non-nil if an existing file could not be read or parsed.
func LoadServiceConfig(path string) (ServiceConfig, error) {
	cfg := DefaultServiceConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			slog.Debug("config file not found, using defaults", slog.String("path", path))
		case err != nil:
			return cfg, fmt.Errorf("reading config file %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays ENRICH_* environment variables. Unparseable
// numeric values are logged and skipped rather than failing startup.
func (c *ServiceConfig) applyEnvOverrides() {
	if v := os.Getenv("ENRICH_PRIMARY_MODEL"); v != "" {
		c.PrimaryModel = v
	}
	if v := os.Getenv("ENRICH_FALLBACK_MODEL"); v != "" {
		c.FallbackModel = v
	}
	if v := os.Getenv("ENRICH_REFERENCE_PATH"); v != "" {
		c.ReferencePath = v
	}
	if v := os.Getenv("ENRICH_CACHE_DIR"); v != "" {
		c.CacheDir = v
	}
	overrideInt("ENRICH_BATCH_SIZE", &c.BatchSize)
	overrideInt("ENRICH_BATCH_CONCURRENCY", &c.BatchConcurrency)
	overrideInt("ENRICH_CALL_TIMEOUT_SECONDS", &c.CallTimeoutSeconds)
	overrideInt("ENRICH_MAX_TOKENS", &c.MaxTokens)
	overrideInt("ENRICH_CACHE_TTL_HOURS", &c.CacheTTLHours)
	if v := os.Getenv("ENRICH_RATE_LIMIT_RPS"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			slog.Warn("ignoring unparseable env override",
				slog.String("var", "ENRICH_RATE_LIMIT_RPS"),
				slog.String("value", v),
			)
		} else {
			c.RateLimitRPS = parsed
		}
	}
}

func overrideInt(name string, dst *int) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("ignoring unparseable env override",
			slog.String("var", name),
			slog.String("value", v),
		)
		return
	}
	*dst = parsed
}

// EngineConfig converts the service configuration into engine parameters.
func (c ServiceConfig) EngineConfig() EngineConfig {
	return EngineConfig{
		PrimaryModel:     c.PrimaryModel,
		FallbackModel:    c.FallbackModel,
		BatchSize:        c.BatchSize,
		BatchConcurrency: c.BatchConcurrency,
		CallTimeout:      time.Duration(c.CallTimeoutSeconds) * time.Second,
		MaxTokens:        c.MaxTokens,
		Temperature:      c.Temperature,
	}
}

// CacheTTL returns the completion cache entry lifetime as a duration.
func (c ServiceConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLHours) * time.Hour
}
