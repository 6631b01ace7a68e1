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
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadServiceConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadServiceConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("missing config file must not be an error: %v", err)
	}
	if cfg.BatchSize != DefaultBatchSize {
		t.Errorf("expected default batch size, got %d", cfg.BatchSize)
	}
	if cfg.CallTimeoutSeconds != 60 {
		t.Errorf("expected default call timeout, got %d", cfg.CallTimeoutSeconds)
	}
}

func TestLoadServiceConfig_FileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enrich.yaml")
	content := `
primary_model: cheap-model
fallback_model: strong-model
batch_size: 10
rate_limit_rps: 2.5
reference_path: /data/orgs.yaml
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadServiceConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.PrimaryModel != "cheap-model" || cfg.FallbackModel != "strong-model" {
		t.Errorf("expected models from file, got %q / %q", cfg.PrimaryModel, cfg.FallbackModel)
	}
	if cfg.BatchSize != 10 {
		t.Errorf("expected batch size 10, got %d", cfg.BatchSize)
	}
	if cfg.RateLimitRPS != 2.5 {
		t.Errorf("expected rate limit 2.5, got %v", cfg.RateLimitRPS)
	}
	// Unset file keys keep their defaults.
	if cfg.MaxTokens != 2048 {
		t.Errorf("expected default max tokens, got %d", cfg.MaxTokens)
	}
}

func TestLoadServiceConfig_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enrich.yaml")
	if err := os.WriteFile(path, []byte("batch_size: [not an int"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadServiceConfig(path); err == nil {
		t.Error("expected error for malformed config file")
	}
}

func TestLoadServiceConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ENRICH_PRIMARY_MODEL", "env-model")
	t.Setenv("ENRICH_BATCH_SIZE", "7")
	t.Setenv("ENRICH_RATE_LIMIT_RPS", "1.5")
	t.Setenv("ENRICH_CACHE_DIR", "/tmp/enrich-cache")

	cfg, err := LoadServiceConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.PrimaryModel != "env-model" {
		t.Errorf("expected env model, got %q", cfg.PrimaryModel)
	}
	if cfg.BatchSize != 7 {
		t.Errorf("expected env batch size, got %d", cfg.BatchSize)
	}
	if cfg.RateLimitRPS != 1.5 {
		t.Errorf("expected env rate limit, got %v", cfg.RateLimitRPS)
	}
	if cfg.CacheDir != "/tmp/enrich-cache" {
		t.Errorf("expected env cache dir, got %q", cfg.CacheDir)
	}
}

func TestLoadServiceConfig_UnparseableEnvIgnored(t *testing.T) {
	t.Setenv("ENRICH_BATCH_SIZE", "not-a-number")

	cfg, err := LoadServiceConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.BatchSize != DefaultBatchSize {
		t.Errorf("expected default kept for unparseable override, got %d", cfg.BatchSize)
	}
}

func TestServiceConfig_EngineConfig(t *testing.T) {
	cfg := DefaultServiceConfig()
	cfg.PrimaryModel = "a"
	cfg.FallbackModel = "b"
	cfg.CallTimeoutSeconds = 30

	ec := cfg.EngineConfig()
	if ec.PrimaryModel != "a" || ec.FallbackModel != "b" {
		t.Errorf("expected models carried over, got %q / %q", ec.PrimaryModel, ec.FallbackModel)
	}
	if ec.CallTimeout != 30*time.Second {
		t.Errorf("expected 30s call timeout, got %v", ec.CallTimeout)
	}
}
