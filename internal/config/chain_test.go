package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"nutrigate/internal/satellite"
)

const validChainYAML = `
providers:
  - rank: 1
    name: sentinel-2
    resolution: 10m
    resolution_m: 10
    revisit_days: 5
    timeout_seconds: 30
    max_retries: 2
    data_quality: excellent
    confidence: 0.95
    base_url: https://imagery.example.com
  - rank: 2
    name: icar-baseline
    resolution: village-level
    baseline: true
    data_quality: basic
    confidence: 0.55
`

func TestParseChain(t *testing.T) {
	descs, err := parseChain([]byte(validChainYAML))
	if err != nil {
		t.Fatalf("parseChain: %v", err)
	}
	if len(descs) != 2 {
		t.Fatalf("expected 2 descriptors, got %d", len(descs))
	}

	d := descs[0]
	if d.Name != "sentinel-2" || d.Rank != 1 {
		t.Fatalf("unexpected descriptor: %+v", d)
	}
	if d.AttemptTimeout != 30*time.Second {
		t.Fatalf("timeout_seconds not converted: %v", d.AttemptTimeout)
	}
	if d.BaseURL != "https://imagery.example.com" {
		t.Fatalf("base_url not carried: %q", d.BaseURL)
	}
	if !descs[1].Baseline {
		t.Fatalf("baseline flag lost")
	}
}

func TestParseChainRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"empty", `providers: []`},
		{"no baseline", "providers:\n  - rank: 1\n    name: sentinel-2\n"},
		{"missing name", "providers:\n  - rank: 1\n    baseline: true\n"},
		{"zero rank", "providers:\n  - rank: 0\n    name: x\n    baseline: true\n"},
		{"duplicate name", "providers:\n  - rank: 1\n    name: x\n    baseline: true\n  - rank: 2\n    name: x\n"},
		{"bad yaml", `providers: [`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := parseChain([]byte(tc.yaml)); err == nil {
				t.Fatalf("expected error for %s", tc.name)
			}
		})
	}
}

func TestDescriptorsDefaultsAndBaseURLInheritance(t *testing.T) {
	cfg := &AppConfig{SceneBaseURL: "https://scenes.example.com"}

	descs, err := cfg.Descriptors()
	if err != nil {
		t.Fatalf("Descriptors: %v", err)
	}
	if len(descs) != len(satellite.DefaultDescriptors()) {
		t.Fatalf("expected the built-in chain, got %d entries", len(descs))
	}
	for _, d := range descs {
		if d.Baseline {
			if d.BaseURL != "" {
				t.Fatalf("baseline must not get a base URL: %+v", d)
			}
			continue
		}
		if d.BaseURL != "https://scenes.example.com" {
			t.Fatalf("%s did not inherit the scene base URL: %q", d.Name, d.BaseURL)
		}
	}
}

func TestDescriptorsFromChainFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chain.yaml")
	if err := os.WriteFile(path, []byte(validChainYAML), 0o644); err != nil {
		t.Fatalf("write chain file: %v", err)
	}

	cfg := &AppConfig{ChainFile: path, SceneBaseURL: "https://scenes.example.com"}
	descs, err := cfg.Descriptors()
	if err != nil {
		t.Fatalf("Descriptors: %v", err)
	}
	if len(descs) != 2 {
		t.Fatalf("expected chain file to override defaults, got %d", len(descs))
	}
	// Explicit base_url wins over inheritance.
	if descs[0].BaseURL != "https://imagery.example.com" {
		t.Fatalf("explicit base_url overridden: %q", descs[0].BaseURL)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("default port: %q", cfg.Port)
	}
	if cfg.CacheTTL != 24*time.Hour {
		t.Fatalf("default cache TTL: %v", cfg.CacheTTL)
	}
	if cfg.RateMaxPerMinute != 60 || cfg.RateMaxPerHour != 1000 {
		t.Fatalf("default rate limits: %d/%d", cfg.RateMaxPerMinute, cfg.RateMaxPerHour)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CACHE_TTL", "30m")
	t.Setenv("RATE_MAX_PER_MINUTE", "5")
	t.Setenv("PARALLEL_ATTEMPTS", "2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CacheTTL != 30*time.Minute {
		t.Fatalf("CACHE_TTL override: %v", cfg.CacheTTL)
	}
	if cfg.RateMaxPerMinute != 5 {
		t.Fatalf("RATE_MAX_PER_MINUTE override: %d", cfg.RateMaxPerMinute)
	}
	if cfg.ParallelAttempts != 2 {
		t.Fatalf("PARALLEL_ATTEMPTS override: %d", cfg.ParallelAttempts)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("CACHE_TTL", "soon")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid duration")
	}
}
