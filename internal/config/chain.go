package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"nutrigate/internal/satellite"
)

// chainFile is the top-level structure of the provider-chain YAML.
type chainFile struct {
	Providers []providerEntry `yaml:"providers"`
}

type providerEntry struct {
	Rank           int     `yaml:"rank"`
	Name           string  `yaml:"name"`
	Resolution     string  `yaml:"resolution"`
	ResolutionM    float64 `yaml:"resolution_m"`
	RevisitDays    int     `yaml:"revisit_days"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	MaxRetries     int     `yaml:"max_retries"`
	CloudTolerant  bool    `yaml:"cloud_tolerant,omitempty"`
	Baseline       bool    `yaml:"baseline,omitempty"`
	DataQuality    string  `yaml:"data_quality"`
	Confidence     float64 `yaml:"confidence"`
	BaseURL        string  `yaml:"base_url,omitempty"`
}

// Descriptors resolves the fallback chain: the YAML file when
// configured, the built-in chain otherwise. Non-baseline entries
// without an explicit base_url inherit SceneBaseURL.
func (c *AppConfig) Descriptors() ([]satellite.Descriptor, error) {
	descs := satellite.DefaultDescriptors()

	if c.ChainFile != "" {
		loaded, err := loadChainFile(c.ChainFile)
		if err != nil {
			return nil, err
		}
		descs = loaded
	}

	for i := range descs {
		if !descs[i].Baseline && descs[i].BaseURL == "" {
			descs[i].BaseURL = c.SceneBaseURL
		}
	}
	return descs, nil
}

// loadChainFile reads, parses, and validates a YAML chain file.
func loadChainFile(path string) ([]satellite.Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chain file: %w", err)
	}
	return parseChain(data)
}

func parseChain(data []byte) ([]satellite.Descriptor, error) {
	var cf chainFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse chain yaml: %w", err)
	}
	if len(cf.Providers) == 0 {
		return nil, fmt.Errorf("chain yaml: no providers defined")
	}

	seen := make(map[string]bool, len(cf.Providers))
	hasBaseline := false
	descs := make([]satellite.Descriptor, 0, len(cf.Providers))

	for i, p := range cf.Providers {
		if p.Name == "" {
			return nil, fmt.Errorf("chain yaml: provider %d has no name", i)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("chain yaml: duplicate provider %q", p.Name)
		}
		seen[p.Name] = true
		if p.Rank <= 0 {
			return nil, fmt.Errorf("chain yaml: provider %q needs a positive rank", p.Name)
		}
		if p.Baseline {
			hasBaseline = true
		}

		descs = append(descs, satellite.Descriptor{
			Rank:           p.Rank,
			Name:           p.Name,
			Resolution:     p.Resolution,
			ResolutionM:    p.ResolutionM,
			RevisitDays:    p.RevisitDays,
			AttemptTimeout: time.Duration(p.TimeoutSeconds) * time.Second,
			MaxRetries:     p.MaxRetries,
			CloudTolerant:  p.CloudTolerant,
			Baseline:       p.Baseline,
			DataQuality:    p.DataQuality,
			Confidence:     p.Confidence,
			BaseURL:        p.BaseURL,
		})
	}

	if !hasBaseline {
		return nil, fmt.Errorf("chain yaml: a baseline provider is required")
	}
	return descs, nil
}
