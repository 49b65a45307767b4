package providers

import (
	"go.uber.org/zap"

	"nutrigate/internal/satellite"
)

// Build constructs a provider per descriptor: baseline descriptors get
// the in-process ICAR lookup, everything else an HTTP scene adapter.
func Build(descs []satellite.Descriptor, cfg ClientConfig, logger *zap.Logger) ([]satellite.Provider, error) {
	out := make([]satellite.Provider, 0, len(descs))
	for _, d := range descs {
		if d.Baseline {
			out = append(out, NewICAR(d))
			continue
		}
		p, err := NewScene(d, cfg, logger)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
