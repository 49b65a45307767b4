package satellite

import "time"

// Canonical source names. These appear in cache keys, stats and
// response metadata, so they are fixed here rather than configured.
const (
	SourceSentinel = "sentinel-2"
	SourceLandsat  = "landsat-8/9"
	SourceMODIS    = "modis"
	SourceICAR     = "icar-baseline"
)

// DefaultDescriptors is the built-in fallback chain, used when no
// chain file is configured. Ranks define both the default walk order
// and the fallback level reported in stats.
func DefaultDescriptors() []Descriptor {
	return []Descriptor{
		{
			Rank:           1,
			Name:           SourceSentinel,
			Resolution:     "10m",
			ResolutionM:    10,
			RevisitDays:    5,
			AttemptTimeout: 30 * time.Second,
			MaxRetries:     2,
			DataQuality:    "excellent",
			Confidence:     0.95,
		},
		{
			Rank:           2,
			Name:           SourceLandsat,
			Resolution:     "30m",
			ResolutionM:    30,
			RevisitDays:    16,
			AttemptTimeout: 30 * time.Second,
			MaxRetries:     2,
			DataQuality:    "good",
			Confidence:     0.85,
		},
		{
			Rank:           3,
			Name:           SourceMODIS,
			Resolution:     "250m",
			ResolutionM:    250,
			RevisitDays:    1,
			AttemptTimeout: 20 * time.Second,
			MaxRetries:     1,
			CloudTolerant:  true,
			DataQuality:    "moderate",
			Confidence:     0.7,
		},
		{
			Rank:        4,
			Name:        SourceICAR,
			Resolution:  "village-level",
			RevisitDays: 0,
			Baseline:    true,
			DataQuality: "basic",
			Confidence:  0.55,
		},
	}
}
