package satellite

import "strings"

// WeatherClass summarizes current weather at the target location.
type WeatherClass int

const (
	WeatherUnknown WeatherClass = iota
	WeatherClear
	WeatherHeavyCloud // heavy cloud or precipitation
)

// RemotenessClass summarizes how well a location is covered by ground
// reference data.
type RemotenessClass int

const (
	CoverageNormal RemotenessClass = iota
	CoverageSparse
)

// ValueClass marks high-value use cases that justify the most precise
// source.
type ValueClass int

const (
	ValueStandard ValueClass = iota
	ValueHigh
)

// GrowthClass marks crops that change fast enough to need the most
// frequently revisiting source.
type GrowthClass int

const (
	GrowthNormal GrowthClass = iota
	GrowthRapid
)

// SelectionContext carries the request-scoped signals the selection
// policy reorders the chain on. It is never persisted.
type SelectionContext struct {
	Weather    WeatherClass
	Remoteness RemotenessClass
	CropValue  ValueClass
	Growth     GrowthClass
	// Exclude names providers that are hard-excluded for this request
	// (e.g. flagged unavailable for the target region).
	Exclude []string
}

var highValueCrops = map[string]bool{
	"RICE": true, "WHEAT": true, "CORN": true,
	"VEGETABLES": true, "FRUITS": true,
}

var rapidGrowthCrops = map[string]bool{
	"LETTUCE": true, "SPINACH": true, "RADISH": true, "CUCUMBER": true,
	"TOMATO": true, "PEPPER": true, "HERBS": true, "MICROGREENS": true,
}

// ContextFor derives a SelectionContext from the query and an optional
// reported weather condition string.
func ContextFor(q Query, weather string, remote bool) SelectionContext {
	sc := SelectionContext{}

	switch strings.ToLower(strings.TrimSpace(weather)) {
	case "cloudy", "rainy", "overcast", "storm":
		sc.Weather = WeatherHeavyCloud
	case "clear", "sunny":
		sc.Weather = WeatherClear
	}

	if remote {
		sc.Remoteness = CoverageSparse
	}

	crop := strings.ToUpper(strings.TrimSpace(q.Crop))
	if highValueCrops[crop] {
		sc.CropValue = ValueHigh
	}
	if rapidGrowthCrops[crop] {
		sc.Growth = GrowthRapid
	}
	return sc
}

// Reorder applies the selection policy to the default chain and returns
// the sequence of providers to attempt for one request. It is a pure
// reordering: every descriptor stays a candidate unless named in
// sc.Exclude. Matching rules are applied in order, each promoting its
// class of provider to the front while preserving the relative order of
// the rest, so a later rule can re-promote over an earlier one.
func Reorder(chain []Descriptor, sc SelectionContext) []Descriptor {
	out := make([]Descriptor, 0, len(chain))
	excluded := make(map[string]bool, len(sc.Exclude))
	for _, name := range sc.Exclude {
		excluded[name] = true
	}
	for _, d := range chain {
		if !excluded[d.Name] {
			out = append(out, d)
		}
	}

	// Rule 1: heavy cloud favors cloud-tolerant sources over optical
	// high-resolution ones.
	if sc.Weather == WeatherHeavyCloud {
		out = promote(out, func(d Descriptor) bool { return d.CloudTolerant })
	}

	// Rule 2: sparse ground coverage favors the always-available
	// baseline over high-resolution satellites.
	if sc.Remoteness == CoverageSparse {
		out = promote(out, func(d Descriptor) bool { return d.Baseline })
	}

	// Rule 3: high-value use cases favor the sharpest source.
	if sc.CropValue == ValueHigh {
		if name, ok := finestResolution(out); ok {
			out = promote(out, func(d Descriptor) bool { return d.Name == name })
		}
	}

	// Rule 4: rapidly changing crops favor the most frequent revisit.
	if sc.Growth == GrowthRapid {
		if name, ok := shortestRevisit(out); ok {
			out = promote(out, func(d Descriptor) bool { return d.Name == name })
		}
	}

	return out
}

// promote stably moves every descriptor matching pred to the front.
func promote(chain []Descriptor, pred func(Descriptor) bool) []Descriptor {
	front := make([]Descriptor, 0, len(chain))
	rest := make([]Descriptor, 0, len(chain))
	for _, d := range chain {
		if pred(d) {
			front = append(front, d)
		} else {
			rest = append(rest, d)
		}
	}
	return append(front, rest...)
}

// finestResolution names the non-baseline provider with the smallest
// ground resolution.
func finestResolution(chain []Descriptor) (string, bool) {
	best := ""
	bestM := 0.0
	for _, d := range chain {
		if d.Baseline || d.ResolutionM <= 0 {
			continue
		}
		if best == "" || d.ResolutionM < bestM {
			best, bestM = d.Name, d.ResolutionM
		}
	}
	return best, best != ""
}

// shortestRevisit names the non-baseline provider with the most
// frequent revisit.
func shortestRevisit(chain []Descriptor) (string, bool) {
	best := ""
	bestDays := 0
	for _, d := range chain {
		if d.Baseline || d.RevisitDays <= 0 {
			continue
		}
		if best == "" || d.RevisitDays < bestDays {
			best, bestDays = d.Name, d.RevisitDays
		}
	}
	return best, best != ""
}
