// Package npk turns vegetation indices into per-hectare nutrient
// estimates. The formulas are pure transforms; the orchestration layer
// invokes Calibrate on the winning provider observation but knows
// nothing about the coefficients.
package npk

import "strings"

// Indices are the normalized vegetation/moisture indices a satellite
// provider derives for a field.
type Indices struct {
	NDVI float64 `json:"ndvi"`
	NDMI float64 `json:"ndmi"`
	SAVI float64 `json:"savi"`
}

// Estimate is a calibrated nutrient availability estimate.
type Estimate struct {
	NitrogenKgHa   float64 `json:"nitrogenKgHa"`
	PhosphorusKgHa float64 `json:"phosphorusKgHa"`
	PotassiumKgHa  float64 `json:"potassiumKgHa"`
	SOCPercent     float64 `json:"socPercent"`
	Confidence     float64 `json:"confidence"`
}

// cropMultipliers scale the index-derived base values for crop demand.
type cropMultipliers struct {
	nitrogen   float64
	phosphorus float64
	potassium  float64
	soc        float64
}

var cropTable = map[string]cropMultipliers{
	"RICE":      {1.5, 1.3, 1.2, 1.2},
	"WHEAT":     {1.4, 1.2, 2.5, 1.0},
	"CORN":      {1.8, 2.0, 1.6, 1.2},
	"COTTON":    {1.5, 1.8, 1.4, 1.1},
	"SUGARCANE": {5.0, 1.53, 1.22, 1.79},
	"SOYBEAN":   {0.9, 1.4, 1.3, 1.1},
	"POTATO":    {1.3, 1.5, 1.9, 1.0},
	"TOMATO":    {1.4, 1.6, 1.7, 1.0},
	"GENERIC":   {1.0, 1.0, 1.0, 0.9},
}

// Index-to-nutrient base coefficients (kg/ha at full canopy).
const (
	nitrogenNDVI = 120.0
	nitrogenNDMI = 35.0
	nitrogenBase = 18.0

	phosphorusNDVI = 42.0
	phosphorusSAVI = 16.0
	phosphorusBase = 8.0

	potassiumNDVI = 95.0
	potassiumNDMI = 28.0
	potassiumBase = 22.0

	socNDVI = 0.9
	socNDMI = 0.3
	socBase = 0.35
)

// Calibrate maps indices to an Estimate for the given crop. Unknown
// crops fall back to the generic multipliers. Indices are clamped to
// [0,1] first so a noisy scene cannot produce negative nutrients.
func Calibrate(crop string, idx Indices) Estimate {
	mult, ok := cropTable[strings.ToUpper(strings.TrimSpace(crop))]
	if !ok {
		mult = cropTable["GENERIC"]
	}

	ndvi := clamp01(idx.NDVI)
	ndmi := clamp01(idx.NDMI)
	savi := clamp01(idx.SAVI)

	return Estimate{
		NitrogenKgHa:   (nitrogenBase + nitrogenNDVI*ndvi + nitrogenNDMI*ndmi) * mult.nitrogen,
		PhosphorusKgHa: (phosphorusBase + phosphorusNDVI*ndvi + phosphorusSAVI*savi) * mult.phosphorus,
		PotassiumKgHa:  (potassiumBase + potassiumNDVI*ndvi + potassiumNDMI*ndmi) * mult.potassium,
		SOCPercent:     (socBase + socNDVI*ndvi + socNDMI*ndmi) * mult.soc,
		Confidence:     confidenceFor(ndvi),
	}
}

// confidenceFor degrades confidence when vegetation signal is weak;
// bare-soil scenes carry much less nutrient information.
func confidenceFor(ndvi float64) float64 {
	switch {
	case ndvi >= 0.5:
		return 0.9
	case ndvi >= 0.3:
		return 0.75
	case ndvi >= 0.15:
		return 0.6
	default:
		return 0.45
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
