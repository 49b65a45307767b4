package npk

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCalibrateGenericBaseValues(t *testing.T) {
	// Zero indices leave only the base coefficients.
	est := Calibrate("GENERIC", Indices{})
	if !almostEqual(est.NitrogenKgHa, 18.0) {
		t.Fatalf("nitrogen base: got %v", est.NitrogenKgHa)
	}
	if !almostEqual(est.PhosphorusKgHa, 8.0) {
		t.Fatalf("phosphorus base: got %v", est.PhosphorusKgHa)
	}
	if !almostEqual(est.PotassiumKgHa, 22.0) {
		t.Fatalf("potassium base: got %v", est.PotassiumKgHa)
	}
}

func TestCalibrateAppliesCropMultipliers(t *testing.T) {
	idx := Indices{NDVI: 0.5, NDMI: 0.4, SAVI: 0.3}

	generic := Calibrate("GENERIC", idx)
	rice := Calibrate("RICE", idx)

	if !almostEqual(rice.NitrogenKgHa, generic.NitrogenKgHa*1.5) {
		t.Fatalf("rice nitrogen multiplier: got %v want %v", rice.NitrogenKgHa, generic.NitrogenKgHa*1.5)
	}
	if !almostEqual(rice.PhosphorusKgHa, generic.PhosphorusKgHa*1.3) {
		t.Fatalf("rice phosphorus multiplier: got %v", rice.PhosphorusKgHa)
	}
}

func TestCalibrateUnknownCropFallsBackToGeneric(t *testing.T) {
	idx := Indices{NDVI: 0.5, NDMI: 0.4, SAVI: 0.3}
	if Calibrate("DRAGONFRUIT", idx) != Calibrate("GENERIC", idx) {
		t.Fatalf("unknown crop must use generic multipliers")
	}
}

func TestCalibrateNormalizesCropName(t *testing.T) {
	idx := Indices{NDVI: 0.5, NDMI: 0.4, SAVI: 0.3}
	if Calibrate("  wheat ", idx) != Calibrate("WHEAT", idx) {
		t.Fatalf("crop name must be trimmed and upper-cased")
	}
}

func TestCalibrateClampsIndices(t *testing.T) {
	noisy := Calibrate("GENERIC", Indices{NDVI: -0.7, NDMI: -1, SAVI: -0.2})
	clean := Calibrate("GENERIC", Indices{})
	if noisy != clean {
		t.Fatalf("negative indices must clamp to zero: %+v vs %+v", noisy, clean)
	}

	over := Calibrate("GENERIC", Indices{NDVI: 1.8, NDMI: 2, SAVI: 3})
	full := Calibrate("GENERIC", Indices{NDVI: 1, NDMI: 1, SAVI: 1})
	if over != full {
		t.Fatalf("indices above one must clamp: %+v vs %+v", over, full)
	}
}

func TestConfidenceTiers(t *testing.T) {
	cases := []struct {
		ndvi float64
		want float64
	}{
		{0.7, 0.9},
		{0.5, 0.9},
		{0.4, 0.75},
		{0.2, 0.6},
		{0.05, 0.45},
	}
	for _, tc := range cases {
		est := Calibrate("GENERIC", Indices{NDVI: tc.ndvi})
		if est.Confidence != tc.want {
			t.Fatalf("ndvi=%v: confidence %v, want %v", tc.ndvi, est.Confidence, tc.want)
		}
	}
}
