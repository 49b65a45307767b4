package providers

import (
	"context"

	"nutrigate/internal/npk"
	"nutrigate/internal/satellite"
)

// districtRow is one entry of the embedded ICAR soil survey table:
// district bounding box plus its surveyed soil nutrient averages.
type districtRow struct {
	name string

	latMin, latMax float64
	lonMin, lonMax float64

	nitrogen   float64 // kg/ha
	phosphorus float64 // kg/ha
	potassium  float64 // kg/ha
	soc        float64 // %
	confidence float64
}

func (r districtRow) contains(lat, lon float64) bool {
	return lat >= r.latMin && lat <= r.latMax && lon >= r.lonMin && lon <= r.lonMax
}

// icarTable holds the 2024-25 district survey averages. The last row
// is the catch-all for coordinates outside every surveyed district.
var icarTable = []districtRow{
	{
		name:   "Kanker",
		latMin: 20.16, latMax: 20.33,
		lonMin: 81.15, lonMax: 81.49,
		nitrogen: 248.0, phosphorus: 27.5, potassium: 173.0, soc: 0.62,
		confidence: 0.65,
	},
	{
		name:   "Rajnandgaon",
		latMin: 21.8, latMax: 21.9,
		lonMin: 81.9, lonMax: 82.1,
		nitrogen: 231.0, phosphorus: 24.2, potassium: 195.0, soc: 0.58,
		confidence: 0.65,
	},
}

// defaultRow covers coordinates with no surveyed district nearby.
var defaultRow = districtRow{
	name:     "regional-average",
	nitrogen: 200.0, phosphorus: 25.0, potassium: 150.0, soc: 1.5,
	confidence: 0.3,
}

// ICARProvider is the terminal fallback: a pure in-process lookup
// against the embedded district soil table. It performs no IO and
// never fails.
type ICARProvider struct {
	desc satellite.Descriptor
}

func NewICAR(d satellite.Descriptor) *ICARProvider {
	return &ICARProvider{desc: d}
}

func (p *ICARProvider) Descriptor() satellite.Descriptor { return p.desc }

// Fetch returns the district's surveyed soil values as a final
// estimate, bypassing calibration. Synthetic indices are derived from
// the soil values so the response shape matches the imagery sources.
func (p *ICARProvider) Fetch(_ context.Context, q satellite.Query) (satellite.Observation, error) {
	row := defaultRow
	for _, r := range icarTable {
		if r.contains(q.Latitude, q.Longitude) {
			row = r
			break
		}
	}

	est := npk.Estimate{
		NitrogenKgHa:   row.nitrogen,
		PhosphorusKgHa: row.phosphorus,
		PotassiumKgHa:  row.potassium,
		SOCPercent:     row.soc,
		Confidence:     row.confidence,
	}

	return satellite.Observation{
		Source:    p.desc.Name,
		SceneDate: q.Date,
		Indices:   syntheticIndices(row),
		Estimate:  &est,
	}, nil
}

// syntheticIndices back-derives plausible vegetation indices from the
// soil nutrients, mirroring how the imagery sources report them.
func syntheticIndices(row districtRow) npk.Indices {
	ndvi := clampRange(row.nitrogen/300.0*0.6+row.soc/2.0*0.4, 0.1, 0.8)
	ndmi := clampRange(row.soc/2.0*0.8-0.1, -0.2, 0.6)
	return npk.Indices{
		NDVI: ndvi,
		NDMI: ndmi,
		SAVI: ndvi * 0.9,
	}
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
