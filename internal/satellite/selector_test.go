package satellite

import "testing"

func chainNames(descs []Descriptor) []string {
	names := make([]string, len(descs))
	for i, d := range descs {
		names[i] = d.Name
	}
	return names
}

func assertOrder(t *testing.T, got []Descriptor, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("chain length %d, want %d (%v)", len(got), len(want), chainNames(got))
	}
	for i := range want {
		if got[i].Name != want[i] {
			t.Fatalf("position %d: got %s, want %s (full: %v)", i, got[i].Name, want[i], chainNames(got))
		}
	}
}

func TestReorderDefaultOrder(t *testing.T) {
	out := Reorder(DefaultDescriptors(), SelectionContext{})
	assertOrder(t, out, SourceSentinel, SourceLandsat, SourceMODIS, SourceICAR)
}

func TestReorderHeavyCloudPromotesCloudTolerant(t *testing.T) {
	out := Reorder(DefaultDescriptors(), SelectionContext{Weather: WeatherHeavyCloud})
	assertOrder(t, out, SourceMODIS, SourceSentinel, SourceLandsat, SourceICAR)
}

func TestReorderSparseCoveragePromotesBaseline(t *testing.T) {
	out := Reorder(DefaultDescriptors(), SelectionContext{Remoteness: CoverageSparse})
	assertOrder(t, out, SourceICAR, SourceSentinel, SourceLandsat, SourceMODIS)
}

func TestReorderHighValuePromotesFinestResolution(t *testing.T) {
	// With sparse coverage too: rule 3 runs after rule 2, so the finest
	// source ends up ahead of the promoted baseline.
	out := Reorder(DefaultDescriptors(), SelectionContext{
		Remoteness: CoverageSparse,
		CropValue:  ValueHigh,
	})
	assertOrder(t, out, SourceSentinel, SourceICAR, SourceLandsat, SourceMODIS)
}

func TestReorderRapidGrowthPromotesShortestRevisit(t *testing.T) {
	out := Reorder(DefaultDescriptors(), SelectionContext{Growth: GrowthRapid})
	assertOrder(t, out, SourceMODIS, SourceSentinel, SourceLandsat, SourceICAR)
}

func TestReorderLaterRuleWinsTheFront(t *testing.T) {
	// High-value crop that also grows rapidly: rule 4 promotes MODIS
	// over the sentinel promotion of rule 3.
	out := Reorder(DefaultDescriptors(), SelectionContext{
		CropValue: ValueHigh,
		Growth:    GrowthRapid,
	})
	assertOrder(t, out, SourceMODIS, SourceSentinel, SourceLandsat, SourceICAR)
}

func TestReorderExcludesNamedProviders(t *testing.T) {
	out := Reorder(DefaultDescriptors(), SelectionContext{
		Exclude: []string{SourceSentinel, SourceLandsat},
	})
	assertOrder(t, out, SourceMODIS, SourceICAR)
}

func TestReorderDoesNotMutateInput(t *testing.T) {
	chain := DefaultDescriptors()
	_ = Reorder(chain, SelectionContext{Weather: WeatherHeavyCloud})
	assertOrder(t, chain, SourceSentinel, SourceLandsat, SourceMODIS, SourceICAR)
}

func TestContextForDerivesClasses(t *testing.T) {
	q := Query{Crop: "tomato"}
	sc := ContextFor(q, "Cloudy", true)

	if sc.Weather != WeatherHeavyCloud {
		t.Fatalf("expected heavy cloud class")
	}
	if sc.Remoteness != CoverageSparse {
		t.Fatalf("expected sparse coverage class")
	}
	if sc.Growth != GrowthRapid {
		t.Fatalf("tomato is a rapid-growth crop")
	}
	if sc.CropValue != ValueStandard {
		t.Fatalf("tomato is not a high-value crop")
	}

	sc = ContextFor(Query{Crop: "RICE"}, "clear", false)
	if sc.CropValue != ValueHigh {
		t.Fatalf("rice is a high-value crop")
	}
	if sc.Weather != WeatherClear || sc.Remoteness != CoverageNormal {
		t.Fatalf("unexpected classes: %+v", sc)
	}
}
