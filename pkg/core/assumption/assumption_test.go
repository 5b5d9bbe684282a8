package assumption

import (
	"math"
	"testing"

	"dcfengine/pkg/core/normalize"
	"dcfengine/pkg/models"
)

func builderFromHistory(t *testing.T, raw models.RawHistory, mkt models.MarketData) *Builder {
	t.Helper()
	res, err := normalize.Normalize("acme", raw)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	return NewBuilder(res, mkt)
}

func TestBuildDefaultsFromTrailingAverages(t *testing.T) {
	raw := models.RawHistory{
		2021: {"revenue": 800.0, "ebit": 160.0},
		2022: {"revenue": 880.0, "ebit": 176.0},
		2023: {"revenue": 968.0, "ebit": 193.6},
	}
	b := builderFromHistory(t, raw, models.MarketData{})
	a := b.Build(Overrides{})

	// Growth was exactly 10% both years; margin 20% all three years.
	for i, g := range a.RevenueGrowth {
		if math.Abs(g-0.10) > 1e-9 {
			t.Errorf("Year %d growth: expected 0.10, got %f", i+1, g)
		}
	}
	for i, m := range a.EBITMargin {
		if math.Abs(m-0.20) > 1e-9 {
			t.Errorf("Year %d margin: expected 0.20, got %f", i+1, m)
		}
	}
	if a.ForecastYears != DefaultForecastYears {
		t.Errorf("Expected %d forecast years, got %d", DefaultForecastYears, a.ForecastYears)
	}
	if err := a.Validate(); err != nil {
		t.Errorf("Built assumptions failed validation: %v", err)
	}
}

func TestBuildClampsDerivedButNotOverrides(t *testing.T) {
	// 100% growth history is clamped to GrowthMax for the default.
	raw := models.RawHistory{
		2022: {"revenue": 500.0, "ebit": 100.0},
		2023: {"revenue": 1000.0, "ebit": 200.0},
	}
	b := builderFromHistory(t, raw, models.MarketData{})

	a := b.Build(Overrides{})
	if a.RevenueGrowth[0] != b.Bounds.GrowthMax {
		t.Errorf("Expected derived growth clamped to %f, got %f", b.Bounds.GrowthMax, a.RevenueGrowth[0])
	}

	// An explicit override is taken at face value, outside the bounds.
	a = b.Build(Overrides{RevenueGrowth: []float64{0.45}})
	if a.RevenueGrowth[0] != 0.45 {
		t.Errorf("Expected override growth 0.45 unclamped, got %f", a.RevenueGrowth[0])
	}
	// Short override list extends with its last value.
	if a.RevenueGrowth[4] != 0.45 {
		t.Errorf("Expected extended override 0.45 in year 5, got %f", a.RevenueGrowth[4])
	}
}

func TestCapitalWeightsFallbacks(t *testing.T) {
	raw := models.RawHistory{
		2023: {"revenue": 1000.0, "ebit": 200.0, "total_debt": 300.0, "total_equity": 700.0, "total_assets": 1500.0},
	}

	// Market cap present: weights from market equity vs book debt.
	b := builderFromHistory(t, raw, models.MarketData{MarketCap: models.F(1200.0)})
	a := b.Build(Overrides{})
	if math.Abs(a.WeightEquity-0.8) > 1e-9 || math.Abs(a.WeightDebt-0.2) > 1e-9 {
		t.Errorf("Expected weights 0.8/0.2, got %f/%f", a.WeightEquity, a.WeightDebt)
	}

	// No market data: book equity 700 vs debt 300.
	b = builderFromHistory(t, raw, models.MarketData{})
	a = b.Build(Overrides{})
	if math.Abs(a.WeightEquity-0.7) > 1e-9 {
		t.Errorf("Expected book-equity weight 0.7, got %f", a.WeightEquity)
	}

	// Nothing observable at all: 70/30 convention.
	b = builderFromHistory(t, models.RawHistory{2023: {"revenue": 1000.0, "ebit": 200.0}}, models.MarketData{})
	a = b.Build(Overrides{})
	if a.WeightEquity != 0.7 || a.WeightDebt != 0.3 {
		t.Errorf("Expected 70/30 fallback, got %f/%f", a.WeightEquity, a.WeightDebt)
	}
}

func TestApplyDelta(t *testing.T) {
	base := Assumptions{
		Scenario:      "base",
		ForecastYears: 2,
		RevenueGrowth: []float64{0.10, 0.10},
		EBITMargin:    []float64{0.20, 0.20},
		TaxRate:       0.25,
		Beta:          1.0,
	}

	bull := ApplyDelta(base, "bull", Delta{GrowthMult: 1.5, MarginMult: 1.2})
	if bull.Scenario != "bull" {
		t.Errorf("Expected scenario name bull, got %q", bull.Scenario)
	}
	if math.Abs(bull.RevenueGrowth[0]-0.15) > 1e-9 {
		t.Errorf("Expected bull growth 0.15, got %f", bull.RevenueGrowth[0])
	}
	if math.Abs(bull.EBITMargin[0]-0.24) > 1e-9 {
		t.Errorf("Expected bull margin 0.24, got %f", bull.EBITMargin[0])
	}

	// Base must be untouched: ApplyDelta works on a clone.
	if base.RevenueGrowth[0] != 0.10 || base.Scenario != "base" {
		t.Error("ApplyDelta mutated the base assumptions")
	}

	// Zero-valued multiplicative fields mean identity, not zero-out.
	bear := ApplyDelta(base, "bear", Delta{GrowthAdd: -0.05})
	if math.Abs(bear.RevenueGrowth[0]-0.05) > 1e-9 {
		t.Errorf("Expected bear growth 0.05, got %f", bear.RevenueGrowth[0])
	}
	if math.Abs(bear.EBITMargin[0]-0.20) > 1e-9 {
		t.Errorf("Margin with no delta must be unchanged, got %f", bear.EBITMargin[0])
	}
}

func TestCloneIsDeep(t *testing.T) {
	a := Assumptions{
		RevenueGrowth: []float64{0.1},
		EBITMargin:    []float64{0.2},
		ExitMultiple:  models.F(10.0),
	}
	c := a.Clone()
	c.RevenueGrowth[0] = 0.9
	*c.ExitMultiple = 99

	if a.RevenueGrowth[0] != 0.1 {
		t.Error("Clone shares the growth slice with its source")
	}
	if *a.ExitMultiple != 10 {
		t.Error("Clone shares the exit multiple pointer with its source")
	}
}
