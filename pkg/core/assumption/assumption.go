// Package assumption builds the immutable forward-looking parameter set for a
// valuation run. Each forward ratio defaults to the trailing 3-year average of
// the corresponding historical ratio, clamped to sane bounds; explicit
// overrides always win. Scenario variants apply configured deltas to the base
// set; nothing in this package mutates an Assumptions after it is built.
package assumption

import (
	"fmt"

	"dcfengine/pkg/core/normalize"
	"dcfengine/pkg/models"
)

// DefaultForecastYears is the standard explicit forecast horizon.
const DefaultForecastYears = 5

// trailingYears is the lookback for historical-average defaults.
const trailingYears = 3

// Assumptions is the fixed-shape record of scalar forward parameters for one
// scenario. Built once per run (or per scenario variant), immutable after.
type Assumptions struct {
	Scenario      string `json:"scenario"`
	ForecastYears int    `json:"forecast_years"`

	// Operating drivers
	RevenueGrowth   []float64 `json:"revenue_growth"` // per projection year
	EBITMargin      []float64 `json:"ebit_margin"`    // per projection year
	TaxRate         float64   `json:"tax_rate"`
	CapexPctRevenue float64   `json:"capex_pct_revenue"`
	DepPctRevenue   float64   `json:"dep_pct_revenue"`
	NWCPctRevenue   float64   `json:"nwc_pct_revenue"`

	// Terminal value
	TerminalGrowth float64  `json:"terminal_growth"`
	ExitMultiple   *float64 `json:"exit_multiple,omitempty"` // EV/EBITDA

	// Discount rate components
	RiskFreeRate      float64 `json:"risk_free_rate"`
	EquityRiskPremium float64 `json:"equity_risk_premium"`
	Beta              float64 `json:"beta"`
	PretaxCostOfDebt  float64 `json:"pretax_cost_of_debt"`
	WeightEquity      float64 `json:"weight_equity"`
	WeightDebt        float64 `json:"weight_debt"`

	// WACCOverride short-circuits the CAPM build-up. Used by sensitivity
	// sweeps that perturb the discount rate directly.
	WACCOverride *float64 `json:"wacc_override,omitempty"`
}

// Clone returns a deep copy, so sweeps can perturb without aliasing the base.
func (a Assumptions) Clone() Assumptions {
	c := a
	c.RevenueGrowth = append([]float64(nil), a.RevenueGrowth...)
	c.EBITMargin = append([]float64(nil), a.EBITMargin...)
	if a.ExitMultiple != nil {
		c.ExitMultiple = models.F(*a.ExitMultiple)
	}
	if a.WACCOverride != nil {
		c.WACCOverride = models.F(*a.WACCOverride)
	}
	return c
}

// Overrides is the sparse configuration record that takes precedence over
// historical-average defaults. Nil means "use the default".
type Overrides struct {
	RevenueGrowth   []float64 `yaml:"revenue_growth,omitempty" json:"revenue_growth,omitempty"`
	EBITMargin      []float64 `yaml:"ebit_margin,omitempty" json:"ebit_margin,omitempty"`
	TaxRate         *float64  `yaml:"tax_rate,omitempty" json:"tax_rate,omitempty"`
	CapexPctRevenue *float64  `yaml:"capex_pct_revenue,omitempty" json:"capex_pct_revenue,omitempty"`
	DepPctRevenue   *float64  `yaml:"dep_pct_revenue,omitempty" json:"dep_pct_revenue,omitempty"`
	NWCPctRevenue   *float64  `yaml:"nwc_pct_revenue,omitempty" json:"nwc_pct_revenue,omitempty"`
	TerminalGrowth  *float64  `yaml:"terminal_growth,omitempty" json:"terminal_growth,omitempty"`
	ExitMultiple    *float64  `yaml:"exit_multiple,omitempty" json:"exit_multiple,omitempty"`

	RiskFreeRate      *float64 `yaml:"risk_free_rate,omitempty" json:"risk_free_rate,omitempty"`
	EquityRiskPremium *float64 `yaml:"equity_risk_premium,omitempty" json:"equity_risk_premium,omitempty"`
	Beta              *float64 `yaml:"beta,omitempty" json:"beta,omitempty"`
	PretaxCostOfDebt  *float64 `yaml:"pretax_cost_of_debt,omitempty" json:"pretax_cost_of_debt,omitempty"`
	WeightEquity      *float64 `yaml:"weight_equity,omitempty" json:"weight_equity,omitempty"`
	WeightDebt        *float64 `yaml:"weight_debt,omitempty" json:"weight_debt,omitempty"`
}

// Bounds clamp derived defaults to sane ranges. Overrides are NOT clamped:
// an explicit configuration value is taken at face value.
type Bounds struct {
	TaxRateMin        float64 `yaml:"tax_rate_min"`
	TaxRateMax        float64 `yaml:"tax_rate_max"`
	GrowthMin         float64 `yaml:"growth_min"`
	GrowthMax         float64 `yaml:"growth_max"`
	MarginMin         float64 `yaml:"margin_min"`
	MarginMax         float64 `yaml:"margin_max"`
	CapexPctMax       float64 `yaml:"capex_pct_max"`
	NWCPctMax         float64 `yaml:"nwc_pct_max"`
	TerminalGrowthMax float64 `yaml:"terminal_growth_max"`
}

// DefaultBounds mirror the usual macro sanity limits.
func DefaultBounds() Bounds {
	return Bounds{
		TaxRateMin:        0,
		TaxRateMax:        0.5,
		GrowthMin:         -0.20,
		GrowthMax:         0.30,
		MarginMin:         -0.10,
		MarginMax:         0.60,
		CapexPctMax:       0.35,
		NWCPctMax:         0.50,
		TerminalGrowthMax: 0.03,
	}
}

// Defaults used when a ratio has no history and no override.
const (
	defaultGrowth         = 0.05
	defaultEBITMargin     = 0.15
	defaultTaxRate        = 0.25
	defaultCapexPct       = 0.05
	defaultDepPct         = 0.03
	defaultNWCPct         = 0.10
	defaultTerminalGrowth = 0.025
	defaultRiskFree       = 0.025
	defaultERP            = 0.05
	defaultBeta           = 1.0
	defaultPretaxKd       = 0.045
)

// Builder derives Assumptions from historical ratios, market data, and
// configuration overrides.
type Builder struct {
	Ratios        normalize.Ratios
	Market        models.MarketData
	History       models.History
	Bounds        Bounds
	ForecastYears int
}

// NewBuilder wires a builder with default bounds and horizon.
func NewBuilder(res *normalize.Result, market models.MarketData) *Builder {
	return &Builder{
		Ratios:        res.Ratios,
		Market:        market,
		History:       res.History,
		Bounds:        DefaultBounds(),
		ForecastYears: DefaultForecastYears,
	}
}

// Build produces the base-case Assumptions: trailing averages clamped to
// bounds, with overrides taking precedence field by field.
func (b *Builder) Build(ov Overrides) Assumptions {
	n := b.ForecastYears
	if n <= 0 {
		n = DefaultForecastYears
	}

	growth := b.deriveScalar(b.Ratios.RevenueGrowthYoY, defaultGrowth, b.Bounds.GrowthMin, b.Bounds.GrowthMax)
	margin := b.deriveScalar(b.Ratios.EBITMargin, defaultEBITMargin, b.Bounds.MarginMin, b.Bounds.MarginMax)

	a := Assumptions{
		Scenario:        "base",
		ForecastYears:   n,
		RevenueGrowth:   perYear(ov.RevenueGrowth, growth, n),
		EBITMargin:      perYear(ov.EBITMargin, margin, n),
		TaxRate:         pick(ov.TaxRate, b.deriveScalar(b.Ratios.EffectiveTaxRate, defaultTaxRate, b.Bounds.TaxRateMin, b.Bounds.TaxRateMax)),
		CapexPctRevenue: pick(ov.CapexPctRevenue, b.deriveScalar(b.Ratios.CapexPctRevenue, defaultCapexPct, 0, b.Bounds.CapexPctMax)),
		DepPctRevenue:   pick(ov.DepPctRevenue, b.deriveScalar(b.Ratios.DepPctRevenue, defaultDepPct, 0, b.Bounds.CapexPctMax)),
		NWCPctRevenue:   pick(ov.NWCPctRevenue, b.deriveScalar(b.Ratios.NWCPctRevenue, defaultNWCPct, -b.Bounds.NWCPctMax, b.Bounds.NWCPctMax)),
		TerminalGrowth:  pick(ov.TerminalGrowth, clamp(defaultTerminalGrowth, 0, b.Bounds.TerminalGrowthMax)),

		RiskFreeRate:      pick(ov.RiskFreeRate, models.ValOr(b.Market.RiskFreeRate, defaultRiskFree)),
		EquityRiskPremium: pick(ov.EquityRiskPremium, models.ValOr(b.Market.EquityRiskPremium, defaultERP)),
		Beta:              pick(ov.Beta, models.ValOr(b.Market.Beta, defaultBeta)),
		PretaxCostOfDebt:  pick(ov.PretaxCostOfDebt, models.ValOr(b.Market.PretaxCostOfDebt, defaultPretaxKd)),
	}

	if ov.ExitMultiple != nil {
		a.ExitMultiple = models.F(*ov.ExitMultiple)
	} else if b.Market.ExitMultiple != nil {
		a.ExitMultiple = models.F(*b.Market.ExitMultiple)
	}

	we, wd := b.capitalWeights(ov)
	a.WeightEquity, a.WeightDebt = we, wd
	return a
}

// capitalWeights derives market-value capital structure weights, falling back
// to book equity and then to 70/30 when neither side is observable.
func (b *Builder) capitalWeights(ov Overrides) (we, wd float64) {
	if ov.WeightEquity != nil && ov.WeightDebt != nil {
		return *ov.WeightEquity, *ov.WeightDebt
	}

	latest := b.History.Latest()
	debt := models.ValOr(latest.TotalDebt, 0)

	equity := models.ValOr(b.Market.MarketCap, 0)
	if equity == 0 {
		if px, ok := models.Val(b.Market.SharePrice); ok {
			if sh, ok := models.Val(b.Market.SharesOutstanding); ok {
				equity = px * sh
			}
		}
	}
	if equity == 0 {
		equity = models.ValOr(latest.TotalEquity, 0)
	}

	total := equity + debt
	if total <= 0 {
		return 0.7, 0.3
	}
	return equity / total, debt / total
}

func (b *Builder) deriveScalar(s normalize.Series, fallback, lo, hi float64) float64 {
	v, ok := normalize.TrailingAverage(s, trailingYears)
	if !ok {
		v = fallback
	}
	return clamp(v, lo, hi)
}

// Delta is one scenario's documented adjustment to the base assumptions.
// Multiplicative factors default to 1, additive offsets to 0; both may be
// combined. The delta table is configuration, never hardcoded here.
type Delta struct {
	GrowthMult     float64 `yaml:"growth_mult" json:"growth_mult"`
	GrowthAdd      float64 `yaml:"growth_add" json:"growth_add"`
	MarginMult     float64 `yaml:"margin_mult" json:"margin_mult"`
	MarginAdd      float64 `yaml:"margin_add" json:"margin_add"`
	TerminalAdd    float64 `yaml:"terminal_add" json:"terminal_add"`
	BetaAdd        float64 `yaml:"beta_add" json:"beta_add"`
	CapexPctMult   float64 `yaml:"capex_pct_mult" json:"capex_pct_mult"`
	ExitMultipleMult float64 `yaml:"exit_multiple_mult" json:"exit_multiple_mult"`
}

// normalizeDelta fills zero-valued multiplicative fields with the identity.
func normalizeDelta(d Delta) Delta {
	if d.GrowthMult == 0 {
		d.GrowthMult = 1
	}
	if d.MarginMult == 0 {
		d.MarginMult = 1
	}
	if d.CapexPctMult == 0 {
		d.CapexPctMult = 1
	}
	if d.ExitMultipleMult == 0 {
		d.ExitMultipleMult = 1
	}
	return d
}

// ApplyDelta derives a named scenario variant from base. The base value is
// never mutated.
func ApplyDelta(base Assumptions, name string, d Delta) Assumptions {
	d = normalizeDelta(d)
	v := base.Clone()
	v.Scenario = name
	for i := range v.RevenueGrowth {
		v.RevenueGrowth[i] = v.RevenueGrowth[i]*d.GrowthMult + d.GrowthAdd
	}
	for i := range v.EBITMargin {
		v.EBITMargin[i] = v.EBITMargin[i]*d.MarginMult + d.MarginAdd
	}
	v.TerminalGrowth += d.TerminalAdd
	v.Beta += d.BetaAdd
	v.CapexPctRevenue *= d.CapexPctMult
	if v.ExitMultiple != nil {
		v.ExitMultiple = models.F(*v.ExitMultiple * d.ExitMultipleMult)
	}
	return v
}

// Validate performs shape checks on a built Assumptions set.
func (a Assumptions) Validate() error {
	if a.ForecastYears <= 0 {
		return fmt.Errorf("forecast years must be positive, got %d", a.ForecastYears)
	}
	if len(a.RevenueGrowth) != a.ForecastYears {
		return fmt.Errorf("revenue growth has %d entries, want %d", len(a.RevenueGrowth), a.ForecastYears)
	}
	if len(a.EBITMargin) != a.ForecastYears {
		return fmt.Errorf("ebit margin has %d entries, want %d", len(a.EBITMargin), a.ForecastYears)
	}
	return nil
}

// perYear expands an override list (or scalar default) into a per-year slice.
// A short override list is extended by repeating its last value.
func perYear(override []float64, fallback float64, n int) []float64 {
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		switch {
		case i < len(override):
			out[i] = override[i]
		case len(override) > 0:
			out[i] = override[len(override)-1]
		default:
			out[i] = fallback
		}
	}
	return out
}

func pick(ov *float64, def float64) float64 {
	if ov != nil {
		return *ov
	}
	return def
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
