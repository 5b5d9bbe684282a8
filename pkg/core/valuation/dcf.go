package valuation

import (
	"fmt"
	"math"

	"dcfengine/pkg/models"
)

// Bridge carries the balance-sheet items between enterprise and equity value.
type Bridge struct {
	NetDebt           float64 `json:"net_debt"`
	MinorityInterest  float64 `json:"minority_interest"`
	NonOperatingCash  float64 `json:"non_operating_cash"`
	SharesOutstanding float64 `json:"shares_outstanding"` // diluted, millions
}

// DCFInput bundles everything the discounting stage needs.
type DCFInput struct {
	Scenario     string
	Projections  []models.ProjectedStatement
	WACC         WACCResult
	Terminal     TerminalValue
	Bridge       Bridge
	CurrentPrice *float64 // optional, for upside/downside
}

// Result is the valuation output for one scenario. All fields are derived and
// recomputed per run; nothing is mutated in place.
type Result struct {
	Scenario         string  `json:"scenario"`
	PVExplicit       float64 `json:"pv_explicit"`
	PVTerminal       float64 `json:"pv_terminal"`
	EnterpriseValue  float64 `json:"enterprise_value"`
	NetDebt          float64 `json:"net_debt"`
	MinorityInterest float64 `json:"minority_interest"`
	NonOperatingCash float64 `json:"non_operating_cash"`
	EquityValue      float64 `json:"equity_value"`
	SharesOutstanding float64 `json:"shares_outstanding"`
	ValuePerShare    float64 `json:"value_per_share"`
	TerminalValuePct float64 `json:"terminal_value_pct"` // PV of TV as share of EV

	WACC     WACCResult    `json:"wacc"`
	Terminal TerminalValue `json:"terminal"`

	UpsidePct *float64 `json:"upside_pct,omitempty"` // vs current price, in percent
}

// CalculateDCF discounts projected FCFF plus the terminal value to enterprise
// value and bridges to equity and per-share value.
//
// Mid-year convention: the year-t cash flow is discounted at (1+w)^(t-0.5).
// The terminal value is discounted at the full year-N factor (1+w)^N - it is
// a going-concern value as of the end of year N, not a mid-year flow.
func CalculateDCF(in DCFInput) (*Result, error) {
	if len(in.Projections) == 0 {
		return nil, &InvalidInputError{Field: "projections", Reason: "no projected years"}
	}
	if in.Bridge.SharesOutstanding <= 0 {
		return nil, &InvalidInputError{Field: "shares_outstanding",
			Reason: fmt.Sprintf("must be positive, got %.4f", in.Bridge.SharesOutstanding)}
	}
	// Defense in depth: the terminal calculator already rejected g >= WACC,
	// but the inputs may have been assembled independently.
	if in.Terminal.MethodUsed != MethodExitMultiple && in.Terminal.TerminalGrowth >= in.WACC.WACC {
		return nil, &InvalidAssumptionError{
			Scenario: in.Scenario,
			Param:    "terminal_growth",
			Value:    in.Terminal.TerminalGrowth,
			Limit:    in.WACC.WACC,
			Reason:   "terminal growth must be below WACC",
		}
	}

	w := in.WACC.WACC
	var pvExplicit float64
	for _, p := range in.Projections {
		period := float64(p.Year) - 0.5
		pvExplicit += p.FCFF / math.Pow(1+w, period)
	}

	n := float64(len(in.Projections))
	pvTerminal := in.Terminal.Selected() / math.Pow(1+w, n)

	ev := pvExplicit + pvTerminal
	equity := ev - in.Bridge.NetDebt - in.Bridge.MinorityInterest + in.Bridge.NonOperatingCash

	res := &Result{
		Scenario:          in.Scenario,
		PVExplicit:        pvExplicit,
		PVTerminal:        pvTerminal,
		EnterpriseValue:   ev,
		NetDebt:           in.Bridge.NetDebt,
		MinorityInterest:  in.Bridge.MinorityInterest,
		NonOperatingCash:  in.Bridge.NonOperatingCash,
		EquityValue:       equity,
		SharesOutstanding: in.Bridge.SharesOutstanding,
		ValuePerShare:     equity / in.Bridge.SharesOutstanding,
		WACC:              in.WACC,
		Terminal:          in.Terminal,
	}
	if ev != 0 {
		res.TerminalValuePct = pvTerminal / ev
	}
	if in.CurrentPrice != nil && *in.CurrentPrice > 0 {
		up := (res.ValuePerShare / *in.CurrentPrice - 1) * 100
		res.UpsidePct = &up
	}
	return res, nil
}

// RecommendationCutoffs are the upside/downside boundaries (in percent) for
// the rating buckets, configuration rather than policy baked into code.
type RecommendationCutoffs struct {
	StrongBuy float64 `yaml:"strong_buy"` // upside above -> Strong Buy
	Buy       float64 `yaml:"buy"`
	Hold      float64 `yaml:"hold"` // downside floor for Hold
	Sell      float64 `yaml:"sell"` // downside floor for Sell
}

// DefaultCutoffs returns the usual +20/+10/-10/-20 banding.
func DefaultCutoffs() RecommendationCutoffs {
	return RecommendationCutoffs{StrongBuy: 20, Buy: 10, Hold: -10, Sell: -20}
}

// Recommend maps an upside/downside percentage to a rating bucket.
func Recommend(upsidePct float64, c RecommendationCutoffs) string {
	switch {
	case upsidePct > c.StrongBuy:
		return "Strong Buy"
	case upsidePct > c.Buy:
		return "Buy"
	case upsidePct > c.Hold:
		return "Hold"
	case upsidePct > c.Sell:
		return "Sell"
	default:
		return "Strong Sell"
	}
}
