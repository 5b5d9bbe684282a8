// Package audit runs a fixed battery of independent consistency and
// plausibility checks over every artifact a valuation run produced. Checks
// never depend on each other's outcome, so the full report is always
// produced. Business-plausibility issues become warning/error findings, never
// panics or returned errors: the audit layer judges output quality, not
// program correctness.
package audit

import (
	"fmt"
	"math"

	"dcfengine/pkg/core/normalize"
	"dcfengine/pkg/core/projection"
	"dcfengine/pkg/core/sensitivity"
	"dcfengine/pkg/core/valuation"
	"dcfengine/pkg/models"
)

// Severity grades a finding.
type Severity string

const (
	SeverityPass    Severity = "pass"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Check identifiers. Severity overrides are keyed on these.
const (
	CheckBalanceIdentity          = "balance_sheet_identity"
	CheckProjectedBalanceIdentity = "projected_balance_sheet_identity"
	CheckCashFlowIdentity         = "cash_flow_identity"
	CheckProjectedCashFlow        = "projected_cash_flow_identity"
	CheckWACCRange                = "wacc_range"
	CheckTerminalValuePct         = "terminal_value_pct"
	CheckTerminalGrowthCeiling    = "terminal_growth_ceiling"
	CheckTerminalFCFFSign         = "terminal_fcff_sign"
	CheckSustainableGrowth        = "sustainable_growth"
	CheckRevenuePositive          = "revenue_positive"
	CheckGrowthLevel              = "projected_growth_level"
	CheckMarginRange              = "margin_range"
	CheckDCFVsRelative            = "dcf_vs_relative"
	CheckScenarioOrdering         = "scenario_ordering"
)

// Finding is one check outcome.
type Finding struct {
	CheckID   string   `json:"check_id"`
	Severity  Severity `json:"severity"`
	Message   string   `json:"message"`
	Observed  float64  `json:"observed"`
	Threshold float64  `json:"threshold"`
}

// Thresholds configure what "plausible" means. The engine only evaluates
// rules; deciding what is good belongs to configuration.
type Thresholds struct {
	BalanceTolerancePct  float64 `yaml:"balance_tolerance_pct"`  // relative to total assets
	ProjectedTolerance   float64 `yaml:"projected_tolerance"`    // absolute, identities hold by construction
	CashFlowTolerancePct float64 `yaml:"cash_flow_tolerance_pct"`
	WACCMin              float64 `yaml:"wacc_min"`
	WACCMax              float64 `yaml:"wacc_max"`
	TerminalValueMaxPct  float64 `yaml:"terminal_value_max_pct"`
	TerminalGrowthMax    float64 `yaml:"terminal_growth_max"`
	SustainableSlack     float64 `yaml:"sustainable_slack"` // multiplier on ROIC x reinvestment
	RevenueGrowthWarn    float64 `yaml:"revenue_growth_warn"`
	RelativeDivergence   float64 `yaml:"relative_divergence"` // band vs relative valuation midpoint
}

// DefaultThresholds mirror the usual banker sanity limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		BalanceTolerancePct:  0.001,
		ProjectedTolerance:   1e-6,
		CashFlowTolerancePct: 0.001,
		WACCMin:              0.06,
		WACCMax:              0.15,
		TerminalValueMaxPct:  0.70,
		TerminalGrowthMax:    0.03,
		SustainableSlack:     1.10,
		RevenueGrowthWarn:    0.50,
		RelativeDivergence:   0.40,
	}
}

// SeverityOverrides remap a breached check's severity by check ID.
type SeverityOverrides map[string]Severity

// Inputs are read-only references to every upstream artifact.
type Inputs struct {
	History     models.History
	Ratios      normalize.Ratios
	Projections *projection.Result
	Scenarios   *sensitivity.ScenarioSet
	Relative    *valuation.RelativeResult
}

// Report is the ordered, append-only finding sequence for one run.
type Report struct {
	RunID    string    `json:"run_id"`
	Findings []Finding `json:"findings"`
}

// Counts returns (pass, warning, error) totals.
func (r *Report) Counts() (pass, warn, errs int) {
	for _, f := range r.Findings {
		switch f.Severity {
		case SeverityPass:
			pass++
		case SeverityWarning:
			warn++
		case SeverityError:
			errs++
		}
	}
	return
}

// HasErrors reports whether any finding is error severity.
func (r *Report) HasErrors() bool {
	_, _, errs := r.Counts()
	return errs > 0
}

// auditor accumulates findings.
type auditor struct {
	th  Thresholds
	sev SeverityOverrides
	out []Finding
}

// add appends a finding, applying any severity override for breached checks.
func (a *auditor) add(checkID string, breached bool, defaultSev Severity, observed, threshold float64, msg string) {
	sev := SeverityPass
	if breached {
		sev = defaultSev
		if o, ok := a.sev[checkID]; ok {
			sev = o
		}
	}
	a.out = append(a.out, Finding{
		CheckID: checkID, Severity: sev, Message: msg,
		Observed: observed, Threshold: threshold,
	})
}

// Run evaluates the full battery. Every check runs regardless of earlier
// outcomes.
func Run(in Inputs, th Thresholds, sev SeverityOverrides) *Report {
	a := &auditor{th: th, sev: sev}

	a.historicalBalanceIdentity(in.History)
	a.historicalCashFlowIdentity(in.History)
	a.historicalRevenueSign(in.History)
	a.historicalMargins(in.Ratios)

	if in.Projections != nil {
		a.projectedBalanceIdentity(in.Projections)
		a.projectedCashFlowIdentity(in.Projections)
		a.terminalFCFFSign(in.Projections)
	}
	if in.Scenarios != nil {
		base := in.Scenarios.Base()
		if base.Result != nil {
			a.waccRange(base.Result.WACC.WACC)
			a.terminalValuePct(base.Result)
			a.terminalGrowthCeiling(base.Assumptions.TerminalGrowth)
			a.projectedGrowthLevel(base.Assumptions.RevenueGrowth)
			a.sustainableGrowth(base.Assumptions.RevenueGrowth, in.Ratios)
			if in.Relative != nil {
				a.dcfVsRelative(base.Result.ValuePerShare, in.Relative)
			}
		}
		a.scenarioOrdering(in.Scenarios)
	}

	return &Report{Findings: a.out}
}

func (a *auditor) historicalBalanceIdentity(h models.History) {
	violations := 0
	for _, s := range h.Statements {
		assets, okA := models.Val(s.TotalAssets)
		liab, okL := models.Val(s.TotalLiabilities)
		equity, okE := models.Val(s.TotalEquity)
		if !okA || !okL || !okE {
			continue
		}
		gap := assets - (liab + equity)
		tol := math.Abs(assets) * a.th.BalanceTolerancePct
		if math.Abs(gap) > tol {
			violations++
			a.add(CheckBalanceIdentity, true, SeverityError, gap, tol,
				fmt.Sprintf("FY%d balance sheet out of balance: assets %.2f vs L+E %.2f", s.FiscalYear, assets, liab+equity))
		}
	}
	if violations == 0 {
		a.add(CheckBalanceIdentity, false, SeverityError, 0, a.th.BalanceTolerancePct,
			"historical balance sheets satisfy assets = liabilities + equity")
	}
}

func (a *auditor) historicalCashFlowIdentity(h models.History) {
	violations := 0
	checked := 0
	for _, s := range h.Statements {
		ocf, ok1 := models.Val(s.OperatingCashFlow)
		icf, ok2 := models.Val(s.InvestingCashFlow)
		fcf, ok3 := models.Val(s.FinancingCashFlow)
		net, ok4 := models.Val(s.NetChangeInCash)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			continue
		}
		checked++
		gap := ocf + icf + fcf - net
		tol := math.Max(math.Abs(ocf)*a.th.CashFlowTolerancePct, 1e-9)
		if math.Abs(gap) > tol {
			violations++
			a.add(CheckCashFlowIdentity, true, SeverityError, gap, tol,
				fmt.Sprintf("FY%d cash flow identity broken: O+I+F %.2f vs net change %.2f", s.FiscalYear, ocf+icf+fcf, net))
		}
	}
	if checked > 0 && violations == 0 {
		a.add(CheckCashFlowIdentity, false, SeverityError, 0, a.th.CashFlowTolerancePct,
			"historical cash flow statements satisfy operating + investing + financing = net change")
	}
}

func (a *auditor) historicalRevenueSign(h models.History) {
	negatives := 0
	for _, s := range h.Statements {
		if rev, ok := models.Val(s.Revenue); ok && rev < 0 {
			negatives++
			a.add(CheckRevenuePositive, true, SeverityError, rev, 0,
				fmt.Sprintf("FY%d reports negative revenue %.2f", s.FiscalYear, rev))
		}
	}
	if negatives == 0 {
		a.add(CheckRevenuePositive, false, SeverityError, 0, 0, "no negative revenue in history")
	}
}

func (a *auditor) historicalMargins(r normalize.Ratios) {
	outOfRange := 0
	for year, m := range r.GrossMargin {
		if m < 0 || m > 1 {
			outOfRange++
			a.add(CheckMarginRange, true, SeverityWarning, m, 1,
				fmt.Sprintf("FY%d gross margin %.1f%% outside [0%%, 100%%]", year, m*100))
		}
	}
	if outOfRange == 0 {
		a.add(CheckMarginRange, false, SeverityWarning, 0, 1, "historical gross margins within [0%, 100%]")
	}
}

func (a *auditor) projectedBalanceIdentity(p *projection.Result) {
	violations := 0
	for _, s := range p.Statements {
		gap := s.TotalAssets - (s.TotalLiabilities + s.TotalEquity)
		if math.Abs(gap) > a.th.ProjectedTolerance {
			violations++
			a.add(CheckProjectedBalanceIdentity, true, SeverityError, gap, a.th.ProjectedTolerance,
				fmt.Sprintf("projection year %d balance sheet out of balance by %.9f", s.Year, gap))
		}
	}
	if violations == 0 {
		a.add(CheckProjectedBalanceIdentity, false, SeverityError, 0, a.th.ProjectedTolerance,
			"projected balance sheets balance exactly")
	}
}

func (a *auditor) projectedCashFlowIdentity(p *projection.Result) {
	violations := 0
	for _, s := range p.Statements {
		gap := s.OperatingCashFlow + s.InvestingCashFlow + s.FinancingCashFlow - s.NetChangeInCash
		if math.Abs(gap) > a.th.ProjectedTolerance {
			violations++
			a.add(CheckProjectedCashFlow, true, SeverityError, gap, a.th.ProjectedTolerance,
				fmt.Sprintf("projection year %d cash flow identity broken by %.9f", s.Year, gap))
		}
	}
	if violations == 0 {
		a.add(CheckProjectedCashFlow, false, SeverityError, 0, a.th.ProjectedTolerance,
			"projected cash flow statements articulate exactly")
	}
}

func (a *auditor) terminalFCFFSign(p *projection.Result) {
	terminal := p.Terminal()
	a.add(CheckTerminalFCFFSign, p.TerminalFCFFNegative, SeverityError, terminal.FCFF, 0,
		fmt.Sprintf("terminal year FCFF %.2f", terminal.FCFF))
}

func (a *auditor) waccRange(wacc float64) {
	breached := wacc < a.th.WACCMin || wacc > a.th.WACCMax
	a.add(CheckWACCRange, breached, SeverityWarning, wacc, a.th.WACCMax,
		fmt.Sprintf("WACC %.2f%% (plausible range %.1f%%-%.1f%%)", wacc*100, a.th.WACCMin*100, a.th.WACCMax*100))
}

func (a *auditor) terminalValuePct(res *valuation.Result) {
	a.add(CheckTerminalValuePct, res.TerminalValuePct > a.th.TerminalValueMaxPct, SeverityWarning,
		res.TerminalValuePct, a.th.TerminalValueMaxPct,
		fmt.Sprintf("terminal value is %.1f%% of enterprise value (ceiling %.0f%%)",
			res.TerminalValuePct*100, a.th.TerminalValueMaxPct*100))
}

func (a *auditor) terminalGrowthCeiling(g float64) {
	a.add(CheckTerminalGrowthCeiling, g > a.th.TerminalGrowthMax, SeverityWarning, g, a.th.TerminalGrowthMax,
		fmt.Sprintf("terminal growth %.2f%% vs long-run macro ceiling %.2f%%", g*100, a.th.TerminalGrowthMax*100))
}

// sustainableGrowth compares average projected revenue growth against
// ROIC x reinvestment rate from history. Growth beyond what reinvestment
// funds is a plausibility warning, not an engine failure.
func (a *auditor) sustainableGrowth(growth []float64, r normalize.Ratios) {
	roic, okROIC := normalize.TrailingAverage(r.ROIC, 3)
	reinvest, okReinvest := normalize.TrailingAverage(r.ReinvestmentRate, 3)
	if !okROIC || !okReinvest || len(growth) == 0 {
		return // not computable from this history; silence, not a pass
	}
	avg := meanOf(growth)

	sustainable := roic * reinvest
	limit := sustainable * a.th.SustainableSlack
	a.add(CheckSustainableGrowth, sustainable > 0 && avg > limit, SeverityWarning, avg, limit,
		fmt.Sprintf("avg projected growth %.2f%% vs sustainable %.2f%% (ROIC %.2f%% x reinvestment %.1f%%)",
			avg*100, sustainable*100, roic*100, reinvest*100))
}

// projectedGrowthLevel flags implausibly aggressive top-line assumptions
// independent of what reinvestment can fund.
func (a *auditor) projectedGrowthLevel(growth []float64) {
	if len(growth) == 0 {
		return
	}
	avg := meanOf(growth)
	a.add(CheckGrowthLevel, avg > a.th.RevenueGrowthWarn, SeverityWarning, avg, a.th.RevenueGrowthWarn,
		fmt.Sprintf("avg projected revenue growth %.1f%%", avg*100))
}

func meanOf(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func (a *auditor) dcfVsRelative(dcfPerShare float64, rel *valuation.RelativeResult) {
	if rel.PerShareMid == 0 {
		return
	}
	div := math.Abs(dcfPerShare/rel.PerShareMid - 1)
	a.add(CheckDCFVsRelative, div > a.th.RelativeDivergence, SeverityWarning, div, a.th.RelativeDivergence,
		fmt.Sprintf("DCF %.2f vs peer-implied midpoint %.2f (divergence %.1f%%)",
			dcfPerShare, rel.PerShareMid, div*100))
}

// scenarioOrdering verifies bear <= base <= bull per-share values when those
// scenarios exist. A violated ordering usually means a delta table with the
// wrong sign.
func (a *auditor) scenarioOrdering(set *sensitivity.ScenarioSet) {
	base, okBase := set.Outcomes["base"]
	bull, okBull := set.Outcomes["bull"]
	bear, okBear := set.Outcomes["bear"]
	if !okBase || !okBull || !okBear || base.Result == nil || bull.Result == nil || bear.Result == nil {
		return
	}
	breached := bear.Result.ValuePerShare > base.Result.ValuePerShare ||
		base.Result.ValuePerShare > bull.Result.ValuePerShare
	a.add(CheckScenarioOrdering, breached, SeverityWarning, base.Result.ValuePerShare, 0,
		fmt.Sprintf("per-share values bear %.2f / base %.2f / bull %.2f",
			bear.Result.ValuePerShare, base.Result.ValuePerShare, bull.Result.ValuePerShare))
}
