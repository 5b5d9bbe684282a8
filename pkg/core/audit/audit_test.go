package audit

import (
	"testing"

	"dcfengine/pkg/core/assumption"
	"dcfengine/pkg/core/projection"
	"dcfengine/pkg/core/sensitivity"
	"dcfengine/pkg/core/valuation"
	"dcfengine/pkg/models"
)

func balancedHistory() models.History {
	return models.History{
		Company: "acme",
		Statements: []models.HistoricalStatement{{
			FiscalYear:       2023,
			Revenue:          models.F(1000.0),
			EBIT:             models.F(200.0),
			TotalAssets:      models.F(1000.0),
			TotalLiabilities: models.F(400.0),
			TotalEquity:      models.F(600.0),
		}},
	}
}

func findingsFor(rep *Report, checkID string, sev Severity) []Finding {
	var out []Finding
	for _, f := range rep.Findings {
		if f.CheckID == checkID && f.Severity == sev {
			out = append(out, f)
		}
	}
	return out
}

func TestImbalancedBalanceSheetProducesOneErrorFinding(t *testing.T) {
	h := balancedHistory()
	// Overstate assets by 100: 1100 vs L+E of 1000.
	h.Statements[0].TotalAssets = models.F(1100.0)

	rep := Run(Inputs{History: h}, DefaultThresholds(), nil)

	errs := findingsFor(rep, CheckBalanceIdentity, SeverityError)
	if len(errs) != 1 {
		t.Fatalf("Expected exactly one balance-sheet error finding, got %d", len(errs))
	}
	if errs[0].Observed != 100 {
		t.Errorf("Expected observed gap 100, got %f", errs[0].Observed)
	}
	if !rep.HasErrors() {
		t.Error("Report must flag errors")
	}
}

func TestBalancedHistoryPasses(t *testing.T) {
	rep := Run(Inputs{History: balancedHistory()}, DefaultThresholds(), nil)

	if len(findingsFor(rep, CheckBalanceIdentity, SeverityPass)) != 1 {
		t.Error("Expected a single pass finding for the balance identity")
	}
	if rep.HasErrors() {
		t.Errorf("Unexpected errors: %+v", rep.Findings)
	}
}

func TestAllChecksRunDespiteFailures(t *testing.T) {
	// Break the balance sheet AND report negative revenue: both findings must
	// appear; no short-circuiting.
	h := balancedHistory()
	h.Statements[0].TotalAssets = models.F(1100.0)
	h.Statements[0].Revenue = models.F(-50.0)

	rep := Run(Inputs{History: h}, DefaultThresholds(), nil)

	if len(findingsFor(rep, CheckBalanceIdentity, SeverityError)) != 1 {
		t.Error("Missing balance identity finding")
	}
	if len(findingsFor(rep, CheckRevenuePositive, SeverityError)) != 1 {
		t.Error("Missing negative revenue finding")
	}
}

func TestSeverityOverride(t *testing.T) {
	h := balancedHistory()
	h.Statements[0].TotalAssets = models.F(1100.0)

	rep := Run(Inputs{History: h}, DefaultThresholds(),
		SeverityOverrides{CheckBalanceIdentity: SeverityWarning})

	if len(findingsFor(rep, CheckBalanceIdentity, SeverityWarning)) != 1 {
		t.Error("Expected the breach downgraded to warning")
	}
	if rep.HasErrors() {
		t.Error("Downgraded breach must not count as error")
	}
}

func TestWACCAndTerminalChecks(t *testing.T) {
	scenarios := &sensitivity.ScenarioSet{Outcomes: map[string]sensitivity.ScenarioOutcome{
		"base": {
			Assumptions: assumption.Assumptions{Scenario: "base", TerminalGrowth: 0.04},
			Result: &valuation.Result{
				ValuePerShare:    50,
				TerminalValuePct: 0.85,
				WACC:             valuation.WACCResult{WACC: 0.04},
			},
		},
	}}

	rep := Run(Inputs{History: balancedHistory(), Scenarios: scenarios}, DefaultThresholds(), nil)

	// WACC 4% is below the plausible floor, TV is 85% of EV, and terminal
	// growth 4% breaches the macro ceiling: three warnings.
	for _, check := range []string{CheckWACCRange, CheckTerminalValuePct, CheckTerminalGrowthCeiling} {
		if len(findingsFor(rep, check, SeverityWarning)) != 1 {
			t.Errorf("Expected warning for %s", check)
		}
	}
}

func TestProjectedIdentityChecks(t *testing.T) {
	a := assumption.Assumptions{
		Scenario:      "base",
		ForecastYears: 3,
		RevenueGrowth: []float64{0.05, 0.05, 0.05},
		EBITMargin:    []float64{0.20, 0.20, 0.20},
		TaxRate:       0.25, CapexPctRevenue: 0.06, DepPctRevenue: 0.05, NWCPctRevenue: 0.02,
	}
	proj, err := projection.Project(balancedHistory().Statements[0], a)
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}

	rep := Run(Inputs{History: balancedHistory(), Projections: proj}, DefaultThresholds(), nil)

	for _, check := range []string{CheckProjectedBalanceIdentity, CheckProjectedCashFlow} {
		if len(findingsFor(rep, check, SeverityPass)) != 1 {
			t.Errorf("Expected pass finding for %s", check)
		}
	}
	if len(findingsFor(rep, CheckTerminalFCFFSign, SeverityPass)) != 1 {
		t.Error("Expected pass finding for terminal FCFF sign")
	}
}

func TestDCFVsRelativeDivergence(t *testing.T) {
	scenarios := &sensitivity.ScenarioSet{Outcomes: map[string]sensitivity.ScenarioOutcome{
		"base": {
			Assumptions: assumption.Assumptions{TerminalGrowth: 0.02},
			Result: &valuation.Result{
				ValuePerShare: 100,
				WACC:          valuation.WACCResult{WACC: 0.08},
			},
		},
	}}
	rel := &valuation.RelativeResult{PerShareMid: 50}

	rep := Run(Inputs{History: balancedHistory(), Scenarios: scenarios, Relative: rel},
		DefaultThresholds(), nil)

	// 100 vs 50 is 100% divergence, well past the 40% band.
	if len(findingsFor(rep, CheckDCFVsRelative, SeverityWarning)) != 1 {
		t.Error("Expected divergence warning")
	}
}

func TestScenarioOrderingCheck(t *testing.T) {
	mk := func(v float64) sensitivity.ScenarioOutcome {
		return sensitivity.ScenarioOutcome{
			Assumptions: assumption.Assumptions{TerminalGrowth: 0.02},
			Result:      &valuation.Result{ValuePerShare: v, WACC: valuation.WACCResult{WACC: 0.08}},
		}
	}
	scenarios := &sensitivity.ScenarioSet{Outcomes: map[string]sensitivity.ScenarioOutcome{
		"base": mk(100), "bull": mk(80), "bear": mk(60), // bull below base
	}}

	rep := Run(Inputs{History: balancedHistory(), Scenarios: scenarios}, DefaultThresholds(), nil)
	if len(findingsFor(rep, CheckScenarioOrdering, SeverityWarning)) != 1 {
		t.Error("Expected ordering warning for bull < base")
	}
}
