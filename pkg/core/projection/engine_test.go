package projection

import (
	"math"
	"reflect"
	"testing"

	"dcfengine/pkg/core/assumption"
	"dcfengine/pkg/models"
)

func flatAssumptions(years int, growth, margin float64) assumption.Assumptions {
	a := assumption.Assumptions{
		Scenario:        "base",
		ForecastYears:   years,
		TaxRate:         0.25,
		CapexPctRevenue: 0.06,
		DepPctRevenue:   0.05,
		NWCPctRevenue:   0.02,
		WeightEquity:    1,
	}
	for i := 0; i < years; i++ {
		a.RevenueGrowth = append(a.RevenueGrowth, growth)
		a.EBITMargin = append(a.EBITMargin, margin)
	}
	return a
}

func anchorStatement() models.HistoricalStatement {
	return models.HistoricalStatement{
		FiscalYear:       2023,
		Revenue:          models.F(1000.0),
		EBIT:             models.F(200.0),
		Cash:             models.F(150.0),
		NetPPE:           models.F(400.0),
		TotalAssets:      models.F(1200.0),
		TotalDebt:        models.F(0.0),
		TotalLiabilities: models.F(300.0),
		TotalEquity:      models.F(900.0),
	}
}

func TestProjectYearOneHandCalc(t *testing.T) {
	// Revenue 1000, growth 5%, margin 20%, tax 25%, capex 6%, dep 5%, NWC 2%:
	//   Revenue = 1050, EBIT = 210, NOPAT = 157.50, D&A = 52.50
	//   CapEx = 63, NWC = 21 vs anchor 20 => dNWC = 1
	//   FCFF = 157.50 + 52.50 - 63 - 1 = 146.00
	res, err := Project(anchorStatement(), flatAssumptions(5, 0.05, 0.20))
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	if len(res.Statements) != 5 {
		t.Fatalf("Expected 5 projected years, got %d", len(res.Statements))
	}

	y1 := res.Statements[0]
	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"revenue", y1.Revenue, 1050},
		{"ebit", y1.EBIT, 210},
		{"nopat", y1.NOPAT, 157.5},
		{"depreciation", y1.Depreciation, 52.5},
		{"capex", y1.Capex, 63},
		{"delta nwc", y1.DeltaNWC, 1},
		{"fcff", y1.FCFF, 146},
	}
	for _, c := range checks {
		if math.Abs(c.got-c.want) > 1e-9 {
			t.Errorf("Year 1 %s: expected %.4f, got %.4f", c.name, c.want, c.got)
		}
	}
}

func TestProjectBalanceSheetBalancesExactly(t *testing.T) {
	res, err := Project(anchorStatement(), flatAssumptions(5, 0.05, 0.20))
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	for _, s := range res.Statements {
		gap := s.TotalAssets - (s.TotalLiabilities + s.TotalEquity)
		if math.Abs(gap) > 1e-9 {
			t.Errorf("Year %d: balance sheet gap %.12f, expected 0", s.Year, gap)
		}
		cfGap := s.OperatingCashFlow + s.InvestingCashFlow + s.FinancingCashFlow - s.NetChangeInCash
		if cfGap != 0 {
			t.Errorf("Year %d: cash flow identity gap %.12f", s.Year, cfGap)
		}
		if s.Cash != s.EndingCash {
			t.Errorf("Year %d: balance sheet cash %.6f != CF ending cash %.6f", s.Year, s.Cash, s.EndingCash)
		}
	}
}

func TestProjectEquityRollForwardEqualsNetIncome(t *testing.T) {
	// Constant debt, no dividends: each year's equity increase must equal net
	// income.
	res, err := Project(anchorStatement(), flatAssumptions(5, 0.05, 0.20))
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	prevEquity := 900.0 // anchor equity
	for _, s := range res.Statements {
		delta := s.TotalEquity - prevEquity
		if math.Abs(delta-s.NetIncome) > 1e-6 {
			t.Errorf("Year %d: equity delta %.6f != net income %.6f", s.Year, delta, s.NetIncome)
		}
		prevEquity = s.TotalEquity
	}
}

func TestProjectDeterministic(t *testing.T) {
	latest := anchorStatement()
	a := flatAssumptions(5, 0.05, 0.20)

	r1, err := Project(latest, a)
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	r2, err := Project(latest, a)
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	if !reflect.DeepEqual(r1, r2) {
		t.Error("Identical inputs produced different projections")
	}
}

func TestProjectNegativeTerminalFCFFFlagged(t *testing.T) {
	// Thin margin with heavy capex drives FCFF negative; that is a business
	// signal, not an engine failure.
	a := flatAssumptions(5, 0.05, 0.02)
	a.CapexPctRevenue = 0.20

	res, err := Project(anchorStatement(), a)
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	if !res.TerminalFCFFNegative {
		t.Error("Expected terminal FCFF negative flag")
	}
	if res.Terminal().FCFF >= 0 {
		t.Errorf("Expected negative terminal FCFF, got %.4f", res.Terminal().FCFF)
	}
}

func TestProjectRequiresPositiveRevenueAnchor(t *testing.T) {
	latest := anchorStatement()
	latest.Revenue = nil
	if _, err := Project(latest, flatAssumptions(5, 0.05, 0.20)); err == nil {
		t.Error("Expected error for missing anchor revenue")
	}
}
