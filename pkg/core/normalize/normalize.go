// Package normalize maps heterogeneous raw line items onto the canonical
// statement schema and computes the historical ratios that seed forward
// assumptions. Missing canonical fields are imputed from available fields
// where a documented derivation exists; fields that cannot be derived are
// left nil so downstream consumers can distinguish zero from unknown.
package normalize

import (
	"fmt"
	"math"
	"sort"

	"dcfengine/pkg/models"
)

// DataIncompleteError reports a required canonical field that is absent
// across every historical year. The run cannot proceed without it.
type DataIncompleteError struct {
	Field string
	Years []int
}

func (e *DataIncompleteError) Error() string {
	return fmt.Sprintf("required field %q is missing in all historical years %v", e.Field, e.Years)
}

// aliases maps source key spellings to canonical names. The canonical name
// always maps to itself so an already-canonical statement round-trips
// unchanged.
var aliases = map[string]string{
	"revenue":             "revenue",
	"total_revenue":       "revenue",
	"sales":               "revenue",
	"net_sales":           "revenue",
	"cost_of_revenue":     "cost_of_revenue",
	"cogs":                "cost_of_revenue",
	"cost_of_goods_sold":  "cost_of_revenue",
	"gross_profit":        "gross_profit",
	"operating_expense":   "operating_expense",
	"operating_expenses":  "operating_expense",
	"opex":                "operating_expense",
	"ebit":                "ebit",
	"operating_income":    "ebit",
	"depreciation":        "depreciation",
	"depreciation_amortization": "depreciation",
	"d_and_a":             "depreciation",
	"ebitda":              "ebitda",
	"interest_expense":    "interest_expense",
	"income_before_tax":   "income_before_tax",
	"pretax_income":       "income_before_tax",
	"income_tax_expense":  "income_tax_expense",
	"tax_expense":         "income_tax_expense",
	"net_income":          "net_income",
	"cash":                "cash",
	"cash_and_equivalents": "cash",
	"current_assets":      "current_assets",
	"total_current_assets": "current_assets",
	"current_liabilities": "current_liabilities",
	"total_current_liabilities": "current_liabilities",
	"net_ppe":             "net_ppe",
	"ppe_net":             "net_ppe",
	"total_assets":        "total_assets",
	"total_debt":          "total_debt",
	"total_liabilities":   "total_liabilities",
	"total_equity":        "total_equity",
	"shareholders_equity": "total_equity",
	"minority_interest":   "minority_interest",
	"noncontrolling_interest": "minority_interest",
	"net_working_capital": "net_working_capital",
	"working_capital":     "net_working_capital",
	"net_debt":            "net_debt",
	"operating_cash_flow": "operating_cash_flow",
	"cash_from_operations": "operating_cash_flow",
	"investing_cash_flow": "investing_cash_flow",
	"cash_from_investing": "investing_cash_flow",
	"financing_cash_flow": "financing_cash_flow",
	"cash_from_financing": "financing_cash_flow",
	"net_change_in_cash":  "net_change_in_cash",
	"capex":               "capex",
	"capital_expenditures": "capex",
}

// requiredFields must be derivable in at least one historical year; FCFF
// cannot be anchored without them.
var requiredFields = []string{"revenue", "ebit"}

// Result bundles the normalizer's two outputs.
type Result struct {
	History models.History
	Ratios  Ratios
}

// Normalize converts raw year->line-item maps into canonical statements,
// ordered oldest to newest, and computes historical ratios.
func Normalize(company string, raw models.RawHistory) (*Result, error) {
	if len(raw) == 0 {
		return nil, &DataIncompleteError{Field: "revenue"}
	}

	years := make([]int, 0, len(raw))
	for y := range raw {
		years = append(years, y)
	}
	sort.Ints(years)

	stmts := make([]models.HistoricalStatement, 0, len(years))
	for _, y := range years {
		stmts = append(stmts, normalizeYear(y, raw[y]))
	}

	for _, field := range requiredFields {
		if !presentInAnyYear(stmts, field) {
			return nil, &DataIncompleteError{Field: field, Years: years}
		}
	}

	hist := models.History{Company: company, Statements: stmts}
	return &Result{History: hist, Ratios: ComputeRatios(hist)}, nil
}

// normalizeYear canonicalizes keys then applies the derivation rules in
// dependency order. Each rule only fires when the target is unknown.
func normalizeYear(year int, raw models.RawStatement) models.HistoricalStatement {
	c := map[string]float64{}
	for k, v := range raw {
		if canon, ok := aliases[k]; ok {
			c[canon] = v
		}
	}

	get := func(name string) *float64 {
		if v, ok := c[name]; ok {
			return models.F(v)
		}
		return nil
	}

	s := models.HistoricalStatement{
		FiscalYear:         year,
		Revenue:            get("revenue"),
		CostOfRevenue:      get("cost_of_revenue"),
		GrossProfit:        get("gross_profit"),
		OperatingExpense:   get("operating_expense"),
		EBIT:               get("ebit"),
		Depreciation:       get("depreciation"),
		EBITDA:             get("ebitda"),
		InterestExpense:    get("interest_expense"),
		IncomeBeforeTax:    get("income_before_tax"),
		IncomeTaxExpense:   get("income_tax_expense"),
		NetIncome:          get("net_income"),
		Cash:               get("cash"),
		CurrentAssets:      get("current_assets"),
		CurrentLiabilities: get("current_liabilities"),
		NetPPE:             get("net_ppe"),
		TotalAssets:        get("total_assets"),
		TotalDebt:          get("total_debt"),
		TotalLiabilities:   get("total_liabilities"),
		TotalEquity:        get("total_equity"),
		MinorityInterest:   get("minority_interest"),
		NetWorkingCapital:  get("net_working_capital"),
		NetDebt:            get("net_debt"),
		OperatingCashFlow:  get("operating_cash_flow"),
		InvestingCashFlow:  get("investing_cash_flow"),
		FinancingCashFlow:  get("financing_cash_flow"),
		NetChangeInCash:    get("net_change_in_cash"),
		Capex:              get("capex"),
	}

	derive(&s)
	return s
}

// derive fills gaps from available fields. Rules mirror the usual statement
// arithmetic; a rule never overwrites a reported value.
func derive(s *models.HistoricalStatement) {
	// Capex is canonically a positive spend even when reported as an outflow.
	if s.Capex != nil && *s.Capex < 0 {
		s.Capex = models.F(-*s.Capex)
	}

	if s.GrossProfit == nil && s.Revenue != nil && s.CostOfRevenue != nil {
		s.GrossProfit = models.F(*s.Revenue - math.Abs(*s.CostOfRevenue))
	}
	if s.EBIT == nil && s.GrossProfit != nil && s.OperatingExpense != nil {
		s.EBIT = models.F(*s.GrossProfit - math.Abs(*s.OperatingExpense))
	}
	if s.EBITDA == nil && s.EBIT != nil && s.Depreciation != nil {
		s.EBITDA = models.F(*s.EBIT + *s.Depreciation)
	}
	if s.Depreciation == nil && s.EBITDA != nil && s.EBIT != nil {
		s.Depreciation = models.F(*s.EBITDA - *s.EBIT)
	}
	if s.IncomeBeforeTax == nil && s.EBIT != nil && s.InterestExpense != nil {
		s.IncomeBeforeTax = models.F(*s.EBIT - math.Abs(*s.InterestExpense))
	}
	if s.NetIncome == nil && s.IncomeBeforeTax != nil && s.IncomeTaxExpense != nil {
		s.NetIncome = models.F(*s.IncomeBeforeTax - math.Abs(*s.IncomeTaxExpense))
	}

	if s.NetWorkingCapital == nil && s.CurrentAssets != nil && s.CurrentLiabilities != nil {
		s.NetWorkingCapital = models.F(*s.CurrentAssets - *s.CurrentLiabilities)
	}
	if s.NetDebt == nil && s.TotalDebt != nil && s.Cash != nil {
		s.NetDebt = models.F(*s.TotalDebt - *s.Cash)
	}
	if s.TotalLiabilities == nil && s.TotalAssets != nil && s.TotalEquity != nil {
		s.TotalLiabilities = models.F(*s.TotalAssets - *s.TotalEquity)
	}
	if s.TotalEquity == nil && s.TotalAssets != nil && s.TotalLiabilities != nil {
		s.TotalEquity = models.F(*s.TotalAssets - *s.TotalLiabilities)
	}

	if s.NetChangeInCash == nil && s.OperatingCashFlow != nil &&
		s.InvestingCashFlow != nil && s.FinancingCashFlow != nil {
		s.NetChangeInCash = models.F(*s.OperatingCashFlow + *s.InvestingCashFlow + *s.FinancingCashFlow)
	}
	if s.Capex == nil && s.InvestingCashFlow != nil && s.NetPPE == nil {
		// Last resort: treat the whole investing outflow as capex.
		if *s.InvestingCashFlow < 0 {
			s.Capex = models.F(-*s.InvestingCashFlow)
		}
	}
}

func presentInAnyYear(stmts []models.HistoricalStatement, field string) bool {
	for _, s := range stmts {
		switch field {
		case "revenue":
			if s.Revenue != nil {
				return true
			}
		case "ebit":
			if s.EBIT != nil {
				return true
			}
		}
	}
	return false
}
