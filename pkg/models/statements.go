// Package models defines the canonical financial statement schema shared by
// every stage of the valuation engine. Raw, source-shaped line-item maps never
// travel past the normalizer boundary; everything downstream works on these
// fixed structs.
//
// Optionality convention: historical fields are *float64 where nil means
// "unknown", which is distinct from an explicit zero. Projected statements are
// fully concrete because the projection engine computes every field.
package models

// RawStatement is one fiscal year's line items as delivered by a data source:
// arbitrary keys, possibly missing values. It only exists on the ingest side
// of the normalizer.
type RawStatement map[string]float64

// RawHistory maps fiscal year -> raw line items.
type RawHistory map[int]RawStatement

// HistoricalStatement is one fiscal year's normalized income statement,
// balance sheet, and cash flow statement in canonical line-item names.
// All values are in a single reporting currency and unit (millions).
// Immutable once built by the normalizer.
type HistoricalStatement struct {
	FiscalYear int `json:"fiscal_year"`

	// Income statement
	Revenue          *float64 `json:"revenue,omitempty"`
	CostOfRevenue    *float64 `json:"cost_of_revenue,omitempty"`
	GrossProfit      *float64 `json:"gross_profit,omitempty"`
	OperatingExpense *float64 `json:"operating_expense,omitempty"`
	EBIT             *float64 `json:"ebit,omitempty"`
	Depreciation     *float64 `json:"depreciation,omitempty"`
	EBITDA           *float64 `json:"ebitda,omitempty"`
	InterestExpense  *float64 `json:"interest_expense,omitempty"`
	IncomeBeforeTax  *float64 `json:"income_before_tax,omitempty"`
	IncomeTaxExpense *float64 `json:"income_tax_expense,omitempty"`
	NetIncome        *float64 `json:"net_income,omitempty"`

	// Balance sheet
	Cash               *float64 `json:"cash,omitempty"`
	CurrentAssets      *float64 `json:"current_assets,omitempty"`
	CurrentLiabilities *float64 `json:"current_liabilities,omitempty"`
	NetPPE             *float64 `json:"net_ppe,omitempty"`
	TotalAssets        *float64 `json:"total_assets,omitempty"`
	TotalDebt          *float64 `json:"total_debt,omitempty"`
	TotalLiabilities   *float64 `json:"total_liabilities,omitempty"`
	TotalEquity        *float64 `json:"total_equity,omitempty"`
	MinorityInterest   *float64 `json:"minority_interest,omitempty"`
	NetWorkingCapital  *float64 `json:"net_working_capital,omitempty"`
	NetDebt            *float64 `json:"net_debt,omitempty"`

	// Cash flow statement. Capex is stored as a positive spend; the signed
	// outflow lives inside InvestingCashFlow.
	OperatingCashFlow *float64 `json:"operating_cash_flow,omitempty"`
	InvestingCashFlow *float64 `json:"investing_cash_flow,omitempty"`
	FinancingCashFlow *float64 `json:"financing_cash_flow,omitempty"`
	NetChangeInCash   *float64 `json:"net_change_in_cash,omitempty"`
	Capex             *float64 `json:"capex,omitempty"`
}

// History is the normalizer's output: statements ordered oldest to newest.
type History struct {
	Company    string                `json:"company"`
	Statements []HistoricalStatement `json:"statements"`
}

// Latest returns the most recent historical year (the projection anchor).
func (h History) Latest() HistoricalStatement {
	return h.Statements[len(h.Statements)-1]
}

// Years returns the fiscal years covered, oldest first.
func (h History) Years() []int {
	years := make([]int, len(h.Statements))
	for i, s := range h.Statements {
		years[i] = s.FiscalYear
	}
	return years
}

// ProjectedStatement is one projection year's articulated statements. Every
// field is computed, so there is no optionality. The balance sheet identity
// TotalAssets = TotalLiabilities + TotalEquity holds exactly by construction:
// equity is the balancing residual.
type ProjectedStatement struct {
	Year int `json:"year"` // 1-based projection year

	// Income statement
	Revenue          float64 `json:"revenue"`
	EBIT             float64 `json:"ebit"`
	Depreciation     float64 `json:"depreciation"`
	EBITDA           float64 `json:"ebitda"`
	InterestExpense  float64 `json:"interest_expense"`
	IncomeBeforeTax  float64 `json:"income_before_tax"`
	IncomeTaxExpense float64 `json:"income_tax_expense"`
	NetIncome        float64 `json:"net_income"`
	NOPAT            float64 `json:"nopat"`

	// Balance sheet
	Cash              float64 `json:"cash"`
	NetWorkingCapital float64 `json:"net_working_capital"`
	NetPPE            float64 `json:"net_ppe"`
	OtherAssets       float64 `json:"other_assets"`
	TotalAssets       float64 `json:"total_assets"`
	TotalDebt         float64 `json:"total_debt"`
	OtherLiabilities  float64 `json:"other_liabilities"`
	TotalLiabilities  float64 `json:"total_liabilities"`
	TotalEquity       float64 `json:"total_equity"`

	// Cash flow statement
	Capex             float64 `json:"capex"` // positive spend
	DeltaNWC          float64 `json:"delta_nwc"`
	OperatingCashFlow float64 `json:"operating_cash_flow"`
	InvestingCashFlow float64 `json:"investing_cash_flow"`
	FinancingCashFlow float64 `json:"financing_cash_flow"`
	NetChangeInCash   float64 `json:"net_change_in_cash"`
	BeginningCash     float64 `json:"beginning_cash"`
	EndingCash        float64 `json:"ending_cash"`

	// Derived
	FCFF float64 `json:"fcff"`
}

// F returns a pointer to v. Shorthand for building optional fields.
func F(v float64) *float64 { return &v }

// Val unwraps an optional field, reporting whether it was present.
func Val(p *float64) (float64, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}

// ValOr unwraps an optional field with a fallback.
func ValOr(p *float64, fallback float64) float64 {
	if p == nil {
		return fallback
	}
	return *p
}
