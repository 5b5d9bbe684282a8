package normalize

import (
	"math"
	"sort"

	"dcfengine/pkg/models"
)

// Series maps fiscal year -> ratio value. A year is absent when the ratio was
// not computable for it.
type Series map[int]float64

// Ratios holds the historical ratios derived from normalized statements.
// They are the raw material for the assumption builder's trailing averages.
type Ratios struct {
	RevenueGrowthYoY Series `json:"revenue_growth_yoy"`
	RevenueCAGR      float64 `json:"revenue_cagr"`

	GrossMargin  Series `json:"gross_margin"`
	EBITMargin   Series `json:"ebit_margin"`
	EBITDAMargin Series `json:"ebitda_margin"`
	NetMargin    Series `json:"net_margin"`

	EffectiveTaxRate Series `json:"effective_tax_rate"`
	CapexPctRevenue  Series `json:"capex_pct_revenue"`
	DepPctRevenue    Series `json:"dep_pct_revenue"`
	NWCPctRevenue    Series `json:"nwc_pct_revenue"`

	CurrentRatio Series `json:"current_ratio"`
	DebtToEquity Series `json:"debt_to_equity"`
	DebtToEBITDA Series `json:"debt_to_ebitda"`

	ROIC             Series `json:"roic"`
	ReinvestmentRate Series `json:"reinvestment_rate"`
}

// ComputeRatios derives year-by-year margins, turns, leverage, and growth
// rates from a normalized history.
func ComputeRatios(h models.History) Ratios {
	r := Ratios{
		RevenueGrowthYoY: Series{},
		GrossMargin:      Series{},
		EBITMargin:       Series{},
		EBITDAMargin:     Series{},
		NetMargin:        Series{},
		EffectiveTaxRate: Series{},
		CapexPctRevenue:  Series{},
		DepPctRevenue:    Series{},
		NWCPctRevenue:    Series{},
		CurrentRatio:     Series{},
		DebtToEquity:     Series{},
		DebtToEBITDA:     Series{},
		ROIC:             Series{},
		ReinvestmentRate: Series{},
	}

	var prev *models.HistoricalStatement
	for i := range h.Statements {
		s := h.Statements[i]
		y := s.FiscalYear

		if rev, ok := models.Val(s.Revenue); ok && rev != 0 {
			ratio := func(dst Series, num *float64) {
				if v, ok := models.Val(num); ok {
					dst[y] = v / rev
				}
			}
			ratio(r.GrossMargin, s.GrossProfit)
			ratio(r.EBITMargin, s.EBIT)
			ratio(r.EBITDAMargin, s.EBITDA)
			ratio(r.NetMargin, s.NetIncome)
			ratio(r.DepPctRevenue, s.Depreciation)
			ratio(r.NWCPctRevenue, s.NetWorkingCapital)
			if capex, ok := models.Val(s.Capex); ok {
				r.CapexPctRevenue[y] = math.Abs(capex) / rev
			}
			if prev != nil {
				if prevRev, ok := models.Val(prev.Revenue); ok && prevRev != 0 {
					r.RevenueGrowthYoY[y] = rev/prevRev - 1
				}
			}
		}

		if ibt, ok := models.Val(s.IncomeBeforeTax); ok && ibt != 0 {
			if tax, ok := models.Val(s.IncomeTaxExpense); ok {
				r.EffectiveTaxRate[y] = math.Abs(tax) / ibt
			}
		}

		if cl, ok := models.Val(s.CurrentLiabilities); ok && cl != 0 {
			if ca, ok := models.Val(s.CurrentAssets); ok {
				r.CurrentRatio[y] = ca / cl
			}
		}
		if eq, ok := models.Val(s.TotalEquity); ok && eq != 0 {
			if debt, ok := models.Val(s.TotalDebt); ok {
				r.DebtToEquity[y] = debt / eq
			}
		}
		if ebitda, ok := models.Val(s.EBITDA); ok && ebitda != 0 {
			if debt, ok := models.Val(s.TotalDebt); ok {
				r.DebtToEBITDA[y] = debt / ebitda
			}
		}

		computeReturnRatios(&r, s, y)
		prev = &h.Statements[i]
	}

	r.RevenueCAGR = revenueCAGR(h)
	return r
}

// computeReturnRatios derives ROIC (NOPAT over debt + equity) and the
// reinvestment rate ((capex - depreciation + dNWC proxy) over NOPAT). They
// feed the sustainable-growth audit check.
func computeReturnRatios(r *Ratios, s models.HistoricalStatement, y int) {
	ebit, okEBIT := models.Val(s.EBIT)
	ibt, okIBT := models.Val(s.IncomeBeforeTax)
	tax, okTax := models.Val(s.IncomeTaxExpense)
	if !okEBIT {
		return
	}

	taxRate := 0.25
	if okIBT && okTax && ibt != 0 {
		taxRate = clamp(math.Abs(tax)/ibt, 0, 0.5)
	}
	nopat := ebit * (1 - taxRate)

	debt, okDebt := models.Val(s.TotalDebt)
	equity, okEq := models.Val(s.TotalEquity)
	if okDebt && okEq && debt+equity > 0 {
		r.ROIC[y] = nopat / (debt + equity)
	}

	capex, okCapex := models.Val(s.Capex)
	dep, okDep := models.Val(s.Depreciation)
	if okCapex && okDep && nopat != 0 {
		r.ReinvestmentRate[y] = (math.Abs(capex) - dep) / nopat
	}
}

func revenueCAGR(h models.History) float64 {
	var first, last float64
	var firstYear, lastYear int
	found := false
	for _, s := range h.Statements {
		if rev, ok := models.Val(s.Revenue); ok && rev > 0 {
			if !found {
				first, firstYear = rev, s.FiscalYear
				found = true
			}
			last, lastYear = rev, s.FiscalYear
		}
	}
	periods := lastYear - firstYear
	if !found || periods <= 0 || first <= 0 {
		return 0
	}
	return math.Pow(last/first, 1.0/float64(periods)) - 1
}

// TrailingAverage averages the most recent n observations of a series
// (fewer if unavailable). Returns (0, false) when the series is empty.
func TrailingAverage(s Series, n int) (float64, bool) {
	if len(s) == 0 || n <= 0 {
		return 0, false
	}
	years := make([]int, 0, len(s))
	for y := range s {
		years = append(years, y)
	}
	sort.Ints(years)
	if len(years) > n {
		years = years[len(years)-n:]
	}
	sum := 0.0
	for _, y := range years {
		sum += s[y]
	}
	return sum / float64(len(years)), true
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
