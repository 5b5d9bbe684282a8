// Package projection articulates five years of projected income statement,
// balance sheet, and cash flow statement from the latest historical year and
// one assumption set. Each year is built only from the prior year and the
// assumptions - no lookahead. The balance sheet balances by construction:
// equity is plugged as the residual after every other line item is projected,
// and balance-sheet cash is reconciled against the cash flow statement's
// ending cash line.
package projection

import (
	"fmt"
	"math"

	"dcfengine/pkg/core/assumption"
	"dcfengine/pkg/models"
)

// reconcileTol is the relative tolerance for the cash and equity articulation
// checks. The two sides are computed through independent routes, so anything
// beyond float noise indicates a formula or input error.
const reconcileTol = 1e-6

// InconsistencyError reports a cross-statement articulation failure: the
// cash-flow-derived figure disagrees with the balance-sheet-derived one.
// This is a logic/input error and aborts the run.
type InconsistencyError struct {
	Year  int
	Field string
	CashFlowSide float64
	BalanceSide  float64
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("projection year %d: %s mismatch (cash flow side %.6f vs balance sheet side %.6f)",
		e.Year, e.Field, e.CashFlowSide, e.BalanceSide)
}

// Result is the ordered 5-year projection plus business-signal flags.
// Terminal-year negative FCFF is flagged for the audit layer rather than
// treated as an engine failure.
type Result struct {
	Statements           []models.ProjectedStatement `json:"statements"`
	TerminalFCFFNegative bool                        `json:"terminal_fcff_negative"`
}

// Terminal returns the final projected year.
func (r Result) Terminal() models.ProjectedStatement {
	return r.Statements[len(r.Statements)-1]
}

// FCFFs returns the projected free cash flows to firm, year 1 first.
func (r Result) FCFFs() []float64 {
	out := make([]float64, len(r.Statements))
	for i, s := range r.Statements {
		out[i] = s.FCFF
	}
	return out
}

// anchor is the internal year-0 state the roll-forward starts from. The NWC
// chain is rebased onto the assumption ratio so year-1 delta-NWC reflects the
// revenue change rather than a step between reported and assumed levels.
type anchor struct {
	Revenue     float64
	Cash        float64
	NWC         float64
	NetPPE      float64
	OtherAssets float64
	TotalDebt   float64
	OtherLiab   float64
	TotalAssets float64
	TotalLiab   float64
	Equity      float64
}

// Project builds the forecast. latest is the most recent normalized
// historical year; a is one immutable assumption set.
func Project(latest models.HistoricalStatement, a assumption.Assumptions) (*Result, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	rev0, ok := models.Val(latest.Revenue)
	if !ok || rev0 <= 0 {
		return nil, fmt.Errorf("projection anchor year %d has no positive revenue", latest.FiscalYear)
	}

	an := buildAnchor(latest, a, rev0)

	stmts := make([]models.ProjectedStatement, 0, a.ForecastYears)
	prevRev, prevNWC, prevCash, prevPPE, prevEquity := an.Revenue, an.NWC, an.Cash, an.NetPPE, an.Equity

	for t := 1; t <= a.ForecastYears; t++ {
		g := a.RevenueGrowth[t-1]
		margin := a.EBITMargin[t-1]

		// Income statement
		rev := prevRev * (1 + g)
		ebit := rev * margin
		dep := rev * a.DepPctRevenue
		ebitda := ebit + dep
		interest := an.TotalDebt * a.PretaxCostOfDebt
		ibt := ebit - interest
		tax := ibt * a.TaxRate
		ni := ibt - tax
		nopat := ebit * (1 - a.TaxRate)

		// Revenue-linked balance sheet drivers
		nwc := rev * a.NWCPctRevenue
		dnwc := nwc - prevNWC
		capex := rev * a.CapexPctRevenue

		// FCFF = EBIT(1-t) + D&A - CapEx - dNWC
		fcff := nopat + dep - capex - dnwc

		// Cash flow statement. Debt is held constant and no dividends are
		// modeled, so financing flow is zero and cash accumulates.
		ocf := ni + dep - dnwc
		icf := -capex
		fcf := 0.0
		netChange := ocf + icf + fcf
		beginningCash := prevCash
		endingCash := beginningCash + netChange

		// Balance sheet roll-forward
		bsCash := prevCash + netChange
		ppe := prevPPE + capex - dep
		totalAssets := bsCash + nwc + ppe + an.OtherAssets
		totalLiab := an.TotalDebt + an.OtherLiab
		equity := totalAssets - totalLiab // balancing residual

		// Reconcile balance-sheet cash against the cash flow statement's
		// ending cash. A mismatch is an error, never a silent override.
		if relDiff(bsCash, endingCash) > reconcileTol {
			return nil, &InconsistencyError{Year: t, Field: "ending cash", CashFlowSide: endingCash, BalanceSide: bsCash}
		}
		// The equity plug must articulate with retained earnings: with
		// constant debt and no distributions, dEquity == net income.
		if relDiff(equity-prevEquity, ni) > reconcileTol {
			return nil, &InconsistencyError{Year: t, Field: "equity roll-forward", CashFlowSide: ni, BalanceSide: equity - prevEquity}
		}

		stmts = append(stmts, models.ProjectedStatement{
			Year:              t,
			Revenue:           rev,
			EBIT:              ebit,
			Depreciation:      dep,
			EBITDA:            ebitda,
			InterestExpense:   interest,
			IncomeBeforeTax:   ibt,
			IncomeTaxExpense:  tax,
			NetIncome:         ni,
			NOPAT:             nopat,
			Cash:              bsCash,
			NetWorkingCapital: nwc,
			NetPPE:            ppe,
			OtherAssets:       an.OtherAssets,
			TotalAssets:       totalAssets,
			TotalDebt:         an.TotalDebt,
			OtherLiabilities:  an.OtherLiab,
			TotalLiabilities:  totalLiab,
			TotalEquity:       equity,
			Capex:             capex,
			DeltaNWC:          dnwc,
			OperatingCashFlow: ocf,
			InvestingCashFlow: icf,
			FinancingCashFlow: fcf,
			NetChangeInCash:   netChange,
			BeginningCash:     beginningCash,
			EndingCash:        endingCash,
			FCFF:              fcff,
		})

		prevRev, prevNWC, prevCash, prevPPE, prevEquity = rev, nwc, bsCash, ppe, equity
	}

	return &Result{
		Statements:           stmts,
		TerminalFCFFNegative: stmts[len(stmts)-1].FCFF < 0,
	}, nil
}

// buildAnchor derives the year-0 state. Missing balance sheet pieces fall
// back so the identity still holds at the anchor: OtherAssets absorbs
// whatever the named lines do not explain.
func buildAnchor(latest models.HistoricalStatement, a assumption.Assumptions, rev0 float64) anchor {
	cash := models.ValOr(latest.Cash, 0)
	nwc := rev0 * a.NWCPctRevenue
	ppe := models.ValOr(latest.NetPPE, 0)
	debt := models.ValOr(latest.TotalDebt, 0)

	totalAssets := models.ValOr(latest.TotalAssets, cash+nwc+ppe)
	other := totalAssets - cash - nwc - ppe

	totalLiab, haveTL := models.Val(latest.TotalLiabilities)
	if !haveTL {
		if eq, ok := models.Val(latest.TotalEquity); ok {
			totalLiab = totalAssets - eq
		} else {
			totalLiab = debt
		}
	}

	return anchor{
		Revenue:     rev0,
		Cash:        cash,
		NWC:         nwc,
		NetPPE:      ppe,
		OtherAssets: other,
		TotalDebt:   debt,
		OtherLiab:   totalLiab - debt,
		TotalAssets: totalAssets,
		TotalLiab:   totalLiab,
		Equity:      totalAssets - totalLiab,
	}
}

func relDiff(a, b float64) float64 {
	diff := math.Abs(a - b)
	scale := math.Max(math.Abs(a), math.Abs(b))
	if scale < 1 {
		scale = 1
	}
	return diff / scale
}
