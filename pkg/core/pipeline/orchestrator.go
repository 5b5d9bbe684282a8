// Package pipeline wires the valuation stages end to end:
// normalize -> assumptions -> scenarios -> sensitivity -> relative -> audit.
// The orchestrator owns stage sequencing and logging; all financial arithmetic
// lives in the stage packages. Given identical inputs and configuration the
// run artifact is identical except for its ID.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dcfengine/pkg/config"
	"dcfengine/pkg/core/assumption"
	"dcfengine/pkg/core/audit"
	"dcfengine/pkg/core/normalize"
	"dcfengine/pkg/core/projection"
	"dcfengine/pkg/core/sensitivity"
	"dcfengine/pkg/core/valuation"
	"dcfengine/pkg/models"
)

// Input is everything a run consumes.
type Input struct {
	Company string
	Raw     models.RawHistory
	Market  models.MarketData
}

// Run is the complete artifact of one valuation run.
type Run struct {
	ID        string    `json:"id"`
	Company   string    `json:"company"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`

	Normalized  *normalize.Result      `json:"normalized"`
	Assumptions assumption.Assumptions `json:"assumptions"`
	Projections *projection.Result     `json:"projections"`

	Scenarios *sensitivity.ScenarioSet `json:"scenarios"`
	Grid      *sensitivity.Grid        `json:"grid"`
	Sweeps    []*sensitivity.Sweep     `json:"sweeps,omitempty"`

	Relative *valuation.RelativeResult `json:"relative,omitempty"`

	TargetPrice    float64  `json:"target_price"`
	UpsidePct      *float64 `json:"upside_pct,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`

	Audit *audit.Report `json:"audit"`
}

// Base returns the base-case valuation result.
func (r *Run) Base() *valuation.Result { return r.Scenarios.Base().Result }

// Orchestrator executes valuation runs under one configuration.
type Orchestrator struct {
	cfg config.Config
	log zerolog.Logger
}

// New builds an orchestrator.
func New(cfg config.Config, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{cfg: cfg, log: log.With().Str("component", "pipeline").Logger()}
}

// Execute runs the full pipeline. The context bounds the concurrent
// sensitivity stage; the pure stages are fast enough to run to completion.
func (o *Orchestrator) Execute(ctx context.Context, in Input) (*Run, error) {
	start := time.Now()
	run := &Run{
		ID:        uuid.NewString(),
		Company:   in.Company,
		StartedAt: start.UTC(),
	}
	log := o.log.With().Str("run_id", run.ID).Str("company", in.Company).Logger()
	log.Info().Int("years", len(in.Raw)).Msg("starting valuation run")

	// 1. Normalize raw statements into the canonical schema.
	norm, err := normalize.Normalize(in.Company, in.Raw)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	run.Normalized = norm
	log.Debug().Ints("fiscal_years", norm.History.Years()).Msg("statements normalized")

	// 2. Build base-case assumptions from ratios, market data, and overrides.
	builder := assumption.NewBuilder(norm, in.Market)
	builder.Bounds = o.cfg.Bounds
	builder.ForecastYears = o.cfg.ForecastYears
	base := builder.Build(o.cfg.Overrides)
	if err := base.Validate(); err != nil {
		return nil, fmt.Errorf("assumptions: %w", err)
	}
	run.Assumptions = base

	// 3. The scenario/sensitivity stages share one pure evaluation closure.
	latest := norm.History.Latest()
	bridge := o.bridge(latest, in.Market)
	evaluate := o.runFunc(latest, bridge, in.Market.SharePrice)

	scenarios, err := sensitivity.RunScenarios(base, o.cfg.Scenarios, evaluate)
	if err != nil {
		return nil, fmt.Errorf("scenarios: %w", err)
	}
	run.Scenarios = scenarios
	for _, name := range scenarios.Names() {
		out := scenarios.Outcomes[name]
		log.Info().Str("scenario", name).
			Float64("value_per_share", out.Result.ValuePerShare).
			Float64("wacc", out.Result.WACC.WACC).
			Msg("scenario valued")
	}

	// Keep the base projection on the artifact for reporting and audit.
	proj, err := projection.Project(latest, base)
	if err != nil {
		return nil, fmt.Errorf("projection: %w", err)
	}
	run.Projections = proj

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 4. Sensitivity grid and sweeps, offsets anchored on base-case values.
	baseRes := scenarios.Base().Result
	xAxis := o.axis(o.cfg.Sensitivity.Grid.XParam, o.cfg.Sensitivity.Grid.XOffsets, base, baseRes)
	yAxis := o.axis(o.cfg.Sensitivity.Grid.YParam, o.cfg.Sensitivity.Grid.YOffsets, base, baseRes)
	grid, err := sensitivity.EvaluateGrid(base, xAxis, yAxis, evaluate, o.cfg.Sensitivity.Workers)
	if err != nil {
		return nil, fmt.Errorf("sensitivity grid: %w", err)
	}
	run.Grid = grid

	for _, sc := range o.cfg.Sensitivity.Sweeps {
		sweep, err := sensitivity.EvaluateSweep(base, o.axis(sc.Param, sc.Offsets, base, baseRes), evaluate)
		if err != nil {
			return nil, fmt.Errorf("sensitivity sweep %s: %w", sc.Param, err)
		}
		run.Sweeps = append(run.Sweeps, sweep)
	}

	// 5. Relative valuation cross-check, skipped without peer data.
	if len(in.Market.Peers) > 0 {
		rel, err := o.relative(latest, bridge, in.Market)
		if err != nil {
			log.Warn().Err(err).Msg("relative valuation skipped")
		} else {
			run.Relative = rel
		}
	}

	// 6. Target price blends DCF with the peer-implied midpoint.
	run.TargetPrice = o.targetPrice(baseRes, run.Relative)
	if px, ok := models.Val(in.Market.SharePrice); ok && px > 0 {
		up := (run.TargetPrice/px - 1) * 100
		run.UpsidePct = &up
		run.Recommendation = valuation.Recommend(up, o.cfg.Valuation.Cutoffs)
	}

	// 7. Audit everything produced above.
	run.Audit = audit.Run(audit.Inputs{
		History:     norm.History,
		Ratios:      norm.Ratios,
		Projections: proj,
		Scenarios:   scenarios,
		Relative:    run.Relative,
	}, o.cfg.Audit.Thresholds, o.cfg.Audit.Severity)
	run.Audit.RunID = run.ID

	run.Duration = time.Since(start).String()
	pass, warn, errs := run.Audit.Counts()
	log.Info().
		Float64("target_price", run.TargetPrice).
		Str("recommendation", run.Recommendation).
		Int("audit_pass", pass).Int("audit_warn", warn).Int("audit_error", errs).
		Str("duration", run.Duration).
		Msg("valuation run complete")
	return run, nil
}

// runFunc builds the projection -> WACC -> terminal -> DCF closure shared by
// scenarios, the grid, and the sweeps.
func (o *Orchestrator) runFunc(latest models.HistoricalStatement, bridge valuation.Bridge, price *float64) sensitivity.RunFunc {
	return func(a assumption.Assumptions) (*valuation.Result, error) {
		proj, err := projection.Project(latest, a)
		if err != nil {
			return nil, err
		}

		wacc, err := valuation.CalculateWACC(valuation.WACCInput{
			RiskFreeRate:      a.RiskFreeRate,
			Beta:              a.Beta,
			EquityRiskPremium: a.EquityRiskPremium,
			PretaxCostOfDebt:  a.PretaxCostOfDebt,
			TaxRate:           a.TaxRate,
			WeightEquity:      a.WeightEquity,
			WeightDebt:        a.WeightDebt,
			Override:          a.WACCOverride,
		})
		if err != nil {
			return nil, err
		}

		terminal := proj.Terminal()
		tv, err := valuation.CalculateTerminalValue(valuation.TerminalInput{
			Scenario:       a.Scenario,
			FCFFTerminal:   terminal.FCFF,
			EBITDATerminal: terminal.EBITDA,
			WACC:           wacc.WACC,
			TerminalGrowth: a.TerminalGrowth,
			ExitMultiple:   a.ExitMultiple,
			Method:         o.cfg.Valuation.TerminalMethod,
		})
		if err != nil {
			return nil, err
		}

		return valuation.CalculateDCF(valuation.DCFInput{
			Scenario:     a.Scenario,
			Projections:  proj.Statements,
			WACC:         wacc,
			Terminal:     tv,
			Bridge:       bridge,
			CurrentPrice: price,
		})
	}
}

// bridge assembles the EV-to-equity bridge from the latest balance sheet and
// market data.
func (o *Orchestrator) bridge(latest models.HistoricalStatement, mkt models.MarketData) valuation.Bridge {
	netDebt, ok := models.Val(latest.NetDebt)
	if !ok {
		netDebt = models.ValOr(latest.TotalDebt, 0) - models.ValOr(latest.Cash, 0)
	}
	return valuation.Bridge{
		NetDebt:           netDebt,
		MinorityInterest:  models.ValOr(latest.MinorityInterest, 0),
		SharesOutstanding: models.ValOr(mkt.SharesOutstanding, 0),
	}
}

// relative runs the peer-multiple cross-check on the latest actuals.
func (o *Orchestrator) relative(latest models.HistoricalStatement, bridge valuation.Bridge, mkt models.MarketData) (*valuation.RelativeResult, error) {
	return valuation.CalculateRelative(valuation.RelativeInput{
		EBITDA:            models.ValOr(latest.EBITDA, 0),
		NetIncome:         models.ValOr(latest.NetIncome, 0),
		NetDebt:           bridge.NetDebt,
		SharesOutstanding: bridge.SharesOutstanding,
		Peers:             mkt.Peers,
	})
}

// targetPrice blends the DCF per-share value with the relative midpoint using
// the configured weights. Without a relative result the DCF value stands
// alone.
func (o *Orchestrator) targetPrice(dcf *valuation.Result, rel *valuation.RelativeResult) float64 {
	if rel == nil {
		return dcf.ValuePerShare
	}
	return o.cfg.Valuation.DCFWeight*dcf.ValuePerShare + o.cfg.Valuation.RelativeWeight*rel.PerShareMid
}

// axis converts configured offsets into absolute axis values anchored on the
// base case. The WACC axis anchors on the computed base WACC; other
// parameters anchor on their first-year base value.
func (o *Orchestrator) axis(param string, offsets []float64, base assumption.Assumptions, baseRes *valuation.Result) sensitivity.Axis {
	var anchor float64
	switch param {
	case sensitivity.ParamWACC:
		anchor = baseRes.WACC.WACC
	case sensitivity.ParamTerminalGrowth:
		anchor = base.TerminalGrowth
	case sensitivity.ParamRevenueGrowth:
		if len(base.RevenueGrowth) > 0 {
			anchor = base.RevenueGrowth[0]
		}
	case sensitivity.ParamEBITMargin:
		if len(base.EBITMargin) > 0 {
			anchor = base.EBITMargin[0]
		}
	case sensitivity.ParamTaxRate:
		anchor = base.TaxRate
	case sensitivity.ParamExitMultiple:
		if base.ExitMultiple != nil {
			anchor = *base.ExitMultiple
		}
	}

	values := make([]float64, len(offsets))
	for i, off := range offsets {
		values[i] = anchor + off
	}
	return sensitivity.Axis{Param: param, Values: values}
}
