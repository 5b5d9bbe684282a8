// Package sensitivity re-runs the projection->valuation pipeline under
// perturbed assumption grids and named scenarios. The pipeline is a pure
// function of Assumptions, so grid cells are evaluated concurrently with no
// shared state beyond collecting results into the output table. Cells whose
// combination violates a precondition (e.g. g >= WACC) are recorded as
// explicitly undefined, never omitted: the grid always has full coordinate
// coverage.
package sensitivity

import (
	"errors"
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"dcfengine/pkg/core/assumption"
	"dcfengine/pkg/core/valuation"
	"dcfengine/pkg/models"
)

// RunFunc is the projection->WACC->terminal->DCF pipeline as a pure,
// deterministic function of one assumption set.
type RunFunc func(assumption.Assumptions) (*valuation.Result, error)

// Parameter names accepted by axes and sweeps.
const (
	ParamWACC           = "wacc"
	ParamTerminalGrowth = "terminal_growth"
	ParamRevenueGrowth  = "revenue_growth"
	ParamEBITMargin     = "ebit_margin"
	ParamTaxRate        = "tax_rate"
	ParamExitMultiple   = "exit_multiple"
)

// Axis is one perturbation dimension: a parameter name and the absolute
// values to evaluate it at.
type Axis struct {
	Param  string    `json:"param"`
	Values []float64 `json:"values"`
}

// Cell is one grid entry. Defined is false when the parameter combination
// violated a modeling precondition; such cells carry the reason instead of a
// value.
type Cell struct {
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	ValuePerShare float64 `json:"value_per_share"`
	Defined       bool    `json:"defined"`
	Note          string  `json:"note,omitempty"`
}

// Grid is the 2-D sensitivity table, row-major: Cells[i][j] corresponds to
// YValues[i] x XValues[j].
type Grid struct {
	XParam  string      `json:"x_param"`
	YParam  string      `json:"y_param"`
	XValues []float64   `json:"x_values"`
	YValues []float64   `json:"y_values"`
	Cells   [][]Cell    `json:"cells"`
}

// SweepPoint is one entry of a 1-D sensitivity sweep.
type SweepPoint struct {
	Value   float64            `json:"value"`
	Result  *valuation.Result  `json:"result,omitempty"`
	Defined bool               `json:"defined"`
	Note    string             `json:"note,omitempty"`
}

// Sweep is a single-axis sensitivity table.
type Sweep struct {
	Param  string       `json:"param"`
	Points []SweepPoint `json:"points"`
}

// apply sets one named parameter on a cloned assumption set. Unknown names
// are an input error so a typo in an axis definition fails loudly.
func apply(a *assumption.Assumptions, param string, value float64) error {
	switch param {
	case ParamWACC:
		a.WACCOverride = models.F(value)
	case ParamTerminalGrowth:
		a.TerminalGrowth = value
	case ParamRevenueGrowth:
		for i := range a.RevenueGrowth {
			a.RevenueGrowth[i] = value
		}
	case ParamEBITMargin:
		for i := range a.EBITMargin {
			a.EBITMargin[i] = value
		}
	case ParamTaxRate:
		a.TaxRate = value
	case ParamExitMultiple:
		a.ExitMultiple = models.F(value)
	default:
		return &valuation.InvalidInputError{Field: "sensitivity_param",
			Reason: fmt.Sprintf("unknown parameter %q", param)}
	}
	return nil
}

// EvaluateGrid computes the full 2-D table. Cells run concurrently; workers
// <= 0 means GOMAXPROCS.
func EvaluateGrid(base assumption.Assumptions, x, y Axis, run RunFunc, workers int) (*Grid, error) {
	if len(x.Values) == 0 || len(y.Values) == 0 {
		return nil, &valuation.InvalidInputError{Field: "sensitivity_axes", Reason: "both axes need at least one value"}
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	grid := &Grid{
		XParam:  x.Param,
		YParam:  y.Param,
		XValues: append([]float64(nil), x.Values...),
		YValues: append([]float64(nil), y.Values...),
		Cells:   make([][]Cell, len(y.Values)),
	}
	for i := range grid.Cells {
		grid.Cells[i] = make([]Cell, len(x.Values))
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i, yv := range y.Values {
		for j, xv := range x.Values {
			i, j, xv, yv := i, j, xv, yv
			g.Go(func() error {
				cell, err := evaluateCell(base, x.Param, xv, y.Param, yv, run)
				if err != nil {
					return err
				}
				grid.Cells[i][j] = cell
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return grid, nil
}

// evaluateCell runs one parameter combination. Precondition violations become
// undefined cells; anything else is a genuine failure.
func evaluateCell(base assumption.Assumptions, xp string, xv float64, yp string, yv float64, run RunFunc) (Cell, error) {
	a := base.Clone()
	if err := apply(&a, xp, xv); err != nil {
		return Cell{}, err
	}
	if err := apply(&a, yp, yv); err != nil {
		return Cell{}, err
	}

	res, err := run(a)
	if err != nil {
		var iae *valuation.InvalidAssumptionError
		if errors.As(err, &iae) {
			return Cell{X: xv, Y: yv, Defined: false, Note: iae.Reason}, nil
		}
		return Cell{}, fmt.Errorf("grid cell (%s=%.4f, %s=%.4f): %w", xp, xv, yp, yv, err)
	}
	return Cell{X: xv, Y: yv, ValuePerShare: res.ValuePerShare, Defined: true}, nil
}

// EvaluateSweep computes a 1-D sensitivity table sequentially (axes are
// short; parallelism buys nothing here).
func EvaluateSweep(base assumption.Assumptions, axis Axis, run RunFunc) (*Sweep, error) {
	sweep := &Sweep{Param: axis.Param, Points: make([]SweepPoint, 0, len(axis.Values))}
	for _, v := range axis.Values {
		a := base.Clone()
		if err := apply(&a, axis.Param, v); err != nil {
			return nil, err
		}
		res, err := run(a)
		if err != nil {
			var iae *valuation.InvalidAssumptionError
			if errors.As(err, &iae) {
				sweep.Points = append(sweep.Points, SweepPoint{Value: v, Defined: false, Note: iae.Reason})
				continue
			}
			return nil, fmt.Errorf("sweep %s=%.4f: %w", axis.Param, v, err)
		}
		sweep.Points = append(sweep.Points, SweepPoint{Value: v, Result: res, Defined: true})
	}
	return sweep, nil
}

// ScenarioOutcome pairs a scenario's assumptions with its full valuation.
type ScenarioOutcome struct {
	Assumptions assumption.Assumptions `json:"assumptions"`
	Result      *valuation.Result      `json:"result"`
}

// ScenarioSet maps scenario name -> outcome. Base is always present.
type ScenarioSet struct {
	Outcomes map[string]ScenarioOutcome `json:"outcomes"`
}

// Names returns scenario names, base first, rest alphabetical.
func (s *ScenarioSet) Names() []string {
	names := make([]string, 0, len(s.Outcomes))
	for n := range s.Outcomes {
		if n != "base" {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	if _, ok := s.Outcomes["base"]; ok {
		names = append([]string{"base"}, names...)
	}
	return names
}

// Base returns the base-case outcome.
func (s *ScenarioSet) Base() ScenarioOutcome { return s.Outcomes["base"] }

// RunScenarios evaluates the base case plus each configured delta variant.
// Scenario failures are real failures: a bull case that violates g < WACC is
// a configuration problem, not an undefined grid corner.
func RunScenarios(base assumption.Assumptions, deltas map[string]assumption.Delta, run RunFunc) (*ScenarioSet, error) {
	set := &ScenarioSet{Outcomes: make(map[string]ScenarioOutcome, len(deltas)+1)}

	baseRes, err := run(base)
	if err != nil {
		return nil, fmt.Errorf("scenario base: %w", err)
	}
	set.Outcomes["base"] = ScenarioOutcome{Assumptions: base, Result: baseRes}

	for name, d := range deltas {
		a := assumption.ApplyDelta(base, name, d)
		res, err := run(a)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", name, err)
		}
		set.Outcomes[name] = ScenarioOutcome{Assumptions: a, Result: res}
	}
	return set, nil
}
