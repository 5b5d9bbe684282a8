// Package config loads and validates run configuration. Sources layer in
// precedence order: built-in defaults, then the YAML file, then DCF_*
// environment variables. The file is optional; a run with no config at all
// uses the documented defaults end to end.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"dcfengine/pkg/core/assumption"
	"dcfengine/pkg/core/audit"
	"dcfengine/pkg/core/valuation"
)

// GridConfig defines the 2-D sensitivity table as offsets from the base-case
// parameter values. Offsets rather than absolute values keep one config
// reusable across companies.
type GridConfig struct {
	XParam   string    `yaml:"x_param" validate:"required"`
	YParam   string    `yaml:"y_param" validate:"required"`
	XOffsets []float64 `yaml:"x_offsets" validate:"min=1"`
	YOffsets []float64 `yaml:"y_offsets" validate:"min=1"`
}

// SweepConfig is one 1-D sweep, again offset-based.
type SweepConfig struct {
	Param   string    `yaml:"param" validate:"required"`
	Offsets []float64 `yaml:"offsets" validate:"min=1"`
}

// SensitivityConfig groups the grid and the sweeps.
type SensitivityConfig struct {
	Grid    GridConfig    `yaml:"grid"`
	Sweeps  []SweepConfig `yaml:"sweeps"`
	Workers int           `yaml:"workers" envconfig:"WORKERS"` // <=0: GOMAXPROCS
}

// AuditConfig wraps thresholds plus per-check severity remapping.
type AuditConfig struct {
	Thresholds audit.Thresholds          `yaml:"thresholds"`
	Severity   map[string]audit.Severity `yaml:"severity"`
}

// ValuationConfig holds the target-price blend and rating cutoffs.
type ValuationConfig struct {
	TerminalMethod string                          `yaml:"terminal_method" validate:"oneof=perpetuity exit_multiple"`
	DCFWeight      float64                         `yaml:"dcf_weight" validate:"gte=0,lte=1"`
	RelativeWeight float64                         `yaml:"relative_weight" validate:"gte=0,lte=1"`
	Cutoffs        valuation.RecommendationCutoffs `yaml:"recommendation_cutoffs"`
}

// Config is the full run configuration.
type Config struct {
	Company       string `yaml:"company" envconfig:"COMPANY"`
	ForecastYears int    `yaml:"forecast_years" envconfig:"FORECAST_YEARS" validate:"gt=0,lte=15"`

	Overrides assumption.Overrides        `yaml:"overrides"`
	Bounds    assumption.Bounds           `yaml:"bounds"`
	Scenarios map[string]assumption.Delta `yaml:"scenarios"`

	Sensitivity SensitivityConfig `yaml:"sensitivity"`
	Audit       AuditConfig       `yaml:"audit"`
	Valuation   ValuationConfig   `yaml:"valuation"`
}

// Default returns the built-in configuration: a five-year horizon, the usual
// bull/bear deltas, a WACC x terminal-growth grid, and the standard audit
// thresholds.
func Default() Config {
	return Config{
		ForecastYears: assumption.DefaultForecastYears,
		Bounds:        assumption.DefaultBounds(),
		Scenarios: map[string]assumption.Delta{
			"bull": {GrowthMult: 1.5, MarginMult: 1.2},
			"bear": {GrowthMult: 0.7, MarginMult: 0.8},
		},
		Sensitivity: SensitivityConfig{
			Grid: GridConfig{
				XParam:   "wacc",
				YParam:   "terminal_growth",
				XOffsets: []float64{-0.02, -0.01, 0, 0.01, 0.02},
				YOffsets: []float64{-0.01, -0.005, 0, 0.005, 0.01},
			},
			Sweeps: []SweepConfig{
				{Param: "revenue_growth", Offsets: []float64{-0.05, -0.02, 0, 0.02, 0.05}},
				{Param: "ebit_margin", Offsets: []float64{-0.02, -0.01, 0, 0.01, 0.02}},
			},
		},
		Audit: AuditConfig{Thresholds: audit.DefaultThresholds()},
		Valuation: ValuationConfig{
			TerminalMethod: valuation.MethodPerpetuity,
			DCFWeight:      0.7,
			RelativeWeight: 0.3,
			Cutoffs:        valuation.DefaultCutoffs(),
		},
	}
}

// Load builds the effective configuration: defaults, overlaid by the YAML
// file at path (skipped when path is empty), overlaid by DCF_* environment
// variables, then validated.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.UnmarshalStrict(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := envconfig.Process("dcf", &cfg); err != nil {
		return Config{}, fmt.Errorf("process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate runs struct-tag validation plus the cross-field rules the tags
// cannot express.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if sum := c.Valuation.DCFWeight + c.Valuation.RelativeWeight; sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("invalid config: dcf_weight + relative_weight must sum to 1, got %.4f", sum)
	}
	for name, d := range c.Scenarios {
		if name == "base" {
			return fmt.Errorf("invalid config: scenario name %q is reserved", name)
		}
		if d.GrowthMult < 0 || d.MarginMult < 0 {
			return fmt.Errorf("invalid config: scenario %q has a negative multiplier", name)
		}
	}
	return nil
}
