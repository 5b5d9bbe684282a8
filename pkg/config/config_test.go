package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcfengine/pkg/core/audit"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dcf.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 5, cfg.ForecastYears)
	assert.Contains(t, cfg.Scenarios, "bull")
	assert.Contains(t, cfg.Scenarios, "bear")
	assert.Equal(t, 1.5, cfg.Scenarios["bull"].GrowthMult)
	assert.Equal(t, 0.70, cfg.Audit.Thresholds.TerminalValueMaxPct)
	assert.InDelta(t, 1.0, cfg.Valuation.DCFWeight+cfg.Valuation.RelativeWeight, 1e-9)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().ForecastYears, cfg.ForecastYears)
}

func TestLoadOverlaysFile(t *testing.T) {
	path := writeConfig(t, `
company: acme
forecast_years: 7
overrides:
  tax_rate: 0.21
scenarios:
  bull:
    growth_mult: 2.0
audit:
  thresholds:
    wacc_min: 0.05
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "acme", cfg.Company)
	assert.Equal(t, 7, cfg.ForecastYears)
	require.NotNil(t, cfg.Overrides.TaxRate)
	assert.Equal(t, 0.21, *cfg.Overrides.TaxRate)
	assert.Equal(t, 2.0, cfg.Scenarios["bull"].GrowthMult)
	assert.Equal(t, 0.05, cfg.Audit.Thresholds.WACCMin)
	// Untouched sections keep their defaults.
	assert.Equal(t, "wacc", cfg.Sensitivity.Grid.XParam)
}

func TestLoadEnvironmentWins(t *testing.T) {
	path := writeConfig(t, "forecast_years: 7\n")
	t.Setenv("DCF_FORECAST_YEARS", "9")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.ForecastYears)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "forecst_years: 7\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateCrossFieldRules(t *testing.T) {
	cfg := Default()
	cfg.Valuation.DCFWeight = 0.9 // 0.9 + 0.3 != 1
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Scenarios["base"] = cfg.Scenarios["bull"]
	assert.Error(t, cfg.Validate(), "base scenario name is reserved")

	cfg = Default()
	cfg.ForecastYears = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Valuation.TerminalMethod = "crystal_ball"
	assert.Error(t, cfg.Validate())
}

func TestSeverityOverridesParse(t *testing.T) {
	path := writeConfig(t, `
audit:
  severity:
    balance_sheet_identity: warning
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, audit.SeverityWarning, cfg.Audit.Severity["balance_sheet_identity"])
}
