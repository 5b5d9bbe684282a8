package report

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcfengine/pkg/config"
	"dcfengine/pkg/core/pipeline"
	"dcfengine/pkg/models"
)

func completedRun(t *testing.T) *pipeline.Run {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)

	run, err := pipeline.New(cfg, zerolog.Nop()).Execute(context.Background(), pipeline.Input{
		Company: "acme",
		Raw: models.RawHistory{
			2022: {
				"revenue": 950.0, "ebit": 180.5, "depreciation": 47.5,
				"income_before_tax": 174.0, "income_tax_expense": 43.5,
				"cash": 95.0, "current_assets": 285.0, "current_liabilities": 142.5,
				"net_ppe": 475.0, "total_assets": 1140.0,
				"total_debt": 285.0, "total_liabilities": 427.5, "total_equity": 712.5,
				"capex": 57.0,
			},
			2023: {
				"revenue": 1000.0, "ebit": 190.0, "depreciation": 50.0,
				"income_before_tax": 183.0, "income_tax_expense": 45.75,
				"cash": 100.0, "current_assets": 300.0, "current_liabilities": 150.0,
				"net_ppe": 500.0, "total_assets": 1200.0,
				"total_debt": 300.0, "total_liabilities": 450.0, "total_equity": 750.0,
				"capex": 60.0,
			},
		},
		Market: models.MarketData{
			SharePrice:        models.F(25.0),
			SharesOutstanding: models.F(100.0),
			Beta:              models.F(1.1),
			RiskFreeRate:      models.F(0.03),
			EquityRiskPremium: models.F(0.05),
			PretaxCostOfDebt:  models.F(0.05),
			Peers: []models.PeerMultiple{
				{Name: "p1", EVEBITDA: models.F(9.0)},
				{Name: "p2", EVEBITDA: models.F(11.0)},
			},
		},
	})
	require.NoError(t, err)
	return run
}

func TestRenderMarkdownSections(t *testing.T) {
	md := RenderMarkdown(completedRun(t))

	for _, section := range []string{
		"# Valuation Report: acme",
		"## Summary",
		"## Base Assumptions",
		"## Projected Free Cash Flow",
		"## Scenarios",
		"## Sensitivity:",
		"## Relative Valuation",
		"## Audit",
	} {
		assert.Contains(t, md, section)
	}

	// Scenario table lists all three cases.
	for _, name := range []string{"| base |", "| bear |", "| bull |"} {
		assert.Contains(t, md, name)
	}
}

func TestRenderMarkdownOmitsAbsentSections(t *testing.T) {
	run := completedRun(t)
	run.Relative = nil
	run.Sweeps = nil

	md := RenderMarkdown(run)
	assert.NotContains(t, md, "## Relative Valuation")
}

func TestRenderHTML(t *testing.T) {
	html, err := RenderHTML(completedRun(t))
	require.NoError(t, err)

	s := string(html)
	// GFM tables must come out as real HTML tables, not literal pipes.
	assert.Contains(t, s, "<table>")
	assert.Contains(t, s, "<h2")
	assert.Contains(t, s, "acme")
}
