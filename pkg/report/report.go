// Package report renders a completed valuation run as Markdown and, via
// Goldmark, as standalone HTML. Rendering is presentation only: every number
// comes straight off the run artifact.
package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"dcfengine/pkg/core/audit"
	"dcfengine/pkg/core/pipeline"
	"dcfengine/pkg/core/sensitivity"
)

// RenderMarkdown produces the full run report.
func RenderMarkdown(run *pipeline.Run) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Valuation Report: %s\n\n", run.Company)
	fmt.Fprintf(&b, "Run `%s`, %s, completed in %s.\n\n",
		run.ID, run.StartedAt.Format("2006-01-02"), run.Duration)

	writeSummary(&b, run)
	writeAssumptions(&b, run)
	writeProjections(&b, run)
	writeScenarios(&b, run)
	writeGrid(&b, run.Grid)
	for _, sweep := range run.Sweeps {
		writeSweep(&b, sweep)
	}
	writeRelative(&b, run)
	writeAudit(&b, run.Audit)

	return b.String()
}

// RenderHTML converts the Markdown report to HTML. GFM tables carry most of
// the content, so the table extension is required, not optional.
func RenderHTML(run *pipeline.Run) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var out bytes.Buffer
	if err := md.Convert([]byte(RenderMarkdown(run)), &out); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return out.Bytes(), nil
}

func writeSummary(b *strings.Builder, run *pipeline.Run) {
	base := run.Base()
	b.WriteString("## Summary\n\n")
	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(b, "| Enterprise value | %s |\n", money(base.EnterpriseValue))
	fmt.Fprintf(b, "| Equity value | %s |\n", money(base.EquityValue))
	fmt.Fprintf(b, "| DCF value per share | %s |\n", money(base.ValuePerShare))
	fmt.Fprintf(b, "| Target price | %s |\n", money(run.TargetPrice))
	if run.UpsidePct != nil {
		fmt.Fprintf(b, "| Upside | %+.1f%% |\n", *run.UpsidePct)
		fmt.Fprintf(b, "| Recommendation | %s |\n", run.Recommendation)
	}
	fmt.Fprintf(b, "| WACC | %s |\n", pct(base.WACC.WACC))
	fmt.Fprintf(b, "| Terminal value share of EV | %s |\n", pct(base.TerminalValuePct))
	b.WriteString("\n")
}

func writeAssumptions(b *strings.Builder, run *pipeline.Run) {
	a := run.Assumptions
	b.WriteString("## Base Assumptions\n\n")
	b.WriteString("| Driver | Value |\n|---|---|\n")
	fmt.Fprintf(b, "| Revenue growth (Y1) | %s |\n", pct(a.RevenueGrowth[0]))
	fmt.Fprintf(b, "| EBIT margin (Y1) | %s |\n", pct(a.EBITMargin[0]))
	fmt.Fprintf(b, "| Tax rate | %s |\n", pct(a.TaxRate))
	fmt.Fprintf(b, "| Capex / revenue | %s |\n", pct(a.CapexPctRevenue))
	fmt.Fprintf(b, "| D&A / revenue | %s |\n", pct(a.DepPctRevenue))
	fmt.Fprintf(b, "| NWC / revenue | %s |\n", pct(a.NWCPctRevenue))
	fmt.Fprintf(b, "| Terminal growth | %s |\n", pct(a.TerminalGrowth))
	fmt.Fprintf(b, "| Beta | %.2f |\n", a.Beta)
	fmt.Fprintf(b, "| Risk-free rate | %s |\n", pct(a.RiskFreeRate))
	fmt.Fprintf(b, "| Equity risk premium | %s |\n", pct(a.EquityRiskPremium))
	b.WriteString("\n")
}

func writeProjections(b *strings.Builder, run *pipeline.Run) {
	b.WriteString("## Projected Free Cash Flow\n\n")
	b.WriteString("| Year | Revenue | EBIT | NOPAT | Capex | ΔNWC | FCFF |\n")
	b.WriteString("|---|---|---|---|---|---|---|\n")
	for _, p := range run.Projections.Statements {
		fmt.Fprintf(b, "| %d | %s | %s | %s | %s | %s | %s |\n",
			p.Year, money(p.Revenue), money(p.EBIT), money(p.NOPAT),
			money(p.Capex), money(p.DeltaNWC), money(p.FCFF))
	}
	b.WriteString("\n")
}

func writeScenarios(b *strings.Builder, run *pipeline.Run) {
	b.WriteString("## Scenarios\n\n")
	b.WriteString("| Scenario | Value/share | WACC | Terminal value %EV |\n|---|---|---|---|\n")
	for _, name := range run.Scenarios.Names() {
		out := run.Scenarios.Outcomes[name]
		fmt.Fprintf(b, "| %s | %s | %s | %s |\n",
			name, money(out.Result.ValuePerShare),
			pct(out.Result.WACC.WACC), pct(out.Result.TerminalValuePct))
	}
	b.WriteString("\n")
}

func writeGrid(b *strings.Builder, grid *sensitivity.Grid) {
	if grid == nil {
		return
	}
	fmt.Fprintf(b, "## Sensitivity: %s × %s\n\n", grid.YParam, grid.XParam)

	b.WriteString("| |")
	for _, x := range grid.XValues {
		fmt.Fprintf(b, " %s |", pct(x))
	}
	b.WriteString("\n|---|")
	b.WriteString(strings.Repeat("---|", len(grid.XValues)))
	b.WriteString("\n")

	for i, y := range grid.YValues {
		fmt.Fprintf(b, "| **%s** |", pct(y))
		for _, cell := range grid.Cells[i] {
			if cell.Defined {
				fmt.Fprintf(b, " %s |", money(cell.ValuePerShare))
			} else {
				b.WriteString(" n/m |")
			}
		}
		b.WriteString("\n")
	}
	b.WriteString("\nn/m: combination violates a modeling precondition.\n\n")
}

func writeSweep(b *strings.Builder, sweep *sensitivity.Sweep) {
	fmt.Fprintf(b, "## Sensitivity: %s\n\n", sweep.Param)
	b.WriteString("| Value | Value/share |\n|---|---|\n")
	for _, p := range sweep.Points {
		if p.Defined {
			fmt.Fprintf(b, "| %s | %s |\n", pct(p.Value), money(p.Result.ValuePerShare))
		} else {
			fmt.Fprintf(b, "| %s | n/m |\n", pct(p.Value))
		}
	}
	b.WriteString("\n")
}

func writeRelative(b *strings.Builder, run *pipeline.Run) {
	rel := run.Relative
	if rel == nil {
		return
	}
	b.WriteString("## Relative Valuation\n\n")
	b.WriteString("| Multiple | Peers | Low | Median | High | Implied/share (mid) |\n|---|---|---|---|---|---|\n")
	if rel.EVEBITDA != nil {
		fmt.Fprintf(b, "| EV/EBITDA | %d | %.1fx | %.1fx | %.1fx | %s |\n",
			rel.EVEBITDA.PeerCount, rel.EVEBITDA.Low, rel.EVEBITDA.Median,
			rel.EVEBITDA.High, money(rel.EVEBITDA.PerShareMid))
	}
	if rel.PE != nil {
		fmt.Fprintf(b, "| P/E | %d | %.1fx | %.1fx | %.1fx | %s |\n",
			rel.PE.PeerCount, rel.PE.Low, rel.PE.Median, rel.PE.High, money(rel.PE.PerShareMid))
	}
	fmt.Fprintf(b, "\nPeer-implied range: %s – %s (midpoint %s).\n\n",
		money(rel.PerShareLow), money(rel.PerShareHigh), money(rel.PerShareMid))
}

func writeAudit(b *strings.Builder, rep *audit.Report) {
	if rep == nil {
		return
	}
	pass, warn, errs := rep.Counts()
	fmt.Fprintf(b, "## Audit (%d pass, %d warning, %d error)\n\n", pass, warn, errs)
	b.WriteString("| Check | Severity | Detail |\n|---|---|---|\n")
	for _, f := range rep.Findings {
		fmt.Fprintf(b, "| %s | %s | %s |\n", f.CheckID, f.Severity, f.Message)
	}
	b.WriteString("\n")
}

func money(v float64) string { return fmt.Sprintf("%.2f", v) }
func pct(v float64) string   { return fmt.Sprintf("%.2f%%", v*100) }
