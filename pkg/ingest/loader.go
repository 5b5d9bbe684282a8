// Package ingest loads run inputs from local files: financial statements and
// market data from Hjson, peer multiples from saved HTML comp tables. It only
// reads and shapes data; canonical mapping and derivation belong to the
// normalize package.
package ingest

import (
	"fmt"
	"os"
	"strconv"

	"github.com/hjson/hjson-go/v4"

	"dcfengine/pkg/models"
)

// statementsFile is the on-disk statement layout. Hjson keeps the input files
// hand-editable: comments, trailing commas, and unquoted keys are all fine.
type statementsFile struct {
	Company    string                        `json:"company"`
	Statements map[string]map[string]float64 `json:"statements"` // fiscal year -> line item -> value
}

// LoadStatements reads a raw statement history file. Line-item keys pass
// through untouched; alias resolution happens downstream.
func LoadStatements(path string) (string, models.RawHistory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("read statements %s: %w", path, err)
	}

	var f statementsFile
	if err := hjson.Unmarshal(data, &f); err != nil {
		return "", nil, fmt.Errorf("parse statements %s: %w", path, err)
	}
	if len(f.Statements) == 0 {
		return "", nil, fmt.Errorf("statements %s: no fiscal years", path)
	}

	raw := make(models.RawHistory, len(f.Statements))
	for yearKey, items := range f.Statements {
		year, err := strconv.Atoi(yearKey)
		if err != nil {
			return "", nil, fmt.Errorf("statements %s: fiscal year key %q is not a year", path, yearKey)
		}
		raw[year] = models.RawStatement(items)
	}
	return f.Company, raw, nil
}

// marketFile is the on-disk market data layout.
type marketFile struct {
	SharePrice        *float64 `json:"share_price"`
	SharesOutstanding *float64 `json:"shares_outstanding"`
	MarketCap         *float64 `json:"market_cap"`
	Beta              *float64 `json:"beta"`
	RiskFreeRate      *float64 `json:"risk_free_rate"`
	EquityRiskPremium *float64 `json:"equity_risk_premium"`
	PretaxCostOfDebt  *float64 `json:"pretax_cost_of_debt"`
	ExitMultiple      *float64 `json:"exit_multiple"`

	Peers []struct {
		Name     string   `json:"name"`
		EVEBITDA *float64 `json:"ev_ebitda"`
		PE       *float64 `json:"pe"`
		PB       *float64 `json:"pb"`
	} `json:"peers"`
}

// LoadMarket reads a market data file. Absent fields stay nil so the
// assumption builder can apply its documented fallbacks.
func LoadMarket(path string) (models.MarketData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.MarketData{}, fmt.Errorf("read market data %s: %w", path, err)
	}

	var f marketFile
	if err := hjson.Unmarshal(data, &f); err != nil {
		return models.MarketData{}, fmt.Errorf("parse market data %s: %w", path, err)
	}

	md := models.MarketData{
		SharePrice:        f.SharePrice,
		SharesOutstanding: f.SharesOutstanding,
		MarketCap:         f.MarketCap,
		Beta:              f.Beta,
		RiskFreeRate:      f.RiskFreeRate,
		EquityRiskPremium: f.EquityRiskPremium,
		PretaxCostOfDebt:  f.PretaxCostOfDebt,
		ExitMultiple:      f.ExitMultiple,
	}
	for _, p := range f.Peers {
		md.Peers = append(md.Peers, models.PeerMultiple{
			Name: p.Name, EVEBITDA: p.EVEBITDA, PE: p.PE, PB: p.PB,
		})
	}
	return md, nil
}
