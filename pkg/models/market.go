package models

// PeerMultiple holds one comparable company's trading multiples. Absent
// multiples stay nil so the relative valuation can skip them instead of
// treating them as zero.
type PeerMultiple struct {
	Name     string   `json:"name"`
	EVEBITDA *float64 `json:"ev_ebitda,omitempty"`
	PE       *float64 `json:"pe,omitempty"`
	PB       *float64 `json:"pb,omitempty"`
}

// MarketData is the market-side input record supplied by data acquisition.
// Any field may be absent; the engine never assumes completeness.
type MarketData struct {
	SharePrice        *float64       `json:"share_price,omitempty"`
	SharesOutstanding *float64       `json:"shares_outstanding,omitempty"` // diluted, millions
	MarketCap         *float64       `json:"market_cap,omitempty"`
	Beta              *float64       `json:"beta,omitempty"`
	RiskFreeRate      *float64       `json:"risk_free_rate,omitempty"`
	EquityRiskPremium *float64       `json:"equity_risk_premium,omitempty"`
	PretaxCostOfDebt  *float64       `json:"pretax_cost_of_debt,omitempty"`
	ExitMultiple      *float64       `json:"exit_multiple,omitempty"` // EV/EBITDA
	Peers             []PeerMultiple `json:"peers,omitempty"`
}
