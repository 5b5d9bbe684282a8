package valuation

import (
	"fmt"
	"math"
)

// weightTol is the allowed deviation of WeightEquity + WeightDebt from 1.
const weightTol = 1e-4

// WACCInput carries the discount-rate components and capital-structure
// weights for the cost of capital build-up.
type WACCInput struct {
	RiskFreeRate      float64
	Beta              float64
	EquityRiskPremium float64
	PretaxCostOfDebt  float64
	TaxRate           float64
	WeightEquity      float64
	WeightDebt        float64

	// Override replaces the blended WACC while keeping the component
	// build-up intact. Sensitivity sweeps use it to perturb the discount
	// rate directly.
	Override *float64
}

// WACCResult holds the calculated rates. Weights always sum to 1.
type WACCResult struct {
	CostOfEquity       float64 `json:"cost_of_equity"`
	CostOfDebtAfterTax float64 `json:"cost_of_debt_after_tax"`
	WeightEquity       float64 `json:"weight_equity"`
	WeightDebt         float64 `json:"weight_debt"`
	WACC               float64 `json:"wacc"`
}

// CalculateWACC computes cost of equity via CAPM, after-tax cost of debt,
// and the blended WACC.
//
//	Ke   = Rf + Beta * ERP
//	Kd   = PretaxKd * (1 - t)
//	WACC = We*Ke + Wd*Kd
func CalculateWACC(in WACCInput) (WACCResult, error) {
	if in.WeightEquity < 0 || in.WeightEquity > 1 {
		return WACCResult{}, &InvalidInputError{Field: "weight_equity",
			Reason: fmt.Sprintf("must be in [0,1], got %.4f", in.WeightEquity)}
	}
	if in.WeightDebt < 0 || in.WeightDebt > 1 {
		return WACCResult{}, &InvalidInputError{Field: "weight_debt",
			Reason: fmt.Sprintf("must be in [0,1], got %.4f", in.WeightDebt)}
	}
	if sum := in.WeightEquity + in.WeightDebt; math.Abs(sum-1) > weightTol {
		return WACCResult{}, &InvalidInputError{Field: "capital_weights",
			Reason: fmt.Sprintf("must sum to 1, got %.6f", sum)}
	}

	ke := in.RiskFreeRate + in.Beta*in.EquityRiskPremium
	kd := in.PretaxCostOfDebt * (1 - in.TaxRate)
	wacc := in.WeightEquity*ke + in.WeightDebt*kd
	if in.Override != nil {
		wacc = *in.Override
	}

	if wacc <= 0 {
		return WACCResult{}, &InvalidInputError{Field: "wacc",
			Reason: fmt.Sprintf("must be positive, got %.6f", wacc)}
	}

	return WACCResult{
		CostOfEquity:       ke,
		CostOfDebtAfterTax: kd,
		WeightEquity:       in.WeightEquity,
		WeightDebt:         in.WeightDebt,
		WACC:               wacc,
	}, nil
}
