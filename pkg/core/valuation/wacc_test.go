package valuation

import (
	"math"
	"testing"

	"dcfengine/pkg/models"
)

func TestCalculateWACC(t *testing.T) {
	// Ke = 0.03 + 1.2*0.05 = 0.09
	// Kd = 0.05 * (1 - 0.25) = 0.0375
	// WACC = 0.7*0.09 + 0.3*0.0375 = 0.063 + 0.01125 = 0.07425
	res, err := CalculateWACC(WACCInput{
		RiskFreeRate:      0.03,
		Beta:              1.2,
		EquityRiskPremium: 0.05,
		PretaxCostOfDebt:  0.05,
		TaxRate:           0.25,
		WeightEquity:      0.7,
		WeightDebt:        0.3,
	})
	if err != nil {
		t.Fatalf("CalculateWACC failed: %v", err)
	}
	if math.Abs(res.CostOfEquity-0.09) > 1e-9 {
		t.Errorf("Expected Ke 0.09, got %f", res.CostOfEquity)
	}
	if math.Abs(res.CostOfDebtAfterTax-0.0375) > 1e-9 {
		t.Errorf("Expected after-tax Kd 0.0375, got %f", res.CostOfDebtAfterTax)
	}
	if math.Abs(res.WACC-0.07425) > 1e-9 {
		t.Errorf("Expected WACC 0.07425, got %f", res.WACC)
	}
}

func TestCalculateWACCWeightValidation(t *testing.T) {
	base := WACCInput{
		RiskFreeRate: 0.03, Beta: 1, EquityRiskPremium: 0.05,
		PretaxCostOfDebt: 0.05, TaxRate: 0.25,
	}

	in := base
	in.WeightEquity, in.WeightDebt = 0.7, 0.4 // sums to 1.1
	if _, err := CalculateWACC(in); err == nil {
		t.Error("Expected error for weights not summing to 1")
	}

	in = base
	in.WeightEquity, in.WeightDebt = 1.2, -0.2
	if _, err := CalculateWACC(in); err == nil {
		t.Error("Expected error for weight outside [0,1]")
	}
}

func TestCalculateWACCOverride(t *testing.T) {
	res, err := CalculateWACC(WACCInput{
		RiskFreeRate: 0.03, Beta: 1, EquityRiskPremium: 0.05,
		PretaxCostOfDebt: 0.05, TaxRate: 0.25,
		WeightEquity: 0.7, WeightDebt: 0.3,
		Override: models.F(0.10),
	})
	if err != nil {
		t.Fatalf("CalculateWACC failed: %v", err)
	}
	if res.WACC != 0.10 {
		t.Errorf("Expected overridden WACC 0.10, got %f", res.WACC)
	}
	// Components are still reported from the build-up.
	if math.Abs(res.CostOfEquity-0.08) > 1e-9 {
		t.Errorf("Expected Ke 0.08 alongside override, got %f", res.CostOfEquity)
	}
}
