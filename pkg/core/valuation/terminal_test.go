package valuation

import (
	"errors"
	"math"
	"testing"

	"dcfengine/pkg/models"
)

func TestCalculateTerminalValuePerpetuity(t *testing.T) {
	// TV = 100 * 1.025 / (0.08 - 0.025) = 102.5 / 0.055 = 1863.6364
	tv, err := CalculateTerminalValue(TerminalInput{
		Scenario:       "base",
		FCFFTerminal:   100,
		WACC:           0.08,
		TerminalGrowth: 0.025,
	})
	if err != nil {
		t.Fatalf("CalculateTerminalValue failed: %v", err)
	}
	if math.Abs(tv.PerpetuityValue-1863.636363) > 1e-4 {
		t.Errorf("Expected perpetuity TV 1863.64, got %f", tv.PerpetuityValue)
	}
	if tv.MethodUsed != MethodPerpetuity {
		t.Errorf("Expected default method perpetuity, got %q", tv.MethodUsed)
	}
	if tv.Selected() != tv.PerpetuityValue {
		t.Error("Selected() must return the perpetuity value for the default method")
	}
}

func TestCalculateTerminalValueRejectsGrowthAtOrAboveWACC(t *testing.T) {
	for _, g := range []float64{0.08, 0.09} {
		_, err := CalculateTerminalValue(TerminalInput{
			Scenario: "stress", FCFFTerminal: 100, WACC: 0.08, TerminalGrowth: g,
		})
		if err == nil {
			t.Fatalf("Expected error for terminal growth %.2f vs WACC 0.08", g)
		}
		var iae *InvalidAssumptionError
		if !errors.As(err, &iae) {
			t.Fatalf("Expected InvalidAssumptionError, got %T: %v", err, err)
		}
		if iae.Param != "terminal_growth" || iae.Scenario != "stress" {
			t.Errorf("Error misses context: %+v", iae)
		}
	}
}

func TestCalculateTerminalValueExitMultiple(t *testing.T) {
	// EBITDA 250 * 10x = 2500; perpetuity is still computed for comparison.
	tv, err := CalculateTerminalValue(TerminalInput{
		FCFFTerminal:   100,
		EBITDATerminal: 250,
		WACC:           0.08,
		TerminalGrowth: 0.02,
		ExitMultiple:   models.F(10.0),
		Method:         MethodExitMultiple,
	})
	if err != nil {
		t.Fatalf("CalculateTerminalValue failed: %v", err)
	}
	if tv.ExitMultipleValue == nil || *tv.ExitMultipleValue != 2500 {
		t.Fatalf("Expected exit-multiple TV 2500, got %v", tv.ExitMultipleValue)
	}
	if tv.Selected() != 2500 {
		t.Errorf("Expected Selected() 2500, got %f", tv.Selected())
	}
	if tv.PerpetuityValue == 0 {
		t.Error("Perpetuity value must still be computed alongside the multiple")
	}
}

func TestCalculateTerminalValueExitMethodWithoutMultiple(t *testing.T) {
	_, err := CalculateTerminalValue(TerminalInput{
		FCFFTerminal: 100, WACC: 0.08, TerminalGrowth: 0.02,
		Method: MethodExitMultiple,
	})
	if err == nil {
		t.Error("Expected error when exit-multiple method has no multiple")
	}
}
