package valuation

// Terminal value methods. Perpetuity growth is the default primary; whether
// exit-multiple should ever headline instead is a caller/report decision, so
// both values are always retained when computable.
const (
	MethodPerpetuity   = "perpetuity"
	MethodExitMultiple = "exit_multiple"
)

// TerminalValue holds both terminal value computations. ExitMultipleValue is
// nil when no exit multiple was supplied.
type TerminalValue struct {
	PerpetuityValue   float64  `json:"perpetuity_value"`
	ExitMultipleValue *float64 `json:"exit_multiple_value,omitempty"`
	ExitMultiple      *float64 `json:"exit_multiple,omitempty"`
	TerminalGrowth    float64  `json:"terminal_growth"`
	MethodUsed        string   `json:"method_used"`
}

// Selected returns the value of the primary method.
func (tv TerminalValue) Selected() float64 {
	if tv.MethodUsed == MethodExitMultiple && tv.ExitMultipleValue != nil {
		return *tv.ExitMultipleValue
	}
	return tv.PerpetuityValue
}

// TerminalInput carries the terminal-year metrics and rate inputs.
type TerminalInput struct {
	Scenario       string
	FCFFTerminal   float64 // final projected year FCFF
	EBITDATerminal float64 // final projected year EBITDA, for the multiple
	WACC           float64
	TerminalGrowth float64
	ExitMultiple   *float64 // EV/EBITDA, optional
	Method         string   // MethodPerpetuity (default) or MethodExitMultiple
}

// CalculateTerminalValue computes the perpetuity-growth terminal value
//
//	TV = FCFF_N * (1+g) / (WACC - g)
//
// and, when an exit multiple is available, the exit-multiple value
// EBITDA_N * multiple. g < WACC is a precondition: perpetuity growth with
// g >= r diverges, so the violation is rejected before any division.
func CalculateTerminalValue(in TerminalInput) (TerminalValue, error) {
	if in.TerminalGrowth >= in.WACC {
		return TerminalValue{}, &InvalidAssumptionError{
			Scenario: in.Scenario,
			Param:    "terminal_growth",
			Value:    in.TerminalGrowth,
			Limit:    in.WACC,
			Reason:   "terminal growth must be below WACC for the perpetuity to converge",
		}
	}

	method := in.Method
	if method == "" {
		method = MethodPerpetuity
	}
	if method == MethodExitMultiple && in.ExitMultiple == nil {
		return TerminalValue{}, &InvalidInputError{Field: "exit_multiple",
			Reason: "exit-multiple method selected but no multiple supplied"}
	}

	tv := TerminalValue{
		PerpetuityValue: in.FCFFTerminal * (1 + in.TerminalGrowth) / (in.WACC - in.TerminalGrowth),
		TerminalGrowth:  in.TerminalGrowth,
		MethodUsed:      method,
	}
	if in.ExitMultiple != nil {
		v := in.EBITDATerminal * *in.ExitMultiple
		tv.ExitMultipleValue = &v
		m := *in.ExitMultiple
		tv.ExitMultiple = &m
	}
	return tv, nil
}
