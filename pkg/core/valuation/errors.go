package valuation

import "fmt"

// InvalidAssumptionError reports a violated modeling precondition, e.g.
// terminal growth at or above the discount rate. It is surfaced at the point
// of violation and never silently clamped.
type InvalidAssumptionError struct {
	Scenario string
	Param    string
	Value    float64
	Limit    float64
	Reason   string
}

func (e *InvalidAssumptionError) Error() string {
	s := e.Scenario
	if s == "" {
		s = "base"
	}
	return fmt.Sprintf("invalid assumption in scenario %q: %s=%.4f (limit %.4f): %s",
		s, e.Param, e.Value, e.Limit, e.Reason)
}

// InvalidInputError reports malformed input, e.g. capital weights that do not
// sum to one.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input %q: %s", e.Field, e.Reason)
}
