package gwage

import "fmt"

// InvalidParameterError reports a caller-fixable input problem: out-of-range
// fractions or residence times, malformed bound shapes, bad start/stop
// ordering, or an over/under-specified mrt/mrtP2 pair. Raised before any
// numerical work begins.
type InvalidParameterError struct {
	Msg string
}

func (e *InvalidParameterError) Error() string { return "gwage: invalid parameter: " + e.Msg }

func invalidParamf(format string, args ...interface{}) error {
	return &InvalidParameterError{Msg: fmt.Sprintf(format, args...)}
}

// MissingHistoryError reports a lookup key absent from a source history that
// was expected to be fully covered. It indicates a coverage-construction bug
// in the caller, not bad user input.
type MissingHistoryError struct {
	Key float64 // time (yr) that failed to resolve
}

func (e *MissingHistoryError) Error() string {
	return fmt.Sprintf("gwage: source history has no value at t=%g yr", e.Key)
}

// InsufficientDataError reports that the supplied source history does not
// reach far enough into the past and the uncovered probability mass is at or
// above the fill threshold.
type InsufficientDataError struct {
	MissingFrac  float64 // uncovered mass fraction of the age distribution
	MinSupplyAge float64 // earliest time (yr) the history must reach to pass
	Threshold    float64
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("gwage: source history misses %.2f%% of the age distribution on the old end (threshold %g); supply concentrations back to at least %g yr",
		e.MissingFrac*100., e.Threshold, e.MinSupplyAge)
}

// OptimizationFailureError reports that the nonlinear solver failed: bounds
// were infeasible or no finite optimum was found within its iteration budget.
type OptimizationFailureError struct {
	Msg   string
	Resid float64 // objective at the returned point, NaN if never evaluated
}

func (e *OptimizationFailureError) Error() string {
	return "gwage: optimization failed: " + e.Msg
}
