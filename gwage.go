// Package gwage relates contaminant concentrations observed at a groundwater
// receptor (a well or spring) to the concentration history at the
// contaminant's source, mixing flow paths of differing transit time through a
// binary exponential-piston-flow (BEPFM) age distribution.
//
// Forward use: build an age distribution (MakeAgeDist) and convolve a source
// history through it (Convolute, PredictReceptor, Scenario.Predict). Inverse
// use: estimate an unknown source history from receptor observations
// (PredictHistoricalSource, EstimateSourceConc), fitting bounded parameters
// with a shuffled-complex-evolution search.
//
// Times are decimal years, 0 = present, negative = past. Calendar dates map
// to decimal years at a fixed 365.25 days/year relative to the minimum date
// of the series being converted.
package gwage

import "time"

// Verbose enables timer and progress prints on the fit paths.
var Verbose = false

const (
	hoursPerYear = 365.25 * 24.

	// solver seed; fixed so identical inputs reproduce identical fits
	fitSeed = 1618033988
)

// yearsSince converts a date to decimal years after epoch.
func yearsSince(epoch, d time.Time) float64 {
	return d.Sub(epoch).Hours() / hoursPerYear
}

// dateAt converts decimal years after epoch back to a date.
func dateAt(epoch time.Time, yrs float64) time.Time {
	return epoch.Add(time.Duration(yrs * hoursPerYear * float64(time.Hour)))
}
