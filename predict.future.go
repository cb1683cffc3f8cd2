package gwage

import "math"

// FillSpec governs the old-end coverage policy of PredictReceptor: probability
// mass the source history fails to cover may be filled with Value (the
// concentration of very old water) while it stays below Threshold.
type FillSpec struct {
	Value     float64
	Threshold float64 // uncovered mass at or above this fraction is fatal
}

// CoverageNote is the non-fatal diagnostic attached to a prediction whose
// source history fell short of the full age distribution and was filled.
type CoverageNote struct {
	MissingFrac  float64 // filled probability mass fraction
	MinSupplyAge float64 // earliest time (yr) to supply to avoid any fill
}

// PredictReceptor forecasts the receptor concentration over [start, stop) at
// the given output spacing, from a possibly sparse source history. The source
// is re-keyed onto the age-distribution grid and linearly interpolated; its
// old end may be back-filled per fill, subject to the threshold rule (missing
// mass ≥ Threshold is an InsufficientDataError). The output spacing must be
// at least the grid step 10^-prec.
func PredictReceptor(source *Series, start, stop float64, p Params, prec int, step float64, fill FillSpec) (*Series, *CoverageNote, error) {
	ad, err := MakeAgeDist(p, prec)
	if err != nil {
		return nil, nil, err
	}
	if step < ad.Step {
		return nil, nil, invalidParamf("output step (%g) must be at least the grid step (%g)", step, ad.Step)
	}
	if fill.Threshold < 0. || fill.Threshold > 1. {
		return nil, nil, invalidParamf("fill threshold (%g) must be within [0,1]", fill.Threshold)
	}
	if source == nil || source.Len() == 0 {
		return nil, nil, invalidParamf("source history is empty")
	}
	if stop <= start {
		return nil, nil, invalidParamf("prediction start (%g) must precede stop (%g)", start, stop)
	}
	reg := source
	if reg.Precision() != prec {
		if reg, err = SeriesOf(source.Times(), source.Values(), prec); err != nil {
			return nil, nil, err
		}
	}
	if reg, err = reg.Regularize(ad.Step); err != nil {
		return nil, nil, err
	}
	if stop > reg.MaxTime() {
		return nil, nil, invalidParamf("prediction stop (%g) exceeds the source history extent (%g)", stop, reg.MaxTime())
	}

	note, err := coverSourceOldEnd(reg, start, ad, fill)
	if err != nil {
		return nil, nil, err
	}

	times := gridTimes(start, stop, step, prec)
	out, err := Convolute(reg, times, ad)
	if err != nil {
		return nil, nil, err
	}
	return out, note, nil
}

// coverSourceOldEnd checks that the source grid reaches old enough to supply
// every age-weighted lookup at the prediction start, back-filling in place
// (the series was built locally) when the uncovered mass is below the fill
// threshold.
func coverSourceOldEnd(reg *Series, start float64, ad *AgeDist, fill FillSpec) (*CoverageNote, error) {
	kStart, k0 := timeKey(start, ad.prec), reg.keys[0]
	missing := 0.
	for i, ka := range ad.ageKeys {
		if kStart-ka < k0 {
			missing += ad.Fractions[i]
		}
	}
	if missing == 0. {
		return nil, nil
	}

	// oldest-first cumulative mass locates the age the history must reach
	// for the uncovered fraction to drop below the threshold
	cum, minPassAge := 0., start-ad.MaxAge()
	for i := len(ad.Fractions) - 1; i >= 0; i-- {
		cum += ad.Fractions[i]
		if cum >= fill.Threshold {
			minPassAge = start - ad.Ages[i]
			break
		}
	}
	if missing >= fill.Threshold {
		return nil, &InsufficientDataError{MissingFrac: missing, MinSupplyAge: minPassAge, Threshold: fill.Threshold}
	}
	kFrom := kStart - ad.ageKeys[len(ad.ageKeys)-1]
	nold := int(k0 - kFrom)
	keys := make([]int64, nold+len(reg.keys))
	vals := make([]float64, nold+len(reg.vals))
	for i := 0; i < nold; i++ {
		keys[i] = kFrom + int64(i)
		vals[i] = fill.Value
	}
	copy(keys[nold:], reg.keys)
	copy(vals[nold:], reg.vals)
	reg.keys, reg.vals = keys, vals
	reg.detectStep()
	return &CoverageNote{MissingFrac: missing, MinSupplyAge: start - ad.MaxAge()}, nil
}

// gridTimes returns the half-open uniform grid [start, stop) of the given
// spacing, rounded to prec decimals.
func gridTimes(start, stop, step float64, prec int) []float64 {
	ks, ke := timeKey(start, prec), timeKey(stop, prec)
	dk := int64(math.Round(step * pow10(prec)))
	ts := make([]float64, 0, int((ke-ks)/dk)+1)
	for k := ks; k < ke; k += dk {
		ts = append(ts, float64(k)/pow10(prec))
	}
	return ts
}
