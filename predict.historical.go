package gwage

import (
	"fmt"
	"math"
)

// historical fits are anchored on a short synthetic receptor record at
// year offsets −5…0 built from the observed present concentration and slope
var histObsOffsets = [...]float64{-5., -4., -3., -2., -1., 0.}

// PredictHistoricalSource estimates the linear source trend (slope,
// concentration at present) that, convolved through the BEPFM age
// distribution, reproduces a receptor observed at initConc today after
// trending at prevSlope [conc/yr]. The fitted slope is bounded to
// [0, maxConc/yr] and the present-day source concentration to [0, maxConc];
// the reconstructed history is clamped at minConc and extends back to at
// least startAge or the distribution extent, whichever is older.
func PredictHistoricalSource(p Params, prec int, initConc, prevSlope, maxConc, minConc, startAge float64) (*FitResult, error) {
	if maxConc < minConc {
		return nil, &OptimizationFailureError{
			Msg:   fmt.Sprintf("infeasible bounds: maxConc (%g) below minConc (%g)", maxConc, minConc),
			Resid: math.NaN()}
	}
	if initConc < 0. {
		return nil, invalidParamf("initConc (%g) must be non-negative", initConc)
	}
	ad, err := MakeAgeDist(p, prec)
	if err != nil {
		return nil, err
	}

	obsT := histObsOffsets[:]
	obs := make([]float64, len(obsT))
	for i, t := range obsT {
		obs[i] = initConc + prevSlope*t
	}

	// trial source: linear decline into the past from the present value,
	// clamped at minConc, reaching old enough to cover every lookup at the
	// earliest synthetic observation
	backTo := ad.MaxAge() - obsT[0] + ad.Step
	model := func(par []float64) []float64 {
		src := linearPastSource(par[0], par[1], minConc, backTo, prec)
		return ConvoluteUnchecked(src, obsT, ad).Values()
	}

	lp := &lsqProblem{
		lower: []float64{0., 0.},
		upper: []float64{maxConc, maxConc}, // slope cap: full range in one year
		obs:   obs,
		model: model,
	}
	p0 := []float64{clamp(prevSlope, 0., maxConc), clamp(initConc, 0., maxConc)}
	par, cov, rmse, err := lp.solve(p0)
	if err != nil {
		return nil, err
	}

	extent := math.Max(p.MRTP1, p.MRTP2)
	if a := math.Abs(startAge); a > extent {
		extent = a
	}
	extent *= 10.
	if need := ad.MaxAge() + math.Abs(startAge) - obsT[0] + ad.Step; need > extent {
		extent = need
	}
	src := linearPastSource(par[0], par[1], minConc, extent, prec)
	modeled, err := Convolute(src, obsT, ad)
	if err != nil {
		return nil, err
	}
	return &FitResult{Params: par, Cov: cov, Source: src, Modeled: modeled, RMSE: rmse}, nil
}

// linearPastSource builds the source history conc(−a) = initConc − slope·a
// for ages a on the quantum grid [0, backTo], clamped below at minConc.
func linearPastSource(slope, initConc, minConc, backTo float64, prec int) *Series {
	step := math.Pow(10., float64(-prec))
	n := int(timeKey(backTo, prec)) + 1
	s := &Series{prec: prec, stepk: 1, keys: make([]int64, n), vals: make([]float64, n)}
	for i := 0; i < n; i++ {
		k := int64(i - n + 1) // oldest first, up to 0
		a := -float64(k) * step
		v := initConc - slope*a
		if v < minConc {
			v = minConc
		}
		s.keys[i] = k
		s.vals[i] = v
	}
	return s
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
