package gwage

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/maseology/mmaths"
	"github.com/maseology/montecarlo/smpln"
	mrg63k3a "github.com/maseology/goRNG/MRG63k3a"
)

// ParamRanges bounds a Latin-hypercube sample of BEPFM parameter space; each
// pair is (lo, hi). MRTP2 is derived per sample from the mixing identity.
type ParamRanges struct {
	MRT    [2]float64
	MRTP1  [2]float64
	FracP1 [2]float64
	FP1    [2]float64
	FP2    [2]float64
}

// ensembleQs are the per-time quantiles reported by Scenario.Ensemble.
var ensembleQs = [...]float64{.05, .25, .5, .75, .95}

// EnsembleResult summarizes a parameter-uncertainty ensemble of receptor
// forecasts: Quantiles[q][i] is the q-quantile of the forecast at Times[i]
// across the realizations that converged.
type EnsembleResult struct {
	Times     []float64
	Quantiles map[float64][]float64
	N, Failed int
}

// Ensemble runs the scenario prediction across n Latin-hypercube samples of
// the BEPFM parameter ranges, fanning realizations out over nwrkrs
// goroutines, and reports per-time forecast quantiles. Realizations whose
// parameter draw is inconsistent (a non-positive derived MRTP2) or whose fit
// fails are counted in Failed and excluded from the summary.
func (sc Scenario) Ensemble(pr ParamRanges, n, prec, nwrkrs int) (*EnsembleResult, error) {
	if n < 2 {
		return nil, invalidParamf("ensemble size (%d) must be at least 2", n)
	}
	if nwrkrs < 1 {
		nwrkrs = 1
	}

	// sampling plan over the unit hypercube
	rng := rand.New(mrg63k3a.New())
	rng.Seed(fitSeed)
	const ndim = 5
	sp := smpln.NewLHC(rng, n, ndim, false)

	step := math.Pow(10., float64(-prec))
	times := gridTimes(sc.Start, sc.Stop, step, prec)
	sims := make([][]float64, n)

	var wg sync.WaitGroup
	sem := make(chan struct{}, nwrkrs)
	for k := 0; k < n; k++ {
		if Verbose {
			fmt.Printf(" >> releasing sample %d\n", k+1)
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(k int) {
			defer func() { <-sem; wg.Done() }()
			p, err := CheckAgeInputs(
				mmaths.LinearTransform(pr.MRT[0], pr.MRT[1], sp.U[0][k]),
				mmaths.LinearTransform(pr.MRTP1[0], pr.MRTP1[1], sp.U[1][k]),
				math.NaN(), // derived
				mmaths.LinearTransform(pr.FracP1[0], pr.FracP1[1], sp.U[2][k]),
				mmaths.LinearTransform(pr.FP1[0], pr.FP1[1], sp.U[3][k]),
				mmaths.LinearTransform(pr.FP2[0], pr.FP2[1], sp.U[4][k]))
			if err != nil {
				return
			}
			_, rec, err := sc.Predict(p, prec)
			if err != nil {
				return
			}
			sims[k] = rec.Values()
		}(k)
	}
	wg.Wait()

	ok := sims[:0:0]
	for _, s := range sims {
		if s != nil {
			ok = append(ok, s)
		}
	}
	if len(ok) == 0 {
		return nil, &OptimizationFailureError{Msg: "every ensemble realization failed", Resid: math.NaN()}
	}

	out := &EnsembleResult{Times: times, N: n, Failed: n - len(ok),
		Quantiles: make(map[float64][]float64, len(ensembleQs))}
	for _, q := range ensembleQs {
		out.Quantiles[q] = make([]float64, len(times))
	}
	col := make([]float64, len(ok))
	for i := range times {
		for j, s := range ok {
			col[j] = s[i]
		}
		sort.Float64s(col)
		for _, q := range ensembleQs {
			out.Quantiles[q][i] = quantile(col, q)
		}
	}
	return out, nil
}

// quantile linearly interpolates the q-quantile of a sorted sample.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	x := q * float64(len(sorted)-1)
	i := int(x)
	if i >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	return sorted[i] + (x-float64(i))*(sorted[i+1]-sorted[i])
}
