package gwage

import "math"

// Scenario describes a joint past-and-future source prediction: the receptor
// is at InitialConc today after trending at PrevSlope, and the source is
// assumed to trend at FutSlope from the present on. Times are year offsets
// from present, Start ≤ 0 ≤ Stop.
type Scenario struct {
	InitialConc float64 // receptor concentration at t = 0
	PrevSlope   float64 // recent receptor trend [conc/yr]
	FutSlope    float64 // assumed future source trend [conc/yr]
	Start, Stop float64 // output window [yr], Start ≤ 0 ≤ Stop, Start < Stop

	MaxConc, MinConc       float64 // historical source bounds (fit constraints)
	MinFutConc, MaxFutConc float64 // future source clamp; MaxFutConc ≤ 0 means unbounded
}

// Predict reconstructs the historical source trend, extends it with the
// future scenario slope, and convolves the spliced history through the BEPFM
// age distribution. It returns the full source history and the receptor
// forecast, both on the quantum grid (the forecast spans [Start, Stop)).
func (sc Scenario) Predict(p Params, prec int) (source, receptor *Series, err error) {
	if sc.Start >= sc.Stop {
		return nil, nil, invalidParamf("start (%g) must precede stop (%g)", sc.Start, sc.Stop)
	}
	if sc.Start > 0. {
		return nil, nil, invalidParamf("start (%g) must be at or before the present", sc.Start)
	}
	if sc.Stop < 0. {
		return nil, nil, invalidParamf("stop (%g) must be at or after the present", sc.Stop)
	}
	ad, err := MakeAgeDist(p, prec)
	if err != nil {
		return nil, nil, err
	}

	hist, err := PredictHistoricalSource(p, prec, sc.InitialConc, sc.PrevSlope, sc.MaxConc, sc.MinConc, sc.Start)
	if err != nil {
		return nil, nil, err
	}
	present, _ := hist.Source.At(0.)

	maxFut := sc.MaxFutConc
	if maxFut <= 0. {
		maxFut = math.Inf(1)
	}
	fut := NewSeries(prec)
	for k, ke := int64(0), timeKey(sc.Stop, prec); k <= ke; k++ {
		t := float64(k) * ad.Step
		fut.Set(t, clamp(present+sc.FutSlope*t, sc.MinFutConc, maxFut))
	}

	source = merge(hist.Source, fut)
	receptor, err = Convolute(source, gridTimes(sc.Start, sc.Stop, ad.Step, prec), ad)
	if err != nil {
		return nil, nil, err
	}
	return source, receptor, nil
}
