package gwage

import "math"

// Params is a fully specified BEPFM parameter set: a two-component mixture of
// exponential-piston-flow transit-time models. Obtain one through
// CheckAgeInputs; all residence times are resolved and consistent with
//
//	MRT = FracP1·MRTP1 + (1−FracP1)·MRTP2
type Params struct {
	MRT    float64 // mixture mean residence time [yr]
	MRTP1  float64 // mean residence time, first component [yr]
	MRTP2  float64 // mean residence time, second component [yr]
	FracP1 float64 // mixture weight of the first component [0,1]
	FP1    float64 // exponential fraction, first component (0,1]
	FP2    float64 // exponential fraction, second component (0,1]
}

// CheckAgeInputs validates BEPFM inputs and resolves the one unknown
// residence time. Exactly one of mrt and mrtP2 must be NaN; the other is
// derived from the linear mixing identity. When fracP1 is 1 the second
// component is an unused placeholder and mrtP2 is set to mrtP1.
func CheckAgeInputs(mrt, mrtP1, mrtP2, fracP1, fP1, fP2 float64) (Params, error) {
	mrtNaN, p2NaN := math.IsNaN(mrt), math.IsNaN(mrtP2)
	if mrtNaN == p2NaN {
		if mrtNaN {
			return Params{}, invalidParamf("one of mrt or mrtP2 must be supplied")
		}
		return Params{}, invalidParamf("only one of mrt or mrtP2 may be supplied; the other is derived")
	}
	if fracP1 < 0. || fracP1 > 1. {
		return Params{}, invalidParamf("fracP1 (%g) must be within [0,1]", fracP1)
	}
	if fP1 <= 0. || fP1 > 1. {
		return Params{}, invalidParamf("fP1 (%g) must be within (0,1]", fP1)
	}
	if fP2 <= 0. || fP2 > 1. {
		return Params{}, invalidParamf("fP2 (%g) must be within (0,1]", fP2)
	}
	switch {
	case p2NaN && fracP1 == 1.:
		mrtP2 = mrtP1 // placeholder, no second component
	case p2NaN:
		mrtP2 = (mrt - fracP1*mrtP1) / (1. - fracP1)
	default:
		mrt = fracP1*mrtP1 + (1.-fracP1)*mrtP2
	}
	for _, v := range [...]struct {
		name string
		val  float64
	}{{"mrt", mrt}, {"mrtP1", mrtP1}, {"mrtP2", mrtP2}} {
		if !(v.val > 0.) {
			return Params{}, invalidParamf("%s (%g) must be positive", v.name, v.val)
		}
	}
	return Params{MRT: mrt, MRTP1: mrtP1, MRTP2: mrtP2, FracP1: fracP1, FP1: fP1, FP2: fP2}, nil
}

// AgeDist is a discretized transit-time probability distribution: Ages holds
// a uniform grid of spacing Step (= 10^-precision) and Fractions the
// probability mass at each age, summing to 1.
type AgeDist struct {
	Step      float64
	Ages      []float64
	Fractions []float64

	prec    int
	ageKeys []int64 // Ages × 10^prec
}

// truncation-mass tolerance governing the grid cutoff; each mixture
// component may lose at most half of this before renormalization
const cutoffTol = 1e-6

// epmDensity is the exponential-piston-flow transit-time density: zero
// through the piston delay mrt·(1−f), exponential mixing beyond it.
func epmDensity(t, mrt, f float64) float64 {
	if t < mrt*(1.-f) {
		return 0.
	}
	return math.Exp((1.-t/mrt)/f) / (f * mrt)
}

// epmCutoff returns the age beyond which the EPM tail mass drops below tol:
// the tail integral past T is exp((1−T/mrt)/f), giving
// T = mrt·(1 − f·ln(tol)).
func epmCutoff(mrt, f, tol float64) float64 {
	return mrt * (1. - f*math.Log(tol))
}

// MakeAgeDist discretizes the BEPFM transit-time distribution on a uniform
// grid of spacing 10^-prec starting at age 0.
func MakeAgeDist(p Params, prec int) (*AgeDist, error) {
	return MakeAgeDistFrom(p, prec, 0.)
}

// MakeAgeDistFrom is MakeAgeDist with an explicit grid origin, for the rare
// distribution that must begin at a non-zero age offset.
func MakeAgeDistFrom(p Params, prec int, start float64) (*AgeDist, error) {
	if prec < 0 || prec > 6 {
		return nil, invalidParamf("precision (%d) must be within [0,6]", prec)
	}
	if start < 0. || math.IsNaN(start) {
		return nil, invalidParamf("start age (%g) must be non-negative", start)
	}
	step := math.Pow(10., float64(-prec))
	cut := 0.
	if p.FracP1 > 0. {
		cut = epmCutoff(p.MRTP1, p.FP1, cutoffTol/2.)
	}
	if p.FracP1 < 1. {
		if c2 := epmCutoff(p.MRTP2, p.FP2, cutoffTol/2.); c2 > cut {
			cut = c2
		}
	}
	k0, kn := timeKey(start, prec), timeKey(cut, prec)
	if kn <= k0 {
		return nil, invalidParamf("grid start (%g) is beyond the distribution cutoff (%g)", start, cut)
	}
	n := int(kn-k0) + 1
	ad := &AgeDist{Step: step, prec: prec,
		Ages:      make([]float64, n),
		Fractions: make([]float64, n),
		ageKeys:   make([]int64, n)}
	sum := 0.
	for i := 0; i < n; i++ {
		k := k0 + int64(i)
		t := float64(k) * step
		g := p.FracP1*epmDensity(t, p.MRTP1, p.FP1) + (1.-p.FracP1)*epmDensity(t, p.MRTP2, p.FP2)
		ad.ageKeys[i] = k
		ad.Ages[i] = t
		ad.Fractions[i] = g * step
		sum += ad.Fractions[i]
	}
	if !(sum > 0.) {
		return nil, invalidParamf("age distribution holds no mass on [%g,%g]", start, cut)
	}
	for i := range ad.Fractions { // correct discretization + truncation error
		ad.Fractions[i] /= sum
	}
	return ad, nil
}

// MaxAge returns the oldest age retained by the discretized distribution.
func (ad *AgeDist) MaxAge() float64 { return ad.Ages[len(ad.Ages)-1] }

// Precision returns the decimal precision of the age grid.
func (ad *AgeDist) Precision() int { return ad.prec }
