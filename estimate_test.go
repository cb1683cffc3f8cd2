package gwage_test

import (
	"math"
	"testing"
	"time"

	gwage "github.com/Komanawa-Solutions-Ltd/komanawa-gw-age-tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// yearDate offsets the epoch by decimal years at the fixed 365.25-day
// convention, mirroring the conversion the estimator applies.
func yearDate(epoch time.Time, yrs float64) time.Time {
	return epoch.Add(time.Duration(yrs * 365.25 * 24. * float64(time.Hour)))
}

func TestEstimateSourceConc_Validation(t *testing.T) {
	p, _ := testDist(t)
	epoch := date(2000, time.January, 1)
	obs := gwage.DateSeries{
		Dates: []time.Time{epoch, yearDate(epoch, 1.)},
		Vals:  []float64{1., 2.},
	}
	xl := [][2]time.Time{{yearDate(epoch, 1.), yearDate(epoch, 3.)}}
	yl := [][2]float64{{0., 10.}}

	var ipe *gwage.InvalidParameterError
	_, err := gwage.EstimateSourceConc(gwage.InflectionSpec{N: 0, XLim: xl, YLim: yl}, obs, 1., p, 2)
	assert.ErrorAs(t, err, &ipe, "n must be positive")

	_, err = gwage.EstimateSourceConc(gwage.InflectionSpec{N: 2, XLim: xl, YLim: yl}, obs, 1., p, 2)
	assert.ErrorAs(t, err, &ipe, "one bound pair per inflection")

	_, err = gwage.EstimateSourceConc(gwage.InflectionSpec{N: 1, XLim: xl, YLim: yl}, gwage.DateSeries{}, 1., p, 2)
	assert.ErrorAs(t, err, &ipe, "empty observations")

	_, err = gwage.EstimateSourceConc(gwage.InflectionSpec{N: 1, XLim: xl, YLim: yl}, obs, -1., p, 2)
	assert.ErrorAs(t, err, &ipe, "negative start concentration")

	_, err = gwage.EstimateSourceConc(gwage.InflectionSpec{N: 1, XLim: xl, YLim: yl, StartY: []float64{1., 2.}}, obs, 1., p, 2)
	assert.ErrorAs(t, err, &ipe, "start concentration count must match n")
}

// TestEstimateSourceConc_RoundTrip forward-convolves a known two-inflection
// source into a synthetic receptor record, then fits against it; the
// recovered inflection parameters must match the truth closely
// (forward/inverse consistency).
func TestEstimateSourceConc_RoundTrip(t *testing.T) {
	p, err := gwage.CheckAgeInputs(3., 2., math.NaN(), .7, .6, .5)
	require.NoError(t, err)
	ad, err := gwage.MakeAgeDist(p, 2)
	require.NoError(t, err)

	epoch := date(2000, time.January, 1)
	const (
		x1, y1 = 5., 5.
		x2, y2 = 15., 10.
		start  = 1.
	)

	// synthetic truth built exactly the way the estimator builds its trial
	// sources: anchored at the distribution cutoff, flat after the last
	// inflection
	obsT := make([]float64, 21)
	for i := range obsT {
		obsT[i] = float64(i)
	}
	anchors := gwage.NewSeries(2)
	anchors.Set(-ad.MaxAge(), start)
	anchors.Set(x1, y1)
	anchors.Set(x2, y2)
	anchors.Set(obsT[len(obsT)-1]+ad.Step, y2)
	truth, err := anchors.Regularize(ad.Step)
	require.NoError(t, err)
	rec, err := gwage.Convolute(truth, obsT, ad)
	require.NoError(t, err)

	obs := gwage.DateSeries{Dates: make([]time.Time, rec.Len()), Vals: rec.Values()}
	for i, tt := range rec.Times() {
		obs.Dates[i] = yearDate(epoch, tt)
	}

	spec := gwage.InflectionSpec{
		N: 2,
		XLim: [][2]time.Time{
			{yearDate(epoch, 2.), yearDate(epoch, 8.)},
			{yearDate(epoch, 12.), yearDate(epoch, 18.)},
		},
		YLim:   [][2]float64{{2., 8.}, {6., 14.}},
		StartX: []time.Time{yearDate(epoch, x1), yearDate(epoch, x2)},
		StartY: []float64{y1, y2},
	}
	est, err := gwage.EstimateSourceConc(spec, obs, start, p, 2)
	require.NoError(t, err)

	require.Len(t, est.Params, 4)
	assert.InDelta(t, x1, est.Params[0], x1*.01)
	assert.InDelta(t, y1, est.Params[1], y1*.01)
	assert.InDelta(t, x2, est.Params[2], x2*.01)
	assert.InDelta(t, y2, est.Params[3], y2*.01)
	assert.Less(t, est.RMSE, .01)

	require.Len(t, est.Cov, 4)
	for i := range est.Cov {
		assert.False(t, math.IsInf(est.Cov[i][i], 1), "variance of parameter %d must be finite", i)
		assert.GreaterOrEqual(t, est.Cov[i][i], 0.)
	}

	require.Equal(t, len(est.Modeled.Vals), len(est.Observed.Vals))
	for i := range est.Modeled.Vals {
		assert.InDelta(t, est.Observed.Vals[i], est.Modeled.Vals[i], .1)
	}
	assert.True(t, est.Observed.Dates[0].Equal(epoch), "results re-index to calendar dates")
}

// TestEstimateSourceConc_DefaultStarts exercises the midpoint seeding path;
// the fit must still track the synthetic record.
func TestEstimateSourceConc_DefaultStarts(t *testing.T) {
	p, err := gwage.CheckAgeInputs(3., 2., math.NaN(), .7, .6, .5)
	require.NoError(t, err)
	ad, err := gwage.MakeAgeDist(p, 2)
	require.NoError(t, err)

	epoch := date(2000, time.January, 1)
	obsT := make([]float64, 21)
	for i := range obsT {
		obsT[i] = float64(i)
	}
	anchors := gwage.NewSeries(2)
	anchors.Set(-ad.MaxAge(), 1.)
	anchors.Set(6.5, 5.5)
	anchors.Set(obsT[len(obsT)-1]+ad.Step, 5.5)
	truth, err := anchors.Regularize(ad.Step)
	require.NoError(t, err)
	rec, err := gwage.Convolute(truth, obsT, ad)
	require.NoError(t, err)

	obs := gwage.DateSeries{Dates: make([]time.Time, rec.Len()), Vals: rec.Values()}
	for i, tt := range rec.Times() {
		obs.Dates[i] = yearDate(epoch, tt)
	}

	spec := gwage.InflectionSpec{
		N:    1,
		XLim: [][2]time.Time{{yearDate(epoch, 3.), yearDate(epoch, 9.)}},
		YLim: [][2]float64{{2., 8.}},
	}
	est, err := gwage.EstimateSourceConc(spec, obs, 1., p, 2)
	require.NoError(t, err)

	assert.Less(t, est.RMSE, .2, "one free inflection against its own forward model")
	assert.InDelta(t, 6.5, est.Params[0], .5)
	assert.InDelta(t, 5.5, est.Params[1], .5)
}
