package gwage

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvert_Known2x2(t *testing.T) {
	inv, ok := invert([][]float64{{4., 7.}, {2., 6.}})
	require.True(t, ok)
	// det = 10; inverse = [[.6, -.7], [-.2, .4]]
	assert.InDelta(t, .6, inv[0][0], 1e-12)
	assert.InDelta(t, -.7, inv[0][1], 1e-12)
	assert.InDelta(t, -.2, inv[1][0], 1e-12)
	assert.InDelta(t, .4, inv[1][1], 1e-12)
}

func TestInvert_Singular(t *testing.T) {
	_, ok := invert([][]float64{{1., 2.}, {2., 4.}})
	assert.False(t, ok)
}

func TestLsqSolve_LinearModel(t *testing.T) {
	lp := &lsqProblem{
		lower: []float64{0., 0.},
		upper: []float64{10., 10.},
		obs:   []float64{3., 1.},
		model: func(par []float64) []float64 {
			return []float64{par[0] + par[1], par[0] - par[1]}
		},
	}
	par, cov, rmse, err := lp.solve([]float64{5., 5.})
	require.NoError(t, err)

	assert.InDelta(t, 2., par[0], .05)
	assert.InDelta(t, 1., par[1], .05)
	assert.Less(t, rmse, .05)
	require.Len(t, cov, 2)
	for i := range cov {
		require.Len(t, cov[i], 2)
		assert.False(t, math.IsNaN(cov[i][i]))
	}
}

// TestCovariance_QuantizedParameter: when the model snaps a parameter to a
// grid, the default difference step rounds away and its Jacobian column is
// zero; flooring the step at one grid quantum keeps the covariance finite.
func TestCovariance_QuantizedParameter(t *testing.T) {
	snap := func(par []float64) []float64 {
		q := math.Round(par[0]*100.) / 100.
		return []float64{q + par[1], q - par[1]}
	}
	lp := &lsqProblem{
		lower: []float64{0., 0.},
		upper: []float64{10., 10.},
		obs:   []float64{2., 4.},
		model: snap,
	}
	cov := lp.covariance([]float64{3., 1.})
	assert.True(t, math.IsInf(cov[0][0], 1), "sub-quantum step yields a zero column and a singular fit")

	lp.hmin = []float64{.01, 0.}
	cov = lp.covariance([]float64{3., 1.})
	for i := range cov {
		assert.False(t, math.IsInf(cov[i][i], 1), "floored step must recover a finite variance")
		assert.GreaterOrEqual(t, cov[i][i], 0.)
	}
}

func TestLsqSolve_BoundChecks(t *testing.T) {
	base := func() *lsqProblem {
		return &lsqProblem{
			lower: []float64{0.},
			upper: []float64{1.},
			obs:   []float64{0.},
			model: func(par []float64) []float64 { return []float64{par[0]} },
		}
	}
	var ofe *OptimizationFailureError

	lp := base()
	lp.lower[0], lp.upper[0] = 2., 1.
	_, _, _, err := lp.solve([]float64{1.5})
	assert.ErrorAs(t, err, &ofe, "lower above upper")

	lp = base()
	_, _, _, err = lp.solve([]float64{3.})
	assert.ErrorAs(t, err, &ofe, "initial guess outside bounds")

	var ipe *InvalidParameterError
	lp = base()
	_, _, _, err = lp.solve([]float64{.5, .5})
	assert.ErrorAs(t, err, &ipe, "guess length mismatch")
}

func TestQuantile(t *testing.T) {
	s := []float64{1., 2., 3., 4., 5.}
	assert.InDelta(t, 3., quantile(s, .5), 1e-12)
	assert.InDelta(t, 1., quantile(s, 0.), 1e-12)
	assert.InDelta(t, 5., quantile(s, 1.), 1e-12)
	assert.InDelta(t, 2., quantile(s, .25), 1e-12)
}

func TestGridTimes_HalfOpen(t *testing.T) {
	ts := gridTimes(-.02, .02, .01, 2)
	assert.InDeltaSlice(t, []float64{-.02, -.01, 0., .01}, ts, 1e-12, "stop is exclusive")
}
