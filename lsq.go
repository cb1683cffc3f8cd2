package gwage

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/maseology/glbopt"
	"github.com/maseology/mmaths"
	"github.com/maseology/objfunc"
	mrg63k3a "github.com/maseology/goRNG/MRG63k3a"
)

// FitResult is the output of an inverse (deconvolution) fit.
type FitResult struct {
	Params  []float64   // best-fit free parameters
	Cov     [][]float64 // parameter covariance; +Inf entries when singular
	Source  *Series     // reconstructed source history
	Modeled *Series     // receptor modeled from Source at the fit times
	RMSE    float64     // root-mean-square residual of the fit
}

// lsqProblem is a bounded nonlinear least-squares problem: find the parameter
// vector within [lower, upper] whose modeled observations best match obs.
// The search runs over the unit hypercube (shuffled complex evolution, then a
// cyclic Fibonacci line-search polish), with each coordinate mapped to its
// physical range.
type lsqProblem struct {
	lower, upper []float64
	obs          []float64
	model        func(par []float64) []float64 // predicted observations

	// optional per-parameter floor on the covariance difference step; a
	// parameter the model snaps to a grid needs a step of at least one grid
	// quantum or its Jacobian column vanishes
	hmin []float64
}

const (
	lsqPenalty      = math.MaxFloat64
	lsqPolishRounds = 3
)

func (lp *lsqProblem) npar() int { return len(lp.lower) }

func (lp *lsqProblem) toPar(u []float64) []float64 {
	par := make([]float64, lp.npar())
	for i := range par {
		par[i] = mmaths.LinearTransform(lp.lower[i], lp.upper[i], u[i])
	}
	return par
}

func (lp *lsqProblem) toU(par []float64) []float64 {
	u := make([]float64, lp.npar())
	for i := range u {
		if d := lp.upper[i] - lp.lower[i]; d > 0. {
			u[i] = (par[i] - lp.lower[i]) / d
		} else {
			u[i] = .5
		}
	}
	return u
}

func (lp *lsqProblem) objective(u []float64) float64 {
	sim := lp.model(lp.toPar(u))
	r := objfunc.RMSE(lp.obs, sim)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return lsqPenalty
	}
	return r
}

// solve fits the problem starting from p0 (which must lie within bounds) and
// returns the best-fit parameters, their covariance, and the final RMSE.
func (lp *lsqProblem) solve(p0 []float64) ([]float64, [][]float64, float64, error) {
	n := lp.npar()
	if len(lp.upper) != n || len(p0) != n {
		return nil, nil, 0., invalidParamf("bounds and initial guess must share one length (got %d/%d/%d)", n, len(lp.upper), len(p0))
	}
	for i := 0; i < n; i++ {
		if lp.lower[i] > lp.upper[i] {
			return nil, nil, 0., &OptimizationFailureError{
				Msg:   fmt.Sprintf("infeasible bounds: lower exceeds upper on parameter %d", i),
				Resid: math.NaN()}
		}
		if p0[i] < lp.lower[i] || p0[i] > lp.upper[i] {
			return nil, nil, 0., &OptimizationFailureError{
				Msg:   fmt.Sprintf("initial guess outside bounds on parameter %d", i),
				Resid: math.NaN()}
		}
	}

	rng := rand.New(mrg63k3a.New())
	rng.Seed(fitSeed)
	ncmplx := 2 * n
	if ncmplx < 8 {
		ncmplx = 8
	}
	uBest, fBest := glbopt.SCE(ncmplx, n, rng, lp.objective, true)
	if f0 := lp.objective(lp.toU(p0)); f0 < fBest {
		uBest, fBest = lp.toU(p0), f0
	}

	// cyclic coordinate polish; each line search is itself bounded
	for r := 0; r < lsqPolishRounds; r++ {
		for j := 0; j < n; j++ {
			if lp.lower[j] == lp.upper[j] {
				continue
			}
			line := func(x float64) float64 {
				uu := make([]float64, n)
				copy(uu, uBest)
				uu[j] = x
				return lp.objective(uu)
			}
			if xj, fj := glbopt.Fibonacci(line); fj < fBest {
				uBest[j], fBest = xj, fj
			}
		}
	}

	if math.IsNaN(fBest) || fBest >= lsqPenalty {
		return nil, nil, 0., &OptimizationFailureError{Msg: "no finite optimum found", Resid: fBest}
	}
	par := lp.toPar(uBest)
	return par, lp.covariance(par), fBest, nil
}

// covariance estimates the parameter covariance at the optimum from the
// Gauss-Newton normal matrix: cov = s²·(JᵀJ)⁻¹ with J the forward-difference
// Jacobian and s² the residual variance. A singular normal matrix yields a
// matrix of +Inf.
func (lp *lsqProblem) covariance(par []float64) [][]float64 {
	n, m := lp.npar(), len(lp.obs)
	sim0 := lp.model(par)
	jac := make([][]float64, m)
	for i := range jac {
		jac[i] = make([]float64, n)
	}
	for j := 0; j < n; j++ {
		h := 1e-6 * (1. + math.Abs(par[j]))
		if lp.hmin != nil && lp.hmin[j] > h {
			h = lp.hmin[j]
		}
		if par[j]+h > lp.upper[j] { // step inward at the bound
			h = -h
		}
		pj := make([]float64, n)
		copy(pj, par)
		pj[j] += h
		simj := lp.model(pj)
		for i := 0; i < m; i++ {
			jac[i][j] = (simj[i] - sim0[i]) / h
		}
	}

	a := make([][]float64, n) // normal matrix JᵀJ
	for i := range a {
		a[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			sum := 0.
			for k := 0; k < m; k++ {
				sum += jac[k][i] * jac[k][j]
			}
			a[i][j] = sum
		}
	}
	inv, ok := invert(a)
	cov := make([][]float64, n)
	for i := range cov {
		cov[i] = make([]float64, n)
		for j := range cov[i] {
			cov[i][j] = math.Inf(1)
		}
	}
	if !ok {
		return cov
	}
	ssr := 0.
	for i := 0; i < m; i++ {
		d := lp.obs[i] - sim0[i]
		ssr += d * d
	}
	s2 := ssr
	if m > n {
		s2 = ssr / float64(m-n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			cov[i][j] = s2 * inv[i][j]
		}
	}
	return cov
}

// invert computes the inverse of a square matrix by Gauss-Jordan elimination
// with partial pivoting; ok is false when the matrix is singular.
func invert(a [][]float64) ([][]float64, bool) {
	n := len(a)
	w := make([][]float64, n) // augmented [a | I]
	for i := 0; i < n; i++ {
		w[i] = make([]float64, 2*n)
		copy(w[i], a[i])
		w[i][n+i] = 1.
	}
	for c := 0; c < n; c++ {
		p := c
		for r := c + 1; r < n; r++ {
			if math.Abs(w[r][c]) > math.Abs(w[p][c]) {
				p = r
			}
		}
		if math.Abs(w[p][c]) < 1e-300 {
			return nil, false
		}
		w[c], w[p] = w[p], w[c]
		piv := w[c][c]
		for j := 0; j < 2*n; j++ {
			w[c][j] /= piv
		}
		for r := 0; r < n; r++ {
			if r == c || w[r][c] == 0. {
				continue
			}
			f := w[r][c]
			for j := 0; j < 2*n; j++ {
				w[r][j] -= f * w[c][j]
			}
		}
	}
	inv := make([][]float64, n)
	for i := 0; i < n; i++ {
		inv[i] = w[i][n:]
	}
	return inv, true
}
