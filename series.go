package gwage

import (
	"math"
	"sort"
)

// Series is an ordered mapping of time (decimal years, 0 = present, negative
// = past) to concentration. Keys are held as integers scaled by 10^precision
// so that lookups at rounded times are exact; a float key that would land
// between grid points cannot silently resolve to the wrong sample.
//
// Consumers treat a Series as read-only; transformations return new
// instances.
type Series struct {
	prec  int
	keys  []int64 // time × 10^prec, strictly ascending
	vals  []float64
	stepk int64 // >0 when keys form a uniform grid of this spacing
}

func pow10(prec int) float64 { return math.Pow(10., float64(prec)) }

func timeKey(t float64, prec int) int64 { return int64(math.Round(t * pow10(prec))) }

// NewSeries returns an empty series holding keys at the given decimal
// precision.
func NewSeries(prec int) *Series { return &Series{prec: prec} }

// SeriesOf builds a series from parallel time and concentration slices. Times
// are rounded to the series precision; duplicate rounded times are rejected.
func SeriesOf(times, concs []float64, prec int) (*Series, error) {
	if len(times) != len(concs) {
		return nil, invalidParamf("times (%d) and concentrations (%d) differ in length", len(times), len(concs))
	}
	s := &Series{prec: prec, keys: make([]int64, len(times)), vals: make([]float64, len(concs))}
	ord := make([]int, len(times))
	for i := range ord {
		ord[i] = i
	}
	sort.Slice(ord, func(a, b int) bool { return times[ord[a]] < times[ord[b]] })
	for i, j := range ord {
		s.keys[i] = timeKey(times[j], prec)
		s.vals[i] = concs[j]
		if i > 0 && s.keys[i] <= s.keys[i-1] {
			return nil, invalidParamf("duplicate time %g at precision %d", times[j], prec)
		}
	}
	s.detectStep()
	return s, nil
}

func (s *Series) detectStep() {
	s.stepk = 0
	if len(s.keys) < 2 {
		return
	}
	d := s.keys[1] - s.keys[0]
	for i := 2; i < len(s.keys); i++ {
		if s.keys[i]-s.keys[i-1] != d {
			return
		}
	}
	s.stepk = d
}

// Precision returns the decimal precision of the series keys.
func (s *Series) Precision() int { return s.prec }

// Len returns the number of samples.
func (s *Series) Len() int { return len(s.keys) }

// Time returns the i-th sample time.
func (s *Series) Time(i int) float64 { return float64(s.keys[i]) / pow10(s.prec) }

// Value returns the i-th sample concentration.
func (s *Series) Value(i int) float64 { return s.vals[i] }

// Times returns a copy of all sample times, ascending.
func (s *Series) Times() []float64 {
	ts := make([]float64, len(s.keys))
	for i := range s.keys {
		ts[i] = s.Time(i)
	}
	return ts
}

// Values returns a copy of all sample concentrations, ordered by time.
func (s *Series) Values() []float64 {
	vs := make([]float64, len(s.vals))
	copy(vs, s.vals)
	return vs
}

// MinTime returns the earliest sample time; the series must not be empty.
func (s *Series) MinTime() float64 { return s.Time(0) }

// MaxTime returns the latest sample time; the series must not be empty.
func (s *Series) MaxTime() float64 { return s.Time(len(s.keys) - 1) }

// At looks up the concentration at time t (rounded to the series precision).
func (s *Series) At(t float64) (float64, bool) { return s.atKey(timeKey(t, s.prec)) }

func (s *Series) search(k int64) int {
	if s.stepk > 0 { // uniform grid, index arithmetic
		i := (k - s.keys[0]) / s.stepk
		if i < 0 || i >= int64(len(s.keys)) || s.keys[i] != k {
			return -1
		}
		return int(i)
	}
	i := sort.Search(len(s.keys), func(i int) bool { return s.keys[i] >= k })
	if i == len(s.keys) || s.keys[i] != k {
		return -1
	}
	return i
}

func (s *Series) atKey(k int64) (float64, bool) {
	if i := s.search(k); i >= 0 {
		return s.vals[i], true
	}
	return 0., false
}

// Set inserts or replaces the sample at time t, keeping keys ordered.
func (s *Series) Set(t, v float64) {
	k := timeKey(t, s.prec)
	i := sort.Search(len(s.keys), func(i int) bool { return s.keys[i] >= k })
	if i < len(s.keys) && s.keys[i] == k {
		s.vals[i] = v
		return
	}
	s.keys = append(s.keys, 0)
	s.vals = append(s.vals, 0.)
	copy(s.keys[i+1:], s.keys[i:])
	copy(s.vals[i+1:], s.vals[i:])
	s.keys[i], s.vals[i] = k, v
	s.detectStep()
}

// Copy returns an independent copy of the series.
func (s *Series) Copy() *Series {
	c := &Series{prec: s.prec, stepk: s.stepk,
		keys: make([]int64, len(s.keys)), vals: make([]float64, len(s.vals))}
	copy(c.keys, s.keys)
	copy(c.vals, s.vals)
	return c
}

// ClipValues returns a copy with every concentration clamped to [lo, hi].
func (s *Series) ClipValues(lo, hi float64) *Series {
	c := s.Copy()
	for i, v := range c.vals {
		if v < lo {
			c.vals[i] = lo
		} else if v > hi {
			c.vals[i] = hi
		}
	}
	return c
}

// Regularize re-keys the series onto a uniform grid of the given spacing
// spanning [MinTime, MaxTime], linearly interpolating between samples and
// extending flat beyond the first and last sample. The grid step must be an
// integer multiple of the key quantum 10^-precision.
func (s *Series) Regularize(step float64) (*Series, error) {
	if len(s.keys) == 0 {
		return nil, invalidParamf("cannot regularize an empty series")
	}
	dk := int64(math.Round(step * pow10(s.prec)))
	if dk < 1 {
		return nil, invalidParamf("grid step %g below key quantum at precision %d", step, s.prec)
	}
	n := int((s.keys[len(s.keys)-1]-s.keys[0])/dk) + 1
	g := &Series{prec: s.prec, stepk: dk, keys: make([]int64, n), vals: make([]float64, n)}
	j := 0 // index of the sample at or left of the grid point
	for i := 0; i < n; i++ {
		k := s.keys[0] + int64(i)*dk
		g.keys[i] = k
		for j+1 < len(s.keys) && s.keys[j+1] <= k {
			j++
		}
		switch {
		case s.keys[j] == k || j == len(s.keys)-1:
			g.vals[i] = s.vals[j]
		default:
			k0, k1 := s.keys[j], s.keys[j+1]
			w := float64(k-k0) / float64(k1-k0)
			g.vals[i] = s.vals[j] + w*(s.vals[j+1]-s.vals[j])
		}
	}
	if n == 1 {
		g.stepk = 0
	}
	return g, nil
}

// merge splices two series into one ordered series; where both define a time,
// b wins.
func merge(a, b *Series) *Series {
	out := a.Copy()
	for i := range b.keys {
		out.Set(float64(b.keys[i])/pow10(b.prec), b.vals[i])
	}
	return out
}
