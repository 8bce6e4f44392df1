// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spg

import (
	"bytes"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/curioloop/l1proj/l1ball"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var stop = Termination{
	MaxEvaluations: 500,
	OptTolerance:   1e-9,
	ProgTolerance:  1e-14,
}

func mustL1(t *testing.T, radius float64) Projection {
	t.Helper()
	b := l1ball.Ball{Radius: radius, Rand: l1ball.NewSource(1)}
	p, err := b.New()
	require.NoError(t, err)
	return L1Ball(p)
}

func fit(t *testing.T, p Problem, x0 []float64, log *Logger) *Result {
	t.Helper()
	s, err := p.New(log)
	require.NoError(t, err)
	return s.Fit(x0, s.Init())
}

// distance evaluates ½‖x - a‖² whose constrained minimizer is P(a).
func distance(a []float64) Evaluation {
	return func(x, g []float64) float64 {
		f := zero
		for i := range x {
			r := x[i] - a[i]
			f += r * r
			g[i] = r
		}
		return f / 2
	}
}

// leastSquares evaluates ‖Aw - y‖² for a row-major m×n matrix A.
func leastSquares(A, y []float64, m, n int) Evaluation {
	r := make([]float64, m)
	return func(w, g []float64) float64 {
		f := zero
		for i := 0; i < m; i++ {
			r[i] = dot(A[i*n:(i+1)*n], w) - y[i]
			f += r[i] * r[i]
		}
		for j := 0; j < n; j++ {
			g[j] = zero
		}
		for i := 0; i < m; i++ {
			for j := 0; j < n; j++ {
				g[j] += 2 * A[i*n+j] * r[i]
			}
		}
		return f
	}
}

func regression(seed uint64, m, n int) (A, y []float64) {
	rnd := rand.New(rand.NewPCG(seed, seed+1))
	A = make([]float64, m*n)
	for i := range A {
		A[i] = rnd.NormFloat64()
	}
	w := make([]float64, n)
	for j := range w {
		if rnd.Float64() > 0.5 {
			w[j] = rnd.Float64()
		}
	}
	y = make([]float64, m)
	for i := range y {
		y[i] = dot(A[i*n:(i+1)*n], w) + rnd.NormFloat64()
	}
	return
}

func TestProjectDistance(t *testing.T) {
	a := []float64{3, -1, 0.5, -4, 0, 2}
	want, err := l1ball.ProjectSigned(a, 2)
	require.NoError(t, err)

	r := fit(t, Problem{
		N:    len(a),
		Eval: distance(a),
		Proj: mustL1(t, 2),
		Stop: stop,
	}, make([]float64, len(a)), nil)

	require.True(t, r.OK, r.Status.String())
	assert.Equal(t, ConvOptimality, r.Status)
	if diff := cmp.Diff(want, r.X, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Fatalf("solution mismatch (-want +got):\n%s", diff)
	}
	assert.LessOrEqual(t, r.NumIter, 5)
}

func TestBoxDistance(t *testing.T) {
	a := []float64{-1, 0.5, 2, 0.25, 7}
	proj, err := Box([]Bound{{0, 1}, {0, 1}, {0, 1}, {math.NaN(), 0}, {1, math.NaN()}})
	require.NoError(t, err)

	r := fit(t, Problem{N: len(a), Eval: distance(a), Proj: proj, Stop: stop},
		[]float64{0.5, 0.5, 0.5, 0.5, 0.5}, nil)

	require.True(t, r.OK, r.Status.String())
	assert.InDeltaSlice(t, []float64{0, 0.5, 1, 0, 7}, r.X, 1e-9)

	_, err = Box([]Bound{{1, 0}})
	assert.Error(t, err)
}

func TestGroupDistance(t *testing.T) {
	a := []float64{3, -1, 2, 0.5, -4, 1}
	groups := []int{0, 0, 1, 1, 2, 2}
	want := make([]float64, len(a))
	require.NoError(t, l1ball.GroupLinf(a, want, groups, 3))

	r := fit(t, Problem{N: len(a), Eval: distance(a), Proj: GroupLinf(groups, 3), Stop: stop},
		make([]float64, len(a)), nil)

	require.True(t, r.OK, r.Status.String())
	if diff := cmp.Diff(want, r.X, cmpopts.EquateApprox(0, 1e-8)); diff != "" {
		t.Fatalf("solution mismatch (-want +got):\n%s", diff)
	}
}

func TestConeDistance(t *testing.T) {
	// x = (w₀, w₁, w₂, α₀, α₁)
	a := []float64{3, 1, -4, 1, 0}
	groups := []int{0, 0, 1}
	w, alpha := []float64{3, 1, -4}, []float64{1, 0}
	require.NoError(t, l1ball.GroupLinfCone(w, alpha, groups))
	want := append(w, alpha...)

	r := fit(t, Problem{N: len(a), Eval: distance(a), Proj: GroupLinfCone(groups), Stop: stop},
		make([]float64, len(a)), nil)

	require.True(t, r.OK, r.Status.String())
	if diff := cmp.Diff(want, r.X, cmpopts.EquateApprox(0, 1e-8)); diff != "" {
		t.Fatalf("solution mismatch (-want +got):\n%s", diff)
	}

	assert.Error(t, GroupLinfCone(groups)([]float64{1, 2}))
	assert.Error(t, GroupLinfCone(groups)([]float64{1, 2, 3, 4}))
}

func TestLassoRegression(t *testing.T) {
	const m, n, tau = 50, 10, 0.5
	A, y := regression(7, m, n)

	base := Problem{N: n, Eval: leastSquares(A, y, m, n), Stop: stop}

	variants := map[string]Search{
		"default":     {},
		"bb2":         {Spectral: BB2},
		"quadratic":   {Interp: Quadratic},
		"halving":     {Interp: Halving},
		"monotone":    {Memory: 1},
		"curvilinear": {Curvilinear: true},
	}

	var ref *Result
	for name, search := range variants {
		p := base
		p.Proj = mustL1(t, tau)
		p.Search = search
		p.Stop = Termination{MaxEvaluations: 5000, OptTolerance: 1e-6, ProgTolerance: 1e-12}
		r := fit(t, p, make([]float64, n), nil)

		require.True(t, r.OK, "%s: %s", name, r.Status)
		norm := asum(r.X)
		require.LessOrEqual(t, norm, tau+1e-9, name)
		require.InDelta(t, tau, norm, 1e-5, "%s: constraint should be active", name)

		if ref == nil {
			ref = r
			continue
		}
		assert.InDelta(t, ref.F, r.F, 1e-6*math.Max(1, ref.F), name)
		if diff := cmp.Diff(ref.X, r.X, cmpopts.EquateApprox(0, 1e-4)); diff != "" {
			t.Fatalf("%s: solution mismatch (-want +got):\n%s", name, diff)
		}
	}
}

func TestSimplexRegression(t *testing.T) {
	const m, n = 50, 10
	A, y := regression(11, m, n)

	r := fit(t, Problem{
		N:    n,
		Eval: leastSquares(A, y, m, n),
		Proj: Simplex(1),
		Stop: Termination{MaxEvaluations: 5000, OptTolerance: 1e-6, ProgTolerance: 1e-12},
	}, make([]float64, n), nil)

	require.True(t, r.OK, r.Status.String())
	sum := zero
	for _, v := range r.X {
		require.GreaterOrEqual(t, v, zero)
		sum += v
	}
	assert.InDelta(t, 1, sum, 1e-9)
}

func TestNumDiff(t *testing.T) {
	a := []float64{1.5, -2, 0.75, 0.1}
	want, err := l1ball.ProjectSigned(a, 1)
	require.NoError(t, err)

	value := distance(a)
	r := fit(t, Problem{
		N: len(a),
		Eval: func(x, g []float64) float64 {
			f := value(x, g)
			for i := range g {
				g[i] = math.NaN() // must be ignored
			}
			return f
		},
		Proj:    mustL1(t, 1),
		Stop:    Termination{MaxEvaluations: 1000, OptTolerance: 1e-6, ProgTolerance: 1e-12},
		NumDiff: true,
	}, make([]float64, len(a)), nil)

	require.True(t, r.OK, r.Status.String())
	assert.InDeltaSlice(t, want, r.X, 1e-5)
	assert.Greater(t, r.NumEval, 0)
}

func TestForwardDiff(t *testing.T) {
	eval := func(x, _ []float64) float64 {
		return math.Sin(x[0]) + x[0]*x[1] + math.Exp(-x[2])
	}
	x := []float64{0.3, -1.2, 2}
	g := make([]float64, 3)
	f := forwardDiff(eval, x, g, make([]float64, 3), make([]float64, 3))
	assert.InDelta(t, eval(x, nil), f, 0)
	assert.InDeltaSlice(t, []float64{math.Cos(0.3) - 1.2, 0.3, -math.Exp(-2)}, g, 1e-6)
	assert.Equal(t, []float64{0.3, -1.2, 2}, x)
}

func TestInitialOptimal(t *testing.T) {
	a := []float64{0.2, -0.3}
	r := fit(t, Problem{N: 2, Eval: distance(a), Proj: mustL1(t, 1), Stop: stop},
		[]float64{0.2, -0.3}, nil)
	assert.True(t, r.OK)
	assert.Equal(t, ConvOptimality, r.Status)
	assert.Zero(t, r.NumIter)
	assert.Equal(t, 1, r.NumEval)
	assert.Equal(t, 2, r.NumProj)
}

func TestNotTestOpt(t *testing.T) {
	a := []float64{3, -1, 0.5}
	r := fit(t, Problem{
		N: 3, Eval: distance(a), Proj: mustL1(t, 1), Stop: stop, NotTestOpt: true,
	}, make([]float64, 3), nil)
	assert.True(t, r.OK, r.Status.String())
	assert.NotEqual(t, ConvOptimality, r.Status)
	assert.True(t, math.IsNaN(r.OptCond))
	assert.InDeltaSlice(t, []float64{1, 0, 0}, r.X, 1e-9)
}

func TestHalts(t *testing.T) {

	// evaluation panic
	{
		calls := 0
		r := fit(t, Problem{
			N: 2,
			Eval: func(x, g []float64) float64 {
				if calls++; calls > 2 {
					panic("boom")
				}
				g[0], g[1] = x[0]-5, x[1]-5
				return (x[0]-5)*(x[0]-5) + (x[1]-5)*(x[1]-5)
			},
			Proj: mustL1(t, 1),
			Stop: stop,
		}, []float64{0, 0}, nil)
		assert.False(t, r.OK)
		assert.Equal(t, HaltEvalPanic, r.Status)
	}

	// projection failure
	{
		bad := errors.New("bad projection")
		r := fit(t, Problem{
			N:    2,
			Eval: distance([]float64{1, 1}),
			Proj: func(x []float64) error { return bad },
			Stop: stop,
		}, []float64{0, 0}, nil)
		assert.False(t, r.OK)
		assert.Equal(t, HaltProjError, r.Status)
	}

	// evaluation budget
	{
		const m, n = 50, 10
		A, y := regression(13, m, n)
		r := fit(t, Problem{
			N:    n,
			Eval: leastSquares(A, y, m, n),
			Proj: mustL1(t, 2),
			Stop: Termination{MaxEvaluations: 3, OptTolerance: 0, ProgTolerance: 0},
		}, make([]float64, n), nil)
		assert.False(t, r.OK)
		assert.Equal(t, OverEvalLimit, r.Status)
		assert.LessOrEqual(t, r.NumEval, 4)
	}
}

func TestProblemValidation(t *testing.T) {
	eval := distance([]float64{1})
	proj := mustL1(t, 1)
	for name, p := range map[string]Problem{
		"dimension":   {N: 0, Eval: eval, Proj: proj, Stop: stop},
		"eval":        {N: 1, Proj: proj, Stop: stop},
		"proj":        {N: 1, Eval: eval, Stop: stop},
		"evaluations": {N: 1, Eval: eval, Proj: proj},
		"opttol":      {N: 1, Eval: eval, Proj: proj, Stop: Termination{MaxEvaluations: 1, OptTolerance: -1}},
		"progtol":     {N: 1, Eval: eval, Proj: proj, Stop: Termination{MaxEvaluations: 1, ProgTolerance: math.NaN()}},
		"suffdec":     {N: 1, Eval: eval, Proj: proj, Stop: stop, Search: Search{SuffDecrease: 1}},
		"memory":      {N: 1, Eval: eval, Proj: proj, Stop: stop, Search: Search{Memory: -1}},
		"interp":      {N: 1, Eval: eval, Proj: proj, Stop: stop, Search: Search{Interp: 9}},
		"spectral":    {N: 1, Eval: eval, Proj: proj, Stop: stop, Search: Search{Spectral: -1}},
	} {
		_, err := p.New(nil)
		assert.Error(t, err, name)
	}
}

func TestFitDimensionPanics(t *testing.T) {
	p := Problem{N: 2, Eval: distance([]float64{1, 1}), Proj: mustL1(t, 1), Stop: stop}
	s, err := p.New(nil)
	require.NoError(t, err)
	assert.Panics(t, func() { s.Fit([]float64{1}, s.Init()) })

	q := p
	q.N = 3
	other, err := q.New(nil)
	require.NoError(t, err)
	assert.Panics(t, func() { s.Fit([]float64{1, 1}, other.Init()) })
}

func TestLogger(t *testing.T) {
	var msg, out bytes.Buffer
	log := &Logger{Level: LogTrace, Msg: &msg, Out: &out}

	const m, n = 50, 10
	A, y := regression(17, m, n)
	r := fit(t, Problem{
		N: n, Eval: leastSquares(A, y, m, n), Proj: mustL1(t, 1),
		Stop: Termination{MaxEvaluations: 2000, OptTolerance: 1e-6, ProgTolerance: 1e-12},
	}, make([]float64, n), log)

	require.True(t, r.OK, r.Status.String())
	assert.Contains(t, out.String(), "Iteration")
	assert.Contains(t, out.String(), "Opt Cond")
	assert.Contains(t, msg.String(), r.Status.String())

	msg.Reset()
	out.Reset()
	log.Level = LogNoop
	fit(t, Problem{
		N: n, Eval: leastSquares(A, y, m, n), Proj: mustL1(t, 1),
		Stop: Termination{MaxEvaluations: 2000, OptTolerance: 1e-6},
	}, make([]float64, n), log)
	assert.Empty(t, msg.String())
	assert.Empty(t, out.String())
}

func TestStepInterpolation(t *testing.T) {
	// f(s) = (s - 0.3)² on [0,1]
	assert.InDelta(t, 0.3, quadraticStep(1, 0.09, -0.6, 0.49), 1e-15)
	assert.InDelta(t, 0.3, cubicStep(1, 0.09, -0.6, 0.49, 1.4), 1e-15)

	// concave data falls back to the midpoint
	assert.Equal(t, 0.5, quadraticStep(1, 0, -1, -2))

	// the minimizer is clamped to the bracket
	assert.Equal(t, 1.0, quadraticStep(1, 0, -4, -3.9))

	assert.Equal(t, "UNKNOWN TASK", Status(0).String())
	assert.Equal(t, "STOP: EVALUATION PANICKED", HaltEvalPanic.String())
}

func TestProjectionInPlace(t *testing.T) {
	x := []float64{-3, 2, -1}
	require.NoError(t, mustL1(t, 1)(x))
	assert.Equal(t, []float64{-1, 0, 0}, x)

	x = []float64{0.5, 2, -1}
	require.NoError(t, Simplex(1)(x))
	assert.InDeltaSlice(t, []float64{0, 1, 0}, x, 1e-15)
}
