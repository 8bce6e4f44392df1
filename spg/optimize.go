// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spg

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
)

// LogLevel controls the frequency and type of logger output
type LogLevel int

const (
	// LogNoop no output is generated (level < 0)
	LogNoop LogLevel = -1
	// LogLast print only the exit message
	LogLast LogLevel = 0
	// LogEval print also f, step and optimality of every iteration
	LogEval LogLevel = 1
	// LogTrace print also every backtracking decision of the line-search
	LogTrace LogLevel = 2
)

// Logger handles logging output for the optimizer.
// Note the writers must be thread-safe.
type Logger struct {
	Level LogLevel
	Msg   io.Writer // Writer to output log messages.
	Out   io.Writer // Writer for the iteration table.
}

func (l *Logger) enable(level LogLevel) bool {
	return l.Level >= level
}

func (l *Logger) log(format string, a ...any) {
	if len(a) > 0 {
		_, _ = fmt.Fprintf(l.Msg, format, a...)
	} else {
		_, _ = fmt.Fprint(l.Msg, format)
	}
}

func (l *Logger) out(format string, a ...any) {
	if len(a) > 0 {
		_, _ = fmt.Fprintf(l.Out, format, a...)
	} else {
		_, _ = fmt.Fprint(l.Out, format)
	}
}

// Evaluation is a function type for evaluating the objective function and gradient.
// The gradient g is ignored when the problem requests numerical differentiation.
type Evaluation func(x []float64, g []float64) (f float64)

// Projection replaces x with its Euclidean projection onto the feasible set.
type Projection func(x []float64) error

// Interp selects how the backtracking line-search picks the next trial step.
type Interp int

const (
	// Cubic minimizes the Hermite cubic through f and g at both ends (default).
	Cubic Interp = iota
	// Quadratic minimizes the parabola through f(0), f′(0) and f(t).
	Quadratic
	// Halving simply halves the step.
	Halving
)

// Spectral selects the Barzilai-Borwein step length.
type Spectral int

const (
	// BB1 uses 𝚊𝚕𝚙𝚑𝚊 = sᵀs / sᵀy (default).
	BB1 Spectral = iota
	// BB2 uses 𝚊𝚕𝚙𝚑𝚊 = sᵀy / yᵀy.
	BB2
	// NoSpectral always starts from the unit step.
	NoSpectral
)

// Termination specifies the stopping criteria for the optimization algorithm.
type Termination struct {
	// The iteration stop when the total number of function evaluation exceeds limit.
	// With numerical differentiation one gradient costs N+1 evaluations.
	MaxEvaluations int
	// The iteration will stop when the first-order optimality satisfied:
	//   𝚖𝚊𝚡ᵢ | P(x - g)ᵢ - xᵢ | < 𝚘𝚙𝚝𝚝𝚘𝚕
	OptTolerance float64
	// The iteration will stop when step, directional derivative or change of f
	// falls below 𝚙𝚛𝚘𝚐𝚝𝚘𝚕.
	ProgTolerance float64
}

// Search specifies the non-monotone line-search.
type Search struct {
	// Armijo sufficient decrease parameter in (0,1), default 10⁻⁴.
	SuffDecrease float64
	// Number of previous f values the reference takes the max over, default 10.
	// Memory 1 gives a monotone line-search.
	Memory int
	// Step interpolation used by backtracking.
	Interp Interp
	// Initial step length rule.
	Spectral Spectral
	// Backtrack along the projection arc P(x + td) instead of the projected direction.
	Curvilinear bool
}

// Problem specifies the problem for SPG optimizer.
//
//	minimize 𝒇(𝐱) subject to 𝐱 ∈ 𝛀
//
// where 𝛀 is any closed convex set with a cheap projection P.
type Problem struct {
	N      int         // The problem dimension
	Eval   Evaluation  // Objective function and gradient
	Proj   Projection  // Projection onto the feasible set (called from Fit, keep it goroutine-safe if Fit runs concurrently)
	Stop   Termination // Stop condition
	Search Search      // Line-search config
	// Skip the projection of the initial x.
	FeasibleInit bool
	// Skip the optimality test (saves one projection per iteration).
	NotTestOpt bool
	// Approximate the gradient by forward differences.
	NumDiff bool
}

// New creates a new SPG optimizer for given problem.
func (p *Problem) New(logger *Logger) (optimizer *Optimizer, err error) {

	if logger == nil {
		logger = new(Logger)
		logger.Level = LogNoop
	}
	if logger.Msg == nil {
		logger.Msg = os.Stdout
	}
	if logger.Out == nil {
		logger.Out = os.Stderr
	}

	n, stop, search := p.N, p.Stop, p.Search

	if search.SuffDecrease == zero {
		search.SuffDecrease = 1e-4
	}
	if search.Memory == 0 {
		search.Memory = 10
	}

	switch {
	case n <= 0:
		err = errors.New("problem dimension must greater than 0")
	case p.Eval == nil:
		err = errors.New("evaluation target is required")
	case p.Proj == nil:
		err = errors.New("projection is required")
	case stop.MaxEvaluations <= 0:
		err = errors.New("max evaluation must greater than 0")
	case !(stop.OptTolerance >= zero):
		err = errors.New("optimality tolerance must not less than 0")
	case !(stop.ProgTolerance >= zero):
		err = errors.New("progress tolerance must not less than 0")
	case !(search.SuffDecrease > zero && search.SuffDecrease < one):
		err = errors.New("sufficient decrease parameter must within (0,1)")
	case search.Memory < 0:
		err = errors.New("line-search memory must not less than 0")
	case search.Interp < Cubic || search.Interp > Halving:
		err = fmt.Errorf("unknown interpolation %d", search.Interp)
	case search.Spectral < BB1 || search.Spectral > NoSpectral:
		err = fmt.Errorf("unknown spectral step %d", search.Spectral)
	}

	if err != nil {
		return
	}

	mult := 1
	if p.NumDiff {
		mult = n + 1
	}

	optimizer = &Optimizer{
		solveSpec{
			n:        n,
			eval:     p.Eval,
			proj:     p.Proj,
			stop:     stop,
			search:   search,
			feasible: p.FeasibleInit,
			testOpt:  !p.NotTestOpt,
			numDiff:  p.NumDiff,
			evalMult: mult,
			logger:   *logger,
		},
	}
	return
}

type solveSpec struct {
	n        int
	eval     Evaluation
	proj     Projection
	stop     Termination
	search   Search
	feasible bool
	testOpt  bool
	numDiff  bool
	evalMult int
	logger   Logger
}

// Optimizer implemented using the spectral projected gradient algorithm.
type Optimizer struct {
	solveSpec
}

// Workspace contains the state and context of the optimization process.
// Given problem dimension n and line-search memory m,
// total work space is approximately float64[10×n + m].
type Workspace struct {
	n int
	solveCtx
}

// Result contains the final result of the optimization process.
type Result struct {
	OK      bool      // Whether the optimization was converged.
	F       float64   // Final function value.
	X, G    []float64 // Final solution and gradient.
	Summary           // Optimization summary.
}

// Summary contains a summary of the optimization process.
type Summary struct {
	Status  Status  // Final status after optimization.
	NumIter int     // Number of iterations performed.
	NumEval int     // Number of function evaluations performed.
	NumProj int     // Number of projections performed.
	OptCond float64 // Final first-order optimality, NaN when not tested.
}

// Init allocate the workspace for SPG optimizer.
// To avoid race conditions, separate workspaces need to be created for each goroutine.
// But multiple workspaces could share one optimizer.
func (o *Optimizer) Init() *Workspace {
	w := new(Workspace)
	w.n = o.n
	w.init(o.n, o.search.Memory)
	return w
}

// Fit runs the optimization process using the initial guess x and workspace w.
func (o *Optimizer) Fit(x []float64, w *Workspace) *Result {

	if len(x) != o.n {
		panic("initial x dimension not match problem")
	}

	if w.n != o.n {
		panic("workspace dimension not match problem")
	}

	loc := solveLoc{
		x: slices.Clone(x),
		g: make([]float64, len(x)),
	}

	driver := solveDriver{
		optimizer: o,
		workspace: w,
		location:  &loc,
	}

	res := driver.mainLoop()
	return &Result{
		OK: res&convergence > 0,
		X:  loc.x, F: loc.f, G: loc.g,
		Summary: Summary{
			Status:  res,
			NumIter: w.iter,
			NumEval: w.numEval,
			NumProj: w.numProj,
			OptCond: w.optCond,
		},
	}
}

type solveLoc struct {
	f float64
	x []float64 // n
	g []float64 // n
}

type solveCtx struct {
	iter    int
	numEval int
	numProj int
	optCond float64

	fOld float64
	xOld []float64 // n
	gOld []float64 // n
	d    []float64 // n
	xNew []float64 // n
	gNew []float64 // n
	tmp  []float64 // n
	// finite difference scratch
	xh []float64 // n
	gh []float64 // n
	// previous f values for the non-monotone reference
	fRef []float64 // m
}

func (c *solveCtx) init(n, m int) {
	c.xOld = make([]float64, n)
	c.gOld = make([]float64, n)
	c.d = make([]float64, n)
	c.xNew = make([]float64, n)
	c.gNew = make([]float64, n)
	c.tmp = make([]float64, n)
	c.xh = make([]float64, n)
	c.gh = make([]float64, n)
	c.fRef = make([]float64, m)
}

func (c *solveCtx) clear() {
	c.iter, c.numEval, c.numProj = 0, 0, 0
	c.optCond = math.NaN()
	c.fOld = zero
	for i := range c.fRef {
		c.fRef[i] = math.Inf(-1)
	}
}
