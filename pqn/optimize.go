// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pqn

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"

	"github.com/curioloop/l1proj/spg"
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
	// LogTrace print also the settings, skipped updates and backtracking decisions
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

// Termination specifies the stopping criteria for the optimization algorithm.
type Termination struct {
	// The iteration stop when the total number of function evaluation exceeds limit.
	MaxEvaluations int
	// The iteration stop when the total number of projections exceeds limit (default 100000).
	MaxProjections int
	// The iteration will stop when the first-order optimality satisfied:
	//   𝚖𝚊𝚡ᵢ | P(x - g)ᵢ - xᵢ | < 𝚘𝚙𝚝𝚝𝚘𝚕
	// It also bounds the directional derivative gᵀd of a usable direction.
	OptTolerance float64
	// The iteration will stop when step or change of f falls below 𝚙𝚛𝚘𝚐𝚝𝚘𝚕.
	ProgTolerance float64
}

// SubProblem specifies the SPG solve of the quasi-Newton model
//
//	𝚖𝚒𝚗 gᵀ(p - x) + ½(p - x)ᵀB(p - x)  subject to  p ∈ 𝛀
//
// Zero values select the defaults.
type SubProblem struct {
	MaxEvaluations int     // Model evaluations per direction, default 10.
	OptTolerance   float64 // Default 10⁻⁶.
	ProgTolerance  float64 // Default 10⁻¹⁰.
	TestOpt        bool    // Test optimality inside the sub-problem.
	// Start from x - 𝚊𝚕𝚙𝚑𝚊 g with the Barzilai-Borwein step instead of the feasible x.
	SpectralInit bool
}

// Problem specifies the problem for PQN optimizer.
//
//	minimize 𝒇(𝐱) subject to 𝐱 ∈ 𝛀
//
// Each iteration builds a limited-memory BFGS model of 𝒇, solves the model
// over 𝛀 with the spectral projected gradient method for a direction and
// backtracks along it with a monotone Armijo search.
type Problem struct {
	N    int            // The problem dimension
	Eval spg.Evaluation // Objective function and gradient
	Proj spg.Projection // Projection onto the feasible set (also used by the sub-problem)
	Stop Termination    // Stop condition
	Sub  SubProblem     // Direction finding config
	// Number of L-BFGS corrections to store, default 10.
	Corrections int
	// Armijo sufficient decrease parameter in (0,1), default 10⁻⁴.
	SuffDecrease float64
	// Initialize the step length by 2(fₖ - fₖ₋₁)/gᵀd instead of 1.
	AdjustStep bool
}

// New creates a new PQN optimizer for given problem.
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

	n, stop, sub := p.N, p.Stop, p.Sub
	m, suffDec := p.Corrections, p.SuffDecrease

	if stop.MaxProjections == 0 {
		stop.MaxProjections = 100000
	}
	if sub.MaxEvaluations == 0 {
		sub.MaxEvaluations = 10
	}
	if sub.OptTolerance == zero {
		sub.OptTolerance = 1e-6
	}
	if sub.ProgTolerance == zero {
		sub.ProgTolerance = 1e-10
	}
	if m == 0 {
		m = 10
	}
	if suffDec == zero {
		suffDec = 1e-4
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
	case stop.MaxProjections < 0:
		err = errors.New("max projection must not less than 0")
	case !(stop.OptTolerance >= zero):
		err = errors.New("optimality tolerance must not less than 0")
	case !(stop.ProgTolerance >= zero):
		err = errors.New("progress tolerance must not less than 0")
	case m < 0:
		err = errors.New("number of corrections must not less than 0")
	case !(suffDec > zero && suffDec < one):
		err = errors.New("sufficient decrease parameter must within (0,1)")
	}

	if err != nil {
		return
	}

	subProb := spg.Problem{
		N:    n,
		Proj: p.Proj,
		Stop: spg.Termination{
			MaxEvaluations: sub.MaxEvaluations,
			OptTolerance:   sub.OptTolerance,
			ProgTolerance:  sub.ProgTolerance,
		},
		FeasibleInit: !sub.SpectralInit,
		NotTestOpt:   !sub.TestOpt,
	}

	// validate the sub-problem once, workspaces bind their own model to it
	check := subProb
	check.Eval = func(x, g []float64) float64 { return zero }
	if _, err = check.New(nil); err != nil {
		err = fmt.Errorf("sub-problem: %w", err)
		return
	}

	optimizer = &Optimizer{
		solveSpec{
			n:       n,
			m:       m,
			eval:    p.Eval,
			proj:    p.Proj,
			stop:    stop,
			sub:     sub,
			subProb: subProb,
			suffDec: suffDec,
			adjStep: p.AdjustStep,
			logger:  *logger,
		},
	}
	return
}

type solveSpec struct {
	n       int
	m       int
	eval    spg.Evaluation
	proj    spg.Projection
	stop    Termination
	sub     SubProblem
	subProb spg.Problem
	suffDec float64
	adjStep bool
	logger  Logger
}

// Optimizer implemented using the limited-memory projected quasi-Newton algorithm.
type Optimizer struct {
	solveSpec
}

// Workspace contains the state and context of the optimization process.
// Given problem dimension n and corrections m,
// total work space is approximately float64[(2m + 10)×n + 3m² + 4m].
type Workspace struct {
	n int
	solveCtx
	model model
	sub   *spg.Optimizer
	subW  *spg.Workspace
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
	Status     Status  // Final status after optimization.
	NumIter    int     // Number of iterations performed.
	NumEval    int     // Number of function evaluations performed.
	NumProj    int     // Number of projections performed, sub-problems included.
	NumSubIter int     // Number of SPG iterations spent on directions.
	NumSkip    int     // Number of skipped L-BFGS updates.
	OptCond    float64 // Final first-order optimality.
}

// Init allocate the workspace for PQN optimizer.
// To avoid race conditions, separate workspaces need to be created for each goroutine.
// But multiple workspaces could share one optimizer.
func (o *Optimizer) Init() *Workspace {
	w := new(Workspace)
	w.n = o.n
	w.init(o.n, o.m)
	w.model.init(o.n, &w.corr)

	sub := o.subProb
	sub.Eval = w.model.eval
	opt, err := sub.New(nil)
	if err != nil {
		panic(err) // validated by Problem.New
	}
	w.sub, w.subW = opt, opt.Init()
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
			Status:     res,
			NumIter:    w.iter,
			NumEval:    w.numEval,
			NumProj:    w.numProj,
			NumSubIter: w.numSub,
			NumSkip:    w.numSkip,
			OptCond:    w.optCond,
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
	numSub  int
	numSkip int
	optCond float64

	fOld float64
	xOld []float64 // n
	gOld []float64 // n
	p    []float64 // n, sub-problem solution
	d    []float64 // n
	xNew []float64 // n
	gNew []float64 // n
	tmp  []float64 // n
	s, y []float64 // n, latest correction pair

	corr corrections
}

func (c *solveCtx) init(n, m int) {
	c.xOld = make([]float64, n)
	c.gOld = make([]float64, n)
	c.p = make([]float64, n)
	c.d = make([]float64, n)
	c.xNew = make([]float64, n)
	c.gNew = make([]float64, n)
	c.tmp = make([]float64, n)
	c.s = make([]float64, n)
	c.y = make([]float64, n)
	c.corr.init(n, m)
}

func (c *solveCtx) clear() {
	c.iter, c.numEval, c.numProj, c.numSub, c.numSkip = 0, 0, 0, 0, 0
	c.optCond = math.NaN()
	c.fOld = zero
	c.corr.reset()
}

// model is the quadratic gᵀd + ½dᵀBd in d = p - x, minimized by the sub-problem.
type model struct {
	x, g  []float64 // n, current iterate
	d, bd []float64 // n
	corr  *corrections
}

func (m *model) init(n int, corr *corrections) {
	m.x = make([]float64, n)
	m.g = make([]float64, n)
	m.d = make([]float64, n)
	m.bd = make([]float64, n)
	m.corr = corr
}

func (m *model) eval(p, g []float64) float64 {
	for i := range m.d {
		m.d[i] = p[i] - m.x[i]
	}
	if m.corr.hessVec(m.d, m.bd) != 0 {
		panic("singular middle matrix")
	}
	for i := range g {
		g[i] = m.g[i] + m.bd[i]
	}
	return dot(m.g, m.d) + half*dot(m.d, m.bd)
}
