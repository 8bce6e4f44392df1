// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pqn

import (
	"math"

	"github.com/curioloop/l1proj/spg"
)

// solveDriver is the main driver for iterations in an optimization process,
// responsible for managing the flow of the optimization.
type solveDriver struct {
	optimizer *Optimizer
	workspace *Workspace
	location  *solveLoc
}

// evaluate computes f and g at x, recovering from a panicking callback.
func (d *solveDriver) evaluate(x, g []float64) (f float64, task Status) {
	o, w := d.optimizer, d.workspace
	func() {
		defer func() {
			if r := recover(); r != nil {
				task = HaltEvalPanic
			}
		}()
		f = o.eval(x, g)
		w.numEval++
	}()
	return
}

// project applies the projection in place and counts it.
func (d *solveDriver) project(x []float64) Status {
	o, w := d.optimizer, d.workspace
	w.numProj++
	if err := o.proj(x); err != nil {
		if log := o.logger; log.enable(LogLast) {
			log.log("Projection failed: %v\n", err)
		}
		return HaltProjError
	}
	return solveLoop
}

// optimality computes max|P(x-g)-x| into the workspace.
func (d *solveDriver) optimality() Status {
	o, w, loc := d.optimizer, d.workspace, d.location
	tmp := w.tmp
	for i := 0; i < o.n; i++ {
		tmp[i] = loc.x[i] - loc.g[i]
	}
	if task := d.project(tmp); task != solveLoop {
		return task
	}
	norm := zero
	for i := 0; i < o.n; i++ {
		norm = math.Max(norm, math.Abs(tmp[i]-loc.x[i]))
	}
	w.optCond = norm
	return solveLoop
}

// updateBFGS adds the pair s = xₖ - xₖ₋₁, y = gₖ - gₖ₋₁ and refactors T.
func (d *solveDriver) updateBFGS() {
	o, w, loc := d.optimizer, d.workspace, d.location
	log := o.logger
	for i := 0; i < o.n; i++ {
		w.s[i] = loc.x[i] - w.xOld[i]
		w.y[i] = loc.g[i] - w.gOld[i]
	}
	if !w.corr.update(w.s, w.y) {
		w.numSkip++
		if log.enable(LogTrace) {
			log.log("Skipping L-BFGS update\n")
		}
		return
	}
	if info := w.corr.formT(); info != 0 {
		if log.enable(LogEval) {
			log.log("Nonpositive definiteness in Cholesky factorization (info = %d); refresh the lbfgs memory\n", info)
		}
		w.corr.reset()
	}
}

// direction solves the quasi-Newton sub-problem for pₖ with SPG.
// The projected gradient P(xₖ - gₖ) is used on the first iteration.
func (d *solveDriver) direction() Status {
	o, w, loc := d.optimizer, d.workspace, d.location
	log := o.logger

	if w.iter == 1 {
		for i := 0; i < o.n; i++ {
			w.p[i] = loc.x[i] - loc.g[i]
		}
		return d.project(w.p)
	}

	d.updateBFGS()

	copy(w.model.x, loc.x)
	copy(w.model.g, loc.g)

	// starting point of the sub-problem
	copy(w.p, loc.x)
	if o.sub.SpectralInit {
		alpha := dot(w.s, w.s) / dot(w.s, w.y)
		if !(alpha > alphaMin && alpha <= alphaMax) {
			alpha = math.Min(one, one/asum(loc.g))
		}
		for i := 0; i < o.n; i++ {
			w.p[i] -= alpha * loc.g[i]
		}
	}

	res := w.sub.Fit(w.p, w.subW)
	w.numProj += res.NumProj
	w.numSub += res.NumIter

	switch res.Status {
	case spg.HaltProjError:
		return HaltProjError
	case spg.HaltEvalPanic:
		// the model could not be applied, fall back to the projected gradient
		if log.enable(LogEval) {
			log.log("Quasi-Newton model failed; refresh the lbfgs memory\n")
		}
		w.corr.reset()
		for i := 0; i < o.n; i++ {
			w.p[i] = loc.x[i] - loc.g[i]
		}
		return d.project(w.p)
	}
	if log.enable(LogTrace) {
		log.log("Sub-problem: %d iterations, %s\n", res.NumIter, res.Status)
	}
	copy(w.p, res.X)
	return solveLoop
}

// mainLoop is the main execution loop of the iteration process.
func (d *solveDriver) mainLoop() (task Status) {

	o, w, loc := d.optimizer, d.workspace, d.location
	n, stop := o.n, o.stop
	log := o.logger

	w.clear()
	d.printInit()

	if task = d.project(loc.x); task != solveLoop {
		d.printExit(task)
		return
	}

	if loc.f, task = d.evaluate(loc.x, loc.g); task != solveLoop {
		d.printExit(task)
		return
	}

	if task = d.optimality(); task == solveLoop && w.optCond < stop.OptTolerance {
		task = ConvOptimality
		if log.enable(LogLast) {
			log.log("First-Order Optimality Conditions Below optTol at Initial Point\n")
		}
	}
	if task != solveLoop {
		d.printExit(task)
		return
	}

	for w.numEval <= stop.MaxEvaluations {
		w.iter++

		// Compute step direction dₖ = pₖ - xₖ
		if task = d.direction(); task != solveLoop {
			break
		}
		for i := 0; i < n; i++ {
			w.d[i] = w.p[i] - loc.x[i]
		}
		copy(w.xOld, loc.x)
		copy(w.gOld, loc.g)

		// Check that progress can be made along the direction
		gtd := dot(loc.g, w.d)
		if gtd > -stop.OptTolerance {
			task = ConvNoDescent
			break
		}

		// Select initial guess to step length
		t := one
		switch {
		case w.iter == 1:
			t = math.Min(one, one/asum(loc.g))
		case o.adjStep:
			if s := 2 * (loc.f - w.fOld) / gtd; s > zero {
				t = math.Min(one, s)
			}
		}

		var fNew float64
		if t, fNew, task = d.backtrack(t, gtd); task != solveLoop {
			break
		}

		// Take step
		w.fOld = loc.f
		loc.f = fNew
		copy(loc.x, w.xNew)
		copy(loc.g, w.gNew)

		if task = d.optimality(); task != solveLoop {
			break
		}

		d.printIter(t)

		stepNorm := zero
		for i := 0; i < n; i++ {
			stepNorm = math.Max(stepNorm, math.Abs(t*w.d[i]))
		}

		switch {
		case t == zero:
			task = StopLineSearch
		case w.optCond < stop.OptTolerance:
			task = ConvOptimality
		case stepNorm < stop.ProgTolerance:
			task = ConvStepSize
		case math.Abs(loc.f-w.fOld) < stop.ProgTolerance:
			task = ConvFuncChange
		case w.numEval > stop.MaxEvaluations:
			task = OverEvalLimit
		case w.numProj > stop.MaxProjections:
			task = OverProjLimit
		}
		if task != solveLoop {
			break
		}
	}

	if task == solveLoop {
		task = OverEvalLimit
	}

	d.printExit(task)
	return
}

func (d *solveDriver) printInit() {
	o := d.optimizer
	log := o.logger
	if log.enable(LogTrace) {
		log.log("Running PQN...\n")
		log.log("Number of L-BFGS Corrections to store: %d\n", o.m)
		log.log("Spectral initialization of SPG: %t\n", o.sub.SpectralInit)
		log.log("Maximum number of SPG iterations: %d\n", o.sub.MaxEvaluations)
		log.log("SPG optimality tolerance: %.2e\n", o.sub.OptTolerance)
		log.log("SPG progress tolerance: %.2e\n", o.sub.ProgTolerance)
		log.log("PQN optimality tolerance: %.2e\n", o.stop.OptTolerance)
		log.log("PQN progress tolerance: %.2e\n", o.stop.ProgTolerance)
		log.log("Quadratic initialization of line search: %t\n", o.adjStep)
		log.log("Maximum number of function evaluations: %d\n", o.stop.MaxEvaluations)
		log.log("Maximum number of projections: %d\n", o.stop.MaxProjections)
	}
	if log.enable(LogEval) {
		log.out("%10s %10s %10s %15s %15s %15s\n",
			"Iteration", "FunEvals", "Projections", "Step Length", "Function Val", "Opt Cond")
	}
}

func (d *solveDriver) printIter(t float64) {
	o, w, loc := d.optimizer, d.workspace, d.location
	if log := o.logger; log.enable(LogEval) {
		log.out("%10d %10d %10d %15.5e %15.5e %15.5e\n",
			w.iter, w.numEval, w.numProj, t, loc.f, w.optCond)
	}
}

func (d *solveDriver) printExit(task Status) {
	o, w, loc := d.optimizer, d.workspace, d.location
	log := o.logger
	if !log.enable(LogLast) {
		return
	}
	if log.enable(LogEval) {
		log.log("\n   N    Tit     Tnf    Tnp    Tsub    Skip         F\n")
		log.log("%4d %6d %7d %6d %7d %7d %9.5e\n",
			o.n, w.iter, w.numEval, w.numProj, w.numSub, w.numSkip, loc.f)
	}
	log.log("\n%s\n", task)
}
