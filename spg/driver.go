// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spg

import (
	"math"
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
		if o.numDiff {
			f = forwardDiff(o.eval, x, g, w.xh, w.gh)
		} else {
			f = o.eval(x, g)
		}
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

// spectralStep returns the Barzilai-Borwein step from the last displacement.
func (d *solveDriver) spectralStep() float64 {
	o, w, loc := d.optimizer, d.workspace, d.location
	if w.iter == 1 || o.search.Spectral == NoSpectral {
		return one
	}
	// s = xₖ - xₖ₋₁, y = gₖ - gₖ₋₁
	var ss, sy, yy float64
	for i := 0; i < o.n; i++ {
		s := loc.x[i] - w.xOld[i]
		y := loc.g[i] - w.gOld[i]
		ss += s * s
		sy += s * y
		yy += y * y
	}
	var alpha float64
	if o.search.Spectral == BB1 {
		alpha = ss / sy
	} else {
		alpha = sy / yy
	}
	if !(alpha > alphaMin && alpha <= alphaMax) {
		alpha = one
	}
	return alpha
}

// funcRef returns the non-monotone reference max(fₖ₋ₘ₊₁,...,fₖ).
func (d *solveDriver) funcRef() float64 {
	w, loc := d.workspace, d.location
	m := len(w.fRef)
	if m <= 1 {
		return loc.f
	}
	w.fRef[(w.iter-1)%m] = loc.f
	ref := math.Inf(-1)
	for _, f := range w.fRef {
		ref = math.Max(ref, f)
	}
	return ref
}

// mainLoop is the main execution loop of the iteration process.
func (d *solveDriver) mainLoop() (task Status) {

	o, w, loc := d.optimizer, d.workspace, d.location
	n, stop := o.n, o.stop
	log := o.logger

	w.clear()
	d.printInit()

	if !o.feasible {
		if task = d.project(loc.x); task != solveLoop {
			d.printExit(task)
			return
		}
	}

	if loc.f, task = d.evaluate(loc.x, loc.g); task != solveLoop {
		d.printExit(task)
		return
	}

	if o.testOpt {
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
	}

	for w.numEval*o.evalMult <= stop.MaxEvaluations {
		w.iter++

		// Compute step direction dₖ = -𝚊𝚕𝚙𝚑𝚊 gₖ
		alpha := d.spectralStep()
		w.fOld = loc.f
		copy(w.xOld, loc.x)
		copy(w.gOld, loc.g)
		for i := 0; i < n; i++ {
			w.d[i] = -alpha * loc.g[i]
		}

		// Compute projected step dₖ = P(xₖ + dₖ) - xₖ
		if !o.search.Curvilinear {
			for i := 0; i < n; i++ {
				w.d[i] += loc.x[i]
			}
			if task = d.project(w.d); task != solveLoop {
				break
			}
			for i := 0; i < n; i++ {
				w.d[i] -= loc.x[i]
			}
		}

		// Check that progress can be made along the direction
		gtd := dot(loc.g, w.d)
		if gtd > -stop.ProgTolerance {
			task = ConvNoDescent
			break
		}

		// Select initial guess to step length
		t := one
		if w.iter == 1 {
			t = math.Min(one, one/asum(loc.g))
		}

		var fNew float64
		if t, fNew, task = d.backtrack(t, gtd, d.funcRef()); task != solveLoop {
			break
		}

		// Take step
		loc.f = fNew
		copy(loc.x, w.xNew)
		copy(loc.g, w.gNew)

		if o.testOpt {
			if task = d.optimality(); task != solveLoop {
				break
			}
		}

		d.printIter(t)

		stepNorm := zero
		for i := 0; i < n; i++ {
			stepNorm = math.Max(stepNorm, math.Abs(t*w.d[i]))
		}

		switch {
		case t == zero:
			task = StopLineSearch
		case o.testOpt && w.optCond < stop.OptTolerance:
			task = ConvOptimality
		case stepNorm < stop.ProgTolerance:
			task = ConvStepSize
		case math.Abs(loc.f-w.fOld) < stop.ProgTolerance:
			task = ConvFuncChange
		case w.numEval*o.evalMult > stop.MaxEvaluations:
			task = OverEvalLimit
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
	if log := o.logger; log.enable(LogEval) {
		log.log("SPG: N = %d    M = %d\n", o.n, len(d.workspace.fRef))
		if o.testOpt {
			log.out("%10s %10s %10s %15s %15s %15s\n",
				"Iteration", "FunEvals", "Projections", "Step Length", "Function Val", "Opt Cond")
		} else {
			log.out("%10s %10s %10s %15s %15s\n",
				"Iteration", "FunEvals", "Projections", "Step Length", "Function Val")
		}
	}
}

func (d *solveDriver) printIter(t float64) {
	o, w, loc := d.optimizer, d.workspace, d.location
	if log := o.logger; log.enable(LogEval) {
		if o.testOpt {
			log.out("%10d %10d %10d %15.5e %15.5e %15.5e\n",
				w.iter, w.numEval*o.evalMult, w.numProj, t, loc.f, w.optCond)
		} else {
			log.out("%10d %10d %10d %15.5e %15.5e\n",
				w.iter, w.numEval*o.evalMult, w.numProj, t, loc.f)
		}
	}
}

func (d *solveDriver) printExit(task Status) {
	o, w, loc := d.optimizer, d.workspace, d.location
	log := o.logger
	if !log.enable(LogLast) {
		return
	}
	if log.enable(LogEval) {
		log.log("\n   N    Tit     Tnf    Tnp         F\n")
		log.log("%4d %6d %7d %6d %9.5e\n", o.n, w.iter, w.numEval*o.evalMult, w.numProj, loc.f)
	}
	log.log("\n%s\n", task)
}
