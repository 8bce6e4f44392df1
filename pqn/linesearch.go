// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pqn

import (
	"math"
)

// Perform a monotone backtracking line-search along dₖ = pₖ - xₖ.
// The step tₖ is accepted once xₖ₊₁ = xₖ + tₖdₖ satisfies
//   - sufficient decrease: fₖ₊₁ ≤ fₖ + ɑgₖᵀ(xₖ₊₁ - xₖ)
//
// Since pₖ is feasible and 𝛀 is convex every trial point stays feasible.
// A step with ‖ tₖdₖ ‖₁ below 𝚙𝚛𝚘𝚐𝚝𝚘𝚕 is reported as t = 0 with xₖ₊₁ = xₖ.
func (d *solveDriver) backtrack(t, gtd float64) (float64, float64, Status) {

	o, w, loc := d.optimizer, d.workspace, d.location
	n, stop := o.n, o.stop
	log := o.logger

	if n > len(w.xNew) || n > len(w.gNew) || n > len(w.d) {
		panic("bound check error")
	}

	fNew, task := d.trialPoint(t)
	for task == solveLoop {

		gdx := zero // gₖᵀ(xₖ₊₁ - xₖ)
		for i := 0; i < n; i++ {
			gdx += loc.g[i] * (w.xNew[i] - loc.x[i])
		}
		if isLegal(fNew) && fNew <= loc.f+o.suffDec*gdx {
			return t, fNew, solveLoop
		}

		temp := t
		if !isLegal(fNew) || !allLegal(w.gNew[:n]) {
			if log.enable(LogTrace) {
				log.log("Halving Step Size\n")
			}
			t *= half
		} else {
			if log.enable(LogTrace) {
				log.log("Cubic Backtracking\n")
			}
			t = cubicStep(temp, loc.f, gtd, fNew, dot(w.gNew, w.d))
		}

		// Adjust if change is too small or too large
		if t < temp*shrinkMin {
			if log.enable(LogTrace) {
				log.log("Interpolated value too small, Adjusting\n")
			}
			t = temp * shrinkMin
		} else if t > temp*shrinkMax {
			if log.enable(LogTrace) {
				log.log("Interpolated value too large, Adjusting\n")
			}
			t = temp * shrinkMax
		}

		// Check whether step has become too small
		if t*asum(w.d[:n]) < stop.ProgTolerance || t == zero {
			if log.enable(LogTrace) {
				log.log("Line Search Failed\n")
			}
			copy(w.xNew, loc.x)
			copy(w.gNew, loc.g)
			return zero, loc.f, solveLoop
		}

		if w.numEval >= stop.MaxEvaluations {
			return t, fNew, OverEvalLimit
		}

		fNew, task = d.trialPoint(t)
	}
	return t, fNew, task
}

// trialPoint evaluates xₖ + tdₖ into w.xNew and w.gNew, taking pₖ itself for the unit step.
func (d *solveDriver) trialPoint(t float64) (float64, Status) {
	o, w, loc := d.optimizer, d.workspace, d.location
	if t == one {
		copy(w.xNew, w.p)
	} else {
		for i := 0; i < o.n; i++ {
			w.xNew[i] = loc.x[i] + t*w.d[i]
		}
	}
	return d.evaluate(w.xNew, w.gNew)
}

// cubicStep returns the minimizer on [0,t] of the cubic interpolating
// f(0)=f0, f′(0)=g0, f(t)=f1, f′(t)=g1, or the midpoint when it has none.
func cubicStep(t, f0, g0, f1, g1 float64) float64 {
	xa, fa, ga := zero, f0, g0
	xb, fb, gb := t, f1, g1
	if fb < fa {
		xa, fa, ga, xb, fb, gb = xb, fb, gb, xa, fa, ga
	}
	d1 := ga + gb - 3*(fa-fb)/(xa-xb)
	if d2 := d1*d1 - ga*gb; d2 >= zero {
		d2 = math.Sqrt(d2)
		s := xb - (xb-xa)*((gb+d2-d1)/(gb-ga+2*d2))
		if isLegal(s) {
			return math.Min(math.Max(s, zero), t)
		}
	}
	return t * half
}

func isLegal(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func allLegal(v []float64) bool {
	for _, x := range v {
		if !isLegal(x) {
			return false
		}
	}
	return true
}
