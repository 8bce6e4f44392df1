// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spg

import (
	"math"
)

// Perform a non-monotone backtracking line-search along dₖ.
// The step tₖ is accepted once xₖ₊₁ = xₖ + tₖdₖ (or P(xₖ + tₖdₖ) when curvilinear) satisfies
//   - non-monotone sufficient decrease: fₖ₊₁ ≤ 𝚖𝚊𝚡(fₖ₋ₘ₊₁,...,fₖ) + ɑgₖᵀ(xₖ₊₁ - xₖ) (ɑ = 10⁻⁴)
//
// A step that shrinks below 𝚙𝚛𝚘𝚐𝚝𝚘𝚕 is reported as t = 0 with xₖ₊₁ = xₖ.
func (d *solveDriver) backtrack(t, gtd, fRef float64) (float64, float64, Status) {

	o, w, loc := d.optimizer, d.workspace, d.location
	n, search, stop := o.n, o.search, o.stop
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
		if isLegal(fNew) && fNew <= fRef+search.SuffDecrease*gdx {
			return t, fNew, solveLoop
		}

		temp := t
		switch {
		case search.Interp == Halving || !isLegal(fNew):
			if log.enable(LogTrace) {
				log.log("Halving Step Size\n")
			}
			t *= half
		case search.Interp == Cubic && allLegal(w.gNew[:n]):
			if log.enable(LogTrace) {
				log.log("Cubic Backtracking\n")
			}
			t = cubicStep(temp, loc.f, gtd, fNew, dot(w.gNew, w.d))
		default:
			if log.enable(LogTrace) {
				log.log("Quadratic Backtracking\n")
			}
			t = quadraticStep(temp, loc.f, gtd, fNew)
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
		stepNorm := zero
		for i := 0; i < n; i++ {
			stepNorm = math.Max(stepNorm, math.Abs(t*w.d[i]))
		}
		if stepNorm < stop.ProgTolerance || t == zero {
			if log.enable(LogTrace) {
				log.log("Line Search Failed\n")
			}
			copy(w.xNew, loc.x)
			copy(w.gNew, loc.g)
			return zero, loc.f, solveLoop
		}

		if w.numEval*o.evalMult >= stop.MaxEvaluations {
			return t, fNew, OverEvalLimit
		}

		fNew, task = d.trialPoint(t)
	}
	return t, fNew, task
}

// trialPoint evaluates xₖ + tdₖ (projected when curvilinear) into w.xNew and w.gNew.
func (d *solveDriver) trialPoint(t float64) (float64, Status) {
	o, w, loc := d.optimizer, d.workspace, d.location
	for i := 0; i < o.n; i++ {
		w.xNew[i] = loc.x[i] + t*w.d[i]
	}
	if o.search.Curvilinear {
		if task := d.project(w.xNew); task != solveLoop {
			return loc.f, task
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

// quadraticStep returns the minimizer on [0,t] of the parabola through
// f(0)=f0, f′(0)=g0 and f(t)=f1, or the midpoint when it is not convex.
func quadraticStep(t, f0, g0, f1 float64) float64 {
	c := (f1 - f0 - g0*t) / (t * t)
	if c > zero {
		if s := -g0 / (2 * c); isLegal(s) {
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
