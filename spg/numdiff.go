// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spg

import "math"

var sqrtEps = math.Sqrt(math.Nextafter(1, 2) - 1)

// forwardDiff evaluates f at x and approximates its gradient by first order
// forward differences with step hᵢ = √ε · 𝚜𝚒𝚐𝚗(xᵢ) · 𝚖𝚊𝚡(1,|xᵢ|):
//
//	gᵢ ≈ (f(x + hᵢeᵢ) - f(x)) / hᵢ
//
// xh and gh are scratch n-vectors. The gradient written by eval is ignored.
func forwardDiff(eval Evaluation, x, g, xh, gh []float64) (f float64) {
	n := len(x)
	if n > len(g) || n > len(xh) || n > len(gh) {
		panic("bound check error")
	}
	f = eval(x, gh)
	copy(xh, x)
	for i := 0; i < n; i++ {
		h := sqrtEps * math.Max(one, math.Abs(x[i]))
		if x[i] < zero {
			h = -h
		}
		xh[i] = x[i] + h
		h = xh[i] - x[i] // exact representable step
		g[i] = (eval(xh, gh) - f) / h
		xh[i] = x[i]
	}
	return
}
