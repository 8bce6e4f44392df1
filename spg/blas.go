// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spg

import "math"

// dot computes the dot product of two vectors.
func dot(dx, dy []float64) (dot float64) {
	n := len(dx)
	if n > len(dy) {
		panic("bound check error")
	}
	m := n % 4
	for i := 0; i < m; i++ {
		dot += dx[i] * dy[i]
	}
	for i := m; i < n; i += 4 {
		x := dx[i : i+4 : i+4]
		y := dy[i : i+4 : i+4]
		dot += x[0]*y[0] + x[1]*y[1] + x[2]*y[2] + x[3]*y[3]
	}
	return
}

// asum computes the sum of absolute values ‖ x ‖₁.
func asum(dx []float64) (sum float64) {
	for _, v := range dx {
		sum += math.Abs(v)
	}
	return
}
