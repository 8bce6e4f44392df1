// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pqn

import "math"

const (
	solveUpperN = 0b01
	solveUpperT = 0b11
)

// dtrsl solves systems of the form
//
//	R * x = b or Rᵀ * x = b
//
// where R is an upper triangular matrix of order n stored row-major with
// leading dimension ldt. The strict lower triangle is not referenced.
//
// job 01 solves R * x = b, job 11 solves Rᵀ * x = b.
// On return b holds the solution when info is zero, otherwise info is the
// index of the first zero diagonal element (1-based) and b is unaltered.
func dtrsl(t []float64, ldt, n int, b []float64, job int) (info int) {

	if n > len(b) || (n > 0 && (n-1)*(ldt+1) >= len(t)) {
		panic("bound check error")
	}

	for j := 0; j < n; j++ {
		if t[j*ldt+j] == zero {
			return j + 1
		}
	}

	switch job {
	case solveUpperN: // back substitution
		for j := n - 1; j >= 0; j-- {
			s := b[j]
			for k := j + 1; k < n; k++ {
				s -= t[j*ldt+k] * b[k]
			}
			b[j] = s / t[j*ldt+j]
		}
	case solveUpperT: // forward substitution with Rᵀ
		for j := 0; j < n; j++ {
			s := b[j]
			for k := 0; k < j; k++ {
				s -= t[k*ldt+j] * b[k]
			}
			b[j] = s / t[j*ldt+j]
		}
	default:
		info = -1
	}
	return
}

// dpofa factors a symmetric positive definite matrix A = Rᵀ * R.
//
// Only the diagonal and upper triangle of a (row-major, leading dimension lda)
// are used, and R overwrites them. info is zero on normal return, otherwise
// the leading minor of order info is not positive definite.
func dpofa(a []float64, lda, n int) (info int) {
	if n > 0 && (n-1)*(lda+1) >= len(a) {
		panic("bound check error")
	}
	for j := 0; j < n; j++ {
		info = j + 1
		s := zero
		for k := 0; k < j; k++ {
			t := a[k*lda+j]
			for i := 0; i < k; i++ {
				t -= a[i*lda+k] * a[i*lda+j]
			}
			t /= a[k*lda+k]
			a[k*lda+j] = t
			s += t * t
		}
		s = a[j*lda+j] - s
		if s <= zero {
			return
		}
		a[j*lda+j] = math.Sqrt(s)
	}
	return 0
}

// dot computes the dot product of two vectors.
func dot(dx, dy []float64) (dot float64) {
	n := len(dx)
	if n > len(dy) {
		panic("bound check error")
	}
	m := n % 5
	for i := 0; i < m; i++ {
		dot += dx[i] * dy[i]
	}
	for i := m; i < n; i += 5 {
		x := dx[i : i+5 : i+5]
		y := dy[i : i+5 : i+5]
		dot += x[0]*y[0] + x[1]*y[1] + x[2]*y[2] + x[3]*y[3] + x[4]*y[4]
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
