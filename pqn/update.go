// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pqn

import "math"

// corrections holds the limited-memory BFGS approximation in compact form
//
//	B = θI - W M Wᵀ  where  W = [ Y  θS ]  and  M = [ -D   Lᵀ  ]⁻¹
//	                                                [  L  θSᵀS ]
//
// with S, Y the last col correction pairs (oldest first),
// D = 𝚍𝚒𝚊𝚐 { sᵢᵀyᵢ } and Lᵢⱼ = sᵢᵀyⱼ (i > j).
type corrections struct {
	m, col int
	theta  float64

	s, y   [][]float64 // m × n
	ss, sy []float64   // m × m, SᵀS and SᵀY
	wt     []float64   // m × m, Jᵀ with T = θSᵀS + LD⁻¹Lᵀ = JJᵀ
	wv, p  []float64   // 2m
}

func (c *corrections) init(n, m int) {
	c.m = m
	c.s = make([][]float64, m)
	c.y = make([][]float64, m)
	for i := 0; i < m; i++ {
		c.s[i] = make([]float64, n)
		c.y[i] = make([]float64, n)
	}
	c.ss = make([]float64, m*m)
	c.sy = make([]float64, m*m)
	c.wt = make([]float64, m*m)
	c.wv = make([]float64, 2*m)
	c.p = make([]float64, 2*m)
	c.reset()
}

func (c *corrections) reset() {
	c.col = 0
	c.theta = one
}

// update appends the pair (s, y), dropping the oldest one when memory is full.
// The pair is skipped when the curvature condition sᵀy > 10⁻¹⁰ fails.
func (c *corrections) update(s, y []float64) bool {

	sy := dot(s, y)
	if !(sy > skipCurvature) || c.m == 0 {
		return false
	}

	m := c.m
	if c.col == m {
		// Move old information
		s0, y0 := c.s[0], c.y[0]
		copy(c.s, c.s[1:])
		copy(c.y, c.y[1:])
		c.s[m-1], c.y[m-1] = s0, y0
		for i := 0; i < m-1; i++ {
			copy(c.ss[i*m:i*m+m-1], c.ss[(i+1)*m+1:(i+1)*m+m])
			copy(c.sy[i*m:i*m+m-1], c.sy[(i+1)*m+1:(i+1)*m+m])
		}
	} else {
		c.col++
	}

	// Add new information
	k := c.col - 1
	copy(c.s[k], s)
	copy(c.y[k], y)
	for j := 0; j < k; j++ {
		c.ss[k*m+j] = dot(c.s[k], c.s[j])
		c.ss[j*m+k] = c.ss[k*m+j]
		c.sy[k*m+j] = dot(c.s[k], c.y[j]) // last row of SᵀY
		c.sy[j*m+k] = dot(c.s[j], c.y[k]) // last column of SᵀY
	}
	c.ss[k*m+k] = dot(s, s)
	c.sy[k*m+k] = sy

	// θ = yᵀy / sᵀy
	c.theta = dot(y, y) / sy
	return true
}

// formT computes T = θSᵀS + LD⁻¹Lᵀ and Cholesky factorizes T = JJᵀ
// with Jᵀ stored in the upper triangle of wt.
func (c *corrections) formT() (info int) {

	m, col, theta := c.m, c.col, c.theta
	ss, sy, wt := c.ss, c.sy, c.wt

	for j := 0; j < col; j++ {
		wt[j] = theta * ss[j]
	}
	for i := 1; i < col; i++ {
		for j := i; j < col; j++ {
			ldl, kk := zero, min(i, j)
			for k := 0; k < kk; k++ {
				ldl += sy[i*m+k] * sy[j*m+k] / sy[k*m+k]
			}
			wt[i*m+j] = ldl + theta*ss[i*m+j]
		}
	}

	return dpofa(wt, m, col)
}

// bmv computes the product p = Mv of the 2col × 2col middle matrix with v,
// using the factorization
//
//	[ -D    Lᵀ  ] = [  D¹ᐟ²     O ] [ -D¹ᐟ²  D⁻¹ᐟ²Lᵀ ]
//	[  L  θSᵀS  ]   [ -LD⁻¹ᐟ²   J ] [  O     Jᵀ     ]
//
// so that p solves two block triangular systems.
func (c *corrections) bmv(v, p []float64) (info int) {

	m, col := c.m, c.col
	if col == 0 {
		return
	}
	sy, wt := c.sy, c.wt

	v1, v2 := v[:col], v[col:2*col]
	p1, p2 := p[:col], p[col:2*col]

	// PART I: solve  [  D¹ᐟ²     O ] [ p₁ ] = [ v₁ ]
	//                [ -LD⁻¹ᐟ²   J ] [ p₂ ]   [ v₂ ]

	// p₂ = J⁻¹(v₂ + LD⁻¹v₁)
	p2[0] = v2[0]
	for i := 1; i < col; i++ {
		sum := zero
		for j := 0; j < i; j++ {
			sum += sy[i*m+j] * v1[j] / sy[j*m+j]
		}
		p2[i] = v2[i] + sum
	}
	if info = dtrsl(wt, m, col, p2, solveUpperT); info != 0 {
		return
	}

	// p₁ = D⁻¹ᐟ²v₁
	for i := 0; i < col; i++ {
		p1[i] = v1[i] / math.Sqrt(sy[i*m+i])
	}

	// PART II: solve  [ -D¹ᐟ²  D⁻¹ᐟ²Lᵀ ] [ p₁ ] = [ p₁ ]
	//                 [  O     Jᵀ     ] [ p₂ ]   [ p₂ ]

	// p₂ = J⁻ᵀp₂
	if info = dtrsl(wt, m, col, p2, solveUpperN); info != 0 {
		return
	}

	// p₁ = -D⁻¹ᐟ²p₁ + D⁻¹Lᵀp₂
	for i := 0; i < col; i++ {
		p1[i] /= -math.Sqrt(sy[i*m+i])
	}
	for i := 0; i < col; i++ {
		sum := zero
		for j := i + 1; j < col; j++ {
			sum += sy[j*m+i] * p2[j] / sy[i*m+i]
		}
		p1[i] += sum
	}
	return
}

// hessVec computes Bv = θv - W M Wᵀv into bv.
func (c *corrections) hessVec(v, bv []float64) (info int) {

	col, theta := c.col, c.theta
	if len(bv) < len(v) {
		panic("bound check error")
	}

	for i, x := range v {
		bv[i] = theta * x
	}
	if col == 0 {
		return
	}

	// Wᵀv = [ Yᵀv; θSᵀv ]
	wv := c.wv[:2*col]
	for i := 0; i < col; i++ {
		wv[i] = dot(c.y[i], v)
		wv[col+i] = theta * dot(c.s[i], v)
	}

	p := c.p[:2*col]
	if info = c.bmv(wv, p); info != 0 {
		return
	}

	for i := 0; i < col; i++ {
		a, b := p[i], theta*p[col+i]
		yi, si := c.y[i], c.s[i]
		for j := range bv {
			bv[j] -= a*yi[j] + b*si[j]
		}
	}
	return
}
