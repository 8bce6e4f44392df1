// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package l1ball

import (
	"fmt"
	"slices"
)

// Simplex writes the projection of v onto the scaled simplex
// { x : xᵢ ≥ 0, ∑ xᵢ = radius } into out and returns the threshold θ.
//
// With μ the entries of v in descending order, the number of positive
// components is the largest ρ with μᵨ - (∑ⱼ₌₁ᵖ μⱼ - radius)/ρ > 0 and
//
//	θ = (∑ⱼ₌₁ᵖ μⱼ - radius)/ρ,  xᵢ = 𝚖𝚊𝚡(vᵢ - θ, 0)
//
// Unlike the ball projection the equality always binds, and the sort makes
// it O(n log n). v and out may be the same slice.
func Simplex(v, out []float64, radius float64) (theta float64, err error) {
	switch {
	case len(v) == 0:
		err = ErrEmptyInput
	default:
		if err = checkRadius(radius); err == nil {
			err = checkVector(v, out)
		}
	}
	if err != nil {
		return 0, fmt.Errorf("Simplex: %w", err)
	}

	mu := slices.Clone(v)
	slices.Sort(mu)

	sum, sumRho, rho := zero, zero, 0
	for j := len(mu) - 1; j >= 0; j-- {
		sum += mu[j]
		r := len(mu) - j
		if mu[j]-(sum-radius)/float64(r) > zero {
			rho, sumRho = r, sum
		}
	}

	theta = (sumRho - radius) / float64(rho)
	softThreshold(v, out, theta)
	return theta, nil
}
