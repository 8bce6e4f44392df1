// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package l1ball computes Euclidean projections onto the L1 ball.
//
// Given c ∈ ℝⁿ and a radius λ > 0 the projector returns
//
//	p = 𝚊𝚛𝚐𝚖𝚒𝚗 ‖ p - c ‖₂  subject to  ∑ 𝚖𝚊𝚡(pᵢ,0) ≤ λ
//
// which is c itself when ∑ 𝚖𝚊𝚡(cᵢ,0) ≤ λ and the soft-threshold
//
//	pᵢ = 𝚖𝚊𝚡(cᵢ - τ, 0)  with  ∑ 𝚖𝚊𝚡(cᵢ - τ, 0) = λ
//
// otherwise. The threshold τ is located by randomized selection over the
// positive entries (median-of-three pivots, three-way partitions) so one
// projection runs in expected linear time without sorting.
//
// # Reference:
//
//   - Duchi, Shalev-Shwartz, Singer and Chandra, Efficient Projections onto the
//     L1-Ball for Learning in High Dimensions, ICML 2008.
//   - Michelot, A Finite Algorithm for Finding the Projection of a Point onto
//     the Canonical Simplex of ℝⁿ, JOTA 1986.
package l1ball
