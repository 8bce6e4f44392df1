// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package l1ball

import (
	"fmt"
	"math"
	"slices"
	"sort"
)

// GroupLinf writes the projection of x onto the mixed L1-L∞ ball
//
//	{ p : ∑₉ 𝚖𝚊𝚡ᵢ∈₉ |pᵢ| ≤ radius }
//
// into out, where groups[i] ≥ 0 is the group label of xᵢ.
//
// Every group is clipped to a cap m₉, so pᵢ = 𝚜𝚒𝚐𝚗(xᵢ) · 𝚖𝚒𝚗(|xᵢ|, m₉).
// All groups share the mass D = ∑ᵢ∈₉ 𝚖𝚊𝚡(|xᵢ| - m₉, 0) removed from them
// (zero caps excepted). Each m₉(D) is piecewise linear, so D is found by a
// binary search over the merged breakpoints followed by one interpolation.
// x and out may be the same slice.
func GroupLinf(x, out []float64, groups []int, radius float64) error {
	if err := checkRadius(radius); err != nil {
		return fmt.Errorf("GroupLinf: %w", err)
	}
	if err := checkGroups(x, out, groups, -1); err != nil {
		return fmt.Errorf("GroupLinf: %w", err)
	}

	sorted := groupMagnitudes(x, groups)

	// dist₉[v] is the mass removed when the cap of g drops to the v-th largest
	//   dist₉[v] = dist₉[v-1] + v(a₉[v-1] - a₉[v])
	dist := make([][]float64, len(sorted))
	norm := zero
	var breaks []float64
	for g, a := range sorted {
		if len(a) == 0 {
			continue
		}
		d := make([]float64, len(a))
		for v := 1; v < len(a); v++ {
			d[v] = d[v-1] + float64(v)*(a[v-1]-a[v])
		}
		dist[g] = d
		norm += a[0]
		breaks = append(breaks, d...)
	}

	if norm <= radius {
		copy(out, x)
		return nil
	}

	total := func(D float64) (s float64) {
		for g := range sorted {
			s += groupCap(sorted[g], dist[g], D)
		}
		return
	}

	slices.Sort(breaks)
	breaks = slices.Compact(breaks)

	// total(0) = norm > radius and total(𝚖𝚊𝚡 D) = 0, so 0 < j < len(breaks)
	j := sort.Search(len(breaks), func(i int) bool { return total(breaks[i]) <= radius })
	lo, hi := breaks[j-1], breaks[j]
	tl, th := total(lo), total(hi)
	D := lo + (tl-radius)/(tl-th)*(hi-lo)

	caps := make([]float64, len(sorted))
	for g := range sorted {
		caps[g] = groupCap(sorted[g], dist[g], D)
	}
	for i, v := range x {
		out[i] = clip(v, caps[groups[i]])
	}
	return nil
}

// GroupLinfCone projects each pair (w₉, α₉) onto the cone
//
//	{ (w, α) : |wᵢ| ≤ α₉ for every i ∈ g }
//
// in place, where groups[i] is the index into alpha of the group of wᵢ.
// A violated group caps its largest k magnitudes and α₉ at
//
//	v = (α₉ + ∑ⱼ₌₁ᵏ aⱼ) / (k + 1)
//
// for the first k with v > aₖ₊₁ (a the magnitudes in descending order),
// or collapses to zero when no positive v exists.
func GroupLinfCone(w, alpha []float64, groups []int) error {
	if err := checkGroups(w, w, groups, len(alpha)); err != nil {
		return fmt.Errorf("GroupLinfCone: %w", err)
	}
	if err := checkVector(alpha, alpha); err != nil {
		return fmt.Errorf("GroupLinfCone: alpha %w", err)
	}

	sorted := groupMagnitudes(w, groups)
	for g, a := range sorted {
		if len(a) == 0 || a[0] <= alpha[g] {
			continue
		}
		a = a[:len(a)-1] // drop the trailing zero
		v, s := zero, zero
		for k := range a {
			s += a[k]
			next := zero
			if k+1 < len(a) {
				next = a[k+1]
			}
			if p := (s + alpha[g]) / float64(k+2); p > zero && p > next {
				v = p
				break
			}
		}
		alpha[g] = v
	}
	for i, x := range w {
		w[i] = clip(x, alpha[groups[i]])
	}
	return nil
}

// checkGroups validates vectors and labels; labels must stay below limit when it is not negative.
func checkGroups(x, out []float64, groups []int, limit int) error {
	if len(groups) != len(x) {
		return fmt.Errorf("len(x)=%d len(groups)=%d: %w", len(x), len(groups), ErrLengthMismatch)
	}
	if err := checkVector(x, out); err != nil {
		return err
	}
	for i, g := range groups {
		if g < 0 || (limit >= 0 && g >= limit) {
			return fmt.Errorf("groups[%d]=%d: %w", i, g, ErrInvalidGroup)
		}
	}
	return nil
}

// groupMagnitudes returns |xᵢ| of every group in descending order, each followed by a zero.
func groupMagnitudes(x []float64, groups []int) [][]float64 {
	n := 0
	for _, g := range groups {
		n = max(n, g+1)
	}
	sorted := make([][]float64, n)
	for i, g := range groups {
		sorted[g] = append(sorted[g], math.Abs(x[i]))
	}
	for g, a := range sorted {
		if len(a) == 0 {
			continue
		}
		slices.Sort(a)
		slices.Reverse(a)
		sorted[g] = append(a, zero)
	}
	return sorted
}

// groupCap returns the cap of a group after removing mass D from it.
func groupCap(a, dist []float64, D float64) float64 {
	if len(a) == 0 || D >= dist[len(dist)-1] {
		return zero
	}
	// dist[idx] ≤ D < dist[idx+1]
	idx := sort.Search(len(dist), func(i int) bool { return dist[i] > D }) - 1
	return a[idx] + (a[idx+1]-a[idx])*(D-dist[idx])/(dist[idx+1]-dist[idx])
}

// clip returns 𝚜𝚒𝚐𝚗(x) · 𝚖𝚒𝚗(|x|, m), with +0 for a zero result.
func clip(x, m float64) float64 {
	switch {
	case m <= zero:
		return zero
	case x > m:
		return m
	case x < -m:
		return -m
	}
	return x
}
