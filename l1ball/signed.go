// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package l1ball

import (
	"fmt"
	"math"
)

// ProjectSigned writes the projection of c onto { x : ‖ x ‖₁ ≤ λ } into out.
//
// The ball is symmetric in every coordinate, so the projection keeps the sign
// of each entry and shrinks the magnitudes:
//
//	pᵢ = 𝚜𝚒𝚐𝚗(cᵢ) · 𝚖𝚊𝚡(|cᵢ| - τ, 0)
//
// Entries shrunk to zero come out as +0. c and out may be the same slice.
func (p *Projector) ProjectSigned(c, out []float64, w *Workspace) (sum Summary, err error) {
	if err = checkVector(c, out); err != nil {
		return sum, fmt.Errorf("ProjectSigned: %w", err)
	}
	if w == nil {
		w = p.Init()
	}
	n := len(c)
	if cap(w.abs) < n {
		w.abs = make([]float64, n)
	}
	if cap(w.neg) < n {
		w.neg = make([]bool, n)
	}
	abs, neg := w.abs[:n], w.neg[:n]
	for i, v := range c {
		neg[i] = v < zero
		abs[i] = math.Abs(v)
	}
	// signs are taken before out is written, out may alias c
	sum = p.project(abs, out, w)
	for i, v := range out {
		if neg[i] && v != zero {
			out[i] = -v
		}
	}
	return
}

// ProjectSigned returns the projection of c onto the L1 ball of radius lambda
// for vectors of arbitrary sign.
func ProjectSigned(c []float64, lambda float64) ([]float64, error) {
	b := Ball{Radius: lambda}
	proj, err := b.New()
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(c))
	if _, err = proj.ProjectSigned(c, out, nil); err != nil {
		return nil, err
	}
	return out, nil
}
